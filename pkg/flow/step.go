package flow

// StepType is the YAML key that selects the kind of a step.
type StepType string

// Step type constants.
const (
	// Variables
	StepInitVariable           StepType = "initVariable"
	StepSetVariable            StepType = "setVariable"
	StepAppendToStringVariable StepType = "appendToStringVariable"
	StepIncrementVariable      StepType = "incrementVariable"
	StepDecrementVariable      StepType = "decrementVariable"

	// Control
	StepIf      StepType = "if"
	StepForeach StepType = "foreach"
	StepScope   StepType = "scope"
	StepUntil   StepType = "until"

	// Data operations
	StepSelect  StepType = "select"
	StepTable   StepType = "table"
	StepCompose StepType = "compose"
	StepFilter  StepType = "filter"
	StepJoin    StepType = "join"

	// Time
	StepAddToTime StepType = "addToTime"
	StepWait      StepType = "wait"

	// HTTP and connectors
	StepHTTP                      StepType = "http"
	StepOperation                 StepType = "operation"
	StepListUserEnvironments      StepType = "listUserEnvironments"
	StepListConnections           StepType = "listConnections"
	StepDeleteFlow                StepType = "deleteFlow"
	StepCreateFlow                StepType = "createFlow"
	StepStartAndWaitForAnApproval StepType = "startAndWaitForAnApproval"
	StepWaitForAnApproval         StepType = "waitForAnApproval"
)

// Step is one parsed entry of a steps document.
type Step interface {
	Type() StepType
	Base() *BaseStep
	Describe() string
}

// Link controls how a step is attached to its scope.
type Link struct {
	After        string   `yaml:"after"`        // Attach after this action instead of the previous step
	Top          bool     `yaml:"top"`          // Attach with an empty runAfter
	ForceExec    bool     `yaml:"forceExec"`    // Run whatever the predecessor's outcome
	ExecIfFailed bool     `yaml:"execIfFailed"` // Run only if the predecessor failed
	DependsOn    []string `yaml:"dependsOn"`    // Explicit predecessors
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType StepType `yaml:"-"`
	Name     string   `yaml:"name"`
	Link     `yaml:",inline"`
	Line     int `yaml:"-"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Base returns the common fields.
func (b *BaseStep) Base() *BaseStep { return b }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string {
	if b.Name == "" {
		return string(b.StepType)
	}
	return string(b.StepType) + " " + b.Name
}

// ============================================
// Variable Steps
// ============================================

// InitVariableStep declares a variable.
type InitVariableStep struct {
	BaseStep `yaml:",inline"`
	Variable string `yaml:"variable"`
	VarType  string `yaml:"type"`
	Value    any    `yaml:"value"`
}

// VariableStep sets, appends to, increments or decrements a variable.
type VariableStep struct {
	BaseStep `yaml:",inline"`
	Variable string `yaml:"variable"`
	Value    any    `yaml:"value"`
}

// ============================================
// Control Steps
// ============================================

// IfStep runs then or else depending on an infix condition.
type IfStep struct {
	BaseStep  `yaml:",inline"`
	Condition string `yaml:"condition"`
	Then      []Step `yaml:"-"`
	Else      []Step `yaml:"-"`
}

// ForeachStep loops over an array expression.
type ForeachStep struct {
	BaseStep `yaml:",inline"`
	Items    string `yaml:"items"`
	Steps    []Step `yaml:"-"`
}

// ScopeStep groups steps, or embeds exported actions JSON given inline in
// raw or stored in rawFile (relative to the flow file).
type ScopeStep struct {
	BaseStep `yaml:",inline"`
	Raw      string `yaml:"raw"`
	RawFile  string `yaml:"rawFile"`
	Steps    []Step `yaml:"-"`
}

// UntilStep repeats its steps until the expression holds.
type UntilStep struct {
	BaseStep   `yaml:",inline"`
	Expression string `yaml:"expression"`
	Count      int    `yaml:"count"`
	Timeout    string `yaml:"timeout"`
	Steps      []Step `yaml:"-"`
}

// ============================================
// Data Operation Steps
// ============================================

// SelectStep maps an array.
type SelectStep struct {
	BaseStep `yaml:",inline"`
	From     any `yaml:"from"`
	Select   any `yaml:"select"`
}

// TableStep renders an array as CSV or HTML.
type TableStep struct {
	BaseStep `yaml:",inline"`
	From     any    `yaml:"from"`
	Format   string `yaml:"format"`
}

// ComposeStep outputs its inputs.
type ComposeStep struct {
	BaseStep `yaml:",inline"`
	Inputs   any `yaml:"inputs"`
}

// FilterStep filters an array.
type FilterStep struct {
	BaseStep `yaml:",inline"`
	From     any    `yaml:"from"`
	Where    string `yaml:"where"`
}

// JoinStep joins an array into a string.
type JoinStep struct {
	BaseStep `yaml:",inline"`
	From     any    `yaml:"from"`
	JoinWith string `yaml:"joinWith"`
}

// ============================================
// Time Steps
// ============================================

// AddToTimeStep adds an interval to a base time.
type AddToTimeStep struct {
	BaseStep `yaml:",inline"`
	Unit     string `yaml:"unit"`
	Interval int    `yaml:"interval"`
	BaseTime string `yaml:"baseTime"`
}

// WaitStep pauses the flow.
type WaitStep struct {
	BaseStep `yaml:",inline"`
	Count    int    `yaml:"count"`
	Unit     string `yaml:"unit"`
}

// ============================================
// HTTP and Connector Steps
// ============================================

// HTTPStep calls an endpoint.
type HTTPStep struct {
	BaseStep `yaml:",inline"`
	URI      string            `yaml:"uri"`
	Method   string            `yaml:"method"`
	Headers  map[string]string `yaml:"headers"`
	Queries  map[string]string `yaml:"queries"`
	Body     any               `yaml:"body"`
	Cookie   string            `yaml:"cookie"`
}

// OperationStep calls a catalogued connector operation. The typed
// flow-management shorthands decode into it too.
type OperationStep struct {
	BaseStep       `yaml:",inline"`
	Connector      string         `yaml:"connector"`
	OperationID    string         `yaml:"operationId"`
	Parameters     map[string]any `yaml:"parameters"`
	ConnectionName string         `yaml:"connectionName"`
}

// ConnectionRef names an existing connection handed to a created flow.
type ConnectionRef struct {
	Name string `yaml:"name"`
	ID   string `yaml:"id"`
}

// CreateFlowStep creates a flow from the JSON held in a variable.
type CreateFlowStep struct {
	BaseStep    `yaml:",inline"`
	DisplayName string          `yaml:"displayName"`
	Variable    string          `yaml:"variable"`
	Connections []ConnectionRef `yaml:"connections"`
}

// ApprovalStep starts an approval and waits for it.
type ApprovalStep struct {
	BaseStep   `yaml:",inline"`
	AssignedTo string `yaml:"assignedTo"`
	Title      string `yaml:"title"`
}

// WaitForApprovalStep waits for an approval started elsewhere.
type WaitForApprovalStep struct {
	BaseStep `yaml:",inline"`
	Approval string `yaml:"approval"`
}
