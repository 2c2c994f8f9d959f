package action

import "github.com/ntt-security-japan/gopowerautomate/pkg/core"

// VariableType is the declared type of a flow variable.
type VariableType string

// Variable types.
const (
	VarString  VariableType = "string"
	VarInteger VariableType = "integer"
	VarBoolean VariableType = "boolean"
	VarFloat   VariableType = "float"
	VarArray   VariableType = "array"
	VarObject  VariableType = "object"
)

// IsValid returns true if Power Automate accepts the type.
func (t VariableType) IsValid() bool {
	switch t {
	case VarString, VarInteger, VarBoolean, VarFloat, VarArray, VarObject:
		return true
	}
	return false
}

// InitVariable declares a variable. It is only accepted in a flow's root
// scope.
type InitVariable struct {
	BaseAction
	Variable string
	VarType  VariableType
	Value    any // nil leaves the value unset
}

// NewInitVariable creates an InitializeVariable action.
func NewInitVariable(name, variable string, typ VariableType, value any) (*InitVariable, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if variable == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing variable name")
	}
	if !typ.IsValid() {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown variable type %q", typ)
	}
	return &InitVariable{BaseAction: base, Variable: variable, VarType: typ, Value: value}, nil
}

// Type implements Action.
func (a *InitVariable) Type() Type { return TypeInitializeVariable }

type variableDecl struct {
	Name  string       `json:"name"`
	Type  VariableType `json:"type"`
	Value any          `json:"value,omitempty"`
}

type initInputs struct {
	Variables []variableDecl `json:"variables"`
}

// Clone implements Action.
func (a *InitVariable) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	c.Value = copyValue(a.Value)
	return &c
}

// Render implements Action.
func (a *InitVariable) Render() *Definition {
	d := a.definition(a.Type())
	d.Inputs = initInputs{Variables: []variableDecl{{Name: a.Variable, Type: a.VarType, Value: a.Value}}}
	return d
}

// VariableUpdate changes an existing variable: set, append, increment or
// decrement.
type VariableUpdate struct {
	BaseAction
	kind     Type
	Variable string
	Value    any
}

func newVariableUpdate(kind Type, name, variable string, value any) (*VariableUpdate, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if variable == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing variable name")
	}
	return &VariableUpdate{BaseAction: base, kind: kind, Variable: variable, Value: value}, nil
}

// NewSetVariable creates a SetVariable action.
func NewSetVariable(name, variable string, value any) (*VariableUpdate, error) {
	return newVariableUpdate(TypeSetVariable, name, variable, value)
}

// NewAppendToStringVariable creates an AppendToStringVariable action.
func NewAppendToStringVariable(name, variable string, value any) (*VariableUpdate, error) {
	return newVariableUpdate(TypeAppendToStringVariable, name, variable, value)
}

// NewIncrementVariable creates an IncrementVariable action.
func NewIncrementVariable(name, variable string, value any) (*VariableUpdate, error) {
	return newVariableUpdate(TypeIncrementVariable, name, variable, value)
}

// NewDecrementVariable creates a DecrementVariable action.
func NewDecrementVariable(name, variable string, value any) (*VariableUpdate, error) {
	return newVariableUpdate(TypeDecrementVariable, name, variable, value)
}

// Type implements Action.
func (a *VariableUpdate) Type() Type { return a.kind }

type nameValue struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Clone implements Action.
func (a *VariableUpdate) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	c.Value = copyValue(a.Value)
	return &c
}

// Render implements Action.
func (a *VariableUpdate) Render() *Definition {
	d := a.definition(a.kind)
	d.Inputs = nameValue{Name: a.Variable, Value: a.Value}
	return d
}
