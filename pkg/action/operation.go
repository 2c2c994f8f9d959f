package action

import (
	"sort"

	"github.com/ntt-security-japan/gopowerautomate/pkg/connection"
	"github.com/ntt-security-japan/gopowerautomate/pkg/connector"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Operation calls a catalogued connector operation.
type Operation struct {
	BaseAction
	op             connector.Operation
	apiID          string
	connectionName string
	params         map[string]any
}

// NewOperation creates a connector call. params are keyed by the parameter
// names of the catalogue (wire keys are accepted too); missing required
// parameters and unknown ones are rejected, defaults fill the rest.
func NewOperation(name, connectorName, operationID string, params map[string]any) (*Operation, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	op, err := connector.LookupOperation(connectorName, operationID)
	if err != nil {
		return nil, core.ErrUnknownOperation.WithSubject(name).WithCause(err).
			WithMessagef("unknown operation %s", operationID)
	}
	c, _ := connector.Lookup(op.Connector)

	a := &Operation{
		BaseAction:     base,
		op:             op,
		apiID:          c.APIID(),
		connectionName: c.Name,
		params:         map[string]any{},
	}
	for key, v := range params {
		if err := a.Set(key, v); err != nil {
			return nil, err
		}
	}
	for _, p := range op.Params {
		v, ok := a.params[p.WireKey()]
		if ok && !(p.Required && v == "") {
			continue
		}
		if p.Required {
			return nil, core.ErrMissingParameter.WithSubject(name).WithMessagef("missing parameter %q for %s", p.Name, op.ID)
		}
		if p.Default != nil {
			a.params[p.WireKey()] = p.Default
		}
	}
	return a, nil
}

// Set assigns a parameter after construction. A nil value removes an
// optional parameter; required parameters cannot be cleared.
func (a *Operation) Set(key string, value any) error {
	p, ok := a.lookupParam(key)
	if !ok {
		return core.ErrInvalidParameter.WithSubject(a.Name()).WithMessagef("unknown parameter %q for %s", key, a.op.ID)
	}
	if p.Required && (value == nil || value == "") {
		return core.ErrMissingParameter.WithSubject(a.Name()).WithMessagef("parameter %q of %s is required", p.Name, a.op.ID)
	}
	if value == nil {
		delete(a.params, p.WireKey())
		return nil
	}
	a.params[p.WireKey()] = value
	return nil
}

func (a *Operation) lookupParam(key string) (connector.Param, bool) {
	for _, p := range a.op.Params {
		if p.Name == key || p.WireKey() == key {
			return p, true
		}
	}
	return connector.Param{}, false
}

// Type implements Action.
func (a *Operation) Type() Type { return Type(a.op.Type) }

// Connector returns the API name the operation belongs to.
func (a *Operation) Connector() string { return a.op.Connector }

// OperationID returns the operation id.
func (a *Operation) OperationID() string { return a.op.ID }

// ConnectionName returns the connection reference the call uses.
func (a *Operation) ConnectionName() string { return a.connectionName }

// SetConnectionName overrides the connection reference, which defaults to
// the connector name.
func (a *Operation) SetConnectionName(name string) { a.connectionName = name }

// Parameters returns a copy of the rendered parameters.
func (a *Operation) Parameters() map[string]any {
	res := make(map[string]any, len(a.params))
	for k, v := range a.params {
		res[k] = v
	}
	return res
}

type host struct {
	APIID          string `json:"apiId"`
	ConnectionName string `json:"connectionName"`
	OperationID    string `json:"operationId"`
}

type operationInputs struct {
	Host       host           `json:"host"`
	Parameters map[string]any `json:"parameters"`
}

// Clone implements Action. The copy keeps the connection reference.
func (a *Operation) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	c.params = copyValue(a.params).(map[string]any)
	return &c
}

// Render implements Action.
func (a *Operation) Render() *Definition {
	d := a.definition(a.Type())
	d.Inputs = operationInputs{
		Host: host{
			APIID:          a.apiID,
			ConnectionName: a.connectionName,
			OperationID:    a.op.ID,
		},
		Parameters: a.Parameters(),
	}
	return d
}

// NewListUserEnvironments lists the environments of the flow owner.
func NewListUserEnvironments(name string) (*Operation, error) {
	return NewOperation(name, connector.FlowManagement, "ListUserEnvironments", nil)
}

// NewListConnections lists the connections of the current environment.
func NewListConnections(name string) (*Operation, error) {
	return NewOperation(name, connector.FlowManagement, "ListConnections", nil)
}

// NewDeleteFlow deletes the running flow.
func NewDeleteFlow(name string) (*Operation, error) {
	return NewOperation(name, connector.FlowManagement, "DeleteFlow", nil)
}

// NewCreateFlow creates and starts a flow whose definition is the JSON held
// in the string variable varName.
func NewCreateFlow(name, displayName, varName string, refs *connection.Connections) (*Operation, error) {
	if varName == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing definition variable")
	}
	if refs == nil {
		refs = connection.New()
	}
	return NewOperation(name, connector.FlowManagement, "CreateFlow", map[string]any{
		"displayName":          displayName,
		"definition":           "@json(variables('" + varName + "'))",
		"connectionReferences": refs.Export(),
	})
}

// NewStartAndWaitForAnApproval sends a basic approval to assignedTo and
// waits for the answer.
func NewStartAndWaitForAnApproval(name, assignedTo string) (*Operation, error) {
	return NewOperation(name, connector.Approvals, "StartAndWaitForAnApproval", map[string]any{
		"assignedTo": assignedTo,
	})
}

// NewWaitForAnApproval waits for an approval started elsewhere.
func NewWaitForAnApproval(name, approvalName string) (*Operation, error) {
	return NewOperation(name, connector.Approvals, "WaitForAnApproval", map[string]any{
		"approvalName": approvalName,
	})
}

// ConnectorsOf returns the sorted connector names used by the operations in
// the scope tree.
func ConnectorsOf(s *Actions) []string {
	seen := map[string]bool{}
	_ = s.Walk(func(a Action, _ *Actions) error {
		if op, ok := a.(*Operation); ok {
			seen[op.Connector()] = true
		}
		return nil
	})
	res := make([]string, 0, len(seen))
	for name := range seen {
		res = append(res, name)
	}
	sort.Strings(res)
	return res
}

// ConnectionRef is a connection reference used by operations: the
// host.connectionName key and the connector it belongs to.
type ConnectionRef struct {
	Key       string
	Connector string
}

// ConnectionRefsOf returns the distinct connection references of the
// operations in the scope tree, sorted by key. A key used for two different
// connectors is an error.
func ConnectionRefsOf(s *Actions) ([]ConnectionRef, error) {
	byKey := map[string]string{}
	err := s.Walk(func(a Action, _ *Actions) error {
		op, ok := a.(*Operation)
		if !ok {
			return nil
		}
		key := op.ConnectionName()
		if prev, ok := byKey[key]; ok && prev != op.Connector() {
			return core.ErrInvalidParameter.WithSubject(op.Name()).
				WithMessagef("connection reference %q already used for %s", key, prev)
		}
		byKey[key] = op.Connector()
		return nil
	})
	if err != nil {
		return nil, err
	}
	res := make([]ConnectionRef, 0, len(byKey))
	for k, c := range byKey {
		res = append(res, ConnectionRef{Key: k, Connector: c})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Key < res[j].Key })
	return res, nil
}
