package action

import "github.com/ntt-security-japan/gopowerautomate/pkg/core"

// TableFormat is the output format of a Table action.
type TableFormat string

// Table formats.
const (
	TableCSV  TableFormat = "CSV"
	TableHTML TableFormat = "HTML"
)

// DataOperation covers the Select, Table, Compose, Query and Join actions.
// Inputs are rendered as given.
type DataOperation struct {
	BaseAction
	kind   Type
	inputs any
}

// Type implements Action.
func (a *DataOperation) Type() Type { return a.kind }

// Inputs returns the rendered inputs.
func (a *DataOperation) Inputs() any { return a.inputs }

// Clone implements Action. Inputs are shared; they are never modified after
// construction.
func (a *DataOperation) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	return &c
}

// Render implements Action.
func (a *DataOperation) Render() *Definition {
	d := a.definition(a.kind)
	d.Inputs = a.inputs
	return d
}

func newDataOperation(kind Type, name string, from any, inputs any) (*DataOperation, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if from == nil {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing from")
	}
	return &DataOperation{BaseAction: base, kind: kind, inputs: inputs}, nil
}

type selectInputs struct {
	From   any `json:"from"`
	Select any `json:"select"`
}

// NewSelect maps every item of from through sel, either an object template
// or an expression.
func NewSelect(name string, from, sel any) (*DataOperation, error) {
	if sel == nil {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing select")
	}
	return newDataOperation(TypeSelect, name, from, selectInputs{From: from, Select: sel})
}

// NewSelectKeyValue maps every item of from to a single key/value object.
func NewSelectKeyValue(name string, from any, key string, value any) (*DataOperation, error) {
	if key == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing select key")
	}
	return NewSelect(name, from, map[string]any{key: value})
}

type tableInputs struct {
	From   any         `json:"from"`
	Format TableFormat `json:"format"`
}

// NewTable renders from as a CSV or HTML table.
func NewTable(name string, from any, format TableFormat) (*DataOperation, error) {
	if format != TableCSV && format != TableHTML {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown table format %q", format)
	}
	return newDataOperation(TypeTable, name, from, tableInputs{From: from, Format: format})
}

// NewCompose outputs inputs unchanged.
func NewCompose(name string, inputs any) (*DataOperation, error) {
	return newDataOperation(TypeCompose, name, inputs, inputs)
}

type queryInputs struct {
	From  any    `json:"from"`
	Where string `json:"where"`
}

// NewFilter keeps the items of from for which where holds.
func NewFilter(name string, from any, where string) (*DataOperation, error) {
	if where == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing where")
	}
	return newDataOperation(TypeQuery, name, from, queryInputs{From: from, Where: where})
}

type joinInputs struct {
	From     any    `json:"from"`
	JoinWith string `json:"joinWith"`
}

// NewJoin concatenates the items of from separated by joinWith.
func NewJoin(name string, from any, joinWith string) (*DataOperation, error) {
	return newDataOperation(TypeJoin, name, from, joinInputs{From: from, JoinWith: joinWith})
}
