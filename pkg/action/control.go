package action

import (
	"github.com/ntt-security-japan/gopowerautomate/pkg/condition"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Until loop defaults.
const (
	DefaultUntilCount   = 60
	DefaultUntilTimeout = "PT1H"
)

// If runs one of two branches depending on a condition.
type If struct {
	BaseAction
	Condition *condition.Condition
	yes       *Actions
	no        *Actions
}

// NewIf creates a conditional.
func NewIf(name string, cond *condition.Condition) (*If, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if cond == nil {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing condition")
	}
	a := &If{BaseAction: base, Condition: cond}
	a.yes, a.no = newOwnedActions(a), newOwnedActions(a)
	return a, nil
}

// Type implements Action.
func (a *If) Type() Type { return TypeIf }

// True returns the branch run when the condition holds.
func (a *If) True() *Actions { return a.yes }

// False returns the branch run otherwise.
func (a *If) False() *Actions { return a.no }

// Branches implements Container.
func (a *If) Branches() []string { return []string{BranchTrue, BranchFalse} }

// Branch implements Container.
func (a *If) Branch(name string) (*Actions, error) {
	switch name {
	case BranchTrue:
		return a.yes, nil
	case BranchFalse:
		return a.no, nil
	}
	return nil, core.ErrUnknownBranch.WithSubject(a.Name()).WithMessagef("unknown branch %q", name)
}

// Clone implements Action.
func (a *If) Clone() Action {
	c := &If{BaseAction: a.clone(), Condition: a.Condition}
	c.yes, c.no = a.yes.cloneFor(c), a.no.cloneFor(c)
	return c
}

// Render implements Action.
func (a *If) Render() *Definition {
	d := a.definition(TypeIf)
	d.Expression = a.Condition.Export()
	d.Actions = a.yes.Render()
	if a.no.Len() > 0 {
		d.Else = &Else{Actions: a.no.Render()}
	}
	return d
}

// bodied is shared by actions with a single "body" branch.
type bodied struct {
	body *Actions
}

// Body returns the child scope.
func (b *bodied) Body() *Actions { return b.body }

// Branches implements Container.
func (b *bodied) Branches() []string { return []string{BranchBody} }

func (b *bodied) branch(owner, name string) (*Actions, error) {
	if name != BranchBody {
		return nil, core.ErrUnknownBranch.WithSubject(owner).WithMessagef("unknown branch %q", name)
	}
	return b.body, nil
}

// Foreach runs its body once per item of an array expression.
type Foreach struct {
	BaseAction
	bodied
	Items string
}

// NewForeach creates a loop over the items expression.
func NewForeach(name, items string) (*Foreach, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if items == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing foreach expression")
	}
	a := &Foreach{BaseAction: base, Items: items}
	a.body = newOwnedActions(a)
	return a, nil
}

// Type implements Action.
func (a *Foreach) Type() Type { return TypeForeach }

// Branch implements Container.
func (a *Foreach) Branch(name string) (*Actions, error) { return a.branch(a.Name(), name) }

// Clone implements Action.
func (a *Foreach) Clone() Action {
	c := &Foreach{BaseAction: a.clone(), Items: a.Items}
	c.body = a.body.cloneFor(c)
	return c
}

// Render implements Action.
func (a *Foreach) Render() *Definition {
	d := a.definition(TypeForeach)
	d.Foreach = a.Items
	d.Actions = a.body.Render()
	return d
}

// Until repeats its body until an expression holds or the limit is hit.
type Until struct {
	BaseAction
	bodied
	Expression string
	Limit      Limit
}

// NewUntil creates a do-until loop. A non-positive count selects the default.
func NewUntil(name, expression string, count int) (*Until, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if expression == "" {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing until expression")
	}
	if count <= 0 {
		count = DefaultUntilCount
	}
	a := &Until{
		BaseAction: base,
		Expression: expression,
		Limit:      Limit{Count: count, Timeout: DefaultUntilTimeout},
	}
	a.body = newOwnedActions(a)
	return a, nil
}

// Type implements Action.
func (a *Until) Type() Type { return TypeUntil }

// Branch implements Container.
func (a *Until) Branch(name string) (*Actions, error) { return a.branch(a.Name(), name) }

// Clone implements Action.
func (a *Until) Clone() Action {
	c := &Until{BaseAction: a.clone(), Expression: a.Expression, Limit: a.Limit}
	c.body = a.body.cloneFor(c)
	return c
}

// Render implements Action.
func (a *Until) Render() *Definition {
	d := a.definition(TypeUntil)
	d.Actions = a.body.Render()
	d.Expression = a.Expression
	limit := a.Limit
	d.Limit = &limit
	return d
}

// Scope groups actions. It holds either a buildable body or pre-rendered
// raw actions.
type Scope struct {
	BaseAction
	bodied
	raw *RawActions
}

// NewScope creates an empty scope.
func NewScope(name string) (*Scope, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	a := &Scope{BaseAction: base}
	a.body = newOwnedActions(a)
	return a, nil
}

// NewRawScope creates a scope wrapping previously exported actions.
func NewRawScope(name string, raw *RawActions) (*Scope, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, core.ErrMissingParameter.WithSubject(name).WithMessage("missing raw actions")
	}
	return &Scope{BaseAction: base, raw: raw}, nil
}

// Type implements Action.
func (a *Scope) Type() Type { return TypeScope }

// Raw returns the wrapped raw actions, or nil.
func (a *Scope) Raw() *RawActions { return a.raw }

// Branches implements Container.
func (a *Scope) Branches() []string {
	if a.raw != nil {
		return nil
	}
	return a.bodied.Branches()
}

// Branch implements Container.
func (a *Scope) Branch(name string) (*Actions, error) {
	if a.raw != nil {
		return nil, core.ErrNotContainer.WithSubject(a.Name()).WithMessage("scope wraps raw actions")
	}
	return a.branch(a.Name(), name)
}

// Clone implements Action. Raw actions are shared; they are never modified.
func (a *Scope) Clone() Action {
	c := &Scope{BaseAction: a.clone(), raw: a.raw}
	if a.raw == nil {
		c.body = a.body.cloneFor(c)
	}
	return c
}

// Render implements Action.
func (a *Scope) Render() *Definition {
	d := a.definition(TypeScope)
	if a.raw != nil {
		d.Actions = a.raw.Render()
	} else {
		d.Actions = a.body.Render()
	}
	return d
}
