// Package action models the steps of a Power Automate flow and the scopes
// that order them through runAfter.
package action

import (
	"github.com/google/uuid"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Type is the JSON "type" of an action.
type Type string

// Action types.
const (
	// Variables
	TypeInitializeVariable     Type = "InitializeVariable"
	TypeSetVariable            Type = "SetVariable"
	TypeAppendToStringVariable Type = "AppendToStringVariable"
	TypeIncrementVariable      Type = "IncrementVariable"
	TypeDecrementVariable      Type = "DecrementVariable"

	// Control
	TypeIf      Type = "If"
	TypeForeach Type = "Foreach"
	TypeUntil   Type = "Until"
	TypeScope   Type = "Scope"

	// Data operations
	TypeSelect  Type = "Select"
	TypeTable   Type = "Table"
	TypeCompose Type = "Compose"
	TypeQuery   Type = "Query"
	TypeJoin    Type = "Join"

	// Time
	TypeExpression Type = "Expression"
	TypeWait       Type = "Wait"

	// HTTP and connectors
	TypeHTTP                     Type = "Http"
	TypeOpenAPIConnection        Type = "OpenApiConnection"
	TypeOpenAPIConnectionWebhook Type = "OpenApiConnectionWebhook"
)

// IsCompound reports whether actions of this type hold child scopes.
func (t Type) IsCompound() bool {
	switch t {
	case TypeIf, TypeForeach, TypeUntil, TypeScope:
		return true
	}
	return false
}

// Action is one step of a flow.
type Action interface {
	Name() string
	Type() Type
	Base() *BaseAction
	Render() *Definition
	// Clone returns an unattached deep copy with fresh metadata ids and no
	// run-after links. Child scopes keep their order and links.
	Clone() Action
}

// Container is an action that holds child scopes addressed by branch name.
type Container interface {
	Action
	Branch(name string) (*Actions, error)
	Branches() []string
}

// Branch names.
const (
	BranchTrue  = "true"
	BranchFalse = "false"
	BranchBody  = "body"
)

// BaseAction holds the fields every action shares.
type BaseAction struct {
	name       string
	metadataID string
	runAfter   map[string][]core.State
	attached   bool
	scope      *Actions
}

func newBase(name string) (BaseAction, error) {
	if name == "" {
		return BaseAction{}, core.ErrEmptyName
	}
	return BaseAction{
		name:       name,
		metadataID: uuid.NewString(),
		runAfter:   map[string][]core.State{},
	}, nil
}

func (b *BaseAction) clone() BaseAction {
	return BaseAction{
		name:       b.name,
		metadataID: uuid.NewString(),
		runAfter:   map[string][]core.State{},
	}
}

// copyValue deep-copies the JSON-like values callers pass as inputs.
func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		res := make(map[string]any, len(t))
		for k, e := range t {
			res[k] = copyValue(e)
		}
		return res
	case []any:
		res := make([]any, len(t))
		for i, e := range t {
			res[i] = copyValue(e)
		}
		return res
	case map[string]string:
		return copyStrings(t)
	case []string:
		return append([]string(nil), t...)
	}
	return v
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	res := make(map[string]string, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

// Name returns the action name.
func (b *BaseAction) Name() string { return b.name }

// Base returns the shared fields.
func (b *BaseAction) Base() *BaseAction { return b }

// OperationMetadataID returns the id rendered under metadata.
func (b *BaseAction) OperationMetadataID() string { return b.metadataID }

// Attached reports whether the action belongs to a scope.
func (b *BaseAction) Attached() bool { return b.attached }

// RunAfter returns a copy of the run-after map.
func (b *BaseAction) RunAfter() map[string][]core.State {
	res := make(map[string][]core.State, len(b.runAfter))
	for k, v := range b.runAfter {
		res[k] = append([]core.State(nil), v...)
	}
	return res
}

func (b *BaseAction) definition(t Type) *Definition {
	return &Definition{
		Metadata: Metadata{OperationMetadataID: b.metadataID},
		Type:     t,
		RunAfter: b.RunAfter(),
	}
}

// Metadata is rendered under "metadata".
type Metadata struct {
	OperationMetadataID string `json:"operationMetadataId"`
}

// Limit bounds an Until loop.
type Limit struct {
	Count   int    `json:"count"`
	Timeout string `json:"timeout"`
}

// Else holds the false branch of an If.
type Else struct {
	Actions *Block `json:"actions"`
}

// Definition is the JSON form of one action.
type Definition struct {
	Metadata   Metadata                `json:"metadata"`
	Type       Type                    `json:"type"`
	Kind       string                  `json:"kind,omitempty"`
	RunAfter   map[string][]core.State `json:"runAfter"`
	Inputs     any                     `json:"inputs,omitempty"`
	Expression any                     `json:"expression,omitempty"`
	Foreach    string                  `json:"foreach,omitempty"`
	Actions    *Block                  `json:"actions,omitempty"`
	Else       *Else                   `json:"else,omitempty"`
	Limit      *Limit                  `json:"limit,omitempty"`
}

// Names returns the name of a and every action nested below it.
func Names(a Action) []string {
	names := []string{a.Name()}
	switch c := a.(type) {
	case *Scope:
		if c.raw != nil {
			return append(names, c.raw.Names()...)
		}
		names = append(names, c.body.AllNames()...)
	case Container:
		for _, b := range c.Branches() {
			scope, err := c.Branch(b)
			if err == nil {
				names = append(names, scope.AllNames()...)
			}
		}
	}
	return names
}
