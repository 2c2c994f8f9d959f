// Package flow assembles a trigger and a tree of actions into a Power
// Automate workflow definition, and reads flows declared in YAML files.
package flow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/ntt-security-japan/gopowerautomate/pkg/action"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/trigger"
)

// Workflow definition constants.
const (
	Schema         = "https://schema.management.azure.com/providers/Microsoft.Logic/schemas/2016-06-01/workflowdefinition.json#"
	ContentVersion = "1.0.0.0"
)

// Flow is one trigger plus the root scope of actions.
type Flow struct {
	trigger trigger.Trigger
	actions *action.Actions
}

// New creates an empty flow.
func New() *Flow {
	return &Flow{actions: action.NewRootActions()}
}

// SetTrigger sets the entry point, replacing any previous trigger.
func (f *Flow) SetTrigger(t trigger.Trigger) {
	f.trigger = t
}

// Trigger returns the entry point, or nil.
func (f *Flow) Trigger() trigger.Trigger { return f.trigger }

// Actions returns the root scope.
func (f *Flow) Actions() *action.Actions { return f.actions }

// AddTopAction attaches a at the root with an empty runAfter.
func (f *Flow) AddTopAction(a action.Action) error {
	if err := f.checkNames(a); err != nil {
		return err
	}
	return f.actions.AddTop(a)
}

// AppendAction attaches a after the most recently attached root action.
func (f *Flow) AppendAction(a action.Action, opts ...action.LinkOption) error {
	if err := f.checkNames(a); err != nil {
		return err
	}
	return f.actions.Append(a, opts...)
}

// AppendAfter attaches a as a dependent of the named action, which may live
// anywhere in the tree; a joins that action's scope.
func (f *Flow) AppendAfter(a action.Action, prev string, opts ...action.LinkOption) error {
	_, scope, ok := f.actions.Find(prev)
	if !ok {
		return core.ErrActionNotFound.WithSubject(prev)
	}
	if err := f.checkNames(a); err != nil {
		return err
	}
	return scope.AddAfter(a, prev, opts...)
}

// AppendInto appends a to a branch of the named compound action.
func (f *Flow) AppendInto(parent, branch string, a action.Action, opts ...action.LinkOption) error {
	scope, err := f.Branch(parent, branch)
	if err != nil {
		return err
	}
	if err := f.checkNames(a); err != nil {
		return err
	}
	return scope.Append(a, opts...)
}

// Branch returns a branch scope of the named compound action.
func (f *Flow) Branch(parent, branch string) (*action.Actions, error) {
	p, _, ok := f.actions.Find(parent)
	if !ok {
		return nil, core.ErrActionNotFound.WithSubject(parent)
	}
	c, ok := p.(action.Container)
	if !ok {
		return nil, core.ErrNotContainer.WithSubject(parent)
	}
	return c.Branch(branch)
}

// Find returns the named action from anywhere in the tree.
func (f *Flow) Find(name string) (action.Action, bool) {
	a, _, ok := f.actions.Find(name)
	return a, ok
}

func (f *Flow) checkNames(a action.Action) error {
	if a == nil {
		return core.ErrInvalidParameter.WithMessage("nil action")
	}
	used := map[string]bool{}
	for _, n := range f.actions.AllNames() {
		used[n] = true
	}
	for _, n := range action.Names(a) {
		if used[n] {
			return core.ErrDuplicateName.WithSubject(n)
		}
	}
	return nil
}

// Validate checks the whole flow: a trigger is set, names are unique across
// the tree and every runAfter names an earlier sibling.
func (f *Flow) Validate() error {
	if f.trigger == nil {
		return core.ErrMissingTrigger
	}
	seen := map[string]bool{}
	for _, n := range f.actions.AllNames() {
		if seen[n] {
			return core.ErrDuplicateName.WithSubject(n)
		}
		seen[n] = true
	}
	return f.actions.Walk(func(a action.Action, scope *action.Actions) error {
		pos := map[string]int{}
		for i, n := range scope.Names() {
			pos[n] = i
		}
		self := pos[a.Name()]
		for dep := range a.Base().RunAfter() {
			i, ok := pos[dep]
			if !ok || i >= self {
				return core.ErrInvalidRunAfter.WithSubject(a.Name()).
					WithMessagef("runAfter references %q which is not an earlier sibling", dep)
			}
		}
		return nil
	})
}

// Parameter is one entry of the definition's parameters block.
type Parameter struct {
	DefaultValue map[string]any `json:"defaultValue"`
	Type         string         `json:"type"`
}

// Definition is the rendered workflow definition.
type Definition struct {
	Schema         string                         `json:"$schema"`
	ContentVersion string                         `json:"contentVersion"`
	Parameters     map[string]Parameter           `json:"parameters"`
	Triggers       map[string]*trigger.Definition `json:"triggers"`
	Actions        *action.Block                  `json:"actions"`
}

// Definition validates the flow and returns its definition.
func (f *Flow) Definition() (*Definition, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &Definition{
		Schema:         Schema,
		ContentVersion: ContentVersion,
		Parameters: map[string]Parameter{
			"$connections":    {DefaultValue: map[string]any{}, Type: "Object"},
			"$authentication": {DefaultValue: map[string]any{}, Type: "SecureObject"},
		},
		Triggers: map[string]*trigger.Definition{f.trigger.Name(): f.trigger.Render()},
		Actions:  f.actions.Render(),
	}, nil
}

// Render returns the definition as JSON.
func (f *Flow) Render() ([]byte, error) {
	def, err := f.Definition()
	if err != nil {
		return nil, err
	}
	return json.Marshal(def)
}

// RenderXOR returns the JSON definition XOR-encoded byte by byte with a
// comma separated integer key, as comma separated integers. The encoded JSON
// is pure ASCII: HTML characters stay literal and other runes are written as
// \uXXXX escapes. An empty key returns the plain JSON.
func (f *Flow) RenderXOR(key string) (string, error) {
	if key == "" {
		data, err := f.Render()
		return string(data), err
	}
	k, err := ParseXORKey(key)
	if err != nil {
		return "", err
	}
	def, err := f.Definition()
	if err != nil {
		return "", err
	}
	data, err := asciiJSON(def)
	if err != nil {
		return "", err
	}
	out := make([]string, len(data))
	for i, b := range data {
		out[i] = strconv.Itoa(int(b) ^ k[i%len(k)])
	}
	return strings.Join(out, ","), nil
}

// asciiJSON encodes v without HTML escaping and escapes every non-ASCII rune
// as \uXXXX, using surrogate pairs outside the basic plane.
func asciiJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	data := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))

	var out bytes.Buffer
	out.Grow(len(data))
	for _, r := range string(data) {
		if r < utf8.RuneSelf {
			out.WriteByte(byte(r))
			continue
		}
		for _, u := range utf16.Encode([]rune{r}) {
			fmt.Fprintf(&out, `\u%04x`, u)
		}
	}
	return out.Bytes(), nil
}

// ParseXORKey parses a comma separated list of integers.
func ParseXORKey(key string) ([]int, error) {
	parts := strings.Split(key, ",")
	k := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return nil, core.ErrInvalidParameter.WithSubject("xor key").WithMessagef("invalid key element %q", p)
		}
		k = append(k, n)
	}
	return k, nil
}

// Connectors returns the sorted connector names the flow's operations use.
func (f *Flow) Connectors() []string {
	return action.ConnectorsOf(f.actions)
}

// ConnectionRefs returns the connection references the flow's operations
// name in host.connectionName, sorted by key.
func (f *Flow) ConnectionRefs() ([]action.ConnectionRef, error) {
	return action.ConnectionRefsOf(f.actions)
}
