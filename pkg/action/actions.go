package action

import (
	"bytes"
	"encoding/json"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Actions is an ordered scope of sibling actions. Declaration order is
// execution order: each attach links the new action after a sibling through
// runAfter unless explicit dependencies are given.
type Actions struct {
	root   bool
	owner  Action // compound action holding the scope, nil for free scopes
	order  []Action
	byName map[string]Action
	last   Action
}

// NewActions creates a nested scope.
func NewActions() *Actions {
	return &Actions{byName: map[string]Action{}}
}

// NewRootActions creates the top-level scope of a flow. Only the root scope
// accepts InitializeVariable actions.
func NewRootActions() *Actions {
	s := NewActions()
	s.root = true
	return s
}

func newOwnedActions(owner Action) *Actions {
	s := NewActions()
	s.owner = owner
	return s
}

// IsRoot reports whether this is a flow's top-level scope.
func (s *Actions) IsRoot() bool { return s.root }

// Len returns the number of actions in the scope.
func (s *Actions) Len() int { return len(s.order) }

// All returns the actions of the scope in declaration order.
func (s *Actions) All() []Action {
	return append([]Action(nil), s.order...)
}

// Names returns the action names of the scope in declaration order.
func (s *Actions) Names() []string {
	names := make([]string, len(s.order))
	for i, a := range s.order {
		names[i] = a.Name()
	}
	return names
}

// AllNames returns the names of every action in the scope and below it.
func (s *Actions) AllNames() []string {
	var names []string
	for _, a := range s.order {
		names = append(names, Names(a)...)
	}
	return names
}

// Get returns the direct child with the given name.
func (s *Actions) Get(name string) (Action, bool) {
	a, ok := s.byName[name]
	return a, ok
}

// Last returns the most recently attached action, or nil.
func (s *Actions) Last() Action { return s.last }

// Find searches the scope tree depth-first and returns the action with the
// given name together with the scope that holds it.
func (s *Actions) Find(name string) (Action, *Actions, bool) {
	if a, ok := s.byName[name]; ok {
		return a, s, true
	}
	for _, a := range s.order {
		c, ok := a.(Container)
		if !ok {
			continue
		}
		for _, b := range c.Branches() {
			child, err := c.Branch(b)
			if err != nil {
				continue
			}
			if found, scope, ok := child.Find(name); ok {
				return found, scope, true
			}
		}
	}
	return nil, nil, false
}

// Walk calls fn for every action in the tree, parents before children.
func (s *Actions) Walk(fn func(a Action, scope *Actions) error) error {
	for _, a := range s.order {
		if err := fn(a, s); err != nil {
			return err
		}
		c, ok := a.(Container)
		if !ok {
			continue
		}
		for _, b := range c.Branches() {
			child, err := c.Branch(b)
			if err != nil {
				return err
			}
			if err := child.Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddTop attaches a at the head of the scope with an empty runAfter.
func (s *Actions) AddTop(a Action) error {
	return s.attach(a, nil, nil)
}

// Append attaches a after the most recently attached action.
func (s *Actions) Append(a Action, opts ...LinkOption) error {
	return s.attach(a, s.last, opts)
}

// AddAfter attaches a after the named sibling.
func (s *Actions) AddAfter(a Action, prev string, opts ...LinkOption) error {
	p, ok := s.byName[prev]
	if !ok {
		return core.ErrActionNotFound.WithSubject(prev)
	}
	return s.attach(a, p, opts)
}

func (s *Actions) attach(a Action, prev Action, opts []LinkOption) error {
	if a == nil {
		return core.ErrInvalidParameter.WithMessage("nil action")
	}
	if err := s.check(a); err != nil {
		return err
	}

	l := link{states: core.DefaultStates()}
	for _, opt := range opts {
		opt(&l)
	}

	runAfter := map[string][]core.State{}
	switch {
	case len(l.deps) > 0:
		for _, d := range l.deps {
			if _, ok := s.byName[d.name]; !ok {
				return core.ErrInvalidRunAfter.WithSubject(a.Name()).
					WithMessagef("depends on %q which is not declared earlier in the same scope", d.name)
			}
			states := d.states
			if len(states) == 0 {
				states = l.states
			}
			for _, st := range states {
				if !st.IsValid() {
					return core.ErrInvalidParameter.WithSubject(a.Name()).WithMessagef("unknown run state %q", st)
				}
			}
			runAfter[d.name] = append([]core.State(nil), states...)
		}
	case prev != nil:
		runAfter[prev.Name()] = append([]core.State(nil), l.states...)
	}

	s.link(a, runAfter)
	return nil
}

func (s *Actions) link(a Action, runAfter map[string][]core.State) {
	b := a.Base()
	b.runAfter = runAfter
	b.attached = true
	b.scope = s
	s.order = append(s.order, a)
	s.byName[a.Name()] = a
	s.last = a
}

// inside reports whether the scope lies within a's subtree.
func (s *Actions) inside(a Action) bool {
	for sc := s; sc != nil && sc.owner != nil; sc = sc.owner.Base().scope {
		if sc.owner.Base() == a.Base() {
			return true
		}
	}
	return false
}

func (s *Actions) check(a Action) error {
	if s.inside(a) {
		return core.ErrCyclicAttach.WithSubject(a.Name())
	}
	if _, ok := s.byName[a.Name()]; ok {
		return core.ErrDuplicateName.WithSubject(a.Name())
	}
	if a.Base().attached {
		return core.ErrAlreadyAttached.WithSubject(a.Name())
	}
	if a.Type() == TypeInitializeVariable && !s.root {
		return core.ErrRootOnly.WithSubject(a.Name())
	}
	seen := map[string]bool{}
	for _, n := range Names(a) {
		if seen[n] {
			return core.ErrDuplicateName.WithSubject(n)
		}
		seen[n] = true
	}
	return nil
}

// Clone returns a deep copy of the scope. Cloned actions get fresh metadata
// ids and keep their declaration order and run-after links.
func (s *Actions) Clone() *Actions {
	return s.cloneFor(nil)
}

func (s *Actions) cloneFor(owner Action) *Actions {
	res := NewActions()
	res.root = s.root
	res.owner = owner
	for _, a := range s.order {
		res.link(a.Clone(), a.Base().RunAfter())
	}
	return res
}

// Concat returns a new scope holding a copy of s followed by a copy of
// other. The actions of other that had no predecessor run after the last
// action of s; the rest keep their links. Neither scope is modified.
func (s *Actions) Concat(other *Actions) (*Actions, error) {
	if other == nil {
		return nil, core.ErrMissingParameter.WithMessage("nil scope")
	}
	res := s.Clone()
	res.root = s.root || other.root
	tail := res.last

	used := map[string]bool{}
	for _, n := range res.AllNames() {
		used[n] = true
	}
	for _, a := range other.order {
		c := a.Clone()
		for _, n := range Names(c) {
			if used[n] {
				return nil, core.ErrDuplicateName.WithSubject(n)
			}
			used[n] = true
		}
		if c.Type() == TypeInitializeVariable && !res.root {
			return nil, core.ErrRootOnly.WithSubject(c.Name())
		}
		runAfter := a.Base().RunAfter()
		if len(runAfter) == 0 && tail != nil {
			runAfter = map[string][]core.State{tail.Name(): core.DefaultStates()}
		}
		res.link(c, runAfter)
	}
	return res, nil
}

// Render returns the scope as an ordered actions object.
func (s *Actions) Render() *Block {
	blk := &Block{}
	for _, a := range s.order {
		blk.add(a.Name(), a.Render())
	}
	return blk
}

// LinkOption adjusts how an action is linked to its predecessor.
type LinkOption func(*link)

type link struct {
	states []core.State
	deps   []dependency
}

type dependency struct {
	name   string
	states []core.State
}

// ForceExec runs the action whatever the outcome of its predecessor.
func ForceExec() LinkOption {
	return func(l *link) { l.states = core.ForceStates() }
}

// ExecIfFailed runs the action only when its predecessor failed.
func ExecIfFailed() LinkOption {
	return func(l *link) { l.states = core.FailureStates() }
}

// DependsOn adds an explicit dependency on an earlier sibling. Explicit
// dependencies replace the declaration-order link. Without states the
// dependency waits for the states the other options select.
func DependsOn(name string, states ...core.State) LinkOption {
	return func(l *link) {
		l.deps = append(l.deps, dependency{name: name, states: states})
	}
}

// Block is a JSON object that keeps its keys in insertion order.
type Block struct {
	entries []blockEntry
}

type blockEntry struct {
	name  string
	value any
}

func (b *Block) add(name string, value any) {
	b.entries = append(b.entries, blockEntry{name: name, value: value})
}

// Len returns the number of entries.
func (b *Block) Len() int { return len(b.entries) }

// Names returns the keys in order.
func (b *Block) Names() []string {
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.name
	}
	return names
}

// Get returns the value stored under name.
func (b *Block) Get(name string) (any, bool) {
	for _, e := range b.entries {
		if e.name == name {
			return e.value, true
		}
	}
	return nil, false
}

// MarshalJSON implements json.Marshaler.
func (b *Block) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range b.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalRaw(e.name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := marshalRaw(e.value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// marshalRaw encodes v without HTML escaping. The enclosing encoder applies
// its own escaping to the result.
func marshalRaw(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
