package action

import (
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// RawActions wraps an actions object taken from an exported definition so it
// can be embedded in a Scope unchanged.
type RawActions struct {
	block *Block
}

// NewRawActions validates data: a non-empty JSON object whose entries are
// objects with "type" and "metadata", no name repeats, and every runAfter
// key names an earlier entry.
func NewRawActions(data []byte) (*RawActions, error) {
	if !gjson.ValidBytes(data) {
		return nil, core.ErrInvalidDefinition.WithMessage("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, core.ErrInvalidDefinition.WithMessage("actions must be a JSON object")
	}

	var verr error
	seen := map[string]bool{}
	blk := &Block{}
	root.ForEach(func(key, value gjson.Result) bool {
		name := key.String()
		switch {
		case seen[name]:
			verr = core.ErrDuplicateName.WithSubject(name)
		case !value.IsObject():
			verr = core.ErrInvalidDefinition.WithSubject(name).WithMessage("action must be an object")
		case !value.Get("type").Exists():
			verr = core.ErrInvalidDefinition.WithSubject(name).WithMessage("missing type")
		case !value.Get("metadata").Exists():
			verr = core.ErrInvalidDefinition.WithSubject(name).WithMessage("missing metadata")
		}
		if verr != nil {
			return false
		}
		value.Get("runAfter").ForEach(func(dep, _ gjson.Result) bool {
			if !seen[dep.String()] {
				verr = core.ErrInvalidRunAfter.WithSubject(name).
					WithMessagef("depends on %q which is not declared earlier", dep.String())
				return false
			}
			return true
		})
		if verr != nil {
			return false
		}
		seen[name] = true
		blk.add(name, json.RawMessage(value.Raw))
		return true
	})
	if verr != nil {
		return nil, verr
	}
	if blk.Len() == 0 {
		return nil, core.ErrInvalidDefinition.WithMessage("no actions")
	}
	return &RawActions{block: blk}, nil
}

// Names returns the wrapped action names in order.
func (r *RawActions) Names() []string { return r.block.Names() }

// Len returns the number of wrapped actions.
func (r *RawActions) Len() int { return r.block.Len() }

// Render returns the wrapped actions.
func (r *RawActions) Render() *Block { return r.block }
