// Package validator checks flow files and rendered definitions without
// packaging them. YAML flow files are parsed and built; JSON files are
// checked as workflow definitions.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/flow"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of valid file paths in walk order.
	Files []string
	// Errors contains all validation errors found.
	Errors []error
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *Result) fail(file, format string, args ...interface{}) {
	r.Errors = append(r.Errors, &ValidationError{File: file, Message: fmt.Sprintf(format, args...)})
}

// Validator validates flow files.
type Validator struct {
	definitions bool
}

// New creates a new Validator. With definitions set, .json files are
// checked as workflow definitions; otherwise they are ignored when walking a
// directory.
func New(definitions bool) *Validator {
	return &Validator{definitions: definitions}
}

// Validate validates a file or directory.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.fail(path, "cannot access: %v", err)
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = v.collectFiles(path)
		if err != nil {
			result.fail(path, "failed to scan directory: %v", err)
			return result
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		if isJSON(file) {
			v.validateDefinitionFile(file, result)
		} else {
			v.validateFlowFile(file, result)
		}
	}
	logger.Debug("validated %s: %d files, %d errors", path, len(result.Files), len(result.Errors))
	return result
}

func isJSON(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".json"
}

// collectFiles finds all .yaml/.yml files in a directory, plus .json files
// when definitions are checked.
func (v *Validator) collectFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".yaml" || ext == ".yml" || (v.definitions && ext == ".json") {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

func (v *Validator) validateFlowFile(filePath string, result *Result) {
	doc, err := flow.ParseFile(filePath)
	if err != nil {
		result.fail(filePath, "parse error: %v", err)
		return
	}
	f, err := doc.Build()
	if err != nil {
		result.fail(filePath, "build error: %v", err)
		return
	}
	if err := f.Validate(); err != nil {
		result.fail(filePath, "invalid flow: %v", err)
		return
	}
	result.Files = append(result.Files, filePath)
}

func (v *Validator) validateDefinitionFile(filePath string, result *Result) {
	data, err := os.ReadFile(filePath) //#nosec G304 -- path is user-provided definition file
	if err != nil {
		result.fail(filePath, "failed to read file: %v", err)
		return
	}
	if err := ValidateDefinition(data); err != nil {
		result.fail(filePath, "invalid definition: %v", err)
		return
	}
	result.Files = append(result.Files, filePath)
}

// ValidateDefinition checks a rendered workflow definition. The
// definition.json of an import package is accepted too; its
// properties.definition is checked.
func ValidateDefinition(data []byte) error {
	if !gjson.ValidBytes(data) {
		return core.ErrInvalidDefinition.WithMessage("invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if def := root.Get("properties.definition"); def.IsObject() {
		root = def
	}
	if !root.IsObject() {
		return core.ErrInvalidDefinition.WithMessage("definition must be a JSON object")
	}
	if root.Get("$schema").String() != flow.Schema {
		return core.ErrInvalidDefinition.WithMessagef("unexpected $schema %q", root.Get("$schema").String())
	}
	if !root.Get("contentVersion").Exists() {
		return core.ErrInvalidDefinition.WithMessage("missing contentVersion")
	}

	triggers := root.Get("triggers")
	if !triggers.IsObject() || len(triggers.Map()) == 0 {
		return core.ErrMissingTrigger
	}
	var terr error
	triggers.ForEach(func(name, t gjson.Result) bool {
		if !t.Get("type").Exists() {
			terr = core.ErrInvalidDefinition.WithSubject(name.String()).WithMessage("trigger without type")
			return false
		}
		return true
	})
	if terr != nil {
		return terr
	}

	actions := root.Get("actions")
	if !actions.IsObject() {
		return core.ErrInvalidDefinition.WithMessage("actions must be a JSON object")
	}
	return checkScope(actions, map[string]bool{})
}

// checkScope checks one actions object and its nested scopes. Names must be
// unique across the definition; runAfter must name earlier siblings.
func checkScope(scope gjson.Result, names map[string]bool) error {
	var err error
	siblings := map[string]bool{}
	scope.ForEach(func(key, a gjson.Result) bool {
		name := key.String()
		switch {
		case names[name]:
			err = core.ErrDuplicateName.WithSubject(name)
		case !a.IsObject():
			err = core.ErrInvalidDefinition.WithSubject(name).WithMessage("action must be an object")
		case !a.Get("type").Exists():
			err = core.ErrInvalidDefinition.WithSubject(name).WithMessage("missing type")
		}
		if err != nil {
			return false
		}
		a.Get("runAfter").ForEach(func(dep, _ gjson.Result) bool {
			if !siblings[dep.String()] {
				err = core.ErrInvalidRunAfter.WithSubject(name).
					WithMessagef("runAfter references %q which is not an earlier sibling", dep.String())
				return false
			}
			return true
		})
		if err != nil {
			return false
		}
		names[name] = true
		siblings[name] = true

		for _, path := range []string{"actions", "else.actions"} {
			if nested := a.Get(path); nested.IsObject() {
				if err = checkScope(nested, names); err != nil {
					return false
				}
			}
		}
		return true
	})
	return err
}
