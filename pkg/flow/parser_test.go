package flow

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ntt-security-japan/gopowerautomate/pkg/action"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

func TestParse_SimpleFlow(t *testing.T) {
	yaml := `
- initVariable:
    name: Init_a
    variable: a
    type: integer
    value: 1
- incrementVariable:
    name: Increment_a
    variable: a
    value: 2
- listConnections
`
	doc, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(doc.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(doc.Steps))
	}

	init, ok := doc.Steps[0].(*InitVariableStep)
	if !ok {
		t.Fatalf("expected InitVariableStep, got %T", doc.Steps[0])
	}
	if init.Name != "Init_a" || init.Variable != "a" || init.VarType != "integer" {
		t.Errorf("unexpected init step: %+v", init)
	}
	if v, ok := init.Value.(int); !ok || v != 1 {
		t.Errorf("expected value=1, got %#v", init.Value)
	}

	inc, ok := doc.Steps[1].(*VariableStep)
	if !ok {
		t.Fatalf("expected VariableStep, got %T", doc.Steps[1])
	}
	if inc.Type() != StepIncrementVariable {
		t.Errorf("expected incrementVariable, got %s", inc.Type())
	}

	list, ok := doc.Steps[2].(*OperationStep)
	if !ok {
		t.Fatalf("expected OperationStep, got %T", doc.Steps[2])
	}
	if list.Type() != StepListConnections || list.Name != "" {
		t.Errorf("unexpected scalar step: %+v", list)
	}
	if list.Line != 11 {
		t.Errorf("expected line 11, got %d", list.Line)
	}
}

func TestParse_WithConfig(t *testing.T) {
	yaml := `
name: Report Flow
trigger:
  type: recurrence
  name: Daily
  frequency: Day
  interval: 1
connections:
  shared_teams: shared-teams-1234
---
- deleteFlow: Delete_me
`
	doc, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Config.Name != "Report Flow" {
		t.Errorf("expected name=Report Flow, got %q", doc.Config.Name)
	}
	if doc.Config.Trigger.Type != "recurrence" || doc.Config.Trigger.Frequency != "Day" {
		t.Errorf("unexpected trigger config: %+v", doc.Config.Trigger)
	}
	if doc.Config.Connections["shared_teams"] != "shared-teams-1234" {
		t.Errorf("unexpected connections: %v", doc.Config.Connections)
	}
	if len(doc.Steps) != 1 || doc.Steps[0].Base().Name != "Delete_me" {
		t.Fatalf("expected scalar-named deleteFlow step, got %+v", doc.Steps)
	}
}

func TestParse_NestedSteps(t *testing.T) {
	yaml := `
- if:
    name: Check
    condition: a > 1
    then:
      - compose:
          name: Big
          inputs: big
    else:
      - foreach:
          name: Loop
          items: "@variables('list')"
          actions:
            - wait:
                name: Pause
                count: 5
                unit: Second
- until:
    name: Poll
    expression: "@equals(variables('done'), true)"
    count: 10
    actions:
      - http:
          name: Ping
          uri: https://example.com/ping
`
	doc, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ifStep, ok := doc.Steps[0].(*IfStep)
	if !ok {
		t.Fatalf("expected IfStep, got %T", doc.Steps[0])
	}
	if ifStep.Condition != "a > 1" {
		t.Errorf("unexpected condition %q", ifStep.Condition)
	}
	if len(ifStep.Then) != 1 || len(ifStep.Else) != 1 {
		t.Fatalf("expected 1 then and 1 else step, got %d/%d", len(ifStep.Then), len(ifStep.Else))
	}
	loop, ok := ifStep.Else[0].(*ForeachStep)
	if !ok {
		t.Fatalf("expected ForeachStep, got %T", ifStep.Else[0])
	}
	if len(loop.Steps) != 1 {
		t.Fatalf("expected 1 nested step, got %d", len(loop.Steps))
	}
	if w, ok := loop.Steps[0].(*WaitStep); !ok || w.Count != 5 || w.Unit != "Second" {
		t.Errorf("unexpected nested step: %#v", loop.Steps[0])
	}

	until, ok := doc.Steps[1].(*UntilStep)
	if !ok {
		t.Fatalf("expected UntilStep, got %T", doc.Steps[1])
	}
	if until.Count != 10 || len(until.Steps) != 1 {
		t.Errorf("unexpected until step: %+v", until)
	}
}

func TestParse_LinkFields(t *testing.T) {
	yaml := `
- compose:
    name: First
    inputs: 1
    top: true
- compose:
    name: Second
    inputs: 2
    after: First
    forceExec: true
- compose:
    name: Third
    inputs: 3
    dependsOn: [First, Second]
`
	doc, err := Parse([]byte(yaml), "test.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !doc.Steps[0].Base().Top {
		t.Error("expected top on First")
	}
	second := doc.Steps[1].Base()
	if second.After != "First" || !second.ForceExec {
		t.Errorf("unexpected link on Second: %+v", second.Link)
	}
	if deps := doc.Steps[2].Base().DependsOn; len(deps) != 2 || deps[1] != "Second" {
		t.Errorf("unexpected dependsOn: %v", deps)
	}
}

func TestParse_EmptyFlow(t *testing.T) {
	_, err := Parse([]byte(""), "test.yaml")
	if err == nil {
		t.Fatal("expected error for empty flow")
	}
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T", err)
	}
	if parseErr.Message != "empty flow file" {
		t.Errorf("expected 'empty flow file' error, got %q", parseErr.Message)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown step", `- notAValidStep: value`},
		{"unknown scalar", `- "just a string"`},
		{"invalid yaml", "- compose: [invalid\n  yaml: structure\n"},
		{"steps not a list", `compose: value`},
		{"step not mapping", `- [a, b]`},
		{"decode error", "- wait:\n    count: many\n"},
		{"nested error", "- scope:\n    name: S\n    actions:\n      - bogus: 1\n"},
		{"bad else", "- if:\n    condition: a\n    else: nope\n"},
		{"raw and actions", "- scope:\n    raw: '{}'\n    actions:\n      - compose: C\n"},
		{"too many documents", "name: a\n---\n- compose: C\n---\n- compose: D\n"},
		{"bad config", "name: [a\n---\n- compose: C\n"},
		{"config type mismatch", "trigger: manual\n---\n- compose: C\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "test.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected ParseError, got %T", err)
			}
		})
	}
}

func TestParseError_Error(t *testing.T) {
	tests := []struct {
		err      *ParseError
		expected string
	}{
		{&ParseError{Path: "flow.yaml", Line: 10, Message: "invalid step"}, "flow.yaml:10: invalid step"},
		{&ParseError{Path: "flow.yaml", Message: "empty"}, "flow.yaml: empty"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.expected {
			t.Errorf("Error()=%q, want %q", got, tt.expected)
		}
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.yaml")

	content := `- compose: Out`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Steps) != 1 {
		t.Errorf("expected 1 step, got %d", len(doc.Steps))
	}
	if doc.SourcePath != path {
		t.Errorf("expected sourcePath=%q, got %q", path, doc.SourcePath)
	}
}

func TestParseFile_NotFound(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/flow.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"flow1.yaml":        "- compose: A\n",
		"sub/flow2.yml":     "name: Two\n---\n- compose: B\n",
		"broken.yaml":       "- nope: 1\n",
		"notes.txt":         "- compose: C\n",
		"sub/deeper/x.yaml": "- listConnections\n",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}

	docs, err := ParseDirectory(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 documents, got %d", len(docs))
	}
}

func TestParseDirectory_NonExistent(t *testing.T) {
	_, err := ParseDirectory("/nonexistent/dir")
	if err == nil {
		t.Error("expected error for nonexistent directory")
	}
}

func TestDocument_BuildRawFile(t *testing.T) {
	dir := t.TempDir()
	raw := `{"Exported":{"type":"Compose","inputs":"x","runAfter":{},"metadata":{"operationMetadataId":"1"}}}`
	if err := os.WriteFile(filepath.Join(dir, "exported.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("failed to write raw file: %v", err)
	}
	path := filepath.Join(dir, "flow.yaml")
	content := "- scope:\n    name: Imported\n    rawFile: exported.json\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write flow file: %v", err)
	}

	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := doc.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, ok := f.Find("Imported")
	if !ok {
		t.Fatal("expected Imported scope")
	}
	s, ok := a.(*action.Scope)
	if !ok || s.Raw() == nil || s.Raw().Len() != 1 {
		t.Fatalf("expected raw scope with 1 action, got %#v", a)
	}

	missing, _ := Parse([]byte("- scope:\n    name: Gone\n    rawFile: missing.json\n"), path)
	if _, err := missing.Build(); !errors.Is(err, core.ErrReadInput) {
		t.Errorf("expected ErrReadInput, got %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	if got := ResolvePath("/flows/main.yaml", "raw/a.json"); got != filepath.Join("/flows", "raw", "a.json") {
		t.Errorf("ResolvePath()=%q", got)
	}
	if got := ResolvePath("/flows/main.yaml", "/abs/a.json"); got != "/abs/a.json" {
		t.Errorf("ResolvePath()=%q", got)
	}
}
