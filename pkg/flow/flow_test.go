package flow

import (
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ntt-security-japan/gopowerautomate/pkg/action"
	"github.com/ntt-security-japan/gopowerautomate/pkg/condition"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/trigger"
)

func newFlow(t *testing.T) *Flow {
	t.Helper()
	tr, err := trigger.NewManual("Button")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f := New()
	f.SetTrigger(tr)
	return f
}

func mustRender(t *testing.T, f *Flow) gjson.Result {
	t.Helper()
	data, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gjson.ValidBytes(data) {
		t.Fatalf("invalid JSON: %s", data)
	}
	return gjson.ParseBytes(data)
}

func TestFlow_TwoActions(t *testing.T) {
	f := newFlow(t)
	a1, err := action.NewInitVariable("action1", "a", action.VarInteger, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a2, err := action.NewIncrementVariable("action2", "a", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AddTopAction(a1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(a2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := mustRender(t, f)
	if r.Get("$schema").String() != Schema || r.Get("contentVersion").String() != ContentVersion {
		t.Errorf("unexpected header: %s", r.Raw)
	}
	if r.Get(`parameters.\$connections.type`).String() != "Object" {
		t.Errorf("unexpected parameters: %s", r.Get("parameters").Raw)
	}
	if r.Get(`parameters.\$authentication.type`).String() != "SecureObject" {
		t.Errorf("unexpected parameters: %s", r.Get("parameters").Raw)
	}
	if r.Get("triggers.Button.kind").String() != "Button" {
		t.Errorf("unexpected triggers: %s", r.Get("triggers").Raw)
	}
	if got := r.Get("actions.action1.runAfter").Raw; got != "{}" {
		t.Errorf("action1 runAfter=%s, want {}", got)
	}
	if got := r.Get("actions.action2.runAfter").Raw; got != `{"action1":["Succeeded"]}` {
		t.Errorf("action2 runAfter=%s", got)
	}
	if r.Get("actions.action1.inputs.variables.0.type").String() != "integer" {
		t.Errorf("unexpected action1: %s", r.Get("actions.action1").Raw)
	}
	if r.Get("actions.action2.inputs.value").Int() != 2 {
		t.Errorf("unexpected action2: %s", r.Get("actions.action2").Raw)
	}

	var order []string
	r.Get("actions").ForEach(func(k, _ gjson.Result) bool {
		order = append(order, k.String())
		return true
	})
	if strings.Join(order, ",") != "action1,action2" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestFlow_Deterministic(t *testing.T) {
	f := newFlow(t)
	for i := 0; i < 5; i++ {
		c, _ := action.NewCompose("c"+strconv.Itoa(i), map[string]any{"z": i, "a": "x", "m": true})
		if err := f.AppendAction(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	first, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, _ := f.Render()
		if string(again) != string(first) {
			t.Fatal("render is not deterministic")
		}
	}
}

func TestFlow_MissingTrigger(t *testing.T) {
	f := New()
	if _, err := f.Render(); !errors.Is(err, core.ErrMissingTrigger) {
		t.Errorf("expected ErrMissingTrigger, got %v", err)
	}
}

func TestFlow_SetTriggerReplaces(t *testing.T) {
	f := newFlow(t)
	rec, _ := trigger.NewRecurrence("Schedule", trigger.Day, 1)
	f.SetTrigger(rec)
	r := mustRender(t, f)
	if r.Get("triggers.Button").Exists() || !r.Get("triggers.Schedule").Exists() {
		t.Errorf("unexpected triggers: %s", r.Get("triggers").Raw)
	}
}

func TestFlow_AppendInto(t *testing.T) {
	f := newFlow(t)
	cond := condition.MustParse("a > 1")
	check, _ := action.NewIf("Check", cond)
	if err := f.AppendAction(check); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	yes, _ := action.NewCompose("Yes", "big")
	if err := f.AppendInto("Check", action.BranchTrue, yes); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	no, _ := action.NewCompose("No", "small")
	if err := f.AppendInto("Check", action.BranchFalse, no); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, _ := action.NewCompose("AfterYes", "done")
	if err := f.AppendAfter(after, "Yes"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := mustRender(t, f)
	if !r.Get("actions.Check.actions.Yes").Exists() {
		t.Errorf("missing true branch: %s", r.Get("actions.Check").Raw)
	}
	if !r.Get("actions.Check.else.actions.No").Exists() {
		t.Errorf("missing false branch: %s", r.Get("actions.Check").Raw)
	}
	if got := r.Get("actions.Check.actions.AfterYes.runAfter").Raw; got != `{"Yes":["Succeeded"]}` {
		t.Errorf("AfterYes runAfter=%s", got)
	}
	if _, ok := f.Find("AfterYes"); !ok {
		t.Error("expected to find nested action")
	}
}

func TestFlow_AppendIntoErrors(t *testing.T) {
	f := newFlow(t)
	c, _ := action.NewCompose("Plain", 1)
	if err := f.AppendAction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	loop, _ := action.NewForeach("Loop", "@variables('list')")
	if err := f.AppendAction(loop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	child, _ := action.NewCompose("Child", 2)
	if err := f.AppendInto("Missing", action.BranchBody, child); !errors.Is(err, core.ErrActionNotFound) {
		t.Errorf("expected ErrActionNotFound, got %v", err)
	}
	if err := f.AppendInto("Plain", action.BranchBody, child); !errors.Is(err, core.ErrNotContainer) {
		t.Errorf("expected ErrNotContainer, got %v", err)
	}
	if err := f.AppendInto("Loop", "else", child); !errors.Is(err, core.ErrUnknownBranch) {
		t.Errorf("expected ErrUnknownBranch, got %v", err)
	}
	if err := f.AppendAfter(child, "Nowhere"); !errors.Is(err, core.ErrActionNotFound) {
		t.Errorf("expected ErrActionNotFound, got %v", err)
	}
	if child.Attached() {
		t.Error("failed attach must leave the action detached")
	}
}

func TestFlow_DuplicateAcrossScopes(t *testing.T) {
	f := newFlow(t)
	scope, _ := action.NewScope("Group")
	inner, _ := action.NewCompose("Shared", 1)
	if err := scope.Body().Append(inner); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(scope); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outer, _ := action.NewCompose("Shared", 2)
	if err := f.AppendAction(outer); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := f.AppendInto("Group", action.BranchBody, outer); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := f.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFlow_InitVariableRootOnly(t *testing.T) {
	f := newFlow(t)
	loop, _ := action.NewForeach("Loop", "@variables('list')")
	if err := f.AppendAction(loop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	v, _ := action.NewInitVariable("Init", "x", action.VarString, "")
	if err := f.AppendInto("Loop", action.BranchBody, v); !errors.Is(err, core.ErrRootOnly) {
		t.Errorf("expected ErrRootOnly, got %v", err)
	}
}

func TestFlow_LinkOptions(t *testing.T) {
	f := newFlow(t)
	a, _ := action.NewCompose("A", 1)
	b, _ := action.NewCompose("B", 2)
	c, _ := action.NewCompose("C", 3)
	if err := f.AddTopAction(a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(b, action.ExecIfFailed()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(c, action.ForceExec(), action.DependsOn("A"), action.DependsOn("B")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := mustRender(t, f)
	if got := r.Get("actions.B.runAfter.A").Raw; got != `["Failed"]` {
		t.Errorf("B runAfter=%s", got)
	}
	if got := r.Get("actions.C.runAfter.B").Raw; got != `["Succeeded","Failed","Skipped","TimedOut"]` {
		t.Errorf("C runAfter=%s", got)
	}
	if !r.Get("actions.C.runAfter.A").Exists() {
		t.Errorf("C must depend on A: %s", r.Get("actions.C.runAfter").Raw)
	}
}

func TestFlow_RenderXOR(t *testing.T) {
	f := newFlow(t)
	plain, err := f.Render()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enc, err := f.RenderXOR("1,2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := strings.Split(enc, ",")
	if len(parts) != len(plain) {
		t.Fatalf("expected %d numbers, got %d", len(plain), len(parts))
	}
	key := []int{1, 2}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("unexpected element %q", p)
		}
		if byte(n^key[i%2]) != plain[i] {
			t.Fatalf("byte %d does not decode", i)
		}
	}

	same, err := f.RenderXOR("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if same != string(plain) {
		t.Error("empty key must return plain JSON")
	}
}

func TestFlow_RenderXORASCII(t *testing.T) {
	f := newFlow(t)
	c, _ := action.NewCompose("Compose", "<caf\u00e9> \U0001F600")
	if err := f.AppendAction(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	enc, err := f.RenderXOR("0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sb strings.Builder
	for _, p := range strings.Split(enc, ",") {
		n, err := strconv.Atoi(p)
		if err != nil {
			t.Fatalf("unexpected element %q", p)
		}
		if n > 127 {
			t.Fatalf("non-ASCII byte %d in output", n)
		}
		sb.WriteByte(byte(n))
	}
	got := sb.String()
	if !strings.Contains(got, `"<caf\u00e9> \ud83d\ude00"`) {
		t.Errorf("unexpected encoding: %s", got)
	}
	if !gjson.Valid(got) {
		t.Fatalf("invalid JSON: %s", got)
	}
	inputs := gjson.Get(got, "actions.Compose.inputs").String()
	if inputs != "<caf\u00e9> \U0001F600" {
		t.Errorf("decoded inputs = %q", inputs)
	}
}

func TestFlow_ConnectionRefs(t *testing.T) {
	f := newFlow(t)
	envs, _ := action.NewListUserEnvironments("List_envs")
	list, _ := action.NewListConnections("List_connections")
	list.SetConnectionName("shared_flowmanagement-1")
	if err := f.AppendAction(envs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(list); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refs, err := f.ConnectionRefs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 2 || refs[0].Key != "shared_flowmanagement" || refs[1].Key != "shared_flowmanagement-1" {
		t.Errorf("unexpected refs %v", refs)
	}
	for _, r := range refs {
		if r.Connector != "shared_flowmanagement" {
			t.Errorf("unexpected connector for %s: %s", r.Key, r.Connector)
		}
	}
}

func TestParseXORKey(t *testing.T) {
	k, err := ParseXORKey(" 7, 255 ,0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(k) != 3 || k[0] != 7 || k[1] != 255 || k[2] != 0 {
		t.Errorf("unexpected key %v", k)
	}
	for _, bad := range []string{"a", "256", "-1", "1,,2"} {
		if _, err := ParseXORKey(bad); !errors.Is(err, core.ErrInvalidParameter) {
			t.Errorf("%q: expected ErrInvalidParameter, got %v", bad, err)
		}
	}
}

func TestFlow_Connectors(t *testing.T) {
	f := newFlow(t)
	envs, _ := action.NewListUserEnvironments("List_envs")
	approval, _ := action.NewStartAndWaitForAnApproval("Approve", "a@example.com")
	if err := f.AddTopAction(envs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := f.AppendAction(approval); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := f.Connectors()
	if strings.Join(got, ",") != "shared_approvals,shared_flowmanagement" {
		t.Errorf("unexpected connectors %v", got)
	}
}

func TestDocument_Build(t *testing.T) {
	yaml := `
name: Sample
trigger:
  inputs:
    - name: target
      required: true
connections:
  shared_flowmanagement: shared-flowmanagemen-1234
---
- initVariable:
    name: action1
    variable: a
    type: integer
    value: 1
    top: true
- incrementVariable:
    name: action2
    variable: a
    value: 2
- if:
    name: Check
    condition: a >= 3 and not done
    then:
      - listConnections: List
    else:
      - compose:
          name: Skip
          inputs: nothing
- compose:
    name: Always
    inputs: end
    after: action2
    forceExec: true
`
	doc, err := Parse([]byte(yaml), "sample.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f, err := doc.Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := mustRender(t, f)

	if got := r.Get("actions.action2.runAfter").Raw; got != `{"action1":["Succeeded"]}` {
		t.Errorf("action2 runAfter=%s", got)
	}
	if got := r.Get("actions.Check.runAfter").Raw; got != `{"action2":["Succeeded"]}` {
		t.Errorf("Check runAfter=%s", got)
	}
	if got := r.Get("actions.Always.runAfter.action2").Raw; got != `["Succeeded","Failed","Skipped","TimedOut"]` {
		t.Errorf("Always runAfter=%s", got)
	}
	if got := r.Get("actions.Check.actions.List.inputs.host.connectionName").String(); got != "shared_flowmanagement" {
		t.Errorf("unexpected connection name %q", got)
	}
	if r.Get("actions.Check.expression.and.0.greaterOrEquals").Raw == "" {
		t.Errorf("unexpected expression: %s", r.Get("actions.Check.expression").Raw)
	}
	if r.Get("triggers.Button.inputs.schema.required").Raw != `["target"]` {
		t.Errorf("unexpected trigger: %s", r.Get("triggers.Button").Raw)
	}
}

func TestDocument_BuildErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"duplicate", "- compose: A\n- compose: A\n", core.ErrDuplicateName},
		{"nested duplicate", "- compose: A\n- scope:\n    name: S\n    actions:\n      - compose: A\n", core.ErrDuplicateName},
		{"unknown after", "- compose:\n    name: A\n    after: Missing\n", core.ErrActionNotFound},
		{"bad variable type", "- initVariable:\n    name: I\n    variable: x\n    type: date\n", core.ErrInvalidParameter},
		{"bad condition", "- if:\n    name: C\n    condition: a >\n", core.ErrInvalidExpression},
		{"unknown operation", "- operation:\n    name: O\n    connector: shared_teams\n    operationId: Nope\n", core.ErrUnknownOperation},
		{"bad trigger", "trigger:\n  type: webhook\n---\n- compose: A\n", core.ErrInvalidParameter},
		{"nested root only", "- foreach:\n    name: L\n    items: x\n    actions:\n      - initVariable:\n          name: I\n          variable: x\n          type: string\n", core.ErrRootOnly},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml), "bad.yaml")
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			_, err = doc.Build()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) || parseErr.Path != "bad.yaml" {
				t.Errorf("expected ParseError for bad.yaml, got %v", err)
			}
		})
	}
}
