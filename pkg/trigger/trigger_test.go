package trigger

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/tidwall/gjson"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

func render(t *testing.T, tr Trigger) gjson.Result {
	t.Helper()
	data, err := json.Marshal(tr.Render())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return gjson.ParseBytes(data)
}

func TestManual_Render(t *testing.T) {
	tr, err := NewManual("Button")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := render(t, tr)
	if r.Get("type").String() != "Request" || r.Get("kind").String() != "Button" {
		t.Errorf("unexpected trigger: %s", r.Raw)
	}
	if r.Get("inputs.schema.type").String() != "object" {
		t.Errorf("unexpected schema: %s", r.Get("inputs.schema").Raw)
	}
	if r.Get("inputs.schema.properties").Raw != "{}" || r.Get("inputs.schema.required").Raw != "[]" {
		t.Errorf("expected empty schema, got %s", r.Get("inputs.schema").Raw)
	}
	if r.Get("metadata.operationMetadataId").String() != tr.OperationMetadataID() {
		t.Error("metadata id not rendered")
	}
	if r.Get("recurrence").Exists() {
		t.Error("manual trigger must not render a recurrence")
	}
}

func TestManual_Inputs(t *testing.T) {
	tr, _ := NewManual("Button")
	if err := tr.AddInput("email", InputString, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.AddInput("count", InputNumber, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := render(t, tr)
	if r.Get("inputs.schema.properties.email.type").String() != "string" {
		t.Errorf("unexpected properties: %s", r.Get("inputs.schema.properties").Raw)
	}
	if !r.Get(`inputs.schema.properties.count.x-ms-dynamically-added`).Bool() {
		t.Error("expected dynamically added flag")
	}
	if r.Get("inputs.schema.required").Raw != `["email"]` {
		t.Errorf("unexpected required: %s", r.Get("inputs.schema.required").Raw)
	}

	if err := tr.AddInput("email", InputString, false); !errors.Is(err, core.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got %v", err)
	}
	if err := tr.AddInput("file", InputType("file"), false); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
}

func TestRecurrence_Render(t *testing.T) {
	tr, err := NewRecurrence("Schedule", Hour, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := render(t, tr)
	if r.Get("type").String() != "Recurrence" {
		t.Errorf("unexpected type: %s", r.Get("type").String())
	}
	if r.Get("recurrence.frequency").String() != "Hour" || r.Get("recurrence.interval").Int() != 2 {
		t.Errorf("unexpected recurrence: %s", r.Get("recurrence").Raw)
	}
	if r.Get("kind").Exists() || r.Get("inputs").Exists() {
		t.Errorf("unexpected fields: %s", r.Raw)
	}
}

func TestRecurrence_Validation(t *testing.T) {
	if _, err := NewRecurrence("Schedule", Frequency("Fortnight"), 1); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := NewRecurrence("Schedule", Day, 0); !errors.Is(err, core.ErrInvalidParameter) {
		t.Errorf("expected ErrInvalidParameter, got %v", err)
	}
	if _, err := NewRecurrence("", Day, 1); !errors.Is(err, core.ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
	if _, err := NewManual(""); core.CategoryOf(err) != core.ErrCategoryValidation {
		t.Errorf("expected validation error, got %v", err)
	}
}
