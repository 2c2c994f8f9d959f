// Package trigger defines the entry points that start a flow.
package trigger

import (
	"github.com/google/uuid"

	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
)

// Trigger types.
const (
	TypeRequest    = "Request"
	TypeRecurrence = "Recurrence"
)

// Trigger starts a flow.
type Trigger interface {
	Name() string
	Type() string
	Render() *Definition
}

// Metadata is rendered under "metadata".
type Metadata struct {
	OperationMetadataID string `json:"operationMetadataId"`
}

// Recurrence is the schedule of a recurrence trigger.
type Recurrence struct {
	Frequency Frequency `json:"frequency"`
	Interval  int       `json:"interval"`
}

// Definition is the JSON form of a trigger.
type Definition struct {
	Metadata   Metadata    `json:"metadata"`
	Type       string      `json:"type"`
	Kind       string      `json:"kind,omitempty"`
	Inputs     any         `json:"inputs,omitempty"`
	Recurrence *Recurrence `json:"recurrence,omitempty"`
}

type base struct {
	name       string
	metadataID string
}

func newBase(name string) (base, error) {
	if name == "" {
		return base{}, core.ErrEmptyName.WithMessage("trigger name must not be empty")
	}
	return base{name: name, metadataID: uuid.NewString()}, nil
}

// Name returns the trigger name.
func (b *base) Name() string { return b.name }

// OperationMetadataID returns the id rendered under metadata.
func (b *base) OperationMetadataID() string { return b.metadataID }

// InputType is the type of a manual trigger input.
type InputType string

// Input types.
const (
	InputString  InputType = "string"
	InputNumber  InputType = "number"
	InputBoolean InputType = "boolean"
)

// Manual is a button trigger, optionally asking the user for inputs.
type Manual struct {
	base
	inputs   map[string]inputProperty
	required []string
}

type inputProperty struct {
	Title          string    `json:"title"`
	Type           InputType `json:"type"`
	DynamicallyAdd bool      `json:"x-ms-dynamically-added"`
}

// NewManual creates a button trigger.
func NewManual(name string) (*Manual, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	return &Manual{base: b, inputs: map[string]inputProperty{}}, nil
}

// AddInput declares an input the user fills in when starting the flow.
func (t *Manual) AddInput(name string, typ InputType, required bool) error {
	if name == "" {
		return core.ErrMissingParameter.WithSubject(t.name).WithMessage("missing input name")
	}
	switch typ {
	case InputString, InputNumber, InputBoolean:
	default:
		return core.ErrInvalidParameter.WithSubject(t.name).WithMessagef("unknown input type %q", typ)
	}
	if _, ok := t.inputs[name]; ok {
		return core.ErrDuplicateName.WithSubject(name).WithMessage("input already declared")
	}
	t.inputs[name] = inputProperty{Title: name, Type: typ, DynamicallyAdd: true}
	if required {
		t.required = append(t.required, name)
	}
	return nil
}

// Type implements Trigger.
func (t *Manual) Type() string { return TypeRequest }

type schema struct {
	Type       string                   `json:"type"`
	Properties map[string]inputProperty `json:"properties"`
	Required   []string                 `json:"required"`
}

type manualInputs struct {
	Schema schema `json:"schema"`
}

// Render implements Trigger.
func (t *Manual) Render() *Definition {
	props := make(map[string]inputProperty, len(t.inputs))
	for k, v := range t.inputs {
		props[k] = v
	}
	return &Definition{
		Metadata: Metadata{OperationMetadataID: t.metadataID},
		Type:     TypeRequest,
		Kind:     "Button",
		Inputs: manualInputs{Schema: schema{
			Type:       "object",
			Properties: props,
			Required:   append([]string{}, t.required...),
		}},
	}
}

// Frequency is the unit of a recurrence schedule.
type Frequency string

// Frequencies.
const (
	Second Frequency = "Second"
	Minute Frequency = "Minute"
	Hour   Frequency = "Hour"
	Day    Frequency = "Day"
	Week   Frequency = "Week"
	Month  Frequency = "Month"
)

// IsValid returns true for a frequency Power Automate schedules accept.
func (f Frequency) IsValid() bool {
	switch f {
	case Second, Minute, Hour, Day, Week, Month:
		return true
	}
	return false
}

// RecurrenceTrigger fires on a fixed schedule.
type RecurrenceTrigger struct {
	base
	Schedule Recurrence
}

// NewRecurrence creates a trigger firing every interval units of frequency.
func NewRecurrence(name string, frequency Frequency, interval int) (*RecurrenceTrigger, error) {
	b, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if !frequency.IsValid() {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown frequency %q", frequency)
	}
	if interval <= 0 {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("interval must be positive, got %d", interval)
	}
	return &RecurrenceTrigger{base: b, Schedule: Recurrence{Frequency: frequency, Interval: interval}}, nil
}

// Type implements Trigger.
func (t *RecurrenceTrigger) Type() string { return TypeRecurrence }

// Render implements Trigger.
func (t *RecurrenceTrigger) Render() *Definition {
	r := t.Schedule
	return &Definition{
		Metadata:   Metadata{OperationMetadataID: t.metadataID},
		Type:       TypeRecurrence,
		Recurrence: &r,
	}
}
