package action

import "github.com/ntt-security-japan/gopowerautomate/pkg/core"

// DefaultBaseTime is the base time AddToTime uses when none is given.
const DefaultBaseTime = "@{utcNow()}"

// TimeUnit is a calendar unit accepted by the time actions.
type TimeUnit string

// Time units.
const (
	UnitSecond TimeUnit = "Second"
	UnitMinute TimeUnit = "Minute"
	UnitHour   TimeUnit = "Hour"
	UnitDay    TimeUnit = "Day"
	UnitWeek   TimeUnit = "Week"
	UnitMonth  TimeUnit = "Month"
)

// IsValid returns true for a known unit.
func (u TimeUnit) IsValid() bool {
	switch u {
	case UnitSecond, UnitMinute, UnitHour, UnitDay, UnitWeek, UnitMonth:
		return true
	}
	return false
}

// AddToTime adds an interval to a base time.
type AddToTime struct {
	BaseAction
	BaseTime string
	Interval int
	Unit     TimeUnit
}

// NewAddToTime creates an AddToTime expression action.
func NewAddToTime(name string, unit TimeUnit, interval int, baseTime string) (*AddToTime, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if !unit.IsValid() {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown time unit %q", unit)
	}
	if baseTime == "" {
		baseTime = DefaultBaseTime
	}
	return &AddToTime{BaseAction: base, BaseTime: baseTime, Interval: interval, Unit: unit}, nil
}

// Type implements Action.
func (a *AddToTime) Type() Type { return TypeExpression }

type addToTimeInputs struct {
	BaseTime string   `json:"baseTime"`
	Interval int      `json:"interval"`
	TimeUnit TimeUnit `json:"timeUnit"`
}

// Clone implements Action.
func (a *AddToTime) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	return &c
}

// Render implements Action.
func (a *AddToTime) Render() *Definition {
	d := a.definition(TypeExpression)
	d.Kind = "AddToTime"
	d.Inputs = addToTimeInputs{BaseTime: a.BaseTime, Interval: a.Interval, TimeUnit: a.Unit}
	return d
}

// Wait pauses the flow.
type Wait struct {
	BaseAction
	Count int
	Unit  TimeUnit
}

// NewWait creates a delay of count units.
func NewWait(name string, count int, unit TimeUnit) (*Wait, error) {
	base, err := newBase(name)
	if err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("wait count must be positive, got %d", count)
	}
	if !unit.IsValid() {
		return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown time unit %q", unit)
	}
	return &Wait{BaseAction: base, Count: count, Unit: unit}, nil
}

// Type implements Action.
func (a *Wait) Type() Type { return TypeWait }

type interval struct {
	Count int      `json:"count"`
	Unit  TimeUnit `json:"unit"`
}

type waitInputs struct {
	Interval interval `json:"interval"`
}

// Clone implements Action.
func (a *Wait) Clone() Action {
	c := *a
	c.BaseAction = a.clone()
	return &c
}

// Render implements Action.
func (a *Wait) Render() *Definition {
	d := a.definition(TypeWait)
	d.Inputs = waitInputs{Interval: interval{Count: a.Count, Unit: a.Unit}}
	return d
}
