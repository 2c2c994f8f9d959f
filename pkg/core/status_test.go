package core

import "testing"

func TestState_IsValid(t *testing.T) {
	valid := []State{
		StateAborted, StateCancelled, StateFailed, StateFaulted, StateIgnored, StatePaused,
		StateRunning, StateSkipped, StateSucceeded, StateSuspended, StateTimedOut, StateWaiting,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("State(%s).IsValid() = false, want true", s)
		}
	}

	for _, s := range []State{"", "succeeded", "Done"} {
		if s.IsValid() {
			t.Errorf("State(%q).IsValid() = true, want false", s)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	terminal := []State{StateSucceeded, StateFailed, StateSkipped, StateTimedOut, StateCancelled}
	nonTerminal := []State{StateRunning, StateWaiting, StatePaused, StateSuspended}

	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("State(%s).IsTerminal() = false, want true", s)
		}
	}
	for _, s := range nonTerminal {
		if s.IsTerminal() {
			t.Errorf("State(%s).IsTerminal() = true, want false", s)
		}
	}
}

func TestStateSets(t *testing.T) {
	if got := DefaultStates(); len(got) != 1 || got[0] != StateSucceeded {
		t.Errorf("DefaultStates() = %v", got)
	}
	if got := FailureStates(); len(got) != 1 || got[0] != StateFailed {
		t.Errorf("FailureStates() = %v", got)
	}
	force := ForceStates()
	want := []State{StateSucceeded, StateFailed, StateSkipped, StateTimedOut}
	if len(force) != len(want) {
		t.Fatalf("ForceStates() = %v, want %v", force, want)
	}
	for i := range want {
		if force[i] != want[i] {
			t.Errorf("ForceStates()[%d] = %s, want %s", i, force[i], want[i])
		}
	}
}

func TestErrorCategory_String(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		expected string
	}{
		{ErrCategoryNone, "none"},
		{ErrCategoryValidation, "validation"},
		{ErrCategoryLookup, "lookup"},
		{ErrCategoryIO, "io"},
		{ErrorCategory(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.category.String(); got != tt.expected {
			t.Errorf("ErrorCategory(%d).String() = %q, want %q", tt.category, got, tt.expected)
		}
	}
}
