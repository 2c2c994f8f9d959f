package flow

import "testing"

func TestBaseStep_Type(t *testing.T) {
	b := BaseStep{StepType: StepInitVariable}
	if got := b.Type(); got != StepInitVariable {
		t.Errorf("Type()=%v, want %v", got, StepInitVariable)
	}
}

func TestBaseStep_Describe(t *testing.T) {
	tests := []struct {
		name     string
		stepType StepType
		stepName string
		expected string
	}{
		{"unnamed", StepListConnections, "", "listConnections"},
		{"named", StepInitVariable, "Init_a", "initVariable Init_a"},
		{"compound", StepIf, "Check", "if Check"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := BaseStep{StepType: tt.stepType, Name: tt.stepName}
			if got := b.Describe(); got != tt.expected {
				t.Errorf("Describe()=%q, want %q", got, tt.expected)
			}
		})
	}
}

func TestStepInterface(t *testing.T) {
	steps := []Step{
		&InitVariableStep{},
		&VariableStep{},
		&IfStep{},
		&ForeachStep{},
		&ScopeStep{},
		&UntilStep{},
		&SelectStep{},
		&TableStep{},
		&ComposeStep{},
		&FilterStep{},
		&JoinStep{},
		&AddToTimeStep{},
		&WaitStep{},
		&HTTPStep{},
		&OperationStep{},
		&CreateFlowStep{},
		&ApprovalStep{},
		&WaitForApprovalStep{},
	}
	for _, s := range steps {
		if s.Base() == nil {
			t.Errorf("%T: Base() returned nil", s)
		}
	}
}

func TestStepTypeConstants(t *testing.T) {
	for _, st := range []StepType{
		StepInitVariable, StepSetVariable, StepIf, StepForeach, StepScope, StepUntil,
		StepSelect, StepTable, StepCompose, StepFilter, StepJoin, StepAddToTime,
		StepWait, StepHTTP, StepOperation, StepCreateFlow, StepWaitForAnApproval,
	} {
		if !isStepType(string(st)) {
			t.Errorf("%q not recognized as a step type", st)
		}
	}
	if isStepType("tapOn") {
		t.Error("tapOn must not be a step type")
	}
}
