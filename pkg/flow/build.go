package flow

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ntt-security-japan/gopowerautomate/pkg/action"
	"github.com/ntt-security-japan/gopowerautomate/pkg/condition"
	"github.com/ntt-security-japan/gopowerautomate/pkg/connection"
	"github.com/ntt-security-japan/gopowerautomate/pkg/core"
	"github.com/ntt-security-japan/gopowerautomate/pkg/logger"
	"github.com/ntt-security-japan/gopowerautomate/pkg/trigger"
)

// DefaultTriggerName is used when the config document names no trigger.
const DefaultTriggerName = "Button"

// Build turns the document into a flow. Errors carry the file and line of
// the offending step.
func (d *Document) Build() (*Flow, error) {
	f := New()
	t, err := d.buildTrigger()
	if err != nil {
		return nil, &ParseError{Path: d.SourcePath, Message: err.Error(), Err: err}
	}
	f.SetTrigger(t)

	for _, s := range d.Steps {
		a, err := d.buildAction(s)
		if err != nil {
			return nil, d.stepError(s, err)
		}
		if err := attachRoot(f, a, s.Base()); err != nil {
			return nil, d.stepError(s, err)
		}
	}
	logger.Debug("built %s: %d root actions", d.SourcePath, f.Actions().Len())
	return f, nil
}

func (d *Document) stepError(s Step, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe
	}
	return &ParseError{
		Path:    d.SourcePath,
		Line:    s.Base().Line,
		Message: fmt.Sprintf("%s: %v", s.Describe(), err),
		Err:     err,
	}
}

func (d *Document) buildTrigger() (trigger.Trigger, error) {
	tc := d.Config.Trigger
	name := tc.Name
	if name == "" {
		name = DefaultTriggerName
	}
	switch strings.ToLower(tc.Type) {
	case "", "manual":
		m, err := trigger.NewManual(name)
		if err != nil {
			return nil, err
		}
		for _, in := range tc.Inputs {
			typ := trigger.InputType(in.Type)
			if typ == "" {
				typ = trigger.InputString
			}
			if err := m.AddInput(in.Name, typ, in.Required); err != nil {
				return nil, err
			}
		}
		return m, nil
	case "recurrence":
		interval := tc.Interval
		if interval == 0 {
			interval = 1
		}
		return trigger.NewRecurrence(name, trigger.Frequency(tc.Frequency), interval)
	}
	return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unknown trigger type %q", tc.Type)
}

func linkOptions(b *BaseStep) []action.LinkOption {
	var opts []action.LinkOption
	switch {
	case b.ForceExec:
		opts = append(opts, action.ForceExec())
	case b.ExecIfFailed:
		opts = append(opts, action.ExecIfFailed())
	}
	for _, dep := range b.DependsOn {
		opts = append(opts, action.DependsOn(dep))
	}
	return opts
}

func attachRoot(f *Flow, a action.Action, b *BaseStep) error {
	switch {
	case b.Top:
		return f.AddTopAction(a)
	case b.After != "":
		return f.AppendAfter(a, b.After, linkOptions(b)...)
	default:
		return f.AppendAction(a, linkOptions(b)...)
	}
}

func attachNested(scope *action.Actions, a action.Action, b *BaseStep) error {
	switch {
	case b.Top:
		return scope.AddTop(a)
	case b.After != "":
		return scope.AddAfter(a, b.After, linkOptions(b)...)
	default:
		return scope.Append(a, linkOptions(b)...)
	}
}

func (d *Document) buildInto(scope *action.Actions, steps []Step) error {
	for _, s := range steps {
		a, err := d.buildAction(s)
		if err != nil {
			return d.stepError(s, err)
		}
		if err := attachNested(scope, a, s.Base()); err != nil {
			return d.stepError(s, err)
		}
	}
	return nil
}

//nolint:gocyclo
func (d *Document) buildAction(s Step) (action.Action, error) {
	name := s.Base().Name
	if name == "" {
		name = string(s.Type())
	}
	switch st := s.(type) {
	case *InitVariableStep:
		return action.NewInitVariable(name, st.Variable, action.VariableType(st.VarType), st.Value)

	case *VariableStep:
		switch st.Type() {
		case StepSetVariable:
			return action.NewSetVariable(name, st.Variable, st.Value)
		case StepAppendToStringVariable:
			return action.NewAppendToStringVariable(name, st.Variable, st.Value)
		case StepIncrementVariable:
			return action.NewIncrementVariable(name, st.Variable, st.Value)
		default:
			return action.NewDecrementVariable(name, st.Variable, st.Value)
		}

	case *IfStep:
		cond, err := condition.Parse(st.Condition)
		if err != nil {
			return nil, err
		}
		a, err := action.NewIf(name, cond)
		if err != nil {
			return nil, err
		}
		if err := d.buildInto(a.True(), st.Then); err != nil {
			return nil, err
		}
		if err := d.buildInto(a.False(), st.Else); err != nil {
			return nil, err
		}
		return a, nil

	case *ForeachStep:
		a, err := action.NewForeach(name, st.Items)
		if err != nil {
			return nil, err
		}
		return a, d.buildInto(a.Body(), st.Steps)

	case *ScopeStep:
		src := st.Raw
		if st.RawFile != "" {
			data, err := os.ReadFile(ResolvePath(d.SourcePath, st.RawFile)) //#nosec G304 -- referenced by the flow file
			if err != nil {
				return nil, core.ErrReadInput.WithSubject(st.RawFile).WithCause(err)
			}
			src = string(data)
		}
		if src != "" {
			raw, err := action.NewRawActions([]byte(src))
			if err != nil {
				return nil, err
			}
			return action.NewRawScope(name, raw)
		}
		a, err := action.NewScope(name)
		if err != nil {
			return nil, err
		}
		return a, d.buildInto(a.Body(), st.Steps)

	case *UntilStep:
		a, err := action.NewUntil(name, st.Expression, st.Count)
		if err != nil {
			return nil, err
		}
		if st.Timeout != "" {
			a.Limit.Timeout = st.Timeout
		}
		return a, d.buildInto(a.Body(), st.Steps)

	case *SelectStep:
		return action.NewSelect(name, st.From, st.Select)

	case *TableStep:
		format := action.TableCSV
		if st.Format != "" {
			format = action.TableFormat(strings.ToUpper(st.Format))
		}
		return action.NewTable(name, st.From, format)

	case *ComposeStep:
		return action.NewCompose(name, st.Inputs)

	case *FilterStep:
		return action.NewFilter(name, st.From, st.Where)

	case *JoinStep:
		return action.NewJoin(name, st.From, st.JoinWith)

	case *AddToTimeStep:
		return action.NewAddToTime(name, action.TimeUnit(st.Unit), st.Interval, st.BaseTime)

	case *WaitStep:
		return action.NewWait(name, st.Count, action.TimeUnit(st.Unit))

	case *HTTPStep:
		method := st.Method
		if method == "" {
			method = "GET"
		}
		a, err := action.NewHTTP(name, st.URI, method)
		if err != nil {
			return nil, err
		}
		return a.SetHeaders(st.Headers).SetQueries(st.Queries).SetBody(st.Body).SetCookie(st.Cookie), nil

	case *OperationStep:
		op, err := d.buildOperation(name, st)
		if err != nil {
			return nil, err
		}
		if st.ConnectionName != "" {
			op.SetConnectionName(st.ConnectionName)
		}
		return op, nil

	case *CreateFlowStep:
		refs := connection.New()
		for _, c := range st.Connections {
			if err := refs.Add(c.Name, c.ID); err != nil {
				return nil, err
			}
		}
		return action.NewCreateFlow(name, st.DisplayName, st.Variable, refs)

	case *ApprovalStep:
		a, err := action.NewStartAndWaitForAnApproval(name, st.AssignedTo)
		if err != nil {
			return nil, err
		}
		if st.Title != "" {
			if err := a.Set("title", st.Title); err != nil {
				return nil, err
			}
		}
		return a, nil

	case *WaitForApprovalStep:
		return action.NewWaitForAnApproval(name, st.Approval)
	}
	return nil, core.ErrInvalidParameter.WithSubject(name).WithMessagef("unsupported step %s", s.Type())
}

func (d *Document) buildOperation(name string, st *OperationStep) (*action.Operation, error) {
	switch st.Type() {
	case StepListUserEnvironments:
		return action.NewListUserEnvironments(name)
	case StepListConnections:
		return action.NewListConnections(name)
	case StepDeleteFlow:
		return action.NewDeleteFlow(name)
	}
	return action.NewOperation(name, st.Connector, st.OperationID, st.Parameters)
}
