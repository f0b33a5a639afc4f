package engine

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/action"
	"github.com/stevehiehn/greenscreen/internal/artifact"
	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/outcome"
	"github.com/stevehiehn/greenscreen/internal/screen"
	"github.com/stevehiehn/greenscreen/internal/template"
)

// Mode controls execution behavior.
type Mode int

const (
	ModeExplain Mode = iota
	ModeRun
)

// Execute validates a submission and, in ModeRun, drives the terminal
// through the screen's navigation steps. Validation, navigation and outcome
// failures are reported in the Result; the error return is reserved for
// broken screen definitions and local I/O problems.
func Execute(sc *screen.Screen, sub Submission, ctx *RunContext, mode Mode) (*Result, error) {
	if err := screen.Validate(sc); err != nil {
		return nil, err
	}
	set, err := sc.FieldSet()
	if err != nil {
		return nil, err
	}

	log := ctx.logger().With(zap.String("run_id", ctx.RunID), zap.String("screen", sc.Name))
	result := &Result{
		RunID:    ctx.RunID,
		Screen:   sc.Name,
		Success:  true,
		Messages: []string{},
	}

	values := sub.Values
	if values == nil {
		values = map[string]string{}
	}
	params := EffectiveParams(sc, sub)

	if !preflight(sc, set, values, params, result) {
		result.Outcome = outcome.Error
		result.Message = "Validation failed"
		log.Info("submission rejected", zap.Int("errors", len(result.Errors)))
		return result, nil
	}

	if mode == ModeExplain {
		return explain(sc, set, values, params, result)
	}

	if ctx.Terminal == nil {
		return nil, fmt.Errorf("run mode requires a terminal session")
	}

	var store *artifact.Store
	if ctx.WorkDir != "" {
		store, err = artifact.New(ctx.RunID, ctx.WorkDir)
		if err != nil {
			return nil, err
		}
		result.Artifacts = []string{store.BaseDir}
	}

	r := &run{
		ctx:    ctx,
		log:    log,
		screen: sc,
		set:    set,
		values: values,
		params: params,
		store:  store,
		result: result,
	}
	r.navigate()

	if store != nil {
		result.Artifacts = append(result.Artifacts, store.Files()...)
		if err := store.WriteResult(result); err != nil {
			log.Warn("writing result artifact", zap.Error(err))
		}
	}
	return result, nil
}

// EffectiveParams merges runtime parameters for a submission. Precedence,
// highest first: request params, submission data, screen defaults. Submission
// data only contributes names the steps reference or the identifier.
func EffectiveParams(sc *screen.Screen, sub Submission) template.Params {
	params := template.Params{}
	for k, v := range sc.Params {
		params[strings.ToLower(k)] = v
	}

	wanted := map[string]bool{sc.Identifier(): true}
	for _, s := range sc.Steps {
		for _, ref := range template.Refs(s.Value) {
			wanted[template.Key(ref)] = true
		}
	}
	for name := range wanted {
		if v, ok := sub.Values[name]; ok && v != "" {
			params[name] = v
		}
	}

	for k, v := range sub.Params {
		params[strings.ToLower(k)] = v
	}
	return params
}

// preflight runs every check that must pass before a keystroke is sent.
func preflight(sc *screen.Screen, set *field.Set, values map[string]string, params template.Params, result *Result) bool {
	ok, messages, errs := field.ValidateAllErrors(set, values)
	result.Messages = append(result.Messages, messages...)
	for _, err := range errs {
		result.fail(0, asRunError(err))
	}

	for _, err := range field.MissingRequired(set, values) {
		ok = false
		re := asRunError(err)
		result.Messages = append(result.Messages, "VALIDATION ERROR - "+re.Message)
		result.fail(0, re)
	}

	for _, name := range screen.MissingParams(sc, params) {
		ok = false
		msg := fmt.Sprintf("Missing runtime parameter %s", template.Key(name))
		result.Messages = append(result.Messages, "VALIDATION ERROR - "+msg)
		result.fail(0, &dagerrors.RunError{
			Type:    dagerrors.MissingParameter,
			Message: msg,
			Hint:    fmt.Sprintf("Pass %s as a runtime parameter or in the submission data", template.Key(name)),
		})
	}

	result.Success = ok
	return ok
}

func explain(sc *screen.Screen, set *field.Set, values map[string]string, params template.Params, result *Result) (*Result, error) {
	for _, s := range sc.Steps {
		sr := StepResult{Order: s.Order, Action: string(s.Action), Status: "explain", Description: s.Description}
		if s.Action == screen.ActionFormFill {
			plan := form.Plan(set, values)
			result.Plan = plan
			sr.Message = fmt.Sprintf("Fill %d fields on a screen containing %q and submit", set.Len(), s.Gate)
		} else {
			act, err := action.Get(string(s.Action))
			if err != nil {
				return nil, err
			}
			keys, err := act.Keys(s.Value, params)
			if err != nil {
				return nil, dagerrors.NewStepError(s.Order, err)
			}
			sr.Keys = form.Redact(keys)
			sr.Message = fmt.Sprintf("When the screen contains %q: %s", s.Gate, act.Summary(redactedPayload(s), params))
		}
		result.Steps = append(result.Steps, sr)
	}
	return result, nil
}

func redactedPayload(s screen.Step) string {
	if s.Action == screen.ActionCredentials {
		return ""
	}
	return s.Value
}

// run carries the state of one ModeRun pass over the navigation steps.
type run struct {
	ctx    *RunContext
	log    *zap.Logger
	screen *screen.Screen
	set    *field.Set
	values map[string]string
	params template.Params
	store  *artifact.Store
	result *Result
}

func (r *run) navigate() {
	term := r.ctx.Terminal
	finished := false

	for i, step := range r.screen.Steps {
		if finished {
			for _, rest := range r.screen.Steps[i:] {
				r.result.Steps = append(r.result.Steps, StepResult{
					Order:  rest.Order,
					Action: string(rest.Action),
					Status: "skipped",
				})
			}
			break
		}

		r.log.Info("executing step", zap.Int("step", step.Order), zap.String("action", string(step.Action)), zap.String("description", step.Description))
		start := time.Now()
		sr := StepResult{Order: step.Order, Action: string(step.Action), Description: step.Description}

		current, err := term.ScreenText()
		if err != nil {
			r.stepFailed(&sr, dagerrors.NewStepError(step.Order, err))
			finished = true
			continue
		}
		r.snapshot(artifact.StepName(step.Order, string(step.Action)), current)

		if !strings.Contains(current, step.Gate) {
			sr.Status = "skipped"
			sr.Message = fmt.Sprintf("Not on expected screen (looking for '%s'), skipping step...", step.Gate)
			r.log.Info("screen gate not matched", zap.Int("step", step.Order), zap.String("gate", step.Gate))
			r.result.Messages = append(r.result.Messages, sr.Message)
			r.result.Steps = append(r.result.Steps, sr)
			continue
		}

		if step.Action == screen.ActionFormFill {
			r.fill(&sr)
			sr.Duration = time.Since(start).Round(time.Millisecond).String()
			r.result.Steps = append(r.result.Steps, sr)
			finished = true
			continue
		}

		ok := r.act(step, &sr)
		sr.Duration = time.Since(start).Round(time.Millisecond).String()
		r.result.Steps = append(r.result.Steps, sr)
		if !ok {
			finished = true
		}
	}

	if r.result.Outcome == "" {
		msg := "Navigation ended without reaching the form"
		r.result.Outcome = outcome.Unknown
		r.result.Message = msg
		r.result.Messages = append(r.result.Messages, msg)
		r.result.fail(0, &dagerrors.RunError{
			Type:    dagerrors.UnknownOutcome,
			Message: msg,
			Hint:    "Check the screen gates against the step snapshots",
		})
	}
}

// act sends a non-terminal step's keystrokes, waits and scans for errors.
func (r *run) act(step screen.Step, sr *StepResult) bool {
	term := r.ctx.Terminal

	act, err := action.Get(string(step.Action))
	if err != nil {
		r.stepFailed(sr, dagerrors.NewStepError(step.Order, err))
		return false
	}
	keys, err := act.Keys(step.Value, r.params)
	if err != nil {
		r.stepFailed(sr, dagerrors.NewStepError(step.Order, err))
		return false
	}
	sr.Keys = form.Redact(keys)
	if err := form.Send(term, keys); err != nil {
		r.stepFailed(sr, dagerrors.NewStepError(step.Order, err))
		return false
	}
	r.log.Info(act.Summary(redactedPayload(step), r.params), zap.Int("step", step.Order))

	r.ctx.sleep(step.Wait())

	after, err := term.ScreenText()
	if err != nil {
		r.stepFailed(sr, dagerrors.NewStepError(step.Order, err))
		return false
	}
	if hasErr, msg := outcome.ScanErrors(after); hasErr {
		r.log.Error("error detected after step", zap.Int("step", step.Order), zap.String("message", msg))
		r.result.FinalScreen = after
		r.result.Outcome = outcome.Error
		r.result.Message = msg
		r.stepFailed(sr, &dagerrors.RunError{
			Type:    dagerrors.ClassifiedError,
			Step:    step.Order,
			Message: msg,
		})
		return false
	}

	sr.Status = "success"
	sr.Message = fmt.Sprintf("Step %d completed successfully", step.Order)
	r.result.Messages = append(r.result.Messages, sr.Message)
	return true
}

// fill runs the form filler and classifies the result screen.
func (r *run) fill(sr *StepResult) {
	filler := r.ctx.Filler
	if filler == nil {
		filler = form.NewFiller(r.log)
	}
	if r.store != nil {
		f := *filler
		f.Snapshots = r.store
		filler = &f
	}

	r.result.Plan = form.Plan(r.set, r.values)
	final, err := filler.Fill(r.ctx.Terminal, r.set, r.values)
	if err != nil {
		r.result.Outcome = outcome.Error
		re := asRunError(err)
		re.Step = sr.Order
		r.result.Message = re.Message
		r.stepFailed(sr, re)
		return
	}

	r.result.FinalScreen = final
	cls := outcome.Classify(final, r.params[r.screen.Identifier()])
	r.result.Outcome = cls.Verdict
	r.result.Message = cls.Message
	r.result.Messages = append(r.result.Messages, cls.Message)
	sr.Message = cls.Message
	r.log.Info("form result classified", zap.String("outcome", string(cls.Verdict)), zap.String("message", cls.Message))

	switch cls.Verdict {
	case outcome.Success:
		sr.Status = "success"
	case outcome.Error:
		sr.Status = "failed"
		r.result.fail(sr.Order, &dagerrors.RunError{
			Type:    dagerrors.ClassifiedError,
			Step:    sr.Order,
			Message: cls.Message,
		})
	default:
		sr.Status = "failed"
		r.result.fail(sr.Order, &dagerrors.RunError{
			Type:    dagerrors.UnknownOutcome,
			Step:    sr.Order,
			Message: cls.Message,
			Hint:    "Inspect the final screen to confirm whether the record was saved",
		})
	}
}

func (r *run) stepFailed(sr *StepResult, err *dagerrors.RunError) {
	sr.Status = "failed"
	sr.Message = err.Message
	r.result.Messages = append(r.result.Messages, err.Message)
	r.result.fail(sr.Order, err)
	r.log.Error("step failed", zap.Int("step", sr.Order), zap.String("type", err.Type), zap.String("message", err.Message))
	if r.result.Outcome == "" {
		r.result.Outcome = outcome.Error
		r.result.Message = err.Message
	}
}

func (r *run) snapshot(name, text string) {
	r.log.Debug("screen", zap.String("name", name), zap.String("text", text))
	if r.store == nil {
		return
	}
	if err := r.store.Snapshot(name, text); err != nil {
		r.log.Warn("saving screen snapshot", zap.String("name", name), zap.Error(err))
	}
}

func asRunError(err error) *dagerrors.RunError {
	if re, ok := err.(*dagerrors.RunError); ok {
		cp := *re
		return &cp
	}
	return &dagerrors.RunError{Type: dagerrors.StepExecutionError, Message: err.Error(), Err: err}
}
