package engine

import (
	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/outcome"
)

// Submission is one request to fill a screen.
type Submission struct {
	Screen string            `json:"screen_name"`
	Values map[string]string `json:"data"`
	Params map[string]string `json:"params,omitempty"`
}

// Result is the structured output of a screen run.
type Result struct {
	RunID       string               `json:"run_id"`
	Screen      string               `json:"screen_name"`
	Success     bool                 `json:"success"`
	Outcome     outcome.Verdict      `json:"outcome,omitempty"`
	Message     string               `json:"message,omitempty"`
	FailedStep  int                  `json:"failed_step,omitempty"`
	Messages    []string             `json:"messages"`
	Steps       []StepResult         `json:"steps"`
	Plan        []form.Keystroke     `json:"form_plan,omitempty"`
	FinalScreen string               `json:"final_screen,omitempty"`
	Artifacts   []string             `json:"artifacts,omitempty"`
	Errors      []dagerrors.RunError `json:"errors,omitempty"`
}

// StepResult describes the outcome of a single navigation step.
type StepResult struct {
	Order       int              `json:"step_order"`
	Action      string           `json:"action_type"`
	Status      string           `json:"status"` // success, failed, skipped, explain
	Message     string           `json:"message,omitempty"`
	Description string           `json:"description,omitempty"`
	Keys        []form.Keystroke `json:"keys,omitempty"` // redacted
	Duration    string           `json:"duration,omitempty"`
}

func (r *Result) fail(step int, err *dagerrors.RunError) {
	r.Success = false
	if step != 0 && r.FailedStep == 0 {
		r.FailedStep = step
	}
	r.Errors = append(r.Errors, *err)
}
