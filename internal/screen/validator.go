package screen

import (
	"fmt"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/template"
)

var knownActions = map[ActionKind]bool{
	ActionCredentials:  true,
	ActionEnter:        true,
	ActionCommand:      true,
	ActionOption:       true,
	ActionOptionWithID: true,
	ActionFormFill:     true,
}

// Validate checks a screen definition for structural correctness.
func Validate(sc *Screen) error {
	if sc.Name == "" {
		return dagerrors.NewValidationError("screen has no name", "")
	}

	if _, err := sc.FieldSet(); err != nil {
		return dagerrors.NewValidationError(fmt.Sprintf("screen %q: %v", sc.Name, err), "Field names must be unique")
	}
	for _, r := range sc.Fields {
		if err := r.Check(); err != nil {
			return dagerrors.NewValidationError(fmt.Sprintf("screen %q: %v", sc.Name, err), "")
		}
	}

	if len(sc.Steps) == 0 {
		return dagerrors.NewValidationError(fmt.Sprintf("screen %q has no navigation steps", sc.Name), "")
	}
	seen := map[int]bool{}
	for i, s := range sc.Steps {
		if seen[s.Order] {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Step:    s.Order,
				Message: fmt.Sprintf("duplicate step order %d", s.Order),
			}
		}
		seen[s.Order] = true

		if i > 0 && s.Order < sc.Steps[i-1].Order {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Step:    s.Order,
				Message: fmt.Sprintf("step %d is out of order", s.Order),
				Hint:    "Load screens through screen.Load or sort them with screen.SortSteps",
			}
		}

		if !knownActions[s.Action] {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Step:    s.Order,
				Message: fmt.Sprintf("unknown action %q", s.Action),
				Hint:    "Known actions: credentials, enter, command, option, option_with_id, form_fill",
			}
		}
		if (s.Action == ActionCommand || s.Action == ActionOption || s.Action == ActionOptionWithID) && s.Value == "" {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Step:    s.Order,
				Message: fmt.Sprintf("%s step requires a value", s.Action),
			}
		}
		if s.WaitSeconds < 0 {
			return &dagerrors.RunError{
				Type:    dagerrors.ValidationError,
				Step:    s.Order,
				Message: "wait must not be negative",
			}
		}
	}
	return nil
}

// Warnings reports problems that do not prevent a run but usually mean the
// screen will not finish with a classified outcome.
func Warnings(sc *Screen) []string {
	var warnings []string
	fills := 0
	for i, s := range sc.Steps {
		if s.Action != ActionFormFill {
			continue
		}
		fills++
		if i != len(sc.Steps)-1 {
			warnings = append(warnings, fmt.Sprintf("form_fill step %d is not the last step; later steps never run", s.Order))
		}
	}
	switch {
	case fills == 0:
		warnings = append(warnings, "no form_fill step; runs end without a classified outcome")
	case fills > 1:
		warnings = append(warnings, fmt.Sprintf("%d form_fill steps; only the first runs", fills))
	}
	return warnings
}

// MissingParams returns the placeholder names referenced by the steps that
// params cannot resolve. Credentials steps may rely on the username and
// password parameters instead of their payload, so they are skipped when
// both are present.
func MissingParams(sc *Screen, params template.Params) []string {
	seen := map[string]bool{}
	var missing []string
	for _, s := range sc.Steps {
		if s.Action == ActionCredentials && params["username"] != "" && params["password"] != "" {
			continue
		}
		for _, name := range template.Missing(s.Value, params) {
			if !seen[name] {
				seen[name] = true
				missing = append(missing, name)
			}
		}
	}
	return missing
}
