package form

import (
	"fmt"

	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/session"
)

// Keystroke is one entry of a form fill plan. Exactly one of Text or Key is set.
type Keystroke struct {
	Field string      `json:"field,omitempty"`
	Text  string      `json:"text,omitempty"`
	Key   session.Key `json:"key,omitempty"`
	// Secret text is masked whenever the keystroke is rendered.
	Secret bool `json:"secret,omitempty"`
}

func (k Keystroke) String() string {
	if k.Key != "" {
		return string(k.Key)
	}
	if k.Secret {
		return `"****"`
	}
	return fmt.Sprintf("%q", k.Text)
}

// Redact returns a copy of plan with secret text masked.
func Redact(plan []Keystroke) []Keystroke {
	out := make([]Keystroke, len(plan))
	for i, k := range plan {
		if k.Secret {
			k.Text = "****"
		}
		out[i] = k
	}
	return out
}

// TabsAfter returns how many tab keystrokes follow value for rule r.
func TabsAfter(r field.Rule, value string) int {
	if value == "" {
		return r.EmptyTabs()
	}
	if field.WillAutoAdvance(r, value) {
		// The auto-advance already moved the cursor one field.
		return max(r.TabsNeeded-1, 0)
	}
	return r.TabsNeeded
}

// Plan computes the keystrokes that populate every field of set with values
// and submit the form. Fields are visited in declaration order; a field with
// no submitted value is treated as empty.
func Plan(set *field.Set, values map[string]string) []Keystroke {
	var plan []Keystroke
	for _, r := range set.Rules() {
		value := values[r.Name]
		if value != "" {
			plan = append(plan, Keystroke{Field: r.Name, Text: value})
		}
		for i := 0; i < TabsAfter(r, value); i++ {
			plan = append(plan, Keystroke{Field: r.Name, Key: session.KeyTab})
		}
	}
	return append(plan, Keystroke{Key: session.KeyEnter})
}

// KeyError reports the keystroke a terminal rejected.
type KeyError struct {
	Keystroke Keystroke
	Err       error
}

func (e *KeyError) Error() string {
	if e.Keystroke.Field != "" {
		return fmt.Sprintf("field %s: sending %s: %v", e.Keystroke.Field, e.Keystroke, e.Err)
	}
	return fmt.Sprintf("sending %s: %v", e.Keystroke, e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// Send replays a plan against a terminal, stopping at the first failure.
func Send(term session.Terminal, plan []Keystroke) error {
	for _, k := range plan {
		var err error
		switch k.Key {
		case "":
			err = term.SendText(k.Text)
		case session.KeyTab:
			err = term.SendTab()
		case session.KeyEnter:
			err = term.SendEnter()
		case session.KeyHome:
			err = term.MoveToFirstInput()
		default:
			err = fmt.Errorf("unsupported key %q", k.Key)
		}
		if err != nil {
			return &KeyError{Keystroke: k, Err: err}
		}
	}
	return nil
}
