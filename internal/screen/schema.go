package screen

import (
	"time"

	"github.com/stevehiehn/greenscreen/internal/field"
)

// ActionKind selects how a navigation step drives the terminal.
type ActionKind string

const (
	ActionCredentials  ActionKind = "credentials"
	ActionEnter        ActionKind = "enter"
	ActionCommand      ActionKind = "command"
	ActionOption       ActionKind = "option"
	ActionOptionWithID ActionKind = "option_with_id"
	ActionFormFill     ActionKind = "form_fill"
)

// DefaultIdentifierParam names the runtime parameter that identifies the
// record a form submission creates.
const DefaultIdentifierParam = "company_id"

// Screen is the automation definition for one terminal form.
type Screen struct {
	Name        string `yaml:"name" json:"screen_name"`
	Description string `yaml:"description,omitempty" json:"description"`
	// Option is the menu option that reaches the screen.
	Option string `yaml:"option,omitempty" json:"option"`
	// IdentifierParam names the parameter the result classifier looks for
	// in "<id> added". Defaults to DefaultIdentifierParam.
	IdentifierParam string `yaml:"identifier_param,omitempty" json:"identifier_param,omitempty"`
	// Params are default runtime parameters, overridden per submission.
	Params map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Fields []field.Rule      `yaml:"fields" json:"field_configs"`
	Steps  []Step            `yaml:"steps" json:"navigation_steps"`
}

// Step is one screen-gated navigation action.
type Step struct {
	Order int `yaml:"order" json:"step_order"`
	// Gate must appear in the current screen text for the step to run.
	Gate        string     `yaml:"screen_contains" json:"screen_title_contains"`
	Action      ActionKind `yaml:"action" json:"action_type"`
	Value       string     `yaml:"value,omitempty" json:"action_value"`
	WaitSeconds int        `yaml:"wait,omitempty" json:"wait_time"`
	Description string     `yaml:"description,omitempty" json:"description"`
}

// Wait returns the post-action wait.
func (s Step) Wait() time.Duration {
	return time.Duration(s.WaitSeconds) * time.Second
}

// Identifier returns the identifier parameter name.
func (sc *Screen) Identifier() string {
	if sc.IdentifierParam != "" {
		return sc.IdentifierParam
	}
	return DefaultIdentifierParam
}

// FieldSet builds the ordered rule set for the screen's fields.
func (sc *Screen) FieldSet() (*field.Set, error) {
	return field.NewSet(sc.Fields)
}
