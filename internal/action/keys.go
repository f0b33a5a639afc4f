package action

import (
	"fmt"
	"strings"

	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/session"
	"github.com/stevehiehn/greenscreen/internal/template"
)

var enter = form.Keystroke{Key: session.KeyEnter}

// Credentials signs on: cursor home, username, tab, password, enter. The
// payload is "user,password". The username and password runtime parameters
// take precedence over the payload.
type Credentials struct{}

func (Credentials) Keys(payload string, params template.Params) ([]form.Keystroke, error) {
	user, pass, err := credentials(payload, params)
	if err != nil {
		return nil, err
	}
	return []form.Keystroke{
		{Key: session.KeyHome},
		{Text: user},
		{Key: session.KeyTab},
		{Text: pass, Secret: true},
		enter,
	}, nil
}

func (Credentials) Summary(string, template.Params) string {
	return "Entered credentials and submitted"
}

func credentials(payload string, params template.Params) (string, string, error) {
	user, userOK := params["username"]
	pass, passOK := params["password"]
	if userOK && passOK {
		return user, pass, nil
	}
	parts := strings.Split(payload, ",")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("credentials payload must be \"user,password\" (got %d parts)", len(parts))
	}
	if !userOK {
		v, err := template.Resolve(parts[0], params)
		if err != nil {
			return "", "", err
		}
		user = v
	}
	if !passOK {
		v, err := template.Resolve(parts[1], params)
		if err != nil {
			return "", "", err
		}
		pass = v
	}
	return user, pass, nil
}

// Enter presses enter.
type Enter struct{}

func (Enter) Keys(string, template.Params) ([]form.Keystroke, error) {
	return []form.Keystroke{enter}, nil
}

func (Enter) Summary(string, template.Params) string {
	return "Pressed Enter"
}

// Text types the resolved payload and presses enter. It serves both the
// command and option actions.
type Text struct {
	Label string
}

func (a Text) Keys(payload string, params template.Params) ([]form.Keystroke, error) {
	text, err := template.Resolve(payload, params)
	if err != nil {
		return nil, err
	}
	return []form.Keystroke{{Text: text}, enter}, nil
}

func (a Text) Summary(payload string, params template.Params) string {
	text, err := template.Resolve(payload, params)
	if err != nil {
		text = payload
	}
	return fmt.Sprintf("%s: %s", a.Label, text)
}

// OptionWithID splits the payload on commas, resolves each part and types
// them one after another before pressing enter, e.g. "{OPERATION},{COMPANY_ID}".
type OptionWithID struct{}

func (OptionWithID) Keys(payload string, params template.Params) ([]form.Keystroke, error) {
	parts, err := template.ResolveParts(payload, params)
	if err != nil {
		return nil, err
	}
	keys := make([]form.Keystroke, 0, len(parts)+1)
	for _, p := range parts {
		keys = append(keys, form.Keystroke{Text: p})
	}
	return append(keys, enter), nil
}

func (OptionWithID) Summary(payload string, params template.Params) string {
	parts, err := template.ResolveParts(payload, params)
	if err != nil {
		return fmt.Sprintf("Selected option with values: %s", payload)
	}
	return fmt.Sprintf("Selected option with values: %s", strings.Join(parts, ", "))
}
