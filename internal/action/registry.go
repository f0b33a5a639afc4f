package action

import (
	"fmt"
	"sort"

	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/template"
)

// Action turns a navigation step payload into keystrokes.
type Action interface {
	// Keys resolves payload against params and returns the keystrokes the
	// step sends. It never touches a terminal.
	Keys(payload string, params template.Params) ([]form.Keystroke, error)
	// Summary is a one-line log description of what the step did.
	Summary(payload string, params template.Params) string
}

var registry = map[string]Action{}

func init() {
	registry["credentials"] = Credentials{}
	registry["enter"] = Enter{}
	registry["command"] = Text{Label: "Executed command"}
	registry["option"] = Text{Label: "Selected option"}
	registry["option_with_id"] = OptionWithID{}
}

// Get returns an action by name.
func Get(name string) (Action, error) {
	a, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown action %q", name)
	}
	return a, nil
}

// Known returns true if the action name is registered.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Names returns the registered action names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
