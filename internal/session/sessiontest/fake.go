// Package sessiontest provides a scripted in-memory terminal for tests.
package sessiontest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/stevehiehn/greenscreen/internal/session"
)

// Event is one recorded interaction with the fake terminal.
type Event struct {
	Kind string // text, tab, enter, home
	Text string
}

func (e Event) String() string {
	if e.Kind == "text" {
		return fmt.Sprintf("text(%q)", e.Text)
	}
	return e.Kind
}

// Fake is a Session whose screens advance one per Enter keystroke. After the
// last screen it keeps returning the last one.
type Fake struct {
	mu        sync.Mutex
	screens   []string
	pos       int
	connected bool
	events    []Event

	// FailOn makes the named operation (text, tab, enter, home, screen)
	// return FailErr once FailAfter calls of that kind have succeeded.
	FailOn    string
	FailAfter int
	FailErr   error
	calls     map[string]int
}

// New returns a connected Fake showing screens in order.
func New(screens ...string) *Fake {
	if len(screens) == 0 {
		screens = []string{""}
	}
	return &Fake{screens: screens, connected: true, calls: map[string]int{}}
}

var _ session.Session = (*Fake)(nil)

func (f *Fake) check(kind string) error {
	if !f.connected {
		return session.ErrNotConnected
	}
	n := f.calls[kind]
	f.calls[kind] = n + 1
	if f.FailOn == kind && n >= f.FailAfter {
		if f.FailErr != nil {
			return f.FailErr
		}
		return fmt.Errorf("sessiontest: %s failed", kind)
	}
	return nil
}

func (f *Fake) ScreenText() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("screen"); err != nil {
		return "", err
	}
	return f.screens[f.pos], nil
}

func (f *Fake) SendText(text string) error {
	return f.record(Event{Kind: "text", Text: text})
}

func (f *Fake) SendTab() error {
	return f.record(Event{Kind: "tab"})
}

func (f *Fake) SendEnter() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("enter"); err != nil {
		return err
	}
	f.events = append(f.events, Event{Kind: "enter"})
	if f.pos < len(f.screens)-1 {
		f.pos++
	}
	return nil
}

func (f *Fake) MoveToFirstInput() error {
	return f.record(Event{Kind: "home"})
}

func (f *Fake) record(e Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(e.Kind); err != nil {
		return err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *Fake) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *Fake) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *Fake) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

// Events returns a copy of the recorded interactions.
func (f *Fake) Events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]Event, len(f.events))
	copy(cp, f.events)
	return cp
}

// Transcript renders the recorded interactions as a single line, e.g.
// `home text("12") tab enter`.
func (f *Fake) Transcript() string {
	events := f.Events()
	parts := make([]string, len(events))
	for i, e := range events {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// Position returns the index of the screen currently shown.
func (f *Fake) Position() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos
}
