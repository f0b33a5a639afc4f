package form

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dagerrors "github.com/stevehiehn/greenscreen/internal/errors"
	"github.com/stevehiehn/greenscreen/internal/field"
	"github.com/stevehiehn/greenscreen/internal/session"
)

// DefaultSettleDelay is how long the filler waits after submitting the form
// before reading the result screen.
const DefaultSettleDelay = time.Second

// Snapshotter captures screen text under a name, e.g. "before_submission".
type Snapshotter interface {
	Snapshot(name, screen string) error
}

// Filler populates and submits a form on a terminal.
type Filler struct {
	Logger      *zap.Logger
	SettleDelay time.Duration
	Sleep       func(time.Duration)
	Snapshots   Snapshotter
}

// NewFiller returns a Filler with the default settle delay.
func NewFiller(logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{Logger: logger, SettleDelay: DefaultSettleDelay, Sleep: time.Sleep}
}

// Fill moves to the first input field, types every field in declaration
// order, submits with enter and returns the resulting screen text. A session
// error aborts the fill; nothing is retried.
func (f *Filler) Fill(term session.Terminal, set *field.Set, values map[string]string) (string, error) {
	log := f.logger()
	log.Info("starting form fill", zap.Int("fields", set.Len()))

	if err := term.MoveToFirstInput(); err != nil {
		return "", fillError("", fmt.Errorf("moving to first input: %w", err))
	}

	plan := Plan(set, values)
	fields, submit := plan[:len(plan)-1], plan[len(plan)-1:]

	for _, r := range set.Rules() {
		value := values[r.Name]
		if value == "" {
			log.Debug("field empty", zap.String("field", r.Name), zap.Int("tabs", TabsAfter(r, value)))
			continue
		}
		log.Debug("field entered",
			zap.String("field", r.Name),
			zap.Int("length", len([]rune(value))),
			zap.Int("max_length", r.MaxLength),
			zap.Bool("auto_advance", field.WillAutoAdvance(r, value)),
			zap.Int("tabs", TabsAfter(r, value)))
	}

	if err := Send(term, fields); err != nil {
		var ke *KeyError
		name := ""
		if errors.As(err, &ke) {
			name = ke.Keystroke.Field
		}
		return "", fillError(name, err)
	}

	if f.Snapshots != nil {
		if screen, err := term.ScreenText(); err == nil {
			f.snapshot("before_submission", screen)
		}
	}

	if err := Send(term, submit); err != nil {
		return "", fillError("", fmt.Errorf("submitting form: %w", err))
	}
	log.Info("form submitted")

	f.sleep(f.SettleDelay)

	final, err := term.ScreenText()
	if err != nil {
		return "", fillError("", fmt.Errorf("reading result screen: %w", err))
	}
	f.snapshot("after_submission", final)
	log.Debug("screen after submission", zap.String("screen", final))
	return final, nil
}

func (f *Filler) snapshot(name, screen string) {
	if f.Snapshots == nil {
		return
	}
	if err := f.Snapshots.Snapshot(name, screen); err != nil {
		f.logger().Warn("saving screen snapshot", zap.String("name", name), zap.Error(err))
	}
}

func (f *Filler) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if f.Sleep != nil {
		f.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (f *Filler) logger() *zap.Logger {
	if f.Logger == nil {
		return zap.NewNop()
	}
	return f.Logger
}

func fillError(fieldName string, err error) *dagerrors.RunError {
	return &dagerrors.RunError{
		Type:    dagerrors.FormFillError,
		Field:   fieldName,
		Message: fmt.Sprintf("form fill failed: %v", err),
		Err:     err,
	}
}
