package engine

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stevehiehn/greenscreen/internal/form"
	"github.com/stevehiehn/greenscreen/internal/session"
)

// RunContext holds state for one screen automation run.
type RunContext struct {
	RunID    string
	WorkDir  string // artifact root; empty disables snapshots
	Terminal session.Terminal
	Logger   *zap.Logger
	// Sleep replaces time.Sleep for post-action waits.
	Sleep  func(time.Duration)
	Filler *form.Filler
}

// NewRunContext creates a new execution context.
func NewRunContext(term session.Terminal, workDir string, logger *zap.Logger) *RunContext {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunContext{
		RunID:    uuid.New().String(),
		WorkDir:  workDir,
		Terminal: term,
		Logger:   logger,
		Sleep:    time.Sleep,
		Filler:   form.NewFiller(logger),
	}
}

func (c *RunContext) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *RunContext) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}
