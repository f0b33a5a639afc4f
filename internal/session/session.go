// Package session defines the capability contract the automation engine
// expects from a terminal connection, plus the transports that implement it.
package session

import (
	"context"
	"errors"
)

// ErrNotConnected is returned by every terminal operation on a closed session.
var ErrNotConnected = errors.New("session: not connected")

// Terminal is the keyboard and screen surface the engine drives.
type Terminal interface {
	// ScreenText returns the decoded text of the current screen, one line
	// per terminal row.
	ScreenText() (string, error)
	SendText(text string) error
	SendTab() error
	SendEnter() error
	// MoveToFirstInput places the cursor in the first input-capable field.
	MoveToFirstInput() error
}

// Session is a Terminal with a connection lifecycle.
type Session interface {
	Terminal
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
}

// Key identifies a non-text keystroke.
type Key string

const (
	KeyTab   Key = "Tab"
	KeyEnter Key = "Enter"
	KeyHome  Key = "Home"
)
