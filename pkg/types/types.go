// Package types defines the shared types of the conshell library.
package types

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// Context partitions which commands are reachable (e.g. authenticated vs not).
type Context int

// Flags is a visibility bitmask. A command is visible when its flags are a
// subset of the shell's active flags.
type Flags uint32

// Stream is the byte transport a shell reads from and writes to. The engine
// never assumes buffering beyond one byte of read-ahead.
type Stream interface {
	Available() bool
	Peek() (byte, bool)
	ReadByte() (byte, bool)
	Write(p []byte) (int, error)
}

// Console is the surface a shell exposes to command handlers.
type Console interface {
	Write(p []byte) (int, error)
	Printf(format string, args ...interface{})
	Println(args ...interface{})
	Stream() Stream

	Context() Context
	SetContext(c Context)
	Flags() Flags
	SetFlags(f Flags)

	// EnterPassword collects one unechoed line and hands it to done.
	EnterPassword(done func(completed bool, entry string))
	// Block polls fn once per scheduling quantum until it returns true.
	Block(poll func(stop bool) bool)
	// Delay runs fn once d has elapsed, ignoring input meanwhile.
	Delay(d time.Duration, fn func())
	DelayUntil(deadline time.Time, fn func())

	Stop()
	Running() bool
}

// Handler executes one command with its positional argument values.
type Handler func(c Console, args []string) error

// CompleteFunc returns completion candidates for the next argument, given
// the already-confirmed argument values and the partial token being typed.
type CompleteFunc func(confirmed []string, partial string) []string

// LogMessage is one entry of the log collaborator's notification channel.
type LogMessage struct {
	Time   time.Time
	Level  zapcore.Level
	Source string
	Text   string
}
