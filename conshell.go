// Package conshell is a library for building interactive command consoles
// on plain byte streams, in the style of a constrained-device debug shell:
// a quoting-aware command-line tokenizer, a registry of hierarchical
// multi-word commands with argument placeholders and tab completion, and a
// cooperative, non-blocking shell engine that can run nested sub-shells and
// poll long-running operations without stalling the host's main loop.
package conshell

import (
	"io"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/internal/logbus"
	"github.com/TrailHuang/conshell/internal/registry"
	"github.com/TrailHuang/conshell/internal/shell"
	"github.com/TrailHuang/conshell/internal/stream"
	"github.com/TrailHuang/conshell/pkg/types"
)

// Shared types.
type (
	Context      = types.Context
	Flags        = types.Flags
	Stream       = types.Stream
	Console      = types.Console
	Handler      = types.Handler
	CompleteFunc = types.CompleteFunc
	LogMessage   = types.LogMessage
)

// Core components.
type (
	Line      = cmdline.Line
	Registry  = registry.Registry
	Command   = registry.Command
	Shell     = shell.Shell
	Scheduler = shell.Scheduler
	Config    = shell.Config
	Mode      = shell.Mode
)

// Shell dispatch states.
const (
	ModeNormal   = shell.ModeNormal
	ModePassword = shell.ModePassword
	ModeBlocking = shell.ModeBlocking
	ModeDelay    = shell.ModeDelay
)

// Execution failures, as reported through the shell's output.
var (
	ErrCommandNotFound       = registry.ErrCommandNotFound
	ErrNotEnoughArguments    = registry.ErrNotEnoughArguments
	ErrTooManyArguments      = registry.ErrTooManyArguments
	ErrAmbiguousRegistration = registry.ErrAmbiguousRegistration
)

// Stream implementations.
type (
	BufferStream = stream.Buffer
	PipeStream   = stream.Pipe
	ConnStream   = stream.Conn
)

// Log collaborator.
type (
	LogHub   = logbus.Hub
	LogQueue = logbus.Queue
)

// Parse tokenizes a command line.
func Parse(text string) Line { return cmdline.Parse(text) }

// NewRegistry returns an empty command registry.
func NewRegistry() *Registry { return registry.New() }

// NewScheduler returns an empty active-shell registry.
func NewScheduler() *Scheduler { return shell.NewScheduler() }

// NewShell creates a shell bound to st and registers it with sched. Call
// Start on the result to make it live.
func NewShell(sched *Scheduler, reg *Registry, st Stream, cfg *Config) *Shell {
	return shell.New(sched, reg, st, cfg)
}

// DefaultConfig returns the stock shell settings.
func DefaultConfig() *Config { return shell.DefaultConfig() }

// NewBufferStream returns an in-memory stream, useful for tests and for
// embedding without a real transport.
func NewBufferStream() *BufferStream { return stream.NewBuffer() }

// NewPipeStream adapts a reader/writer pair (e.g. a raw-mode terminal).
func NewPipeStream(r io.Reader, w io.Writer) *PipeStream { return stream.NewPipe(r, w) }

// NewLogHub returns a log fan-out hub; use its Core method to feed it from a
// zap logger and pass it to shells via Config.Hub.
func NewLogHub() *LogHub { return logbus.NewHub() }
