// Package registry implements the command table: registration, matching,
// execution and tab completion against tokenized command lines.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/pkg/types"
)

// Execution failures. All are non-fatal and meant to be reported back
// through the shell's output.
var (
	ErrCommandNotFound       = errors.New("unknown command")
	ErrNotEnoughArguments    = errors.New("not enough arguments")
	ErrTooManyArguments      = errors.New("too many arguments")
	ErrAmbiguousRegistration = errors.New("ambiguous command registration")
)

// Command is one registered command: a multi-word literal name (a single
// name word may itself contain spaces), a placeholder per argument position,
// a handler and an optional argument-completion callback. Immutable once
// registered.
type Command struct {
	name         []string
	placeholders []string
	handler      types.Handler
	complete     types.CompleteFunc
	context      types.Context
	flags        types.Flags
	minimum      int
	maximum      int
}

// Name returns a copy of the command's literal name words.
func (c *Command) Name() []string {
	return append([]string(nil), c.name...)
}

// Placeholders returns a copy of the command's argument placeholders.
func (c *Command) Placeholders() []string {
	return append([]string(nil), c.placeholders...)
}

func (c *Command) visible(ctx types.Context, flags types.Flags) bool {
	return c.context == ctx && c.flags&flags == c.flags
}

// Registry is an insertion-ordered collection of commands. It owns the
// commands; many shells may share one registry.
type Registry struct {
	commands []*Command
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{}
}

// Add registers a command under the given context and visibility flags. A
// placeholder starting with '<' marks a required argument, anything else is
// optional. complete may be nil.
func (r *Registry) Add(ctx types.Context, flags types.Flags, name []string, placeholders []string, handler types.Handler, complete types.CompleteFunc) error {
	if len(name) == 0 || name[0] == "" {
		return errors.New("registry: command name must not be empty")
	}
	cmd := &Command{
		name:         append([]string(nil), name...),
		placeholders: append([]string(nil), placeholders...),
		handler:      handler,
		complete:     complete,
		context:      ctx,
		flags:        flags,
		maximum:      len(placeholders),
	}
	for _, p := range placeholders {
		if strings.HasPrefix(p, "<") {
			cmd.minimum++
		}
	}
	r.commands = append(r.commands, cmd)
	return nil
}

// Find returns the commands visible under ctx/flags whose names match words
// positionally. With partial set, the last line word may also be a prefix of
// the corresponding name word, and names longer than the line still match.
// Only commands of the longest matching name length are kept: a shorter
// command that is a prefix of a longer sibling is discarded.
func (r *Registry) Find(ctx types.Context, flags types.Flags, words []string, partial bool) []*Command {
	var out []*Command
	longest := 0
	for _, c := range r.commands {
		if !c.visible(ctx, flags) {
			continue
		}
		if partial {
			if !matchPartial(c.name, words) {
				continue
			}
		} else if !matchExact(c.name, words) {
			continue
		}
		if len(c.name) > longest {
			longest = len(c.name)
			out = out[:0]
		}
		if len(c.name) == longest {
			out = append(out, c)
		}
	}
	return out
}

func matchExact(name, words []string) bool {
	if len(name) > len(words) {
		return false
	}
	for i := range name {
		if name[i] != words[i] {
			return false
		}
	}
	return true
}

func matchPartial(name, words []string) bool {
	n := len(name)
	if len(words) < n {
		n = len(words)
	}
	for i := 0; i < n; i++ {
		if name[i] == words[i] {
			continue
		}
		// The last line word may be a strict prefix of the name word,
		// but only when nothing follows it.
		return i == len(words)-1 && strings.HasPrefix(name[i], words[i])
	}
	return true
}

// Execute matches line against the registry and runs the resulting command's
// handler with the trailing words as arguments. A matched command that has a
// longer sibling rejects trailing tokens: they cannot be told apart from the
// sibling's name words.
func (r *Registry) Execute(c types.Console, ctx types.Context, flags types.Flags, line cmdline.Line) error {
	cands := r.Find(ctx, flags, line.Words, false)
	switch {
	case len(cands) == 0:
		return fmt.Errorf("%w: %s", ErrCommandNotFound, line.Format())
	case len(cands) > 1:
		return fmt.Errorf("%w: %s", ErrAmbiguousRegistration, strings.Join(cands[0].name, " "))
	}
	cmd := cands[0]
	args := line.Words[len(cmd.name):]
	if len(args) > 0 && len(r.Find(ctx, flags, line.Words[:len(cmd.name)], true)) > 1 {
		return fmt.Errorf("%w: %s", ErrCommandNotFound, line.Format())
	}
	if len(args) < cmd.minimum {
		return fmt.Errorf("%w: %s expects at least %d", ErrNotEnoughArguments, strings.Join(cmd.name, " "), cmd.minimum)
	}
	if len(args) > cmd.maximum {
		return fmt.Errorf("%w: %s takes at most %d", ErrTooManyArguments, strings.Join(cmd.name, " "), cmd.maximum)
	}
	return cmd.handler(c, args)
}
