package registry

import (
	"strings"

	"github.com/TrailHuang/conshell/internal/cmdline"
	"github.com/TrailHuang/conshell/pkg/types"
)

// Complete computes tab completion for line under ctx/flags. It returns the
// replacement line the shell should adopt (possibly unchanged) and the help
// entries to display, in registration order. Command names in both are
// escaped the way Format renders them; placeholder text is opaque and never
// escaped.
func (r *Registry) Complete(ctx types.Context, flags types.Flags, line cmdline.Line) (cmdline.Line, []string) {
	confirmed, partial := splitLine(line)

	// Candidates whose names extend past the confirmed words, plus the
	// command the confirmed words spell out exactly (if any): that one is
	// complete here while longer siblings continue.
	var ext []*Command
	var exact *Command
	for _, c := range r.commands {
		if !c.visible(ctx, flags) || !namePrefixOf(c.name, confirmed) {
			continue
		}
		if len(c.name) > len(confirmed) {
			if strings.HasPrefix(c.name[len(confirmed)], partial) {
				ext = append(ext, c)
			}
		} else if len(c.name) == len(confirmed) && partial == "" && exact == nil {
			exact = c
		}
	}
	if len(ext) > 0 {
		return completeName(confirmed, ext, exact)
	}
	return r.completeArgs(ctx, flags, line, confirmed, partial)
}

// splitLine separates the in-progress token from the confirmed words. With a
// trailing space there is no in-progress token and the next token is empty.
func splitLine(line cmdline.Line) ([]string, string) {
	if line.TrailingSpace || len(line.Words) == 0 {
		return line.Words, ""
	}
	return line.Words[:len(line.Words)-1], line.Words[len(line.Words)-1]
}

func namePrefixOf(name, confirmed []string) bool {
	n := len(name)
	if len(confirmed) < n {
		n = len(confirmed)
	}
	for i := 0; i < n; i++ {
		if name[i] != confirmed[i] {
			return false
		}
	}
	return true
}

// completeName walks the name space below the confirmed words, extending the
// replacement as far as every candidate agrees character for character and
// stopping at the first decision point.
func completeName(confirmed []string, ext []*Command, ended *Command) (cmdline.Line, []string) {
	rep := append([]string(nil), confirmed...)
	pos := len(confirmed)
	var help []string

	for {
		if ended == nil && len(ext) == 1 {
			// Unique command: complete its whole remaining name.
			c := ext[0]
			rep = append(rep, c.name[pos:]...)
			if len(c.placeholders) == 0 {
				return cmdline.Line{Words: rep}, nil
			}
			return cmdline.Line{Words: rep, TrailingSpace: true},
				[]string{strings.Join(c.placeholders, " ")}
		}
		if ended != nil {
			// Decision point at a word boundary: one command is
			// complete here (empty help line, directly invocable)
			// while longer siblings continue.
			help = append(help, "")
			for _, c := range ext {
				help = append(help, nameSuffix(c, pos))
			}
			return cmdline.Line{Words: rep, TrailingSpace: true}, help
		}

		word := ext[0].name[pos]
		agreed := word
		full := true
		for _, c := range ext[1:] {
			agreed = commonPrefix(agreed, c.name[pos])
			if c.name[pos] != word {
				full = false
			}
		}
		if !full {
			// Divergence inside this word: keep what everybody
			// agrees on and list every remaining suffix.
			for _, c := range ext {
				help = append(help, nameSuffix(c, pos))
			}
			if agreed != "" {
				return cmdline.Line{Words: append(rep, agreed)}, help
			}
			return cmdline.Line{Words: rep, TrailingSpace: len(rep) > 0}, help
		}

		// The whole word is agreed by every candidate: advance.
		rep = append(rep, word)
		pos++
		longer := ext[:0]
		for _, c := range ext {
			if len(c.name) == pos {
				if ended == nil {
					ended = c
				}
			} else {
				longer = append(longer, c)
			}
		}
		ext = longer
		if len(ext) == 0 {
			// Every candidate ended on the same name.
			if len(ended.placeholders) == 0 {
				return cmdline.Line{Words: rep}, nil
			}
			return cmdline.Line{Words: rep, TrailingSpace: true},
				[]string{strings.Join(ended.placeholders, " ")}
		}
	}
}

// completeArgs completes within the argument region of the command the
// confirmed words identify, delegating candidates to the command's own
// completion callback.
func (r *Registry) completeArgs(ctx types.Context, flags types.Flags, line cmdline.Line, confirmed []string, partial string) (cmdline.Line, []string) {
	owners := r.Find(ctx, flags, confirmed, false)
	if len(owners) != 1 {
		return line, nil
	}
	cmd := owners[0]
	args := confirmed[len(cmd.name):]
	if len(args) >= cmd.maximum {
		return line, nil
	}
	if cmd.complete == nil {
		// No candidate source: show what the command still expects.
		return line, []string{strings.Join(cmd.placeholders[len(args):], " ")}
	}

	var cands []string
	for _, cand := range cmd.complete(append([]string(nil), args...), partial) {
		if partial == "" || strings.HasPrefix(cand, partial) {
			cands = append(cands, cand)
		}
	}
	switch {
	case len(cands) == 1 && partial != "":
		rep := append(append([]string(nil), confirmed...), cands[0])
		more := len(args)+1 < cmd.maximum
		return cmdline.Line{Words: rep, TrailingSpace: more}, nil
	case len(cands) > 0:
		rest := cmd.placeholders[len(args)+1:]
		help := make([]string, 0, len(cands))
		for _, cand := range cands {
			help = append(help, strings.Join(append([]string{cand}, rest...), " "))
		}
		return line, help
	}
	return line, nil
}

// nameSuffix renders a candidate's remaining name words, escaped as Format
// would, with its placeholder list appended as opaque text.
func nameSuffix(c *Command, pos int) string {
	parts := make([]string, 0, len(c.name)-pos+len(c.placeholders))
	for _, w := range c.name[pos:] {
		parts = append(parts, cmdline.EscapeWord(w))
	}
	parts = append(parts, c.placeholders...)
	return strings.Join(parts, " ")
}

func commonPrefix(a, b string) string {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return a[:i]
}
