// Package cmdline implements the quoting-aware command-line tokenizer and
// its inverse formatter. Parsing never fails: every byte sequence, including
// unterminated quotes and dangling backslashes, has a defined result.
package cmdline

import "strings"

// Line is a tokenized command line: an ordered sequence of words (a word may
// be empty) plus whether the input ended with an unquoted trailing space.
type Line struct {
	Words         []string
	TrailingSpace bool
}

// Parse tokenizes text. Unquoted runs of spaces separate words and collapse;
// single and double quotes group literally; a backslash escapes space, quote
// and backslash bytes and is kept literally before anything else. An open
// quote is implicitly closed at end of input and a trailing unconsumed
// backslash is dropped.
func Parse(text string) Line {
	var (
		words    []string
		cur      strings.Builder
		started  bool // current word has content or saw a quote
		inDouble bool
		inSingle bool
		pending  bool // backslash waiting for the next byte
	)

	flush := func() {
		words = append(words, cur.String())
		cur.Reset()
		started = false
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]

		if pending {
			pending = false
			switch ch {
			case ' ', '"', '\'', '\\':
				cur.WriteByte(ch)
				started = true
				continue
			default:
				// Not an escapable byte: keep the backslash
				// literally and let ch take its normal path.
				cur.WriteByte('\\')
				started = true
			}
		}

		switch {
		case ch == '\\':
			pending = true
		case ch == '"' && !inSingle:
			inDouble = !inDouble
			started = true
		case ch == '\'' && !inDouble:
			inSingle = !inSingle
			started = true
		case ch == ' ' && !inSingle && !inDouble:
			// Unquoted runs of spaces collapse; a leading run
			// produces no word at all.
			if started {
				flush()
			}
		default:
			cur.WriteByte(ch)
			started = true
		}
	}

	if started {
		flush()
		return Line{Words: words}
	}
	return Line{Words: words, TrailingSpace: len(words) > 0}
}

// EscapeWord renders one word the way Format does: space, quote and
// backslash bytes get a backslash prefix and the empty word becomes "".
func EscapeWord(w string) string {
	if w == "" {
		return `""`
	}
	var b strings.Builder
	for i := 0; i < len(w); i++ {
		switch w[i] {
		case ' ', '"', '\'', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(w[i])
	}
	return b.String()
}

// Format renders the line as text. Re-parsing the result yields an equal
// Line, and formatting an already-canonical text is a fixed point.
func (l Line) Format() string {
	var b strings.Builder
	for i, w := range l.Words {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(EscapeWord(w))
	}
	if l.TrailingSpace {
		b.WriteByte(' ')
	}
	return b.String()
}

// Equal reports whether two lines hold the same words and trailing space.
func (l Line) Equal(o Line) bool {
	if l.TrailingSpace != o.TrailingSpace || len(l.Words) != len(o.Words) {
		return false
	}
	for i := range l.Words {
		if l.Words[i] != o.Words[i] {
			return false
		}
	}
	return true
}
