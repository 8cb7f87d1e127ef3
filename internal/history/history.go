// Package history keeps a bounded ring of executed command lines for
// arrow-key recall. The engine is cooperative and single-threaded, so no
// locking is needed here.
package history

// History holds executed lines, oldest first, with a recall cursor. The
// cursor starts past the newest entry and moves with Previous/Next.
type History struct {
	entries []string
	max     int
	cursor  int
}

// New returns a history bounded to max entries.
func New(max int) *History {
	if max <= 0 {
		max = 1
	}
	return &History{max: max}
}

// Add appends one line, dropping the oldest entry on overflow. Consecutive
// duplicates are suppressed. The cursor is reset past the newest entry.
func (h *History) Add(line string) {
	if line == "" {
		return
	}
	if n := len(h.entries); n > 0 && h.entries[n-1] == line {
		h.cursor = n
		return
	}
	if len(h.entries) >= h.max {
		h.entries = h.entries[1:]
	}
	h.entries = append(h.entries, line)
	h.cursor = len(h.entries)
}

// Previous steps toward older entries. ok is false at the oldest entry or
// when the history is empty.
func (h *History) Previous() (string, bool) {
	if h.cursor == 0 {
		return "", false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Next steps toward newer entries; stepping past the newest reports an empty
// line once, restoring the blank input.
func (h *History) Next() (string, bool) {
	if h.cursor >= len(h.entries) {
		return "", false
	}
	h.cursor++
	if h.cursor == len(h.entries) {
		return "", true
	}
	return h.entries[h.cursor], true
}

// Reset moves the cursor past the newest entry.
func (h *History) Reset() {
	h.cursor = len(h.entries)
}

// Len reports the number of stored lines.
func (h *History) Len() int {
	return len(h.entries)
}

// Get returns the i-th stored line, oldest first, or "" out of range.
func (h *History) Get(i int) string {
	if i < 0 || i >= len(h.entries) {
		return ""
	}
	return h.entries[i]
}
