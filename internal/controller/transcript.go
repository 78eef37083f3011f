package controller

import (
	"strings"
	"sync"
)

// transcriptCap is the maximum number of runes the perception transcript
// retains. Older text is evicted from the front.
const transcriptCap = 300

// Transcript is a bounded append-only text log. It keeps the newest
// transcriptCap runes of model speech; once older text has been evicted the
// rendered form carries a leading ellipsis.
type Transcript struct {
	mu        sync.Mutex
	runes     []rune
	truncated bool
}

// Append adds a transcription fragment, evicting from the front when the
// capacity is exceeded.
func (t *Transcript) Append(s string) {
	if s == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.runes = append(t.runes, []rune(s)...)
	if over := len(t.runes) - transcriptCap; over > 0 {
		t.runes = t.runes[over:]
		t.truncated = true
	}
}

// Boundary marks the end of a spoken turn by inserting a separating space,
// unless the log is empty or already ends with one.
func (t *Transcript) Boundary() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.runes) == 0 || t.runes[len(t.runes)-1] == ' ' {
		return
	}
	t.runes = append(t.runes, ' ')
	if over := len(t.runes) - transcriptCap; over > 0 {
		t.runes = t.runes[over:]
		t.truncated = true
	}
}

// String renders the log, with a leading ellipsis once front-eviction has
// occurred.
func (t *Transcript) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.truncated {
		return string(t.runes)
	}
	var b strings.Builder
	b.Grow(3 + len(t.runes))
	b.WriteString("...")
	b.WriteString(string(t.runes))
	return b.String()
}

// Reset clears the log for a new session.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runes = nil
	t.truncated = false
}
