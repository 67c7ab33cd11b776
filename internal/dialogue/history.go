package dialogue

import (
	"strings"

	"github.com/ashureev/willow-sdr/internal/domain"
)

// MaxHistory is the number of turns a session keeps.
const MaxHistory = 10

// History is the bounded, append-only turn log of one session.
// Only the most recent turns are retained; order is conversation order.
type History struct {
	turns []domain.Turn
	limit int
}

// NewHistory creates a history that keeps at most limit turns.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = MaxHistory
	}
	return &History{limit: limit}
}

// Append adds a turn and drops the oldest turns beyond the limit.
func (h *History) Append(role domain.Role, text string) {
	h.turns = append(h.turns, domain.Turn{Role: role, Text: text})
	if over := len(h.turns) - h.limit; over > 0 {
		// Copy so the backing array does not grow without bound.
		h.turns = append([]domain.Turn(nil), h.turns[over:]...)
	}
}

// Len returns the number of retained turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Snapshot returns a copy of the retained turns.
func (h *History) Snapshot() []domain.Turn {
	out := make([]domain.Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// LastUserText returns the text of the most recent user turn, if any.
func (h *History) LastUserText() string {
	for i := len(h.turns) - 1; i >= 0; i-- {
		if h.turns[i].Role == domain.RoleUser {
			return h.turns[i].Text
		}
	}
	return ""
}

// Reset drops all turns.
func (h *History) Reset() {
	h.turns = nil
}

// Labels maps roles to the names used when rendering a transcript.
type Labels struct {
	User string `yaml:"user"`
	Bot  string `yaml:"bot"`
}

func (l Labels) label(r domain.Role) string {
	if r == domain.RoleBot {
		return l.Bot
	}
	return l.User
}

// RenderTranscript renders turns as "<label>: <text>" lines in chronological order.
func RenderTranscript(turns []domain.Turn, labels Labels) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(labels.label(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}
