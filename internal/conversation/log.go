package conversation

import (
	"fmt"
	"strings"
)

// Speaker identifies who produced a conversation turn.
type Speaker string

const (
	SpeakerAgent Speaker = "agent"
	SpeakerUser  Speaker = "user"
)

// Turn is one immutable utterance in a call. Sequence numbers are assigned by
// the log and strictly increase in append order.
type Turn struct {
	Speaker  Speaker
	Text     string
	Sequence int
}

// OrderingError reports a turn whose sequence conflicts with the log's order.
type OrderingError struct {
	Want int
	Got  int
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("conversation: out-of-order turn: want sequence %d, got %d", e.Want, e.Got)
}

// Log is the append-only ordered transcript of a single call. It is owned by
// one CallSession and is not safe for concurrent use on its own; the session
// serializes access.
type Log struct {
	turns []Turn
	next  int
}

func NewLog() *Log {
	return &Log{}
}

// Append adds a turn, auto-assigning the next sequence number when the turn's
// Sequence is zero. A non-zero sequence that does not match the expected next
// value is rejected with an OrderingError.
func (l *Log) Append(t Turn) error {
	if t.Sequence != 0 && t.Sequence != l.next+1 {
		return &OrderingError{Want: l.next + 1, Got: t.Sequence}
	}
	l.next++
	t.Sequence = l.next
	l.turns = append(l.turns, t)
	return nil
}

// AddAgentTurn appends an agent utterance.
func (l *Log) AddAgentTurn(text string) {
	_ = l.Append(Turn{Speaker: SpeakerAgent, Text: text})
}

// AddUserTurn appends a caller utterance.
func (l *Log) AddUserTurn(text string) {
	_ = l.Append(Turn{Speaker: SpeakerUser, Text: text})
}

// Len reports how many turns the log holds.
func (l *Log) Len() int {
	return len(l.turns)
}

// Turns returns a copy of the transcript in append order.
func (l *Log) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

// Render produces the "speaker: text" transcript fed verbatim into every
// model prompt. Output is deterministic for a given log state.
func (l *Log) Render() string {
	var b strings.Builder
	for i, t := range l.turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(string(t.Speaker))
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}

// Tail returns the rendered last n turns, oldest first. Used when a handoff
// alert needs transcript context without the whole call.
func (l *Log) Tail(n int) []string {
	if n <= 0 || len(l.turns) == 0 {
		return nil
	}
	start := len(l.turns) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(l.turns)-start)
	for _, t := range l.turns[start:] {
		out = append(out, fmt.Sprintf("%s: %s", t.Speaker, t.Text))
	}
	return out
}

// Clear resets the log so a fresh call can reuse the same session object.
func (l *Log) Clear() {
	l.turns = nil
	l.next = 0
}
