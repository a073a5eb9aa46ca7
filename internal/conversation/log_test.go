package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogRenderPreservesAppendOrder(t *testing.T) {
	log := NewLog()
	log.AddAgentTurn("Hello, thank you for calling Clearsky Medical.")
	log.AddUserTurn("Hi, I'd like to book an appointment.")
	log.AddAgentTurn("Of course, what day works for you?")

	want := "agent: Hello, thank you for calling Clearsky Medical.\n" +
		"user: Hi, I'd like to book an appointment.\n" +
		"agent: Of course, what day works for you?"
	assert.Equal(t, want, log.Render())

	// Re-rendering without further appends is idempotent.
	assert.Equal(t, want, log.Render())
}

func TestLogSequenceStrictlyIncreases(t *testing.T) {
	log := NewLog()
	log.AddUserTurn("first")
	log.AddAgentTurn("second")
	log.AddUserTurn("third")

	turns := log.Turns()
	require.Len(t, turns, 3)
	for i, turn := range turns {
		assert.Equal(t, i+1, turn.Sequence)
	}
}

func TestLogAppendRejectsOutOfOrderSequence(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(Turn{Speaker: SpeakerUser, Text: "hello"}))

	err := log.Append(Turn{Speaker: SpeakerAgent, Text: "late", Sequence: 5})
	var ordErr *OrderingError
	require.ErrorAs(t, err, &ordErr)
	assert.Equal(t, 2, ordErr.Want)
	assert.Equal(t, 5, ordErr.Got)
	assert.Equal(t, 1, log.Len())
}

func TestLogAppendAcceptsExplicitNextSequence(t *testing.T) {
	log := NewLog()
	require.NoError(t, log.Append(Turn{Speaker: SpeakerUser, Text: "one"}))
	require.NoError(t, log.Append(Turn{Speaker: SpeakerAgent, Text: "two", Sequence: 2}))
	assert.Equal(t, 2, log.Len())
}

func TestLogTail(t *testing.T) {
	log := NewLog()
	log.AddUserTurn("one")
	log.AddAgentTurn("two")
	log.AddUserTurn("three")

	assert.Equal(t, []string{"agent: two", "user: three"}, log.Tail(2))
	assert.Equal(t, []string{"user: one", "agent: two", "user: three"}, log.Tail(10))
	assert.Nil(t, log.Tail(0))
}

func TestLogClearResetsSequence(t *testing.T) {
	log := NewLog()
	log.AddUserTurn("hello")
	log.Clear()

	assert.Equal(t, 0, log.Len())
	assert.Equal(t, "", log.Render())

	log.AddUserTurn("fresh call")
	assert.Equal(t, 1, log.Turns()[0].Sequence)
}
