// Package agent bridges a call's media stream to the conversational voice
// agent. The bridge relays caller audio upstream and surfaces the agent's
// audio plus both sides' transcripts back to the session.
package agent

import "context"

// Callbacks are invoked from the bridge's read loop as agent events arrive.
// They run on the bridge goroutine, not the media-stream goroutine.
type Callbacks struct {
	// OnAgentResponse receives the agent's spoken text for each turn.
	OnAgentResponse func(text string)
	// OnUserTranscript receives the caller's transcribed speech.
	OnUserTranscript func(text string)
	// OnAudio receives base64 agent audio to relay back to the caller.
	OnAudio func(audioB64 string)
	// OnInterruption fires when the agent was cut off mid-utterance.
	OnInterruption func()
}

// Bridge is a live connection to the voice agent for one call.
type Bridge interface {
	// SendAudio forwards one base64 caller audio chunk upstream.
	SendAudio(ctx context.Context, audioB64 string) error
	// Close tears the agent session down. Safe to call more than once.
	Close() error
}

// Dialer opens a bridge for a new call.
type Dialer interface {
	Dial(ctx context.Context, callSID string, cb Callbacks) (Bridge, error)
}
