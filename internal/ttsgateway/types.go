package ttsgateway

import (
	"context"
	"errors"
)

// SynthRequest contains parameters for one narration.
type SynthRequest struct {
	StoryID string
	Text    string
}

// SynthResult is the finished narration reference.
type SynthResult struct {
	AudioURL string
}

// Synthesizer is the contract for producing narrated audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error)
}

// AudioSink receives the assembled audio buffer when the backend does not
// deliver a hosted URL, and returns a servable reference for it.
type AudioSink interface {
	StoreAudio(ctx context.Context, storyID string, data []byte) (string, error)
}

// ErrNoAudio reports a session that terminated without a delivered URL
// and without any accumulated audio bytes.
var ErrNoAudio = errors.New("no audio produced")

// ErrSessionTimeout reports the hard wall-clock limit firing before the
// session completed.
var ErrSessionTimeout = errors.New("synthesis session timed out")
