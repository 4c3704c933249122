package ttsgateway

import (
	"context"
	"time"
)

type mockSynth struct {
	delay time.Duration
}

// NewMockSynth returns a synthesizer that yields a placeholder URL after
// a short delay, for development without upstream credentials.
func NewMockSynth(delay time.Duration) Synthesizer {
	return &mockSynth{delay: delay}
}

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	select {
	case <-ctx.Done():
		return SynthResult{}, ctx.Err()
	case <-time.After(m.delay):
	}
	return SynthResult{AudioURL: "mock://audio/" + req.StoryID + ".mp3"}, nil
}
