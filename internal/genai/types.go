package genai

import (
	"context"
	"errors"
)

// ErrEmptyCompletion reports a generation call that returned no content.
var ErrEmptyCompletion = errors.New("genai: empty completion")

// StoryRequest describes a story generation prompt.
type StoryRequest struct {
	Words string
}

// StoryGenerator produces story text from one to three seed characters.
type StoryGenerator interface {
	GenerateStory(ctx context.Context, req StoryRequest) (string, error)
}

// ImageRequest describes an illustration generation prompt.
type ImageRequest struct {
	StoryID string
	Words   string
	Content string
}

// ImageGenerator produces an illustration URL for a story.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (string, error)
}

// UpstreamError carries the status and message returned by a generation API
// so callers can shape user-facing error text.
type UpstreamError struct {
	Provider string
	Status   int
	Message  string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return e.Provider + " request failed"
	}
	return e.Provider + ": " + e.Message
}
