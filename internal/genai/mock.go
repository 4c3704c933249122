package genai

import (
	"context"
	"time"
)

type mockStoryGenerator struct{}

func NewMockStoryGenerator() StoryGenerator { return &mockStoryGenerator{} }

func (m *mockStoryGenerator) GenerateStory(ctx context.Context, req StoryRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return "[mock story for " + req.Words + "]", nil
}

type mockImageGenerator struct{}

func NewMockImageGenerator() ImageGenerator { return &mockImageGenerator{} }

func (m *mockImageGenerator) GenerateImage(ctx context.Context, req ImageRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	return "mock://image/" + req.StoryID, nil
}
