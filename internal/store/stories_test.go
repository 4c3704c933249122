package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestInsertAndGetStory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	story := Story{ID: "story-1", DeviceID: "device-1", Words: "山", Content: "山里有一座庙。"}
	if err := s.InsertStory(ctx, story); err != nil {
		t.Fatalf("insert story: %v", err)
	}

	got, err := s.GetStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("get story: %v", err)
	}
	if got.Content != story.Content || got.DeviceID != story.DeviceID {
		t.Fatalf("unexpected story: %+v", got)
	}
	if got.AudioURL != "" || got.ImageURL != "" {
		t.Fatalf("expected empty media urls, got %+v", got)
	}

	if _, err := s.GetStory(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetMediaURLs(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.InsertStory(ctx, Story{ID: "story-1", DeviceID: "d", Words: "水", Content: "c"}); err != nil {
		t.Fatalf("insert story: %v", err)
	}
	if err := s.SetAudioURL(ctx, "story-1", "/media/story-1.mp3"); err != nil {
		t.Fatalf("set audio url: %v", err)
	}
	if err := s.SetImageURL(ctx, "story-1", "https://img.example/story-1.png"); err != nil {
		t.Fatalf("set image url: %v", err)
	}
	if err := s.SetAudioURL(ctx, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing story, got %v", err)
	}

	got, err := s.GetStory(ctx, "story-1")
	if err != nil {
		t.Fatalf("get story: %v", err)
	}
	if got.AudioURL != "/media/story-1.mp3" || got.ImageURL != "https://img.example/story-1.png" {
		t.Fatalf("unexpected media urls: %+v", got)
	}
}

func TestCountStoriesSince(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	s.clock = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	if err := s.InsertStory(ctx, Story{ID: "a", DeviceID: "d", Words: "x", Content: "c"}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	s.clock = func() time.Time { return time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC) }
	if err := s.InsertStory(ctx, Story{ID: "b", DeviceID: "d", Words: "y", Content: "c"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	midnight := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	count, err := s.CountStoriesSince(ctx, "d", midnight)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 story today, got %d", count)
	}
}

func TestHighlightsAndThoughts(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	if err := s.InsertStory(ctx, Story{ID: "s1", DeviceID: "d", Words: "w", Content: "c"}); err != nil {
		t.Fatalf("insert story: %v", err)
	}
	if err := s.InsertHighlight(ctx, Highlight{StoryID: "s1", DeviceID: "d", Text: "一座庙", StartIndex: 12, EndIndex: 15}); err != nil {
		t.Fatalf("insert highlight: %v", err)
	}
	if err := s.InsertHighlight(ctx, Highlight{StoryID: "s1", DeviceID: "d", Text: "山", StartIndex: 3, EndIndex: 4}); err != nil {
		t.Fatalf("insert highlight: %v", err)
	}
	if err := s.InsertThought(ctx, Thought{StoryID: "s1", DeviceID: "d", Text: "有意思"}); err != nil {
		t.Fatalf("insert thought: %v", err)
	}

	highlights, err := s.ListHighlights(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("list highlights: %v", err)
	}
	if len(highlights) != 2 {
		t.Fatalf("unexpected highlights: %+v", highlights)
	}
	if highlights[0].Text != "山" || highlights[1].Text != "一座庙" {
		t.Fatalf("highlights not in span order: %+v", highlights)
	}
	if highlights[1].StartIndex != 12 || highlights[1].EndIndex != 15 {
		t.Fatalf("span offsets not persisted: %+v", highlights[1])
	}

	thoughts, err := s.ListThoughts(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("list thoughts: %v", err)
	}
	if len(thoughts) != 1 || thoughts[0].Text != "有意思" {
		t.Fatalf("unexpected thoughts: %+v", thoughts)
	}
}

func TestLikeDeduplicates(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	created, err := s.Like(ctx, "s1", "d1")
	if err != nil {
		t.Fatalf("like: %v", err)
	}
	if !created {
		t.Fatal("expected first like to be created")
	}

	created, err = s.Like(ctx, "s1", "d1")
	if err != nil {
		t.Fatalf("duplicate like: %v", err)
	}
	if created {
		t.Fatal("expected duplicate like to be a no-op")
	}

	if _, err := s.Like(ctx, "s1", "d2"); err != nil {
		t.Fatalf("like from second device: %v", err)
	}
	count, err := s.CountLikes(ctx, "s1")
	if err != nil {
		t.Fatalf("count likes: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 likes, got %d", count)
	}
}
