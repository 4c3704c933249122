package media

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/inkstory-labs/ink-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStoreAudioWritesFileAndReturnsURL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "media")
	s, err := NewFSStore(config.MediaConfig{Dir: dir, BaseURL: "/media/"}, newLogger())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}
	s.clock = func() time.Time { return time.UnixMilli(1700000000000) }

	url, err := s.StoreAudio(context.Background(), "story-1", []byte{0x01, 0x02})
	if err != nil {
		t.Fatalf("store audio: %v", err)
	}
	if url != "/media/story-1-1700000000000.mp3" {
		t.Fatalf("unexpected url: %s", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "story-1-1700000000000.mp3"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(data) != 2 {
		t.Fatalf("expected 2 bytes, got %d", len(data))
	}
}

func TestStoreAudioDistinctNamesOverTime(t *testing.T) {
	s, err := NewFSStore(config.MediaConfig{Dir: t.TempDir(), BaseURL: "/media"}, newLogger())
	if err != nil {
		t.Fatalf("new fs store: %v", err)
	}

	now := time.UnixMilli(1000)
	s.clock = func() time.Time { return now }
	first, err := s.StoreAudio(context.Background(), "s", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	now = time.UnixMilli(2000)
	second, err := s.StoreAudio(context.Background(), "s", nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct names, got %s twice", first)
	}
	if !strings.HasPrefix(first, "/media/s-") {
		t.Fatalf("unexpected url shape: %s", first)
	}
}
