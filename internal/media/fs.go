package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inkstory-labs/ink-core/internal/config"
)

// FSStore persists finished audio buffers under a local directory and
// hands back the URL they are served from.
type FSStore struct {
	dir     string
	baseURL string
	log     *slog.Logger
	clock   func() time.Time
}

func NewFSStore(cfg config.MediaConfig, log *slog.Logger) (*FSStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &FSStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		log:     log.With(slog.String("component", "media")),
		clock:   time.Now,
	}, nil
}

// Dir returns the directory the runtime serves as static media.
func (s *FSStore) Dir() string { return s.dir }

// StoreAudio writes one assembled narration buffer. The timestamp keeps
// re-generated narrations from clobbering each other.
func (s *FSStore) StoreAudio(_ context.Context, storyID string, data []byte) (string, error) {
	name := fmt.Sprintf("%s-%d.mp3", storyID, s.clock().UnixMilli())
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	s.log.Info("stored narration",
		slog.String("story_id", storyID),
		slog.Int("bytes", len(data)))
	return s.baseURL + "/" + name, nil
}
