package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("not found")

// Story is one generated story with optional media references.
type Story struct {
	ID        string
	DeviceID  string
	Words     string
	Content   string
	AudioURL  string
	ImageURL  string
	CreatedAt time.Time
}

// Highlight is a user-selected span of story text. StartIndex and
// EndIndex are rune offsets into the story content.
type Highlight struct {
	ID         int64
	StoryID    string
	DeviceID   string
	Text       string
	StartIndex int
	EndIndex   int
	CreatedAt  time.Time
}

// Thought is a reader annotation on a story.
type Thought struct {
	ID        int64
	StoryID   string
	DeviceID  string
	Text      string
	CreatedAt time.Time
}

// InsertStory persists a freshly generated story.
func (s *Store) InsertStory(ctx context.Context, story Story) error {
	if story.CreatedAt.IsZero() {
		story.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stories(id, device_id, words, content, audio_url, image_url, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)`,
		story.ID, story.DeviceID, story.Words, story.Content,
		nullable(story.AudioURL), nullable(story.ImageURL), story.CreatedAt)
	return err
}

// GetStory fetches one story by id.
func (s *Store) GetStory(ctx context.Context, id string) (Story, error) {
	var st Story
	var audio, image sql.NullString
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, device_id, words, content, audio_url, image_url, created_at FROM stories WHERE id = ?`,
		id).Scan(&st.ID, &st.DeviceID, &st.Words, &st.Content, &audio, &image, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Story{}, ErrNotFound
		}
		return Story{}, err
	}
	st.AudioURL = audio.String
	st.ImageURL = image.String
	if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
		st.CreatedAt = ts
	}
	return st, nil
}

// SetAudioURL records the finished narration URL for a story.
func (s *Store) SetAudioURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET audio_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SetImageURL records the finished illustration URL for a story.
func (s *Store) SetImageURL(ctx context.Context, id, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE stories SET image_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CountStoriesSince counts stories a device created at or after the given
// instant. Used for the daily creation quota.
func (s *Store) CountStoriesSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM stories WHERE device_id = ? AND created_at >= ?`,
		deviceID, since.UTC()).Scan(&count)
	return count, err
}

// InsertHighlight records a highlighted span.
func (s *Store) InsertHighlight(ctx context.Context, h Highlight) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO highlights(story_id, device_id, text, start_index, end_index, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		h.StoryID, h.DeviceID, h.Text, h.StartIndex, h.EndIndex, s.clock().UTC())
	return err
}

// ListHighlights returns up to limit highlights for a story in reading
// order, earliest span first.
func (s *Store) ListHighlights(ctx context.Context, storyID string, limit int) ([]Highlight, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, story_id, device_id, text, start_index, end_index, created_at FROM highlights
		 WHERE story_id = ? ORDER BY start_index ASC LIMIT ?`, storyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Highlight
	for rows.Next() {
		var h Highlight
		var created string
		if err := rows.Scan(&h.ID, &h.StoryID, &h.DeviceID, &h.Text, &h.StartIndex, &h.EndIndex, &created); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			h.CreatedAt = ts
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// InsertThought records a reader annotation.
func (s *Store) InsertThought(ctx context.Context, t Thought) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO thoughts(story_id, device_id, text, created_at) VALUES(?, ?, ?, ?)`,
		t.StoryID, t.DeviceID, t.Text, s.clock().UTC())
	return err
}

// ListThoughts returns up to limit thoughts for a story, newest first.
func (s *Store) ListThoughts(ctx context.Context, storyID string, limit int) ([]Thought, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, story_id, device_id, text, created_at FROM thoughts
		 WHERE story_id = ? ORDER BY created_at DESC LIMIT ?`, storyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Thought
	for rows.Next() {
		var t Thought
		var created string
		if err := rows.Scan(&t.ID, &t.StoryID, &t.DeviceID, &t.Text, &created); err != nil {
			return nil, err
		}
		if ts, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			t.CreatedAt = ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Like records a like for (story, device). Returns false when the pair
// already exists; the composite primary key arbitrates the race.
func (s *Store) Like(ctx context.Context, storyID, deviceID string) (bool, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO likes(story_id, device_id, created_at) VALUES(?, ?, ?)`,
		storyID, deviceID, s.clock().UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CountLikes returns the like total for a story.
func (s *Store) CountLikes(ctx context.Context, storyID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE story_id = ?`, storyID).Scan(&count)
	return count, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
