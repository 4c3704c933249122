package protocol

import "time"

// StoryGenerated announces a newly persisted story.
type StoryGenerated struct {
	StoryID   string    `json:"story_id"`
	DeviceID  string    `json:"device_id"`
	Words     string    `json:"words"`
	Timestamp time.Time `json:"timestamp"`
}

// AudioReady announces a finished narration for a story.
type AudioReady struct {
	StoryID   string    `json:"story_id"`
	AudioURL  string    `json:"audio_url"`
	Cached    bool      `json:"cached"`
	Timestamp time.Time `json:"timestamp"`
}

// ImageReady announces a finished illustration for a story.
type ImageReady struct {
	StoryID   string    `json:"story_id"`
	ImageURL  string    `json:"image_url"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectStoryGenerated = "story.generated"
	SubjectAudioReady     = "story.audio.ready"
	SubjectImageReady     = "story.image.ready"
)
