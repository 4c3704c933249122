package ttsgateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/inkstory-labs/ink-core/internal/ttswire"
)

// State tracks a streaming session through its lifecycle.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateStreaming
	StateTerminating
	StateCompleted
	StateFailed
	StateTimedOut
)

// wireConn is the subset of the websocket connection the session drives.
// *websocket.Conn satisfies it; tests substitute a scripted fake.
type wireConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// binaryMessage matches websocket.BinaryMessage without importing the
// websocket package into the state machine.
const binaryMessage = 2

type startPayload struct {
	InputID      string      `json:"input_id"`
	InputText    string      `json:"input_text"`
	Action       int         `json:"action"`
	UseHeadMusic bool        `json:"use_head_music"`
	UseTailMusic bool        `json:"use_tail_music"`
	AudioConfig  audioConfig `json:"audio_config"`
	InputInfo    inputInfo   `json:"input_info"`
}

type audioConfig struct {
	Format     string `json:"format"`
	SampleRate int    `json:"sample_rate"`
	SpeechRate int    `json:"speech_rate"`
}

type inputInfo struct {
	ReturnAudioURL bool `json:"return_audio_url"`
}

type endPayload struct {
	MetaInfo struct {
		AudioURL string `json:"audio_url"`
	} `json:"meta_info"`
}

// session drives one logical synthesis exchange over an established
// connection. Inbound frames are processed strictly in arrival order;
// event sequencing (start, data, end, finished) is meaningful.
type session struct {
	id           string
	conn         wireConn
	sink         AudioSink
	log          *slog.Logger
	state        State
	audio        bytes.Buffer
	deliveredURL string
}

// run sends the start frame, consumes inbound frames until the backend
// finishes or the context expires, then resolves the result.
func (s *session) run(ctx context.Context, start startPayload, storyID string) (SynthResult, error) {
	s.state = StateOpen

	payload, err := json.Marshal(start)
	if err != nil {
		s.state = StateFailed
		return SynthResult{}, fmt.Errorf("marshal start payload: %w", err)
	}
	frame := ttswire.Encode(ttswire.EventStartSession, s.id, payload, false)
	if err := s.conn.WriteMessage(binaryMessage, frame); err != nil {
		s.state = StateFailed
		return SynthResult{}, fmt.Errorf("send start frame: %w", err)
	}
	s.state = StateStreaming

	// force the blocking read loop to unwind when the hard timeout or
	// caller cancellation fires
	watchdog := make(chan struct{})
	defer close(watchdog)
	go func() {
		select {
		case <-ctx.Done():
			s.conn.Close()
		case <-watchdog:
		}
	}()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			switch ctxErr := ctx.Err(); {
			case errors.Is(ctxErr, context.DeadlineExceeded):
				s.state = StateTimedOut
				return SynthResult{}, fmt.Errorf("%w: %v", ErrSessionTimeout, ctxErr)
			case ctxErr != nil:
				// caller went away; not the hard timeout
				s.state = StateFailed
				return SynthResult{}, fmt.Errorf("synthesis canceled: %w", ctxErr)
			}
			if s.state == StateTerminating {
				break
			}
			s.state = StateFailed
			return SynthResult{}, fmt.Errorf("synthesis connection failed: %w", err)
		}
		if done := s.handleFrame(data); done {
			break
		}
	}

	return s.resolve(ctx, storyID)
}

// handleFrame dispatches one inbound frame. Malformed frames are skipped:
// a single corrupt control frame must not abort the stream.
func (s *session) handleFrame(data []byte) bool {
	frame, ok := ttswire.Decode(data)
	if !ok {
		s.log.Debug("skipping undecodable frame", slog.Int("len", len(data)))
		return false
	}

	if frame.IsAudio() {
		if frame.EventType == ttswire.EventAudioRound {
			s.audio.Write(frame.Payload)
		}
		return false
	}

	switch frame.EventType {
	case ttswire.EventSessionStarted:
		// acknowledged; stay in Streaming
	case ttswire.EventSessionEnd:
		var end endPayload
		if err := json.Unmarshal(frame.Payload, &end); err != nil {
			s.log.Debug("unparseable session-end payload", slog.String("error", err.Error()))
			return false
		}
		if end.MetaInfo.AudioURL != "" {
			s.deliveredURL = end.MetaInfo.AudioURL
		}
	case ttswire.EventSessionFinished:
		s.state = StateTerminating
		s.conn.Close()
		return true
	}
	return false
}

// resolve turns the terminated session into a result. A delivered URL is
// authoritative and supersedes the accumulated buffer; otherwise the
// buffer is handed to the sink, and the session only completes once that
// handoff succeeds.
func (s *session) resolve(ctx context.Context, storyID string) (SynthResult, error) {
	if s.deliveredURL != "" {
		s.state = StateCompleted
		return SynthResult{AudioURL: s.deliveredURL}, nil
	}
	if s.audio.Len() > 0 {
		url, err := s.sink.StoreAudio(ctx, storyID, s.audio.Bytes())
		if err != nil {
			s.state = StateFailed
			return SynthResult{}, fmt.Errorf("store assembled audio: %w", err)
		}
		s.state = StateCompleted
		return SynthResult{AudioURL: url}, nil
	}
	s.state = StateFailed
	return SynthResult{}, ErrNoAudio
}
