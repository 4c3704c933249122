package ttsgateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/inkstory-labs/ink-core/internal/config"
)

// remediation appended when the handshake is rejected for authorization
// reasons; credential problems dominate support load for this backend.
const authRemediation = "\n\n排查建议：" +
	"\n1. 检查 app_id 和 access_key 是否正确设置" +
	"\n2. 确认已开通\"语音播客大模型\"服务（不是普通TTS服务）" +
	"\n3. 确认app_id和access_key来自同一应用" +
	"\n4. 检查凭证是否过期，可在控制台重新生成"

// Gateway synthesizes narration by driving the upstream websocket
// protocol for one session per call.
type Gateway struct {
	cfg  config.TTSConfig
	sink AudioSink
	log  *slog.Logger
	dial func(ctx context.Context) (wireConn, *http.Response, error)
}

func New(cfg config.TTSConfig, sink AudioSink, log *slog.Logger) *Gateway {
	g := &Gateway{
		cfg:  cfg,
		sink: sink,
		log:  log.With(slog.String("component", "tts-gateway")),
	}
	g.dial = g.dialUpstream
	return g
}

func (g *Gateway) dialUpstream(ctx context.Context) (wireConn, *http.Response, error) {
	header := http.Header{}
	header.Set("X-Api-App-Id", strings.TrimSpace(g.cfg.AppID))
	header.Set("X-Api-Access-Key", strings.TrimSpace(g.cfg.AccessKey))
	header.Set("X-Api-Resource-Id", g.cfg.ResourceID)
	header.Set("X-Api-App-Key", g.cfg.AppKey)
	header.Set("X-Api-Request-Id", uuid.NewString())

	dialer := websocket.Dialer{
		HandshakeTimeout:  time.Duration(g.cfg.HandshakeTimeout) * time.Millisecond,
		EnableCompression: false,
	}
	conn, resp, err := dialer.DialContext(ctx, g.cfg.Endpoint, header)
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

// Synthesize runs one streaming session under the hard wall-clock
// timeout. The timeout is independent of per-frame activity: it guards
// against a remote that stops responding without closing the socket.
func (g *Gateway) Synthesize(ctx context.Context, req SynthRequest) (SynthResult, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(g.cfg.SessionTimeout)*time.Millisecond)
	defer cancel()

	conn, resp, err := g.dial(ctx)
	if err != nil {
		return SynthResult{}, g.handshakeError(resp, err)
	}
	defer conn.Close()

	s := &session{
		id:   newSessionID(),
		conn: conn,
		sink: g.sink,
		log:  g.log,
	}
	g.log.Info("tts session opened",
		slog.String("session_id", s.id),
		slog.String("story_id", req.StoryID))

	start := startPayload{
		InputID:   req.StoryID,
		InputText: req.Text,
		AudioConfig: audioConfig{
			Format:     g.cfg.Format,
			SampleRate: g.cfg.SampleRate,
		},
		InputInfo: inputInfo{ReturnAudioURL: true},
	}

	result, err := s.run(ctx, start, req.StoryID)
	if err != nil {
		g.log.Warn("tts session failed",
			slog.String("session_id", s.id),
			slog.String("error", err.Error()))
		return SynthResult{}, err
	}
	g.log.Info("tts session completed",
		slog.String("session_id", s.id),
		slog.Bool("delivered_url", s.deliveredURL != ""),
		slog.Int("audio_bytes", s.audio.Len()))
	return result, nil
}

// handshakeError composes a diagnostic from a failed upgrade, folding in
// any structured error payload the remote returned.
func (g *Gateway) handshakeError(resp *http.Response, err error) error {
	if resp == nil {
		return fmt.Errorf("tts connection failed: %w", err)
	}
	msg := fmt.Sprintf("tts connection rejected: %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))

	if resp.Body != nil {
		defer resp.Body.Close()
		if body, rErr := io.ReadAll(io.LimitReader(resp.Body, 4096)); rErr == nil && len(body) > 0 {
			var remote struct {
				Code    any    `json:"code"`
				Message string `json:"message"`
			}
			if jErr := json.Unmarshal(body, &remote); jErr == nil && remote.Message != "" {
				msg += " - " + remote.Message
			} else {
				msg += " - " + string(body)
			}
		}
	}

	if resp.StatusCode == http.StatusForbidden {
		msg += authRemediation
	}
	return fmt.Errorf("%s", msg)
}

// newSessionID returns the 12-character token the protocol expects.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
