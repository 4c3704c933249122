package ttsgateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/inkstory-labs/ink-core/internal/config"
	"github.com/inkstory-labs/ink-core/internal/ttswire"
)

func testTTSConfig() config.TTSConfig {
	cfg := config.Default().TTS
	cfg.Enabled = true
	cfg.AppID = "app"
	cfg.AccessKey = "key"
	cfg.SessionTimeout = 1000
	return cfg
}

func TestHandshakeFailureSendsNothing(t *testing.T) {
	g := New(testTTSConfig(), &fakeSink{}, newLogger())

	resp := &http.Response{
		StatusCode: http.StatusForbidden,
		Body:       io.NopCloser(strings.NewReader(`{"message":"invalid credentials"}`)),
	}
	g.dial = func(ctx context.Context) (wireConn, *http.Response, error) {
		return nil, resp, errors.New("websocket: bad handshake")
	}

	_, err := g.Synthesize(context.Background(), SynthRequest{StoryID: "s1", Text: "hi"})
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Fatalf("diagnostic should carry the status, got %q", err)
	}
	if !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("diagnostic should carry the remote message, got %q", err)
	}
	if !strings.Contains(err.Error(), "排查建议") {
		t.Fatalf("403 should append remediation guidance, got %q", err)
	}
}

func TestHandshakeFailureWithoutResponse(t *testing.T) {
	g := New(testTTSConfig(), &fakeSink{}, newLogger())
	g.dial = func(ctx context.Context) (wireConn, *http.Response, error) {
		return nil, nil, errors.New("dial tcp: connection refused")
	}

	_, err := g.Synthesize(context.Background(), SynthRequest{StoryID: "s1", Text: "hi"})
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected transport diagnostic, got %v", err)
	}
}

func TestGatewayRunsFullSession(t *testing.T) {
	g := New(testTTSConfig(), &fakeSink{}, newLogger())

	conn := newFakeConn(
		controlFrame(ttswire.EventSessionStarted, nil),
		audioFrame([]byte{0x01, 0x02, 0x03}),
		controlFrame(ttswire.EventSessionFinished, nil),
	)
	g.dial = func(ctx context.Context) (wireConn, *http.Response, error) {
		return conn, &http.Response{StatusCode: http.StatusSwitchingProtocols}, nil
	}

	res, err := g.Synthesize(context.Background(), SynthRequest{StoryID: "s1", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AudioURL != "/media/s1.mp3" {
		t.Fatalf("unexpected result url: %s", res.AudioURL)
	}
}

func TestNewSessionIDLength(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		id := newSessionID()
		if len(id) != 12 {
			t.Fatalf("expected 12-char session id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("session id repeated: %q", id)
		}
		seen[id] = true
	}
}

func TestMockSynth(t *testing.T) {
	m := NewMockSynth(time.Millisecond)
	res, err := m.Synthesize(context.Background(), SynthRequest{StoryID: "s1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.AudioURL == "" {
		t.Fatal("expected a mock url")
	}
}
