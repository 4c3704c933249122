package ttswire

import (
	"bytes"
	"testing"
)

func TestEncodeHeaderBytes(t *testing.T) {
	frame := Encode(EventStartSession, "abc123def456", []byte(`{}`), false)

	if frame[0] != 0x11 {
		t.Fatalf("byte 0: expected 0x11, got 0x%02x", frame[0])
	}
	if frame[1] != 0x90 {
		t.Fatalf("byte 1: expected 0x90, got 0x%02x", frame[1])
	}
	if frame[2] != 0x10 {
		t.Fatalf("byte 2: expected 0x10, got 0x%02x", frame[2])
	}
	if frame[3] != 0x00 {
		t.Fatalf("byte 3: expected 0x00, got 0x%02x", frame[3])
	}

	final := Encode(EventStartSession, "abc123def456", nil, true)
	if final[1] != 0x94 {
		t.Fatalf("final flag: expected 0x94, got 0x%02x", final[1])
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		eventType uint32
		sessionID string
		payload   []byte
		final     bool
	}{
		{"start", EventStartSession, "abc123def456", []byte(`{"input_text":"hi"}`), false},
		{"empty payload", EventSessionFinished, "abc123def456", nil, false},
		{"empty session", EventAudioRound, "", []byte{0x01, 0x02}, false},
		{"final", EventSessionEnd, "abc123def456", []byte(`{}`), true},
		{"binary payload", EventAudioRound, "s", bytes.Repeat([]byte{0xFF, 0x00}, 512), false},
	}

	for _, tc := range cases {
		frame := Encode(tc.eventType, tc.sessionID, tc.payload, tc.final)
		decoded, ok := Decode(frame)
		if !ok {
			t.Fatalf("%s: decode failed", tc.name)
		}
		if decoded.EventType != tc.eventType {
			t.Fatalf("%s: event type %d != %d", tc.name, decoded.EventType, tc.eventType)
		}
		if decoded.SessionID != tc.sessionID {
			t.Fatalf("%s: session id %q != %q", tc.name, decoded.SessionID, tc.sessionID)
		}
		if !bytes.Equal(decoded.Payload, tc.payload) {
			t.Fatalf("%s: payload mismatch", tc.name)
		}
		if decoded.IsAudio() {
			t.Fatalf("%s: full-client frames must not classify as audio", tc.name)
		}
	}
}

func TestDecodeClassifiesAudioByMessageType(t *testing.T) {
	frame := Encode(EventAudioRound, "abc123def456", []byte{0xAA, 0xBB}, false)
	frame[1] = MsgTypeAudioOnly<<4 | (frame[1] & 0x0F)

	decoded, ok := Decode(frame)
	if !ok {
		t.Fatal("decode failed")
	}
	if !decoded.IsAudio() {
		t.Fatal("expected audio classification from message-type nibble")
	}
	if decoded.EventType != EventAudioRound {
		t.Fatalf("unexpected event type %d", decoded.EventType)
	}
}

func TestDecodeIncompleteAtEveryTruncation(t *testing.T) {
	frame := Encode(EventStartSession, "abc123def456", []byte(`{"k":"v"}`), false)

	for i := 0; i < len(frame); i++ {
		if _, ok := Decode(frame[:i]); ok {
			t.Fatalf("decode of %d/%d bytes should report incomplete", i, len(frame))
		}
	}
	if _, ok := Decode(frame); !ok {
		t.Fatal("full frame should decode")
	}
}

func TestDecodeDeclaredLengthBeyondBuffer(t *testing.T) {
	frame := Encode(EventStartSession, "abc123def456", []byte(`payload`), false)

	// inflate the declared session-id length past the buffer end
	frame[8], frame[9], frame[10], frame[11] = 0x7F, 0xFF, 0xFF, 0xFF
	if _, ok := Decode(frame); ok {
		t.Fatal("oversized declared length should report incomplete")
	}
}
