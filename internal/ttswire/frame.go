// Package ttswire implements the binary frame format of the upstream
// speech-synthesis websocket protocol (version 1, 4-byte header, big
// endian throughout). The header byte values are an external contract;
// they must not be re-derived or simplified.
package ttswire

import "encoding/binary"

const (
	// byte 0: protocol version 0b0001 | header size 0b0001 (4 bytes)
	headerVersionAndSize = 0x11

	// byte 1 high nibble: message type
	MsgTypeFullClient = 0x9 // control/event frames
	MsgTypeAudioOnly  = 0xB // raw audio data frames

	// byte 1 low nibble: flags
	flagNone             = 0x0
	flagFinishConnection = 0x4

	// byte 2: serialization JSON 0b0001 | compression none 0b0000
	serializationJSONNoCompression = 0x10
)

// Event types exchanged over the session.
const (
	EventStartSession    uint32 = 1
	EventSessionStarted  uint32 = 150
	EventSessionFinished uint32 = 152
	EventAudioRound      uint32 = 361
	EventSessionEnd      uint32 = 363
)

// Frame is one decoded wire message. It is transient: constructed just
// before transmission or right after receipt, never persisted.
type Frame struct {
	MessageType byte
	EventType   uint32
	SessionID   string
	Payload     []byte
}

// IsAudio reports whether the frame carries raw audio data. Callers route
// on this classification, not on the event type number alone.
func (f Frame) IsAudio() bool {
	return f.MessageType == MsgTypeAudioOnly
}

// Encode builds a full-client request frame: 4-byte header, uint32
// event type, then length-prefixed session id and payload.
func Encode(eventType uint32, sessionID string, payload []byte, final bool) []byte {
	flags := byte(flagNone)
	if final {
		flags = flagFinishConnection
	}

	sid := []byte(sessionID)
	buf := make([]byte, 0, 4+4+4+len(sid)+4+len(payload))
	buf = append(buf,
		headerVersionAndSize,
		MsgTypeFullClient<<4|flags,
		serializationJSONNoCompression,
		0x00,
	)
	buf = binary.BigEndian.AppendUint32(buf, eventType)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(sid)))
	buf = append(buf, sid...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

// Decode parses one inbound frame. It returns ok=false whenever the
// buffer is shorter than a declared length: frames may arrive split
// across reads, so a shortfall means "incomplete", never an error.
func Decode(buf []byte) (Frame, bool) {
	if len(buf) < 4 {
		return Frame{}, false
	}

	var f Frame
	f.MessageType = buf[1] >> 4

	offset := 4
	if len(buf) < offset+4 {
		return Frame{}, false
	}
	f.EventType = binary.BigEndian.Uint32(buf[offset:])
	offset += 4

	if len(buf) < offset+4 {
		return Frame{}, false
	}
	sidLen := int(binary.BigEndian.Uint32(buf[offset:]))
	offset += 4
	if sidLen < 0 || len(buf) < offset+sidLen {
		return Frame{}, false
	}
	f.SessionID = string(buf[offset : offset+sidLen])
	offset += sidLen

	if len(buf) < offset+4 {
		return Frame{}, false
	}
	payloadLen := int(binary.BigEndian.Uint32(buf[offset:]))
	offset += 4
	if payloadLen < 0 || len(buf) < offset+payloadLen {
		return Frame{}, false
	}
	f.Payload = buf[offset : offset+payloadLen]

	return f, true
}
