package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Signal identifies the kind of frame exchanged over the gateway connection.
type Signal int

const (
	SignalEvent     Signal = 0 // server -> client: dispatched event, carries sn
	SignalHello     Signal = 1 // server -> client: handshake result
	SignalPing      Signal = 2 // client -> server: heartbeat with last sn
	SignalPong      Signal = 3 // server -> client: heartbeat ack
	SignalResume    Signal = 4 // client -> server: resume request
	SignalReconnect Signal = 5 // server -> client: discard state and reconnect
	SignalResumeAck Signal = 6 // server -> client: resume succeeded
)

func (s Signal) String() string {
	switch s {
	case SignalEvent:
		return "EVENT"
	case SignalHello:
		return "HELLO"
	case SignalPing:
		return "PING"
	case SignalPong:
		return "PONG"
	case SignalResume:
		return "RESUME"
	case SignalReconnect:
		return "RECONNECT"
	case SignalResumeAck:
		return "RESUME_ACK"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Frame is the envelope exchanged between client and server over WebSocket.
type Frame struct {
	S  Signal          `json:"s"`
	D  json.RawMessage `json:"d,omitempty"`
	SN uint64          `json:"sn"`
}

// Hello is the payload of a HELLO frame. A non-zero Code means the handshake
// was rejected.
type Hello struct {
	Code      int    `json:"code"`
	SessionID string `json:"session_id"`
}

// ResumeAck is the payload of a RESUME_ACK frame.
type ResumeAck struct {
	SessionID string `json:"session_id"`
}

// Reconnect is the payload of a RECONNECT frame.
type Reconnect struct {
	Code int    `json:"code"`
	Err  string `json:"err"`
}

// DecodeFrame parses a frame, inflating it first when the connection was
// opened with compress=1.
func DecodeFrame(data []byte, compressed bool) (Frame, error) {
	if compressed {
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return Frame{}, fmt.Errorf("inflate frame: %w", err)
		}
		defer zr.Close()
		data, err = io.ReadAll(zr)
		if err != nil {
			return Frame{}, fmt.Errorf("inflate frame: %w", err)
		}
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	return f, nil
}

// DecodeData unmarshals the frame payload into v.
func (f Frame) DecodeData(v any) error {
	if len(f.D) == 0 {
		return fmt.Errorf("%s frame has no data", f.S)
	}
	if err := json.Unmarshal(f.D, v); err != nil {
		return fmt.Errorf("decode %s data: %w", f.S, err)
	}
	return nil
}

// Ping builds the heartbeat frame acknowledging events up to r.SN.
func (r ResumeState) Ping() Frame {
	return Frame{S: SignalPing, SN: r.SN}
}
