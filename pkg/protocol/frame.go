package protocol

import (
	"bytes"
	"encoding/json"
)

const (
	// MaxFrameSize is the maximum allowed frame size (1 MB)
	MaxFrameSize = 1024 * 1024
)

// Frame is a decoded inbound (server → client) envelope.
// Format: {"type": <string>, "payload": <object>}
type Frame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ActionFrame is a decoded outbound (client → server) envelope.
// Format: {"action": <string>, "payload": <object>}
type ActionFrame struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// EncodeFrame builds an inbound-style envelope from a type tag and any
// JSON-marshallable payload.
func EncodeFrame(msgType string, payload any) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return checkSize(json.Marshal(Frame{Type: msgType, Payload: raw}))
}

// DecodeFrame validates an inbound envelope. It fails with a *DecodeError
// when the data is not JSON, or the type or payload field is missing.
func DecodeFrame(data []byte) (*Frame, error) {
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	var env struct {
		Type    *string         `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newDecodeError("", ErrInvalidJSON, err)
	}
	if env.Type == nil {
		return nil, newDecodeError("", ErrMissingType, nil)
	}
	if isAbsent(env.Payload) {
		return nil, newDecodeError(*env.Type, ErrMissingPayload, nil)
	}

	return &Frame{Type: *env.Type, Payload: env.Payload}, nil
}

// EncodeActionFrame builds an outbound envelope from an action name and any
// JSON-marshallable payload.
func EncodeActionFrame(action string, payload any) ([]byte, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return nil, err
	}
	return checkSize(json.Marshal(ActionFrame{Action: action, Payload: raw}))
}

// DecodeActionFrame validates an outbound envelope, mirroring DecodeFrame.
func DecodeActionFrame(data []byte) (*ActionFrame, error) {
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	var env struct {
		Action  *string         `json:"action"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newDecodeError("", ErrInvalidJSON, err)
	}
	if env.Action == nil {
		return nil, newDecodeError("", ErrMissingAction, nil)
	}
	if isAbsent(env.Payload) {
		return nil, newDecodeError(*env.Action, ErrMissingPayload, nil)
	}

	return &ActionFrame{Action: *env.Action, Payload: env.Payload}, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func checkSize(data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, err
	}
	if len(data) > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	return data, nil
}

// isAbsent reports whether a raw payload was omitted or explicitly null.
func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
