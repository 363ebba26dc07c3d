package protocol

import (
	"errors"
	"fmt"
)

var (
	ErrFrameTooLarge  = errors.New("frame exceeds maximum size (1 MB)")
	ErrInvalidJSON    = errors.New("frame is not valid JSON")
	ErrMissingType    = errors.New("envelope has no type field")
	ErrMissingAction  = errors.New("envelope has no action field")
	ErrMissingPayload = errors.New("envelope has no payload field")
	ErrMissingField   = errors.New("payload is missing a required field")
	ErrInvalidPayload = errors.New("payload does not match the message schema")
	ErrUnknownType    = errors.New("unknown message type")
)

// DecodeError describes why an inbound frame was rejected.
// Kind is one of the sentinel errors above so callers can use errors.Is.
type DecodeError struct {
	Type  string // envelope type or action, empty if it could not be read
	Field string // offending payload field, if any
	Kind  error
	Err   error // underlying parser error, if any
}

func newDecodeError(msgType string, kind, err error) *DecodeError {
	return &DecodeError{Type: msgType, Kind: kind, Err: err}
}

func missingField(msgType, field string) *DecodeError {
	return &DecodeError{Type: msgType, Field: field, Kind: ErrMissingField}
}

func (e *DecodeError) Error() string {
	msg := e.Kind.Error()
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Field)
	}
	if e.Type != "" {
		msg = fmt.Sprintf("decode %q: %s", e.Type, msg)
	} else {
		msg = "decode: " + msg
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is matches the sentinel kind.
func (e *DecodeError) Is(target error) bool {
	return target == e.Kind
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
