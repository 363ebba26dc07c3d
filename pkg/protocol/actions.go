package protocol

import "encoding/json"

// Action name constants (Client → Server)
const (
	ActionJoinChannel     = "join-channel"
	ActionSendMessage     = "send-message"
	ActionChangeName      = "change-name"
	ActionGetChannelsInfo = "get-channels-info"
	ActionGetChannelUsers = "get-channel-users"
)

// Action is an outbound request. Its JSON form is the envelope payload.
type Action interface {
	ActionName() string
}

// JoinChannelAction (join-channel)
type JoinChannelAction struct {
	TargetChannel string `json:"target-channel"`
}

// SendMessageAction (send-message)
type SendMessageAction struct {
	TargetChannel string `json:"target-channel"`
	Message       string `json:"message"`
}

// ChangeNameAction (change-name)
type ChangeNameAction struct {
	NewName string `json:"new-name"`
}

// GetChannelsInfoAction (get-channels-info) - empty payload
type GetChannelsInfoAction struct{}

// GetChannelUsersAction (get-channel-users)
type GetChannelUsersAction struct {
	TargetChannel string `json:"target-channel"`
}

func (*JoinChannelAction) ActionName() string { return ActionJoinChannel }
func (*SendMessageAction) ActionName() string { return ActionSendMessage }
func (*ChangeNameAction) ActionName() string { return ActionChangeName }
func (*GetChannelsInfoAction) ActionName() string { return ActionGetChannelsInfo }
func (*GetChannelUsersAction) ActionName() string { return ActionGetChannelUsers }

// EncodeAction serializes an action into an outbound envelope.
func EncodeAction(a Action) ([]byte, error) {
	return EncodeActionFrame(a.ActionName(), a)
}

// ParseAction converts a validated outbound envelope into a typed action.
// Unknown action names fail with ErrUnknownType.
func ParseAction(f *ActionFrame) (Action, error) {
	var target Action
	switch f.Action {
	case ActionJoinChannel:
		var w struct {
			TargetChannel *string `json:"target-channel"`
		}
		if err := unmarshalAction(f, &w); err != nil {
			return nil, err
		}
		if w.TargetChannel == nil {
			return nil, &DecodeError{Type: f.Action, Field: "target-channel", Kind: ErrMissingField}
		}
		target = &JoinChannelAction{TargetChannel: *w.TargetChannel}
	case ActionSendMessage:
		var w struct {
			TargetChannel *string `json:"target-channel"`
			Message       *string `json:"message"`
		}
		if err := unmarshalAction(f, &w); err != nil {
			return nil, err
		}
		if w.TargetChannel == nil {
			return nil, &DecodeError{Type: f.Action, Field: "target-channel", Kind: ErrMissingField}
		}
		if w.Message == nil {
			return nil, &DecodeError{Type: f.Action, Field: "message", Kind: ErrMissingField}
		}
		target = &SendMessageAction{TargetChannel: *w.TargetChannel, Message: *w.Message}
	case ActionChangeName:
		var w struct {
			NewName *string `json:"new-name"`
		}
		if err := unmarshalAction(f, &w); err != nil {
			return nil, err
		}
		if w.NewName == nil {
			return nil, &DecodeError{Type: f.Action, Field: "new-name", Kind: ErrMissingField}
		}
		target = &ChangeNameAction{NewName: *w.NewName}
	case ActionGetChannelsInfo:
		target = &GetChannelsInfoAction{}
	case ActionGetChannelUsers:
		var w struct {
			TargetChannel *string `json:"target-channel"`
		}
		if err := unmarshalAction(f, &w); err != nil {
			return nil, err
		}
		if w.TargetChannel == nil {
			return nil, &DecodeError{Type: f.Action, Field: "target-channel", Kind: ErrMissingField}
		}
		target = &GetChannelUsersAction{TargetChannel: *w.TargetChannel}
	default:
		return nil, &DecodeError{Type: f.Action, Kind: ErrUnknownType}
	}
	return target, nil
}

// DecodeAction is a helper that decodes and parses raw outbound frame bytes
func DecodeAction(data []byte) (Action, error) {
	f, err := DecodeActionFrame(data)
	if err != nil {
		return nil, err
	}
	return ParseAction(f)
}

func unmarshalAction(f *ActionFrame, v any) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return newDecodeError(f.Action, ErrInvalidPayload, err)
	}
	return nil
}
