package protocol

import (
	"encoding/json"
	"fmt"
)

// Message type constants (Server → Client)
const (
	TypeWelcome      = "welcome"
	TypeMessage      = "message"
	TypeUserJoin     = "user-join"
	TypeUserLeave    = "user-leave"
	TypeUserRename   = "user-rename"
	TypeChannelUsers = "channel-users"
	TypeChannelsInfo = "channels-info"
)

// Message is one of the typed inbound messages returned by ParseMessage.
type Message interface {
	MessageType() string
}

// User identifies a participant. ID is assigned by the server and stable for
// the lifetime of a connection; Name is mutable and not unique.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Welcome (welcome) - server assigns the local user's identity
type Welcome struct {
	User User `json:"user"`
}

// ChatMessage (message) - a chat line posted to a channel
type ChatMessage struct {
	Channel string `json:"channel"`
	User    User   `json:"user"`
	Text    string `json:"message"`
}

// UserJoin (user-join) - a user joined a channel
type UserJoin struct {
	Channel string `json:"channel"`
	User    User   `json:"user"`
}

// UserLeave (user-leave) - a user left a channel
type UserLeave struct {
	Channel string `json:"channel"`
	User    User   `json:"user"`
}

// UserRename (user-rename) - a user changed their display name.
// It is not scoped to a channel.
type UserRename struct {
	OldName string `json:"old-name"`
	NewName string `json:"new-name"`
	User    User   `json:"user"`
}

// ChannelUsers (channel-users) - the full roster of a channel
type ChannelUsers struct {
	Channel string `json:"channel"`
	Users   []User `json:"users"`
}

// ChannelInfo is one entry of a channels-info reply.
type ChannelInfo struct {
	Name      string `json:"name"`
	UserCount int    `json:"user-count"`
}

// ChannelsInfo (channels-info) - the server's channel list
type ChannelsInfo struct {
	Info []ChannelInfo `json:"info"`
}

// Unrecognized carries a well-formed envelope whose type is not known.
type Unrecognized struct {
	Type    string
	Payload json.RawMessage
}

func (*Welcome) MessageType() string { return TypeWelcome }
func (*ChatMessage) MessageType() string { return TypeMessage }
func (*UserJoin) MessageType() string { return TypeUserJoin }
func (*UserLeave) MessageType() string { return TypeUserLeave }
func (*UserRename) MessageType() string { return TypeUserRename }
func (*ChannelUsers) MessageType() string { return TypeChannelUsers }
func (*ChannelsInfo) MessageType() string { return TypeChannelsInfo }
func (m *Unrecognized) MessageType() string { return m.Type }

// EncodeMessage serializes a typed message into an inbound envelope.
func EncodeMessage(m Message) ([]byte, error) {
	if u, ok := m.(*Unrecognized); ok {
		return EncodeFrame(u.Type, u.Payload)
	}
	return EncodeFrame(m.MessageType(), m)
}

// ParseMessage converts a validated envelope into a typed message.
// Unknown types yield *Unrecognized and a nil error. Payloads missing any
// required field fail with a *DecodeError; nothing partial is returned.
func ParseMessage(f *Frame) (Message, error) {
	switch f.Type {
	case TypeWelcome:
		return parseWelcome(f)
	case TypeMessage:
		return parseChatMessage(f)
	case TypeUserJoin:
		ch, user, err := parseChannelUser(f)
		if err != nil {
			return nil, err
		}
		return &UserJoin{Channel: ch, User: user}, nil
	case TypeUserLeave:
		ch, user, err := parseChannelUser(f)
		if err != nil {
			return nil, err
		}
		return &UserLeave{Channel: ch, User: user}, nil
	case TypeUserRename:
		return parseUserRename(f)
	case TypeChannelUsers:
		return parseChannelUsers(f)
	case TypeChannelsInfo:
		return parseChannelsInfo(f)
	default:
		return &Unrecognized{Type: f.Type, Payload: f.Payload}, nil
	}
}

// DecodeMessage is a helper that decodes and parses raw frame bytes
func DecodeMessage(data []byte) (Message, error) {
	f, err := DecodeFrame(data)
	if err != nil {
		return nil, err
	}
	return ParseMessage(f)
}

type wireUser struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

func (u *wireUser) user(msgType, path string) (User, error) {
	if u == nil {
		return User{}, missingField(msgType, path)
	}
	if u.ID == nil {
		return User{}, missingField(msgType, path+".id")
	}
	if u.Name == nil {
		return User{}, missingField(msgType, path+".name")
	}
	return User{ID: *u.ID, Name: *u.Name}, nil
}

func unmarshalPayload(f *Frame, v any) error {
	if err := json.Unmarshal(f.Payload, v); err != nil {
		return newDecodeError(f.Type, ErrInvalidPayload, err)
	}
	return nil
}

func parseWelcome(f *Frame) (Message, error) {
	var w struct {
		User *wireUser `json:"user"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return nil, err
	}
	user, err := w.User.user(f.Type, "user")
	if err != nil {
		return nil, err
	}
	return &Welcome{User: user}, nil
}

func parseChatMessage(f *Frame) (Message, error) {
	var w struct {
		Channel *string   `json:"channel"`
		User    *wireUser `json:"user"`
		Message *string   `json:"message"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return nil, err
	}
	if w.Channel == nil {
		return nil, missingField(f.Type, "channel")
	}
	user, err := w.User.user(f.Type, "user")
	if err != nil {
		return nil, err
	}
	if w.Message == nil {
		return nil, missingField(f.Type, "message")
	}
	return &ChatMessage{Channel: *w.Channel, User: user, Text: *w.Message}, nil
}

func parseChannelUser(f *Frame) (string, User, error) {
	var w struct {
		Channel *string   `json:"channel"`
		User    *wireUser `json:"user"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return "", User{}, err
	}
	if w.Channel == nil {
		return "", User{}, missingField(f.Type, "channel")
	}
	user, err := w.User.user(f.Type, "user")
	if err != nil {
		return "", User{}, err
	}
	return *w.Channel, user, nil
}

func parseUserRename(f *Frame) (Message, error) {
	var w struct {
		OldName *string   `json:"old-name"`
		NewName *string   `json:"new-name"`
		User    *wireUser `json:"user"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return nil, err
	}
	if w.OldName == nil {
		return nil, missingField(f.Type, "old-name")
	}
	if w.NewName == nil {
		return nil, missingField(f.Type, "new-name")
	}
	if w.User == nil || w.User.ID == nil {
		return nil, missingField(f.Type, "user.id")
	}

	// user.name is optional here; the new name is authoritative.
	name := *w.NewName
	if w.User.Name != nil {
		name = *w.User.Name
	}
	return &UserRename{
		OldName: *w.OldName,
		NewName: *w.NewName,
		User:    User{ID: *w.User.ID, Name: name},
	}, nil
}

func parseChannelUsers(f *Frame) (Message, error) {
	var w struct {
		Channel *string     `json:"channel"`
		Users   *[]wireUser `json:"users"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return nil, err
	}
	if w.Channel == nil {
		return nil, missingField(f.Type, "channel")
	}
	if w.Users == nil {
		return nil, missingField(f.Type, "users")
	}

	users := make([]User, 0, len(*w.Users))
	for i := range *w.Users {
		user, err := (*w.Users)[i].user(f.Type, fmt.Sprintf("users[%d]", i))
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return &ChannelUsers{Channel: *w.Channel, Users: users}, nil
}

func parseChannelsInfo(f *Frame) (Message, error) {
	var w struct {
		Info *[]struct {
			Name      *string `json:"name"`
			UserCount *int    `json:"user-count"`
		} `json:"info"`
	}
	if err := unmarshalPayload(f, &w); err != nil {
		return nil, err
	}
	if w.Info == nil {
		return nil, missingField(f.Type, "info")
	}

	info := make([]ChannelInfo, 0, len(*w.Info))
	for i, entry := range *w.Info {
		if entry.Name == nil {
			return nil, missingField(f.Type, fmt.Sprintf("info[%d].name", i))
		}
		if entry.UserCount == nil {
			return nil, missingField(f.Type, fmt.Sprintf("info[%d].user-count", i))
		}
		info = append(info, ChannelInfo{Name: *entry.Name, UserCount: *entry.UserCount})
	}
	return &ChannelsInfo{Info: info}, nil
}
