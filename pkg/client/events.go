package client

import "github.com/butembo/butembochat/pkg/protocol"

// Observer receives semantic connection events. Callbacks run on the
// client's delivery goroutine, one event at a time, in registration order.
// They must not block for long; slow work belongs on another goroutine.
type Observer interface {
	OnConnected()
	OnDisconnected(err error)
	OnWelcome(myID, myName string)
	OnMessage(channel, message, userName, userID string)
	OnUserJoin(channel, userName, userID string)
	OnUserLeave(channel, userName, userID string)
	OnUserRename(newName, oldName, userName, userID string)
	OnChannelUsers(channel string, users map[string]string)
	OnChannelsInfo(info []protocol.ChannelInfo)
	OnError(description string)
}

// BaseObserver implements every Observer callback as a no-op. Embed it
// and override only the events of interest.
type BaseObserver struct{}

func (BaseObserver) OnConnected() {}
func (BaseObserver) OnDisconnected(err error) {}
func (BaseObserver) OnWelcome(myID, myName string) {}
func (BaseObserver) OnMessage(channel, message, userName, userID string) {}
func (BaseObserver) OnUserJoin(channel, userName, userID string) {}
func (BaseObserver) OnUserLeave(channel, userName, userID string) {}
func (BaseObserver) OnUserRename(newName, oldName, userName, userID string) {}
func (BaseObserver) OnChannelUsers(channel string, users map[string]string) {}
func (BaseObserver) OnChannelsInfo(info []protocol.ChannelInfo) {}
func (BaseObserver) OnError(description string) {}

// UserRef identifies a chat participant. Uniqueness is by ID.
type UserRef struct {
	ID   string
	Name string
}

// Message is one chat line in a channel's history.
type Message struct {
	Text   string
	Sender UserRef
}
