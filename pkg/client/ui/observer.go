package ui

import (
	"github.com/butembo/butembochat/pkg/client"
	"github.com/butembo/butembochat/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
)

// Messages pushed into the program by Observer
type connectionMsg struct {
	connected bool
	err       error
}

type welcomeMsg struct{ id, name string }

type chatMsg struct {
	channel string
	msg     client.Message
}

type memberMsg struct {
	channel string
	user    client.UserRef
	joined  bool
}

type renameMsg struct{ oldName, newName, userID string }

type usersMsg struct {
	channel string
	users   map[string]string
}

type channelsMsg struct{ info []protocol.ChannelInfo }

type serverErrorMsg struct{ description string }

// Observer forwards client events to a running program. send is usually
// (*tea.Program).Send, which blocks until the program takes the message or
// has exited.
type Observer struct {
	client.BaseObserver
	send func(tea.Msg)
}

// NewObserver creates an observer that delivers events through send
func NewObserver(send func(tea.Msg)) *Observer {
	return &Observer{send: send}
}

func (o *Observer) OnConnected() {
	o.send(connectionMsg{connected: true})
}

func (o *Observer) OnDisconnected(err error) {
	o.send(connectionMsg{err: err})
}

func (o *Observer) OnWelcome(myID, myName string) {
	o.send(welcomeMsg{id: myID, name: myName})
}

func (o *Observer) OnMessage(channel, message, userName, userID string) {
	o.send(chatMsg{channel: channel, msg: client.Message{
		Text:   message,
		Sender: client.UserRef{ID: userID, Name: userName},
	}})
}

func (o *Observer) OnUserJoin(channel, userName, userID string) {
	o.send(memberMsg{channel: channel, user: client.UserRef{ID: userID, Name: userName}, joined: true})
}

func (o *Observer) OnUserLeave(channel, userName, userID string) {
	o.send(memberMsg{channel: channel, user: client.UserRef{ID: userID, Name: userName}})
}

func (o *Observer) OnUserRename(newName, oldName, userName, userID string) {
	o.send(renameMsg{oldName: oldName, newName: newName, userID: userID})
}

func (o *Observer) OnChannelUsers(channel string, users map[string]string) {
	// The map belongs to the caller once the callback returns
	copied := make(map[string]string, len(users))
	for id, name := range users {
		copied[id] = name
	}
	o.send(usersMsg{channel: channel, users: copied})
}

func (o *Observer) OnChannelsInfo(info []protocol.ChannelInfo) {
	o.send(channelsMsg{info: append([]protocol.ChannelInfo(nil), info...)})
}

func (o *Observer) OnError(description string) {
	o.send(serverErrorMsg{description: description})
}
