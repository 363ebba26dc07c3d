package ui

import (
	"errors"
	"testing"

	"github.com/butembo/butembochat/pkg/client"
	"github.com/butembo/butembochat/pkg/protocol"
	tea "github.com/charmbracelet/bubbletea"
)

func TestObserver_ForwardsEvents(t *testing.T) {
	var got []tea.Msg
	o := NewObserver(func(msg tea.Msg) { got = append(got, msg) })

	o.OnConnected()
	o.OnWelcome("u1", "alice")
	o.OnMessage("general", "hi", "bob", "u2")
	o.OnUserJoin("general", "bob", "u2")
	o.OnUserLeave("general", "bob", "u2")
	o.OnUserRename("robert", "bob", "bob", "u2")
	o.OnError("bad name")
	o.OnDisconnected(errors.New("EOF"))

	want := []tea.Msg{
		connectionMsg{connected: true},
		welcomeMsg{id: "u1", name: "alice"},
		chatMsg{channel: "general", msg: client.Message{Text: "hi", Sender: client.UserRef{ID: "u2", Name: "bob"}}},
		memberMsg{channel: "general", user: client.UserRef{ID: "u2", Name: "bob"}, joined: true},
		memberMsg{channel: "general", user: client.UserRef{ID: "u2", Name: "bob"}},
		renameMsg{oldName: "bob", newName: "robert", userID: "u2"},
		serverErrorMsg{description: "bad name"},
	}
	if len(got) != len(want)+1 {
		t.Fatalf("got %d messages, want %d", len(got), len(want)+1)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d = %#v, want %#v", i, got[i], want[i])
		}
	}

	last, ok := got[len(got)-1].(connectionMsg)
	if !ok || last.connected || last.err == nil || last.err.Error() != "EOF" {
		t.Errorf("disconnect message = %#v", got[len(got)-1])
	}
}

func TestObserver_CopiesCollections(t *testing.T) {
	var got []tea.Msg
	o := NewObserver(func(msg tea.Msg) { got = append(got, msg) })

	users := map[string]string{"u1": "alice"}
	info := []protocol.ChannelInfo{{Name: "general", UserCount: 1}}
	o.OnChannelUsers("general", users)
	o.OnChannelsInfo(info)

	// The client may reuse these after the callback returns
	users["u1"] = "mallory"
	info[0].Name = "changed"

	if got[0].(usersMsg).users["u1"] != "alice" {
		t.Error("users map should be copied")
	}
	if got[1].(channelsMsg).info[0].Name != "general" {
		t.Error("channel info should be copied")
	}
}

func TestObserver_DrivesModel(t *testing.T) {
	m, _ := SetupTestModelWithDimensions(80, 24)
	o := NewObserver(func(msg tea.Msg) { m = sendMsgs(m, msg) })

	o.OnWelcome("u1", "alice")
	o.OnUserJoin("general", "alice", "u1")
	o.OnMessage("general", "hello", "alice", "u1")

	if m.CurrentChannel() != "general" {
		t.Errorf("current channel = %q, want general", m.CurrentChannel())
	}
	if lastLine(m) != "[general] alice: hello" {
		t.Errorf("last line = %q", lastLine(m))
	}
}
