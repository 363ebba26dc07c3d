package client

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSender records the actions an observer takes
type fakeSender struct {
	local   UserRef
	known   bool
	address string

	renames []string
	joins   []string
}

func (f *fakeSender) JoinChannel(channel string) bool {
	f.joins = append(f.joins, channel)
	return true
}

func (f *fakeSender) SendMessage(channel, text string) bool { return true }

func (f *fakeSender) ChangeUserName(newName string) bool {
	f.renames = append(f.renames, newName)
	return true
}

func (f *fakeSender) RequestChannelsInfo() bool               { return true }
func (f *fakeSender) RequestChannelUsers(channel string) bool { return true }
func (f *fakeSender) LocalUser() (UserRef, bool)              { return f.local, f.known }
func (f *fakeSender) Address() string                         { return f.address }

func newTestAutoSession() (*AutoSession, *fakeSender, *MockState) {
	sender := &fakeSender{
		local:   UserRef{ID: "me", Name: "new-user"},
		known:   true,
		address: "ws://localhost:10000",
	}
	state := NewMockState()
	return NewAutoSession(sender, state, zerolog.Nop()), sender, state
}

func TestAutoSessionRecordsConnection(t *testing.T) {
	auto, _, state := newTestAutoSession()

	auto.OnConnected()

	addr, at, err := state.LastConnection()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:10000", addr)
	assert.False(t, at.IsZero())
}

func TestAutoSessionRestoresOnWelcome(t *testing.T) {
	auto, sender, state := newTestAutoSession()
	require.NoError(t, state.SetLastNickname("alice"))
	require.NoError(t, state.AddJoinedChannel("general"))
	require.NoError(t, state.AddJoinedChannel("tech"))

	auto.OnWelcome("me", "new-user")

	assert.Equal(t, []string{"alice"}, sender.renames)
	assert.Equal(t, []string{"general", "tech"}, sender.joins)
}

func TestAutoSessionSkipsRenameWhenNameMatches(t *testing.T) {
	auto, sender, state := newTestAutoSession()
	require.NoError(t, state.SetLastNickname("alice"))

	auto.OnWelcome("me", "alice")
	assert.Empty(t, sender.renames)

	state.Clear()
	auto.OnWelcome("me", "new-user")
	assert.Empty(t, sender.renames, "no saved nickname")
}

func TestAutoSessionDisabled(t *testing.T) {
	auto, sender, state := newTestAutoSession()
	auto.AutoSetNickname = false
	auto.RejoinChannels = false
	require.NoError(t, state.SetLastNickname("alice"))
	require.NoError(t, state.AddJoinedChannel("general"))

	auto.OnWelcome("me", "new-user")

	assert.Empty(t, sender.renames)
	assert.Empty(t, sender.joins)
}

func TestAutoSessionPersistsLocalChangesOnly(t *testing.T) {
	auto, _, state := newTestAutoSession()

	auto.OnUserRename("bob", "new-user", "bob", "someone-else")
	assert.Empty(t, state.GetLastNickname())

	auto.OnUserRename("alice", "new-user", "alice", "me")
	assert.Equal(t, "alice", state.GetLastNickname())

	auto.OnUserJoin("general", "bob", "someone-else")
	auto.OnUserJoin("general", "alice", "me")
	auto.OnUserJoin("tech", "alice", "me")
	channels, err := state.GetJoinedChannels()
	require.NoError(t, err)
	assert.Equal(t, []string{"general", "tech"}, channels)

	auto.OnUserLeave("tech", "bob", "someone-else")
	auto.OnUserLeave("general", "alice", "me")
	channels, err = state.GetJoinedChannels()
	require.NoError(t, err)
	assert.Equal(t, []string{"tech"}, channels)
}

func TestAutoSessionIgnoresEventsBeforeWelcome(t *testing.T) {
	auto, sender, state := newTestAutoSession()
	sender.known = false

	auto.OnUserJoin("general", "new-user", "me")

	channels, err := state.GetJoinedChannels()
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestAutoSessionStateErrorsAreLogged(t *testing.T) {
	auto, sender, state := newTestAutoSession()
	boom := errors.New("disk full")
	state.SetRecordConnectionError(boom)
	state.SetJoinedChannelsError(boom)
	state.SetSetConfigError(boom)

	assert.NotPanics(t, func() {
		auto.OnConnected()
		auto.OnWelcome("me", "new-user")
		auto.OnUserRename("alice", "new-user", "alice", "me")
		auto.OnUserJoin("general", "alice", "me")
		auto.OnUserLeave("general", "alice", "me")
	})
	assert.Empty(t, sender.joins)
}
