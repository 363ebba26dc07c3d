package client

import (
	"testing"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestCacheRecordMessageCreatesChannel(t *testing.T) {
	cache := NewCache()

	_, ok := cache.Snapshot("general")
	assert.False(t, ok)

	cache.RecordMessage("general", Message{Text: "hi", Sender: UserRef{ID: "u2", Name: "bob"}})
	cache.RecordMessage("general", Message{Text: "there", Sender: UserRef{ID: "u3", Name: "carol"}})

	state, ok := cache.Snapshot("general")
	require.True(t, ok)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "hi", state.Messages[0].Text)
	assert.Equal(t, "there", state.Messages[1].Text)
	assert.Equal(t, []string{"general"}, cache.Channels())
}

func TestCacheChannelNamesAreExact(t *testing.T) {
	cache := NewCache()
	cache.EnsureChannel("general")
	cache.EnsureChannel("General")
	cache.EnsureChannel("general ")

	assert.Equal(t, []string{"general", "General", "general "}, cache.Channels())
}

func TestCacheMembership(t *testing.T) {
	cache := NewCache()

	cache.ReplaceMembers("general", []UserRef{{ID: "u1", Name: "alice"}, {ID: "u2", Name: "bob"}})
	assert.Equal(t, map[string]string{"u1": "alice", "u2": "bob"}, cache.Members("general"))

	cache.AddMember("general", UserRef{ID: "u3", Name: "carol"})
	cache.RemoveMember("general", "u1")
	assert.Equal(t, map[string]string{"u2": "bob", "u3": "carol"}, cache.Members("general"))

	// Replacement discards previous members entirely
	cache.ReplaceMembers("general", []UserRef{{ID: "u9", Name: "zed"}})
	assert.Equal(t, map[string]string{"u9": "zed"}, cache.Members("general"))
}

func TestCacheRenameMemberAcrossChannels(t *testing.T) {
	cache := NewCache()
	cache.AddMember("general", UserRef{ID: "u2", Name: "bob"})
	cache.AddMember("random", UserRef{ID: "u3", Name: "carol"})
	cache.AddMember("tech", UserRef{ID: "u2", Name: "bob"})

	touched := cache.RenameMember("u2", "robert")
	assert.Equal(t, []string{"general", "tech"}, touched)
	assert.Equal(t, "robert", cache.Members("general")["u2"])
	assert.Equal(t, "robert", cache.Members("tech")["u2"])
	assert.Equal(t, map[string]string{"u3": "carol"}, cache.Members("random"))

	assert.Empty(t, cache.RenameMember("nobody", "x"))
}

func TestCacheSnapshotIsACopy(t *testing.T) {
	cache := NewCache()
	cache.RecordMessage("general", Message{Text: "hi"})
	cache.AddMember("general", UserRef{ID: "u1", Name: "alice"})

	state, _ := cache.Snapshot("general")
	state.Messages[0].Text = "mutated"
	state.Members["u1"] = "mallory"

	again, _ := cache.Snapshot("general")
	assert.Equal(t, "hi", again.Messages[0].Text)
	assert.Equal(t, "alice", again.Members["u1"])
}

func TestCacheChannelsInfoIsUnion(t *testing.T) {
	cache := NewCache()
	cache.RecordMessage("general", Message{Text: "hi"})

	info := []protocol.ChannelInfo{{Name: "general", UserCount: 2}, {Name: "random", UserCount: 1}}
	cache.SetChannelsInfo(info)
	cache.SetChannelsInfo(info)

	assert.Equal(t, []string{"general", "random"}, cache.Channels())
	assert.Equal(t, info, cache.ChannelsInfo())

	// Existing history survives the channel list refresh
	state, _ := cache.Snapshot("general")
	assert.Len(t, state.Messages, 1)
}

// TestCacheChannelsNeverDuplicate checks the channel set is the union of every
// name ever referenced, with no duplicates, for any sequence of operations.
func TestCacheChannelsNeverDuplicate(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		cache := NewCache()
		names := rapid.SliceOfN(rapid.SampledFrom([]string{"a", "b", "c", "A", " a"}), 1, 50).Draw(t, "names")

		seen := map[string]bool{}
		for i, name := range names {
			switch rapid.IntRange(0, 3).Draw(t, "op") {
			case 0:
				cache.RecordMessage(name, Message{Text: "x"})
			case 1:
				cache.AddMember(name, UserRef{ID: "u", Name: "n"})
			case 2:
				cache.SetChannelsInfo([]protocol.ChannelInfo{{Name: name}})
			default:
				cache.EnsureChannel(name)
			}
			seen[name] = true

			channels := cache.Channels()
			if len(channels) != len(seen) {
				t.Fatalf("step %d: %d channels cached, %d referenced", i, len(channels), len(seen))
			}
		}
	})
}
