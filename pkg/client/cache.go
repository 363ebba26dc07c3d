package client

import (
	"maps"
	"slices"
	"sync"

	"github.com/butembo/butembochat/pkg/protocol"
)

// ChannelState is a point-in-time copy of one channel's cached history and
// roster. Members maps user ID to display name.
type ChannelState struct {
	Messages []Message
	Members  map[string]string
}

type channelEntry struct {
	messages []Message
	members  map[string]string
}

// Cache holds per-channel chat history and membership for the lifetime of
// the process. Entries are created on first reference and never evicted;
// channel names are compared exactly, without normalization.
type Cache struct {
	mu           sync.RWMutex
	channels     map[string]*channelEntry
	order        []string // first-seen order
	channelsInfo []protocol.ChannelInfo
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{
		channels: make(map[string]*channelEntry),
	}
}

// entryLocked returns the channel entry, creating it if absent
func (c *Cache) entryLocked(channel string) *channelEntry {
	entry, ok := c.channels[channel]
	if !ok {
		entry = &channelEntry{members: make(map[string]string)}
		c.channels[channel] = entry
		c.order = append(c.order, channel)
	}
	return entry
}

// EnsureChannel creates an empty entry for channel if none exists.
// It reports whether a new entry was created.
func (c *Cache) EnsureChannel(channel string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.channels[channel]; ok {
		return false
	}
	c.entryLocked(channel)
	return true
}

// RecordMessage appends msg to the channel's history
func (c *Cache) RecordMessage(channel string, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entryLocked(channel)
	entry.messages = append(entry.messages, msg)
}

// ReplaceMembers replaces the channel's roster wholesale
func (c *Cache) ReplaceMembers(channel string, users []UserRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entryLocked(channel)
	members := make(map[string]string, len(users))
	for _, u := range users {
		members[u.ID] = u.Name
	}
	entry.members = members
}

// AddMember adds or updates one roster entry
func (c *Cache) AddMember(channel string, user UserRef) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entryLocked(channel).members[user.ID] = user.Name
}

// RemoveMember drops a user from the channel's roster
func (c *Cache) RemoveMember(channel, userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entryLocked(channel).members, userID)
}

// RenameMember updates the user's name in every channel where the user is a
// member, and returns those channels in first-seen order.
func (c *Cache) RenameMember(userID, newName string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var touched []string
	for _, name := range c.order {
		entry := c.channels[name]
		if _, ok := entry.members[userID]; ok {
			entry.members[userID] = newName
			touched = append(touched, name)
		}
	}
	return touched
}

// SetChannelsInfo stores the latest channel list and ensures an entry for
// every listed channel. Known channels are never duplicated.
func (c *Cache) SetChannelsInfo(info []protocol.ChannelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channelsInfo = slices.Clone(info)
	for _, ch := range info {
		c.entryLocked(ch.Name)
	}
}

// ChannelsInfo returns the latest channel list received from the server
func (c *Cache) ChannelsInfo() []protocol.ChannelInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.channelsInfo)
}

// Snapshot returns a deep copy of the channel's state
func (c *Cache) Snapshot(channel string) (ChannelState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.channels[channel]
	if !ok {
		return ChannelState{Members: map[string]string{}}, false
	}
	return ChannelState{
		Messages: slices.Clone(entry.messages),
		Members:  maps.Clone(entry.members),
	}, true
}

// Members returns a copy of the channel's roster
func (c *Cache) Members(channel string) map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.channels[channel]
	if !ok {
		return map[string]string{}
	}
	return maps.Clone(entry.members)
}

// Channels returns every channel ever referenced, in first-seen order
func (c *Cache) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.order)
}
