package server

import (
	"io"
	"slices"
	"sync"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/google/uuid"
)

// Session represents an active client connection
type Session struct {
	ID string // Server-assigned user ID, stable for the connection

	mu   sync.RWMutex // Protects name
	name string

	conn      io.Closer
	outgoing  chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// Name returns the session's current display name
func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

// User returns the session as a wire user
func (s *Session) User() protocol.User {
	return protocol.User{ID: s.ID, Name: s.Name()}
}

// Send queues a frame without blocking. It returns false when the session
// is closed or its queue is full.
func (s *Session) Send(data []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}

	select {
	case s.outgoing <- data:
		return true
	default:
		return false
	}
}

// Done is closed when the session is closed
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close closes the session and its connection
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}

// channel is a named set of sessions in join order
type channel struct {
	name    string
	members []*Session
}

func (c *channel) has(sess *Session) bool {
	return slices.Contains(c.members, sess)
}

// SessionManager manages all active sessions and channel memberships
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	channels map[string]*channel
	order    []string // channel creation order

	defaultName string
	queueSize   int
	metrics     *Metrics
}

// NewSessionManager creates a session manager with the configured seed channels
func NewSessionManager(cfg ServerConfig, metrics *Metrics) *SessionManager {
	sm := &SessionManager{
		sessions:    make(map[string]*Session),
		channels:    make(map[string]*channel),
		defaultName: cfg.DefaultNickname,
		queueSize:   cfg.SendQueueSize,
		metrics:     metrics,
	}
	for _, name := range cfg.SeedChannels {
		sm.channelLocked(name)
	}
	return sm
}

// channelLocked returns the channel, creating it if needed
func (sm *SessionManager) channelLocked(name string) *channel {
	ch, ok := sm.channels[name]
	if !ok {
		ch = &channel{name: name}
		sm.channels[name] = ch
		sm.order = append(sm.order, name)
	}
	return ch
}

// CreateSession creates a new session with a fresh user ID and the default
// name
func (sm *SessionManager) CreateSession(conn io.Closer) *Session {
	sess := &Session{
		ID:       uuid.NewString(),
		name:     sm.defaultName,
		conn:     conn,
		outgoing: make(chan []byte, sm.queueSize),
		done:     make(chan struct{}),
	}

	sm.mu.Lock()
	sm.sessions[sess.ID] = sess
	count := len(sm.sessions)
	sm.mu.Unlock()

	sm.metrics.RecordActiveSessions(count)
	sm.metrics.RecordSessionCreated()
	return sess
}

// GetSession returns a session by ID
func (sm *SessionManager) GetSession(id string) (*Session, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sess, ok := sm.sessions[id]
	return sess, ok
}

// GetAllSessions returns all active sessions
func (sm *SessionManager) GetAllSessions() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	sessions := make([]*Session, 0, len(sm.sessions))
	for _, sess := range sm.sessions {
		sessions = append(sessions, sess)
	}
	return sessions
}

// RemoveSession removes a session from every channel, closes it and returns
// the channels it was a member of. Removing an unknown session is a no-op.
func (sm *SessionManager) RemoveSession(id string) []string {
	sm.mu.Lock()
	sess, ok := sm.sessions[id]
	if !ok {
		sm.mu.Unlock()
		return nil
	}
	delete(sm.sessions, id)

	var left []string
	for _, name := range sm.order {
		ch := sm.channels[name]
		if i := slices.Index(ch.members, sess); i >= 0 {
			ch.members = slices.Delete(ch.members, i, i+1)
			left = append(left, name)
			sm.metrics.RecordChannelMembers(name, len(ch.members))
		}
	}
	sessionCount := len(sm.sessions)
	sm.mu.Unlock()

	sess.Close()

	// Update metrics
	sm.metrics.RecordActiveSessions(sessionCount)
	sm.metrics.RecordSessionDisconnected()
	return left
}

// Join adds sess to the channel, creating the channel if needed. It reports
// whether the session was newly added.
func (sm *SessionManager) Join(sess *Session, name string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := sm.channelLocked(name)
	if ch.has(sess) {
		return false
	}
	ch.members = append(ch.members, sess)
	sm.metrics.RecordChannelMembers(name, len(ch.members))
	return true
}

// IsMember reports whether sess has joined the channel
func (sm *SessionManager) IsMember(sess *Session, name string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ch, ok := sm.channels[name]
	return ok && ch.has(sess)
}

// Members returns the channel's sessions in join order
func (sm *SessionManager) Members(name string) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	ch, ok := sm.channels[name]
	if !ok {
		return nil
	}
	return slices.Clone(ch.members)
}

// Roster returns the channel's users in join order. Unknown channels have
// an empty roster.
func (sm *SessionManager) Roster(name string) []protocol.User {
	members := sm.Members(name)
	users := make([]protocol.User, 0, len(members))
	for _, sess := range members {
		users = append(users, sess.User())
	}
	return users
}

// Peers returns sess and every session sharing a channel with it, each once
func (sm *SessionManager) Peers(sess *Session) []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	peers := []*Session{sess}
	for _, name := range sm.order {
		ch := sm.channels[name]
		if !ch.has(sess) {
			continue
		}
		for _, m := range ch.members {
			if !slices.Contains(peers, m) {
				peers = append(peers, m)
			}
		}
	}
	return peers
}

// Rename changes the session's display name and returns the old one
func (sm *SessionManager) Rename(sess *Session, newName string) string {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	old := sess.name
	sess.name = newName
	return old
}

// ChannelsInfo lists every channel in creation order with its member count
func (sm *SessionManager) ChannelsInfo() []protocol.ChannelInfo {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	info := make([]protocol.ChannelInfo, 0, len(sm.order))
	for _, name := range sm.order {
		info = append(info, protocol.ChannelInfo{Name: name, UserCount: len(sm.channels[name].members)})
	}
	return info
}

// CountOnlineUsers returns the number of connected sessions
func (sm *SessionManager) CountOnlineUsers() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CountChannels returns the number of known channels
func (sm *SessionManager) CountChannels() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.order)
}

// CloseAll closes every session
func (sm *SessionManager) CloseAll() {
	for _, sess := range sm.GetAllSessions() {
		sm.RemoveSession(sess.ID)
	}
}
