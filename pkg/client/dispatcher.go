package client

import (
	"errors"
	"sync"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/rs/zerolog"
)

// Dispatcher routes decoded inbound frames: it updates the cache, then fans
// the resulting event out to every registered observer.
type Dispatcher struct {
	cache    *Cache
	registry *ObserverRegistry
	logger   zerolog.Logger
	metrics  *Metrics

	mu    sync.RWMutex
	local UserRef
	known bool
}

// NewDispatcher creates a dispatcher over cache and registry
func NewDispatcher(cache *Cache, registry *ObserverRegistry, logger zerolog.Logger, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		cache:    cache,
		registry: registry,
		logger:   logger,
		metrics:  metrics,
	}
}

// LocalUser returns the identity assigned by the last welcome
func (d *Dispatcher) LocalUser() (UserRef, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.local, d.known
}

// Dispatch decodes one inbound frame and handles it. Frames that fail to
// decode and frames of unknown type produce no event and leave the cache
// untouched. It reports whether an event was raised.
func (d *Dispatcher) Dispatch(data []byte) bool {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		d.metrics.RecordFrameDropped(dropDecode)
		event := d.logger.Warn().Err(err)
		var de *protocol.DecodeError
		if errors.As(err, &de) && de.Type != "" {
			event = event.Str("type", de.Type)
		}
		event.Msg("dropping malformed frame")
		return false
	}

	d.metrics.RecordFrameReceived(msg.MessageType())
	return d.Handle(msg)
}

// Handle applies an already decoded message
func (d *Dispatcher) Handle(msg protocol.Message) bool {
	switch m := msg.(type) {
	case *protocol.Welcome:
		d.mu.Lock()
		d.local = UserRef{ID: m.User.ID, Name: m.User.Name}
		d.known = true
		d.mu.Unlock()

		d.registry.Notify(protocol.TypeWelcome, func(o Observer) {
			o.OnWelcome(m.User.ID, m.User.Name)
		})

	case *protocol.ChatMessage:
		d.cache.RecordMessage(m.Channel, Message{
			Text:   m.Text,
			Sender: UserRef{ID: m.User.ID, Name: m.User.Name},
		})
		d.registry.Notify(protocol.TypeMessage, func(o Observer) {
			o.OnMessage(m.Channel, m.Text, m.User.Name, m.User.ID)
		})

	case *protocol.UserJoin:
		d.cache.AddMember(m.Channel, UserRef{ID: m.User.ID, Name: m.User.Name})
		d.registry.Notify(protocol.TypeUserJoin, func(o Observer) {
			o.OnUserJoin(m.Channel, m.User.Name, m.User.ID)
		})

	case *protocol.UserLeave:
		d.cache.RemoveMember(m.Channel, m.User.ID)
		d.registry.Notify(protocol.TypeUserLeave, func(o Observer) {
			o.OnUserLeave(m.Channel, m.User.Name, m.User.ID)
		})

	case *protocol.UserRename:
		d.cache.RenameMember(m.User.ID, m.NewName)
		d.mu.Lock()
		if d.known && d.local.ID == m.User.ID {
			d.local.Name = m.NewName
		}
		d.mu.Unlock()

		d.registry.Notify(protocol.TypeUserRename, func(o Observer) {
			o.OnUserRename(m.NewName, m.OldName, m.User.Name, m.User.ID)
		})

	case *protocol.ChannelUsers:
		users := make([]UserRef, 0, len(m.Users))
		for _, u := range m.Users {
			users = append(users, UserRef{ID: u.ID, Name: u.Name})
		}
		d.cache.ReplaceMembers(m.Channel, users)

		// Each observer gets its own copy of the roster
		d.registry.Notify(protocol.TypeChannelUsers, func(o Observer) {
			o.OnChannelUsers(m.Channel, d.cache.Members(m.Channel))
		})

	case *protocol.ChannelsInfo:
		d.cache.SetChannelsInfo(m.Info)
		d.registry.Notify(protocol.TypeChannelsInfo, func(o Observer) {
			o.OnChannelsInfo(d.cache.ChannelsInfo())
		})

	case *protocol.Unrecognized:
		d.metrics.RecordFrameDropped(dropUnknownType)
		d.logger.Warn().Str("type", m.Type).Msg("unknown message type")
		return false

	default:
		d.logger.Error().Str("type", msg.MessageType()).Msg("no handler for message")
		return false
	}
	return true
}

// ResetLocalUser forgets the welcome identity, which is per connection
func (d *Dispatcher) ResetLocalUser() {
	d.mu.Lock()
	d.local = UserRef{}
	d.known = false
	d.mu.Unlock()
}
