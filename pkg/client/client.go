package client

import (
	"context"
	"sync"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/rs/zerolog"
)

// Client is the chat connection layer: one connection, its local cache and
// the observers that receive its events. All cache updates and observer
// callbacks happen on a single delivery goroutine, in arrival order.
type Client struct {
	conn       ConnectionInterface
	cache      *Cache
	registry   *ObserverRegistry
	dispatcher *Dispatcher

	logger  zerolog.Logger
	metrics *Metrics

	joinedMu sync.Mutex
	joined   []string

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

type options struct {
	logger         zerolog.Logger
	metrics        *Metrics
	connectTimeout time.Duration
	sendQueueSize  int
	dial           DialFunc
	conn           ConnectionInterface
}

// Option configures a Client
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithConnectTimeout bounds each connect attempt
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithSendQueueSize sets the outgoing queue capacity
func WithSendQueueSize(n int) Option {
	return func(o *options) { o.sendQueueSize = n }
}

// WithDialer replaces the WebSocket dialer
func WithDialer(dial DialFunc) Option {
	return func(o *options) { o.dial = dial }
}

// WithConnection supplies a prebuilt connection, ignoring the dial and
// queue options
func WithConnection(conn ConnectionInterface) Option {
	return func(o *options) { o.conn = conn }
}

// New creates a disconnected client and starts its delivery goroutine
func New(opts ...Option) *Client {
	o := options{
		logger:         zerolog.Nop(),
		connectTimeout: DefaultConnectTimeout,
		sendQueueSize:  DefaultSendQueueSize,
		dial:           DialWebSocket,
	}
	for _, opt := range opts {
		opt(&o)
	}

	conn := o.conn
	if conn == nil {
		conn = NewConnection(
			WithConnectionLogger(o.logger.With().Str("component", "connection").Logger()),
			WithConnectionMetrics(o.metrics),
			WithDialFunc(o.dial),
			WithTimeout(o.connectTimeout),
			WithQueueSize(o.sendQueueSize),
		)
	}

	cache := NewCache()
	registry := NewObserverRegistry(o.logger.With().Str("component", "observers").Logger(), o.metrics)
	c := &Client{
		conn:       conn,
		cache:      cache,
		registry:   registry,
		dispatcher: NewDispatcher(cache, registry, o.logger.With().Str("component", "dispatcher").Logger(), o.metrics),
		logger:     o.logger,
		metrics:    o.metrics,
		done:       make(chan struct{}),
	}

	c.wg.Add(1)
	go c.run()
	return c
}

// Connect dials address, prefixing ws:// when no scheme is given. It
// blocks until connected or failed; observers receive OnConnected or
// OnDisconnected accordingly.
func (c *Client) Connect(ctx context.Context, address string) error {
	return c.conn.Connect(ctx, address)
}

// Disconnect closes the connection. Inbound frames not yet delivered are
// discarded. The cache is kept.
func (c *Client) Disconnect() {
	c.conn.Disconnect()
}

// Close disconnects and stops the delivery goroutine. It must not be
// called from an observer callback.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		c.conn.Close()
	})
}

// State returns the connection state
func (c *Client) State() ConnState {
	return c.conn.State()
}

// IsConnected returns whether the connection is active
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Address returns the URL of the last connect attempt
func (c *Client) Address() string {
	return c.conn.Address()
}

// RegisterObserver adds o to the fan-out list. The same observer may be
// registered more than once; each registration is delivered separately.
func (c *Client) RegisterObserver(o Observer) Subscription {
	return c.registry.Register(o)
}

// DeregisterObserver removes a registration. After it returns, the observer
// receives no further callbacks from that registration.
func (c *Client) DeregisterObserver(s Subscription) bool {
	return c.registry.Deregister(s)
}

// LocalUser returns the identity assigned by the server's welcome, updated
// by renames of that user
func (c *Client) LocalUser() (UserRef, bool) {
	return c.dispatcher.LocalUser()
}

// Snapshot returns a copy of a channel's cached history and roster
func (c *Client) Snapshot(channel string) (ChannelState, bool) {
	return c.cache.Snapshot(channel)
}

// Channels returns every channel seen so far
func (c *Client) Channels() []string {
	return c.cache.Channels()
}

// ChannelsInfo returns the last channel list received
func (c *Client) ChannelsInfo() []protocol.ChannelInfo {
	return c.cache.ChannelsInfo()
}

// Stats returns the bytes sent and received on the wire
func (c *Client) Stats() (sent, received uint64) {
	return c.conn.BytesSent(), c.conn.BytesReceived()
}

// run is the delivery loop
func (c *Client) run() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		case ev := <-c.conn.Events():
			c.handleEvent(ev)
		}
	}
}

func (c *Client) handleEvent(ev ConnectionEvent) {
	switch ev.Kind {
	case EventState:
		c.logger.Debug().
			Stringer("state", ev.State).
			Uint64("generation", ev.Generation).
			Msg("state change")

		switch ev.State {
		case StateConnected:
			c.registry.Notify("connected", func(o Observer) { o.OnConnected() })
		case StateDisconnected:
			c.dispatcher.ResetLocalUser()
			c.registry.Notify("disconnected", func(o Observer) { o.OnDisconnected(ev.Err) })
		}

	case EventFrame:
		if !c.conn.IsCurrent(ev.Generation) {
			c.metrics.RecordFrameDropped(dropStale)
			c.logger.Debug().Uint64("generation", ev.Generation).Msg("dropping frame from closed connection")
			return
		}
		c.dispatcher.Dispatch(ev.Data)
	}
}
