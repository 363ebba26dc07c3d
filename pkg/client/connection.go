package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultSendQueueSize  = 100
)

var (
	ErrAlreadyConnected = errors.New("connection is not disconnected")
	ErrConnectAborted   = errors.New("connect aborted by disconnect")
	ErrConnectionClosed = errors.New("connection closed")
	ErrEmptyAddress     = errors.New("server address is empty")
)

// ConnState represents the connection status
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind distinguishes frames from state changes on the event stream
type EventKind int

const (
	EventFrame EventKind = iota
	EventState
)

// ConnectionEvent is one item of the ordered event stream. Generation
// identifies the connection attempt that produced it.
type ConnectionEvent struct {
	Kind       EventKind
	Generation uint64
	Data       []byte    // EventFrame
	State      ConnState // EventState
	Err        error     // EventState, cause of a disconnect
}

// session is one live socket and its writer queue
type session struct {
	gen      uint64
	conn     FrameConn
	outgoing chan []byte
	done     chan struct{}
	once     sync.Once
}

func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// Connection manages a single WebSocket connection and its lifecycle.
// It never reconnects on its own; callers call Connect again.
type Connection struct {
	dial           DialFunc
	connectTimeout time.Duration
	queueSize      int

	mu         sync.RWMutex
	state      ConnState
	addr       string
	generation uint64
	session    *session
	closed     bool

	// Generation last closed by the peer. Frames it read before the close
	// are still delivered; they precede its Disconnected event in the queue.
	peerClosed uint64

	// Ordered stream of frames and state changes
	queue  eventQueue
	events chan ConnectionEvent

	// Traffic counters (bytes on the wire)
	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64

	logger  zerolog.Logger
	metrics *Metrics

	// Shutdown
	shutdown  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ConnectionOption configures a Connection
type ConnectionOption func(*Connection)

// WithConnectionLogger sets the logger for connection events
func WithConnectionLogger(logger zerolog.Logger) ConnectionOption {
	return func(c *Connection) { c.logger = logger }
}

// WithConnectionMetrics sets the metrics sink
func WithConnectionMetrics(m *Metrics) ConnectionOption {
	return func(c *Connection) { c.metrics = m }
}

// WithDialFunc replaces the WebSocket dialer
func WithDialFunc(dial DialFunc) ConnectionOption {
	return func(c *Connection) { c.dial = dial }
}

// WithTimeout sets the connect timeout
func WithTimeout(d time.Duration) ConnectionOption {
	return func(c *Connection) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithQueueSize sets the outgoing queue capacity
func WithQueueSize(n int) ConnectionOption {
	return func(c *Connection) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// NewConnection creates a disconnected connection
func NewConnection(opts ...ConnectionOption) *Connection {
	c := &Connection{
		dial:           DialWebSocket,
		connectTimeout: DefaultConnectTimeout,
		queueSize:      DefaultSendQueueSize,
		events:         make(chan ConnectionEvent),
		logger:         zerolog.Nop(),
		shutdown:       make(chan struct{}),
	}
	c.queue.ready = make(chan struct{}, 1)
	for _, opt := range opts {
		opt(c)
	}

	c.wg.Add(1)
	go c.pump()
	return c
}

// NormalizeAddress turns a bare host:port into a ws:// URL
func NormalizeAddress(address string) (string, error) {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return "", ErrEmptyAddress
	}
	if strings.HasPrefix(trimmed, "ws://") || strings.HasPrefix(trimmed, "wss://") {
		return trimmed, nil
	}
	return "ws://" + trimmed, nil
}

// Connect dials address and blocks until the connection is established,
// fails, or the connect timeout elapses. It is valid only while
// Disconnected.
func (c *Connection) Connect(ctx context.Context, address string) error {
	url, err := NormalizeAddress(address)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnectionClosed
	}
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.generation++
	gen := c.generation
	c.state = StateConnecting
	c.addr = url
	c.mu.Unlock()

	c.metrics.RecordStateTransition(StateConnecting)
	c.logger.Info().Str("addr", url).Uint64("generation", gen).Msg("connecting")

	dialCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	conn, err := c.dial(dialCtx, url)

	c.mu.Lock()
	if c.closed || c.generation != gen || c.state != StateConnecting {
		// Disconnect ran while dialing and already reported the transition
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if err == nil {
			err = ErrConnectAborted
		}
		return fmt.Errorf("connect %s: %w", url, err)
	}
	if err != nil {
		err = fmt.Errorf("connect %s: %w", url, err)
		c.state = StateDisconnected
		c.publishState(gen, StateDisconnected, err)
		c.mu.Unlock()

		c.logger.Warn().Err(err).Msg("connection failed")
		return err
	}

	s := &session{
		gen:      gen,
		conn:     conn,
		outgoing: make(chan []byte, c.queueSize),
		done:     make(chan struct{}),
	}
	c.session = s
	c.state = StateConnected
	c.publishState(gen, StateConnected, nil)
	c.wg.Add(2)
	c.mu.Unlock()

	c.logger.Info().Str("addr", url).Msg("connected")
	go c.readLoop(s)
	go c.writeLoop(s)
	return nil
}

// Disconnect closes the connection from Connecting or Connected. Frames
// already read but not yet delivered are discarded.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	gen := c.generation
	s := c.session
	addr := c.addr
	c.session = nil
	c.state = StateDisconnected
	c.generation++
	c.publishState(gen, StateDisconnected, nil)
	c.mu.Unlock()

	c.logger.Info().Str("addr", addr).Msg("disconnected")
	if s != nil {
		s.close()
	}
}

// Close shuts down the connection permanently
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.Disconnect()
		close(c.shutdown)
		c.wg.Wait()
	})
}

// Send queues data for transmission. It never blocks: it returns false and
// drops data when not Connected or when the outgoing queue is full.
func (c *Connection) Send(data []byte) bool {
	c.mu.RLock()
	s := c.session
	connected := c.state == StateConnected
	c.mu.RUnlock()

	if !connected || s == nil {
		c.metrics.RecordFrameDropped(dropNotConnected)
		c.logger.Debug().Msg("send while not connected, dropped")
		return false
	}

	select {
	case s.outgoing <- data:
		return true
	case <-s.done:
		c.metrics.RecordFrameDropped(dropNotConnected)
		return false
	default:
		c.metrics.RecordFrameDropped(dropQueueFull)
		c.logger.Warn().Int("queue_size", c.queueSize).Msg("outgoing queue full, frame dropped")
		return false
	}
}

// Events returns the ordered stream of frames and state changes
func (c *Connection) Events() <-chan ConnectionEvent {
	return c.events
}

// State returns the current connection state
func (c *Connection) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected returns whether the connection is active
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// IsCurrent reports whether frames of gen should still be delivered: gen is
// the live connection, or the last one the peer closed. Frames of a
// connection closed by Disconnect are stale.
func (c *Connection) IsCurrent(gen uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if gen != 0 && gen == c.peerClosed {
		return true
	}
	return c.state == StateConnected && c.session != nil && c.session.gen == gen
}

// Address returns the URL of the last connect attempt
func (c *Connection) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// BytesSent returns the total bytes sent
func (c *Connection) BytesSent() uint64 {
	return c.bytesSent.Load()
}

// BytesReceived returns the total bytes received
func (c *Connection) BytesReceived() uint64 {
	return c.bytesReceived.Load()
}

// readLoop reads frames from the socket until it fails or is closed
func (c *Connection) readLoop(s *session) {
	defer c.wg.Done()

	for {
		data, err := s.conn.ReadMessage()
		if err != nil {
			if isNormalClose(err) {
				c.logger.Info().Msg("connection closed by server")
			}
			c.handleDisconnect(s, fmt.Errorf("read: %w", err))
			return
		}

		c.bytesReceived.Add(uint64(len(data)))
		c.logger.Trace().Int("len", len(data)).Msg("← RECV")
		if !c.pushFrame(s, data) {
			c.metrics.RecordFrameDropped(dropStale)
			return
		}
	}
}

// pushFrame queues a frame read on s unless s was already torn down. The
// read lock orders the frame before any state change of s.
func (c *Connection) pushFrame(s *session, data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.session != s {
		return false
	}
	c.queue.push(ConnectionEvent{Kind: EventFrame, Generation: s.gen, Data: data})
	return true
}

// writeLoop serializes socket writes for one session
func (c *Connection) writeLoop(s *session) {
	defer c.wg.Done()

	for {
		select {
		case data := <-s.outgoing:
			if err := s.conn.WriteMessage(data); err != nil {
				c.handleDisconnect(s, fmt.Errorf("write: %w", err))
				return
			}
			c.bytesSent.Add(uint64(len(data)))
			c.logger.Trace().Int("len", len(data)).Msg("→ SEND")
		case <-s.done:
			return
		}
	}
}

// handleDisconnect handles unexpected disconnection of session s
func (c *Connection) handleDisconnect(s *session, cause error) {
	c.mu.Lock()
	if c.session != s {
		// Already torn down by Disconnect or a sibling loop
		c.mu.Unlock()
		s.close()
		return
	}
	c.session = nil
	c.state = StateDisconnected
	c.peerClosed = s.gen
	c.generation++
	c.publishState(s.gen, StateDisconnected, cause)
	c.mu.Unlock()

	s.close()
	c.logger.Warn().Err(cause).Msg("disconnected from server")
}

// publishState must be called with c.mu held so events follow transition order
func (c *Connection) publishState(gen uint64, state ConnState, err error) {
	c.metrics.RecordStateTransition(state)
	c.queue.push(ConnectionEvent{Kind: EventState, Generation: gen, State: state, Err: err})
}

// pump forwards queued events to the events channel in order
func (c *Connection) pump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.shutdown:
			return
		case <-c.queue.ready:
		}

		for _, ev := range c.queue.drain() {
			select {
			case c.events <- ev:
			case <-c.shutdown:
				return
			}
		}
	}
}

// eventQueue is an unbounded FIFO. Producers never block, so state changes
// can be published from inside observer callbacks.
type eventQueue struct {
	mu    sync.Mutex
	items []ConnectionEvent
	ready chan struct{}
}

func (q *eventQueue) push(ev ConnectionEvent) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []ConnectionEvent {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
