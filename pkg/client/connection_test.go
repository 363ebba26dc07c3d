package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory FrameConn. Frames pushed on incoming are read by
// the connection; frames it writes appear on written.
type fakeConn struct {
	incoming  chan []byte
	written   chan []byte
	block     chan struct{} // when set, writes wait until it is closed
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan []byte, 16),
		written:  make(chan []byte, 16),
		closed:   make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case data := <-f.incoming:
		return data, nil
	case <-f.closed:
		return nil, ErrConnectionClosed
	}
}

func (f *fakeConn) WriteMessage(data []byte) error {
	if f.block != nil {
		select {
		case <-f.block:
		case <-f.closed:
			return ErrConnectionClosed
		}
	}
	select {
	case f.written <- data:
		return nil
	case <-f.closed:
		return ErrConnectionClosed
	}
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

// dialTo returns a DialFunc that hands out conn and records the URL
func dialTo(conn FrameConn, url *string) DialFunc {
	return func(ctx context.Context, u string) (FrameConn, error) {
		if url != nil {
			*url = u
		}
		return conn, nil
	}
}

func nextEvent(t *testing.T, c *Connection) ConnectionEvent {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection event")
		return ConnectionEvent{}
	}
}

func newTestConnection(t *testing.T, opts ...ConnectionOption) *Connection {
	t.Helper()
	c := NewConnection(opts...)
	t.Cleanup(c.Close)
	return c
}

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  error
	}{
		{"localhost:10000", "ws://localhost:10000", nil},
		{"  chat.example.com:80  ", "ws://chat.example.com:80", nil},
		{"ws://localhost:10000/ws", "ws://localhost:10000/ws", nil},
		{"wss://chat.example.com", "wss://chat.example.com", nil},
		{"", "", ErrEmptyAddress},
		{"   ", "", ErrEmptyAddress},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeAddress(tt.in)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConnStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "state(7)", ConnState(7).String())
}

func TestSendWhileDisconnectedIsDropped(t *testing.T) {
	c := newTestConnection(t)

	assert.Equal(t, StateDisconnected, c.State())
	assert.False(t, c.Send([]byte(`{}`)))
	assert.Equal(t, uint64(0), c.BytesSent())
}

func TestConnectDeliversFramesAndSends(t *testing.T) {
	fc := newFakeConn()
	var dialed string
	c := newTestConnection(t, WithDialFunc(dialTo(fc, &dialed)))

	require.NoError(t, c.Connect(context.Background(), "localhost:10000"))
	assert.Equal(t, "ws://localhost:10000", dialed)
	assert.Equal(t, "ws://localhost:10000", c.Address())
	assert.True(t, c.IsConnected())

	ev := nextEvent(t, c)
	assert.Equal(t, EventState, ev.Kind)
	assert.Equal(t, StateConnected, ev.State)
	assert.True(t, c.IsCurrent(ev.Generation))

	require.True(t, c.Send([]byte(`{"action":"get-channels-info","payload":{}}`)))
	select {
	case data := <-fc.written:
		assert.JSONEq(t, `{"action":"get-channels-info","payload":{}}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("frame was not written")
	}

	fc.incoming <- []byte(`{"type":"welcome","payload":{}}`)
	frame := nextEvent(t, c)
	assert.Equal(t, EventFrame, frame.Kind)
	assert.Equal(t, ev.Generation, frame.Generation)
	assert.Equal(t, `{"type":"welcome","payload":{}}`, string(frame.Data))

	assert.Eventually(t, func() bool { return c.BytesSent() > 0 && c.BytesReceived() > 0 },
		time.Second, 10*time.Millisecond)
}

func TestConnectWhileConnectedFails(t *testing.T) {
	c := newTestConnection(t, WithDialFunc(dialTo(newFakeConn(), nil)))

	require.NoError(t, c.Connect(context.Background(), "localhost:1"))
	assert.ErrorIs(t, c.Connect(context.Background(), "localhost:2"), ErrAlreadyConnected)
	assert.Equal(t, "ws://localhost:1", c.Address())
}

func TestConnectEmptyAddress(t *testing.T) {
	c := newTestConnection(t)
	assert.ErrorIs(t, c.Connect(context.Background(), ""), ErrEmptyAddress)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestConnectFailureReportsDisconnected(t *testing.T) {
	refused := errors.New("connection refused")
	c := newTestConnection(t, WithDialFunc(func(ctx context.Context, url string) (FrameConn, error) {
		return nil, refused
	}))

	err := c.Connect(context.Background(), "localhost:1")
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, StateDisconnected, c.State())

	ev := nextEvent(t, c)
	assert.Equal(t, EventState, ev.Kind)
	assert.Equal(t, StateDisconnected, ev.State)
	assert.ErrorIs(t, ev.Err, refused)
}

func TestConnectTimeout(t *testing.T) {
	c := newTestConnection(t,
		WithTimeout(50*time.Millisecond),
		WithDialFunc(func(ctx context.Context, url string) (FrameConn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	)

	start := time.Now()
	err := c.Connect(context.Background(), "localhost:1")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestSendQueueFullDropsFrame(t *testing.T) {
	fc := newFakeConn()
	fc.block = make(chan struct{})
	c := newTestConnection(t, WithQueueSize(1), WithDialFunc(dialTo(fc, nil)))
	require.NoError(t, c.Connect(context.Background(), "localhost:1"))

	// One frame may be held by the blocked writer, one fits in the queue
	dropped := false
	for i := 0; i < 3; i++ {
		if !c.Send([]byte("x")) {
			dropped = true
			break
		}
	}
	assert.True(t, dropped, "full queue should drop frames")
	assert.True(t, c.IsConnected(), "a full queue does not disconnect")
	close(fc.block)
}

func TestServerCloseReportsDisconnect(t *testing.T) {
	fc := newFakeConn()
	c := newTestConnection(t, WithDialFunc(dialTo(fc, nil)))
	require.NoError(t, c.Connect(context.Background(), "localhost:1"))
	connected := nextEvent(t, c)

	fc.Close()

	ev := nextEvent(t, c)
	assert.Equal(t, StateDisconnected, ev.State)
	assert.Error(t, ev.Err)
	assert.Equal(t, connected.Generation, ev.Generation)
	assert.True(t, c.IsCurrent(connected.Generation), "frames read before a server close still deliver")
	assert.False(t, c.Send([]byte("x")))

	// No automatic reconnect
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, StateDisconnected, c.State())
}

// scriptedConn returns its frames in order and then io.EOF
type scriptedConn struct {
	mu     sync.Mutex
	frames [][]byte
}

func (s *scriptedConn) ReadMessage() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.frames) == 0 {
		return nil, io.EOF
	}
	data := s.frames[0]
	s.frames = s.frames[1:]
	return data, nil
}

func (s *scriptedConn) WriteMessage(data []byte) error { return nil }
func (s *scriptedConn) Close() error                   { return nil }

func TestFramesBeforeServerCloseAreDelivered(t *testing.T) {
	c := newTestConnection(t, WithDialFunc(func(ctx context.Context, url string) (FrameConn, error) {
		return &scriptedConn{frames: [][]byte{[]byte("one"), []byte("two")}}, nil
	}))
	require.NoError(t, c.Connect(context.Background(), "localhost:1"))

	connected := nextEvent(t, c)
	require.Equal(t, StateConnected, connected.State)

	for _, want := range []string{"one", "two"} {
		ev := nextEvent(t, c)
		require.Equal(t, EventFrame, ev.Kind)
		assert.Equal(t, want, string(ev.Data))
		assert.True(t, c.IsCurrent(ev.Generation))
	}

	ev := nextEvent(t, c)
	assert.Equal(t, StateDisconnected, ev.State)
	assert.ErrorIs(t, ev.Err, io.EOF)
}

func TestDisconnectMakesGenerationStale(t *testing.T) {
	first := newFakeConn()
	second := newFakeConn()
	conns := []*fakeConn{first, second}
	c := newTestConnection(t, WithDialFunc(func(ctx context.Context, url string) (FrameConn, error) {
		fc := conns[0]
		conns = conns[1:]
		return fc, nil
	}))

	require.NoError(t, c.Connect(context.Background(), "localhost:1"))
	old := nextEvent(t, c)

	c.Disconnect()
	ev := nextEvent(t, c)
	assert.Equal(t, StateDisconnected, ev.State)
	assert.NoError(t, ev.Err)
	assert.False(t, c.IsCurrent(old.Generation))

	// Disconnect is idempotent
	c.Disconnect()

	require.NoError(t, c.Connect(context.Background(), "localhost:1"))
	fresh := nextEvent(t, c)
	assert.Equal(t, StateConnected, fresh.State)
	assert.NotEqual(t, old.Generation, fresh.Generation)
	assert.True(t, c.IsCurrent(fresh.Generation))
	assert.False(t, c.IsCurrent(old.Generation))
}

func TestDisconnectDuringDialAbortsConnect(t *testing.T) {
	fc := newFakeConn()
	dialing := make(chan struct{})
	release := make(chan struct{})
	c := newTestConnection(t, WithDialFunc(func(ctx context.Context, url string) (FrameConn, error) {
		close(dialing)
		<-release
		return fc, nil
	}))

	errc := make(chan error, 1)
	go func() { errc <- c.Connect(context.Background(), "localhost:1") }()

	<-dialing
	assert.Equal(t, StateConnecting, c.State())
	c.Disconnect()
	close(release)

	assert.ErrorIs(t, <-errc, ErrConnectAborted)
	assert.Equal(t, StateDisconnected, c.State())

	select {
	case <-fc.closed:
	case <-time.After(time.Second):
		t.Fatal("socket dialed after abort should be closed")
	}
}

func TestCloseIsPermanent(t *testing.T) {
	c := NewConnection(WithDialFunc(dialTo(newFakeConn(), nil)))
	require.NoError(t, c.Connect(context.Background(), "localhost:1"))

	c.Close()
	c.Close()

	assert.Equal(t, StateDisconnected, c.State())
	assert.ErrorIs(t, c.Connect(context.Background(), "localhost:1"), ErrConnectionClosed)
}
