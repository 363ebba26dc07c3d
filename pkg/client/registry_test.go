package client

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an Observer that logs every callback as a string
type recorder struct {
	mu     sync.Mutex
	events []string
	users  map[string]map[string]string
	info   []protocol.ChannelInfo
	notify chan string
}

func newRecorder() *recorder {
	return &recorder{
		users:  make(map[string]map[string]string),
		notify: make(chan string, 256),
	}
}

func (r *recorder) add(format string, args ...interface{}) {
	ev := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
	select {
	case r.notify <- ev:
	default:
	}
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// waitFor blocks until an event with the given prefix arrives
func (r *recorder) waitFor(t *testing.T, prefix string) string {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ev := <-r.notify:
			if strings.HasPrefix(ev, prefix) {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %q; got %v", prefix, r.Events())
			return ""
		}
	}
}

func (r *recorder) OnConnected() { r.add("connected") }
func (r *recorder) OnDisconnected(err error) {
	if err != nil {
		r.add("disconnected: %v", err)
		return
	}
	r.add("disconnected")
}
func (r *recorder) OnWelcome(myID, myName string) { r.add("welcome %s %s", myID, myName) }
func (r *recorder) OnMessage(channel, message, userName, userID string) {
	r.add("message %s %s %s %s", channel, message, userName, userID)
}
func (r *recorder) OnUserJoin(channel, userName, userID string) {
	r.add("join %s %s %s", channel, userName, userID)
}
func (r *recorder) OnUserLeave(channel, userName, userID string) {
	r.add("leave %s %s %s", channel, userName, userID)
}
func (r *recorder) OnUserRename(newName, oldName, userName, userID string) {
	r.add("rename %s %s %s %s", newName, oldName, userName, userID)
}
func (r *recorder) OnChannelUsers(channel string, users map[string]string) {
	r.mu.Lock()
	r.users[channel] = users
	r.mu.Unlock()
	r.add("users %s %d", channel, len(users))
}
func (r *recorder) OnChannelsInfo(info []protocol.ChannelInfo) {
	r.mu.Lock()
	r.info = info
	r.mu.Unlock()
	r.add("info %d", len(info))
}
func (r *recorder) OnError(description string) { r.add("error %s", description) }

// funcObserver runs fn on every message event
type funcObserver struct {
	BaseObserver
	fn func()
}

func (f *funcObserver) OnMessage(channel, message, userName, userID string) { f.fn() }

func newTestRegistry() *ObserverRegistry {
	return NewObserverRegistry(zerolog.Nop(), NewMetrics(nil))
}

func notifyMessage(r *ObserverRegistry, text string) int {
	return r.Notify("message", func(o Observer) { o.OnMessage("general", text, "bob", "u2") })
}

func TestRegistryDeliversInRegistrationOrder(t *testing.T) {
	r := newTestRegistry()

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		r.Register(&funcObserver{fn: func() { order = append(order, i) }})
	}

	assert.Equal(t, 3, notifyMessage(r, "hi"))
	assert.Equal(t, []int{0, 1, 2}, order)
}

func TestRegistryDuplicateRegistrationDeliversTwice(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()

	first := r.Register(rec)
	second := r.Register(rec)
	assert.NotEqual(t, first, second)
	assert.Equal(t, 2, r.Len())

	notifyMessage(r, "hi")
	assert.Len(t, rec.Events(), 2)

	require.True(t, r.Deregister(first))
	notifyMessage(r, "again")
	assert.Len(t, rec.Events(), 3)
}

func TestRegistryDeregister(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()

	sub := r.Register(rec)
	assert.True(t, r.Deregister(sub))
	assert.False(t, r.Deregister(sub), "second deregistration reports unknown token")
	assert.False(t, r.Deregister(Subscription{}), "zero token matches nothing")

	assert.Equal(t, 0, notifyMessage(r, "hi"))
	assert.Empty(t, rec.Events())
	assert.Equal(t, 0, r.Len())
}

func TestRegistryDeregisterDuringFanoutSkipsLaterObserver(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()

	var later Subscription
	r.Register(&funcObserver{fn: func() { r.Deregister(later) }})
	later = r.Register(rec)

	assert.Equal(t, 1, notifyMessage(r, "hi"))
	assert.Empty(t, rec.Events())
}

func TestRegistryRegisterDuringFanoutWaitsForNextEvent(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()

	registered := false
	r.Register(&funcObserver{fn: func() {
		if !registered {
			registered = true
			r.Register(rec)
		}
	}})

	notifyMessage(r, "first")
	assert.Empty(t, rec.Events())

	notifyMessage(r, "second")
	assert.Equal(t, []string{"message general second bob u2"}, rec.Events())
}

func TestRegistryPanicIsolation(t *testing.T) {
	r := newTestRegistry()
	before := newRecorder()
	after := newRecorder()

	r.Register(before)
	r.Register(&funcObserver{fn: func() { panic("boom") }})
	r.Register(after)

	assert.Equal(t, 2, notifyMessage(r, "hi"))
	assert.Len(t, before.Events(), 1)
	assert.Len(t, after.Events(), 1)

	// The panicking observer stays registered
	assert.Equal(t, 3, r.Len())
}

func TestRegistryCompactsDeadEntries(t *testing.T) {
	r := newTestRegistry()
	rec := newRecorder()
	keep := r.Register(rec)

	var subs []Subscription
	for i := 0; i < 10; i++ {
		subs = append(subs, r.Register(&BaseObserver{}))
	}
	for _, s := range subs {
		r.Deregister(s)
	}

	r.mu.Lock()
	entries := len(r.entries)
	r.mu.Unlock()
	assert.LessOrEqual(t, entries, 2*r.Len()+1)

	notifyMessage(r, "hi")
	assert.Len(t, rec.Events(), 1)
	assert.True(t, r.Deregister(keep))
}
