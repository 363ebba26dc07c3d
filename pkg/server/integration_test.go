package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/butembo/butembochat/pkg/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration test helpers

// startTestServer serves a real server over httptest and returns it with
// its WebSocket URL
func startTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.SeedChannels = []string{"general"}
	srv := NewServer(cfg)
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Stop(ctx)
		ts.Close()
	})

	return srv, ts, "ws" + strings.TrimPrefix(ts.URL, "http") + cfg.WebSocketPath
}

func dialTestClient(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readMessage reads one frame with a timeout and decodes it
func readMessage(t *testing.T, ws *websocket.Conn) protocol.Message {
	t.Helper()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	msg, err := protocol.DecodeMessage(data)
	require.NoError(t, err)
	return msg
}

func writeAction(t *testing.T, ws *websocket.Conn, a protocol.Action) {
	t.Helper()

	data, err := protocol.EncodeAction(a)
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, data))
}

func TestIntegrationWelcome(t *testing.T) {
	_, _, url := startTestServer(t)
	ws := dialTestClient(t, url)

	welcome, ok := readMessage(t, ws).(*protocol.Welcome)
	require.True(t, ok)
	assert.NotEmpty(t, welcome.User.ID)
	assert.Equal(t, DefaultConfig().DefaultNickname, welcome.User.Name)
}

func TestIntegrationChatRoundTrip(t *testing.T) {
	_, _, url := startTestServer(t)

	alice := dialTestClient(t, url)
	aliceID := readMessage(t, alice).(*protocol.Welcome).User.ID
	bob := dialTestClient(t, url)
	readMessage(t, bob)

	writeAction(t, alice, &protocol.JoinChannelAction{TargetChannel: "general"})
	readMessage(t, alice) // user-join
	readMessage(t, alice) // channel-users

	writeAction(t, bob, &protocol.JoinChannelAction{TargetChannel: "general"})
	readMessage(t, bob)
	readMessage(t, bob)
	readMessage(t, alice) // bob's user-join

	writeAction(t, alice, &protocol.SendMessageAction{TargetChannel: "general", Message: "hi"})

	for _, ws := range []*websocket.Conn{alice, bob} {
		msg, ok := readMessage(t, ws).(*protocol.ChatMessage)
		require.True(t, ok)
		assert.Equal(t, "hi", msg.Text)
		assert.Equal(t, aliceID, msg.User.ID)
	}
}

func TestIntegrationDisconnectAnnouncesLeave(t *testing.T) {
	srv, _, url := startTestServer(t)

	alice := dialTestClient(t, url)
	aliceID := readMessage(t, alice).(*protocol.Welcome).User.ID
	bob := dialTestClient(t, url)
	readMessage(t, bob)

	writeAction(t, alice, &protocol.JoinChannelAction{TargetChannel: "general"})
	readMessage(t, alice)
	readMessage(t, alice)
	writeAction(t, bob, &protocol.JoinChannelAction{TargetChannel: "general"})
	readMessage(t, bob)
	readMessage(t, bob)

	alice.Close()

	leave, ok := readMessage(t, bob).(*protocol.UserLeave)
	require.True(t, ok)
	assert.Equal(t, aliceID, leave.User.ID)
	assert.Equal(t, "general", leave.Channel)

	require.Eventually(t, func() bool {
		return srv.Sessions().CountOnlineUsers() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestIntegrationHTTPEndpoints(t *testing.T) {
	_, ts, _ := startTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health["status"])

	resp, err = http.Get(ts.URL + "/channels.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	var channels struct {
		Info  []protocol.ChannelInfo `json:"info"`
		Count int                    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&channels))
	assert.Equal(t, 1, channels.Count)
	assert.Equal(t, "general", channels.Info[0].Name)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "butembo_server_active_sessions")
}
