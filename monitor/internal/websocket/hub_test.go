package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Krimson/ctg-stream/monitor/internal/pipeline"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) LiveMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg LiveMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHub_FiltersBySession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	onlyA := dial(t, srv, "?session_id=a")
	all := dial(t, srv, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	hub.Publish(pipeline.Snapshot{SessionID: "b", TimeSec: 1})
	hub.Publish(pipeline.Snapshot{
		SessionID:        "a",
		TimeSec:          7,
		Notifications:    map[int][]pipeline.Notification{7: {{Second: 7, Kind: pipeline.KindFIGO}}},
		NewNotifications: []pipeline.Notification{{Second: 7, Kind: pipeline.KindFIGO}},
	})

	msg := readMessage(t, onlyA)
	assert.Equal(t, "snapshot", msg.Type)
	assert.Equal(t, "a", msg.Snapshot.SessionID)
	assert.Equal(t, 7, msg.Snapshot.TimeSec)
	assert.Nil(t, msg.Snapshot.Notifications)
	require.Len(t, msg.Snapshot.NewNotifications, 1)

	first := readMessage(t, all)
	second := readMessage(t, all)
	assert.Equal(t, "b", first.Snapshot.SessionID)
	assert.Equal(t, "a", second.Snapshot.SessionID)
}

func TestHub_UnregistersClosedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "?session_id=a")
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	go hub.Run(ctx)
	cancel()

	select {
	case <-hub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	returned := make(chan struct{})
	go func() {
		defer close(returned)
		assert.False(t, hub.registerClient(&Client{hub: hub}))
		hub.unregisterClient(&Client{hub: hub})
	}()
	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("register/unregister blocked on a stopped hub")
	}

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	defer srv.Close()

	conn := dial(t, srv, "")
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)

	var netErr net.Error
	assert.False(t, errors.As(err, &netErr) && netErr.Timeout(), "connection should be closed, not left hanging")
	assert.Zero(t, hub.ClientCount())
}
