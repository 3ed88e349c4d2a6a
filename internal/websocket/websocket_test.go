package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"licensebridge/internal/config"
	"licensebridge/internal/events"
)

func testConfig() config.WebSocketConfig {
	return config.WebSocketConfig{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		PingPeriod:      time.Second,
		PongWait:        2 * time.Second,
		SendBuffer:      16,
	}
}

func dial(t *testing.T, srv *httptest.Server, origin string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev events.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestStreamsLogLines(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	srv := httptest.NewServer(NewHandler(bus, testConfig(), nil, nil))
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)
	bus.Publish(events.LevelInfo, "Found 2 devices")

	ev := readEvent(t, conn)
	assert.Equal(t, events.NameLogMessage, ev.Name)
	assert.Equal(t, "[INFO] Found 2 devices", ev.Payload)
}

func TestInitialEventComesFirst(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	h := NewHandler(bus, testConfig(), nil, nil, WithInitialEvent(func() events.Event {
		return events.Event{Name: events.NameStatus, Data: map[string]any{"message": "ready"}}
	}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()

	ev := readEvent(t, conn)
	assert.Equal(t, events.NameStatus, ev.Name)
}

func TestDisconnectDropsSubscription(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	srv := httptest.NewServer(NewHandler(bus, testConfig(), nil, nil))
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return bus.SubscriberCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestBusCloseEndsStream(t *testing.T) {
	bus := events.NewBus(nil)
	srv := httptest.NewServer(NewHandler(bus, testConfig(), nil, nil))
	defer srv.Close()

	conn, _, err := dial(t, srv, "")
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return bus.SubscriberCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	bus.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestOriginCheck(t *testing.T) {
	bus := events.NewBus(nil)
	defer bus.Close()
	srv := httptest.NewServer(NewHandler(bus, testConfig(), []string{"http://localhost:7878"}, nil))
	defer srv.Close()

	conn, _, err := dial(t, srv, "http://localhost:7878")
	require.NoError(t, err)
	conn.Close()

	_, resp, err := dial(t, srv, "http://evil.example")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
