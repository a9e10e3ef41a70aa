package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockWSServer creates a test WebSocket server.
func mockWSServer(t *testing.T, handler func(*websocket.Conn)) *httptest.Server {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))

	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// readUntilClosed keeps a server-side connection open until the client leaves.
func readUntilClosed(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// collect subscribes to ws and forwards every event to a buffered channel.
func collect(ws *WebSocket) <-chan Event {
	ch := make(chan Event, 64)
	ws.Subscribe(func(e Event) { ch <- e })
	return ch
}

func waitEvent(t *testing.T, ch <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-ch:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s event", kind)
			return Event{}
		}
	}
}

func testConfig(server *httptest.Server) WebSocketConfig {
	cfg := DefaultWebSocketConfig()
	cfg.URL = wsURL(server)
	return cfg
}

func TestWebSocket_StartEmitsOpened(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitEvent(t, events, EventOpened)

	if !ws.IsConnected() {
		t.Error("expected IsConnected to return true")
	}
}

func TestWebSocket_TextAndBinaryFrames(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"stream":"a"}`))
		conn.WriteMessage(websocket.BinaryMessage, []byte(`{"stream":"b"}`))
		readUntilClosed(conn)
	})
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	text := waitEvent(t, events, EventMessage)
	if text.Text != `{"stream":"a"}` {
		t.Errorf("text frame = %q, want %q", text.Text, `{"stream":"a"}`)
	}

	data := waitEvent(t, events, EventData)
	if string(data.Data) != `{"stream":"b"}` {
		t.Errorf("binary frame = %q, want %q", data.Data, `{"stream":"b"}`)
	}
}

func TestWebSocket_Send(t *testing.T) {
	var received []byte
	var mu sync.Mutex
	got := make(chan struct{})

	server := mockWSServer(t, func(conn *websocket.Conn) {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		mu.Lock()
		received = msg
		mu.Unlock()
		close(got)
		readUntilClosed(conn)
	})
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	testMsg := `{"action":"listen"}`
	if err := ws.Send(context.Background(), testMsg); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("server never received message")
	}

	mu.Lock()
	defer mu.Unlock()
	if string(received) != testMsg {
		t.Errorf("received %q, want %q", received, testMsg)
	}
}

func TestWebSocket_SendNotConnected(t *testing.T) {
	ws := NewWebSocket(WebSocketConfig{URL: "ws://localhost:12345"}, nil)

	err := ws.Send(context.Background(), "test")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestWebSocket_StartTwiceReportsAlreadyConnected(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	waitEvent(t, events, EventOpened)

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("second Start returned %v, want nil", err)
	}

	e := waitEvent(t, events, EventError)
	if !IsAlreadyConnected(e.Err) {
		t.Errorf("error event = %v, want ErrAlreadyConnected", e.Err)
	}
}

func TestWebSocket_StopEmitsClosedAndRestarts(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	ctx := context.Background()
	if err := ws.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitEvent(t, events, EventOpened)

	if err := ws.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	waitEvent(t, events, EventClosed)

	if ws.IsConnected() {
		t.Error("expected IsConnected to return false after Stop")
	}

	// Second stop is a no-op
	if err := ws.Stop(ctx); err != nil {
		t.Errorf("second Stop failed: %v", err)
	}

	if err := ws.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	waitEvent(t, events, EventOpened)
}

func TestWebSocket_DialFailure(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	url := wsURL(server)
	server.Close()

	ws := NewWebSocket(WebSocketConfig{URL: url, HandshakeTimeout: time.Second}, nil)
	events := collect(ws)

	if err := ws.Start(context.Background()); err == nil {
		t.Fatal("expected dial error")
	}

	e := waitEvent(t, events, EventError)
	if e.Err == nil {
		t.Error("expected error event to carry an error")
	}
}

func TestWebSocket_ServerDropReportsErrorThenClosed(t *testing.T) {
	server := mockWSServer(t, func(conn *websocket.Conn) {
		// Return immediately: the deferred Close drops the TCP connection
		// without a close frame.
	})
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	waitEvent(t, events, EventError)
	waitEvent(t, events, EventClosed)
}

func TestWebSocket_CloseIsFinal(t *testing.T) {
	server := mockWSServer(t, readUntilClosed)
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := ws.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	if err := ws.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start after Close = %v, want ErrClosed", err)
	}
}

func TestWebSocket_StopDuringDialDropsConnection(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var enterOnce sync.Once
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		enterOnce.Do(func() { close(entered) })
		<-release
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		readUntilClosed(conn)
	}))
	defer server.Close()

	ws := NewWebSocket(testConfig(server), nil)
	defer ws.Close()
	events := collect(ws)

	startErr := make(chan error, 1)
	go func() { startErr <- ws.Start(context.Background()) }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("dial never reached the server")
	}

	if err := ws.Stop(context.Background()); err != nil {
		t.Fatalf("Stop during dial failed: %v", err)
	}
	close(release)

	select {
	case err := <-startErr:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Start() = %v, want ErrStopped", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	if ws.IsConnected() {
		t.Error("connection installed after Stop")
	}
	select {
	case e := <-events:
		t.Errorf("unexpected %s event after stopped dial", e.Kind)
	default:
	}

	// The transport is still usable.
	if err := ws.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	waitEvent(t, events, EventOpened)
}
