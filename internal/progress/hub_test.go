package progress

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/shelfstream/shelfstream/internal/scraper"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(zerolog.Nop())

	e := echo.New()
	e.GET("/ws/progress", hub.Handle)
	server := httptest.NewServer(e)
	t.Cleanup(server.Close)
	t.Cleanup(hub.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/progress"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("ClientCount() = %d, want %d", hub.ClientCount(), want)
}

func TestHubBroadcast(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	entries := []scraper.LogEntry{
		{Step: scraper.StepParse, Level: "success", Message: "parsed"},
	}
	hub.PublishProgress(7, 42, "run-1", entries)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if event.JobID != 7 || event.TaskID != 42 || event.RunID != "run-1" {
		t.Errorf("event = %+v", event)
	}
	if len(event.Entries) != 1 || event.Entries[0].Message != "parsed" {
		t.Errorf("entries = %+v", event.Entries)
	}
}

func TestHubUnregistersOnClose(t *testing.T) {
	hub, server := newTestHub(t)
	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.Close()
	waitForClients(t, hub, 0)
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// A client with no capacity and no pump cannot accept any event.
	stuck := &client{send: make(chan []byte)}
	hub.clients[stuck] = struct{}{}

	hub.PublishProgress(1, 1, "run-1", nil)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0 after dropping slow client", hub.ClientCount())
	}
}

func TestHubReplaysHistory(t *testing.T) {
	hub, server := newTestHub(t)

	hub.PublishProgress(3, 9, "run-early", []scraper.LogEntry{
		{Step: scraper.StepSearch, Level: "running", Message: "searching"},
	})

	conn := dial(t, server)
	waitForClients(t, hub, 1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("invalid event JSON: %v", err)
	}
	if event.RunID != "run-early" {
		t.Errorf("RunID = %q, want run-early", event.RunID)
	}
}

func TestRingKeepsNewest(t *testing.T) {
	r := newRing[int](3)
	for i := 1; i <= 5; i++ {
		r.push(i)
	}

	got := r.snapshot()
	want := []int{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("snapshot() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("snapshot()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestHubMultipleClients(t *testing.T) {
	hub, server := newTestHub(t)
	first := dial(t, server)
	second := dial(t, server)
	waitForClients(t, hub, 2)

	hub.PublishProgress(1, 2, "run-1", nil)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		if _, _, err := conn.ReadMessage(); err != nil {
			t.Errorf("client missed broadcast: %v", err)
		}
	}
}
