package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"raspimon/internal/models"

	"github.com/gorilla/websocket"
)

type frame struct {
	Type      models.MessageType `json:"type"`
	Data      json.RawMessage    `json:"data"`
	Timestamp time.Time          `json:"timestamp"`
}

func newHubServer(t *testing.T) (*BroadcastHub, string) {
	t.Helper()
	hub := NewBroadcastHub(discardLogger(), time.Hour)
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, r.RemoteAddr, r.UserAgent())
	}))
	t.Cleanup(func() {
		hub.Shutdown()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

// dial connects and consumes the welcome frame, returning the client id
func dial(t *testing.T, url string) (*websocket.Conn, string) {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	f := readFrame(t, conn)
	if f.Type != models.MessageWelcome {
		t.Fatalf("first frame = %s, want welcome", f.Type)
	}
	var w models.WelcomePayload
	if err := json.Unmarshal(f.Data, &w); err != nil {
		t.Fatal(err)
	}
	if w.ClientID == "" || w.Message != welcomeMessage {
		t.Fatalf("unexpected welcome %+v", w)
	}
	return conn, w.ClientID
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func (h *BroadcastHub) client(id string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[id]
}

func TestHubPingAndErrors(t *testing.T) {
	hub, url := newHubServer(t)
	conn, id := dial(t, url)

	send(t, conn, `{"type":"ping"}`)
	f := readFrame(t, conn)
	var pong models.PongPayload
	_ = json.Unmarshal(f.Data, &pong)
	if f.Type != models.MessagePong || pong.ClientID != id {
		t.Fatalf("got %s %+v, want pong for %s", f.Type, pong, id)
	}

	send(t, conn, `not json`)
	f = readFrame(t, conn)
	var e models.ErrorPayload
	_ = json.Unmarshal(f.Data, &e)
	if f.Type != models.MessageError || e.Message != "Invalid message format" {
		t.Fatalf("got %s %+v", f.Type, e)
	}

	send(t, conn, `{"type":"dance"}`)
	f = readFrame(t, conn)
	_ = json.Unmarshal(f.Data, &e)
	if f.Type != models.MessageError || e.Message != "Unknown message type" || e.Type != "dance" {
		t.Fatalf("got %s %+v", f.Type, e)
	}

	send(t, conn, `{"type":"request_metrics","data":{"requestId":"r-1"}}`)
	f = readFrame(t, conn)
	var ack models.MetricsRequestAck
	_ = json.Unmarshal(f.Data, &ack)
	if f.Type != models.MessageMetricsRequestReceived || ack.RequestID != "r-1" {
		t.Fatalf("got %s %+v", f.Type, ack)
	}

	if hub.Count() != 1 {
		t.Fatalf("bad frames must not drop the connection, count = %d", hub.Count())
	}
}

func TestHubSubscriptionsFilterBroadcasts(t *testing.T) {
	hub, url := newHubServer(t)
	alertsOnly, _ := dial(t, url)
	everything, _ := dial(t, url)

	send(t, alertsOnly, `{"type":"subscribe","data":{"channels":["alerts"]}}`)
	f := readFrame(t, alertsOnly)
	var p models.ChannelsPayload
	_ = json.Unmarshal(f.Data, &p)
	if f.Type != models.MessageSubscriptionConfirmed || len(p.Channels) != 1 || p.Channels[0] != "alerts" {
		t.Fatalf("got %s %+v", f.Type, p)
	}

	if n := hub.Broadcast(models.MessageMetrics, map[string]int{"seq": 1}, "metrics"); n != 1 {
		t.Fatalf("metrics broadcast reached %d clients, want 1", n)
	}
	if n := hub.Broadcast(models.MessageAlert, map[string]int{"seq": 2}, "alerts"); n != 2 {
		t.Fatalf("alerts broadcast reached %d clients, want 2", n)
	}
	if n := hub.Broadcast(models.MessageAlert, map[string]int{"seq": 3}, ""); n != 2 {
		t.Fatalf("broadcast on all reached %d clients, want 2", n)
	}

	// the alerts subscriber sees seq 2 then 3, never the metrics frame
	for _, want := range []int{2, 3} {
		f := readFrame(t, alertsOnly)
		var body map[string]int
		_ = json.Unmarshal(f.Data, &body)
		if body["seq"] != want {
			t.Fatalf("alerts subscriber got seq %d, want %d", body["seq"], want)
		}
	}
	for _, want := range []int{1, 2, 3} {
		f := readFrame(t, everything)
		var body map[string]int
		_ = json.Unmarshal(f.Data, &body)
		if body["seq"] != want {
			t.Fatalf("unsubscribed client got seq %d, want %d", body["seq"], want)
		}
	}

	stats := hub.Stats()
	if stats.TotalClients != 2 || stats.ClientsBySubscription["alerts"] != 1 || stats.ClientsBySubscription[models.ChannelAll] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.OldestConnection == nil || stats.NewestConnection == nil {
		t.Fatal("connection times missing")
	}

	send(t, alertsOnly, `{"type":"unsubscribe","data":{"channels":["alerts"]}}`)
	f = readFrame(t, alertsOnly)
	if f.Type != models.MessageUnsubscriptionConfirmed {
		t.Fatalf("got %s", f.Type)
	}
	if n := hub.Broadcast(models.MessageMetrics, nil, "metrics"); n != 2 {
		t.Fatalf("after unsubscribing everything, client should receive all channels; reached %d", n)
	}
}

func TestHubHandleEventRoutesTopics(t *testing.T) {
	hub, url := newHubServer(t)
	conn, _ := dial(t, url)
	send(t, conn, `{"type":"subscribe","data":{"channels":["metrics"]}}`)
	readFrame(t, conn)

	hub.HandleEvent(Event{Topic: TopicAlert, Payload: models.AlertEvent{ID: 9}})
	hub.HandleEvent(Event{Topic: TopicMetrics, Payload: models.MetricsSnapshot{}})

	f := readFrame(t, conn)
	if f.Type != models.MessageMetrics {
		t.Fatalf("got %s, want only the metrics frame", f.Type)
	}
}

func TestHubHeartbeatEvictsSilentClients(t *testing.T) {
	hub, url := newHubServer(t)
	reader, readerID := dial(t, url)
	_, silentID := dial(t, url)

	go func() {
		for {
			if _, _, err := reader.ReadMessage(); err != nil {
				return
			}
		}
	}()

	hub.Heartbeat()
	eventually(t, 2*time.Second, func() bool {
		c := hub.client(readerID)
		return c != nil && c.Alive()
	})
	if c := hub.client(silentID); c == nil || c.Alive() {
		t.Fatal("silent client should be pending after the first round")
	}

	hub.Heartbeat()
	if hub.client(silentID) != nil {
		t.Fatal("silent client should be evicted after missing a heartbeat")
	}
	if hub.client(readerID) == nil {
		t.Fatal("responsive client should stay connected")
	}
	if hub.Count() != 1 {
		t.Fatalf("count = %d, want 1", hub.Count())
	}
}

func TestHubShutdownClosesNormally(t *testing.T) {
	hub, url := newHubServer(t)
	conn, _ := dial(t, url)

	hub.Shutdown()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	var ce *websocket.CloseError
	if !errors.As(err, &ce) || ce.Code != websocket.CloseNormalClosure || ce.Text != "Server shutting down" {
		t.Fatalf("err = %v, want normal closure", err)
	}
	if hub.Count() != 0 {
		t.Fatalf("count = %d after shutdown", hub.Count())
	}
}
