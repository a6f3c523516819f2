package feed

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/triagex/platform/pkg/common/logger"
	"github.com/triagex/platform/pkg/common/models"
)

func TestMain(m *testing.M) {
	logger.Silence()
	os.Exit(m.Run())
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, hub.Clients())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubFiltersByPatient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub("*")
	go hub.Run(ctx)

	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/feed?patient_id=1"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitForClients(t, hub, 1)

	hub.Broadcast(models.Event{Type: models.EventVitalRecorded, Data: map[string]interface{}{"patient_id": int64(2)}})
	hub.Broadcast(models.Event{Type: models.EventActionRecorded, Data: map[string]interface{}{"patient_id": 1.0}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if event.Type != models.EventActionRecorded {
		t.Fatalf("filtered event delivered: %s", event.Type)
	}
}

func TestHubRejectsBadFilter(t *testing.T) {
	hub := NewHub("*")
	rec := httptest.NewRecorder()
	hub.ServeHTTP(rec, httptest.NewRequest("GET", "/ws/feed?site_id=x", nil))
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIDField(t *testing.T) {
	data := map[string]interface{}{"a": 3.0, "b": "7", "c": json.Number("9"), "d": 4}
	for key, want := range map[string]int64{"a": 3, "b": 7, "c": 9, "d": 4, "missing": 0} {
		if got := idField(data, key); got != want {
			t.Fatalf("%s: got %d want %d", key, got, want)
		}
	}
}

func TestPublishEventQueuesBroadcast(t *testing.T) {
	hub := NewHub("")
	if err := hub.PublishEvent(context.Background(), models.EventPatientCreated, "5", map[string]interface{}{"patient_id": int64(5), "site_id": int64(2)}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case msg := <-hub.broadcast:
		if msg.patientID != 5 || msg.siteID != 2 {
			t.Fatalf("unexpected routing: %+v", msg)
		}
		if !strings.Contains(string(msg.payload), models.EventPatientCreated) {
			t.Fatalf("payload missing type: %s", msg.payload)
		}
	default:
		t.Fatal("nothing queued")
	}
}
