package delivery

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newWsServer(t *testing.T, hub *Hub, userID string) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != "" {
		router.Use(func(c *gin.Context) { c.Set("user_id", userID) })
	}
	NewController(hub).RegisterRoutes(router)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return server
}

func TestServeStreamsEventsToSession(t *testing.T) {
	hub := NewHub()
	server := newWsServer(t, hub, "9")

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	defer resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.SubscriberCount("9") == 0 {
		if time.Now().After(deadline) {
			t.Fatal("session never subscribed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish("9", Event{Event: EventSubmissionUpdated, Data: json.RawMessage(`{"submissionId":"s1"}`)})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Event != EventSubmissionUpdated {
		t.Fatalf("event = %q", got.Event)
	}
}

func TestServeRejectsUnauthenticated(t *testing.T) {
	hub := NewHub()
	server := newWsServer(t, hub, "")

	resp, err := http.Get(server.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
