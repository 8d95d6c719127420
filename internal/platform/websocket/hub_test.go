package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/carelink/internal/platform/auth"
	"github.com/ehr/carelink/internal/platform/notification"
)

func patientCreated() notification.Event {
	return notification.NewEvent(notification.EventPatientCreated, uuid.New(), map[string]string{"name": "Jane Doe", "email": "jane@example.com"})
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func assertNothing(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.Send:
		t.Fatalf("unexpected message: %s", msg)
	default:
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(string(notification.EventPatientCreated))

	hub.Register(c)
	if hub.ClientCount() != 1 || hub.TopicCount("patient.created") != 1 {
		t.Fatalf("expected one client on patient.created, got %d/%d", hub.ClientCount(), hub.TopicCount("patient.created"))
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.TopicCount("patient.created") != 0 {
		t.Fatal("expected hub to be empty")
	}
	if _, ok := <-c.Send; ok {
		t.Fatal("expected Send to be closed")
	}
}

func TestHub_NotifyRoutesByType(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	typed := NewClient("patient.created")
	wildcard := NewClient(AllTopics)
	other := NewClient("device.assigned")
	for _, c := range []*Client{typed, wildcard, other} {
		hub.Register(c)
	}

	e := patientCreated()
	if err := hub.Notify(context.Background(), e); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var got notification.Event
	if err := json.Unmarshal(receive(t, typed), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != e.ID || got.Subject != "New Patient Created" {
		t.Errorf("unexpected event %+v", got)
	}
	receive(t, wildcard)
	assertNothing(t, other)
}

func TestHub_NotifyOncePerClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient("patient.created", AllTopics)
	hub.Register(c)

	hub.Notify(context.Background(), patientCreated())
	receive(t, c)
	assertNothing(t, c)
}

func TestHub_SubscribeUnsubscribe(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient()
	hub.Register(c)

	hub.ProcessMessage(c, ClientMessage{Action: "subscribe", Topics: []string{"patient.created"}})
	if hub.TopicCount("patient.created") != 1 {
		t.Fatal("expected subscription")
	}
	hub.ProcessMessage(c, ClientMessage{Action: "unsubscribe", Topics: []string{"patient.created"}})
	if hub.TopicCount("patient.created") != 0 {
		t.Fatal("expected unsubscription")
	}
	hub.ProcessMessage(c, ClientMessage{Action: "shout", Topics: []string{"x"}})
	if hub.TopicCount("x") != 0 {
		t.Fatal("unknown action must be ignored")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	c := NewClient(AllTopics)
	hub.Register(c)

	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+10; i++ {
			hub.Notify(context.Background(), patientCreated())
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notify blocked on a full client buffer")
	}
	if len(c.Send) != sendBuffer {
		t.Errorf("expected full buffer of %d, got %d", sendBuffer, len(c.Send))
	}
}

func TestHandler_StreamsEvents(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(hub, []string{"http://localhost:3000"}).RegisterRoutes(e.Group("/api/v1"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws?topics=patient.created"
	conn, _, err := gorillawebsocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	sent := patientCreated()
	hub.Notify(context.Background(), sent)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got notification.Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != sent.ID {
		t.Errorf("expected event %s, got %s", sent.ID, got.ID)
	}
}

func TestHandler_RejectsForeignOrigin(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	e := echo.New()
	e.Use(auth.DevAuthMiddleware())
	NewHandler(hub, []string{"http://localhost:3000"}).RegisterRoutes(e.Group("/api/v1"))
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events/ws"
	header := http.Header{"Origin": []string{"http://evil.example.com"}}
	_, resp, err := gorillawebsocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected handshake to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %v", resp)
	}
	if hub.ClientCount() != 0 {
		t.Fatal("rejected client must not be registered")
	}
}
