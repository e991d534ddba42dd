package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d clients, want %d", hub.ClientCount(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBroadcastFiltersByStore(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	storeA := dial(t, srv, "?store=A")
	defer storeA.Close()
	storeB := dial(t, srv, "?store=B")
	defer storeB.Close()
	waitForClients(t, hub, 2)

	hub.Broadcast(Event{Type: EventInboxQueued, StoreID: "A", Data: map[string]int{"inboxId": 7}})

	storeA.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := storeA.ReadMessage()
	if err != nil {
		t.Fatalf("store A read: %v", err)
	}
	var ev Event
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventInboxQueued || ev.StoreID != "A" {
		t.Errorf("got %+v", ev)
	}

	storeB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := storeB.ReadMessage(); err == nil {
		t.Error("store B received an event for store A")
	}
}

func TestSubscribeAck(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv, "")
	defer conn.Close()
	waitForClients(t, hub, 1)

	if err := conn.WriteJSON(controlMessage{Type: "SUBSCRIBE", StoreID: "X", MsgID: "1"}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack map[string]string
	if err := conn.ReadJSON(&ack); err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if ack["type"] != "ACK" || ack["storeId"] != "X" {
		t.Errorf("got %v", ack)
	}
}

func TestStoppedHubDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	c := &Client{ID: "late", hub: hub, send: make(chan []byte, 1)}
	finished := make(chan bool, 1)
	go func() {
		hub.leave(c)
		finished <- hub.join(c)
	}()

	select {
	case joined := <-finished:
		if joined {
			t.Error("join succeeded on a stopped hub")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("register/unregister blocked after shutdown")
	}
}
