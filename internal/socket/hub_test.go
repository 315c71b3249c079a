package socket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, hub *Hub, allow func(string) bool, ready chan<- *Client) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		c := NewClient(hub, conn, "u1", allow)
		hub.Register(c)
		if ch := r.URL.Query().Get("channel"); ch != "" {
			hub.Subscribe(c, ch)
		}
		go c.WritePump()
		ready <- c
		c.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestPublishReachesSubscribersOnly(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ready := make(chan *Client, 2)
	srv := newTestServer(t, hub, nil, ready)

	sub := dial(t, srv, "channel="+RouteChannel("r1"))
	<-ready
	other := dial(t, srv, "channel="+RouteChannel("r2"))
	<-ready

	hub.Publish(RouteChannel("r1"), map[string]string{"status": "completed"})

	msg := readMessage(t, sub)
	if msg.Channel != "route_update_r1" {
		t.Errorf("channel = %q", msg.Channel)
	}
	data, _ := msg.Data.(map[string]interface{})
	if data["status"] != "completed" {
		t.Errorf("data = %+v", msg.Data)
	}

	other.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := other.ReadMessage(); err == nil {
		t.Error("client on another channel received the message")
	}
}

func TestSubscribeCommandHonoursAllow(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	ready := make(chan *Client, 1)
	allow := func(ch string) bool { return ch == VehicleChannel("v1") }
	srv := newTestServer(t, hub, allow, ready)

	conn := dial(t, srv, "")
	<-ready

	for _, ch := range []string{VehicleChannel("v2"), VehicleChannel("v1")} {
		if err := conn.WriteJSON(command{Action: "subscribe", Channel: ch}); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(VehicleChannel("v1")) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if hub.Subscribers(VehicleChannel("v1")) != 1 {
		t.Fatal("allowed subscription not registered")
	}
	if hub.Subscribers(VehicleChannel("v2")) != 0 {
		t.Error("denied subscription was registered")
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := NewClient(hub, nil, "u1", nil)
	hub.Register(c)
	hub.Subscribe(c, "x")
	hub.Unregister(c)
	hub.Unregister(c)
	if hub.Subscribers("x") != 0 {
		t.Error("subscription survived unregister")
	}
}

func TestPublishRacingUnregister(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	const channel = "route_update_r1"

	for round := 0; round < 50; round++ {
		clients := make([]*Client, 200)
		for i := range clients {
			clients[i] = NewClient(hub, nil, "u1", nil)
			hub.Register(clients[i])
			hub.Subscribe(clients[i], channel)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				hub.Publish(channel, map[string]int{"i": i})
			}
		}()
		go func() {
			defer wg.Done()
			for _, c := range clients {
				hub.Unregister(c)
			}
		}()
		wg.Wait()
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Errorf("subscribers = %d after every client left", n)
	}
}

func TestPublishDropsSlowClient(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil)
	c := NewClient(hub, nil, "u1", nil)
	hub.Register(c)
	hub.Subscribe(c, "x")

	for i := 0; i < sendBuffer; i++ {
		hub.Publish("x", i)
	}
	if hub.Subscribers("x") != 1 {
		t.Fatal("client dropped before its queue filled")
	}
	hub.Publish("x", "overflow")
	if hub.Subscribers("x") != 0 {
		t.Error("slow client still subscribed")
	}
	if _, ok := <-c.send; !ok {
		t.Error("queued messages lost")
	}
}
