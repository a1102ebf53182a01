package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/kommander-bridge/internal/bridges/kommander"
)

func dialWS(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(env.handler)
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("ClientCount() = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_SubscribeAndBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env)
	waitForClients(t, env.srv.Hub(), 1)

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{kommander.ChannelState}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	resp := readWS(t, conn)
	if resp.Type != WSTypeResponse || resp.ID != "s1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	// Unsubscribed channels are not delivered.
	env.srv.Hub().Broadcast(kommander.ChannelVariables, map[string]string{"a": "1"})
	env.srv.Hub().Broadcast(kommander.ChannelState, map[string]any{"facet": "mute", "value": true})

	ev := readWS(t, conn)
	if ev.Type != WSTypeEvent || ev.EventType != kommander.ChannelState {
		t.Fatalf("event = %+v", ev)
	}
	payload, _ := ev.Payload.(map[string]any)
	if payload["facet"] != "mute" || payload["value"] != true {
		t.Errorf("payload = %v", ev.Payload)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := dialWS(t, env)

	if err := conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	if err := conn.WriteJSON(WSMessage{Type: "reboot", ID: "x"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if msg := readWS(t, conn); msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{")); err != nil {
		t.Fatalf("WriteMessage() error = %v", err)
	}
	msg := readWS(t, conn)
	raw, _ := json.Marshal(msg.Payload)
	if msg.Type != WSTypeError || !strings.Contains(string(raw), "invalid JSON") {
		t.Errorf("invalid JSON reply = %+v", msg)
	}
}

func TestHub_UnregisterIdempotent(t *testing.T) {
	env := newTestEnv(t, nil)
	h := env.srv.Hub()
	c := &WSClient{hub: h, send: make(chan []byte, 1), subscriptions: map[string]struct{}{"status": {}}}

	h.Register(c)
	if h.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d", h.ClientCount())
	}
	h.Broadcast("status", "a")
	h.Broadcast("status", "b") // buffer full, dropped
	h.Unregister(c)
	h.Unregister(c)
	h.Broadcast("status", "c") // closed client no longer registered

	if h.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", h.ClientCount())
	}
	n := 0
	for range c.send {
		n++
	}
	if n != 1 {
		t.Errorf("delivered = %d, want 1", n)
	}
}
