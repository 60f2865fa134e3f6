package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puyokura/housechat/model"
)

func startWeb(t *testing.T, relay *Relay) *httptest.Server {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := httptest.NewServer(NewWebHandler(ctx, relay, "HouseChat", newTestLogger()))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", u, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) model.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(messageTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msg, err := model.Decode(data)
	if err != nil {
		t.Fatalf("decode %q: %v", data, err)
	}
	return msg
}

func TestWeb_WebsocketSharesHubWithTCP(t *testing.T) {
	relay, _ := startRelay(t)
	srv := startWeb(t, relay)
	bob := join(t, relay, "bob")

	ws := dialWS(t, srv)
	if err := ws.WriteMessage(websocket.TextMessage, model.EncodeCredentials(model.Credentials{Username: "carol", Password: "pw"})); err != nil {
		t.Fatalf("write credentials: %v", err)
	}
	if msg := readWS(t, ws); msg.Payload != "carol has joined the chat!" {
		t.Fatalf("welcome = %q", msg.Payload)
	}
	bob.expect(t, "carol has joined the chat!")

	ws.WriteMessage(websocket.TextMessage, []byte("from the browser"))
	if msg := readWS(t, ws); msg.Payload != "from the browser" || msg.SenderUsername != "carol" {
		t.Errorf("ws got %+v", msg)
	}
	bob.expect(t, "from the browser")

	bob.send(t, "from the terminal")
	if msg := readWS(t, ws); msg.Payload != "from the terminal" {
		t.Errorf("ws got %q", msg.Payload)
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	bob.expect(t, "carol has left the chat!")
}

func TestWeb_OversizedFrameIsDropped(t *testing.T) {
	relay, _ := startRelay(t)
	srv := startWeb(t, relay)

	ws := dialWS(t, srv)
	ws.WriteMessage(websocket.TextMessage, model.EncodeCredentials(model.Credentials{Username: "carol", Password: "pw"}))
	readWS(t, ws)

	if err := ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("a", 70*1024))); err != nil {
		t.Fatalf("write: %v", err)
	}
	ws.WriteMessage(websocket.TextMessage, []byte("small"))
	if msg := readWS(t, ws); msg.Payload != "small" {
		t.Errorf("ws got %d bytes, want small", len(msg.Payload))
	}
}

func TestWeb_Sessions(t *testing.T) {
	relay, _ := startRelay(t)
	srv := startWeb(t, relay)
	join(t, relay, "alice")

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET /api/sessions: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var sessions []SessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Username != "alice" || sessions[0].Transport != "tcp" {
		t.Errorf("sessions = %+v", sessions)
	}
}

func TestWeb_LandingPage(t *testing.T) {
	relay, _ := startRelay(t)
	srv := startWeb(t, relay)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "Welcome to HouseChat") {
		t.Errorf("landing page missing title: %s", body)
	}
	if !strings.Contains(string(body), relay.Addr().String()) {
		t.Errorf("landing page missing relay address")
	}

	resp, err = http.Get(srv.URL + "/missing")
	if err != nil {
		t.Fatalf("GET /missing: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
