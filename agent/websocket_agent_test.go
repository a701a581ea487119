// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestWebsocketAgent(t *testing.T) (*WebsocketAgent, string) {
	t.Helper()
	w := NewWebsocketAgent()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", w.ServeHTTP)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return w, strings.TrimPrefix(server.URL, "http://")
}

func dialWebsocket(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	return conn
}

func TestWebsocketAgentRegisterAndDeliver(t *testing.T) {
	w, addr := newTestWebsocketAgent(t)

	conn := dialWebsocket(t, addr)
	defer conn.Close()

	if err := conn.WriteJSON(WsRegisterMessage{Type: "register", EndpointID: "dtn://foo/bar"}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if !AppAgentHasEndpoint(w, mustEID(t, "dtn://foo/bar")) {
		t.Fatal("expected the registered endpoint to be known to the agent")
	}

	b := createBundle("dtn://sender/", "dtn://foo/bar", t)
	go func() { w.MessageReceiver() <- BundleMessage{Bundle: b} }()

	var bm WsBundleMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := conn.ReadJSON(&bm); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if bm.Bundle.ID() != b.ID() {
		t.Fatalf("got bundle %v, want %v", bm.Bundle.ID(), b.ID())
	}
}

func TestWebsocketAgentClientSendsBundle(t *testing.T) {
	w, addr := newTestWebsocketAgent(t)

	conn := dialWebsocket(t, addr)
	defer conn.Close()

	b := createBundle("dtn://foo/bar", "dtn://dst/", t)
	if err := conn.WriteJSON(WsBundleMessage{Type: "bundle", Bundle: b}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	select {
	case msg := <-w.MessageSender():
		bm, ok := msg.(BundleMessage)
		if !ok || bm.Bundle.ID() != b.ID() {
			t.Fatalf("unexpected message: %#v", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the client's bundle to arrive")
	}
}
