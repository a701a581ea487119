// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"encoding/json"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/gorilla/websocket"
)

// WebsocketAgent is an ApplicationAgent exposing a single WebSocket
// endpoint. Every connected client registers for an endpoint ID by
// sending a WsRegisterMessage, then receives WsBundleMessages for every
// bundle addressed to it and may send WsBundleMessages of its own.
//
// WebsocketAgent does not run its own http.Server; it implements
// http.Handler so it can be mounted on a shared mux.Router alongside a
// RestAgent, the way cmd/dtnd wires both onto one webserver address.
type WebsocketAgent struct {
	mutex sync.Mutex

	receiver chan Message
	sender   chan Message

	upgrader websocket.Upgrader

	conns map[*websocket.Conn]bundle.EndpointID
}

// NewWebsocketAgent creates a WebsocketAgent ready to be mounted on a
// router via its ServeHTTP method.
func NewWebsocketAgent() *WebsocketAgent {
	w := &WebsocketAgent{
		receiver: make(chan Message),
		sender:   make(chan Message),
		upgrader: websocket.Upgrader{},
		conns:    make(map[*websocket.Conn]bundle.EndpointID),
	}

	go w.handler()

	return w
}

func (w *WebsocketAgent) log() *log.Entry {
	return log.WithField("agent", "websocket")
}

// handler distributes incoming bundles to every connection registered
// for their destination and shuts down on a ShutdownMessage.
func (w *WebsocketAgent) handler() {
	defer close(w.sender)

	for m := range w.receiver {
		switch m := m.(type) {
		case BundleMessage:
			w.deliver(m.Bundle)

		case ShutdownMessage:
			return

		default:
			w.log().WithField("message", m).Info("websocket agent received unsupported message")
		}
	}
}

func (w *WebsocketAgent) deliver(b bundle.Bundle) {
	w.mutex.Lock()
	var targets []*websocket.Conn
	for conn, eid := range w.conns {
		if eid == b.PrimaryBlock.Destination {
			targets = append(targets, conn)
		}
	}
	w.mutex.Unlock()

	for _, conn := range targets {
		if err := conn.WriteJSON(WsBundleMessage{Type: "bundle", Bundle: b}); err != nil {
			w.log().WithError(err).Warn("failed to write bundle to websocket client")
		}
	}
}

// ServeHTTP upgrades an HTTP request and runs its read loop until the
// connection closes, expecting a register frame followed by zero or more
// bundle frames.
func (w *WebsocketAgent) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		w.log().WithError(err).Warn("upgrading http request to websocket failed")
		return
	}
	defer func() {
		w.mutex.Lock()
		delete(w.conns, conn)
		w.mutex.Unlock()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var envelope wsEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			w.log().WithError(err).Warn("failed to parse websocket frame")
			continue
		}

		switch envelope.Type {
		case "register":
			var reg WsRegisterMessage
			if err := json.Unmarshal(raw, &reg); err != nil {
				w.log().WithError(err).Warn("failed to parse register frame")
				continue
			}
			eid, err := bundle.NewEndpointID(reg.EndpointID)
			if err != nil {
				w.log().WithError(err).Warn("failed to parse registered endpoint")
				continue
			}
			w.mutex.Lock()
			w.conns[conn] = eid
			w.mutex.Unlock()

		case "bundle":
			var bm WsBundleMessage
			if err := json.Unmarshal(raw, &bm); err != nil {
				w.log().WithError(err).Warn("failed to parse bundle frame")
				continue
			}
			w.sender <- BundleMessage{Bundle: bm.Bundle}

		default:
			w.log().WithField("type", envelope.Type).Info("unknown websocket frame type")
		}
	}
}

// Endpoints returns the endpoints every currently connected client has
// registered for.
func (w *WebsocketAgent) Endpoints() []bundle.EndpointID {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	eids := make([]bundle.EndpointID, 0, len(w.conns))
	for _, eid := range w.conns {
		eids = append(eids, eid)
	}
	return eids
}

// Policy reports that bundles a disconnected client never acknowledged
// are dropped; a client missing a delivery can reconnect and re-register.
func (w *WebsocketAgent) Policy() DeliveryPolicy { return Abort }

func (w *WebsocketAgent) MessageReceiver() chan Message { return w.receiver }

func (w *WebsocketAgent) MessageSender() chan Message { return w.sender }
