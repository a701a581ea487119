// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/gorilla/mux"
)

// RestAgent is a RESTful Application Agent for simple bundle dispatching.
//
// A client must register itself for some endpoint ID first. Bundles sent
// to that endpoint can then be fetched, or new bundles can be built and
// dispatched. Finally a client should unregister itself.
//
// This is all done by HTTP POSTing JSON objects described by the `Rest`
// prefixed types in rest_agent_messages.go.
//
//   // 1. Registration, POST to /register
//   // -> {"endpoint_id":"dtn://foo/bar"}
//   // <- {"uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//
//   // 2. Fetching bundles, POST to /fetch
//   // -> {"uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//   // <- {"bundles":[...]}
//
//   // 3. Building and sending a bundle, POST to /build
//   // -> {"uuid":"...","arguments":{"destination":"dtn://dst/","source":"dtn://foo/bar","lifetime":"24h","payload":"aGVsbG8="}}
//   // <- {}
//
//   // 4. Unregistration, POST to /unregister
//   // -> {"uuid":"75be76e2-23fc-da0e-eeb8-4773f84a9d2f"}
//   // <- {}
type RestAgent struct {
	router *mux.Router
	policy DeliveryPolicy

	receiver chan Message
	sender   chan Message

	clients sync.Map // uuid[string] -> bundle.EndpointID
	mailbox sync.Map // uuid[string] -> []bundle.Bundle
}

// NewRestAgent creates a new RESTful Application Agent, registering its
// handlers on router. policy governs what happens to a bundle a client
// fails to fetch before it unregisters; callers typically pass Defer.
func NewRestAgent(router *mux.Router, policy DeliveryPolicy) (ra *RestAgent) {
	ra = &RestAgent{
		router: router,
		policy: policy,

		receiver: make(chan Message),
		sender:   make(chan Message),
	}

	ra.router.HandleFunc("/register", ra.handleRegister).Methods(http.MethodPost)
	ra.router.HandleFunc("/unregister", ra.handleUnregister).Methods(http.MethodPost)
	ra.router.HandleFunc("/fetch", ra.handleFetch).Methods(http.MethodPost)
	ra.router.HandleFunc("/build", ra.handleBuild).Methods(http.MethodPost)

	go ra.handler()

	return ra
}

// handler drains the receiver channel.
func (ra *RestAgent) handler() {
	defer close(ra.sender)

	for msg := range ra.receiver {
		switch msg := msg.(type) {
		case BundleMessage:
			ra.receiveBundleMessage(msg)

		case ShutdownMessage:
			log.Debug("REST agent is shutting down")
			return

		default:
			log.WithField("message", msg).Info("REST agent received unknown message")
		}
	}
}

// receiveBundleMessage files an incoming bundle into every registered
// client's mailbox whose endpoint matches.
func (ra *RestAgent) receiveBundleMessage(msg BundleMessage) {
	var uuids []string
	ra.clients.Range(func(k, v interface{}) bool {
		if bagHasEndpoint(msg.Recipients(), v.(bundle.EndpointID)) {
			uuids = append(uuids, k.(string))
		}
		return true
	})

	for _, uuid := range uuids {
		var bundles []bundle.Bundle
		if val, ok := ra.mailbox.Load(uuid); ok {
			bundles = append(val.([]bundle.Bundle), msg.Bundle)
		} else {
			bundles = []bundle.Bundle{msg.Bundle}
		}
		ra.mailbox.Store(uuid, bundles)

		log.WithFields(log.Fields{
			"bundle": msg.Bundle.ID().String(),
			"uuid":   uuid,
		}).Debug("REST agent filed bundle into client mailbox")
	}
}

// randomUUID generates an RFC 4122-shaped identifier for client sessions.
func randomUUID() (uuid string, err error) {
	buf := make([]byte, 16)
	if _, err = rand.Read(buf); err == nil {
		uuid = fmt.Sprintf("%x-%x-%x-%x-%x", buf[0:4], buf[4:6], buf[6:8], buf[8:10], buf[10:16])
	}
	return
}

func (ra *RestAgent) handleRegister(w http.ResponseWriter, r *http.Request) {
	var (
		req  RestRegisterRequest
		resp RestRegisterResponse
	)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error = err.Error()
	} else if eid, err := bundle.NewEndpointID(req.EndpointID); err != nil {
		resp.Error = err.Error()
	} else if uuid, err := randomUUID(); err != nil {
		resp.Error = err.Error()
	} else {
		ra.clients.Store(uuid, eid)
		resp.UUID = uuid
	}

	log.WithFields(log.Fields{"request": req, "response": resp}).Debug("processed REST registration")

	writeJSON(w, resp)
}

func (ra *RestAgent) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var (
		req  RestUnregisterRequest
		resp RestUnregisterResponse
	)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error = err.Error()
	} else {
		ra.clients.Delete(req.UUID)
		ra.mailbox.Delete(req.UUID)
	}

	writeJSON(w, resp)
}

func (ra *RestAgent) handleFetch(w http.ResponseWriter, r *http.Request) {
	var (
		req  RestFetchRequest
		resp RestFetchResponse
	)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error = err.Error()
	} else if val, ok := ra.mailbox.Load(req.UUID); ok {
		resp.Bundles = val.([]bundle.Bundle)
		ra.mailbox.Delete(req.UUID)
	} else {
		resp.Bundles = make([]bundle.Bundle, 0)
	}

	writeJSON(w, resp)
}

func (ra *RestAgent) handleBuild(w http.ResponseWriter, r *http.Request) {
	var (
		req  RestBuildRequest
		resp RestBuildResponse
	)

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		resp.Error = err.Error()
	} else if eid, ok := ra.clients.Load(req.UUID); !ok {
		resp.Error = "invalid uuid"
	} else if b, err := buildFromArgs(req.Arguments); err != nil {
		resp.Error = err.Error()
	} else if pb := b.PrimaryBlock; pb.SourceNode != eid && pb.ReportTo != eid {
		resp.Error = "client's endpoint is neither the source nor the report-to field"
	} else {
		log.WithFields(log.Fields{"uuid": req.UUID, "bundle": b.ID().String()}).Debug("REST client sent bundle")
		ra.sender <- BundleMessage{Bundle: b}
	}

	writeJSON(w, resp)
}

// buildFromArgs constructs a bundle from a client's JSON-encodable build
// arguments, in place of a generic map-driven builder.
func buildFromArgs(args RestBuildArgs) (bundle.Bundle, error) {
	return bundle.Builder().
		Destination(args.Destination).
		Source(args.Source).
		CreationTimestampNow().
		Lifetime(args.Lifetime).
		PayloadBlock(args.Payload).
		Build()
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("failed to write REST agent response")
	}
}

func (ra *RestAgent) Endpoints() (eids []bundle.EndpointID) {
	ra.clients.Range(func(_, v interface{}) bool {
		eids = append(eids, v.(bundle.EndpointID))
		return true
	})
	return
}

func (ra *RestAgent) Policy() DeliveryPolicy { return ra.policy }

func (ra *RestAgent) MessageReceiver() chan Message { return ra.receiver }

func (ra *RestAgent) MessageSender() chan Message { return ra.sender }
