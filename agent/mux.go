// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
)

// Mux fans incoming bundles out to every registered ApplicationAgent whose
// Endpoints match the bundle's destination, and fans every agent's
// outgoing Messages back in to a single sender channel.
type Mux struct {
	mutex sync.Mutex

	agents   []ApplicationAgent
	receiver chan Message // agents' outgoing messages, fanned in here
	closeSyn chan struct{}
	closeAck chan struct{}
}

// NewMux creates an empty Mux.
func NewMux() *Mux {
	m := &Mux{
		receiver: make(chan Message),
		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}
	return m
}

// Register adds app to the Mux and starts forwarding its outgoing messages.
func (m *Mux) Register(app ApplicationAgent) {
	m.mutex.Lock()
	m.agents = append(m.agents, app)
	m.mutex.Unlock()

	go func() {
		for msg := range app.MessageSender() {
			select {
			case m.receiver <- msg:
			case <-m.closeSyn:
				return
			}
		}
	}()
}

// Endpoints returns every EndpointID any registered agent answers to.
func (m *Mux) Endpoints() []bundle.EndpointID {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var eids []bundle.EndpointID
	for _, a := range m.agents {
		eids = append(eids, a.Endpoints()...)
	}
	return eids
}

// HasEndpoint reports whether any registered agent answers to eid.
func (m *Mux) HasEndpoint(eid bundle.EndpointID) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for _, a := range m.agents {
		if AppAgentHasEndpoint(a, eid) {
			return true
		}
	}
	return false
}

// Deliver hands b to every registered agent whose Endpoints include the
// bundle's destination.
func (m *Mux) Deliver(b bundle.Bundle) (delivered bool) {
	m.mutex.Lock()
	targets := make([]ApplicationAgent, 0, len(m.agents))
	for _, a := range m.agents {
		if bagHasEndpoint(a.Endpoints(), b.PrimaryBlock.Destination) {
			targets = append(targets, a)
		}
	}
	m.mutex.Unlock()

	for _, a := range targets {
		a.MessageReceiver() <- BundleMessage{Bundle: b}
		delivered = true
	}

	if !delivered {
		log.WithField("bundle", b.ID()).Debug("agent mux has no registered agent for this bundle's destination")
	}
	return
}

// MessageSender returns the channel every registered agent's outgoing
// messages are fanned into.
func (m *Mux) MessageSender() chan Message {
	return m.receiver
}

// Close signals every registered agent to shut down and stops fan-in.
func (m *Mux) Close() {
	m.mutex.Lock()
	agents := append([]ApplicationAgent(nil), m.agents...)
	m.mutex.Unlock()

	for _, a := range agents {
		a.MessageReceiver() <- ShutdownMessage{}
	}
	close(m.closeSyn)
}
