// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package agent implements the bundle agent's registration interface: an
// ApplicationAgent answers to one or more EndpointIDs and exchanges
// Messages with the daemon over a pair of channels. A Mux fans bundles out
// to every registered agent whose endpoint matches and fans their outgoing
// bundles back in to a single channel the daemon reads.
package agent

import "github.com/dtn-go/bpagent/bundle"

// DeliveryPolicy governs what happens to a bundle an ApplicationAgent
// failed to acknowledge.
type DeliveryPolicy int

const (
	// Defer keeps the bundle pending in the store until the agent
	// acknowledges it, so delivery can be retried.
	Defer DeliveryPolicy = iota
	// Abort drops the bundle once delivery to this agent fails.
	Abort
)

func (p DeliveryPolicy) String() string {
	switch p {
	case Defer:
		return "DEFER"
	case Abort:
		return "ABORT"
	default:
		return "UNKNOWN"
	}
}

// ApplicationAgent describes a registration, which can both receive and
// transmit bundles. On closing down, an ApplicationAgent MUST close its
// MessageSender channel and MUST leave the MessageReceiver open; the
// supervising Mux sends a ShutdownMessage on the MessageReceiver of its
// subjects and does not close it.
type ApplicationAgent interface {
	// Endpoints returns the EndpointIDs this ApplicationAgent answers to.
	Endpoints() []bundle.EndpointID

	// Policy reports what should happen to a bundle this agent fails to
	// acknowledge.
	Policy() DeliveryPolicy

	// MessageReceiver is the channel the ApplicationAgent must read
	// incoming Messages from.
	MessageReceiver() chan Message

	// MessageSender is the channel the ApplicationAgent writes outgoing
	// Messages to.
	MessageSender() chan Message
}

// bagContainsEndpoint reports whether bag and eids share at least one EID.
func bagContainsEndpoint(bag []bundle.EndpointID, eids []bundle.EndpointID) bool {
	matches := make(map[bundle.EndpointID]struct{}, len(eids))
	for _, eid := range eids {
		matches[eid] = struct{}{}
	}

	for _, eid := range bag {
		if _, ok := matches[eid]; ok {
			return true
		}
	}
	return false
}

// bagHasEndpoint reports whether bag contains eid.
func bagHasEndpoint(bag []bundle.EndpointID, eid bundle.EndpointID) bool {
	return bagContainsEndpoint(bag, []bundle.EndpointID{eid})
}

// AppAgentContainsEndpoint reports whether app answers to at least one of eids.
func AppAgentContainsEndpoint(app ApplicationAgent, eids []bundle.EndpointID) bool {
	return bagContainsEndpoint(app.Endpoints(), eids)
}

// AppAgentHasEndpoint reports whether app answers to eid.
func AppAgentHasEndpoint(app ApplicationAgent, eid bundle.EndpointID) bool {
	return AppAgentContainsEndpoint(app, []bundle.EndpointID{eid})
}
