// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package routing implements the routing engine: a base Router contract, a
// flooding Epidemic baseline, and DTLSR link-state routing over the
// generic shortest-path graph in routing/graph.
//
// A Router is handed the peers and bundle it must decide about directly,
// rather than reaching back into a shared core object.
package routing

import (
	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
	"github.com/dtn-go/bpagent/daemon"
)

// RoutingState is the introspectable snapshot returned by GetRoutingState.
type RoutingState struct {
	Algorithm string
	// Routes maps a destination EID pattern to the link name installed for
	// it. Empty for algorithms, like Epidemic, that have no fixed route
	// table.
	Routes map[string]string
}

// Router is the base routing engine contract. Subclasses override event
// handling and install route table entries mapping a destination EID
// pattern to a link.
type Router interface {
	// HandleEvent reacts to a daemon Event (link up/down, registration
	// added, a received LSA bundle, and so on). It returns true if the
	// event was meaningfully acted upon.
	HandleEvent(evt daemon.Event) bool

	// CanDeleteBundle reports whether the router is done with b: every
	// peer it intends to forward to has already received it, or it was
	// never forwardable in the first place.
	CanDeleteBundle(b bundle.Bundle) bool

	// GetRoutingState returns the algorithm's current state for
	// introspection/diagnostics.
	GetRoutingState() RoutingState

	// SendersFor selects, from peers, the ConvergenceSenders b should be
	// forwarded to now, and whether the router is finished with b after
	// this send (no further forwarding will ever be attempted).
	SendersFor(b bundle.Bundle, peers []cla.ConvergenceSender) (chosen []cla.ConvergenceSender, done bool)

	// ReportPeerAppeared/ReportPeerDisappeared notify the router of
	// convergence-layer neighbor changes.
	ReportPeerAppeared(peer cla.Convergence)
	ReportPeerDisappeared(peer cla.Convergence)
}
