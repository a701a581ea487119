// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
	"github.com/dtn-go/bpagent/daemon"
)

// Epidemic is the simple flooding baseline Router: forward a bundle to
// every known peer that has not already received it, grounded on the
// teacher's EpidemicRouting (core/routing_epidemic.go), adapted to track
// already-sent-to peers in its own memory rather than in a BundleItem's
// Properties map (the new store.Record carries no such free-form bag).
type Epidemic struct {
	mutex sync.Mutex
	sent  map[bundle.BundleID]map[bundle.EndpointID]bool
}

// NewEpidemic creates an Epidemic router.
func NewEpidemic() *Epidemic {
	return &Epidemic{sent: make(map[bundle.BundleID]map[bundle.EndpointID]bool)}
}

func (er *Epidemic) HandleEvent(evt daemon.Event) bool {
	switch evt.Kind {
	case daemon.BundleDelivered, daemon.BundleExpired, daemon.BundleFree:
		er.mutex.Lock()
		delete(er.sent, evt.Bundle.ID().Scrub())
		er.mutex.Unlock()
		return true
	default:
		return false
	}
}

// CanDeleteBundle always reports false. Epidemic has no way to know
// every peer that will ever exist, so it relies on BundleExpired/
// BundleFree/BundleDelivered events to eventually evict bookkeeping instead
// of declaring a bundle done early.
func (er *Epidemic) CanDeleteBundle(b bundle.Bundle) bool {
	return false
}

func (er *Epidemic) GetRoutingState() RoutingState {
	return RoutingState{Algorithm: "epidemic", Routes: map[string]string{}}
}

func (er *Epidemic) SendersFor(b bundle.Bundle, peers []cla.ConvergenceSender) (chosen []cla.ConvergenceSender, done bool) {
	id := b.ID().Scrub()

	er.mutex.Lock()
	defer er.mutex.Unlock()

	alreadySent, ok := er.sent[id]
	if !ok {
		alreadySent = make(map[bundle.EndpointID]bool)
		er.sent[id] = alreadySent
	}

	for _, p := range peers {
		peerEID := p.PeerEndpointID()
		if alreadySent[peerEID] {
			continue
		}
		chosen = append(chosen, p)
		alreadySent[peerEID] = true
	}

	log.WithFields(log.Fields{"bundle": b.ID(), "chosen": len(chosen)}).Debug("epidemic routing selected senders")

	return chosen, false
}

func (er *Epidemic) ReportPeerAppeared(peer cla.Convergence) {}

func (er *Epidemic) ReportPeerDisappeared(peer cla.Convergence) {}
