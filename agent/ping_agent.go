// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
)

// PingAgent is a simple ApplicationAgent that acknowledges every incoming
// bundle by sending a "pong" bundle back to its report-to endpoint.
type PingAgent struct {
	endpoint bundle.EndpointID
	receiver chan Message
	sender   chan Message
}

// NewPing creates a new PingAgent answering to endpoint.
func NewPing(endpoint bundle.EndpointID) *PingAgent {
	p := &PingAgent{
		endpoint: endpoint,
		receiver: make(chan Message),
		sender:   make(chan Message),
	}

	go p.handler()

	return p
}

func (p *PingAgent) log() *log.Entry {
	return log.WithField("ping_agent", p.endpoint)
}

func (p *PingAgent) handler() {
	defer close(p.sender)

	for m := range p.receiver {
		switch m := m.(type) {
		case BundleMessage:
			p.ackBundle(m.Bundle)

		case ShutdownMessage:
			return

		default:
			p.log().WithField("message", m).Info("ping agent received unsupported message")
		}
	}
}

func (p *PingAgent) ackBundle(b bundle.Bundle) {
	bndl, err := bundle.Builder().
		Source(p.endpoint).
		Destination(b.PrimaryBlock.ReportTo).
		CreationTimestampNow().
		Lifetime("24h").
		PayloadBlock([]byte("pong")).
		Build()

	if err != nil {
		p.log().WithError(err).Warn("building ack bundle failed")
		return
	}

	p.log().WithField("bundle", bndl.ID().String()).Debug("sending ack bundle")
	p.sender <- BundleMessage{Bundle: bndl}
}

// Endpoints returns the endpoint this PingAgent acknowledges bundles for.
func (p *PingAgent) Endpoints() []bundle.EndpointID {
	return []bundle.EndpointID{p.endpoint}
}

// Policy reports that undelivered acknowledgements are simply dropped.
func (p *PingAgent) Policy() DeliveryPolicy { return Abort }

func (p *PingAgent) MessageReceiver() chan Message { return p.receiver }

func (p *PingAgent) MessageSender() chan Message { return p.sender }
