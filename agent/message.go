// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"github.com/dtn-go/bpagent/bundle"
)

// Message is a generic interface to specify an information exchange between
// an ApplicationAgent and the agent Mux it is registered with. The
// *Message implementations below are the concrete kinds exchanged.
type Message interface {
	// Recipients returns the endpoints this message is addressed to, or
	// nil if it is not addressed to any specific endpoint.
	Recipients() []bundle.EndpointID
}

// BundleMessage carries a bundle either being delivered to an
// ApplicationAgent (received from the network) or dispatched by one
// (handed to the daemon for sending).
type BundleMessage struct {
	Bundle bundle.Bundle
}

func (bm BundleMessage) Recipients() []bundle.EndpointID {
	return []bundle.EndpointID{bm.Bundle.PrimaryBlock.Destination}
}

// StatusMessage reports the delivery outcome of a previously delivered
// bundle back to the Mux, for the DEFER/ABORT registration policy:
// Delivered acknowledges it, Failed reports the agent could not process
// it.
type StatusMessage struct {
	BundleID  bundle.BundleID
	Delivered bool
	Recipient bundle.EndpointID
}

func (sm StatusMessage) Recipients() []bundle.EndpointID {
	return []bundle.EndpointID{sm.Recipient}
}

// ShutdownMessage indicates an ApplicationAgent (or the Mux) is closing
// down. Received, it means "close yourself down"; sent, it means "I am
// closing down".
type ShutdownMessage struct{}

func (sm ShutdownMessage) Recipients() []bundle.EndpointID { return nil }
