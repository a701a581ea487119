// Package cla defines the two convergence-layer interfaces and a Manager
// that supervises a set of running instances, restarting failed ones
// within a bounded number of attempts.
//
// ConvergenceReceiver receives bundles and forwards them on a channel.
// ConvergenceSender transmits bundles to a remote peer. A convergence layer
// can implement either or both, depending on what its transport supports.
package cla

import "github.com/dtn-go/bpagent/bundle"

// RecBundle attaches the receiving CLA's local endpoint to an incoming
// bundle. Each ConvergenceReceiver delivers received bundles on a channel
// of RecBundle.
type RecBundle struct {
	Bundle bundle.Bundle
	Receiver bundle.EndpointID
}

// NewRecBundle builds a RecBundle for b received via rec.
func NewRecBundle(b bundle.Bundle, rec bundle.EndpointID) RecBundle {
	return RecBundle{
		Bundle: b,
		Receiver: rec,
	}
}

// Convergence describes a running convergence-layer instance. There should
// be no direct implementation of Convergence itself; implement
// ConvergenceReceiver and/or ConvergenceSender, which both extend it. A
// type can be both.
type Convergence interface {
	// Start starts this instance, returning an error and whether another
	// Start should be tried later.
	Start() (err error, retry bool)

	// Close signals this instance to shut down.
	Close()

	// Address returns a unique address string identifying this instance,
	// so it is not registered with a Manager twice.
	Address() string

	// IsPermanent reports whether this instance should be retried
	// indefinitely rather than given up on after its retry budget runs out.
	IsPermanent() bool

	// Channel returns this instance's outgoing ConvergenceStatus channel,
	// read by a Manager.
	Channel() chan ConvergenceStatus
}

// ConvergenceReceiver receives bundles and writes them to a channel,
// accessible through Bundles.
type ConvergenceReceiver interface {
	Convergence

	// Bundles returns the channel of received bundles.
	Bundles() chan RecBundle

	// LocalEndpointID returns the endpoint ID this receiver listens as.
	LocalEndpointID() bundle.EndpointID
}

// ConvergenceSender transmits bundles to another node.
type ConvergenceSender interface {
	Convergence

	// Send transmits b to this sender's peer. Implementations must be safe
	// for concurrent use and finish one bundle before starting the next
	// unless pipelining was negotiated.
	Send(b bundle.Bundle) error

	// PeerEndpointID returns the peer's endpoint ID if known from the
	// session handshake, the zero EndpointID otherwise.
	PeerEndpointID() bundle.EndpointID
}
