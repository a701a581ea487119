// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package daemon implements a single-reader multi-writer event loop: the
// daemon thread owns all mutation of shared state (route table, link
// table, bundle store index, routing graph) and I/O threads communicate
// with it exclusively by posting Events.
package daemon

import (
	"fmt"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

// Kind identifies the cause of an Event.
type Kind int

const (
	BundleReceived Kind = iota
	BundleInjected
	BundleSend
	BundleTransmitted
	BundleDelivered
	BundleExpired
	BundleFree
	LinkCreated
	LinkDeleted
	LinkAvailable
	LinkUnavailable
	ContactUp
	ContactDown
	LinkStateChangeRequest
	RegistrationAdded
)

func (k Kind) String() string {
	switch k {
	case BundleReceived:
		return "BundleReceived"
	case BundleInjected:
		return "BundleInjected"
	case BundleSend:
		return "BundleSend"
	case BundleTransmitted:
		return "BundleTransmitted"
	case BundleDelivered:
		return "BundleDelivered"
	case BundleExpired:
		return "BundleExpired"
	case BundleFree:
		return "BundleFree"
	case LinkCreated:
		return "LinkCreated"
	case LinkDeleted:
		return "LinkDeleted"
	case LinkAvailable:
		return "LinkAvailable"
	case LinkUnavailable:
		return "LinkUnavailable"
	case ContactUp:
		return "ContactUp"
	case ContactDown:
		return "ContactDown"
	case LinkStateChangeRequest:
		return "LinkStateChangeRequest"
	case RegistrationAdded:
		return "RegistrationAdded"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Event is one unit of work posted to the daemon's EventQueue. Payload
// fields not relevant to a given Kind are left at their zero value.
type Event struct {
	Kind Kind
	Posted time.Time

	Bundle bundle.Bundle
	LinkName string
	Reason string
}

// NewEvent stamps Posted with the current time.
func NewEvent(kind Kind) Event {
	return Event{Kind: kind, Posted: time.Now()}
}

// Handler reacts to one Event. It returns true if the event was consumed by
// a routing decision the daemon should act further on (e.g. a route table
// install), without coupling the daemon package to any concrete router.
type Handler interface {
	HandleEvent(evt Event) bool
}
