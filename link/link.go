// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package link implements the Link state machine, Contact and
// ContactManager: the named, typed channel to a next-hop
// endpoint that a convergence layer session is bound to while open.
package link

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
)

// State is one of the six Link states.
type State int

const (
	Unavailable State = iota
	Available
	Opening
	Open
	Busy
	Closing
)

func (s State) String() string {
	switch s {
	case Unavailable:
		return "UNAVAILABLE"
	case Available:
		return "AVAILABLE"
	case Opening:
		return "OPENING"
	case Open:
		return "OPEN"
	case Busy:
		return "BUSY"
	case Closing:
		return "CLOSING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Type is one of the four Link types.
type Type int

const (
	AlwaysOn Type = iota
	OnDemand
	Scheduled
	Opportunistic
)

func (t Type) String() string {
	switch t {
	case AlwaysOn:
		return "ALWAYSON"
	case OnDemand:
		return "ONDEMAND"
	case Scheduled:
		return "SCHEDULED"
	case Opportunistic:
		return "OPPORTUNISTIC"
	default:
		return fmt.Sprintf("Type(%d)", int(t))
	}
}

// legalTransitions enumerates the link state machine's transition table.
// Unavailable is reachable from any state (the "broken" transition) and
// is handled separately in Break, not listed here.
var legalTransitions = map[State]map[State]bool{
	Unavailable: {Available: true},
	Available: {Opening: true},
	Opening: {Open: true, Unavailable: true},
	Open: {Busy: true, Closing: true},
	Busy: {Open: true, Closing: true},
	Closing: {Unavailable: true},
}

// errIllegalTransition reports a transition not present in the table.
type errIllegalTransition struct {
	From, To State
}

func (e errIllegalTransition) Error() string {
	return fmt.Sprintf("link: illegal transition %v -> %v", e.From, e.To)
}

// Stats tracks a Link's traffic counters.
type Stats struct {
	BundlesQueued uint64
	BundlesTransmitted uint64
	BytesTransmitted uint64
}

// Params holds a Link's convergence-layer-independent tunables.
type Params struct {
	MinRetryInterval time.Duration
	MaxRetryInterval time.Duration
	IdleCloseTime time.Duration
	BusyQueueDepth int
}

// Link is a named, typed channel to a next-hop endpoint. A
// Contact exists iff State is one of Opening, Open, Busy, Closing.
type Link struct {
	mutex sync.Mutex

	name string
	nexthop bundle.EndpointID
	linkType Type
	claName string
	params Params

	state State
	contact *Contact

	queue []bundle.Bundle
	stats Stats

	retryInterval time.Duration
	idleSince time.Time
	nextRetryAt time.Time
}

// New creates a Link in the UNAVAILABLE state.
func New(name string, nexthop bundle.EndpointID, linkType Type, claName string, params Params) *Link {
	return &Link{
		name: name,
		nexthop: nexthop,
		linkType: linkType,
		claName: claName,
		params: params,
		state: Unavailable,
		retryInterval: params.MinRetryInterval,
		idleSince: time.Now(),
	}
}

func (l *Link) Name() string { return l.name }
func (l *Link) NextHop() bundle.EndpointID { return l.nexthop }
func (l *Link) Type() Type { return l.linkType }
func (l *Link) ConvergenceLayerName() string { return l.claName }

// State returns the Link's current state.
func (l *Link) State() State {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.state
}

// Contact returns the active Contact, if any, and whether one exists.
func (l *Link) Contact() (*Contact, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.contact == nil {
		return nil, false
	}
	return l.contact, true
}

func (l *Link) transition(to State) error {
	allowed, ok := legalTransitions[l.state][to]
	if !ok || !allowed {
		return errIllegalTransition{From: l.state, To: to}
	}

	log.WithFields(log.Fields{
		"link": l.name,
		"from": l.state,
		"to": to,
	}).Debug("link state transition")

	l.state = to
	return nil
}

// MakeAvailable moves an UNAVAILABLE link to AVAILABLE: the peer is
// reachable, or an ONDEMAND link has just been created.
func (l *Link) MakeAvailable() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.transition(Available)
}

// Open begins opening a Contact: AVAILABLE -> OPENING.
func (l *Link) Open() (*Contact, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.transition(Opening); err != nil {
		return nil, err
	}

	c := newContact(l)
	l.contact = c
	return c, nil
}

// HandshakeComplete moves OPENING -> OPEN once the convergence layer
// session has finished negotiating.
func (l *Link) HandshakeComplete() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.transition(Open); err != nil {
		return err
	}
	l.retryInterval = l.params.MinRetryInterval
	l.idleSince = time.Now()
	return nil
}

// HandshakeFailed moves OPENING -> UNAVAILABLE.
func (l *Link) HandshakeFailed() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.transition(Unavailable); err != nil {
		return err
	}
	l.dropContactLocked()
	return nil
}

// EnterBusy moves OPEN -> BUSY once the queue depth reaches
// Params.BusyQueueDepth.
func (l *Link) EnterBusy() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.transition(Busy)
}

// DrainBusy moves BUSY -> OPEN once an acknowledgement drains the queue
// below the busy threshold.
func (l *Link) DrainBusy() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.transition(Open)
}

// Close begins a local or peer-initiated shutdown: OPEN|BUSY -> CLOSING.
func (l *Link) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.transition(Closing)
}

// TeardownComplete moves CLOSING -> UNAVAILABLE once the session has
// fully torn down.
func (l *Link) TeardownComplete() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if err := l.transition(Unavailable); err != nil {
		return err
	}
	l.dropContactLocked()
	return nil
}

// Break forces any state to UNAVAILABLE on an underlying transport error,
// the "any -> UNAVAILABLE" transition.
func (l *Link) Break() {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	log.WithFields(log.Fields{"link": l.name, "from": l.state}).Warn("link broken")

	l.state = Unavailable
	l.dropContactLocked()
}

func (l *Link) dropContactLocked() {
	if l.contact != nil {
		l.contact.release()
		l.contact = nil
	}
}

// NextRetryInterval returns the delay to wait before the next re-open
// attempt, doubling from the minimum retry interval, then advances the
// internal backoff state for the following call.
func (l *Link) NextRetryInterval() time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	d := l.retryInterval
	next := l.retryInterval * 2
	if next > l.params.MaxRetryInterval {
		next = l.params.MaxRetryInterval
	}
	l.retryInterval = next
	return d
}

// Enqueue appends a bundle to the Link's FIFO queue.
func (l *Link) Enqueue(b bundle.Bundle) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.queue = append(l.queue, b)
	l.stats.BundlesQueued++
	l.idleSince = time.Time{}
}

// Dequeue pops the oldest queued bundle, if any.
func (l *Link) Dequeue() (bundle.Bundle, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if len(l.queue) == 0 {
		l.idleSince = time.Now()
		return bundle.Bundle{}, false
	}

	b := l.queue[0]
	l.queue = l.queue[1:]
	if len(l.queue) == 0 {
		l.idleSince = time.Now()
	}
	return b, true
}

// QueueDepth returns the number of bundles currently queued.
func (l *Link) QueueDepth() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.queue)
}

// Idle reports whether an ONDEMAND link's queue has been empty for at
// least Params.IdleCloseTime. Bundles already dequeued for sending are not
// tracked.
func (l *Link) Idle() bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.linkType != OnDemand || l.idleSince.IsZero() {
		return false
	}
	return time.Since(l.idleSince) >= l.params.IdleCloseTime
}

// Stats returns a copy of the Link's traffic counters.
func (l *Link) Stats() Stats {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.stats
}

// RecordTransmitted updates the Link's counters after n bytes of a bundle
// have gone out on the wire.
func (l *Link) RecordTransmitted(n int) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.stats.BundlesTransmitted++
	l.stats.BytesTransmitted += uint64(n)
}
