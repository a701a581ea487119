// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package daemon

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// latencyWarnThreshold and dwellWarnThreshold are fixed 2-second
// thresholds for, respectively, how long a single Handler.HandleEvent
// call may run and how long an Event may sit in the queue before being
// picked up.
const (
	latencyWarnThreshold = 2 * time.Second
	dwellWarnThreshold = 2 * time.Second
)

// EventQueue is the daemon's single-reader multi-writer event loop: a
// typed Event queue with strict FIFO ordering and one priority exception.
type EventQueue struct {
	mutex sync.Mutex
	queue []queuedEvent
	notify chan struct{}

	handlers []Handler

	shouldStop bool
	stopped chan struct{}
	stopOnce sync.Once
}

type queuedEvent struct {
	evt Event
	queued time.Time
}

// NewEventQueue creates an EventQueue and starts its daemon-thread goroutine.
func NewEventQueue() *EventQueue {
	eq := &EventQueue{
		notify: make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go eq.run()
	return eq
}

// Subscribe registers a Handler invoked, in registration order, for every
// dispatched Event.
func (eq *EventQueue) Subscribe(h Handler) {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()
	eq.handlers = append(eq.handlers, h)
}

// Post appends evt to the tail of the queue.
func (eq *EventQueue) Post(evt Event) {
	eq.enqueue(evt, false)
}

// PostUrgent appends evt at the head of the queue. Only
// LinkStateChangeRequest uses this, to guarantee it is processed before
// events that depend on the resulting route table.
func (eq *EventQueue) PostUrgent(evt Event) {
	eq.enqueue(evt, true)
}

func (eq *EventQueue) enqueue(evt Event, urgent bool) {
	qe := queuedEvent{evt: evt, queued: time.Now()}

	eq.mutex.Lock()
	if urgent {
		eq.queue = append([]queuedEvent{qe}, eq.queue...)
	} else {
		eq.queue = append(eq.queue, qe)
	}
	eq.mutex.Unlock()

	select {
	case eq.notify <- struct{}{}:
	default:
	}
}

// Stop sets the should-stop flag; the queue drains to completion and then
// the daemon goroutine exits.
func (eq *EventQueue) Stop() {
	eq.mutex.Lock()
	eq.shouldStop = true
	eq.mutex.Unlock()

	select {
	case eq.notify <- struct{}{}:
	default:
	}

	<-eq.stopped
}

func (eq *EventQueue) run() {
	defer eq.stopOnce.Do(func() { close(eq.stopped) })

	for {
		qe, ok := eq.pop()
		if !ok {
			eq.mutex.Lock()
			done := eq.shouldStop
			eq.mutex.Unlock()
			if done {
				return
			}
			<-eq.notify
			continue
		}

		if dwell := time.Since(qe.queued); dwell > dwellWarnThreshold {
			log.WithFields(log.Fields{"kind": qe.evt.Kind, "dwell": dwell}).
				Warn("daemon event queue dwell time exceeded threshold")
		}

		start := time.Now()
		eq.dispatch(qe.evt)
		if latency := time.Since(start); latency > latencyWarnThreshold {
			log.WithFields(log.Fields{"kind": qe.evt.Kind, "latency": latency}).
				Warn("daemon event processing latency exceeded threshold")
		}
	}
}

func (eq *EventQueue) pop() (queuedEvent, bool) {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()

	if len(eq.queue) == 0 {
		return queuedEvent{}, false
	}
	qe := eq.queue[0]
	eq.queue = eq.queue[1:]
	return qe, true
}

func (eq *EventQueue) dispatch(evt Event) {
	eq.mutex.Lock()
	handlers := make([]Handler, len(eq.handlers))
	copy(handlers, eq.handlers)
	eq.mutex.Unlock()

	for _, h := range handlers {
		h.HandleEvent(evt)
	}
}

// Len returns the number of events currently queued, for tests and metrics.
func (eq *EventQueue) Len() int {
	eq.mutex.Lock()
	defer eq.mutex.Unlock()
	return len(eq.queue)
}
