// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package link

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Opener is the callback a ContactManager invokes to actually attempt a
// re-open of a broken link. It returns an error if the attempt itself
// could not even be started (e.g. resolver failure); a successful call
// still may later report HandshakeFailed asynchronously.
type Opener func(l *Link) error

// ContactManager supervises a set of Links, scheduling ONDEMAND/ALWAYSON
// re-opens after a broken contact with doubling backoff, and closing idle
// ONDEMAND links.
type ContactManager struct {
	mutex sync.Mutex
	links map[string]*Link
	open Opener

	tickInterval time.Duration
	stopCh chan struct{}
	stopped sync.Once
	wg sync.WaitGroup
}

// NewContactManager creates a ContactManager driving re-opens via open,
// checking for due retries and idle ONDEMAND links every tickInterval.
func NewContactManager(open Opener, tickInterval time.Duration) *ContactManager {
	cm := &ContactManager{
		links: make(map[string]*Link),
		open: open,
		tickInterval: tickInterval,
		stopCh: make(chan struct{}),
	}

	cm.wg.Add(1)
	go cm.run()

	return cm
}

// Add registers a Link for supervision. ALWAYSON links are opened
// immediately; ONDEMAND links are opened by the next tick that finds them
// UNAVAILABLE with no retry pending, whether or not a bundle is queued.
func (cm *ContactManager) Add(l *Link) {
	cm.mutex.Lock()
	cm.links[l.name] = l
	cm.mutex.Unlock()

	if l.Type() == AlwaysOn {
		cm.tryOpen(l)
	}
}

// Remove drops a Link from supervision.
func (cm *ContactManager) Remove(name string) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	delete(cm.links, name)
}

// Get returns a supervised Link by name.
func (cm *ContactManager) Get(name string) (*Link, bool) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()
	l, ok := cm.links[name]
	return l, ok
}

func (cm *ContactManager) snapshot() []*Link {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	out := make([]*Link, 0, len(cm.links))
	for _, l := range cm.links {
		out = append(out, l)
	}
	return out
}

func (cm *ContactManager) run() {
	defer cm.wg.Done()

	ticker := time.NewTicker(cm.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cm.stopCh:
			return
		case <-ticker.C:
			cm.tick()
		}
	}
}

func (cm *ContactManager) tick() {
	now := time.Now()

	for _, l := range cm.snapshot() {
		state := l.State()

		switch {
		case state == Unavailable && (l.linkType == AlwaysOn || l.linkType == OnDemand):
			l.mutex.Lock()
			due := l.nextRetryAt
			l.mutex.Unlock()
			if due.IsZero() || !now.Before(due) {
				cm.tryOpen(l)
			}

		case l.linkType == OnDemand && l.Idle() && (state == Open || state == Busy):
			log.WithFields(log.Fields{"link": l.name}).Info("closing idle ondemand link")
			if err := l.Close(); err != nil {
				log.WithFields(log.Fields{"link": l.name, "error": err}).Warn("failed to close idle link")
			}
		}
	}
}

func (cm *ContactManager) tryOpen(l *Link) {
	if l.State() == Unavailable {
		if err := l.MakeAvailable(); err != nil {
			return
		}
	}

	if _, err := l.Open(); err != nil {
		return
	}

	if err := cm.open(l); err != nil {
		log.WithFields(log.Fields{"link": l.name, "error": err}).Info("open attempt failed")
		cm.ScheduleRetry(l)
	}
}

// ScheduleRetry records that l just broke and arranges its next due time
// per the doubling-backoff schedule; NextRetryInterval both returns the
// delay to use and advances the backoff state for next time.
func (cm *ContactManager) ScheduleRetry(l *Link) {
	_ = l.HandshakeFailed()

	delay := l.NextRetryInterval()

	l.mutex.Lock()
	l.nextRetryAt = time.Now().Add(delay)
	l.mutex.Unlock()

	log.WithFields(log.Fields{"link": l.name, "delay": delay}).Debug("scheduled link retry")
}

// Stop halts the ContactManager's background goroutine.
func (cm *ContactManager) Stop() {
	cm.stopped.Do(func() { close(cm.stopCh) })
	cm.wg.Wait()
}
