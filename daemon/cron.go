// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package daemon

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type cronjob struct {
	task func()
	interval time.Duration
	nextEvent time.Time
}

// Cron runs named, interval-based background tasks such as a routing
// algorithm's periodic LSA broadcast or recompute.
type Cron struct {
	jobs map[string]*cronjob
	mutex sync.Mutex

	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewCron creates and starts an empty Cron.
func NewCron() *Cron {
	cron := &Cron{
		jobs: make(map[string]*cronjob),
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	go cron.loop()

	return cron
}

func (cron *Cron) loop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-cron.stopSyn:
			close(cron.stopAck)
			return

		case t := <-ticker.C:
			cron.fire(t)
		}
	}
}

func (cron *Cron) fire(t time.Time) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	for name, job := range cron.jobs {
		if job.nextEvent.After(t) {
			continue
		}

		job.nextEvent = job.nextEvent.Add(job.interval)
		go job.task()

		log.WithFields(log.Fields{
			"job": name,
			"interval": job.interval,
			"next_event": job.nextEvent,
		}).Debug("cron executed job")
	}
}

// Stop halts the Cron. Only allowed to be called once.
func (cron *Cron) Stop() {
	close(cron.stopSyn)
	<-cron.stopAck
}

// Register a task by name, function and interval. The interval must be at
// least one second; the function runs in its own goroutine and must be
// thread-safe.
func (cron *Cron) Register(name string, task func(), interval time.Duration) error {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()

	if _, exists := cron.jobs[name]; exists {
		return fmt.Errorf("daemon: a job named %s is already registered", name)
	}
	if interval < time.Second {
		return fmt.Errorf("daemon: interval %v is shorter than a second", interval)
	}

	cron.jobs[name] = &cronjob{
		task: task,
		interval: interval,
		nextEvent: time.Now().Add(interval),
	}

	return nil
}

// Unregister a task by name.
func (cron *Cron) Unregister(name string) {
	cron.mutex.Lock()
	defer cron.mutex.Unlock()
	delete(cron.jobs, name)
}
