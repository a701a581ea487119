// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package link

import (
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

func testParams() Params {
	return Params{
		MinRetryInterval: 5 * time.Second,
		MaxRetryInterval: 60 * time.Second,
		IdleCloseTime: 30 * time.Second,
		BusyQueueDepth: 10,
	}
}

func newTestLink(t *testing.T, typ Type) *Link {
	t.Helper()
	nexthop := bundle.MustNewEndpointID("dtn://peer.dtn/")
	return New("test-link", nexthop, typ, "tcpcl", testParams())
}

func TestLinkLegalTransitionSequence(t *testing.T) {
	l := newTestLink(t, AlwaysOn)

	if got := l.State(); got != Unavailable {
		t.Fatalf("initial state = %v, want UNAVAILABLE", got)
	}

	steps := []struct {
		name string
		fn func() error
		want State
	}{
		{"MakeAvailable", l.MakeAvailable, Available},
		{"Open", func() error { _, err := l.Open(); return err }, Opening},
		{"HandshakeComplete", l.HandshakeComplete, Open},
		{"EnterBusy", l.EnterBusy, Busy},
		{"DrainBusy", l.DrainBusy, Open},
		{"Close", l.Close, Closing},
		{"TeardownComplete", l.TeardownComplete, Unavailable},
	}

	for _, step := range steps {
		if err := step.fn(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := l.State(); got != step.want {
			t.Fatalf("after %s: state = %v, want %v", step.name, got, step.want)
		}
	}
}

func TestLinkRejectsIllegalTransitions(t *testing.T) {
	l := newTestLink(t, AlwaysOn)

	if err := l.HandshakeComplete(); err == nil {
		t.Errorf("HandshakeComplete from UNAVAILABLE should fail")
	}
	if err := l.EnterBusy(); err == nil {
		t.Errorf("EnterBusy from UNAVAILABLE should fail")
	}

	if err := l.MakeAvailable(); err != nil {
		t.Fatalf("MakeAvailable: %v", err)
	}
	if _, err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.HandshakeComplete(); err != nil {
		t.Fatalf("HandshakeComplete: %v", err)
	}
	if err := l.EnterBusy(); err != nil {
		t.Fatalf("EnterBusy: %v", err)
	}

	// Busy monotonicity: BUSY may only go to OPEN, CLOSING, or UNAVAILABLE
	// (via Break, not the normal transition table).
	if err := l.MakeAvailable(); err == nil {
		t.Errorf("BUSY -> AVAILABLE should be illegal")
	}
}

func TestLinkBreakAlwaysLegal(t *testing.T) {
	l := newTestLink(t, AlwaysOn)

	_ = l.MakeAvailable()
	if _, err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.HandshakeComplete(); err != nil {
		t.Fatalf("HandshakeComplete: %v", err)
	}
	if err := l.EnterBusy(); err != nil {
		t.Fatalf("EnterBusy: %v", err)
	}

	l.Break()

	if got := l.State(); got != Unavailable {
		t.Fatalf("after Break: state = %v, want UNAVAILABLE", got)
	}
	if _, ok := l.Contact(); ok {
		t.Errorf("Contact still present after Break")
	}
}

// TestRetryBackoff checks that broken contacts on an ONDEMAND link with
// min=5s/max=60s schedule retries at 5, 10, 20, 40 seconds; a successful
// open then a break resets to 5.
func TestRetryBackoff(t *testing.T) {
	l := newTestLink(t, OnDemand)

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second}
	for i, w := range want {
		if got := l.NextRetryInterval(); got != w {
			t.Errorf("retry %d = %v, want %v", i, got, w)
		}
	}

	// A successful open resets the backoff to the minimum.
	if err := l.MakeAvailable(); err != nil {
		t.Fatalf("MakeAvailable: %v", err)
	}
	if _, err := l.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.HandshakeComplete(); err != nil {
		t.Fatalf("HandshakeComplete: %v", err)
	}

	l.Break()

	if got := l.NextRetryInterval(); got != 5*time.Second {
		t.Errorf("retry after reset = %v, want 5s", got)
	}
}

func TestLinkIdleClose(t *testing.T) {
	params := testParams()
	params.IdleCloseTime = 10 * time.Millisecond
	l := New("idle-link", bundle.MustNewEndpointID("dtn://peer.dtn/"), OnDemand, "tcpcl", params)

	l.Enqueue(bundle.Bundle{})
	if l.Idle() {
		t.Errorf("link with a queued bundle should not be idle")
	}

	if _, ok := l.Dequeue(); !ok {
		t.Fatalf("Dequeue: expected a bundle")
	}

	time.Sleep(20 * time.Millisecond)
	if !l.Idle() {
		t.Errorf("link with an empty queue past IdleCloseTime should be idle")
	}
}
