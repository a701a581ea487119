// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package link

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

func TestContactManagerOpensAlwaysOnLinkImmediately(t *testing.T) {
	var attempts int32

	cm := NewContactManager(func(l *Link) error {
		atomic.AddInt32(&attempts, 1)
		return l.HandshakeComplete()
	}, time.Millisecond)
	defer cm.Stop()

	l := newTestLink(t, AlwaysOn)
	cm.Add(l)

	if got := atomic.LoadInt32(&attempts); got != 1 {
		t.Fatalf("open attempts = %d, want 1", got)
	}
	if got := l.State(); got != Open {
		t.Fatalf("state after immediate open = %v, want OPEN", got)
	}
}

func TestContactManagerRetriesAfterFailedOpen(t *testing.T) {
	var attempts int32

	cm := NewContactManager(func(l *Link) error {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			return fmt.Errorf("simulated failure")
		}
		return l.HandshakeComplete()
	}, 5*time.Millisecond)
	defer cm.Stop()

	params := testParams()
	params.MinRetryInterval = 10 * time.Millisecond
	params.MaxRetryInterval = 20 * time.Millisecond
	l := New("retry-link", bundle.MustNewEndpointID("dtn://peer.dtn/"), AlwaysOn, "tcpcl", params)

	cm.Add(l)

	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) {
		if l.State() == Open {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := l.State(); got != Open {
		t.Fatalf("state after retry = %v, want OPEN", got)
	}
	if got := atomic.LoadInt32(&attempts); got < 2 {
		t.Fatalf("open attempts = %d, want at least 2", got)
	}
}
