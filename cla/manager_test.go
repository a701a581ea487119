// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cla

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

// mockConv is a minimal Convergence(Receiver|Sender) for exercising Manager
// without a real transport.
type mockConv struct {
	address    string
	local      bundle.EndpointID
	permanent  bool
	startCalls int32

	reportChan chan ConvergenceStatus
	bundleChan chan RecBundle
	closed     chan struct{}
	closeOnce  sync.Once
}

func newMockConv(address string, local bundle.EndpointID) *mockConv {
	return &mockConv{
		address:    address,
		local:      local,
		reportChan: make(chan ConvergenceStatus),
		bundleChan: make(chan RecBundle),
		closed:     make(chan struct{}),
	}
}

func (m *mockConv) Start() (error, bool) {
	atomic.AddInt32(&m.startCalls, 1)
	return nil, true
}

func (m *mockConv) Close() {
	m.closeOnce.Do(func() { close(m.closed) })
}

func (m *mockConv) Address() string                 { return m.address }
func (m *mockConv) IsPermanent() bool                { return m.permanent }
func (m *mockConv) Channel() chan ConvergenceStatus { return m.reportChan }
func (m *mockConv) Bundles() chan RecBundle          { return m.bundleChan }

func (m *mockConv) LocalEndpointID() bundle.EndpointID { return m.local }
func (m *mockConv) PeerEndpointID() bundle.EndpointID  { return bundle.EndpointID{} }
func (m *mockConv) Send(bundle.Bundle) error           { return nil }

func testBundle(t *testing.T) bundle.Bundle {
	t.Helper()
	b, err := bundle.Builder().
		Source("dtn://a.dtn/app").
		Destination("dtn://b.dtn/app").
		CreationTimestampNow().
		Lifetime("10m").
		PayloadBlock([]byte("hello world")).
		Build()
	if err != nil {
		t.Fatalf("Builder().Build: %v", err)
	}
	return b
}

func TestManagerRegisterAndForward(t *testing.T) {
	const receiverNo = 20

	manager := NewManager()
	defer manager.Close()

	var wg sync.WaitGroup
	wg.Add(receiverNo)

	go func() {
		for cs := range manager.Channel() {
			if cs.MessageType == ReceivedBundle {
				wg.Done()
			}
		}
	}()

	receivers := make([]*mockConv, receiverNo)
	for i := range receivers {
		receivers[i] = newMockConv(fmt.Sprintf("mock://receiver_%d/", i), bundle.MustNewEndpointID(fmt.Sprintf("dtn://mr_%d/", i)))
		if err := manager.Register(receivers[i]); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}

	bndl := testBundle(t)
	for _, r := range receivers {
		r.reportChan <- NewConvergenceReceivedBundle(r, r.LocalEndpointID(), bndl)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for Manager to forward received bundles")
	}
}

func TestManagerRejectsDuplicateAddress(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	conv := newMockConv("mock://dup/", bundle.MustNewEndpointID("dtn://dup/"))
	if err := manager.Register(conv); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if err := manager.Register(conv); err == nil {
		t.Errorf("second Register for the same address should fail")
	}
}

func TestManagerRestartOnPeerDisappeared(t *testing.T) {
	manager := NewManager()
	defer manager.Close()

	conv := newMockConv("mock://flaky/", bundle.MustNewEndpointID("dtn://flaky/"))
	if err := manager.Register(conv); err != nil {
		t.Fatalf("Register: %v", err)
	}

	drain := make(chan struct{})
	go func() {
		for range manager.Channel() {
		}
		close(drain)
	}()

	conv.reportChan <- ConvergenceStatus{
		Sender:      conv,
		MessageType: PeerDisappeared,
		Message:     conv.LocalEndpointID(),
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt32(&conv.startCalls) >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if got := atomic.LoadInt32(&conv.startCalls); got < 2 {
		t.Fatalf("Start calls = %d, want at least 2 (restart after PeerDisappeared)", got)
	}

	manager.Close()
	<-drain
}
