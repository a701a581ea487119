// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
	"github.com/dtn-go/bpagent/daemon"
)

// mockSender is a minimal cla.ConvergenceSender for exercising DTLSR without
// a real transport.
type mockSender struct {
	address string
	peer    bundle.EndpointID
}

func (m *mockSender) Start() (error, bool)               { return nil, true }
func (m *mockSender) Close()                             {}
func (m *mockSender) Address() string                     { return m.address }
func (m *mockSender) IsPermanent() bool                   { return true }
func (m *mockSender) Channel() chan cla.ConvergenceStatus { return nil }
func (m *mockSender) Send(bundle.Bundle) error            { return nil }
func (m *mockSender) PeerEndpointID() bundle.EndpointID   { return m.peer }

func mustEID(t *testing.T, uri string) bundle.EndpointID {
	t.Helper()
	eid, err := bundle.NewEndpointID(uri)
	if err != nil {
		t.Fatalf("NewEndpointID(%q): %v", uri, err)
	}
	return eid
}

func testLSABundle(t *testing.T, source bundle.EndpointID, seqno uint64, edges map[string]dtlsrEdge) bundle.Bundle {
	t.Helper()
	l := lsa{seqno: seqno, created: bundle.DtnTimeNow(), edges: edges}
	dest := mustEID(t, "dtn://*/dtlsr")

	b, err := bundle.Builder().
		Source(source).
		Destination(dest).
		CreationTimestampNow().
		Lifetime("1h").
		PayloadBlock(marshalLSA(l)).
		Build()
	if err != nil {
		t.Fatalf("Builder().Build: %v", err)
	}
	return b
}

func newTestDTLSR(t *testing.T, local string) *DTLSR {
	t.Helper()
	return NewDTLSR(mustEID(t, local), DTLSRConfig{
		LSAInterval:    time.Hour,
		MinLSAInterval: time.Millisecond,
		LSALifetime:    time.Hour,
		WeightFn:       WeightCost,
	})
}

func TestLSAMarshalUnmarshalRoundTrip(t *testing.T) {
	source := mustEID(t, "dtn://b.dtn/app")
	edges := map[string]dtlsrEdge{
		"dtn://c.dtn/app": {LinkID: "tcpcl-b-c", Cost: 3, Delay: 10, Bw: 1000, QCount: 2, QSize: 512, State: EdgeUp},
	}
	l := lsa{seqno: 7, created: bundle.DtnTimeNow(), edges: edges}

	out, err := unmarshalLSA(source, marshalLSA(l))
	if err != nil {
		t.Fatalf("unmarshalLSA: %v", err)
	}
	if out.seqno != 7 {
		t.Fatalf("seqno: got %d, want 7", out.seqno)
	}
	e, ok := out.edges["dtn://c.dtn/app"]
	if !ok {
		t.Fatal("expected edge to dtn://c.dtn/app")
	}
	if e.LinkID != "tcpcl-b-c" || e.Cost != 3 || e.Delay != 10 || e.Bw != 1000 || e.QCount != 2 || e.QSize != 512 || e.State != EdgeUp {
		t.Fatalf("edge round trip mismatch: %+v", e)
	}
}

func TestDTLSRAbsorbLSASupersession(t *testing.T) {
	d := newTestDTLSR(t, "dtn://a.dtn/app")
	source := mustEID(t, "dtn://b.dtn/app")

	first := testLSABundle(t, source, 1, map[string]dtlsrEdge{
		"dtn://c.dtn/app": {LinkID: "l1", Cost: 5, State: EdgeUp},
	})
	if ok := d.HandleEvent(daemon.Event{Kind: daemon.BundleReceived, Bundle: first}); !ok {
		t.Fatal("expected first LSA to be absorbed")
	}

	// An LSA with an equal-or-older (seqno, creation time) pair must be ignored.
	stale := first
	if ok := d.HandleEvent(daemon.Event{Kind: daemon.BundleReceived, Bundle: stale}); ok {
		t.Fatal("expected a duplicate-seqno LSA to be ignored as stale")
	}

	// A strictly higher seqno supersedes and replaces the edge set entirely:
	// c disappears, d appears.
	second := testLSABundle(t, source, 2, map[string]dtlsrEdge{
		"dtn://d.dtn/app": {LinkID: "l2", Cost: 1, State: EdgeUp},
	})
	if ok := d.HandleEvent(daemon.Event{Kind: daemon.BundleReceived, Bundle: second}); !ok {
		t.Fatal("expected superseding LSA to be absorbed")
	}

	if _, ok := d.graph.FindEdge("dtn://b.dtn/app->dtn://c.dtn/app"); ok {
		t.Fatal("expected stale edge b->c to be removed once superseded (KeepDownLinks false)")
	}
	if _, ok := d.graph.FindEdge("dtn://b.dtn/app->dtn://d.dtn/app"); !ok {
		t.Fatal("expected new edge b->d to be present")
	}
}

func TestDTLSRRouteRecompute(t *testing.T) {
	a := newTestDTLSR(t, "dtn://a.dtn/app")

	peerB := &mockSender{address: "tcpcl-b", peer: mustEID(t, "dtn://b.dtn/app")}
	a.ReportPeerAppeared(peerB)

	// b advertises a cheap path onward to c.
	bLSA := testLSABundle(t, mustEID(t, "dtn://b.dtn/app"), 1, map[string]dtlsrEdge{
		"dtn://c.dtn/app": {LinkID: "tcpcl-b-c", Cost: 1, State: EdgeUp},
	})
	a.HandleEvent(daemon.Event{Kind: daemon.BundleReceived, Bundle: bLSA})

	a.Tick()

	state := a.GetRoutingState()
	if got := state.Routes["dtn://b.dtn/app"]; got != "tcpcl-b" {
		t.Fatalf("route to b: got %q, want tcpcl-b", got)
	}
	if got := state.Routes["dtn://c.dtn/app"]; got != "tcpcl-b" {
		t.Fatalf("route to c: got %q, want tcpcl-b (via b)", got)
	}

	senders := []cla.ConvergenceSender{peerB}
	toC, err := bundle.Builder().
		Source("dtn://a.dtn/app").
		Destination("dtn://c.dtn/app").
		CreationTimestampNow().
		Lifetime("10m").
		PayloadBlock([]byte("hi")).
		Build()
	if err != nil {
		t.Fatalf("Builder().Build: %v", err)
	}

	chosen, done := a.SendersFor(toC, senders)
	if !done {
		t.Fatal("DTLSR SendersFor should declare a bundle done once it is handed to its next hop")
	}
	if len(chosen) != 1 || chosen[0].Address() != "tcpcl-b" {
		t.Fatalf("expected to route via tcpcl-b, got %+v", chosen)
	}
}

func TestDTLSRPeerDisappearedMarksEdgeDown(t *testing.T) {
	a := newTestDTLSR(t, "dtn://a.dtn/app")
	peerB := &mockSender{address: "tcpcl-b", peer: mustEID(t, "dtn://b.dtn/app")}

	a.ReportPeerAppeared(peerB)
	if !a.localChanged {
		t.Fatal("expected localChanged after ReportPeerAppeared")
	}
	a.Tick()
	if a.localChanged {
		t.Fatal("expected localChanged to clear after Tick")
	}

	a.ReportPeerDisappeared(peerB)
	a.mutex.Lock()
	edge := a.localEdges["dtn://b.dtn/app"]
	a.mutex.Unlock()
	if edge.State != EdgeDown {
		t.Fatalf("expected local edge to b to be marked down, got state %v", edge.State)
	}
}
