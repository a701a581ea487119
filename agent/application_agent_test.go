// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

// mockAgent is a minimal ApplicationAgent for testing the Mux and the
// bag-matching helpers, answering to a fixed set of endpoints.
type mockAgent struct {
	endpoints []bundle.EndpointID
	policy    DeliveryPolicy
	receiver  chan Message
	sender    chan Message
}

func newMockAgent(eids []bundle.EndpointID) *mockAgent {
	return &mockAgent{
		endpoints: eids,
		policy:    Defer,
		receiver:  make(chan Message, 4),
		sender:    make(chan Message, 4),
	}
}

func (m *mockAgent) Endpoints() []bundle.EndpointID  { return m.endpoints }
func (m *mockAgent) Policy() DeliveryPolicy          { return m.policy }
func (m *mockAgent) MessageReceiver() chan Message   { return m.receiver }
func (m *mockAgent) MessageSender() chan Message     { return m.sender }

func TestAppAgentContainsEndpoint(t *testing.T) {
	appAgent := newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/"), bundle.MustNewEndpointID("dtn://bar/")})

	tests := []struct {
		eids  []bundle.EndpointID
		valid bool
	}{
		{[]bundle.EndpointID{}, false},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://bar/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/"), bundle.MustNewEndpointID("dtn://bar/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://bar/"), bundle.MustNewEndpointID("dtn://foo/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://bar/"), bundle.MustNewEndpointID("dtn://bar/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://baz/"), bundle.MustNewEndpointID("dtn://bar/")}, true},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://baz/"), bundle.MustNewEndpointID("dtn://ban/")}, false},
		{[]bundle.EndpointID{bundle.MustNewEndpointID("dtn://baz/"), bundle.MustNewEndpointID("dtn://ban/"), bundle.MustNewEndpointID("dtn://bar/")}, true},
	}

	for _, test := range tests {
		contains := AppAgentContainsEndpoint(appAgent, test.eids)
		if contains != test.valid {
			t.Fatalf("errored for %v", test.eids)
		}
	}
}

func TestDeliveryPolicyString(t *testing.T) {
	if Defer.String() != "DEFER" {
		t.Fatalf("Defer.String() = %q", Defer.String())
	}
	if Abort.String() != "ABORT" {
		t.Fatalf("Abort.String() = %q", Abort.String())
	}
}

func TestMuxDeliversToMatchingAgent(t *testing.T) {
	mux := NewMux()

	foo := newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/")})
	bar := newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://bar/")})
	mux.Register(foo)
	mux.Register(bar)

	b := createBundle("dtn://sender/", "dtn://foo/", t)

	if delivered := mux.Deliver(b); !delivered {
		t.Fatal("expected Deliver to report success")
	}

	select {
	case msg := <-foo.MessageReceiver():
		bm, ok := msg.(BundleMessage)
		if !ok || bm.Bundle.ID() != b.ID() {
			t.Fatalf("unexpected message delivered to foo: %#v", msg)
		}
	default:
		t.Fatal("expected a bundle message on foo's receiver")
	}

	select {
	case msg := <-bar.MessageReceiver():
		t.Fatalf("bar should not have received anything, got %#v", msg)
	default:
	}
}

func TestMuxDeliverReportsNoMatch(t *testing.T) {
	mux := NewMux()
	mux.Register(newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/")}))

	b := createBundle("dtn://sender/", "dtn://nowhere/", t)
	if delivered := mux.Deliver(b); delivered {
		t.Fatal("expected Deliver to report no match")
	}
}

func TestMuxFansInOutgoingMessages(t *testing.T) {
	mux := NewMux()
	foo := newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/")})
	mux.Register(foo)

	b := createBundle("dtn://foo/", "dtn://dst/", t)
	foo.MessageSender() <- BundleMessage{Bundle: b}

	select {
	case msg := <-mux.MessageSender():
		bm, ok := msg.(BundleMessage)
		if !ok || bm.Bundle.ID() != b.ID() {
			t.Fatalf("unexpected fanned-in message: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the fanned-in message")
	}
}

func TestMuxCloseSignalsShutdown(t *testing.T) {
	mux := NewMux()
	foo := newMockAgent([]bundle.EndpointID{bundle.MustNewEndpointID("dtn://foo/")})
	mux.Register(foo)

	mux.Close()

	select {
	case msg := <-foo.MessageReceiver():
		if _, ok := msg.(ShutdownMessage); !ok {
			t.Fatalf("expected a ShutdownMessage, got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for the shutdown message")
	}
}
