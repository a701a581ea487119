// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"net"
	"testing"
	"time"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
)

func testBundle(t *testing.T, payload string) bundle.Bundle {
	t.Helper()
	b, err := bundle.Builder().
		Source("dtn://a.dtn/app").
		Destination("dtn://b.dtn/app").
		CreationTimestampNow().
		Lifetime("10m").
		PayloadBlock([]byte(payload)).
		Build()
	if err != nil {
		t.Fatalf("Builder().Build: %v", err)
	}
	return b
}

// dialLoopback establishes two Clients over a real TCP loopback connection,
// negotiating bundle-ack and reactive fragmentation so Send blocks for acks.
func dialLoopback(t *testing.T) (server, client *Client) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen failed: %v", err)
	}

	params := Params{KeepaliveInterval: 30, PartialAckLen: 4, BundleAckEnabled: true, ReactiveFragEnabled: true}

	serverConnCh := make(chan net.Conn, 1)
	go func() {
		conn, aerr := ln.Accept()
		if aerr != nil {
			return
		}
		serverConnCh <- conn
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("net.Dial failed: %v", err)
	}
	defer ln.Close()

	serverConn := <-serverConnCh

	server = NewClient(serverConn, bundle.MustNewEndpointID("dtn://b.dtn/app"), bundle.MustNewEndpointID("dtn://a.dtn/app"), params)
	client = NewClient(conn, bundle.MustNewEndpointID("dtn://a.dtn/app"), bundle.MustNewEndpointID("dtn://b.dtn/app"), params)

	serverStarted := make(chan error, 1)
	go func() { err, _ := server.Start(); serverStarted <- err }()

	if err, _ := client.Start(); err != nil {
		t.Fatalf("client.Start failed: %v", err)
	}
	if err := <-serverStarted; err != nil {
		t.Fatalf("server.Start failed: %v", err)
	}

	return server, client
}

func TestClientSendReceive(t *testing.T) {
	server, client := dialLoopback(t)
	defer server.Close()
	defer client.Close()

	b := testBundle(t, "hello over tcpcl")

	sendErr := make(chan error, 1)
	go func() { sendErr <- client.Send(b) }()

	select {
	case status := <-server.Channel():
		if status.MessageType != cla.ReceivedBundle {
			t.Fatalf("expected ReceivedBundle, got %v", status.MessageType)
		}
		recvd, ok := status.Message.(cla.ConvergenceReceivedBundle)
		if !ok {
			t.Fatalf("expected a ConvergenceReceivedBundle, got %T", status.Message)
		}
		if recvd.Bundle.PrimaryBlock.SourceNode.String() != "dtn://a.dtn/app" {
			t.Fatalf("unexpected source node: %v", recvd.Bundle.PrimaryBlock.SourceNode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to report a received bundle")
	}

	select {
	case err := <-sendErr:
		if err != nil {
			t.Fatalf("client.Send failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client.Send to return")
	}
}

func TestClientCloseSendsShutdown(t *testing.T) {
	server, client := dialLoopback(t)
	defer server.Close()

	client.Close()

	select {
	case status := <-server.Channel():
		if status.MessageType != cla.PeerDisappeared {
			t.Fatalf("expected PeerDisappeared after peer shutdown, got %v", status.MessageType)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the server to notice the closed peer")
	}
}
