// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"fmt"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
)

// Listener is a TCPCL server bound to a TCP port accepting incoming sessions.
// It implements cla.Convergence itself so a cla.Manager can supervise the
// listening socket alongside the Clients it spawns.
type Listener struct {
	listenAddress string
	localEID bundle.EndpointID
	params Params

	// resolvePeerEID looks up the endpoint id configured for a remote
	// address in the link table. An unconfigured address
	// yields bundle.DtnNone; the peer's identity is then only learned
	// once a received bundle's source endpoint is inspected.
	resolvePeerEID func(remoteAddr string) bundle.EndpointID

	manager *cla.Manager

	ln net.Listener
	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewListener creates a Listener bound to listenAddress, advertising localEID
// to every accepted session.
func NewListener(listenAddress string, localEID bundle.EndpointID, params Params) *Listener {
	return &Listener{
		listenAddress: listenAddress,
		localEID: localEID,
		params: params,
		resolvePeerEID: func(string) bundle.EndpointID { return bundle.DtnNone() },
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}
}

// SetPeerResolver overrides the lookup used to assign a peer endpoint id to
// an accepted connection, keyed by its remote address.
func (listener *Listener) SetPeerResolver(resolve func(remoteAddr string) bundle.EndpointID) {
	listener.resolvePeerEID = resolve
}

// RegisterManager sets the cla.Manager that every accepted Client is
// registered with as it appears.
func (listener *Listener) RegisterManager(manager *cla.Manager) {
	listener.manager = manager
}

// Start implements cla.Convergence.
func (listener *Listener) Start() (err error, retry bool) {
	tcpAddr, rerr := net.ResolveTCPAddr("tcp", listener.listenAddress)
	if rerr != nil {
		return rerr, false
	}

	ln, lerr := net.ListenTCP("tcp", tcpAddr)
	if lerr != nil {
		return lerr, true
	}
	listener.ln = ln

	go listener.acceptLoop(ln)

	return nil, false
}

func (listener *Listener) acceptLoop(ln *net.TCPListener) {
	for {
		select {
		case <-listener.stopSyn:
			ln.Close()
			close(listener.stopAck)
			return

		default:
			if err := ln.SetDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
				log.WithError(err).WithField("cla", listener).Warn(
					"tcpcl listener failed to set accept deadline")
				listener.Close()
				continue
			}

			conn, err := ln.Accept()
			if err != nil {
				continue
			}

			peerEID := listener.resolvePeerEID(conn.RemoteAddr().String())
			client := NewClient(conn, listener.localEID, peerEID, listener.params)

			if listener.manager == nil {
				log.WithField("cla", client.Address()).Warn(
					"tcpcl listener accepted a connection with no manager registered")
				client.Close()
				continue
			}
			if err := listener.manager.Register(client); err != nil {
				log.WithError(err).WithField("cla", client.Address()).Warn(
					"tcpcl listener failed to register accepted client")
				client.Close()
			}
		}
	}
}

// Close implements cla.Convergence.
func (listener *Listener) Close() {
	select {
	case <-listener.stopSyn:
	default:
		close(listener.stopSyn)
	}
	<-listener.stopAck
}

func (listener *Listener) Address() string { return listener.listenAddress }

func (listener *Listener) IsPermanent() bool { return true }

// Channel implements cla.Convergence. The listener itself never reports a
// status; it exists only to spawn Clients which report on their own.
func (listener *Listener) Channel() chan cla.ConvergenceStatus { return nil }

func (listener *Listener) String() string {
	return fmt.Sprintf("tcpcl-listener(%s)", listener.listenAddress)
}
