// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
)

// Params are the locally offered, negotiable contact header fields.
type Params struct {
	KeepaliveInterval uint16
	PartialAckLen uint64
	BundleAckEnabled bool
	ReactiveFragEnabled bool
}

// sendChunk bounds a single BUNDLE_DATA write so large payloads can be
// interrupted mid-transfer for reactive fragmentation.
const sendChunk = 4096

// Client is a TCPCL session for a bidirectional bundle exchange, implementing
// cla.ConvergenceReceiver and cla.ConvergenceSender. It can be dialed
// outbound or handed an already-accepted connection by a Listener.
type Client struct {
	address string
	active bool
	permanent bool
	localEID bundle.EndpointID
	peerEID bundle.EndpointID
	params Params

	conn net.Conn
	reader *bufio.Reader

	local ContactHeader
	negotiated ContactHeader

	writeMu sync.Mutex

	nextBundleID uint64

	ackMu sync.Mutex
	ackedSoFar map[uint64]uint64
	ackWaiters map[uint64]chan uint64

	reportChan chan cla.ConvergenceStatus
	bundleChan chan cla.RecBundle

	stopSyn chan struct{}
	stopAck chan struct{}
	closeOnce sync.Once

	lastRecv atomic.Value // time.Time
}

// DialClient creates an active-side Client, dialing address on Start.
func DialClient(address string, localEID, peerEID bundle.EndpointID, permanent bool, params Params) *Client {
	return &Client{
		address: address,
		active: true,
		permanent: permanent,
		localEID: localEID,
		peerEID: peerEID,
		params: params,
	}
}

// NewClient creates a passive-side Client around an already-accepted
// connection, as handed to it by a Listener.
func NewClient(conn net.Conn, localEID, peerEID bundle.EndpointID, params Params) *Client {
	return &Client{
		address: conn.RemoteAddr().String(),
		active: false,
		localEID: localEID,
		peerEID: peerEID,
		params: params,
		conn: conn,
	}
}

func (client *Client) log() *log.Entry {
	return log.WithFields(log.Fields{"cla": client.Address(), "peer": client.peerEID})
}

// Start implements cla.Convergence.
func (client *Client) Start() (err error, retry bool) {
	if client.conn == nil {
		conn, dialErr := net.DialTimeout("tcp", client.address, 5*time.Second)
		if dialErr != nil {
			return dialErr, true
		}
		client.conn = conn
	}
	client.reader = bufio.NewReader(client.conn)

	client.local = NewContactHeader(
		contactFlags(client.params), client.params.KeepaliveInterval, client.params.PartialAckLen)

	if werr := client.local.Marshal(client.conn); werr != nil {
		client.conn.Close()
		return werr, true
	}
	var remote ContactHeader
	if rerr := remote.Unmarshal(client.reader); rerr != nil {
		client.conn.Close()
		return rerr, true
	}
	client.negotiated = negotiate(client.local, remote)

	client.ackedSoFar = make(map[uint64]uint64)
	client.ackWaiters = make(map[uint64]chan uint64)
	client.reportChan = make(chan cla.ConvergenceStatus, 32)
	client.bundleChan = make(chan cla.RecBundle, 32)
	client.stopSyn = make(chan struct{})
	client.stopAck = make(chan struct{})
	client.lastRecv.Store(time.Now())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); client.readLoop() }()
	go func() { defer wg.Done(); client.keepaliveLoop() }()

	go func() {
		wg.Wait()
		close(client.stopAck)
	}()

	client.log().Info("TCPCL session established")
	return nil, false
}

func contactFlags(p Params) (f ContactFlags) {
	if p.BundleAckEnabled {
		f |= BundleAckEnabled
	}
	if p.ReactiveFragEnabled {
		f |= ReactiveFragEnabled
	}
	return
}

// Close implements cla.Convergence: it sends an advisory SHUTDOWN and tears
// the transport down.
func (client *Client) Close() {
	client.closeOnce.Do(func() {
		client.writeMu.Lock()
		_ = ShutdownMessage{}.Marshal(client.conn)
		client.writeMu.Unlock()

		close(client.stopSyn)
		client.conn.Close()
	})

	if client.stopAck != nil {
		<-client.stopAck
	}
}

func (client *Client) Address() string { return client.address }

func (client *Client) IsPermanent() bool { return client.permanent }

func (client *Client) Channel() chan cla.ConvergenceStatus { return client.reportChan }

func (client *Client) Bundles() chan cla.RecBundle { return client.bundleChan }

func (client *Client) LocalEndpointID() bundle.EndpointID { return client.localEID }

func (client *Client) PeerEndpointID() bundle.EndpointID { return client.peerEID }

// Send implements cla.ConvergenceSender. It blocks until the bundle is fully
// acknowledged when bundle-ack was negotiated, giving the caller's Link a
// natural BUSY/OPEN backpressure signal.
func (client *Client) Send(b bundle.Bundle) error {
	body, err := bundle.MarshalBundle(&b, client)
	if err != nil {
		return fmt.Errorf("tcpcl: marshaling bundle: %w", err)
	}

	id := atomic.AddUint64(&client.nextBundleID, 1)

	var waiter chan uint64
	if client.negotiated.Flags&BundleAckEnabled != 0 {
		waiter = make(chan uint64, 1)
		client.ackMu.Lock()
		client.ackWaiters[id] = waiter
		client.ackedSoFar[id] = 0
		client.ackMu.Unlock()
		defer func() {
			client.ackMu.Lock()
			delete(client.ackWaiters, id)
			delete(client.ackedSoFar, id)
			client.ackMu.Unlock()
		}()
	}

	_, werr := client.writeBundleData(id, body)
	if werr != nil {
		if client.negotiated.Flags&ReactiveFragEnabled != 0 {
			client.reactivelyFragment(b, id, uint64(len(body)-len(b.Payload)))
		}
		client.reportBroken(werr)
		return werr
	}

	if waiter == nil {
		return nil
	}

	for {
		select {
		case <-waiter:
			client.ackMu.Lock()
			acked := client.ackedSoFar[id]
			client.ackMu.Unlock()
			if acked >= uint64(len(body)) {
				return nil
			}
		case <-client.stopSyn:
			return fmt.Errorf("tcpcl: session closed while waiting for BUNDLE_ACK")
		}
	}
}

// writeBundleData writes the BUNDLE_DATA header and body in bounded chunks,
// returning the number of body bytes actually written before any error.
func (client *Client) writeBundleData(id uint64, body []byte) (sent uint64, err error) {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()

	if err = writeBundleDataHeader(client.conn, id, uint64(len(body))); err != nil {
		return 0, err
	}

	for sent < uint64(len(body)) {
		end := sent + sendChunk
		if end > uint64(len(body)) {
			end = uint64(len(body))
		}
		n, werr := client.conn.Write(body[sent:end])
		sent += uint64(n)
		if werr != nil {
			return sent, werr
		}
	}
	return sent, nil
}

// reactivelyFragment converts the unacknowledged remainder of b into a
// fragment and reports it via reportChan so the caller can re-enqueue it on
// the Link. payloadStart is the offset of the payload data within the
// serialized bundle, whose bytes the BUNDLE_ACK counts refer to.
func (client *Client) reactivelyFragment(b bundle.Bundle, id, payloadStart uint64) {
	client.ackMu.Lock()
	acked := client.ackedSoFar[id]
	client.ackMu.Unlock()

	var ackedPayload uint64
	if acked > payloadStart {
		ackedPayload = acked - payloadStart
	}

	remainder, ok, err := bundle.ReactivelyFragment(b, ackedPayload)
	if err != nil || !ok {
		return
	}

	select {
	case client.reportChan <- cla.NewConvergenceReactiveFragment(client, remainder):
	default:
	}
}

func (client *Client) reportBroken(err error) {
	client.log().WithError(err).Warn("TCPCL transport broken")
	select {
	case client.reportChan <- cla.NewConvergencePeerDisappeared(client, client.peerEID):
	default:
	}
	go client.Close()
}

func (client *Client) keepaliveLoop() {
	if client.negotiated.KeepaliveInterval == 0 {
		return
	}

	interval := time.Duration(client.negotiated.KeepaliveInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-client.stopSyn:
			return

		case <-ticker.C:
			if last, _ := client.lastRecv.Load().(time.Time); time.Since(last) > 2*interval {
				client.reportBroken(fmt.Errorf("tcpcl: no data received for %v", 2*interval))
				return
			}

			client.writeMu.Lock()
			err := KeepaliveMessage{}.Marshal(client.conn)
			client.writeMu.Unlock()
			if err != nil {
				client.reportBroken(err)
				return
			}
		}
	}
}

func (client *Client) readLoop() {
	for {
		select {
		case <-client.stopSyn:
			return
		default:
		}

		typeByte, err := client.reader.Peek(1)
		if err != nil {
			client.reportBroken(err)
			return
		}
		client.lastRecv.Store(time.Now())

		if typeByte[0] == BUNDLE_DATA {
			if _, err := client.reader.Discard(1); err != nil {
				client.reportBroken(err)
				return
			}
			if err := client.handleBundleData(); err != nil {
				client.reportBroken(err)
				return
			}
			continue
		}

		msg, err := ReadMessage(client.reader)
		if err != nil {
			client.reportBroken(err)
			return
		}

		switch m := msg.(type) {
		case *BundleAckMessage:
			client.ackMu.Lock()
			client.ackedSoFar[m.BundleID] = m.Acked
			if waiter, ok := client.ackWaiters[m.BundleID]; ok {
				select {
				case waiter <- m.Acked:
				default:
				}
			}
			client.ackMu.Unlock()

		case *KeepaliveMessage:
			// liveness only; lastRecv already updated above.

		case *ShutdownMessage:
			client.log().Info("peer sent advisory SHUTDOWN")
			select {
			case client.reportChan <- cla.NewConvergencePeerDisappeared(client, client.peerEID):
			default:
			}
			go client.Close()
			return
		}
	}
}

// handleBundleData reads one BUNDLE_DATA body, sending BUNDLE_ACKs every
// negotiated.PartialAckLen bytes and decoding the accumulated bytes into a
// Bundle once the declared length is reached.
func (client *Client) handleBundleData() error {
	bundleID, length, err := readBundleDataHeader(client.reader)
	if err != nil {
		return err
	}

	body := make([]byte, 0, length)
	var sinceAck uint64

	for uint64(len(body)) < length {
		remaining := length - uint64(len(body))
		chunkSize := uint64(sendChunk)
		if remaining < chunkSize {
			chunkSize = remaining
		}

		chunk := make([]byte, chunkSize)
		n, rerr := io.ReadFull(client.reader, chunk)
		body = append(body, chunk[:n]...)
		if rerr != nil {
			return rerr
		}

		sinceAck += uint64(n)
		if client.negotiated.PartialAckLen > 0 && sinceAck >= client.negotiated.PartialAckLen {
			if werr := client.sendAck(bundleID, uint64(len(body))); werr != nil {
				return werr
			}
			sinceAck = 0
		}
	}

	if client.negotiated.Flags&BundleAckEnabled != 0 {
		if werr := client.sendAck(bundleID, uint64(len(body))); werr != nil {
			return werr
		}
	}

	decoder := bundle.NewBundleDecoder()
	if _, done, derr := decoder.Feed(body); derr != nil {
		return fmt.Errorf("tcpcl: decoding received bundle: %w", derr)
	} else if !done {
		return fmt.Errorf("tcpcl: received bundle body did not decode to a complete bundle")
	}

	recvd := decoder.Bundle()
	client.reportChan <- cla.NewConvergenceReceivedBundle(client, client.localEID, recvd)

	select {
	case client.bundleChan <- cla.NewRecBundle(recvd, client.localEID):
	default:
	}

	return nil
}

func (client *Client) sendAck(bundleID, acked uint64) error {
	client.writeMu.Lock()
	defer client.writeMu.Unlock()
	return BundleAckMessage{BundleID: bundleID, Acked: acked}.Marshal(client.conn)
}
