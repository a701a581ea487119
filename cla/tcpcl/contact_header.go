// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package tcpcl implements a connection-oriented, TCP-style convergence
// layer: a contact header handshake followed by a framed exchange of
// BUNDLE_DATA, BUNDLE_ACK, KEEPALIVE and SHUTDOWN messages.
package tcpcl

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/dtn-go/bpagent/sdnv"
)

// magic is the fixed 32-bit value "dtn!" opening every contact header.
const magic uint32 = 0x64746e21

// version is the only protocol version this package speaks.
const version uint8 = 3

// ContactFlags are single-bit capability flags negotiated by logical AND.
type ContactFlags uint8

const (
	// BundleAckEnabled indicates the peer will send BUNDLE_ACK messages.
	BundleAckEnabled ContactFlags = 1 << iota
	// ReactiveFragEnabled indicates the peer accepts reactively fragmented
	// continuations after a broken transport.
	ReactiveFragEnabled
	// ReceiverConnect indicates the peer allows being connected-to in order
	// to receive, without itself ever acting as a sender.
	ReceiverConnect
)

func (cf ContactFlags) String() string {
	var flags []string
	if cf&BundleAckEnabled != 0 {
		flags = append(flags, "BUNDLE_ACK_ENABLED")
	}
	if cf&ReactiveFragEnabled != 0 {
		flags = append(flags, "REACTIVE_FRAG_ENABLED")
	}
	if cf&ReceiverConnect != 0 {
		flags = append(flags, "RECEIVER_CONNECT")
	}
	return strings.Join(flags, ",")
}

// ContactHeader is exchanged by both peers immediately after the transport
// is established.
type ContactHeader struct {
	Flags ContactFlags
	KeepaliveInterval uint16
	PartialAckLen uint64
}

// NewContactHeader creates a ContactHeader with the given negotiable fields.
func NewContactHeader(flags ContactFlags, keepalive uint16, partialAckLen uint64) ContactHeader {
	return ContactHeader{Flags: flags, KeepaliveInterval: keepalive, PartialAckLen: partialAckLen}
}

func (ch ContactHeader) String() string {
	return fmt.Sprintf("ContactHeader(version=%d, flags=%v, keepalive=%ds, partial_ack_len=%d)",
		version, ch.Flags, ch.KeepaliveInterval, ch.PartialAckLen)
}

// Marshal writes the byte-exact contact header wire encoding.
func (ch ContactHeader) Marshal(w io.Writer) error {
	head := make([]byte, 4+1+1+2)
	binary.BigEndian.PutUint32(head[0:4], magic)
	head[4] = version
	head[5] = byte(ch.Flags)
	binary.BigEndian.PutUint16(head[6:8], ch.KeepaliveInterval)

	buf := append(head, sdnv.Marshal(ch.PartialAckLen)...)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("tcpcl: wrote %d of %d contact header octets", n, len(buf))
	}
	return nil
}

// Unmarshal reads a contact header from r, rejecting wrong magic or an
// unsupported version with no bundle exchange attempted.
func (ch *ContactHeader) Unmarshal(r io.Reader) error {
	head := make([]byte, 4+1+1+2)
	if _, err := io.ReadFull(r, head); err != nil {
		return err
	}

	if got := binary.BigEndian.Uint32(head[0:4]); got != magic {
		return fmt.Errorf("tcpcl: contact header magic %#x does not match %#x", got, magic)
	}
	if head[4] != version {
		return fmt.Errorf("tcpcl: contact header version %d, only %d is supported", head[4], version)
	}

	ch.Flags = ContactFlags(head[5])
	ch.KeepaliveInterval = binary.BigEndian.Uint16(head[6:8])

	partialAckLen, err := readSdnv(r)
	if err != nil {
		return err
	}
	ch.PartialAckLen = partialAckLen

	return nil
}

// negotiate combines a locally offered header with the peer's header:
// MIN on numeric fields, logical AND on flags.
func negotiate(local, remote ContactHeader) ContactHeader {
	keepalive := local.KeepaliveInterval
	if remote.KeepaliveInterval < keepalive {
		keepalive = remote.KeepaliveInterval
	}

	partialAck := local.PartialAckLen
	if remote.PartialAckLen < partialAck {
		partialAck = remote.PartialAckLen
	}

	return ContactHeader{
		Flags: local.Flags & remote.Flags,
		KeepaliveInterval: keepalive,
		PartialAckLen: partialAck,
	}
}
