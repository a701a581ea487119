// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/howeyc/crc16"
)

var crc16table = crc16.MakeTable(crc16.CCITT)

// KeepaliveMessage is an idle-session heartbeat. Its CRC16
// trailer is a local sanity check, not part of the wire contract other
// TCPCL peers rely on.
type KeepaliveMessage struct{}

func (KeepaliveMessage) String() string { return "KEEPALIVE" }

func (KeepaliveMessage) Marshal(w io.Writer) error {
	buf := []byte{KEEPALIVE, 0, 0}
	binary.BigEndian.PutUint16(buf[1:], crc16.Checksum(buf[:1], crc16table))

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("tcpcl: wrote %d of %d KEEPALIVE octets", n, len(buf))
	}
	return nil
}

func (km *KeepaliveMessage) Unmarshal(r io.Reader) error {
	buf := make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if buf[0] != KEEPALIVE {
		return fmt.Errorf("tcpcl: expected KEEPALIVE typecode %#x, got %#x", KEEPALIVE, buf[0])
	}

	want := crc16.Checksum(buf[:1], crc16table)
	if got := binary.BigEndian.Uint16(buf[1:]); got != want {
		return fmt.Errorf("tcpcl: KEEPALIVE crc16 mismatch: got %#x want %#x", got, want)
	}
	return nil
}
