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

// ShutdownMessage is an advisory announcement that the sender is about to
// close the transport. Bytes already in flight ahead of it
// remain valid; receipt is not an acknowledgement of anything.
type ShutdownMessage struct{}

func (ShutdownMessage) String() string { return "SHUTDOWN" }

func (ShutdownMessage) Marshal(w io.Writer) error {
	buf := []byte{SHUTDOWN, 0, 0}
	binary.BigEndian.PutUint16(buf[1:], crc16.Checksum(buf[:1], crc16table))

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("tcpcl: wrote %d of %d SHUTDOWN octets", n, len(buf))
	}
	return nil
}

func (sm *ShutdownMessage) Unmarshal(r io.Reader) error {
	buf := make([]byte, 3)
	if _, err := io.ReadFull(r, buf); err != nil {
		return err
	}
	if buf[0] != SHUTDOWN {
		return fmt.Errorf("tcpcl: expected SHUTDOWN typecode %#x, got %#x", SHUTDOWN, buf[0])
	}

	want := crc16.Checksum(buf[:1], crc16table)
	if got := binary.BigEndian.Uint16(buf[1:]); got != want {
		return fmt.Errorf("tcpcl: SHUTDOWN crc16 mismatch: got %#x want %#x", got, want)
	}
	return nil
}
