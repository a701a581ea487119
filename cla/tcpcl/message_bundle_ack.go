// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"fmt"
	"io"

	"github.com/dtn-go/bpagent/sdnv"
)

// BundleAckMessage acknowledges cumulative bytes received for one
// in-progress bundle transfer.
type BundleAckMessage struct {
	BundleID uint64
	Acked uint64
}

func (ba BundleAckMessage) String() string {
	return fmt.Sprintf("BUNDLE_ACK(id=%d, acked=%d)", ba.BundleID, ba.Acked)
}

func (ba BundleAckMessage) Marshal(w io.Writer) error {
	buf := []byte{BUNDLE_ACK}
	buf = append(buf, sdnv.Marshal(ba.BundleID)...)
	buf = append(buf, sdnv.Marshal(ba.Acked)...)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("tcpcl: wrote %d of %d BUNDLE_ACK octets", n, len(buf))
	}
	return nil
}

func (ba *BundleAckMessage) Unmarshal(r io.Reader) error {
	typeByte := make([]byte, 1)
	if _, err := io.ReadFull(r, typeByte); err != nil {
		return err
	}
	if typeByte[0] != BUNDLE_ACK {
		return fmt.Errorf("tcpcl: expected BUNDLE_ACK typecode %#x, got %#x", BUNDLE_ACK, typeByte[0])
	}

	id, err := readSdnv(r)
	if err != nil {
		return fmt.Errorf("tcpcl: BUNDLE_ACK bundle id: %w", err)
	}
	acked, err := readSdnv(r)
	if err != nil {
		return fmt.Errorf("tcpcl: BUNDLE_ACK acked length: %w", err)
	}

	ba.BundleID = id
	ba.Acked = acked
	return nil
}

// readSdnv decodes one SDNV from r, one byte at a time, since its length is
// not known up front.
func readSdnv(r io.Reader) (uint64, error) {
	var buf []byte
	one := make([]byte, 1)
	for {
		if _, err := io.ReadFull(r, one); err != nil {
			return 0, err
		}
		buf = append(buf, one[0])
		if v, _, err := sdnv.Decode(buf); err == nil {
			return v, nil
		} else if err != sdnv.ErrIncomplete {
			return 0, err
		}
	}
}
