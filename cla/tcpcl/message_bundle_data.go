// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"fmt"
	"io"

	"github.com/dtn-go/bpagent/sdnv"
)

// writeBundleDataHeader writes the BUNDLE_DATA typecode, the sender-local
// bundle id and the SDNV total length preceding the serialised bundle
// bytes.
func writeBundleDataHeader(w io.Writer, bundleID, length uint64) error {
	buf := []byte{BUNDLE_DATA}
	buf = append(buf, sdnv.Marshal(bundleID)...)
	buf = append(buf, sdnv.Marshal(length)...)

	n, err := w.Write(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return fmt.Errorf("tcpcl: wrote %d of %d BUNDLE_DATA header octets", n, len(buf))
	}
	return nil
}

// readBundleDataHeader reads a BUNDLE_DATA typecode already known to be
// present (the caller peeked it) followed by the sender-local bundle id
// and SDNV total length. The body itself is left for the caller to stream
// so partial-acks can be interleaved.
func readBundleDataHeader(r io.Reader) (bundleID, length uint64, err error) {
	bundleID, err = readSdnv(r)
	if err != nil {
		return 0, 0, fmt.Errorf("tcpcl: BUNDLE_DATA bundle id: %w", err)
	}
	length, err = readSdnv(r)
	if err != nil {
		return 0, 0, fmt.Errorf("tcpcl: BUNDLE_DATA length: %w", err)
	}
	return bundleID, length, nil
}
