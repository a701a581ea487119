// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"

	"github.com/dtn-go/bpagent/sdnv"
)

// maxPreambleScratch bounds the amount of buffering a processor needs
// before it can determine a block's total preamble length: 1 byte of
// block type plus two SDNVs of at most sdnv.MaxLen bytes each.
const maxPreambleScratch = 1 + 2*sdnv.MaxLen

// writePreamble appends a block preamble (type, flags, data length) to buf
// and returns the result.
func writePreamble(buf []byte, t BlockType, flags BlockControlFlags, dataLen int) []byte {
	buf = append(buf, byte(t))
	buf = append(buf, sdnv.Marshal(uint64(flags))...)
	buf = append(buf, sdnv.Marshal(uint64(dataLen))...)
	return buf
}

// decodePreamble parses a block preamble from the front of buf. It returns
// the parsed fields and the number of bytes the preamble occupied. If buf
// does not yet hold a complete preamble it returns errPreambleIncomplete
// and the caller should accumulate more bytes before retrying -- no state
// is mutated on an incomplete parse.
func decodePreamble(buf []byte) (t BlockType, flags BlockControlFlags, dataLen int, n int, err error) {
	if len(buf) < 1 {
		return 0, 0, 0, 0, errPreambleIncomplete
	}
	t = BlockType(buf[0])
	off := 1

	flagsVal, consumed, derr := sdnv.Decode(buf[off:])
	if derr != nil {
		if derr == sdnv.ErrIncomplete {
			return 0, 0, 0, 0, errPreambleIncomplete
		}
		return 0, 0, 0, 0, fmt.Errorf("bundle: block flags SDNV: %w", derr)
	}
	off += consumed

	lenVal, consumed, derr := sdnv.Decode(buf[off:])
	if derr != nil {
		if derr == sdnv.ErrIncomplete {
			return 0, 0, 0, 0, errPreambleIncomplete
		}
		return 0, 0, 0, 0, fmt.Errorf("bundle: block data-length SDNV: %w", derr)
	}
	off += consumed

	return t, BlockControlFlags(flagsVal), int(lenVal), off, nil
}

// genericConsume implements the Consume contract shared by every
// non-payload, non-primary block processor: Buffer grows monotonically as
// chunks arrive, preamble bytes and data bytes alike; once enough bytes
// are present the preamble is decoded in place (DataOffset/DataLen/Flags
// are cached so later calls skip straight to filling the data region).
func genericConsume(block *BlockInfo, chunk []byte) (consumed int, err error) {
	total := len(chunk)

	if block.DataOffset == 0 {
		need := maxPreambleScratch - len(block.Buffer)
		if need < 0 {
			return 0, fmt.Errorf("bundle: block preamble exceeds scratch bound")
		}
		if need > len(chunk) {
			need = len(chunk)
		}
		block.Buffer = append(block.Buffer, chunk[:need]...)
		chunk = chunk[need:]

		_, flags, dataLen, n, perr := decodePreamble(block.Buffer)
		if perr == errPreambleIncomplete {
			return total - len(chunk), nil
		} else if perr != nil {
			return total - len(chunk), perr
		}

		block.Flags = flags
		block.DataLen = dataLen
		block.DataOffset = n

		// Scratch bytes past the end of this block belong to the next one.
		if end := n + dataLen; len(block.Buffer) > end {
			excess := len(block.Buffer) - end
			block.Buffer = block.Buffer[:end]
			block.Complete = true
			return total - len(chunk) - excess, nil
		}
	}

	remaining := block.DataOffset + block.DataLen - len(block.Buffer)
	if remaining > 0 {
		take := remaining
		if take > len(chunk) {
			take = len(chunk)
		}
		block.Buffer = append(block.Buffer, chunk[:take]...)
		chunk = chunk[take:]
	}

	if len(block.Buffer) >= block.DataOffset+block.DataLen {
		block.Complete = true
	}

	return total - len(chunk), nil
}
