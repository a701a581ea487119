// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// payloadBlockProcessor implements the payload block. Unlike
// every other block, Consume streams received bytes straight into the
// bundle's payload rather than accumulating them in block.Buffer -- there
// is no point double-buffering the one block that can be arbitrarily
// large.
type payloadBlockProcessor struct{}

func (payloadBlockProcessor) Consume(bndl *Bundle, block *BlockInfo, chunk []byte) (int, error) {
	total := len(chunk)

	if block.DataOffset == 0 {
		need := maxPreambleScratch - len(block.Buffer)
		if need < 0 {
			return 0, errPreambleIncomplete
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

		// Any data bytes that rode along in the preamble scratch buffer
		// already belong in the payload, not in block.Buffer.
		if overrun := block.Buffer[n:]; len(overrun) > 0 {
			bndl.Payload = append(bndl.Payload, overrun...)
			block.Buffer = block.Buffer[:n]
		}
	}

	remaining := block.DataLen - len(bndl.Payload)
	if remaining > 0 {
		take := remaining
		if take > len(chunk) {
			take = len(chunk)
		}
		bndl.Payload = append(bndl.Payload, chunk[:take]...)
		chunk = chunk[take:]
	}

	if len(bndl.Payload) >= block.DataLen {
		block.Complete = true
	}

	return total - len(chunk), nil
}

func (payloadBlockProcessor) Validate(bndl *Bundle, _ []*BlockInfo, block *BlockInfo) (bool, StatusReportReason, ReceptionReason) {
	if block.DataLen != len(bndl.Payload) && !bndl.PrimaryBlock.BundleControlFlags.Has(IsFragment) {
		return false, ReasonBlockUnintelligible, ReasonBlockUnintelligible
	}
	return true, ReasonNoInformation, ReasonNoInformation
}

func (payloadBlockProcessor) Prepare(bndl *Bundle, outgoing *[]*BlockInfo, source *BlockInfo, _ LinkContext) error {
	bi := newBlockInfo(BlockTypePayload, 0)
	if source != nil {
		bi.Flags = source.Flags
	}
	// The payload block is always last among blocks without later
	// insertions; Bundle.rebuildBlockList enforces ordering, so a naive
	// append here is fine.
	*outgoing = append(*outgoing, bi)
	return nil
}

func (payloadBlockProcessor) Generate(bndl *Bundle, _ []*BlockInfo, block *BlockInfo, _ LinkContext, isLast bool) error {
	flags := block.Flags
	if isLast {
		flags |= LastBlock
	} else {
		flags &^= LastBlock
	}
	block.Flags = flags

	buf := writePreamble(nil, BlockTypePayload, flags, len(bndl.Payload))
	block.DataOffset = len(buf)
	block.DataLen = len(bndl.Payload)
	block.Buffer = append(buf, bndl.Payload...)
	block.Complete = true
	return nil
}

func (payloadBlockProcessor) Finalize(*Bundle, []*BlockInfo, *BlockInfo, LinkContext) error {
	return nil
}
