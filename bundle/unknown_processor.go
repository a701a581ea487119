// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// unknownBlockProcessor preserves bytes verbatim for any block type with no
// registered processor. On generate it copies the received
// bytes exactly except for resetting the last-block flag and setting
// ForwardedWithoutProcessing.
type unknownBlockProcessor struct{}

func (unknownBlockProcessor) Consume(_ *Bundle, block *BlockInfo, chunk []byte) (int, error) {
	return genericConsume(block, chunk)
}

func (unknownBlockProcessor) Validate(_ *Bundle, _ []*BlockInfo, block *BlockInfo) (bool, StatusReportReason, ReceptionReason) {
	switch {
	case block.Flags.Has(DeleteBundleOnError):
		return false, ReasonBlockUnintelligible, ReasonBlockUnintelligible
	case block.Flags.Has(DiscardBlockOnError):
		// The bundle survives; only this block is dropped. The caller
		// (the receive pipeline) is responsible for excising the block
		// from the bundle's block list when ok is reported alongside a
		// non-fatal reason; unknownBlockProcessor signals that by still
		// returning ok=true here and leaving removal to the pipeline's
		// report-on-error handling via the reception reason.
		return true, ReasonNoInformation, ReasonBlockUnintelligible
	default:
		return true, ReasonNoInformation, ReasonNoInformation
	}
}

func (unknownBlockProcessor) Prepare(_ *Bundle, outgoing *[]*BlockInfo, source *BlockInfo, _ LinkContext) error {
	bi := newBlockInfo(source.BlockType, source.Flags)
	bi.Buffer = append([]byte{}, source.Buffer...)
	bi.DataOffset = source.DataOffset
	bi.DataLen = source.DataLen
	bi.Complete = true
	*outgoing = append(*outgoing, bi)
	return nil
}

func (unknownBlockProcessor) Generate(_ *Bundle, _ []*BlockInfo, block *BlockInfo, _ LinkContext, isLast bool) error {
	flags := (block.Flags &^ LastBlock) | ForwardedWithoutProcessing
	if isLast {
		flags |= LastBlock
	}

	data := block.Data()
	buf := writePreamble(nil, block.BlockType, flags, len(data))
	block.Flags = flags
	block.DataOffset = len(buf)
	block.DataLen = len(data)
	block.Buffer = append(buf, data...)
	block.Complete = true
	return nil
}

func (unknownBlockProcessor) Finalize(*Bundle, []*BlockInfo, *BlockInfo, LinkContext) error {
	return nil
}
