// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// previousHopBlockProcessor implements the previous-hop extension block:
// its data is the URI string of the node that last forwarded the bundle,
// used by the routing engine to suppress sending a bundle back the way it
// came.
type previousHopBlockProcessor struct{}

func (previousHopBlockProcessor) Consume(bndl *Bundle, block *BlockInfo, chunk []byte) (int, error) {
	n, err := genericConsume(block, chunk)
	if err != nil {
		return n, err
	}
	if block.Complete {
		if eid, eerr := NewEndpointID(string(block.Data())); eerr == nil {
			bndl.PreviousNode = eid
		}
	}
	return n, nil
}

func (previousHopBlockProcessor) Validate(*Bundle, []*BlockInfo, *BlockInfo) (bool, StatusReportReason, ReceptionReason) {
	return true, ReasonNoInformation, ReasonNoInformation
}

func (previousHopBlockProcessor) Prepare(bndl *Bundle, outgoing *[]*BlockInfo, source *BlockInfo, _ LinkContext) error {
	*outgoing = append(*outgoing, newBlockInfo(BlockTypePreviousHop, 0))
	return nil
}

func (previousHopBlockProcessor) Generate(bndl *Bundle, _ []*BlockInfo, block *BlockInfo, link LinkContext, isLast bool) error {
	flags := block.Flags
	if isLast {
		flags |= LastBlock
	}
	data := []byte(link.LocalEndpointID().String())
	buf := writePreamble(nil, BlockTypePreviousHop, flags, len(data))
	block.Flags = flags
	block.DataOffset = len(buf)
	block.DataLen = len(data)
	block.Buffer = append(buf, data...)
	block.Complete = true
	return nil
}

func (previousHopBlockProcessor) Finalize(*Bundle, []*BlockInfo, *BlockInfo, LinkContext) error {
	return nil
}
