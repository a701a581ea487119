// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

// BlockType identifies a canonical block's processor.
type BlockType uint8

const (
	// BlockTypePayload carries the bundle's application data.
	BlockTypePayload BlockType = 1
	// BlockTypeBundleAuthentication carries a security signature over the bundle.
	BlockTypeBundleAuthentication BlockType = 2
	// BlockTypePayloadSecurity carries payload confidentiality data.
	BlockTypePayloadSecurity BlockType = 3
	// BlockTypeExtensionSecurity carries confidentiality data for another extension block.
	BlockTypeExtensionSecurity BlockType = 4
	// BlockTypeConfidentiality carries whole-bundle confidentiality data.
	BlockTypeConfidentiality BlockType = 5
	// BlockTypePreviousHop records the EID of the node that forwarded the bundle here.
	BlockTypePreviousHop BlockType = 6
)

// BlockInfo is one element of a Bundle's ordered block list: an owning
// processor, the raw preamble+data bytes, and streaming-parse bookkeeping.
type BlockInfo struct {
	// BlockType is the 8-bit type code from the preamble.
	BlockType BlockType

	// Flags are the preamble's per-block control flags.
	Flags BlockControlFlags

	// Buffer holds the exact on-wire bytes for a received block, or the
	// bytes ready for transmission for a generated one.
	Buffer []byte

	// DataOffset is the offset within Buffer where the block's data begins,
	// i.e. just past the preamble.
	DataOffset int

	// DataLen is the declared length of the data region, read from the
	// preamble's SDNV data-length field.
	DataLen int

	// Complete is set once consume has received DataLen bytes of data
	// following a fully-parsed preamble.
	Complete bool

	// processor is cached by the registry once the BlockType is known; it
	// is not exported since it is a runtime handle, not wire state.
	processor BlockProcessor
}

// Data returns the block's data region (past the preamble).
func (bi *BlockInfo) Data() []byte {
	if bi.DataOffset > len(bi.Buffer) {
		return nil
	}
	return bi.Buffer[bi.DataOffset:]
}

// newBlockInfo creates a BlockInfo to hold a to-be-generated block.
func newBlockInfo(blockType BlockType, flags BlockControlFlags) *BlockInfo {
	return &BlockInfo{BlockType: blockType, Flags: flags}
}
