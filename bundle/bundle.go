// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Bundle is a primary block plus its ordered canonical blocks and payload.
type Bundle struct {
	PrimaryBlock PrimaryBlock
	CanonicalBlocks []*BlockInfo
	Payload []byte

	// PreviousNode is set by previousHopBlockProcessor.Consume when a
	// previous-hop extension block is present on a received bundle.
	PreviousNode EndpointID
}

// NewBundle creates a Bundle from a primary block, payload and any extra
// canonical blocks (the payload block is added automatically and need not
// be passed in; a previous-hop block is only present if passed in extra).
func NewBundle(primary PrimaryBlock, payload []byte, extra ...*BlockInfo) (b Bundle, err error) {
	b = Bundle{PrimaryBlock: primary, Payload: payload}
	b.CanonicalBlocks = append(b.CanonicalBlocks, newBlockInfo(BlockTypePayload, 0))
	b.CanonicalBlocks = append(b.CanonicalBlocks, extra...)
	b.rebuildBlockList()

	err = b.checkValid()
	return
}

// rebuildBlockList enforces the block ordering invariant: the payload
// block is always last, regardless of the order blocks were appended in.
func (b *Bundle) rebuildBlockList() {
	var payload *BlockInfo
	others := make([]*BlockInfo, 0, len(b.CanonicalBlocks))

	for _, bi := range b.CanonicalBlocks {
		if bi.BlockType == BlockTypePayload {
			payload = bi
			continue
		}
		others = append(others, bi)
	}

	if payload == nil {
		payload = newBlockInfo(BlockTypePayload, 0)
	}

	b.CanonicalBlocks = append(others, payload)
}

// ID returns a stable identifier for this bundle: source node, creation
// timestamp, and (for a fragment) the fragment offset and original length.
func (b Bundle) ID() BundleID {
	pb := b.PrimaryBlock
	return BundleID{
		SourceNode: pb.SourceNode,
		Timestamp: pb.CreationTimestamp,
		IsFragment: pb.HasFragmentation(),
		FragmentOffset: pb.FragmentOffset,
		TotalDataLength: pb.TotalApplicationLen,
	}
}

func (b Bundle) String() string {
	return b.ID().String()
}

// IsAdministrativeRecord reports whether this bundle's payload carries a
// status report or custody signal rather than application data.
func (b Bundle) IsAdministrativeRecord() bool {
	return b.PrimaryBlock.BundleControlFlags.Has(AdministrativeRecordPayload)
}

// ExtensionBlock returns the first canonical block of the given type, or
// an error if none is present.
func (b *Bundle) ExtensionBlock(t BlockType) (*BlockInfo, error) {
	for _, bi := range b.CanonicalBlocks {
		if bi.BlockType == t {
			return bi, nil
		}
	}
	return nil, newBundleError(fmt.Sprintf("bundle: no block of type %d present", t))
}

// PayloadBlock returns this bundle's payload block.
func (b *Bundle) PayloadBlock() (*BlockInfo, error) {
	return b.ExtensionBlock(BlockTypePayload)
}

// AddExtensionBlock appends block, keeping the payload block last.
func (b *Bundle) AddExtensionBlock(block *BlockInfo) {
	b.CanonicalBlocks = append(b.CanonicalBlocks, block)
	b.rebuildBlockList()
}

func (b Bundle) checkValid() (errs error) {
	if err := b.PrimaryBlock.BundleControlFlags.checkValid(); err != nil {
		errs = multierror.Append(errs, err)
	}

	if b.PrimaryBlock.HasFragmentation() {
		if b.PrimaryBlock.FragmentOffset+uint64(len(b.Payload)) > b.PrimaryBlock.TotalApplicationLen {
			errs = multierror.Append(errs, newBundleError(
				"bundle: fragment offset plus payload length exceeds the original length"))
		}
	}

	seenPayload := false
	for _, bi := range b.CanonicalBlocks {
		if bi.BlockType == BlockTypePayload {
			if seenPayload {
				errs = multierror.Append(errs, newBundleError("bundle: multiple payload blocks present"))
			}
			seenPayload = true
		}
	}
	if len(b.CanonicalBlocks) > 0 && b.CanonicalBlocks[len(b.CanonicalBlocks)-1].BlockType != BlockTypePayload {
		errs = multierror.Append(errs, newBundleError("bundle: payload block is not last"))
	}

	return
}

// MarshalBundle serialises a complete bundle: the primary block followed
// by each canonical block in order, link supplying the local endpoint ID
// for link-dependent blocks such as the previous-hop block.
func MarshalBundle(b *Bundle, link LinkContext) ([]byte, error) {
	out := MarshalPrimaryBlock(b.PrimaryBlock)

	b.rebuildBlockList()

	for i, bi := range b.CanonicalBlocks {
		isLast := i == len(b.CanonicalBlocks)-1
		proc := GetBlockProcessor(bi.BlockType)
		if err := proc.Generate(b, b.CanonicalBlocks, bi, link, isLast); err != nil {
			return nil, fmt.Errorf("bundle: generating block type %d: %w", bi.BlockType, err)
		}
		out = append(out, bi.Buffer...)
	}

	for _, bi := range b.CanonicalBlocks {
		proc := GetBlockProcessor(bi.BlockType)
		if err := proc.Finalize(b, b.CanonicalBlocks, bi, link); err != nil {
			return nil, fmt.Errorf("bundle: finalizing block type %d: %w", bi.BlockType, err)
		}
	}

	return out, nil
}

// decoderState tracks which part of the wire format a BundleDecoder is
// currently consuming.
type decoderState int

const (
	decodingPrimary decoderState = iota
	decodingBlockPreamble
	decodingBlockBody
	decodingDone
)

// BundleDecoder incrementally parses a Bundle from a byte stream, making
// it suitable for convergence layers that deliver data in arbitrarily
// sized chunks.
type BundleDecoder struct {
	state decoderState
	primBuf []byte
	bndl Bundle
	current *BlockInfo
}

// NewBundleDecoder creates an empty decoder.
func NewBundleDecoder() *BundleDecoder {
	return &BundleDecoder{}
}

// Feed consumes as much of chunk as it can, returning the number of bytes
// consumed. Done reports whether a complete bundle has been parsed; once
// Done is true, Bundle returns it.
func (d *BundleDecoder) Feed(chunk []byte) (consumed int, done bool, err error) {
	total := len(chunk)

	if d.state == decodingPrimary {
		d.primBuf = append(d.primBuf, chunk...)
		pb, n, perr := DecodePrimaryBlock(d.primBuf)
		if perr == errPrimaryIncomplete {
			return total, false, nil
		} else if perr != nil {
			return total, false, perr
		}

		overrun := d.primBuf[n:]
		d.primBuf = nil
		d.bndl = Bundle{PrimaryBlock: pb}
		d.state = decodingBlockPreamble
		d.current = newBlockInfo(0, 0)

		consumedHere, bdone, berr := d.feedBlocks(overrun)
		return total - len(overrun) + consumedHere, bdone, berr
	}

	return d.feedBlocks(chunk)
}

// feedBlocks drives block-level Consume calls until chunk is exhausted or
// the bundle is complete (i.e. the most recently consumed block had its
// LastBlock flag set).
func (d *BundleDecoder) feedBlocks(chunk []byte) (consumed int, done bool, err error) {
	total := len(chunk)

	for len(chunk) > 0 {
		if d.current == nil {
			d.current = newBlockInfo(0, 0)
		}

		// Peek the block type byte so we can select a processor before
		// Consume needs to decode the rest of the preamble.
		if len(d.current.Buffer) == 0 && len(chunk) > 0 && d.current.BlockType == 0 {
			d.current.BlockType = BlockType(chunk[0])
		}

		proc := GetBlockProcessor(d.current.BlockType)
		n, cerr := proc.Consume(&d.bndl, d.current, chunk)
		if cerr != nil {
			return total - len(chunk) + n, false, cerr
		}
		chunk = chunk[n:]

		if !d.current.Complete {
			return total - len(chunk), false, nil
		}

		finished := d.current
		d.bndl.CanonicalBlocks = append(d.bndl.CanonicalBlocks, finished)
		d.current = nil

		if finished.Flags.Has(LastBlock) {
			d.state = decodingDone
			return total - len(chunk), true, nil
		}
	}

	return total, false, nil
}

// Bundle returns the fully parsed bundle. Valid only once Feed has
// reported done.
func (d *BundleDecoder) Bundle() Bundle {
	return d.bndl
}
