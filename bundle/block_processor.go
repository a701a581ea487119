// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"sync"
)

// StatusReportReason is carried in status/deletion reports.
type StatusReportReason uint8

const (
	ReasonNoInformation StatusReportReason = iota
	ReasonLifetimeExpired
	ReasonForwardUnidirectional
	ReasonTransmissionCancelled
	ReasonDepletedStorage
	ReasonDestinationUnintelligible
	ReasonNoKnownRoute
	ReasonNoTimelyContact
	ReasonBlockUnintelligible
)

// ReceptionReason narrows the "receive" status report per
// status-report-request flags.
type ReceptionReason = StatusReportReason

// BlockProcessor defines the five operations every block type
// supports: consume (streaming parse), validate, prepare (insert
// into an outgoing block list), generate (serialise), and finalize
// (optional second pass, e.g. for signatures).
type BlockProcessor interface {
	// Consume is called repeatedly with successive chunks of wire bytes
	// until block.Complete. It returns the number of bytes consumed from
	// chunk, or an error. It may be called with chunks that split the
	// preamble itself.
	Consume(bndl *Bundle, block *BlockInfo, chunk []byte) (consumed int, err error)

	// Validate is invoked once after the block is fully consumed. ok is
	// false if the bundle (or just this block, per the block's flags)
	// should be dropped; deletionReason/receptionReason explain why.
	Validate(bndl *Bundle, blocks []*BlockInfo, block *BlockInfo) (ok bool, deletionReason StatusReportReason, receptionReason ReceptionReason)

	// Prepare inserts a new BlockInfo into outgoing, optionally copying
	// from source (a block received on a bundle being forwarded).
	Prepare(bndl *Bundle, outgoing *[]*BlockInfo, source *BlockInfo, link LinkContext) error

	// Generate fills block.Buffer (preamble + data), honouring isLast for
	// the last-block flag.
	Generate(bndl *Bundle, outgoing []*BlockInfo, block *BlockInfo, link LinkContext, isLast bool) error

	// Finalize runs a second pass over block, e.g. to compute a signature
	// once every other block's bytes are final. Processors without a
	// second pass may implement this as a no-op.
	Finalize(bndl *Bundle, outgoing []*BlockInfo, block *BlockInfo, link LinkContext) error
}

// LinkContext is the minimal view of an outbound link a BlockProcessor
// needs to generate link-dependent blocks (e.g. PreviousHopBlock). It is
// satisfied by link.Link without bundle importing the link package.
type LinkContext interface {
	LocalEndpointID() EndpointID
}

type blockRegistry struct {
	mutex sync.RWMutex
	processors map[BlockType]BlockProcessor
}

var registry = &blockRegistry{processors: make(map[BlockType]BlockProcessor)}

// RegisterBlockProcessor associates a BlockProcessor with a block type. The
// primary block has no type code of its own (it is always first and
// implicit) and is handled outside this registry.
func RegisterBlockProcessor(t BlockType, bp BlockProcessor) {
	registry.mutex.Lock()
	defer registry.mutex.Unlock()
	registry.processors[t] = bp
}

// GetBlockProcessor returns the processor registered for t, or
// unknownBlockProcessor if none is registered -- unknown block types must
// still round-trip verbatim.
func GetBlockProcessor(t BlockType) BlockProcessor {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	if bp, ok := registry.processors[t]; ok {
		return bp
	}
	return unknownBlockProcessor{}
}

func init() {
	RegisterBlockProcessor(BlockTypePayload, payloadBlockProcessor{})
	RegisterBlockProcessor(BlockTypePreviousHop, previousHopBlockProcessor{})
	// The four security block types are registered in security_processors.go.
}

// errPreambleIncomplete is a sentinel used internally by processors' Consume
// implementations to signal that more bytes are required before the
// preamble itself can be parsed.
var errPreambleIncomplete = fmt.Errorf("bundle: block preamble incomplete")

// errBlockUnintelligible is wrapped into parse errors that should be
// reported with StatusReportReason ReasonBlockUnintelligible.
var errBlockUnintelligible = fmt.Errorf("bundle: block unintelligible")
