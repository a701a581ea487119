// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"sort"
	"sync"
)

// CreateFragment builds a single fragment of b covering the payload range
// [offset, offset+length). offset is relative to b, which
// may itself already be a fragment -- the fragment's recorded offset is
// always relative to the original, undivided bundle.
func CreateFragment(b Bundle, offset, length uint64) (Bundle, error) {
	if b.PrimaryBlock.BundleControlFlags.Has(MustNotFragment) {
		return Bundle{}, fmt.Errorf("bundle: control flags forbid fragmentation")
	}
	if offset+length > uint64(len(b.Payload)) {
		return Bundle{}, fmt.Errorf("bundle: fragment range exceeds payload length")
	}

	totalOffset := offset
	totalLength := uint64(len(b.Payload))
	if b.PrimaryBlock.HasFragmentation() {
		totalOffset += b.PrimaryBlock.FragmentOffset
		totalLength = b.PrimaryBlock.TotalApplicationLen
	}

	fragPb := b.PrimaryBlock
	fragPb.BundleControlFlags |= IsFragment
	fragPb.FragmentOffset = totalOffset
	fragPb.TotalApplicationLen = totalLength

	frag := Bundle{
		PrimaryBlock: fragPb,
		Payload: append([]byte{}, b.Payload[offset:offset+length]...),
	}

	for _, bi := range b.CanonicalBlocks {
		if bi.BlockType == BlockTypePayload {
			continue
		}
		if offset > 0 && !bi.Flags.Has(ReplicateBlockInEveryFragment) {
			continue
		}
		copied := newBlockInfo(bi.BlockType, bi.Flags)
		copied.Buffer = append([]byte{}, bi.Data()...)
		copied.DataLen = len(copied.Buffer)
		frag.CanonicalBlocks = append(frag.CanonicalBlocks, copied)
	}
	frag.rebuildBlockList()

	if err := frag.checkValid(); err != nil {
		return Bundle{}, err
	}
	return frag, nil
}

// ProactivelyFragment splits b into a series of fragments, each carrying at
// most maxPayloadLen bytes of payload. If b's payload already
// fits within maxPayloadLen, it is returned unchanged as the sole element.
func ProactivelyFragment(b Bundle, maxPayloadLen uint64) ([]Bundle, error) {
	if b.PrimaryBlock.BundleControlFlags.Has(MustNotFragment) {
		return nil, fmt.Errorf("bundle: control flags forbid fragmentation")
	}

	payloadLen := uint64(len(b.Payload))
	if payloadLen <= maxPayloadLen {
		return []Bundle{b}, nil
	}
	if maxPayloadLen == 0 {
		return nil, fmt.Errorf("bundle: maxPayloadLen must be greater than zero")
	}

	var frags []Bundle
	for off := uint64(0); off < payloadLen; off += maxPayloadLen {
		length := maxPayloadLen
		if off+length > payloadLen {
			length = payloadLen - off
		}
		frag, ferr := CreateFragment(b, off, length)
		if ferr != nil {
			return nil, ferr
		}
		frags = append(frags, frag)
	}
	return frags, nil
}

// ReactivelyFragment takes b, a bundle whose transmission was interrupted
// after sentPayloadLen bytes of its payload data went out, and returns a
// fragment covering the rest of the payload. ok is false when no payload
// bytes remain.
func ReactivelyFragment(b Bundle, sentPayloadLen uint64) (remainder Bundle, ok bool, err error) {
	if sentPayloadLen >= uint64(len(b.Payload)) {
		return Bundle{}, false, nil
	}
	frag, ferr := CreateFragment(b, sentPayloadLen, uint64(len(b.Payload))-sentPayloadLen)
	if ferr != nil {
		return Bundle{}, false, ferr
	}
	return frag, true, nil
}

type byteRange struct {
	start, end uint64 // end exclusive
}

// reassemblyState accumulates fragments for one original bundle.
type reassemblyState struct {
	totalLen uint64
	payload []byte
	ranges []byteRange
	template Bundle // first fragment seen, for its non-payload blocks and primary block
}

func (rs *reassemblyState) addRange(r byteRange) {
	rs.ranges = append(rs.ranges, r)
	sort.Slice(rs.ranges, func(i, j int) bool { return rs.ranges[i].start < rs.ranges[j].start })

	merged := rs.ranges[:1]
	for _, r := range rs.ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			if r.end > last.end {
				last.end = r.end
			}
		} else {
			merged = append(merged, r)
		}
	}
	rs.ranges = merged
}

func (rs *reassemblyState) complete() bool {
	return len(rs.ranges) == 1 && rs.ranges[0].start == 0 && rs.ranges[0].end == rs.totalLen
}

// Reassembler reconstructs whole bundles from fragments arriving in any
// order, keyed by source EID, creation timestamp and original length.
type Reassembler struct {
	mutex sync.Mutex
	table map[string]*reassemblyState
}

// NewReassembler creates an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{table: make(map[string]*reassemblyState)}
}

func reassemblyKey(pb PrimaryBlock) string {
	return fmt.Sprintf("%s-%d-%d-%d", pb.SourceNode, pb.CreationTimestamp.Time, pb.CreationTimestamp.Sequence, pb.TotalApplicationLen)
}

// Process folds fragment into the matching in-progress reassembly. If the
// fragment completes the original bundle, the reconstructed whole is
// returned with complete=true and the state is dropped from the table.
func (re *Reassembler) Process(fragment Bundle) (whole Bundle, complete bool, err error) {
	if !fragment.PrimaryBlock.HasFragmentation() {
		return fragment, true, nil
	}

	re.mutex.Lock()
	defer re.mutex.Unlock()

	key := reassemblyKey(fragment.PrimaryBlock)
	state, ok := re.table[key]
	if !ok {
		state = &reassemblyState{
			totalLen: fragment.PrimaryBlock.TotalApplicationLen,
			payload: make([]byte, fragment.PrimaryBlock.TotalApplicationLen),
			template: fragment,
		}
		re.table[key] = state
	}

	off := fragment.PrimaryBlock.FragmentOffset
	end := off + uint64(len(fragment.Payload))
	if end > state.totalLen {
		return Bundle{}, false, fmt.Errorf("bundle: fragment range [%d,%d) exceeds original length %d", off, end, state.totalLen)
	}
	copy(state.payload[off:end], fragment.Payload)
	state.addRange(byteRange{off, end})

	if !state.complete() {
		return Bundle{}, false, nil
	}

	delete(re.table, key)

	wholePb := state.template.PrimaryBlock
	wholePb.BundleControlFlags &^= IsFragment
	wholePb.FragmentOffset = 0
	wholePb.TotalApplicationLen = 0

	whole = Bundle{PrimaryBlock: wholePb, Payload: state.payload, PreviousNode: state.template.PreviousNode}
	for _, bi := range state.template.CanonicalBlocks {
		if bi.BlockType == BlockTypePayload {
			continue
		}
		whole.CanonicalBlocks = append(whole.CanonicalBlocks, bi)
	}
	whole.rebuildBlockList()

	return whole, true, nil
}
