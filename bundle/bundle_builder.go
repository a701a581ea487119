// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"time"
)

// BundleBuilder assembles a Bundle by method chaining:
//
//	bndl, err := bundle.Builder().
//	  Source("dtn://src/app").
//	  Destination("dtn://dst/app").
//	  CreationTimestampNow().
//	  Lifetime("30m").
//	  PayloadBlock([]byte("hello world!")).
//	  Build()
type BundleBuilder struct {
	err error

	primary PrimaryBlock
	extra   []*BlockInfo
	payload []byte
}

// Builder creates a new BundleBuilder with Custodian defaulted to the null
// endpoint; ReportTo defaults to the source EID when Build runs.
func Builder() *BundleBuilder {
	return &BundleBuilder{
		primary: PrimaryBlock{
			Version:   PrimaryVersion,
			Custodian: DtnNone(),
		},
	}
}

func (bldr *BundleBuilder) fail(err error) *BundleBuilder {
	if bldr.err == nil {
		bldr.err = err
	}
	return bldr
}

func (bldr *BundleBuilder) parseEID(eid interface{}) (EndpointID, error) {
	switch v := eid.(type) {
	case EndpointID:
		return v, nil
	case string:
		return NewEndpointID(v)
	default:
		return EndpointID{}, fmt.Errorf("bundle: %T is neither an EndpointID nor a string", eid)
	}
}

// Source sets the bundle's source EID.
func (bldr *BundleBuilder) Source(eid interface{}) *BundleBuilder {
	e, err := bldr.parseEID(eid)
	if err != nil {
		return bldr.fail(err)
	}
	bldr.primary.SourceNode = e
	return bldr
}

// Destination sets the bundle's destination EID.
func (bldr *BundleBuilder) Destination(eid interface{}) *BundleBuilder {
	e, err := bldr.parseEID(eid)
	if err != nil {
		return bldr.fail(err)
	}
	bldr.primary.Destination = e
	return bldr
}

// ReportTo sets the EID status reports are sent to, overriding the default
// of the source EID.
func (bldr *BundleBuilder) ReportTo(eid interface{}) *BundleBuilder {
	e, err := bldr.parseEID(eid)
	if err != nil {
		return bldr.fail(err)
	}
	bldr.primary.ReportTo = e
	return bldr
}

// CreationTimestamp sets an explicit creation timestamp.
func (bldr *BundleBuilder) CreationTimestamp(ts CreationTimestamp) *BundleBuilder {
	bldr.primary.CreationTimestamp = ts
	return bldr
}

// CreationTimestampNow sets the creation timestamp to the current time.
func (bldr *BundleBuilder) CreationTimestampNow() *BundleBuilder {
	bldr.primary.CreationTimestamp = CreationTimestampNow()
	return bldr
}

// Lifetime sets the bundle's lifetime, as a duration or a parseable
// duration string, e.g. "30m".
func (bldr *BundleBuilder) Lifetime(lifetime interface{}) *BundleBuilder {
	switch v := lifetime.(type) {
	case time.Duration:
		bldr.primary.Lifetime = uint64(v.Seconds())
	case uint64:
		bldr.primary.Lifetime = v
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			return bldr.fail(err)
		}
		bldr.primary.Lifetime = uint64(d.Seconds())
	default:
		return bldr.fail(fmt.Errorf("bundle: %T is not a valid lifetime", lifetime))
	}
	return bldr
}

// BundleControlFlags sets the bundle processing control flags.
func (bldr *BundleBuilder) BundleControlFlags(flags BundleControlFlags) *BundleBuilder {
	bldr.primary.BundleControlFlags = flags
	return bldr
}

// PayloadBlock sets the bundle's application payload.
func (bldr *BundleBuilder) PayloadBlock(data []byte) *BundleBuilder {
	bldr.payload = data
	return bldr
}

// Canonical appends an already constructed extension block.
func (bldr *BundleBuilder) Canonical(block *BlockInfo) *BundleBuilder {
	bldr.extra = append(bldr.extra, block)
	return bldr
}

// PreviousHopBlock reserves a previous-hop block slot; its content is
// filled in by previousHopBlockProcessor.Generate at transmission time.
func (bldr *BundleBuilder) PreviousHopBlock() *BundleBuilder {
	bldr.extra = append(bldr.extra, newBlockInfo(BlockTypePreviousHop, 0))
	return bldr
}

// Build validates the accumulated fields and returns the finished Bundle.
func (bldr *BundleBuilder) Build() (Bundle, error) {
	if bldr.err != nil {
		return Bundle{}, bldr.err
	}

	if bldr.primary.SourceNode.IsZero() || bldr.primary.Destination.IsZero() {
		return Bundle{}, fmt.Errorf("bundle: both source and destination must be set")
	}
	if bldr.primary.ReportTo.IsZero() {
		bldr.primary.ReportTo = bldr.primary.SourceNode
	}
	if bldr.primary.Custodian.IsZero() {
		bldr.primary.Custodian = DtnNone()
	}
	if bldr.primary.CreationTimestamp == (CreationTimestamp{}) {
		bldr.primary.CreationTimestamp = CreationTimestampNow()
	}
	if bldr.primary.SourceNode == DtnNone() {
		bldr.primary.BundleControlFlags &^= StatusRequestReceive | StatusRequestForwarded |
			StatusRequestDelivered | StatusRequestDeleted
	}
	if bldr.primary.Destination.IsSingleton() {
		bldr.primary.BundleControlFlags |= SingletonDestination
	}

	return NewBundle(bldr.primary, bldr.payload, bldr.extra...)
}
