// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/dtn-go/bpagent/sdnv"
)

// PrimaryVersion is the bundle protocol version this agent speaks.
const PrimaryVersion = 6

// maxPrimaryBlockLen bounds how many bytes of primary block (length field
// plus its own payload) we will ever buffer while streaming-parsing, so a
// malformed SDNV length can't drive unbounded allocation --
// "absolute bound against the SDNV-encoded primary-block length" guard.
const maxPrimaryBlockLen = 64 * 1024

// PrimaryBlock is the first, mandatory block of every Bundle.
type PrimaryBlock struct {
	Version uint8
	BundleControlFlags BundleControlFlags
	Destination EndpointID
	SourceNode EndpointID
	ReportTo EndpointID
	Custodian EndpointID
	CreationTimestamp CreationTimestamp
	Lifetime uint64
	FragmentOffset uint64
	TotalApplicationLen uint64
}

// NewPrimaryBlock creates a PrimaryBlock with sane defaults.
func NewPrimaryBlock(flags BundleControlFlags, destination, source EndpointID, ts CreationTimestamp, lifetime uint64) PrimaryBlock {
	return PrimaryBlock{
		Version: PrimaryVersion,
		BundleControlFlags: flags,
		Destination: destination,
		SourceNode: source,
		ReportTo: DtnNone(),
		Custodian: DtnNone(),
		CreationTimestamp: ts,
		Lifetime: lifetime,
	}
}

func (pb PrimaryBlock) HasFragmentation() bool {
	return pb.BundleControlFlags.Has(IsFragment)
}

// dictionary builds the deduplicated, null-terminated-string dictionary for
// this primary block's four EIDs and returns it along with the byte offset
// of each (scheme, ssp) pair within it.
func (pb PrimaryBlock) dictionary() (dict []byte, offsets map[string]uint16) {
	parts := []string{}
	seen := map[string]bool{}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			parts = append(parts, s)
		}
	}

	for _, eid := range []EndpointID{pb.Destination, pb.SourceNode, pb.ReportTo, pb.Custodian} {
		add(eid.EndpointType.SchemeName())
		add(eidSsp(eid))
	}

	// Deterministic order keeps encoding reproducible across runs, which
	// testable-property round-trips rely on implicitly.
	sort.Strings(parts)

	offsets = make(map[string]uint16, len(parts))
	for _, p := range parts {
		offsets[p] = uint16(len(dict))
		dict = append(dict, p...)
		dict = append(dict, 0)
	}

	return dict, offsets
}

// eidSsp returns the scheme-specific part string as it appears verbatim in
// the dictionary (everything after "scheme:").
func eidSsp(eid EndpointID) string {
	switch et := eid.EndpointType.(type) {
	case DtnEndpoint:
		return et.Ssp
	case IpnEndpoint:
		return fmt.Sprintf("%d.%d", et.Node, et.Service)
	default:
		return ""
	}
}

func eidFromParts(scheme, ssp string) (EndpointID, error) {
	return NewEndpointID(scheme + ":" + ssp)
}

// MarshalPrimaryBlock serialises pb, including the dictionary and, when
// is-fragment is set, the fragment offset/original-length SDNVs.
func MarshalPrimaryBlock(pb PrimaryBlock) []byte {
	dict, offsets := pb.dictionary()

	var body bytes.Buffer
	for _, eid := range []EndpointID{pb.Destination, pb.SourceNode, pb.ReportTo, pb.Custodian} {
		writeUint16(&body, offsets[eid.EndpointType.SchemeName()])
		writeUint16(&body, offsets[eidSsp(eid)])
	}
	body.Write(sdnv.Marshal(uint64(pb.CreationTimestamp.Time)))
	body.Write(sdnv.Marshal(pb.CreationTimestamp.Sequence))
	body.Write(sdnv.Marshal(pb.Lifetime))
	body.Write(sdnv.Marshal(uint64(len(dict))))
	body.Write(dict)

	if pb.HasFragmentation() {
		body.Write(sdnv.Marshal(pb.FragmentOffset))
		body.Write(sdnv.Marshal(pb.TotalApplicationLen))
	}

	var out bytes.Buffer
	out.WriteByte(pb.Version)
	out.Write(sdnv.Marshal(uint64(pb.BundleControlFlags)))
	out.Write(sdnv.Marshal(uint64(body.Len())))
	out.Write(body.Bytes())

	return out.Bytes()
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	buf.WriteByte(byte(v >> 8))
	buf.WriteByte(byte(v))
}

func readUint16(buf []byte) uint16 {
	return uint16(buf[0])<<8 | uint16(buf[1])
}

// errPrimaryIncomplete signals the streaming decoder needs more bytes.
var errPrimaryIncomplete = fmt.Errorf("bundle: primary block incomplete")

// DecodePrimaryBlock parses a primary block from the front of buf. Every
// offset read from the wire is checked against both the actual buffer
// length and the SDNV-encoded block length read at the top, so a
// malformed dictionary length can never drive an out-of-bounds read or an
// unbounded allocation.
func DecodePrimaryBlock(buf []byte) (pb PrimaryBlock, consumed int, err error) {
	if len(buf) < 1 {
		return PrimaryBlock{}, 0, errPrimaryIncomplete
	}
	version := buf[0]
	off := 1

	flagsVal, n, derr := sdnv.Decode(buf[off:])
	if derr != nil {
		return primaryErr(derr)
	}
	off += n

	blockLen, n, derr := sdnv.Decode(buf[off:])
	if derr != nil {
		return primaryErr(derr)
	}
	off += n

	if blockLen > maxPrimaryBlockLen {
		return PrimaryBlock{}, 0, fmt.Errorf("bundle: primary block length %d exceeds bound %d: %w", blockLen, maxPrimaryBlockLen, errBlockUnintelligible)
	}

	bodyStart := off
	bodyEnd := bodyStart + int(blockLen)
	if len(buf) < bodyEnd {
		return PrimaryBlock{}, 0, errPrimaryIncomplete
	}
	body := buf[bodyStart:bodyEnd]
	bodyOff := 0

	readU16 := func() (uint16, error) {
		if bodyOff+2 > len(body) {
			return 0, fmt.Errorf("bundle: primary block truncated reading offset field: %w", errBlockUnintelligible)
		}
		v := readUint16(body[bodyOff:])
		bodyOff += 2
		return v, nil
	}

	var rawOffsets [8]uint16
	for i := range rawOffsets {
		v, uerr := readU16()
		if uerr != nil {
			return PrimaryBlock{}, 0, uerr
		}
		rawOffsets[i] = v
	}

	readSdnv := func(label string) (uint64, error) {
		v, n, derr := sdnv.Decode(body[bodyOff:])
		if derr != nil {
			return 0, fmt.Errorf("bundle: primary block %s: %w", label, errBlockUnintelligible)
		}
		bodyOff += n
		return v, nil
	}

	tsSeconds, err := readSdnv("creation timestamp seconds")
	if err != nil {
		return PrimaryBlock{}, 0, err
	}
	tsSeq, err := readSdnv("creation timestamp sequence")
	if err != nil {
		return PrimaryBlock{}, 0, err
	}
	lifetime, err := readSdnv("lifetime")
	if err != nil {
		return PrimaryBlock{}, 0, err
	}
	dictLen, err := readSdnv("dictionary length")
	if err != nil {
		return PrimaryBlock{}, 0, err
	}

	if bodyOff+int(dictLen) > len(body) {
		return PrimaryBlock{}, 0, fmt.Errorf("bundle: primary block dictionary length runs past block length: %w", errBlockUnintelligible)
	}
	dict := body[bodyOff : bodyOff+int(dictLen)]
	bodyOff += int(dictLen)

	if dictLen > 0 && dict[len(dict)-1] != 0 {
		return PrimaryBlock{}, 0, fmt.Errorf("bundle: primary block dictionary does not end in a null byte: %w", errBlockUnintelligible)
	}

	lookup := func(offset uint16) (string, error) {
		if int(offset) >= len(dict) {
			return "", fmt.Errorf("bundle: primary block dictionary offset %d out of range: %w", offset, errBlockUnintelligible)
		}
		end := bytes.IndexByte(dict[offset:], 0)
		if end < 0 {
			return "", fmt.Errorf("bundle: primary block dictionary string unterminated: %w", errBlockUnintelligible)
		}
		return string(dict[offset : int(offset)+end]), nil
	}

	eids := make([]EndpointID, 4)
	for i := 0; i < 4; i++ {
		scheme, serr := lookup(rawOffsets[i*2])
		if serr != nil {
			return PrimaryBlock{}, 0, serr
		}
		ssp, serr := lookup(rawOffsets[i*2+1])
		if serr != nil {
			return PrimaryBlock{}, 0, serr
		}
		eid, eerr := eidFromParts(scheme, ssp)
		if eerr != nil {
			return PrimaryBlock{}, 0, fmt.Errorf("bundle: primary block EID: %v: %w", eerr, errBlockUnintelligible)
		}
		eids[i] = eid
	}

	pb = PrimaryBlock{
		Version: version,
		BundleControlFlags: BundleControlFlags(flagsVal),
		Destination: eids[0],
		SourceNode: eids[1],
		ReportTo: eids[2],
		Custodian: eids[3],
		CreationTimestamp: NewCreationTimestamp(DtnTime(tsSeconds), tsSeq),
		Lifetime: lifetime,
	}

	if pb.HasFragmentation() {
		fragOffset, ferr := readSdnv("fragment offset")
		if ferr != nil {
			return PrimaryBlock{}, 0, ferr
		}
		origLen, ferr := readSdnv("fragment original length")
		if ferr != nil {
			return PrimaryBlock{}, 0, ferr
		}
		pb.FragmentOffset = fragOffset
		pb.TotalApplicationLen = origLen
	}

	return pb, bodyEnd, nil
}

func primaryErr(derr error) (PrimaryBlock, int, error) {
	if derr == sdnv.ErrIncomplete {
		return PrimaryBlock{}, 0, errPrimaryIncomplete
	}
	return PrimaryBlock{}, 0, fmt.Errorf("bundle: primary block: %w", derr)
}
