// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"bytes"
	"fmt"

	"github.com/dtn-go/bpagent/sdnv"
)

// AdministrativeRecordType is the 4-bit record-type field in an
// administrative record's first byte.
type AdministrativeRecordType uint8

const (
	ARTypeStatusReport AdministrativeRecordType = 1
	ARTypeCustodySignal AdministrativeRecordType = 2
)

const arFragmentFlag = 0x1

// StatusReport is the bundle status report administrative record,
// recording which of the receive/forward/delivery/deletion events that
// were requested, occurred, and when.
type StatusReport struct {
	// StatusFlags has one bit set per reported event (receive, custody
	// accepted, forwarded, delivered, deleted).
	StatusFlags uint8
	ReasonCode StatusReportReason
	IsFragment bool
	FragmentOffset uint64
	FragmentLen uint64

	// Timestamps holds, for each set bit in StatusFlags (from bit 0 up),
	// the DtnTime the event happened at. Its length always equals the
	// number of set bits in StatusFlags.
	Timestamps []DtnTime

	BundleSourceNode EndpointID
	BundleCreationTS CreationTimestamp
}

const (
	StatusReceivedBit uint8 = 1 << iota
	StatusCustodyAcceptedBit
	StatusForwardedBit
	StatusDeliveredBit
	StatusDeletedBit
)

// CustodySignal is the custody transfer acknowledgement administrative
// record.
type CustodySignal struct {
	Accepted bool
	ReasonCode StatusReportReason

	IsFragment bool
	FragmentOffset uint64
	FragmentLen uint64

	SignalTime DtnTime

	BundleSourceNode EndpointID
	BundleCreationTS CreationTimestamp
}

// adminBundleRef is the trailer shared by every administrative record:
// the fragment range (if any) and the identity of the bundle it reports
// on.
type adminBundleRef struct {
	isFragment bool
	fragmentOffset uint64
	fragmentLen uint64
	sourceNode EndpointID
	creationTS CreationTimestamp
}

func writeAdminBundleRef(buf *bytes.Buffer, ref adminBundleRef) {
	if ref.isFragment {
		buf.Write(sdnv.Marshal(ref.fragmentOffset))
		buf.Write(sdnv.Marshal(ref.fragmentLen))
	}
	src := []byte(ref.sourceNode.String())
	buf.Write(sdnv.Marshal(uint64(len(src))))
	buf.Write(src)
	buf.Write(sdnv.Marshal(uint64(ref.creationTS.Time)))
	buf.Write(sdnv.Marshal(ref.creationTS.Sequence))
}

func readAdminBundleRef(data []byte, isFragment bool) (ref adminBundleRef, consumed int, err error) {
	ref.isFragment = isFragment
	off := 0

	read := func(label string) (uint64, error) {
		v, n, derr := sdnv.Decode(data[off:])
		if derr != nil {
			return 0, fmt.Errorf("bundle: administrative record %s: %w", label, derr)
		}
		off += n
		return v, nil
	}

	if isFragment {
		if ref.fragmentOffset, err = read("fragment offset"); err != nil {
			return
		}
		if ref.fragmentLen, err = read("fragment length"); err != nil {
			return
		}
	}

	srcLen, err := read("source EID length")
	if err != nil {
		return
	}
	if off+int(srcLen) > len(data) {
		return ref, 0, fmt.Errorf("bundle: administrative record source EID runs past end of data")
	}
	eid, eerr := NewEndpointID(string(data[off : off+int(srcLen)]))
	if eerr != nil {
		return ref, 0, fmt.Errorf("bundle: administrative record source EID: %w", eerr)
	}
	ref.sourceNode = eid
	off += int(srcLen)

	tsSeconds, err := read("creation timestamp seconds")
	if err != nil {
		return
	}
	tsSeq, err := read("creation timestamp sequence")
	if err != nil {
		return
	}
	ref.creationTS = NewCreationTimestamp(DtnTime(tsSeconds), tsSeq)

	return ref, off, nil
}

// MarshalAdministrativeRecord serialises a StatusReport or CustodySignal
// into the byte payload of an administrative-record bundle.
func MarshalAdministrativeRecord(ar interface{}) ([]byte, error) {
	var buf bytes.Buffer

	switch rec := ar.(type) {
	case StatusReport:
		flags := byte(ARTypeStatusReport) << 4
		if rec.IsFragment {
			flags |= arFragmentFlag
		}
		buf.WriteByte(flags)
		buf.WriteByte(rec.StatusFlags)
		buf.WriteByte(byte(rec.ReasonCode))
		for _, t := range rec.Timestamps {
			buf.Write(sdnv.Marshal(uint64(t)))
		}
		writeAdminBundleRef(&buf, adminBundleRef{
			isFragment: rec.IsFragment, fragmentOffset: rec.FragmentOffset, fragmentLen: rec.FragmentLen,
			sourceNode: rec.BundleSourceNode, creationTS: rec.BundleCreationTS,
		})
		return buf.Bytes(), nil

	case CustodySignal:
		flags := byte(ARTypeCustodySignal) << 4
		if rec.IsFragment {
			flags |= arFragmentFlag
		}
		buf.WriteByte(flags)
		accepted := byte(0)
		if rec.Accepted {
			accepted = 1
		}
		buf.WriteByte(accepted)
		buf.WriteByte(byte(rec.ReasonCode))
		buf.Write(sdnv.Marshal(uint64(rec.SignalTime)))
		writeAdminBundleRef(&buf, adminBundleRef{
			isFragment: rec.IsFragment, fragmentOffset: rec.FragmentOffset, fragmentLen: rec.FragmentLen,
			sourceNode: rec.BundleSourceNode, creationTS: rec.BundleCreationTS,
		})
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("bundle: unsupported administrative record type %T", ar)
	}
}

// UnmarshalAdministrativeRecord parses the payload of an administrative
// record bundle into a StatusReport or CustodySignal.
func UnmarshalAdministrativeRecord(data []byte) (interface{}, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("bundle: administrative record too short")
	}
	flags := data[0]
	recordType := AdministrativeRecordType(flags >> 4)
	isFragment := flags&arFragmentFlag != 0

	switch recordType {
	case ARTypeStatusReport:
		if len(data) < 3 {
			return nil, fmt.Errorf("bundle: status report too short")
		}
		statusFlags := data[1]
		reason := StatusReportReason(data[2])

		popcount := 0
		for b := statusFlags; b != 0; b &= b - 1 {
			popcount++
		}

		off := 3
		timestamps := make([]DtnTime, 0, popcount)
		for i := 0; i < popcount; i++ {
			v, n, derr := sdnv.Decode(data[off:])
			if derr != nil {
				return nil, fmt.Errorf("bundle: status report timestamp %d: %w", i, derr)
			}
			timestamps = append(timestamps, DtnTime(v))
			off += n
		}

		ref, _, err := readAdminBundleRef(data[off:], isFragment)
		if err != nil {
			return nil, err
		}

		return StatusReport{
			StatusFlags: statusFlags,
			ReasonCode: reason,
			IsFragment: ref.isFragment,
			FragmentOffset: ref.fragmentOffset,
			FragmentLen: ref.fragmentLen,
			Timestamps: timestamps,
			BundleSourceNode: ref.sourceNode,
			BundleCreationTS: ref.creationTS,
		}, nil

	case ARTypeCustodySignal:
		if len(data) < 3 {
			return nil, fmt.Errorf("bundle: custody signal too short")
		}
		accepted := data[1] != 0
		reason := StatusReportReason(data[2])

		signalTime, n, derr := sdnv.Decode(data[3:])
		if derr != nil {
			return nil, fmt.Errorf("bundle: custody signal time: %w", derr)
		}

		ref, _, err := readAdminBundleRef(data[3+n:], isFragment)
		if err != nil {
			return nil, err
		}

		return CustodySignal{
			Accepted: accepted,
			ReasonCode: reason,
			IsFragment: ref.isFragment,
			FragmentOffset: ref.fragmentOffset,
			FragmentLen: ref.fragmentLen,
			SignalTime: DtnTime(signalTime),
			BundleSourceNode: ref.sourceNode,
			BundleCreationTS: ref.creationTS,
		}, nil

	default:
		return nil, fmt.Errorf("bundle: unsupported administrative record type %d", recordType)
	}
}
