// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import "testing"

func TestStatusReportRoundTrip(t *testing.T) {
	sr := StatusReport{
		StatusFlags:      StatusReceivedBit | StatusDeliveredBit,
		ReasonCode:       ReasonNoInformation,
		Timestamps:       []DtnTime{100, 200},
		BundleSourceNode: MustNewEndpointID("dtn://a.dtn/app"),
		BundleCreationTS: NewCreationTimestamp(10101010, 44556677),
	}

	wire, err := MarshalAdministrativeRecord(sr)
	if err != nil {
		t.Fatalf("MarshalAdministrativeRecord: %v", err)
	}

	decoded, err := UnmarshalAdministrativeRecord(wire)
	if err != nil {
		t.Fatalf("UnmarshalAdministrativeRecord: %v", err)
	}

	got, ok := decoded.(StatusReport)
	if !ok {
		t.Fatalf("decoded value is %T, want StatusReport", decoded)
	}
	if got.StatusFlags != sr.StatusFlags {
		t.Errorf("status flags = %08b, want %08b", got.StatusFlags, sr.StatusFlags)
	}
	if len(got.Timestamps) != 2 || got.Timestamps[0] != 100 || got.Timestamps[1] != 200 {
		t.Errorf("timestamps = %v, want [100 200]", got.Timestamps)
	}
	if got.BundleSourceNode.String() != sr.BundleSourceNode.String() {
		t.Errorf("source = %v, want %v", got.BundleSourceNode, sr.BundleSourceNode)
	}
	if got.BundleCreationTS != sr.BundleCreationTS {
		t.Errorf("creation timestamp = %v, want %v", got.BundleCreationTS, sr.BundleCreationTS)
	}
}

func TestStatusReportFragmentFields(t *testing.T) {
	sr := StatusReport{
		StatusFlags:      StatusDeletedBit,
		ReasonCode:       ReasonLifetimeExpired,
		IsFragment:       true,
		FragmentOffset:   1024,
		FragmentLen:      512,
		Timestamps:       []DtnTime{42},
		BundleSourceNode: MustNewEndpointID("dtn://a.dtn/app"),
		BundleCreationTS: CreationTimestampNow(),
	}

	wire, err := MarshalAdministrativeRecord(sr)
	if err != nil {
		t.Fatalf("MarshalAdministrativeRecord: %v", err)
	}
	decoded, err := UnmarshalAdministrativeRecord(wire)
	if err != nil {
		t.Fatalf("UnmarshalAdministrativeRecord: %v", err)
	}
	got := decoded.(StatusReport)
	if !got.IsFragment || got.FragmentOffset != 1024 || got.FragmentLen != 512 {
		t.Errorf("fragment fields = (%v, %d, %d), want (true, 1024, 512)", got.IsFragment, got.FragmentOffset, got.FragmentLen)
	}
}

func TestCustodySignalRoundTrip(t *testing.T) {
	cs := CustodySignal{
		Accepted:         true,
		ReasonCode:       ReasonNoInformation,
		SignalTime:       12345,
		BundleSourceNode: MustNewEndpointID("dtn://a.dtn/app"),
		BundleCreationTS: NewCreationTimestamp(1, 2),
	}

	wire, err := MarshalAdministrativeRecord(cs)
	if err != nil {
		t.Fatalf("MarshalAdministrativeRecord: %v", err)
	}
	decoded, err := UnmarshalAdministrativeRecord(wire)
	if err != nil {
		t.Fatalf("UnmarshalAdministrativeRecord: %v", err)
	}
	got, ok := decoded.(CustodySignal)
	if !ok {
		t.Fatalf("decoded value is %T, want CustodySignal", decoded)
	}
	if got.Accepted != cs.Accepted || got.SignalTime != cs.SignalTime {
		t.Errorf("got = %+v, want %+v", got, cs)
	}
	if got.BundleSourceNode.String() != cs.BundleSourceNode.String() {
		t.Errorf("source = %v, want %v", got.BundleSourceNode, cs.BundleSourceNode)
	}
}
