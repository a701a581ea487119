// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"bytes"
	"testing"
)

func TestContactHeaderMarshalUnmarshal(t *testing.T) {
	ch := NewContactHeader(BundleAckEnabled|ReactiveFragEnabled, 30, 4096)

	var buf bytes.Buffer
	if err := ch.Marshal(&buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got ContactHeader
	if err := got.Unmarshal(&buf); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if got != ch {
		t.Fatalf("round trip mismatch: got %v, want %v", got, ch)
	}
}

func TestContactHeaderWrongMagic(t *testing.T) {
	buf := bytes.NewBuffer([]byte{0, 0, 0, 0, version, 0, 0, 0, 0})

	var ch ContactHeader
	if err := ch.Unmarshal(buf); err == nil {
		t.Fatal("expected an error for a bad magic value")
	}
}

func TestContactHeaderWrongVersion(t *testing.T) {
	var buf bytes.Buffer
	ch := NewContactHeader(0, 10, 0)
	if err := ch.Marshal(&buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	raw := buf.Bytes()
	raw[4] = version + 1

	var got ContactHeader
	if err := got.Unmarshal(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected an error for an unsupported version")
	}
}

func TestNegotiate(t *testing.T) {
	local := NewContactHeader(BundleAckEnabled|ReactiveFragEnabled, 60, 8192)
	remote := NewContactHeader(BundleAckEnabled, 30, 4096)

	got := negotiate(local, remote)

	if got.Flags != BundleAckEnabled {
		t.Fatalf("flags: got %v, want %v", got.Flags, BundleAckEnabled)
	}
	if got.KeepaliveInterval != 30 {
		t.Fatalf("keepalive: got %d, want 30", got.KeepaliveInterval)
	}
	if got.PartialAckLen != 4096 {
		t.Fatalf("partial ack len: got %d, want 4096", got.PartialAckLen)
	}
}
