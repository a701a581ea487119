// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcl

import (
	"bytes"
	"testing"
)

func TestBundleAckMessageRoundTrip(t *testing.T) {
	want := BundleAckMessage{BundleID: 42, Acked: 131072}

	var buf bytes.Buffer
	if err := want.Marshal(&buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var got BundleAckMessage
	if err := got.Unmarshal(&buf); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %v, want %v", got, want)
	}
}

func TestBundleAckMessageWrongTypecode(t *testing.T) {
	var ba BundleAckMessage
	if err := ba.Unmarshal(bytes.NewReader([]byte{KEEPALIVE})); err == nil {
		t.Fatal("expected an error for the wrong typecode")
	}
}

func TestShutdownMessageRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := (ShutdownMessage{}).Marshal(&buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var sm ShutdownMessage
	if err := sm.Unmarshal(&buf); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
}

func TestShutdownMessageCRCMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := (ShutdownMessage{}).Marshal(&buf); err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	raw := buf.Bytes()
	raw[1] ^= 0xFF

	var sm ShutdownMessage
	if err := sm.Unmarshal(bytes.NewReader(raw)); err == nil {
		t.Fatal("expected a crc16 mismatch error")
	}
}
