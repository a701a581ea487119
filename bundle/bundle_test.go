// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"bytes"
	"testing"
)

func mustBundle(t *testing.T) Bundle {
	t.Helper()

	pb := NewPrimaryBlock(
		0,
		MustNewEndpointID("dtn://b.dtn/app"),
		MustNewEndpointID("dtn://a.dtn/app"),
		NewCreationTimestamp(10101010, 44556677),
		1000,
	)

	b, err := NewBundle(pb, []byte("test payload"))
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}
	return b
}

func assertRoundTrip(t *testing.T, original Bundle, decoded Bundle) {
	t.Helper()

	if decoded.PrimaryBlock.SourceNode.String() != original.PrimaryBlock.SourceNode.String() {
		t.Errorf("source node = %v, want %v", decoded.PrimaryBlock.SourceNode, original.PrimaryBlock.SourceNode)
	}
	if decoded.PrimaryBlock.Destination.String() != original.PrimaryBlock.Destination.String() {
		t.Errorf("destination = %v, want %v", decoded.PrimaryBlock.Destination, original.PrimaryBlock.Destination)
	}
	if decoded.PrimaryBlock.CreationTimestamp != original.PrimaryBlock.CreationTimestamp {
		t.Errorf("creation timestamp = %v, want %v", decoded.PrimaryBlock.CreationTimestamp, original.PrimaryBlock.CreationTimestamp)
	}
	if decoded.PrimaryBlock.Lifetime != original.PrimaryBlock.Lifetime {
		t.Errorf("lifetime = %d, want %d", decoded.PrimaryBlock.Lifetime, original.PrimaryBlock.Lifetime)
	}
	if !bytes.Equal(decoded.Payload, original.Payload) {
		t.Errorf("payload = %q, want %q", decoded.Payload, original.Payload)
	}
}

func TestBundleRoundTrip(t *testing.T) {
	original := mustBundle(t)

	wire, err := MarshalBundle(&original, nil)
	if err != nil {
		t.Fatalf("MarshalBundle: %v", err)
	}

	dec := NewBundleDecoder()
	consumed, done, err := dec.Feed(wire)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !done {
		t.Fatalf("Feed did not complete on a full buffer")
	}
	if consumed != len(wire) {
		t.Errorf("consumed %d bytes, want %d", consumed, len(wire))
	}

	assertRoundTrip(t, original, dec.Bundle())
}

func TestBundleChunkedParse(t *testing.T) {
	original := mustBundle(t)

	wire, err := MarshalBundle(&original, nil)
	if err != nil {
		t.Fatalf("MarshalBundle: %v", err)
	}

	dec := NewBundleDecoder()
	for i := 0; i < len(wire); i++ {
		_, done, ferr := dec.Feed(wire[i : i+1])
		if ferr != nil {
			t.Fatalf("Feed at byte %d: %v", i, ferr)
		}
		if done && i != len(wire)-1 {
			t.Fatalf("Feed reported done after byte %d, before the final byte %d", i, len(wire)-1)
		}
		if !done && i == len(wire)-1 {
			t.Fatalf("Feed did not report done on the final byte")
		}
	}

	assertRoundTrip(t, original, dec.Bundle())
}

func TestBundleRebuildBlockListKeepsPayloadLast(t *testing.T) {
	b := mustBundle(t)
	b.AddExtensionBlock(newBlockInfo(BlockTypePreviousHop, 0))

	if last := b.CanonicalBlocks[len(b.CanonicalBlocks)-1]; last.BlockType != BlockTypePayload {
		t.Fatalf("payload block is not last after AddExtensionBlock, got type %d last", last.BlockType)
	}
}
