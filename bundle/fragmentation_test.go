// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"bytes"
	"testing"
)

func TestProactiveFragmentThenReassemble(t *testing.T) {
	payload := make([]byte, 4096)
	for i := range payload {
		payload[i] = byte(i % 256)
	}

	pb := NewPrimaryBlock(
		0,
		MustNewEndpointID("dtn://b.dtn/app"),
		MustNewEndpointID("dtn://a.dtn/app"),
		CreationTimestampNow(),
		3600,
	)
	original, err := NewBundle(pb, payload)
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	frags, err := ProactivelyFragment(original, 1024)
	if err != nil {
		t.Fatalf("ProactivelyFragment: %v", err)
	}
	if len(frags) != 4 {
		t.Fatalf("got %d fragments, want 4", len(frags))
	}

	wantOffsets := []uint64{0, 1024, 2048, 3072}
	for i, f := range frags {
		if !f.PrimaryBlock.HasFragmentation() {
			t.Fatalf("fragment %d: is-fragment flag not set", i)
		}
		if f.PrimaryBlock.FragmentOffset != wantOffsets[i] {
			t.Errorf("fragment %d: offset = %d, want %d", i, f.PrimaryBlock.FragmentOffset, wantOffsets[i])
		}
		if f.PrimaryBlock.TotalApplicationLen != 4096 {
			t.Errorf("fragment %d: orig length = %d, want 4096", i, f.PrimaryBlock.TotalApplicationLen)
		}
	}

	reassembler := NewReassembler()
	order := []int{2, 0, 3, 1}

	var whole Bundle
	var complete bool
	for i, idx := range order {
		w, c, rerr := reassembler.Process(frags[idx])
		if rerr != nil {
			t.Fatalf("Process(frag %d): %v", idx, rerr)
		}
		if i < len(order)-1 && c {
			t.Fatalf("reassembly completed early after feeding fragment index %d", idx)
		}
		whole, complete = w, c
	}

	if !complete {
		t.Fatalf("reassembly did not complete after all fragments were fed")
	}
	if !bytes.Equal(whole.Payload, payload) {
		t.Fatalf("reassembled payload does not match original")
	}
	if whole.PrimaryBlock.HasFragmentation() {
		t.Errorf("reassembled bundle still has is-fragment flag set")
	}
	if whole.PrimaryBlock.SourceNode.String() != original.PrimaryBlock.SourceNode.String() {
		t.Errorf("reassembled source node = %v, want %v", whole.PrimaryBlock.SourceNode, original.PrimaryBlock.SourceNode)
	}
}

func TestReactiveFragment(t *testing.T) {
	pb := NewPrimaryBlock(
		0,
		MustNewEndpointID("dtn://b.dtn/app"),
		MustNewEndpointID("dtn://a.dtn/app"),
		CreationTimestampNow(),
		3600,
	)
	b, err := NewBundle(pb, bytes.Repeat([]byte{'x'}, 100))
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	remainder, ok, err := ReactivelyFragment(b, 40)
	if err != nil {
		t.Fatalf("ReactivelyFragment: %v", err)
	}
	if !ok {
		t.Fatalf("ReactivelyFragment reported no fragment created")
	}
	if remainder.PrimaryBlock.FragmentOffset != 40 {
		t.Errorf("remainder offset = %d, want 40", remainder.PrimaryBlock.FragmentOffset)
	}
	if len(remainder.Payload) != 60 {
		t.Errorf("remainder payload length = %d, want 60", len(remainder.Payload))
	}

	if _, ok, err := ReactivelyFragment(b, 100); err != nil || ok {
		t.Errorf("ReactivelyFragment with sentLen == payload length should report ok=false, got ok=%v err=%v", ok, err)
	}
}

func TestCreateFragmentRejectsMustNotFragment(t *testing.T) {
	pb := NewPrimaryBlock(
		MustNotFragment,
		MustNewEndpointID("dtn://b.dtn/app"),
		MustNewEndpointID("dtn://a.dtn/app"),
		CreationTimestampNow(),
		3600,
	)
	b, err := NewBundle(pb, []byte("hello"))
	if err != nil {
		t.Fatalf("NewBundle: %v", err)
	}

	if _, err := CreateFragment(b, 0, 2); err == nil {
		t.Fatalf("CreateFragment should reject a bundle with MustNotFragment set")
	}
}
