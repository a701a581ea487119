// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"bytes"
	"testing"

	"github.com/dtn-go/bpagent/bundle"
)

func mustTestBundle(t *testing.T, payload []byte) bundle.Bundle {
	t.Helper()

	b, err := bundle.Builder().
		Source("dtn://a.dtn/app").
		Destination("dtn://b.dtn/app").
		CreationTimestamp(bundle.NewCreationTimestamp(10101010, 44556677)).
		Lifetime("1000s").
		PayloadBlock(payload).
		Build()
	if err != nil {
		t.Fatalf("Builder().Build: %v", err)
	}
	return b
}

func TestMemoryStorePutGetDel(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	b := mustTestBundle(t, []byte("hello world"))

	if err := s.Put(b); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rec, err := s.Get(b.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(rec.Bundle.Payload, b.Payload) {
		t.Errorf("payload = %q, want %q", rec.Bundle.Payload, b.Payload)
	}

	ids, err := s.Iterate()
	if err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if len(ids) != 1 || !ids[0].Equal(b.ID().Scrub()) {
		t.Errorf("Iterate = %v, want [%v]", ids, b.ID().Scrub())
	}

	if err := s.Del(b.ID()); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, err := s.Get(b.ID()); err != ErrNotFound {
		t.Errorf("Get after Del = %v, want ErrNotFound", err)
	}
}

func TestMemoryStorePutIgnoresDuplicate(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	b := mustTestBundle(t, []byte("payload"))

	if err := s.Put(b); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := s.Put(b); err != nil {
		t.Fatalf("second Put: %v", err)
	}

	ids, _ := s.Iterate()
	if len(ids) != 1 {
		t.Errorf("Iterate after duplicate Put = %d entries, want 1", len(ids))
	}
}

func TestMemoryStoreFragmentedBundle(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	whole := mustTestBundle(t, bytes.Repeat([]byte{0x42}, 200))

	fragments, err := bundle.ProactivelyFragment(whole, 100)
	if err != nil {
		t.Fatalf("ProactivelyFragment: %v", err)
	}
	if len(fragments) != 2 {
		t.Fatalf("len(fragments) = %d, want 2", len(fragments))
	}

	if err := s.Put(fragments[0]); err != nil {
		t.Fatalf("Put fragment 0: %v", err)
	}

	rec, err := s.Get(whole.ID())
	if err != nil {
		t.Fatalf("Get after one fragment: %v", err)
	}
	if !rec.Fragmented {
		t.Fatalf("record not marked Fragmented with only one fragment stored")
	}

	if err := s.Put(fragments[1]); err != nil {
		t.Fatalf("Put fragment 1: %v", err)
	}

	rec, err = s.Get(whole.ID())
	if err != nil {
		t.Fatalf("Get after both fragments: %v", err)
	}
	if rec.Fragmented {
		t.Errorf("record still marked Fragmented after full reassembly")
	}
	if !bytes.Equal(rec.Bundle.Payload, whole.Payload) {
		t.Errorf("reassembled payload mismatch")
	}
}
