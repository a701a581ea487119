// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package store implements the durable bundle store: a put/get/del/iterate
// keyed record store, with the payload held either in memory or on disk as
// a file keyed by bundle id.
package store

import (
	"fmt"
	"time"

	"github.com/dtn-go/bpagent/bundle"
)

// Record is one stored bundle: metadata plus, for a fragmented bundle,
// every fragment part received so far.
type Record struct {
	ID bundle.BundleID `badgerhold:"key"`

	Pending bool `badgerholdIndex:"Pending"`
	Expires time.Time `badgerholdIndex:"Expires"`

	Fragmented bool
	Parts []Part

	// Bundle is the whole, reassembled bundle once available. For a
	// fragmented record still awaiting more parts, Bundle is the zero
	// value and Parts describes what has arrived.
	Bundle bundle.Bundle
}

// Part describes one fragment of a fragmented bundle held by a Record.
type Part struct {
	FragmentOffset uint64
	TotalDataLength uint64
}

// Store is the durable bundle store interface.
type Store interface {
	// Put inserts or updates the record for b. Pushing a fragment of a
	// bundle whose whole form is already stored is a no-op; pushing an
	// already-known fragment is a no-op; otherwise the fragment is folded
	// in and reassembly is attempted.
	Put(b bundle.Bundle) error

	// Get returns the stored record for id (its Scrub'd form is used as
	// the key, so either a whole bundle's or a fragment's id resolves the
	// same record).
	Get(id bundle.BundleID) (Record, error)

	// Del removes the record for id.
	Del(id bundle.BundleID) error

	// Iterate returns every bundle id currently held.
	Iterate() ([]bundle.BundleID, error)

	Close() error
}

// ErrNotFound is returned by Get/Del when no record matches id.
var ErrNotFound = fmt.Errorf("store: no record for that bundle id")

func calcExpiration(b bundle.Bundle) time.Time {
	return b.PrimaryBlock.CreationTimestamp.Time.Time().Add(time.Duration(b.PrimaryBlock.Lifetime) * time.Second)
}

func newRecord(b bundle.Bundle) Record {
	bid := b.ID()
	r := Record{
		ID: bid.Scrub(),
		Expires: calcExpiration(b),
		Fragmented: b.PrimaryBlock.HasFragmentation(),
	}
	if r.Fragmented {
		r.Parts = append(r.Parts, Part{FragmentOffset: bid.FragmentOffset, TotalDataLength: bid.TotalDataLength})
	} else {
		r.Bundle = b
	}
	return r
}
