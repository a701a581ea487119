// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
)

// MemoryStore is a Store backed by nothing but a guarded map. Payloads live
// inline in the Record, never touching disk.
type MemoryStore struct {
	mutex sync.Mutex
	records map[string]Record
	reassembler *bundle.Reassembler
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		reassembler: bundle.NewReassembler(),
	}
}

func (s *MemoryStore) Close() error {
	return nil
}

func (s *MemoryStore) Put(b bundle.Bundle) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := b.ID().Scrub()
	keyStr := key.String()

	existing, known := s.records[keyStr]

	if !known {
		if b.PrimaryBlock.HasFragmentation() {
			whole, complete, err := s.reassembler.Process(b)
			if err != nil {
				return err
			}
			if !complete {
				s.records[keyStr] = newRecord(b)
				return nil
			}
			b = whole
		}

		s.records[keyStr] = Record{ID: key, Expires: calcExpiration(b), Bundle: b}
		log.WithFields(log.Fields{"bundle": b.ID().String()}).Info("storing new bundle")
		return nil
	}

	if !existing.Fragmented {
		log.WithFields(log.Fields{"bundle": b.ID().String()}).Debug("bundle already stored, ignoring push")
		return nil
	}

	whole, complete, err := s.reassembler.Process(b)
	if err != nil {
		return err
	}
	if !complete {
		existing.Parts = append(existing.Parts, Part{FragmentOffset: b.PrimaryBlock.FragmentOffset, TotalDataLength: b.PrimaryBlock.TotalApplicationLen})
		s.records[keyStr] = existing
		return nil
	}

	existing.Fragmented = false
	existing.Bundle = whole
	existing.Expires = calcExpiration(whole)
	s.records[keyStr] = existing
	return nil
}

func (s *MemoryStore) Get(id bundle.BundleID) (Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	rec, ok := s.records[id.Scrub().String()]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Del(id bundle.BundleID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := id.Scrub().String()
	if _, ok := s.records[key]; !ok {
		return ErrNotFound
	}
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Iterate() ([]bundle.BundleID, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ids := make([]bundle.BundleID, 0, len(s.records))
	for _, rec := range s.records {
		ids = append(ids, rec.ID)
	}
	return ids, nil
}
