// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"crypto/sha1"
	"fmt"
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold"

	"github.com/dtn-go/bpagent/bundle"
)

const (
	dirBadger = "db"
	dirPayload = "payload"
)

// FileStore is a badgerhold-backed Store: metadata lives in an embedded
// key/value database, each bundle's payload in its own file named by a
// hash of its scrubbed bundle id.
type FileStore struct {
	bh *badgerhold.Store
	payloadDir string
	reassembler *bundle.Reassembler
}

// NewFileStore opens (creating if necessary) a FileStore rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	badgerDir := path.Join(dir, dirBadger)
	payloadDir := path.Join(dir, dirPayload)

	if err := os.MkdirAll(badgerDir, 0700); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(payloadDir, 0700); err != nil {
		return nil, err
	}

	opts := badgerhold.DefaultOptions
	opts.Dir = badgerDir
	opts.ValueDir = badgerDir

	bh, err := badgerhold.Open(opts)
	if err != nil {
		return nil, err
	}

	return &FileStore{bh: bh, payloadDir: payloadDir, reassembler: bundle.NewReassembler()}, nil
}

func (s *FileStore) Close() error {
	return s.bh.Close()
}

func (s *FileStore) payloadPath(id bundle.BundleID) string {
	sum := sha1.Sum([]byte(id.Scrub().String()))
	return path.Join(s.payloadDir, fmt.Sprintf("%x", sum))
}

func (s *FileStore) writePayload(id bundle.BundleID, payload []byte) error {
	return os.WriteFile(s.payloadPath(id), payload, 0600)
}

func (s *FileStore) readPayload(id bundle.BundleID) ([]byte, error) {
	return os.ReadFile(s.payloadPath(id))
}

func (s *FileStore) Put(b bundle.Bundle) error {
	bid := b.ID()
	key := bid.Scrub()
	keyStr := key.String()

	var existing Record
	err := s.bh.Get(keyStr, &existing)

	switch {
	case err == badgerhold.ErrNotFound:
		if b.PrimaryBlock.HasFragmentation() {
			whole, complete, rerr := s.reassembler.Process(b)
			if rerr != nil {
				return rerr
			}
			if !complete {
				rec := newRecord(b)
				return s.bh.Insert(keyStr, rec)
			}
			b = whole
		}
		if err := s.writePayload(key, b.Payload); err != nil {
			return err
		}
		stripped := b
		stripped.Payload = nil
		rec := Record{ID: key, Expires: calcExpiration(b), Bundle: stripped}
		log.WithFields(log.Fields{"bundle": b.ID().String()}).Info("storing new bundle")
		return s.bh.Insert(keyStr, rec)

	case err != nil:
		return err

	default:
		if !existing.Fragmented {
			log.WithFields(log.Fields{"bundle": b.ID().String()}).Debug("bundle already stored, ignoring push")
			return nil
		}

		whole, complete, rerr := s.reassembler.Process(b)
		if rerr != nil {
			return rerr
		}
		if !complete {
			existing.Parts = append(existing.Parts, Part{FragmentOffset: b.PrimaryBlock.FragmentOffset, TotalDataLength: b.PrimaryBlock.TotalApplicationLen})
			return s.bh.Update(keyStr, existing)
		}

		if err := s.writePayload(key, whole.Payload); err != nil {
			return err
		}
		stripped := whole
		stripped.Payload = nil
		existing.Fragmented = false
		existing.Bundle = stripped
		existing.Expires = calcExpiration(whole)
		return s.bh.Update(keyStr, existing)
	}
}

func (s *FileStore) Get(id bundle.BundleID) (Record, error) {
	var rec Record
	if err := s.bh.Get(id.Scrub().String(), &rec); err == badgerhold.ErrNotFound {
		return Record{}, ErrNotFound
	} else if err != nil {
		return Record{}, err
	}

	if !rec.Fragmented {
		payload, err := s.readPayload(rec.ID)
		if err != nil {
			return Record{}, err
		}
		rec.Bundle.Payload = payload
	}

	return rec, nil
}

func (s *FileStore) Del(id bundle.BundleID) error {
	key := id.Scrub()
	if err := os.Remove(s.payloadPath(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := s.bh.Delete(key.String(), Record{}); err == badgerhold.ErrNotFound {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return nil
}

func (s *FileStore) Iterate() ([]bundle.BundleID, error) {
	var recs []Record
	if err := s.bh.Find(&recs, &badgerhold.Query{}); err != nil {
		return nil, err
	}

	ids := make([]bundle.BundleID, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}
