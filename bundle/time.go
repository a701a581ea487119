// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"sync"
	"time"
)

// DtnTime counts whole seconds elapsed since the start of the year 2000 UTC,
// the DTN epoch.
type DtnTime uint64

const (
	seconds1970To2k = 946684800

	// DtnTimeEpoch is the zero timestamp.
	DtnTimeEpoch DtnTime = 0
)

// Unix returns the Unix timestamp for this DtnTime.
func (t DtnTime) Unix() int64 {
	return int64(t) + seconds1970To2k
}

// Time returns a UTC time.Time for this DtnTime.
func (t DtnTime) Time() time.Time {
	return time.Unix(t.Unix(), 0).UTC()
}

func (t DtnTime) String() string {
	return t.Time().Format("2006-01-02 15:04:05")
}

// DtnTimeFromTime converts a time.Time to a DtnTime.
func DtnTimeFromTime(t time.Time) DtnTime {
	return DtnTime(t.UTC().Unix() - seconds1970To2k)
}

// DtnTimeNow returns the current time as a DtnTime.
func DtnTimeNow() DtnTime {
	return DtnTimeFromTime(time.Now())
}

// sequencer hands out the monotonic sub-second sequence number used to
// disambiguate bundles created within the same DtnTime second from the
// same source.
type sequencer struct {
	mutex sync.Mutex
	lastTime DtnTime
	next uint64
}

var creationSequencer sequencer

func (s *sequencer) next_(now DtnTime) uint64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if now != s.lastTime {
		s.lastTime = now
		s.next = 0
	}

	seq := s.next
	s.next++
	return seq
}

// CreationTimestamp pairs a DtnTime with a monotonic sequence number.
type CreationTimestamp struct {
	Time DtnTime
	Sequence uint64
}

// NewCreationTimestamp builds a CreationTimestamp from explicit fields.
func NewCreationTimestamp(t DtnTime, sequence uint64) CreationTimestamp {
	return CreationTimestamp{Time: t, Sequence: sequence}
}

// CreationTimestampNow returns a CreationTimestamp for the current instant,
// its sequence number monotonically increasing for repeated calls within
// the same second.
func CreationTimestampNow() CreationTimestamp {
	now := DtnTimeNow()
	return CreationTimestamp{Time: now, Sequence: creationSequencer.next_(now)}
}

// IsZeroTime reports whether the time part is the DTN epoch, indicating the
// lack of an accurate clock at creation time.
func (ct CreationTimestamp) IsZeroTime() bool {
	return ct.Time == DtnTimeEpoch
}

func (ct CreationTimestamp) String() string {
	return fmt.Sprintf("(%v, %d)", ct.Time, ct.Sequence)
}
