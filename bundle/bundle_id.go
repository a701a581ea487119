// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"strings"
)

// BundleID identifies a bundle by its source node and creation timestamp,
// plus the fragment offset and original length if it is a fragment.
type BundleID struct {
	SourceNode EndpointID
	Timestamp CreationTimestamp

	IsFragment bool
	FragmentOffset uint64
	TotalDataLength uint64
}

func (bid BundleID) String() string {
	var bldr strings.Builder

	fmt.Fprintf(&bldr, "%v-%d-%d", bid.SourceNode, bid.Timestamp.Time, bid.Timestamp.Sequence)

	if bid.IsFragment {
		fmt.Fprintf(&bldr, "-%d-%d", bid.FragmentOffset, bid.TotalDataLength)
	}

	return bldr.String()
}

// Scrub returns a copy of bid with its fragmentation fields cleared, so a
// whole bundle and any of its fragments resolve to the same store key.
func (bid BundleID) Scrub() BundleID {
	return BundleID{SourceNode: bid.SourceNode, Timestamp: bid.Timestamp}
}

// Equal reports whether bid and other identify the same bundle (or the
// same fragment of the same bundle).
func (bid BundleID) Equal(other BundleID) bool {
	if bid.SourceNode.String() != other.SourceNode.String() ||
		bid.Timestamp != other.Timestamp ||
		bid.IsFragment != other.IsFragment {
		return false
	}
	if !bid.IsFragment {
		return true
	}
	return bid.FragmentOffset == other.FragmentOffset && bid.TotalDataLength == other.TotalDataLength
}
