// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import "github.com/hashicorp/go-multierror"

// BundleControlFlags are the bundle processing flags, packed into an
// SDNV on the wire.
type BundleControlFlags uint32

const (
	// IsFragment marks the bundle as carrying a sub-range of some original
	// payload.
	IsFragment BundleControlFlags = 1 << 0

	// AdministrativeRecordPayload marks the payload as an administrative
	// record (status report or custody signal) rather than application data.
	AdministrativeRecordPayload BundleControlFlags = 1 << 1

	// MustNotFragment forbids the agent from ever fragmenting this bundle.
	MustNotFragment BundleControlFlags = 1 << 2

	// CustodyRequested asks the receiving node to accept custody.
	CustodyRequested BundleControlFlags = 1 << 3

	// SingletonDestination marks the destination EID as naming exactly one
	// node, as opposed to a multicast group.
	SingletonDestination BundleControlFlags = 1 << 4

	// AppAcknowledgementRequested asks the destination application to send
	// a delivery acknowledgement.
	AppAcknowledgementRequested BundleControlFlags = 1 << 5

	priorityShift = 6
	priorityMask = BundleControlFlags(0x3) << priorityShift

	// StatusRequestReceive asks for a status report upon reception.
	StatusRequestReceive BundleControlFlags = 1 << 8
	// StatusRequestCustodyAccepted asks for a status report upon custody acceptance.
	StatusRequestCustodyAccepted BundleControlFlags = 1 << 9
	// StatusRequestForwarded asks for a status report upon forwarding.
	StatusRequestForwarded BundleControlFlags = 1 << 10
	// StatusRequestDelivered asks for a status report upon delivery.
	StatusRequestDelivered BundleControlFlags = 1 << 11
	// StatusRequestDeleted asks for a status report upon deletion.
	StatusRequestDeleted BundleControlFlags = 1 << 12
	// StatusRequestAppAcknowledged asks for a status report upon application acknowledgement.
	StatusRequestAppAcknowledged BundleControlFlags = 1 << 13

	bndlCFReservedFields BundleControlFlags = ^BundleControlFlags(0) << 14
)

// Priority is the class-of-service field.
type Priority uint8

const (
	PriorityBulk Priority = iota
	PriorityNormal
	PriorityExpedited
)

// Has reports whether every bit in flag is set.
func (bcf BundleControlFlags) Has(flag BundleControlFlags) bool {
	return bcf&flag == flag
}

// Priority extracts the class-of-service bits.
func (bcf BundleControlFlags) Priority() Priority {
	return Priority((bcf & priorityMask) >> priorityShift)
}

// WithPriority returns bcf with its priority bits replaced.
func (bcf BundleControlFlags) WithPriority(p Priority) BundleControlFlags {
	return (bcf &^ priorityMask) | (BundleControlFlags(p)<<priorityShift)&priorityMask
}

func (bcf BundleControlFlags) checkValid() (errs error) {
	if bcf.Has(bndlCFReservedFields) {
		errs = multierror.Append(errs, newBundleError("BundleControlFlags: reserved bits are set"))
	}

	if bcf.Has(IsFragment) && bcf.Has(MustNotFragment) {
		errs = multierror.Append(errs, newBundleError(
			"BundleControlFlags: both 'is a fragment' and 'must not be fragmented' are set"))
	}

	adminOk := !bcf.Has(AdministrativeRecordPayload) ||
		(!bcf.Has(StatusRequestReceive) &&
			!bcf.Has(StatusRequestForwarded) &&
			!bcf.Has(StatusRequestDelivered) &&
			!bcf.Has(StatusRequestDeleted))
	if !adminOk {
		errs = multierror.Append(errs, newBundleError(
			"BundleControlFlags: administrative payload must not request status reports"))
	}

	if bcf.Priority() > PriorityExpedited {
		errs = multierror.Append(errs, newBundleError("BundleControlFlags: invalid priority value"))
	}

	return
}
