// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"encoding/gob"
	"fmt"
	"regexp"
	"sync"
)

// EndpointType is the scheme-specific behaviour behind an EndpointID. Two
// concrete schemes are supported: "dtn" (DtnEndpoint) and "ipn" (IpnEndpoint).
type EndpointType interface {
	// SchemeName returns the static URI scheme, e.g. "dtn" or "ipn".
	SchemeName() string

	// Authority is the authority part of the URI, e.g. "foo" for "dtn://foo/bar".
	Authority() string

	// Path is the path part of the URI, e.g. "/bar" for "dtn://foo/bar".
	Path() string

	// IsSingleton reports whether this Endpoint names exactly one node.
	IsSingleton() bool

	// IsNone reports whether this is the designated null endpoint.
	IsNone() bool

	fmt.Stringer
}

type endpointManager struct {
	newMap map[string]func(string) (EndpointType, error)
}

var (
	endpointMngr *endpointManager
	endpointMutex sync.Mutex
)

func getEndpointManager() *endpointManager {
	endpointMutex.Lock()
	defer endpointMutex.Unlock()

	if endpointMngr == nil {
		endpointMngr = &endpointManager{
			newMap: map[string]func(string) (EndpointType, error){
				dtnEndpointSchemeName: NewDtnEndpoint,
				ipnEndpointSchemeName: NewIpnEndpoint,
			},
		}

		gob.Register(DtnEndpoint{})
		gob.Register(IpnEndpoint{})
	}

	return endpointMngr
}

var schemeRe = regexp.MustCompile("^([[:alnum:]]+):.+$")

// EndpointID is a URI naming a DTN endpoint. It represents a concrete
// endpoint, never a pattern -- see EndpointIDPattern for wildcard matching.
type EndpointID struct {
	EndpointType EndpointType
}

// NewEndpointID parses an URI, e.g. "dtn://seven/mail".
func NewEndpointID(uri string) (e EndpointID, err error) {
	matches := schemeRe.FindStringSubmatch(uri)
	if len(matches) == 0 {
		return EndpointID{}, fmt.Errorf("bundle: %q is not a valid endpoint URI", uri)
	}

	f, ok := getEndpointManager().newMap[matches[1]]
	if !ok {
		return EndpointID{}, fmt.Errorf("bundle: no scheme handler registered for %q", matches[1])
	}

	et, err := f(uri)
	if err != nil {
		return EndpointID{}, err
	}
	return EndpointID{et}, nil
}

// MustNewEndpointID parses uri like NewEndpointID but panics on error. Meant
// for literal endpoints known at compile time.
func MustNewEndpointID(uri string) EndpointID {
	e, err := NewEndpointID(uri)
	if err != nil {
		panic(err)
	}
	return e
}

func (eid EndpointID) Authority() string { return eid.EndpointType.Authority() }
func (eid EndpointID) Path() string { return eid.EndpointType.Path() }

func (eid EndpointID) IsSingleton() bool {
	return eid.EndpointType != nil && eid.EndpointType.IsSingleton()
}

func (eid EndpointID) IsNone() bool {
	return eid.EndpointType == nil || eid.EndpointType.IsNone()
}

// IsZero reports whether this EndpointID was never assigned an EndpointType.
func (eid EndpointID) IsZero() bool {
	return eid.EndpointType == nil
}

// SameNode reports whether eid and other name the same node, ignoring path.
func (eid EndpointID) SameNode(other EndpointID) bool {
	if eid.EndpointType == nil || other.EndpointType == nil {
		return false
	}
	return eid.EndpointType.SchemeName() == other.EndpointType.SchemeName() &&
		eid.EndpointType.Authority() == other.EndpointType.Authority()
}

func (eid EndpointID) String() string {
	if eid.EndpointType == nil {
		return DtnNone().String()
	}
	return eid.EndpointType.String()
}
