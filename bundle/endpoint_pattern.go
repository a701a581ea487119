// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import "strings"

// EndpointIDPattern is a pattern that an EndpointID may be matched against,
// as used by registrations and route table entries. Distinguishing a
// pattern from a concrete EndpointID at the type level prevents accidental
// pattern/endpoint confusion.
//
// Three forms are supported:
// - exact: "dtn://foo/bar" matches only that one EndpointID
// - trailing wildcard: "dtn://foo/*" matches any path under authority "foo"
// - null: "dtn:none" never matches anything
type EndpointIDPattern struct {
	scheme string
	authority string
	path string
	isWildcard bool
	isNone bool
}

// NewEndpointIDPattern parses a pattern URI. A path ending in "*" is
// interpreted as a trailing wildcard over anything sharing that prefix.
func NewEndpointIDPattern(uri string) (EndpointIDPattern, error) {
	eid, err := NewEndpointID(strings.TrimSuffix(uri, "*"))
	if err != nil {
		return EndpointIDPattern{}, err
	}

	return EndpointIDPattern{
		scheme: eid.EndpointType.SchemeName(),
		authority: eid.Authority(),
		path: eid.Path(),
		isWildcard: strings.HasSuffix(uri, "*"),
		isNone: eid.IsNone(),
	}, nil
}

// MustNewEndpointIDPattern is like NewEndpointIDPattern but panics on error.
func MustNewEndpointIDPattern(uri string) EndpointIDPattern {
	p, err := NewEndpointIDPattern(uri)
	if err != nil {
		panic(err)
	}
	return p
}

// Match reports whether eid is matched by this pattern.
func (p EndpointIDPattern) Match(eid EndpointID) bool {
	if p.isNone || eid.IsZero() {
		return false
	}
	if eid.EndpointType.SchemeName() != p.scheme || eid.Authority() != p.authority {
		return false
	}
	if p.isWildcard {
		return strings.HasPrefix(eid.Path(), p.path)
	}
	return eid.Path() == p.path
}

func (p EndpointIDPattern) String() string {
	suffix := ""
	if p.isWildcard {
		suffix = "*"
	}
	return p.scheme + "://" + p.authority + p.path + suffix
}
