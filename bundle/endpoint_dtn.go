// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	dtnEndpointSchemeName string = "dtn"
	dtnEndpointDtnNoneSsp string = "none"
)

// DtnEndpoint is the "dtn" URI scheme for EndpointIDs, e.g. "dtn://foo/bar"
// or the designated null endpoint "dtn:none".
type DtnEndpoint struct {
	Ssp string
}

var dtnEndpointRe = regexp.MustCompile("^" + dtnEndpointSchemeName + ":(.+)$")

// NewDtnEndpoint parses an URI with the "dtn" scheme.
func NewDtnEndpoint(uri string) (EndpointType, error) {
	if !dtnEndpointRe.MatchString(uri) {
		return nil, fmt.Errorf("bundle: %q does not match a dtn endpoint", uri)
	}
	return DtnEndpoint{Ssp: dtnEndpointRe.FindStringSubmatch(uri)[1]}, nil
}

// DtnNone is the designated null endpoint, "dtn:none".
func DtnNone() EndpointID {
	return EndpointID{DtnEndpoint{Ssp: dtnEndpointDtnNoneSsp}}
}

func (DtnEndpoint) SchemeName() string { return dtnEndpointSchemeName }

func (e DtnEndpoint) IsNone() bool { return e.Ssp == dtnEndpointDtnNoneSsp }

func (e DtnEndpoint) parseUri() (authority, path string) {
	var tmp string
	if !strings.HasPrefix(e.Ssp, "//") {
		tmp = (DtnEndpoint{Ssp: "//" + e.Ssp}).String()
	} else {
		tmp = e.String()
	}

	u, err := url.Parse(tmp)
	if err != nil {
		return "", ""
	}
	return u.Hostname(), u.RequestURI()
}

func (e DtnEndpoint) Authority() string {
	authority, _ := e.parseUri()
	return authority
}

func (e DtnEndpoint) Path() string {
	_, path := e.parseUri()
	return path
}

// IsSingleton follows the DTN2/RFC 5050 convention: an authority ending in
// "*" (e.g. "dtn://*/dtlsr") is a wildcard group, everything else names a
// single node.
func (e DtnEndpoint) IsSingleton() bool {
	if e.IsNone() {
		return false
	}
	authority, _ := e.parseUri()
	return !strings.HasSuffix(authority, "*")
}

func (e DtnEndpoint) String() string {
	return fmt.Sprintf("%s:%s", dtnEndpointSchemeName, e.Ssp)
}
