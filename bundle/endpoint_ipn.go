// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bundle

import (
	"fmt"
	"regexp"
	"strconv"
)

const ipnEndpointSchemeName string = "ipn"

// IpnEndpoint describes the "ipn" URI scheme for EndpointIDs, as defined in
// RFC 6260: "ipn:<node>.<service>".
type IpnEndpoint struct {
	Node    uint64
	Service uint64
}

var ipnEndpointRe = regexp.MustCompile(`^` + ipnEndpointSchemeName + `:(\d+)\.(\d+)$`)

// NewIpnEndpoint parses an URI with the "ipn" scheme.
func NewIpnEndpoint(uri string) (EndpointType, error) {
	matches := ipnEndpointRe.FindStringSubmatch(uri)
	if len(matches) != 3 {
		return nil, fmt.Errorf("bundle: %q does not match an ipn endpoint", uri)
	}

	node, err := strconv.ParseUint(matches[1], 10, 64)
	if err != nil {
		return nil, err
	}
	service, err := strconv.ParseUint(matches[2], 10, 64)
	if err != nil {
		return nil, err
	}

	e := IpnEndpoint{Node: node, Service: service}
	if e.Node < 1 || e.Service < 1 {
		return nil, fmt.Errorf("bundle: ipn node and service numbers must be >= 1")
	}
	return e, nil
}

func (IpnEndpoint) SchemeName() string { return ipnEndpointSchemeName }

func (e IpnEndpoint) Authority() string { return fmt.Sprintf("%d", e.Node) }
func (e IpnEndpoint) Path() string      { return fmt.Sprintf("%d", e.Service) }

// IsSingleton is always true: every ipn endpoint names exactly one service
// on exactly one node.
func (IpnEndpoint) IsSingleton() bool { return true }

func (IpnEndpoint) IsNone() bool { return false }

func (e IpnEndpoint) String() string {
	return fmt.Sprintf("%s:%d.%d", ipnEndpointSchemeName, e.Node, e.Service)
}
