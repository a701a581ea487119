// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import "github.com/dtn-go/bpagent/bundle"

// RestRegisterRequest is the JSON body POSTed to /register.
type RestRegisterRequest struct {
	EndpointID string `json:"endpoint_id"`
}

// RestRegisterResponse is the JSON response from /register.
type RestRegisterResponse struct {
	Error string `json:"error,omitempty"`
	UUID  string `json:"uuid"`
}

// RestUnregisterRequest is the JSON body POSTed to /unregister.
type RestUnregisterRequest struct {
	UUID string `json:"uuid"`
}

// RestUnregisterResponse is the JSON response from /unregister.
type RestUnregisterResponse struct {
	Error string `json:"error,omitempty"`
}

// RestFetchRequest is the JSON body POSTed to /fetch; it drains the
// client's mailbox of bundles received since the last fetch.
type RestFetchRequest struct {
	UUID string `json:"uuid"`
}

// RestFetchResponse is the JSON response from /fetch.
type RestFetchResponse struct {
	Error   string          `json:"error,omitempty"`
	Bundles []bundle.Bundle `json:"bundles"`
}

// RestBuildRequest is the JSON body POSTed to /build. Arguments mirrors the
// subset of BundleBuilder's calls a REST client may need, JSON-encodable
// in place of the Go-only BundleBuilder chain.
type RestBuildRequest struct {
	UUID      string        `json:"uuid"`
	Arguments RestBuildArgs `json:"arguments"`
}

// RestBuildArgs describes a bundle to be built on a client's behalf.
type RestBuildArgs struct {
	Destination string `json:"destination"`
	Source      string `json:"source"`
	Lifetime    string `json:"lifetime"`
	Payload     []byte `json:"payload"`
}

// RestBuildResponse is the JSON response from /build.
type RestBuildResponse struct {
	Error string `json:"error,omitempty"`
}
