// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import "github.com/dtn-go/bpagent/bundle"

// wsEnvelope is decoded first to dispatch a raw websocket frame to its
// concrete message type by its "type" discriminator field.
type wsEnvelope struct {
	Type string `json:"type"`
}

// WsRegisterMessage registers a connection for an endpoint ID.
type WsRegisterMessage struct {
	Type       string `json:"type"`
	EndpointID string `json:"endpoint_id"`
}

// WsBundleMessage carries a bundle in either direction over a websocket
// connection.
type WsBundleMessage struct {
	Type   string         `json:"type"`
	Bundle bundle.Bundle `json:"bundle"`
}
