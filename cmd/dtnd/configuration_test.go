// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"testing"

	"github.com/dtn-go/bpagent/config"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	d, err := NewDaemon(minimalConf())
	if err != nil {
		t.Fatalf("NewDaemon: %v", err)
	}
	t.Cleanup(d.Close)
	return d
}

func TestRegisterAgentsEmptyConfig(t *testing.T) {
	d := newTestDaemon(t)

	if err := registerAgents(d, config.AgentsConf{}); err != nil {
		t.Fatalf("registerAgents: %v", err)
	}
}

func TestRegisterAgentsPingInvalidEndpoint(t *testing.T) {
	d := newTestDaemon(t)

	if err := registerAgents(d, config.AgentsConf{Ping: "not a uri"}); err == nil {
		t.Fatal("expected an error for an invalid agents.ping endpoint")
	}
}

func TestRegisterAgentsPingValid(t *testing.T) {
	d := newTestDaemon(t)

	if err := registerAgents(d, config.AgentsConf{Ping: "dtn://node/ping"}); err != nil {
		t.Fatalf("registerAgents: %v", err)
	}
}

func TestRegisterAgentsWebserverNeedsOneOption(t *testing.T) {
	d := newTestDaemon(t)

	err := registerAgents(d, config.AgentsConf{
		Webserver: config.WebserverConf{Address: "127.0.0.1:0"},
	})
	if err == nil {
		t.Fatal("expected an error when neither rest nor websocket is enabled")
	}
}

func TestRegisterAgentsWebserverRestAndWebsocketShareOneAddress(t *testing.T) {
	d := newTestDaemon(t)

	err := registerAgents(d, config.AgentsConf{
		Webserver: config.WebserverConf{
			Address:   "127.0.0.1:0",
			Rest:      true,
			Websocket: true,
		},
	})
	if err != nil {
		t.Fatalf("registerAgents: %v", err)
	}
}

func TestApplyLoggingUnknownLevelDoesNotPanic(t *testing.T) {
	applyLogging(config.LoggingConf{Level: "bogus", Format: "json"})
}

func TestApplyLoggingDefaults(t *testing.T) {
	applyLogging(config.LoggingConf{})
}
