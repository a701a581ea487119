// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package config loads the agent's TOML configuration surface and
// watches the link table for hot reload, expanded from a single-section
// stcp-only listen/peer shape to the full node/store/router/link
// tunables this agent needs.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// NodeConf is the agent's own identity and storage configuration.
type NodeConf struct {
	LocalEID string `toml:"local_eid"`
	StoreType string `toml:"storage_type"` // "memory" or "file"
	PayloadDir string `toml:"payload_dir"`
}

// RouterConf selects and tunes the routing engine.
type RouterConf struct {
	RouterType string `toml:"router_type"` // "epidemic" or "dtlsr"

	LSAInterval Duration `toml:"lsa_interval"`
	MinLSAInterval Duration `toml:"min_lsa_interval"`
	LSALifetime Duration `toml:"lsa_lifetime"`
	WeightFn string `toml:"weight_fn"` // "cost", "delay", "estimated_delay"
	WeightShift uint `toml:"weight_shift"`
	UptimeFactor float64 `toml:"uptime_factor"`
	KeepDownLinks bool `toml:"keep_down_links"`
}

// CLAConf tunes the TCPCL convergence layer shared by every link.
type CLAConf struct {
	RetryMinInterval Duration `toml:"retry_interval_min"`
	RetryMaxInterval Duration `toml:"retry_interval_max"`
	IdleCloseTime Duration `toml:"idle_close_time"`
	BusyQueueDepth int `toml:"busy_queue_depth"`
	KeepaliveInterval uint16 `toml:"keepalive_interval"`
	PartialAckLength uint64 `toml:"partial_ack_length"`
	ReactiveFragEnabled bool `toml:"reactive_frag_enabled"`
}

// LinkConf describes one statically configured or discovered peer link.
type LinkConf struct {
	Name string `toml:"name"`
	NextHop string `toml:"next_hop"`
	Address string `toml:"address"`
	LinkType string `toml:"link_type"` // "alwayson", "ondemand", "scheduled", "opportunistic"
	Listen bool `toml:"listen"`
}

// LoggingConf tunes the agent's logrus output.
type LoggingConf struct {
	Level string `toml:"level"` // panic, fatal, error, warn, info, debug, trace
	ReportCaller bool `toml:"report_caller"`
	Format string `toml:"format"` // "text" or "json"
}

// AgentsConf enables the webserver-backed ApplicationAgents.
type AgentsConf struct {
	Webserver WebserverConf `toml:"webserver"`
	Ping string `toml:"ping"` // non-empty endpoint URI enables a PingAgent
}

// WebserverConf describes the REST and websocket application agents' HTTP
// front end, both served from the same address when enabled.
type WebserverConf struct {
	Address string `toml:"address"`
	Websocket bool `toml:"websocket"`
	Rest bool `toml:"rest"`
}

// Configuration is the whole of a node's TOML configuration surface.
type Configuration struct {
	Node NodeConf `toml:"node"`
	Logging LoggingConf `toml:"logging"`
	Router RouterConf `toml:"router"`
	CLA CLAConf `toml:"cla"`
	Agents AgentsConf `toml:"agents"`
	Link []LinkConf `toml:"link"`
}

// Duration unmarshals a TOML string like "30s" or "2m" into a time.Duration,
// the way agent/rest_agent.go parses lifetimes from strings.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("config: %q is not a valid duration: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// Load decodes a Configuration from a TOML file at path.
func Load(path string) (*Configuration, error) {
	var conf Configuration
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("config: failed to decode %s: %w", path, err)
	}

	if conf.Node.LocalEID == "" {
		return nil, fmt.Errorf("config: node.local_eid is required")
	}
	if conf.Router.RouterType == "" {
		conf.Router.RouterType = "epidemic"
	}

	return &conf, nil
}
