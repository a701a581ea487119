// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/agent"
	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/config"
)

// buildDaemon loads a Configuration from filename, applies its logging
// section, starts the Daemon it describes and registers every configured
// ApplicationAgent with it.
func buildDaemon(filename string) (*Daemon, error) {
	conf, err := config.Load(filename)
	if err != nil {
		return nil, err
	}

	applyLogging(conf.Logging)

	d, err := NewDaemon(conf)
	if err != nil {
		return nil, err
	}

	if err := registerAgents(d, conf.Agents); err != nil {
		d.Close()
		return nil, fmt.Errorf("dtnd: configuring agents: %w", err)
	}

	return d, nil
}

func applyLogging(conf config.LoggingConf) {
	if conf.Level != "" {
		if lvl, err := log.ParseLevel(conf.Level); err != nil {
			log.WithFields(log.Fields{
				"level":    conf.Level,
				"error":    err,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("dtnd: failed to set log level")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.ReportCaller)

	switch conf.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})
	case "json":
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	default:
		log.Warn("dtnd: unknown logging.format")
	}
}

// registerAgents wires the configured REST/websocket/ping ApplicationAgents
// into the Daemon, and hands outgoing Messages from the Mux back to the
// Daemon's dispatch pipeline.
func registerAgents(d *Daemon, conf config.AgentsConf) error {
	var registered bool

	if conf.Webserver != (config.WebserverConf{}) {
		if !conf.Webserver.Websocket && !conf.Webserver.Rest {
			return fmt.Errorf("agents.webserver needs at least one of rest or websocket enabled")
		}

		router := mux.NewRouter()

		if conf.Webserver.Websocket {
			ws := agent.NewWebsocketAgent()
			router.HandleFunc("/ws", ws.ServeHTTP)
			d.RegisterAgent(ws)
			registered = true
		}

		if conf.Webserver.Rest {
			restRouter := router.PathPrefix("/rest").Subrouter()
			ra := agent.NewRestAgent(restRouter, agent.Defer)
			d.RegisterAgent(ra)
			registered = true
		}

		httpServer := &http.Server{Addr: conf.Webserver.Address, Handler: router}
		errChan := make(chan error, 1)
		go func() { errChan <- httpServer.ListenAndServe() }()

		select {
		case err := <-errChan:
			return fmt.Errorf("starting agents webserver on %s: %w", conf.Webserver.Address, err)
		case <-time.After(100 * time.Millisecond):
		}
	}

	if conf.Ping != "" {
		eid, err := bundle.NewEndpointID(conf.Ping)
		if err != nil {
			return fmt.Errorf("agents.ping: %w", err)
		}
		d.RegisterAgent(agent.NewPing(eid))
		registered = true
	}

	if registered {
		go drainAgentMessages(d)
	}

	return nil
}

// drainAgentMessages forwards every bundle an ApplicationAgent wants to
// send into the Daemon's dispatch pipeline.
func drainAgentMessages(d *Daemon) {
	for msg := range d.mux.MessageSender() {
		switch m := msg.(type) {
		case agent.BundleMessage:
			d.Send(m.Bundle)
		}
	}
}
