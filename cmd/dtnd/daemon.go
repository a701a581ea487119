// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/agent"
	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
	"github.com/dtn-go/bpagent/cla/tcpcl"
	"github.com/dtn-go/bpagent/config"
	"github.com/dtn-go/bpagent/daemon"
	"github.com/dtn-go/bpagent/link"
	"github.com/dtn-go/bpagent/routing"
	"github.com/dtn-go/bpagent/store"
)

// contactTick is how often the ContactManager checks for due link retries
// and idle ONDEMAND links.
const contactTick = 2 * time.Second

// pendingRetryInterval is how often the Daemon retries bundles still held
// pending in the store, e.g. ones that arrived before any link to their
// next hop was available.
const pendingRetryInterval = 10 * time.Second

// linkBinding remembers the dial address and currently active
// ConvergenceSender for one configured link. link.Contact is
// reference-counted but holds no pointer to the actual convergence-layer
// session, so the Daemon keeps that association here instead.
type linkBinding struct {
	link    *link.Link
	address string
	listen  bool

	mutex  sync.Mutex
	sender cla.ConvergenceSender
}

// Daemon wires the bundle store, convergence layer manager, link table and
// routing engine into a running node, the way core.Core did for the
// teacher's bpv7 stack -- adapted to a link-state-machine-driven CLA
// supervision rather than a single flat RoutingAlgorithm/Core coupling.
type Daemon struct {
	localEID bundle.EndpointID

	store store.Store

	claManager *cla.Manager
	listener   *tcpcl.Listener
	claParams  tcpcl.Params

	contactMgr *link.ContactManager

	mutex    sync.Mutex
	bindings map[string]*linkBinding

	router routing.Router

	events *daemon.EventQueue
	cron   *daemon.Cron

	mux *agent.Mux

	stopSyn chan struct{}
	stopAck chan struct{}
}

// NewDaemon builds a Daemon from a fully loaded Configuration. The
// returned Daemon is already running: its background goroutines, cron
// jobs and any listening socket are live.
func NewDaemon(conf *config.Configuration) (*Daemon, error) {
	localEID, err := bundle.NewEndpointID(conf.Node.LocalEID)
	if err != nil {
		return nil, fmt.Errorf("dtnd: invalid node.local_eid: %w", err)
	}
	if !localEID.IsSingleton() {
		return nil, fmt.Errorf("dtnd: node.local_eid must be a singleton endpoint, %s is not", conf.Node.LocalEID)
	}

	var bundleStore store.Store
	switch conf.Node.StoreType {
	case "", "memory":
		bundleStore = store.NewMemoryStore()
	case "file":
		if conf.Node.PayloadDir == "" {
			return nil, fmt.Errorf("dtnd: node.payload_dir is required for node.storage_type = \"file\"")
		}
		fileStore, ferr := store.NewFileStore(conf.Node.PayloadDir)
		if ferr != nil {
			return nil, fmt.Errorf("dtnd: opening file store: %w", ferr)
		}
		bundleStore = fileStore
	default:
		return nil, fmt.Errorf("dtnd: unknown node.storage_type %q", conf.Node.StoreType)
	}

	router, rerr := newRouter(localEID, conf.Router)
	if rerr != nil {
		return nil, rerr
	}

	d := &Daemon{
		localEID:   localEID,
		store:      bundleStore,
		claManager: cla.NewManager(),
		bindings:   make(map[string]*linkBinding),
		router:     router,
		events:     daemon.NewEventQueue(),
		cron:       daemon.NewCron(),
		mux:        agent.NewMux(),
		claParams: tcpcl.Params{
			KeepaliveInterval:   conf.CLA.KeepaliveInterval,
			PartialAckLen:       conf.CLA.PartialAckLength,
			BundleAckEnabled:    true,
			ReactiveFragEnabled: conf.CLA.ReactiveFragEnabled,
		},
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	d.events.Subscribe(d.router)

	linkParams := link.Params{
		MinRetryInterval: conf.CLA.RetryMinInterval.Duration,
		MaxRetryInterval: conf.CLA.RetryMaxInterval.Duration,
		IdleCloseTime:    conf.CLA.IdleCloseTime.Duration,
		BusyQueueDepth:   conf.CLA.BusyQueueDepth,
	}
	d.contactMgr = link.NewContactManager(d.openLink, contactTick)

	var listenAddr string
	for _, lc := range conf.Link {
		if lc.Listen && listenAddr == "" {
			listenAddr = lc.Address
		}
		if err := d.addLink(lc, linkParams); err != nil {
			return nil, fmt.Errorf("dtnd: configuring link %s: %w", lc.Name, err)
		}
	}

	if listenAddr != "" {
		listener := tcpcl.NewListener(listenAddr, localEID, d.claParams)
		listener.SetPeerResolver(d.resolvePeerEID)
		listener.RegisterManager(d.claManager)
		if err := d.claManager.Register(listener); err != nil {
			return nil, fmt.Errorf("dtnd: starting tcpcl listener on %s: %w", listenAddr, err)
		}
		d.listener = listener
	}

	if err := d.cron.Register("pending_bundles", d.retryPending, pendingRetryInterval); err != nil {
		log.WithError(err).Warn("dtnd: failed to register pending_bundles cron job")
	}

	if dtlsr, ok := router.(*routing.DTLSR); ok {
		// Tick is driven at MinLSAInterval cadence so its own internal
		// due/urgent check (routing/dtlsr.go) can react promptly to a
		// topology change; the full LSAInterval is enforced by Tick itself.
		tickInterval := conf.Router.MinLSAInterval.Duration
		if tickInterval < time.Second {
			tickInterval = 5 * time.Second
		}
		if err := d.cron.Register("dtlsr_tick", dtlsr.Tick, tickInterval); err != nil {
			log.WithError(err).Warn("dtnd: failed to register dtlsr_tick cron job")
		}
		go d.drainOutbox(dtlsr.Outbox())
	}

	go d.run()

	return d, nil
}

func newRouter(localEID bundle.EndpointID, conf config.RouterConf) (routing.Router, error) {
	switch conf.RouterType {
	case "", "epidemic":
		return routing.NewEpidemic(), nil

	case "dtlsr":
		var weightFn routing.WeightFunction
		switch conf.WeightFn {
		case "", "cost":
			weightFn = routing.WeightCost
		case "delay":
			weightFn = routing.WeightDelay
		case "estimated_delay":
			weightFn = routing.WeightEstimatedDelay
		default:
			return nil, fmt.Errorf("dtnd: unknown router.weight_fn %q", conf.WeightFn)
		}

		return routing.NewDTLSR(localEID, routing.DTLSRConfig{
			LSAInterval:    conf.LSAInterval.Duration,
			MinLSAInterval: conf.MinLSAInterval.Duration,
			LSALifetime:    conf.LSALifetime.Duration,
			WeightFn:       weightFn,
			WeightShift:    conf.WeightShift,
			KeepDownLinks:  conf.KeepDownLinks,
		}), nil

	default:
		return nil, fmt.Errorf("dtnd: unknown router.router_type %q", conf.RouterType)
	}
}

// addLink registers a configured peer as a supervised Link, keyed by its
// name, and remembers the address its convergence layer session dials.
func (d *Daemon) addLink(lc config.LinkConf, params link.Params) error {
	nextHop, err := bundle.NewEndpointID(lc.NextHop)
	if err != nil {
		return fmt.Errorf("link.next_hop %q: %w", lc.NextHop, err)
	}

	var linkType link.Type
	switch lc.LinkType {
	case "", "alwayson":
		linkType = link.AlwaysOn
	case "ondemand":
		linkType = link.OnDemand
	case "scheduled":
		linkType = link.Scheduled
	case "opportunistic":
		linkType = link.Opportunistic
	default:
		return fmt.Errorf("link.link_type %q is not recognized", lc.LinkType)
	}

	l := link.New(lc.Name, nextHop, linkType, "tcpcl", params)

	d.mutex.Lock()
	d.bindings[lc.Name] = &linkBinding{link: l, address: lc.Address, listen: lc.Listen}
	d.mutex.Unlock()

	d.contactMgr.Add(l)
	return nil
}

// resolvePeerEID looks up the endpoint id configured for an inbound
// connection's remote address, falling back to bundle.DtnNone when the
// address is not found in the link table; the peer's real identity is
// then only learned once a bundle from it is received.
func (d *Daemon) resolvePeerEID(remoteAddr string) bundle.EndpointID {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, b := range d.bindings {
		if b.address == remoteAddr {
			return b.link.NextHop()
		}
	}
	return bundle.DtnNone()
}

// openLink is the link.Opener invoked by the ContactManager to dial an
// UNAVAILABLE link back to OPEN. It blocks for the duration of the TCPCL
// contact handshake.
func (d *Daemon) openLink(l *link.Link) error {
	d.mutex.Lock()
	binding, ok := d.bindings[l.Name()]
	d.mutex.Unlock()
	if !ok {
		return fmt.Errorf("dtnd: no binding for link %s", l.Name())
	}

	client := tcpcl.DialClient(binding.address, d.localEID, l.NextHop(), l.Type() == link.AlwaysOn, d.claParams)
	if err := d.claManager.Register(client); err != nil {
		return err
	}

	binding.mutex.Lock()
	binding.sender = client
	binding.mutex.Unlock()

	if err := l.HandshakeComplete(); err != nil {
		log.WithFields(log.Fields{"link": l.Name(), "error": err}).Warn("dtnd: link handshake completed in unexpected state")
	}

	d.router.ReportPeerAppeared(client)
	d.events.Post(daemon.Event{Kind: daemon.ContactUp, Posted: time.Now(), LinkName: l.Name()})

	return nil
}

// run is the Daemon's own single-reader loop over ConvergenceStatus
// messages from every supervised CLA, posting the corresponding Events to
// the EventQueue and driving bundle reception/dispatch.
func (d *Daemon) run() {
	for {
		select {
		case <-d.stopSyn:
			close(d.stopAck)
			return

		case cs, ok := <-d.claManager.Channel():
			if !ok {
				close(d.stopAck)
				return
			}
			d.handleStatus(cs)
		}
	}
}

func (d *Daemon) handleStatus(cs cla.ConvergenceStatus) {
	switch cs.MessageType {
	case cla.ReceivedBundle:
		crb := cs.Message.(cla.ConvergenceReceivedBundle)
		d.receive(crb.Bundle)

	case cla.PeerAppeared:
		d.router.ReportPeerAppeared(cs.Sender)
		d.retryPending()

	case cla.PeerDisappeared:
		d.router.ReportPeerDisappeared(cs.Sender)
		d.clearSender(cs.Sender)
		d.events.Post(daemon.Event{Kind: daemon.ContactDown, Posted: time.Now()})

	case cla.ReactiveFragment:
		d.receive(cs.Message.(bundle.Bundle))
	}
}

func (d *Daemon) clearSender(conv cla.Convergence) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	for _, b := range d.bindings {
		b.mutex.Lock()
		if b.sender == conv {
			b.sender = nil
		}
		b.mutex.Unlock()
	}
}

// receive processes one bundle handed up from a convergence layer: it is
// stored, posted to the EventQueue for routing bookkeeping, delivered
// locally if destined here, and otherwise handed to the router for
// forwarding.
func (d *Daemon) receive(b bundle.Bundle) {
	if err := d.store.Put(b); err != nil {
		log.WithFields(log.Fields{"bundle": b.ID(), "error": err}).Warn("dtnd: failed to store received bundle")
	}

	d.events.Post(daemon.Event{Kind: daemon.BundleReceived, Posted: time.Now(), Bundle: b})

	if b.PrimaryBlock.Destination.SameNode(d.localEID) {
		if d.mux.Deliver(b) {
			if err := d.store.Del(b.ID()); err != nil && err != store.ErrNotFound {
				log.WithFields(log.Fields{"bundle": b.ID(), "error": err}).Warn("dtnd: failed to delete delivered bundle")
			}
			d.events.Post(daemon.Event{Kind: daemon.BundleDelivered, Posted: time.Now(), Bundle: b})
		} else {
			log.WithField("bundle", b.ID()).Debug("dtnd: no local agent for bundle destination")
		}
		return
	}

	d.forward(b)
}

// forward asks the router which currently active senders, if any, should
// receive b, and hands it to each.
func (d *Daemon) forward(b bundle.Bundle) {
	peers := d.claManager.Sender()
	if len(peers) == 0 {
		return
	}

	chosen, done := d.router.SendersFor(b, peers)
	for _, sender := range chosen {
		if err := sender.Send(b); err != nil {
			log.WithFields(log.Fields{"bundle": b.ID(), "peer": sender.PeerEndpointID(), "error": err}).
				Warn("dtnd: failed to send bundle to peer")
			continue
		}
		d.events.Post(daemon.Event{Kind: daemon.BundleTransmitted, Posted: time.Now(), Bundle: b})
	}

	if done || d.router.CanDeleteBundle(b) {
		if err := d.store.Del(b.ID()); err != nil && err != store.ErrNotFound {
			log.WithFields(log.Fields{"bundle": b.ID(), "error": err}).Warn("dtnd: failed to delete dispatched bundle")
		}
		d.events.Post(daemon.Event{Kind: daemon.BundleFree, Posted: time.Now(), Bundle: b})
	}
}

// retryPending re-attempts forwarding for every bundle still held in the
// store, e.g. ones that arrived before any peer was reachable.
func (d *Daemon) retryPending() {
	ids, err := d.store.Iterate()
	if err != nil {
		log.WithError(err).Warn("dtnd: failed to iterate store for pending bundles")
		return
	}

	for _, id := range ids {
		rec, err := d.store.Get(id)
		if err != nil || rec.Fragmented {
			continue
		}
		d.forward(rec.Bundle)
	}
}

// drainOutbox sends every LSA bundle a link-state router produces to
// every currently active peer.
func (d *Daemon) drainOutbox(outbox <-chan bundle.Bundle) {
	for b := range outbox {
		for _, sender := range d.claManager.Sender() {
			if err := sender.Send(b); err != nil {
				log.WithFields(log.Fields{"bundle": b.ID(), "peer": sender.Address(), "error": err}).Warn("dtnd: failed to send LSA bundle to peer")
			}
		}
	}
}

// Send injects a locally originated bundle, e.g. one built by an
// ApplicationAgent, into the dispatch pipeline.
func (d *Daemon) Send(b bundle.Bundle) {
	if err := d.store.Put(b); err != nil {
		log.WithFields(log.Fields{"bundle": b.ID(), "error": err}).Warn("dtnd: failed to store outgoing bundle")
	}
	d.events.Post(daemon.Event{Kind: daemon.BundleInjected, Posted: time.Now(), Bundle: b})
	d.forward(b)
}

// RegisterAgent adds app to the Mux and posts a RegistrationAdded event so
// the router can act on newly reachable local endpoints.
func (d *Daemon) RegisterAgent(app agent.ApplicationAgent) {
	d.mux.Register(app)
	d.events.Post(daemon.Event{Kind: daemon.RegistrationAdded, Posted: time.Now()})
}

// Close shuts the Daemon and every subsystem it owns down.
func (d *Daemon) Close() {
	close(d.stopSyn)
	<-d.stopAck

	d.contactMgr.Stop()
	d.claManager.Close()
	d.cron.Stop()
	d.events.Stop()
	d.mux.Close()

	if err := d.store.Close(); err != nil {
		log.WithError(err).Warn("dtnd: error closing store")
	}
}
