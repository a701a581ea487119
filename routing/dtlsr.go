// SPDX-FileCopyrightText: 2026 The bpagent Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/dtn-go/bpagent/bundle"
	"github.com/dtn-go/bpagent/cla"
	"github.com/dtn-go/bpagent/daemon"
	"github.com/dtn-go/bpagent/routing/graph"
	"github.com/dtn-go/bpagent/sdnv"
)

// EdgeState is the reported state of one DTLSR edge.
type EdgeState uint64

const (
	EdgeUp EdgeState = iota
	EdgeDown
)

// WeightFunction selects how a DTLSR edge's routing cost is derived from its
// advertised parameters. Only one is active at a time.
type WeightFunction int

const (
	// WeightCost uses the advertised Cost field directly.
	WeightCost WeightFunction = iota
	// WeightDelay uses the advertised Delay field directly.
	WeightDelay
	// WeightEstimatedDelay derives delay from queueing: Delay plus
	// (QSize/Bw) shifted to penalise congested links.
	WeightEstimatedDelay
)

// dtlsrEdge is the local bookkeeping kept for one advertised outbound edge,
// keyed by its link id, generalised to six edge parameters (cost, delay,
// bandwidth, queue count, queue size, state).
type dtlsrEdge struct {
	LinkID string
	Cost uint64
	Delay uint64
	Bw uint64
	QCount uint64
	QSize uint64
	State EdgeState

	lastHeard time.Time
	downSince time.Time
}

// lsa is one link-state advertisement: a node's full set of outbound edges
// at a point in time.
type lsa struct {
	source bundle.EndpointID
	seqno uint64
	created bundle.DtnTime
	edges map[string]dtlsrEdge // keyed by destination node id
	receivedAt time.Time // local receipt time, for keep_down_links ageing
}

const lsaMessageType = 1

// marshalLSA encodes an lsa into the administrative-bundle payload format:
// a one-byte message type, SDNV(seqno), SDNV(creation time), SDNV(edge
// count), then per edge the destination EID, the link id, and six SDNVs
// for cost/delay/bw/qcount/qsize/state.
func marshalLSA(l lsa) []byte {
	var buf bytes.Buffer
	buf.WriteByte(lsaMessageType)
	buf.Write(sdnv.Marshal(l.seqno))
	buf.Write(sdnv.Marshal(uint64(l.created)))
	buf.Write(sdnv.Marshal(uint64(len(l.edges))))

	for dest, e := range l.edges {
		destBytes := []byte(dest)
		buf.Write(sdnv.Marshal(uint64(len(destBytes))))
		buf.Write(destBytes)

		linkBytes := []byte(e.LinkID)
		buf.Write(sdnv.Marshal(uint64(len(linkBytes))))
		buf.Write(linkBytes)

		buf.Write(sdnv.Marshal(e.Cost))
		buf.Write(sdnv.Marshal(e.Delay))
		buf.Write(sdnv.Marshal(e.Bw))
		buf.Write(sdnv.Marshal(e.QCount))
		buf.Write(sdnv.Marshal(e.QSize))
		buf.Write(sdnv.Marshal(uint64(e.State)))
	}

	return buf.Bytes()
}

func unmarshalLSA(source bundle.EndpointID, data []byte) (lsa, error) {
	if len(data) < 1 || data[0] != lsaMessageType {
		return lsa{}, fmt.Errorf("routing: not an LSA payload")
	}
	off := 1

	read := func(label string) (uint64, error) {
		v, n, err := sdnv.Decode(data[off:])
		if err != nil {
			return 0, fmt.Errorf("routing: LSA %s: %w", label, err)
		}
		off += n
		return v, nil
	}

	seqno, err := read("seqno")
	if err != nil {
		return lsa{}, err
	}
	created, err := read("creation time")
	if err != nil {
		return lsa{}, err
	}
	nEdges, err := read("edge count")
	if err != nil {
		return lsa{}, err
	}

	edges := make(map[string]dtlsrEdge, nEdges)
	for i := uint64(0); i < nEdges; i++ {
		destLen, err := read("edge destination length")
		if err != nil {
			return lsa{}, err
		}
		if off+int(destLen) > len(data) {
			return lsa{}, fmt.Errorf("routing: LSA edge %d destination runs past end of data", i)
		}
		dest := string(data[off : off+int(destLen)])
		off += int(destLen)

		linkLen, err := read("edge link id length")
		if err != nil {
			return lsa{}, err
		}
		if off+int(linkLen) > len(data) {
			return lsa{}, fmt.Errorf("routing: LSA edge %d link id runs past end of data", i)
		}
		linkID := string(data[off : off+int(linkLen)])
		off += int(linkLen)

		cost, err := read("edge cost")
		if err != nil {
			return lsa{}, err
		}
		delay, err := read("edge delay")
		if err != nil {
			return lsa{}, err
		}
		bw, err := read("edge bw")
		if err != nil {
			return lsa{}, err
		}
		qcount, err := read("edge qcount")
		if err != nil {
			return lsa{}, err
		}
		qsize, err := read("edge qsize")
		if err != nil {
			return lsa{}, err
		}
		state, err := read("edge state")
		if err != nil {
			return lsa{}, err
		}

		edges[dest] = dtlsrEdge{
			LinkID: linkID, Cost: cost, Delay: delay, Bw: bw,
			QCount: qcount, QSize: qsize, State: EdgeState(state),
		}
	}

	return lsa{source: source, seqno: seqno, created: bundle.DtnTime(created), edges: edges, receivedAt: time.Now()}, nil
}

// DTLSRConfig configures one DTLSR instance.
type DTLSRConfig struct {
	LSAInterval time.Duration
	MinLSAInterval time.Duration
	LSALifetime time.Duration
	WeightFn WeightFunction
	WeightShift uint
	// KeepDownLinks, when true, keeps an edge in the graph priced at +Inf
	// once its owner stops advertising it rather than deleting it outright,
	// so a flapping link's last-known topology position is preserved.
	KeepDownLinks bool
}

// DTLSR is a link-state Router: local edges are advertised in periodic
// LSAs, remote LSAs build up a shared topology graph, and routes are the
// shortest path from the local node to each destination under the
// configured weight function.
//
// This runs over the generic routing/graph.Multigraph keyed directly by
// node id string, and frames its own SDNV-based LSA wire format rather
// than a CBOR-encoded block, since this agent's convergence layer has no
// CBOR block model.
type DTLSR struct {
	mutex sync.Mutex

	localID string
	config DTLSRConfig

	graph *graph.Multigraph[struct{}, dtlsrEdge]

	localEdges map[string]dtlsrEdge // this node's own outbound edges, keyed by dest node id
	seqno uint64
	lastSeqno map[string]uint64
	lastTS map[string]bundle.DtnTime

	routes map[string]string // dest node id -> next-hop link id
	localChanged bool
	lastBroadcast time.Time

	outbox chan bundle.Bundle
}

// NewDTLSR creates a DTLSR router for localID with the given configuration.
func NewDTLSR(localID bundle.EndpointID, config DTLSRConfig) *DTLSR {
	d := &DTLSR{
		localID: localID.String(),
		config: config,
		graph: graph.New[struct{}, dtlsrEdge](),
		localEdges: make(map[string]dtlsrEdge),
		lastSeqno: make(map[string]uint64),
		lastTS: make(map[string]bundle.DtnTime),
		routes: make(map[string]string),
		outbox: make(chan bundle.Bundle, 8),
	}
	d.graph.AddNode(d.localID, struct{}{})
	return d
}

// Outbox returns the channel LSA bundles are published on for the daemon to
// hand to the convergence layer. Non-blocking from the producer's side: a
// full outbox drops the newest LSA rather than stalling routing.
func (d *DTLSR) Outbox() <-chan bundle.Bundle {
	return d.outbox
}

func (d *DTLSR) weight(e graph.Edge[dtlsrEdge]) float64 {
	if e.Info.State == EdgeDown && !d.config.KeepDownLinks {
		return -1
	}
	if e.Info.State == EdgeDown {
		return 1.0e18
	}

	switch d.config.WeightFn {
	case WeightDelay:
		return float64(e.Info.Delay)
	case WeightEstimatedDelay:
		queueDelay := float64(0)
		if e.Info.Bw > 0 {
			queueDelay = float64(e.Info.QSize) / float64(e.Info.Bw)
		}
		return float64(e.Info.Delay) + queueDelay*float64(uint64(1)<<d.config.WeightShift)
	default:
		return float64(e.Info.Cost)
	}
}

// ReportPeerAppeared installs a local outbound edge to peer, using the
// peer's address as its link id, and marks the topology dirty for the next
// LSA broadcast.
func (d *DTLSR) ReportPeerAppeared(peer cla.Convergence) {
	sender, ok := peer.(cla.ConvergenceSender)
	if !ok {
		return
	}
	peerEID := sender.PeerEndpointID()
	if peerEID.IsZero() {
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.localEdges[peerEID.String()] = dtlsrEdge{
		LinkID: peer.Address(),
		Cost: 1, Delay: 1, Bw: 1, QCount: 0, QSize: 0,
		State: EdgeUp, lastHeard: time.Now(),
	}
	d.localChanged = true
}

// ReportPeerDisappeared marks the local edge to peer down rather than
// deleting it immediately, so the next LSA can advertise the transition.
func (d *DTLSR) ReportPeerDisappeared(peer cla.Convergence) {
	sender, ok := peer.(cla.ConvergenceSender)
	if !ok {
		return
	}
	peerEID := sender.PeerEndpointID()
	if peerEID.IsZero() {
		return
	}

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if e, ok := d.localEdges[peerEID.String()]; ok {
		e.State = EdgeDown
		e.downSince = time.Now()
		d.localEdges[peerEID.String()] = e
		d.localChanged = true
	}
}

// HandleEvent reacts to a received LSA bundle (by inspecting its
// destination against the dtn://*/dtlsr wildcard group) or a
// LinkStateChangeRequest prompting an immediate broadcast/recompute tick.
func (d *DTLSR) HandleEvent(evt daemon.Event) bool {
	switch evt.Kind {
	case daemon.BundleReceived:
		dest := evt.Bundle.PrimaryBlock.Destination
		if !isDtlsrDestination(dest) {
			return false
		}
		l, err := unmarshalLSA(evt.Bundle.PrimaryBlock.SourceNode, evt.Bundle.Payload)
		if err != nil {
			log.WithError(err).Warn("dtlsr: failed to parse LSA payload")
			return false
		}
		return d.absorbLSA(l)

	case daemon.LinkStateChangeRequest:
		d.Tick()
		return true

	default:
		return false
	}
}

func isDtlsrDestination(eid bundle.EndpointID) bool {
	dtn, ok := eid.EndpointType.(bundle.DtnEndpoint)
	if !ok {
		return false
	}
	return dtn.Authority() == "*" && strings.HasPrefix(dtn.Path(), "/dtlsr")
}

// absorbLSA applies a received LSA: one older than the last-seen (seqno,
// creation time) pair for its source is ignored outright; otherwise it
// replaces the prior one, updates/adds the edges it mentions, and marks
// every previously-advertised edge from that source it does NOT mention as
// down (or removes it if KeepDownLinks is false). It reports whether the
// LSA was applied.
func (d *DTLSR) absorbLSA(l lsa) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	source := l.source.String()
	if source == d.localID {
		return false
	}

	if lastSeq, ok := d.lastSeqno[source]; ok {
		lastTS := d.lastTS[source]
		if l.seqno <= lastSeq && l.created <= lastTS {
			log.WithFields(log.Fields{"source": source, "seqno": l.seqno}).Debug("dtlsr: stale LSA ignored")
			return false
		}
	}
	d.lastSeqno[source] = l.seqno
	d.lastTS[source] = l.created

	d.graph.AddNode(source, struct{}{})

	mentioned := make(map[string]bool, len(l.edges))
	for dest, e := range l.edges {
		mentioned[dest] = true
		d.graph.AddNode(dest, struct{}{})
		d.graph.AddEdge(source+"->"+dest, source, dest, e)
	}

	for _, e := range d.graph.EdgesFrom(source) {
		if mentioned[e.To] {
			continue
		}
		if d.config.KeepDownLinks {
			down := e.Info
			down.State = EdgeDown
			d.graph.AddEdge(e.ID, source, e.To, down)
		} else {
			d.graph.DelEdge(e.ID)
		}
	}

	d.recompute()
	return true
}

// Tick is driven by a periodic Cron job (or an urgent LinkStateChangeRequest):
// it broadcasts a fresh LSA if enough time has passed since the last one and
// the topology changed (or the periodic interval elapsed regardless), then
// recomputes routes.
func (d *DTLSR) Tick() {
	d.mutex.Lock()

	now := time.Now()
	due := now.Sub(d.lastBroadcast) >= d.config.LSAInterval
	urgent := d.localChanged && now.Sub(d.lastBroadcast) >= d.config.MinLSAInterval

	if !due && !urgent {
		d.mutex.Unlock()
		return
	}

	d.seqno++
	seqno := d.seqno
	edges := make(map[string]dtlsrEdge, len(d.localEdges))
	for dest, e := range d.localEdges {
		edges[dest] = e
		d.graph.AddNode(dest, struct{}{})
		d.graph.AddEdge(d.localID+"->"+dest, d.localID, dest, e)
	}
	d.localChanged = false
	d.lastBroadcast = now

	d.recompute()
	d.mutex.Unlock()

	l := lsa{seqno: seqno, created: bundle.DtnTimeNow(), edges: edges}
	d.broadcast(l)
}

func (d *DTLSR) broadcast(l lsa) {
	dest, err := bundle.NewEndpointID(fmt.Sprintf("dtn://*/dtlsr?lsa_seqno=%d", l.seqno))
	if err != nil {
		log.WithError(err).Error("dtlsr: failed to build LSA destination EID")
		return
	}

	b, err := bundle.Builder().
		Source(d.localID).
		Destination(dest).
		CreationTimestampNow().
		Lifetime(d.config.LSALifetime.String()).
		PayloadBlock(marshalLSA(l)).
		Build()
	if err != nil {
		log.WithError(err).Error("dtlsr: failed to build LSA bundle")
		return
	}

	select {
	case d.outbox <- b:
	default:
		log.Warn("dtlsr: outbox full, dropping LSA broadcast")
	}
}

// recompute rebuilds the full route table from a fresh shortest-path search
// to every known node. The map is only swapped in once every destination
// has been resolved; the caller must already hold d.mutex.
func (d *DTLSR) recompute() {
	routes := make(map[string]string)
	for _, node := range d.graph.NodeIDs() {
		if node == d.localID {
			continue
		}
		path, err := graph.Shortest(d.graph, d.localID, node, d.weight)
		if err != nil || len(path.Edges) == 0 {
			continue
		}
		if e, ok := d.graph.FindEdge(path.Edges[0]); ok {
			routes[node] = e.Info.LinkID
		}
	}
	d.routes = routes
}

func (d *DTLSR) CanDeleteBundle(b bundle.Bundle) bool {
	return false
}

func (d *DTLSR) GetRoutingState() RoutingState {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	routes := make(map[string]string, len(d.routes))
	for k, v := range d.routes {
		routes[k] = v
	}
	return RoutingState{Algorithm: "dtlsr", Routes: routes}
}

// SendersFor picks, among peers, the one whose link name matches the
// installed route for b's destination. Falls back to no senders if the
// destination has no known route yet.
func (d *DTLSR) SendersFor(b bundle.Bundle, peers []cla.ConvergenceSender) (chosen []cla.ConvergenceSender, done bool) {
	dest := b.PrimaryBlock.Destination.String()

	d.mutex.Lock()
	linkID, ok := d.routes[dest]
	d.mutex.Unlock()
	if !ok {
		return nil, false
	}

	for _, p := range peers {
		if p.Address() == linkID {
			return []cla.ConvergenceSender{p}, true
		}
	}
	return nil, false
}
