// Package graph holds the admission controller's in-memory data model:
// named queues, flows traversing ordered lists of queues, and clients
// owning flows. The Graph is the process-wide singleton the admission
// controller mutates under a single writer lock (see pkg/admission).
package graph

import (
	"github.com/pkg/errors"

	"github.com/uber/workloadcompactor/pkg/curve"
	"github.com/uber/workloadcompactor/pkg/dnc"
)

// Shaper is a flow's (r,b) rate-limiter configuration. The zero value
// (0,0) means "uninitialized" per §3.
type Shaper struct {
	Rate  float64
	Burst float64
}

// Service is a flow's (R,T) service-curve summary, kept for diagnostic
// and test purposes only; the authoritative algebra lives in pkg/dnc.
type Service = dnc.Service

var (
	// ErrQueueNameInUse is returned by AddQueue for a duplicate name.
	ErrQueueNameInUse = errors.New("queue name already in use")
	// ErrQueueNonexistent is returned when a referenced queue does not exist.
	ErrQueueNonexistent = errors.New("queue does not exist")
	// ErrQueueHasActiveFlows is returned by DeleteQueue when flows still
	// reference the queue.
	ErrQueueHasActiveFlows = errors.New("queue has active flows")
	// ErrFlowNameInUse is returned by AddClient for a duplicate flow name.
	ErrFlowNameInUse = errors.New("flow name already in use")
	// ErrFlowNonexistent is returned when a referenced flow does not exist.
	ErrFlowNonexistent = errors.New("flow does not exist")
	// ErrClientNameInUse is returned by AddClient for a duplicate name.
	ErrClientNameInUse = errors.New("client name already in use")
	// ErrClientNonexistent is returned when a referenced client does not exist.
	ErrClientNonexistent = errors.New("client does not exist")
)

// Queue is a named resource of fixed bandwidth shared by flows under a
// strict-priority + FIFO-within-priority discipline.
type Queue struct {
	ID        int64
	Name      string
	Bandwidth float64

	// flowHops maps flow id -> the index of this queue in that flow's
	// path.
	flowHops map[int64]int
}

// Flows returns the ids of the flows currently routed through q.
func (q *Queue) Flows() []int64 {
	ids := make([]int64, 0, len(q.flowHops))
	for id := range q.flowHops {
		ids = append(ids, id)
	}
	return ids
}

// Flow is one client's traffic traversing an ordered list of queues.
type Flow struct {
	ID       int64
	Name     string
	ClientID int64
	Path     []int64 // queue ids, in traversal order
	Priority int32   // lower = higher precedence

	Arrival curve.Curve
	Shaper  Shaper

	CachedLatency float64
	IgnoreLatency bool
}

// Client is a tenant with a latency SLO and a set of owned flows.
type Client struct {
	ID              int64
	Name            string
	SLOSeconds      float64
	SLOPercentile   float64 // 0 means unset
	FlowIDs         []int64
	CachedLatency   float64
}

// Graph is the admission controller's queue/flow/client model.
type Graph struct {
	queues    map[int64]*Queue
	queuesByName map[string]int64
	flows     map[int64]*Flow
	flowsByName  map[string]int64
	clients   map[int64]*Client
	clientsByName map[string]int64

	nextQueueID  int64
	nextFlowID   int64
	nextClientID int64

	dirty *DirtySet
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		queues:        make(map[int64]*Queue),
		queuesByName:  make(map[string]int64),
		flows:         make(map[int64]*Flow),
		flowsByName:   make(map[string]int64),
		clients:       make(map[int64]*Client),
		clientsByName: make(map[string]int64),
		dirty:         NewDirtySet(),
	}
}

// Dirty returns the graph's dirty-queue-id tracker.
func (g *Graph) Dirty() *DirtySet {
	return g.dirty
}

// AddQueue creates a new queue with the given name and bandwidth.
func (g *Graph) AddQueue(name string, bandwidth float64) (*Queue, error) {
	if _, ok := g.queuesByName[name]; ok {
		return nil, ErrQueueNameInUse
	}
	g.nextQueueID++
	q := &Queue{ID: g.nextQueueID, Name: name, Bandwidth: bandwidth, flowHops: make(map[int64]int)}
	g.queues[q.ID] = q
	g.queuesByName[name] = q.ID
	return q, nil
}

// DeleteQueue removes an empty queue by name.
func (g *Graph) DeleteQueue(name string) error {
	id, ok := g.queuesByName[name]
	if !ok {
		return ErrQueueNonexistent
	}
	q := g.queues[id]
	if len(q.flowHops) > 0 {
		return ErrQueueHasActiveFlows
	}
	delete(g.queues, id)
	delete(g.queuesByName, name)
	return nil
}

// Queue looks up a queue by name.
func (g *Graph) Queue(name string) (*Queue, bool) {
	id, ok := g.queuesByName[name]
	if !ok {
		return nil, false
	}
	return g.queues[id], true
}

// QueueByID looks up a queue by id.
func (g *Graph) QueueByID(id int64) (*Queue, bool) {
	q, ok := g.queues[id]
	return q, ok
}

// Queues returns every queue in the graph.
func (g *Graph) Queues() []*Queue {
	out := make([]*Queue, 0, len(g.queues))
	for _, q := range g.queues {
		out = append(out, q)
	}
	return out
}

// Client looks up a client by name.
func (g *Graph) Client(name string) (*Client, bool) {
	id, ok := g.clientsByName[name]
	if !ok {
		return nil, false
	}
	return g.clients[id], true
}

// ClientByID looks up a client by id.
func (g *Graph) ClientByID(id int64) (*Client, bool) {
	c, ok := g.clients[id]
	return c, ok
}

// Clients returns every client in the graph.
func (g *Graph) Clients() []*Client {
	out := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		out = append(out, c)
	}
	return out
}

// Flow looks up a flow by name.
func (g *Graph) Flow(name string) (*Flow, bool) {
	id, ok := g.flowsByName[name]
	if !ok {
		return nil, false
	}
	return g.flows[id], true
}

// FlowByID looks up a flow by id.
func (g *Graph) FlowByID(id int64) (*Flow, bool) {
	f, ok := g.flows[id]
	return f, ok
}

// FlowSpec describes a flow to be added to the graph.
type FlowSpec struct {
	Name          string
	QueueNames    []string
	Priority      int32
	Arrival       curve.Curve
	IgnoreLatency bool
}

// ClientSpec describes a client (and its flows) to be added to the graph.
type ClientSpec struct {
	Name          string
	SLOSeconds    float64
	SLOPercentile float64
	Flows         []FlowSpec
}

// AddClient inserts a new client and its flows, marking every touched
// queue dirty. On any validation error nothing is mutated.
func (g *Graph) AddClient(spec ClientSpec) (*Client, error) {
	if _, ok := g.clientsByName[spec.Name]; ok {
		return nil, ErrClientNameInUse
	}
	for _, fs := range spec.Flows {
		if _, ok := g.flowsByName[fs.Name]; ok {
			return nil, errors.Wrapf(ErrFlowNameInUse, "flow %q", fs.Name)
		}
		for _, qn := range fs.QueueNames {
			if _, ok := g.queuesByName[qn]; !ok {
				return nil, errors.Wrapf(ErrQueueNonexistent, "queue %q", qn)
			}
		}
	}

	g.nextClientID++
	client := &Client{
		ID:            g.nextClientID,
		Name:          spec.Name,
		SLOSeconds:    spec.SLOSeconds,
		SLOPercentile: spec.SLOPercentile,
	}

	for _, fs := range spec.Flows {
		path := make([]int64, 0, len(fs.QueueNames))
		for _, qn := range fs.QueueNames {
			path = append(path, g.queuesByName[qn])
		}

		g.nextFlowID++
		flow := &Flow{
			ID:            g.nextFlowID,
			Name:          fs.Name,
			ClientID:      client.ID,
			Path:          path,
			Priority:      fs.Priority,
			Arrival:       fs.Arrival,
			IgnoreLatency: fs.IgnoreLatency,
		}
		g.flows[flow.ID] = flow
		g.flowsByName[flow.Name] = flow.ID
		client.FlowIDs = append(client.FlowIDs, flow.ID)

		for hopIdx, qid := range path {
			q := g.queues[qid]
			q.flowHops[flow.ID] = hopIdx
			g.dirty.Mark(qid)
		}
	}

	g.clients[client.ID] = client
	g.clientsByName[client.Name] = client.ID
	return client, nil
}

// DeleteClient removes a client and all its flows, detaching them from
// every queue they reference and marking those queues dirty.
func (g *Graph) DeleteClient(name string) error {
	id, ok := g.clientsByName[name]
	if !ok {
		return ErrClientNonexistent
	}
	client := g.clients[id]

	for _, fid := range client.FlowIDs {
		flow := g.flows[fid]
		for _, qid := range flow.Path {
			q := g.queues[qid]
			delete(q.flowHops, fid)
			g.dirty.Mark(qid)
		}
		delete(g.flows, fid)
		delete(g.flowsByName, flow.Name)
	}

	delete(g.clients, id)
	delete(g.clientsByName, name)
	return nil
}

// FlowsForQueue returns the flows currently routed through the named queue.
func (g *Graph) FlowsForQueue(q *Queue) []*Flow {
	out := make([]*Flow, 0, len(q.flowHops))
	for fid := range q.flowHops {
		out = append(out, g.flows[fid])
	}
	return out
}
