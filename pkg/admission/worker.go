// Package admission implements the single-threaded admission worker of
// §4.6: add_queue, del_queue, add_clients, del_client, running the
// optimizer and latency analyzer over the process-wide graph.
package admission

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/uber/workloadcompactor/pkg/analyzer"
	"github.com/uber/workloadcompactor/pkg/graph"
	"github.com/uber/workloadcompactor/pkg/optimizer"
)

// Worker owns the process-wide graph and serializes every admission
// operation behind a single mutex, matching §5's single-writer rationale:
// an RPC dispatcher that hands one goroutine at a time to Worker's
// methods would make the mutex redundant, but holding one here keeps the
// package safe to call from tests and from a dispatcher that does not
// make that guarantee.
type Worker struct {
	mu sync.Mutex

	g         *graph.Graph
	analyzer  analyzer.Analyzer
	newSolver optimizer.NewSolver
	metrics   *Metrics
}

// NewWorker returns a Worker operating on a fresh, empty graph.
func NewWorker(a analyzer.Analyzer, newSolver optimizer.NewSolver, metrics *Metrics) *Worker {
	return &Worker{
		g:         graph.New(),
		analyzer:  a,
		newSolver: newSolver,
		metrics:   metrics,
	}
}

// Graph returns the worker's underlying graph, for use by the placement
// controller's concretization step and by tests.
func (w *Worker) Graph() *graph.Graph {
	return w.g
}

// AddQueue implements add_queue.
func (w *Worker) AddQueue(info QueueInfo) StatusCode {
	w.mu.Lock()
	defer w.mu.Unlock()

	if info.Name == "" {
		return StatusErrMissingArgument
	}
	if info.Bandwidth <= 0 {
		return StatusErrInvalidArgument
	}
	if _, err := w.g.AddQueue(info.Name, info.Bandwidth); err != nil {
		log.WithError(err).WithField("queue", info.Name).Warn("add_queue rejected")
		return StatusErrQueueNameInUse
	}
	w.metrics.AddQueue.Inc(1)
	return StatusSuccess
}

// DelQueue implements del_queue.
func (w *Worker) DelQueue(name string) StatusCode {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.g.DeleteQueue(name); err != nil {
		switch errors.Cause(err) {
		case graph.ErrQueueHasActiveFlows:
			return StatusErrQueueHasActiveFlows
		default:
			return StatusErrQueueNameNonexistent
		}
	}
	w.metrics.DelQueue.Inc(1)
	return StatusSuccess
}

// DelClient implements del_client.
func (w *Worker) DelClient(name string) StatusCode {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.g.DeleteClient(name); err != nil {
		return StatusErrClientNameNonexistent
	}
	if err := optimizer.Resolve(w.g, w.newSolver); err != nil {
		log.WithError(err).Warn("optimizer resolve failed after del_client")
	}
	w.metrics.DelClient.Inc(1)
	return StatusSuccess
}

// AddClients implements the add_clients pipeline of §4.6.
func (w *Worker) AddClients(batch []ClientInfo, fastFirstFit bool) AddClientsResult {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := validateBatch(w.g, batch); err != nil {
		log.WithError(err).Warn("add_clients rejected at validation")
		return AddClientsResult{Status: statusOf(err)}
	}

	if fastFirstFit {
		if qn := fastOverloadCheck(w.g, batch); qn != "" {
			log.WithField("queue", qn).Debug("add_clients fast-rejected: queue would be overloaded")
			w.metrics.AddClientsReject.Inc(1)
			return AddClientsResult{Status: StatusSuccess, Admitted: false}
		}
	}

	addedFlowIDs, addedClientIDs, err := w.insertBatch(batch)
	if err != nil {
		// Validation already passed, so insertion can only fail on a
		// race against a concurrent mutation; treat as infrastructure
		// failure and roll back anything already inserted.
		w.rollback(addedClientIDs)
		log.WithError(err).Error("add_clients insertion failed")
		w.metrics.AddClientsFail.Inc(1)
		return AddClientsResult{Status: statusOf(err)}
	}

	timer := w.metrics.OptimizeDuration.Start()
	resolveErr := optimizer.Resolve(w.g, w.newSolver)
	timer.Stop()
	if resolveErr != nil {
		w.rollback(addedClientIDs)
		log.WithError(resolveErr).Error("add_clients optimizer resolve failed")
		w.metrics.AddClientsFail.Inc(1)
		return AddClientsResult{Status: StatusErrInvalidArgument}
	}

	if rejectedBy, ok := w.checkLatency(batch, addedClientIDs, addedFlowIDs); !ok {
		w.rollback(addedClientIDs)
		if reErr := optimizer.Resolve(w.g, w.newSolver); reErr != nil {
			log.WithError(reErr).Warn("optimizer resolve failed after add_clients rollback")
		}
		log.WithField("client", rejectedBy).Debug("add_clients rejected: SLO exceeded")
		w.metrics.AddClientsReject.Inc(1)
		return AddClientsResult{Status: StatusSuccess, Admitted: false}
	}

	w.metrics.AddClientsSuccess.Inc(1)
	return AddClientsResult{
		Status:   StatusSuccess,
		Admitted: true,
		Flows:    w.flowResults(addedFlowIDs),
	}
}

// insertBatch inserts every client in the batch, returning the ids of
// every flow and client added. On the first failure it returns the
// clients successfully inserted so far so the caller can roll them back.
func (w *Worker) insertBatch(batch []ClientInfo) (flowIDs, clientIDs []int64, err error) {
	for _, ci := range batch {
		spec := graph.ClientSpec{
			Name:          ci.Name,
			SLOSeconds:    ci.SLOSeconds,
			SLOPercentile: ci.SLOPercentile,
		}
		for _, fi := range ci.Flows {
			spec.Flows = append(spec.Flows, graph.FlowSpec{
				Name:          fi.Name,
				QueueNames:    fi.QueueNames,
				Arrival:       *fi.Arrival,
				IgnoreLatency: fi.IgnoreLatency,
			})
		}

		client, addErr := w.g.AddClient(spec)
		if addErr != nil {
			return flowIDs, clientIDs, addErr
		}
		clientIDs = append(clientIDs, client.ID)
		flowIDs = append(flowIDs, client.FlowIDs...)
	}
	return flowIDs, clientIDs, nil
}

// rollback removes every client id in clientIDs, restoring the graph to
// its pre-batch state.
func (w *Worker) rollback(clientIDs []int64) {
	for _, cid := range clientIDs {
		client, ok := w.g.ClientByID(cid)
		if !ok {
			continue
		}
		if err := w.g.DeleteClient(client.Name); err != nil {
			log.WithError(err).WithField("client", client.Name).Error("rollback failed to delete client")
		}
	}
}

// checkLatency implements §4.6 step 5: every added client (unless it
// carries the admitted override) and every affected client must satisfy
// its SLO. Returns the name of the first client that failed, or "" on
// success.
func (w *Worker) checkLatency(batch []ClientInfo, addedClientIDs, addedFlowIDs []int64) (string, bool) {
	timer := w.metrics.LatencyCheck.Start()
	defer timer.Stop()

	overrides := make(map[int64]bool, len(batch))
	for i, ci := range batch {
		if ci.Admitted {
			overrides[addedClientIDs[i]] = true
		}
	}

	for _, cid := range addedClientIDs {
		if overrides[cid] {
			continue
		}
		if name, ok := w.clientWithinSLO(cid); !ok {
			return name, false
		}
	}

	for _, cid := range affectedClientIDs(w.g, addedFlowIDs) {
		if name, ok := w.clientWithinSLO(cid); !ok {
			return name, false
		}
	}

	return "", true
}

func (w *Worker) clientWithinSLO(clientID int64) (string, bool) {
	client, ok := w.g.ClientByID(clientID)
	if !ok {
		return "", true
	}
	latency, err := analyzer.ComputeClientLatency(w.analyzer, w.g, clientID)
	if err != nil {
		log.WithError(err).WithField("client", client.Name).Error("latency computation failed")
		return client.Name, false
	}
	client.CachedLatency = latency
	return client.Name, latency <= client.SLOSeconds
}

func (w *Worker) flowResults(flowIDs []int64) []FlowResult {
	out := make([]FlowResult, 0, len(flowIDs))
	for _, fid := range flowIDs {
		flow, ok := w.g.FlowByID(fid)
		if !ok {
			continue
		}
		out = append(out, FlowResult{
			Name:     flow.Name,
			Priority: flow.Priority,
			Rate:     flow.Shaper.Rate,
			Burst:    flow.Shaper.Burst,
		})
	}
	return out
}
