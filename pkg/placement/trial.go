// Package placement implements the placement controller of §4.7: a pool
// of admission connections trying a workload against candidate server VMs
// in parallel, first-fit, and the client/server grouping and flow
// concretization that feed each trial.
package placement

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/uber/workloadcompactor/pkg/admission"
)

// AdmissionClient is the subset of admission.Worker the placement
// controller drives. admission.Worker satisfies it directly; tests use a
// fake.
type AdmissionClient interface {
	AddClients(batch []admission.ClientInfo, fastFirstFit bool) admission.AddClientsResult
	DelClient(name string) admission.StatusCode
}

// BuildFunc concretizes candidate idx of the in-flight job into a trial
// ClientInfo. It may be called concurrently from different worker
// goroutines for different candidates and must be safe for that.
type BuildFunc func(idx int) (admission.ClientInfo, error)

// job is the work currently published to the worker pool.
type job struct {
	numCandidates int
	build         BuildFunc
	clientName    string
}

// sharedState is the mutex-plus-two-condition-variable structure of §5:
// "A shared state object is protected by a single mutex with two
// condition variables: work_available, work_complete." nextIndex is the
// next candidate a worker should pop; outstanding counts trials in
// flight; bestIndex is the lowest candidate index any worker has found to
// fit so far, or -1.
type sharedState struct {
	mu            sync.Mutex
	workAvailable *sync.Cond
	workComplete  *sync.Cond

	job         *job
	nextIndex   int
	outstanding int
	bestIndex   int

	shutdown bool
}

// Controller runs a fixed pool of worker goroutines, one per admission
// connection, that trial placement candidates in parallel.
type Controller struct {
	conns   []AdmissionClient
	state   *sharedState
	wg      sync.WaitGroup
	metrics *Metrics
}

// NewController returns a Controller driving the given admission
// connections. Call Start before placing any client and Stop when done.
func NewController(conns []AdmissionClient, metrics *Metrics) *Controller {
	s := &sharedState{bestIndex: -1}
	s.workAvailable = sync.NewCond(&s.mu)
	s.workComplete = sync.NewCond(&s.mu)
	return &Controller{conns: conns, state: s, metrics: metrics}
}

// Start launches one worker goroutine per admission connection.
func (c *Controller) Start() {
	for i := range c.conns {
		c.wg.Add(1)
		go c.workerLoop(i)
	}
}

// Stop signals every worker to exit and waits for them to do so. No
// placement request may be in flight when Stop is called.
func (c *Controller) Stop() {
	c.state.mu.Lock()
	c.state.shutdown = true
	c.state.workAvailable.Broadcast()
	c.state.mu.Unlock()
	c.wg.Wait()
}

// workerLoop is one of the pool's worker goroutines. It suspends on
// work_available whenever the queue is drained or every index up to the
// current best has already been dispatched, per §5's short-circuiting
// first-fit rule.
func (c *Controller) workerLoop(connIdx int) {
	defer c.wg.Done()
	conn := c.conns[connIdx]
	s := c.state

	for {
		s.mu.Lock()
		for {
			if s.shutdown {
				s.mu.Unlock()
				return
			}
			if s.hasWork() {
				break
			}
			s.workAvailable.Wait()
		}
		idx := s.nextIndex
		s.nextIndex++
		s.outstanding++
		j := s.job
		s.mu.Unlock()

		fits, err := c.tryCandidate(conn, j, idx)
		if err != nil {
			log.WithError(err).WithField("client", j.clientName).Warn("placement trial failed")
		}

		s.mu.Lock()
		if fits && (s.bestIndex < 0 || idx < s.bestIndex) {
			s.bestIndex = idx
		}
		s.outstanding--
		if s.outstanding == 0 && !s.hasWork() {
			s.workComplete.Broadcast()
		}
		s.workAvailable.Broadcast()
		s.mu.Unlock()
	}
}

// hasWork reports whether a worker should dispatch another candidate:
// the queue isn't drained, and — once a fit is known — the candidate is
// still ahead of it, since nothing past the current best can improve on
// it. Callers must hold s.mu.
func (s *sharedState) hasWork() bool {
	if s.job == nil || s.nextIndex >= s.job.numCandidates {
		return false
	}
	if s.bestIndex >= 0 && s.nextIndex >= s.bestIndex {
		return false
	}
	return true
}

// tryCandidate concretizes and admits candidate idx, rolling back
// immediately on success since a trial only confirms fit — the real
// commit happens once the winning candidate is known.
func (c *Controller) tryCandidate(conn AdmissionClient, j *job, idx int) (bool, error) {
	info, err := j.build(idx)
	if err != nil {
		return false, err
	}
	info.Admitted = false
	result := conn.AddClients([]admission.ClientInfo{info}, true)
	if !result.Admitted {
		return false, nil
	}
	if status := conn.DelClient(j.clientName); status != admission.StatusSuccess {
		return false, errors.Errorf("rollback of trial client %q failed: %v", j.clientName, status)
	}
	return true, nil
}

// PlaceClients runs a first-fit search over numCandidates candidates,
// dispatched to the worker pool in order. It blocks until every worker is
// idle and no candidate ahead of the best-known fit remains to try, then
// returns the winning index, or ok=false if none fit.
func (c *Controller) PlaceClients(numCandidates int, build BuildFunc, clientName string) (idx int, ok bool) {
	s := c.state
	s.mu.Lock()
	s.job = &job{numCandidates: numCandidates, build: build, clientName: clientName}
	s.nextIndex = 0
	s.outstanding = 0
	s.bestIndex = -1
	s.workAvailable.Broadcast()

	for !(s.outstanding == 0 && !s.hasWork()) {
		s.workComplete.Wait()
	}
	best := s.bestIndex
	s.job = nil
	s.mu.Unlock()

	if c.metrics != nil {
		c.metrics.TrialsPerPlacement.Update(float64(numCandidatesTried(numCandidates, best)))
	}
	return best, best >= 0
}

// numCandidatesTried reports the number of candidates up to and including
// the winner, or all of them on total rejection. Trials that parallel
// workers started past the winner are not counted.
func numCandidatesTried(numCandidates, best int) int {
	if best < 0 {
		return numCandidates
	}
	return best + 1
}
