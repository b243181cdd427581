package placement

import (
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/estimator"
	"github.com/uber/workloadcompactor/pkg/topology"
)

// Placer ties the worker pool, the client/server grouping inventory, and
// flow concretization together into the single PlaceClient entry point of
// §4.7/§4.8.
type Placer struct {
	controller *Controller
	inventory  *Inventory
	candidates []Candidate
	enforcer   Enforcer

	addrPrefix string
	traceDir   string
	cacheDir   string
	device     *topology.DeviceProfile
	netIn      estimator.NetworkCoefficients
	netOut     estimator.NetworkCoefficients

	metrics *Metrics
}

// PlacerConfig gathers a Placer's static inputs.
type PlacerConfig struct {
	Topology   *topology.Config
	Device     *topology.DeviceProfile
	NetworkIn  estimator.NetworkCoefficients
	NetworkOut estimator.NetworkCoefficients
	TraceDir   string
	CacheDir   string
	Enforcer   Enforcer
	Metrics    *Metrics
}

// NewPlacer builds a Placer. Call Start/Stop around its use the same way
// as the underlying Controller.
func NewPlacer(conns []AdmissionClient, cfg PlacerConfig) *Placer {
	enforcer := cfg.Enforcer
	if enforcer == nil {
		enforcer = NullEnforcer{}
	}
	return &Placer{
		controller: NewController(conns, cfg.Metrics),
		inventory:  NewInventory(cfg.Topology),
		candidates: Candidates(cfg.Topology),
		enforcer:   enforcer,
		addrPrefix: cfg.Topology.AddrPrefix,
		traceDir:   cfg.TraceDir,
		cacheDir:   cfg.CacheDir,
		device:     cfg.Device,
		netIn:      cfg.NetworkIn,
		netOut:     cfg.NetworkOut,
		metrics:    cfg.Metrics,
	}
}

// Start launches the underlying worker pool.
func (p *Placer) Start() { p.controller.Start() }

// Stop tears down the underlying worker pool.
func (p *Placer) Stop() { p.controller.Stop() }

// PlacementResult reports where a client landed.
type PlacementResult struct {
	Admitted             bool
	ClientHost, ClientVM string
	ServerHost, ServerVM string
}

// PlaceClient runs the full §4.7 first-fit search for client over every
// known server VM, then — on success — commits the winning candidate to
// every admission connection and pushes its shaper assignment to the
// enforcer.
func (p *Placer) PlaceClient(client topology.ClientEntry) (PlacementResult, error) {
	trial := newTrialState(p, client)

	idx, ok := p.controller.PlaceClients(len(p.candidates), trial.build, client.Name)
	if !ok {
		if p.metrics != nil {
			p.metrics.PlaceReject.Inc(1)
		}
		return PlacementResult{Admitted: false}, nil
	}

	chosen := p.candidates[idx]
	clientHost, clientVM, ok := trial.hostVMFor(idx)
	if !ok {
		if p.metrics != nil {
			p.metrics.PlaceFail.Inc(1)
		}
		return PlacementResult{}, errors.Errorf("placement for %q reported a fit with no recorded client host", client.Name)
	}

	info, err := p.concretize(client, clientHost, clientVM, chosen)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PlaceFail.Inc(1)
		}
		return PlacementResult{}, err
	}

	result, err := p.commit(info)
	if err != nil {
		if p.metrics != nil {
			p.metrics.PlaceFail.Inc(1)
		}
		return PlacementResult{}, err
	}

	if !p.inventory.AllocateVM(clientHost, clientVM) {
		log.WithField("client_host", clientHost).Warn("chosen client VM was already reserved by a concurrent placement")
	}
	p.inventory.Bind(chosen.ServerHost, clientHost)

	if err := p.enforcer.UpdateClient(client.Name, shaperAssignments(result)); err != nil {
		log.WithError(err).WithField("client", client.Name).Warn("enforcer update failed")
	}

	if p.metrics != nil {
		p.metrics.PlaceSuccess.Inc(1)
	}
	return PlacementResult{
		Admitted:   true,
		ClientHost: clientHost,
		ClientVM:   clientVM,
		ServerHost: chosen.ServerHost,
		ServerVM:   chosen.ServerVM,
	}, nil
}

// RemoveClient deletes a previously placed client from every admission
// connection and clears its enforcer state, returning clientVM to the
// inventory on clientHost.
func (p *Placer) RemoveClient(clientName, clientHost, clientVM string) error {
	for _, conn := range p.controller.conns {
		if status := conn.DelClient(clientName); status != admission.StatusSuccess && status != admission.StatusErrClientNameNonexistent {
			return errors.Errorf("del_client %q failed: %v", clientName, status)
		}
	}
	if clientHost != "" {
		p.inventory.ReleaseVM(clientHost, clientVM)
	}
	return p.enforcer.RemoveClient(clientName)
}

// shaperAssignments converts a commit's negotiated flow results into the
// enforcer's wire shape.
func shaperAssignments(result admission.AddClientsResult) []ShaperAssignment {
	out := make([]ShaperAssignment, 0, len(result.Flows))
	for _, f := range result.Flows {
		out = append(out, ShaperAssignment{Priority: f.Priority, Rate: f.Rate, Burst: f.Burst})
	}
	return out
}

// commit pushes the final ClientInfo to every admission connection,
// returning the first connection's result, which carries the
// authoritative negotiated (priority, shaper) values the enforcer needs.
func (p *Placer) commit(info admission.ClientInfo) (admission.AddClientsResult, error) {
	var first admission.AddClientsResult
	for i, conn := range p.controller.conns {
		result := conn.AddClients([]admission.ClientInfo{info}, false)
		if !result.Admitted {
			return admission.AddClientsResult{}, errors.Errorf("commit of %q failed on connection %d: status=%v", info.Name, i, result.Status)
		}
		if i == 0 {
			first = result
		}
	}
	return first, nil
}

func (p *Placer) concretize(client topology.ClientEntry, clientHost, clientVM string, cand Candidate) (admission.ClientInfo, error) {
	return Concretize(ConcretizeInput{
		Client:     client,
		AddrPrefix: p.addrPrefix,
		ClientHost: clientHost,
		ClientVM:   clientVM,
		ServerHost: cand.ServerHost,
		ServerVM:   cand.ServerVM,
		NetworkIn:  p.netIn,
		NetworkOut: p.netOut,
		Device:     p.device,
		TraceDir:   p.traceDir,
		CacheDir:   p.cacheDir,
	})
}

// trialState threads the client host/VM chosen for each candidate out of
// BuildFunc, which the controller calls concurrently across worker
// goroutines for different candidate indices.
type trialState struct {
	placer *Placer
	client topology.ClientEntry

	mu     sync.Mutex
	chosen map[int]clientAssignment
}

type clientAssignment struct {
	host, vm string
}

func newTrialState(p *Placer, client topology.ClientEntry) *trialState {
	return &trialState{placer: p, client: client, chosen: make(map[int]clientAssignment)}
}

func (t *trialState) build(idx int) (admission.ClientInfo, error) {
	cand := t.placer.candidates[idx]
	clientHost, ok := t.placer.inventory.ChooseClientHost(cand.ServerHost)
	if !ok {
		return admission.ClientInfo{}, errors.New("no client host has a free VM")
	}
	clientVM, ok := t.placer.inventory.PeekVM(clientHost)
	if !ok {
		return admission.ClientInfo{}, errors.Errorf("client host %q reported as available has no free VM", clientHost)
	}

	t.mu.Lock()
	t.chosen[idx] = clientAssignment{host: clientHost, vm: clientVM}
	t.mu.Unlock()

	return t.placer.concretize(t.client, clientHost, clientVM, cand)
}

func (t *trialState) hostVMFor(idx int) (host, vm string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.chosen[idx]
	return a.host, a.vm, ok
}
