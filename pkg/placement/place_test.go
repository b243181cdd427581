package placement_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/placement"
	"github.com/uber/workloadcompactor/pkg/placement/placementtest"
	"github.com/uber/workloadcompactor/pkg/topology"
)

// serverFakeAdmissionClient admits a trial or commit once its queue names
// reference a server host index at or above a threshold, mirroring the
// real topology's "<prefix>-<host>vm<vm>" addressing.
type serverFakeAdmissionClient struct {
	mu            sync.Mutex
	fitsAtOrAbove int
	committed     map[string]admission.ClientInfo
}

func newServerFakeAdmissionClient(fitsAtOrAbove int) *serverFakeAdmissionClient {
	return &serverFakeAdmissionClient{fitsAtOrAbove: fitsAtOrAbove, committed: make(map[string]admission.ClientInfo)}
}

func (f *serverFakeAdmissionClient) AddClients(batch []admission.ClientInfo, fastFirstFit bool) admission.AddClientsResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	ci := batch[0]
	idx, ok := serverIndexFromClientInfo(ci)
	if !ok || idx < f.fitsAtOrAbove {
		return admission.AddClientsResult{Status: admission.StatusSuccess, Admitted: false}
	}
	f.committed[ci.Name] = ci
	flows := make([]admission.FlowResult, len(ci.Flows))
	for i, fl := range ci.Flows {
		flows[i] = admission.FlowResult{Name: fl.Name, Priority: int32(i), Rate: 10, Burst: 20}
	}
	return admission.AddClientsResult{Status: admission.StatusSuccess, Admitted: true, Flows: flows}
}

func (f *serverFakeAdmissionClient) DelClient(name string) admission.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.committed[name]; !ok {
		return admission.StatusErrClientNameNonexistent
	}
	delete(f.committed, name)
	return admission.StatusSuccess
}

func serverIndexFromClientInfo(ci admission.ClientInfo) (int, bool) {
	for _, f := range ci.Flows {
		for _, q := range f.QueueNames {
			if idx, ok := serverIndexFromQueue(q); ok {
				return idx, true
			}
		}
	}
	return 0, false
}

func serverIndexFromQueue(q string) (int, bool) {
	i := strings.Index(q, "sh")
	if i < 0 {
		return 0, false
	}
	start := i + 2
	j := start
	for j < len(q) && q[j] >= '0' && q[j] <= '9' {
		j++
	}
	if j == start {
		return 0, false
	}
	n := 0
	for _, c := range q[start:j] {
		n = n*10 + int(c-'0')
	}
	return n, true
}

func manyServerConfig(n int) *topology.Config {
	cfg := &topology.Config{
		ClientVMs: []topology.ClientVM{
			{ClientHost: "ch0", ClientVM: "0"},
			{ClientHost: "ch0", ClientVM: "1"},
		},
		AddrPrefix: "wc",
	}
	for i := 0; i < n; i++ {
		cfg.ServerVMs = append(cfg.ServerVMs, topology.ServerVM{ServerHost: "sh" + itoa(i), ServerVM: "0"})
	}
	return cfg
}

func TestPlacerPlacesClientOnFirstFittingServer(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "tenant.csv")

	const fitsAtOrAbove = 3
	conn := newServerFakeAdmissionClient(fitsAtOrAbove)
	enforcer := placementtest.NewFakeEnforcer()

	p := placement.NewPlacer([]placement.AdmissionClient{conn}, placement.PlacerConfig{
		Topology: manyServerConfig(6),
		TraceDir: dir,
		Enforcer: enforcer,
	})
	p.Start()
	defer p.Stop()

	result, err := p.PlaceClient(topology.ClientEntry{Name: "tenant", SLO: 0.01, Trace: "tenant.csv", NetworkOnly: true})
	require.NoError(t, err)
	require.True(t, result.Admitted)
	assert.Equal(t, "sh3", result.ServerHost)
	assert.Equal(t, "ch0", result.ClientHost)

	conn.mu.Lock()
	_, committed := conn.committed["tenant"]
	conn.mu.Unlock()
	assert.True(t, committed, "the winning candidate must be committed, not rolled back")

	assert.Len(t, enforcer.Updates["tenant"], 2)
}

func TestPlacerReturnsNotAdmittedWhenNoServerFits(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "tenant.csv")

	conn := newServerFakeAdmissionClient(1000)
	p := placement.NewPlacer([]placement.AdmissionClient{conn}, placement.PlacerConfig{
		Topology: manyServerConfig(3),
		TraceDir: dir,
	})
	p.Start()
	defer p.Stop()

	result, err := p.PlaceClient(topology.ClientEntry{Name: "tenant", SLO: 0.01, Trace: "tenant.csv", NetworkOnly: true})
	require.NoError(t, err)
	assert.False(t, result.Admitted)
}

func TestPlacerRemoveClientFreesVMAndClearsEnforcer(t *testing.T) {
	dir := t.TempDir()
	writeTrace(t, dir, "tenant.csv")

	conn := newServerFakeAdmissionClient(0)
	enforcer := placementtest.NewFakeEnforcer()
	p := placement.NewPlacer([]placement.AdmissionClient{conn}, placement.PlacerConfig{
		Topology: manyServerConfig(1),
		TraceDir: dir,
		Enforcer: enforcer,
	})
	p.Start()
	defer p.Stop()

	result, err := p.PlaceClient(topology.ClientEntry{Name: "tenant", SLO: 0.01, Trace: "tenant.csv", NetworkOnly: true})
	require.NoError(t, err)
	require.True(t, result.Admitted)

	require.NoError(t, p.RemoveClient("tenant", result.ClientHost, result.ClientVM))
	assert.Equal(t, 1, enforcer.Removed["tenant"])
}
