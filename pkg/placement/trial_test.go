package placement_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/placement"
)

// fakeAdmissionClient admits candidates at or above a configured index,
// recording every AddClients/DelClient call it sees.
type fakeAdmissionClient struct {
	mu          sync.Mutex
	fitsAtOrAbove int
	calls       []string
	added       map[string]bool
}

func newFakeAdmissionClient(fitsAtOrAbove int) *fakeAdmissionClient {
	return &fakeAdmissionClient{fitsAtOrAbove: fitsAtOrAbove, added: make(map[string]bool)}
}

func (f *fakeAdmissionClient) AddClients(batch []admission.ClientInfo, fastFirstFit bool) admission.AddClientsResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := batch[0].Name
	f.calls = append(f.calls, "add:"+name)

	idx := indexFromFlowQueue(batch[0])
	if idx < f.fitsAtOrAbove {
		return admission.AddClientsResult{Status: admission.StatusSuccess, Admitted: false}
	}
	f.added[name] = true
	flows := make([]admission.FlowResult, len(batch[0].Flows))
	for i, fl := range batch[0].Flows {
		flows[i] = admission.FlowResult{Name: fl.Name, Priority: 0, Rate: 1, Burst: 1}
	}
	return admission.AddClientsResult{Status: admission.StatusSuccess, Admitted: true, Flows: flows}
}

func (f *fakeAdmissionClient) DelClient(name string) admission.StatusCode {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "del:"+name)
	if !f.added[name] {
		return admission.StatusErrClientNameNonexistent
	}
	delete(f.added, name)
	return admission.StatusSuccess
}

// indexFromFlowQueue recovers which candidate a trial targeted from its
// queue names, which Concretize derives from the server host/vm.
func indexFromFlowQueue(ci admission.ClientInfo) int {
	if len(ci.Flows) == 0 {
		return -1
	}
	// serverHost/serverVM are embedded in the queue name as "...shNvmM...".
	// Tests use candidate index as the server host/vm suffix directly.
	for _, q := range ci.Flows[0].QueueNames {
		if n, ok := parseTrailingInt(q); ok {
			return n
		}
	}
	return -1
}

func parseTrailingInt(s string) (int, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == len(s) {
		return 0, false
	}
	n := 0
	for _, c := range s[i:] {
		n = n*10 + int(c-'0')
	}
	return n, true
}

func TestControllerPlaceClientsFindsLowestFittingCandidate(t *testing.T) {
	const numCandidates = 20
	const fitsAtOrAbove = 7
	conns := []placement.AdmissionClient{
		newFakeAdmissionClient(fitsAtOrAbove),
		newFakeAdmissionClient(fitsAtOrAbove),
		newFakeAdmissionClient(fitsAtOrAbove),
	}
	ctrl := placement.NewController(conns, nil)
	ctrl.Start()
	defer ctrl.Stop()

	build := func(idx int) (admission.ClientInfo, error) {
		return admission.ClientInfo{
			Name: "tenant",
			Flows: []admission.FlowInfo{{
				Name:       "tenant-network-in",
				QueueNames: []string{"q" + itoa(idx)},
			}},
		}, nil
	}

	idx, ok := ctrl.PlaceClients(numCandidates, build, "tenant")
	require.True(t, ok)
	assert.Equal(t, fitsAtOrAbove, idx)
}

func TestControllerPlaceClientsNoneFit(t *testing.T) {
	conns := []placement.AdmissionClient{newFakeAdmissionClient(1000)}
	ctrl := placement.NewController(conns, nil)
	ctrl.Start()
	defer ctrl.Stop()

	build := func(idx int) (admission.ClientInfo, error) {
		return admission.ClientInfo{
			Name:  "tenant",
			Flows: []admission.FlowInfo{{Name: "tenant-network-in", QueueNames: []string{"q" + itoa(idx)}}},
		}, nil
	}

	idx, ok := ctrl.PlaceClients(5, build, "tenant")
	assert.False(t, ok)
	assert.Equal(t, -1, idx)
}

func TestControllerPlaceClientsRollsBackEveryTrial(t *testing.T) {
	conn := newFakeAdmissionClient(2)
	conns := []placement.AdmissionClient{conn}
	ctrl := placement.NewController(conns, nil)
	ctrl.Start()
	defer ctrl.Stop()

	build := func(idx int) (admission.ClientInfo, error) {
		return admission.ClientInfo{
			Name:  "tenant",
			Flows: []admission.FlowInfo{{Name: "tenant-network-in", QueueNames: []string{"q" + itoa(idx)}}},
		}, nil
	}

	idx, ok := ctrl.PlaceClients(5, build, "tenant")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Empty(t, conn.added, "every trial, including the winner, must have been rolled back")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
