package placement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/placement"
	"github.com/uber/workloadcompactor/pkg/topology"
)

func testConfig() *topology.Config {
	return &topology.Config{
		ClientVMs: []topology.ClientVM{
			{ClientHost: "ch0", ClientVM: "0"},
			{ClientHost: "ch0", ClientVM: "1"},
			{ClientHost: "ch1", ClientVM: "0"},
		},
		ServerVMs: []topology.ServerVM{
			{ServerHost: "sh0", ServerVM: "0"},
			{ServerHost: "sh1", ServerVM: "0"},
		},
		AddrPrefix: "wc",
	}
}

func TestCandidatesPreservesDocumentOrder(t *testing.T) {
	cands := placement.Candidates(testConfig())
	require.Len(t, cands, 2)
	assert.Equal(t, "sh0", cands[0].ServerHost)
	assert.Equal(t, "sh1", cands[1].ServerHost)
}

func TestChooseClientHostPrefersMostFreeVMsWhenUnbound(t *testing.T) {
	inv := placement.NewInventory(testConfig())
	ch, ok := inv.ChooseClientHost("sh0")
	require.True(t, ok)
	assert.Equal(t, "ch0", ch, "ch0 has 2 free VMs against ch1's 1")
}

func TestChooseClientHostReusesActiveBinding(t *testing.T) {
	inv := placement.NewInventory(testConfig())
	inv.Bind("sh0", "ch1")

	ch, ok := inv.ChooseClientHost("sh0")
	require.True(t, ok)
	assert.Equal(t, "ch1", ch)
}

func TestChooseClientHostFallsBackToHistoryAfterUnbind(t *testing.T) {
	inv := placement.NewInventory(testConfig())
	inv.Bind("sh0", "ch1")
	inv.Unbind("sh0")

	ch, ok := inv.ChooseClientHost("sh0")
	require.True(t, ok)
	assert.Equal(t, "ch1", ch, "sh0's history still prefers ch1 over a fresh most-free pick")
}

func TestAllocateAndReleaseVM(t *testing.T) {
	inv := placement.NewInventory(testConfig())

	vm, ok := inv.PeekVM("ch0")
	require.True(t, ok)
	assert.Equal(t, "0", vm)

	require.True(t, inv.AllocateVM("ch0", "0"))
	assert.False(t, inv.AllocateVM("ch0", "0"), "vm0 is already allocated")

	vm, ok = inv.PeekVM("ch0")
	require.True(t, ok)
	assert.Equal(t, "1", vm)

	inv.ReleaseVM("ch0", "0")
	ch, ok := inv.ChooseClientHost("sh1")
	require.True(t, ok)
	assert.Equal(t, "ch0", ch, "ch0 is back to 2 free VMs after release")
}

func TestChooseClientHostFailsWhenNoFreeVMsRemain(t *testing.T) {
	cfg := &topology.Config{
		ClientVMs: []topology.ClientVM{{ClientHost: "ch0", ClientVM: "0"}},
	}
	inv := placement.NewInventory(cfg)
	require.True(t, inv.AllocateVM("ch0", "0"))

	_, ok := inv.ChooseClientHost("sh0")
	assert.False(t, ok)
}
