package topology_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/topology"
)

const sampleConfig = `{
	"clients": [
		{"name": "tenant-a", "SLO": 10, "trace": "tenant-a.csv"},
		{"name": "tenant-b", "SLO": 5, "trace": "tenant-b.csv", "storageOnly": true}
	],
	"clientVMs": [
		{"clientHost": "ch0", "clientVM": "0"},
		{"clientHost": "ch0", "clientVM": "1"}
	],
	"serverVMs": [
		{"serverHost": "sh0", "serverVM": "0"}
	],
	"addrPrefix": "wc",
	"enforce": true
}`

func TestParseConfig(t *testing.T) {
	cfg, err := topology.ParseConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	require.Len(t, cfg.Clients, 2)
	assert.Equal(t, "tenant-a", cfg.Clients[0].Name)
	assert.Equal(t, 10.0, cfg.Clients[0].SLO)
	assert.True(t, cfg.Clients[1].StorageOnly)
	require.Len(t, cfg.ClientVMs, 2)
	require.Len(t, cfg.ServerVMs, 1)
	assert.True(t, cfg.Enforce)
}

func TestAddrSynthesis(t *testing.T) {
	assert.Equal(t, "wc-ch0vm0", topology.Addr("wc", "ch0", "0"))
}
