package topology_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uber/workloadcompactor/pkg/topology"
)

const sampleDeviceProfile = `{
	"type": "storageSSD",
	"bandwidthTable": [
		{"requestSize": 4096, "readBandwidth": 500000000, "writeBandwidth": 300000000},
		{"requestSize": 65536, "readBandwidth": 520000000, "writeBandwidth": 310000000}
	],
	"readMPL": 32,
	"writeMPL": 8
}`

func TestParseDeviceProfile(t *testing.T) {
	p, err := topology.ParseDeviceProfile(strings.NewReader(sampleDeviceProfile))
	require.NoError(t, err)

	assert.Equal(t, "storageSSD", p.Type)
	require.Len(t, p.BandwidthTable, 2)
	assert.Equal(t, 4096.0, p.BandwidthTable[0].RequestSize)
	assert.Equal(t, 32, p.ReadMPL)

	est := p.Estimator()
	work, err := est.Work(4096, true)
	require.NoError(t, err)
	assert.Greater(t, work, 0.0)
}
