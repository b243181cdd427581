package estimator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworkInWriteHeavy(t *testing.T) {
	e := NetworkIn{Coefficients: NetworkCoefficients{
		NonDataConst:   1,
		NonDataPerByte: 0.01,
		DataConst:      2,
		DataPerByte:    1.1,
	}}

	read, err := e.Work(100, true)
	require.NoError(t, err)
	assert.InDelta(t, 1+0.01*100, read, 1e-9)

	write, err := e.Work(100, false)
	require.NoError(t, err)
	assert.InDelta(t, 2+1.1*100, write, 1e-9)
	assert.Greater(t, write, read)
}

func TestNetworkOutReadHeavySwapsRoles(t *testing.T) {
	coeffs := NetworkCoefficients{NonDataConst: 1, NonDataPerByte: 0.01, DataConst: 2, DataPerByte: 1.1}
	in := NetworkIn{Coefficients: coeffs}
	out := NetworkOut{Coefficients: coeffs}

	inRead, _ := in.Work(100, true)
	outRead, _ := out.Work(100, true)
	inWrite, _ := in.Work(100, false)
	outWrite, _ := out.Work(100, false)

	assert.InDelta(t, inRead, outWrite, 1e-9)
	assert.InDelta(t, inWrite, outRead, 1e-9)
}

func TestStorageSSDInterpolation(t *testing.T) {
	e := StorageSSD{Table: []BandwidthPoint{
		{RequestSize: 4096, ReadBandwidth: 100, WriteBandwidth: 80},
		{RequestSize: 65536, ReadBandwidth: 500, WriteBandwidth: 400},
	}}

	// Midpoint interpolation.
	w, err := e.Work(4096+(65536-4096)/2, true)
	require.NoError(t, err)
	assert.InDelta(t, (4096+(65536-4096)/2)/300.0, w, 1e-6)

	// Below table uses the smallest entry's bandwidth.
	w, err = e.Work(100, false)
	require.NoError(t, err)
	assert.InDelta(t, 100/80.0, w, 1e-9)

	// Above table uses the largest entry's bandwidth, no extrapolation.
	w, err = e.Work(1<<20, true)
	require.NoError(t, err)
	assert.InDelta(t, float64(1<<20)/500.0, w, 1e-9)
}

func TestStorageSSDRejectsNonPositiveBandwidth(t *testing.T) {
	e := StorageSSD{Table: []BandwidthPoint{{RequestSize: 4096, ReadBandwidth: 0, WriteBandwidth: 0}}}
	_, err := e.Work(4096, true)
	assert.Error(t, err)
}

func TestStorageSSDRejectsEmptyTable(t *testing.T) {
	e := StorageSSD{}
	_, err := e.Work(4096, true)
	assert.Error(t, err)
}
