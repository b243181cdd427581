// Package estimator maps raw storage requests to the scalar "work" units
// consumed by the arrival-curve builder and DNC curve algebra.
package estimator

import (
	"github.com/pkg/errors"
)

// Estimator converts a single request into a scalar work value.
type Estimator interface {
	// Work returns the amount of work a request of the given size and
	// direction represents.
	Work(sizeBytes float64, isRead bool) (float64, error)
}

// NetworkCoefficients are the four linear coefficients used by NetworkIn
// and NetworkOut: cost = c + f*size, split by whether the request carries
// payload data in this direction.
type NetworkCoefficients struct {
	// NonDataConst and NonDataPerByte apply to requests with negligible
	// payload in this direction (reads on the network-in side, writes on
	// the network-out side).
	NonDataConst   float64
	NonDataPerByte float64
	// DataConst and DataPerByte apply to requests whose payload travels
	// in this direction.
	DataConst   float64
	DataPerByte float64
}

// NetworkIn estimates the work incurred client->server: writes carry the
// data payload in this direction, reads do not.
type NetworkIn struct {
	Coefficients NetworkCoefficients
}

// Work implements Estimator.
func (e NetworkIn) Work(sizeBytes float64, isRead bool) (float64, error) {
	c := e.Coefficients
	if isRead {
		return c.NonDataConst + c.NonDataPerByte*sizeBytes, nil
	}
	return c.DataConst + c.DataPerByte*sizeBytes, nil
}

// NetworkOut estimates the work incurred server->client: the read/write
// roles are swapped relative to NetworkIn since reads carry the payload
// in this direction.
type NetworkOut struct {
	Coefficients NetworkCoefficients
}

// Work implements Estimator.
func (e NetworkOut) Work(sizeBytes float64, isRead bool) (float64, error) {
	c := e.Coefficients
	if isRead {
		return c.DataConst + c.DataPerByte*sizeBytes, nil
	}
	return c.NonDataConst + c.NonDataPerByte*sizeBytes, nil
}

// BandwidthPoint is one row of a storage device's bandwidth table, keyed
// by request size.
type BandwidthPoint struct {
	RequestSize   float64
	ReadBandwidth float64
	WriteBandwidth float64
}

// StorageSSD estimates work as request latency (size / bandwidth), with
// the bandwidth linearly interpolated from a device profile's table of
// (size, read_bw, write_bw) rows sorted ascending by size.
type StorageSSD struct {
	// Table must be sorted ascending by RequestSize.
	Table []BandwidthPoint
}

// Work implements Estimator. Requests larger than the largest table entry
// use the largest entry's bandwidth (no extrapolation).
func (e StorageSSD) Work(sizeBytes float64, isRead bool) (float64, error) {
	if len(e.Table) == 0 {
		return 0, errors.New("storage SSD estimator has an empty bandwidth table")
	}

	bw := e.interpolate(sizeBytes, isRead)
	if bw <= 0 {
		return 0, errors.Errorf("interpolated bandwidth %.6f is non-positive for size %.0f", bw, sizeBytes)
	}
	return sizeBytes / bw, nil
}

func (e StorageSSD) interpolate(sizeBytes float64, isRead bool) float64 {
	bwAt := func(p BandwidthPoint) float64 {
		if isRead {
			return p.ReadBandwidth
		}
		return p.WriteBandwidth
	}

	if sizeBytes <= e.Table[0].RequestSize {
		return bwAt(e.Table[0])
	}
	last := e.Table[len(e.Table)-1]
	if sizeBytes >= last.RequestSize {
		return bwAt(last)
	}

	for i := 1; i < len(e.Table); i++ {
		lo, hi := e.Table[i-1], e.Table[i]
		if sizeBytes > hi.RequestSize {
			continue
		}
		if hi.RequestSize == lo.RequestSize {
			return bwAt(hi)
		}
		frac := (sizeBytes - lo.RequestSize) / (hi.RequestSize - lo.RequestSize)
		return bwAt(lo) + frac*(bwAt(hi)-bwAt(lo))
	}
	return bwAt(last)
}
