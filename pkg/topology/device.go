package topology

import (
	"encoding/json"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/uber/workloadcompactor/pkg/estimator"
)

// DeviceProfile describes the storage device backing a server queue, per
// §6's device-profile document.
type DeviceProfile struct {
	Type                     string                    `json:"type"`
	BandwidthTable           []estimator.BandwidthPoint `json:"bandwidthTable"`
	ReadMPL                  int                       `json:"readMPL,omitempty"`
	WriteMPL                 int                       `json:"writeMPL,omitempty"`
	MaxOutstandingReadBytes  float64                   `json:"maxOutstandingReadBytes,omitempty"`
	MaxOutstandingWriteBytes float64                   `json:"maxOutstandingWriteBytes,omitempty"`
}

// ParseDeviceProfile decodes a device profile document from r.
func ParseDeviceProfile(r io.Reader) (*DeviceProfile, error) {
	var p DeviceProfile
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return nil, errors.Wrap(err, "parse device profile")
	}
	return &p, nil
}

// LoadDeviceProfile reads and parses a device profile from path.
func LoadDeviceProfile(path string) (*DeviceProfile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open device profile %q", path)
	}
	defer f.Close()
	return ParseDeviceProfile(f)
}

// Estimator builds the pkg/estimator.StorageSSD implied by this profile.
func (p *DeviceProfile) Estimator() estimator.StorageSSD {
	return estimator.StorageSSD{Table: p.BandwidthTable}
}
