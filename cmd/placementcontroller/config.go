package main

import (
	"github.com/uber/workloadcompactor/pkg/common/health"
	"github.com/uber/workloadcompactor/pkg/common/metrics"
	"github.com/uber/workloadcompactor/pkg/estimator"
)

// Config is the placementcontroller's YAML configuration document.
type Config struct {
	HTTPPort int `yaml:"http_port" validate:"min=1"`

	// TopologyFile lists the client/server VM inventory to place onto.
	TopologyFile string `yaml:"topology_file" validate:"nonzero"`
	// DeviceProfileFile describes the SSD bandwidth curve of the storage
	// fleet. Omit it for network-only deployments.
	DeviceProfileFile string `yaml:"device_profile_file"`
	// TraceDir holds the per-client request traces named by a topology
	// document's "trace" field.
	TraceDir string `yaml:"trace_dir"`
	// CacheDir holds persisted arrival-curve CSVs, keyed by client/flow,
	// so repeated placements skip rebuilding from the raw trace.
	CacheDir string `yaml:"cache_dir"`

	// AdmissionAddrs are the admissioncontroller peers this controller
	// drives in lockstep; every connection mirrors the same admitted
	// state (§4.7).
	AdmissionAddrs []string `yaml:"admission_addrs" validate:"min=1"`

	NetworkIn  estimator.NetworkCoefficients `yaml:"network_in"`
	NetworkOut estimator.NetworkCoefficients `yaml:"network_out"`

	Metrics metrics.Config `yaml:"metrics"`
	Health  health.Config  `yaml:"health"`
}
