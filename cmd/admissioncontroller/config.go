package main

import (
	"github.com/uber/workloadcompactor/pkg/analyzer"
	"github.com/uber/workloadcompactor/pkg/common/health"
	"github.com/uber/workloadcompactor/pkg/common/metrics"
)

// Config is the admissioncontroller's YAML configuration document.
type Config struct {
	HTTPPort int             `yaml:"http_port" validate:"min=1"`
	Analyzer string          `yaml:"analyzer_variant"`
	Metrics  metrics.Config  `yaml:"metrics"`
	Health   health.Config   `yaml:"health"`
}

// analyzerVariant maps the configured analyzer name onto its Variant,
// defaulting to the full workloadCompactor path.
func analyzerVariant(name string) analyzer.Variant {
	switch name {
	case "synthetic":
		return analyzer.VariantSynthetic
	case "hopByHop":
		return analyzer.VariantHopByHop
	case "aggregateTwoHop":
		return analyzer.VariantAggregateTwoHop
	default:
		return analyzer.VariantWorkloadCompactor
	}
}
