package logging

import (
	"os"

	"github.com/evalphobia/logrus_sentry"
	log "github.com/sirupsen/logrus"
)

const _clusterEnv = "CLUSTER"

// SentryConfig is Sentry-logging-specific configuration.
type SentryConfig struct {
	Enabled bool `yaml:"enabled"`
	// DSN is the Sentry DSN.
	DSN string `yaml:"dsn"`
	// Tags are forwarded to the raven client so Sentry events can be
	// filtered by them.
	Tags map[string]string `yaml:"tags"`
}

// ConfigureSentry adds a Sentry hook to the global logrus logger.
func ConfigureSentry(cfg *SentryConfig) {
	if cfg == nil || !cfg.Enabled {
		log.Debug("skipping sentry configuration, not enabled")
		return
	}

	if cfg.Tags == nil {
		cfg.Tags = make(map[string]string)
	}
	if v := os.Getenv(_clusterEnv); v != "" {
		cfg.Tags[_clusterEnv] = v
	}

	levels := []log.Level{
		log.PanicLevel,
		log.FatalLevel,
		log.ErrorLevel,
		log.WarnLevel,
	}
	hook, err := logrus_sentry.NewWithTagsSentryHook(cfg.DSN, cfg.Tags, levels)
	if err != nil {
		log.WithError(err).Fatal("failed to create sentry hook")
	}

	log.AddHook(hook)
	log.Info("sentry hook added")
}
