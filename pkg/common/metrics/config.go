package metrics

import (
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	tallyprom "github.com/uber-go/tally/prometheus"
)

// TallyFlushInterval is the default interval at which the root tally
// scope flushes buffered metrics to the configured reporter.
const TallyFlushInterval = time.Second

// Config holds the metrics backend configuration.
type Config struct {
	Prometheus *PrometheusConfig `yaml:"prometheus"`
}

// PrometheusConfig enables the Prometheus reporter and its HTTP handler.
type PrometheusConfig struct {
	Enable bool `yaml:"enable"`
}

// InitMetricScope initializes a root tally scope, its closer, and an HTTP
// mux that exposes /metrics (when Prometheus is enabled) and /health.
func InitMetricScope(
	cfg *Config,
	rootMetricScope string,
	flushInterval time.Duration,
) (tally.Scope, io.Closer, *nethttp.ServeMux) {
	mux := nethttp.NewServeMux()
	var reporter tally.StatsReporter
	var cachedReporter tally.CachedStatsReporter
	var promHandler nethttp.Handler
	separator := "."

	if cfg != nil && cfg.Prometheus != nil && cfg.Prometheus.Enable {
		// tally panics if the scope name contains "-"
		rootMetricScope = strings.Replace(rootMetricScope, "-", "_", -1)
		separator = "_"
		promReporter := tallyprom.NewReporter(tallyprom.Options{})
		cachedReporter = promReporter
		promHandler = promReporter.HTTPHandler()
	} else {
		log.Warn("no metrics backend configured, using the no-op reporter")
		reporter = tally.NullStatsReporter
	}

	if promHandler != nil {
		mux.Handle("/metrics", promHandler)
	}
	mux.HandleFunc("/health", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
		fmt.Fprintln(w, "OK")
	})

	scope, closer := tally.NewRootScope(tally.ScopeOptions{
		Prefix:         rootMetricScope,
		Tags:           map[string]string{},
		Reporter:       reporter,
		CachedReporter: cachedReporter,
		Separator:      separator,
	}, flushInterval)
	return scope, closer, mux
}
