package main

import (
	"os"

	log "github.com/sirupsen/logrus"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/analyzer"
	"github.com/uber/workloadcompactor/pkg/common/buildversion"
	"github.com/uber/workloadcompactor/pkg/common/config"
	"github.com/uber/workloadcompactor/pkg/common/health"
	"github.com/uber/workloadcompactor/pkg/common/logging"
	"github.com/uber/workloadcompactor/pkg/common/metrics"
	"github.com/uber/workloadcompactor/pkg/common/rpc"
	"github.com/uber/workloadcompactor/pkg/optimizer"
	"github.com/uber/workloadcompactor/pkg/optimizer/gonumsolver"
)

var (
	version string
	app     = kingpin.New("admissioncontroller", "WorkloadCompactor admission controller")

	debug = app.Flag("debug", "enable debug logging").
		Short('d').
		Default("false").
		Envar("ENABLE_DEBUG_LOGGING").
		Bool()

	cfgFiles = app.Flag("config", "YAML config files (may be given multiple times to merge configs)").
			Short('c').
			Required().
			ExistingFiles()

	httpPort = app.Flag("http-port", "HTTP/RPC port (http_port override) (set $HTTP_PORT to override)").
			Envar("HTTP_PORT").
			Int()
)

func getConfig(cfgFiles ...string) Config {
	log.WithField("files", cfgFiles).Info("loading admissioncontroller config")

	var cfg Config
	if err := config.Parse(&cfg, cfgFiles...); err != nil {
		log.WithError(err).Fatal("cannot parse yaml config")
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}

	log.WithField("config", cfg).Info("loaded admissioncontroller config")
	return cfg
}

func newSolver() optimizer.Solver {
	return gonumsolver.New()
}

func main() {
	app.Version(version)
	app.HelpFlag.Short('h')
	kingpin.MustParse(app.Parse(os.Args[1:]))

	log.SetFormatter(&logging.LogFieldFormatter{
		Formatter: &log.JSONFormatter{},
		Fields:    log.Fields{"app": app.Name},
	})

	initialLevel := log.InfoLevel
	if *debug {
		initialLevel = log.DebugLevel
	}
	log.SetLevel(initialLevel)

	cfg := getConfig(*cfgFiles...)

	rootScope, scopeCloser, mux := metrics.InitMetricScope(&cfg.Metrics, "admissioncontroller", metrics.TallyFlushInterval)
	defer scopeCloser.Close()
	rootScope.Counter("boot").Inc(1)

	mux.HandleFunc(logging.LevelOverwrite, logging.LevelOverwriteHandler(initialLevel))
	mux.HandleFunc(buildversion.Get, buildversion.Handler(version))

	worker := admission.NewWorker(
		analyzer.New(analyzerVariant(cfg.Analyzer)),
		newSolver,
		admission.NewMetrics(rootScope),
	)

	dispatcher := rpc.NewDispatcher("admissioncontroller", rpc.NewInbounds(cfg.HTTPPort, mux), nil)
	admission.RegisterServiceHandler(dispatcher, worker)

	rpc.StartDispatcher(dispatcher)
	defer dispatcher.Stop()

	health.InitHeartbeat(rootScope, cfg.Health)

	log.WithField("http_port", cfg.HTTPPort).Info("admissioncontroller started")
	select {}
}
