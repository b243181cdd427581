package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc"
	kingpin "gopkg.in/alecthomas/kingpin.v2"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/common/buildversion"
	"github.com/uber/workloadcompactor/pkg/common/config"
	"github.com/uber/workloadcompactor/pkg/common/health"
	"github.com/uber/workloadcompactor/pkg/common/logging"
	"github.com/uber/workloadcompactor/pkg/common/metrics"
	"github.com/uber/workloadcompactor/pkg/common/rpc"
	"github.com/uber/workloadcompactor/pkg/placement"
	"github.com/uber/workloadcompactor/pkg/topology"
)

var (
	version string
	app     = kingpin.New("placementcontroller", "WorkloadCompactor placement controller")

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

	admissionAddrs = app.Flag("admission-addr", "admissioncontroller peer address, may be given multiple times "+
		"(admission_addrs override)").
		Envar("ADMISSION_ADDRS").
		Strings()
)

func getConfig(cfgFiles ...string) Config {
	log.WithField("files", cfgFiles).Info("loading placementcontroller config")

	var cfg Config
	if err := config.Parse(&cfg, cfgFiles...); err != nil {
		log.WithError(err).Fatal("cannot parse yaml config")
	}
	if *httpPort != 0 {
		cfg.HTTPPort = *httpPort
	}
	if len(*admissionAddrs) > 0 {
		cfg.AdmissionAddrs = *admissionAddrs
	}

	log.WithField("config", cfg).Info("loaded placementcontroller config")
	return cfg
}

// dialAdmission builds one outbound per configured admissioncontroller
// peer and returns a placement.AdmissionClient for each, driven in
// lockstep by the placement controller's worker pool.
func dialAdmission(dispatcher *yarpc.Dispatcher, addrs []string) []placement.AdmissionClient {
	conns := make([]placement.AdmissionClient, len(addrs))
	for i := range addrs {
		outboundName := fmt.Sprintf("admissioncontroller-%d", i)
		conns[i] = admission.NewClient(dispatcher.ClientConfig(outboundName))
	}
	return conns
}

func outboundsFor(addrs []string) yarpc.Outbounds {
	outbounds := make(yarpc.Outbounds, len(addrs))
	for i, addr := range addrs {
		outbounds[fmt.Sprintf("admissioncontroller-%d", i)] = rpc.NewOutboundHTTP(addr)
	}
	return outbounds
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

	topologyCfg, err := topology.LoadConfig(cfg.TopologyFile)
	if err != nil {
		log.WithError(err).Fatal("cannot load topology config")
	}

	var device *topology.DeviceProfile
	if cfg.DeviceProfileFile != "" {
		device, err = topology.LoadDeviceProfile(cfg.DeviceProfileFile)
		if err != nil {
			log.WithError(err).Fatal("cannot load device profile")
		}
	}

	rootScope, scopeCloser, mux := metrics.InitMetricScope(&cfg.Metrics, "placementcontroller", metrics.TallyFlushInterval)
	defer scopeCloser.Close()
	rootScope.Counter("boot").Inc(1)

	mux.HandleFunc(logging.LevelOverwrite, logging.LevelOverwriteHandler(initialLevel))
	mux.HandleFunc(buildversion.Get, buildversion.Handler(version))

	dispatcher := rpc.NewDispatcher(
		"placementcontroller",
		rpc.NewInbounds(cfg.HTTPPort, mux),
		outboundsFor(cfg.AdmissionAddrs),
	)

	conns := dialAdmission(dispatcher, cfg.AdmissionAddrs)

	placer := placement.NewPlacer(conns, placement.PlacerConfig{
		Topology:   topologyCfg,
		Device:     device,
		NetworkIn:  cfg.NetworkIn,
		NetworkOut: cfg.NetworkOut,
		TraceDir:   cfg.TraceDir,
		CacheDir:   cfg.CacheDir,
		Metrics:    placement.NewMetrics(rootScope),
	})
	placer.Start()
	defer placer.Stop()

	placement.RegisterServiceHandler(dispatcher, placer)

	rpc.StartDispatcher(dispatcher)
	defer dispatcher.Stop()

	health.InitHeartbeat(rootScope, cfg.Health)

	log.WithField("http_port", cfg.HTTPPort).Info("placementcontroller started")
	select {}
}
