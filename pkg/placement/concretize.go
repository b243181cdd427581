package placement

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/uber/workloadcompactor/pkg/admission"
	"github.com/uber/workloadcompactor/pkg/curve"
	"github.com/uber/workloadcompactor/pkg/estimator"
	"github.com/uber/workloadcompactor/pkg/topology"
)

// DefaultMaxBreakpoints bounds the interior breakpoints kept by a
// freshly-built arrival curve.
const DefaultMaxBreakpoints = 12

const (
	flowNetworkIn  = "network-in"
	flowStorage    = "storage"
	flowNetworkOut = "network-out"
)

// ConcretizeInput gathers everything needed to turn an abstract client
// entry and a chosen placement into concrete flows, per §4.8.
type ConcretizeInput struct {
	Client     topology.ClientEntry
	AddrPrefix string

	ClientHost, ClientVM string
	ServerHost, ServerVM string

	NetworkIn  estimator.NetworkCoefficients
	NetworkOut estimator.NetworkCoefficients
	Device     *topology.DeviceProfile

	// TraceDir holds the client's trace file, named Client.Trace.
	TraceDir string
	// CacheDir, if non-empty, caches built arrival curves as
	// "<CacheDir>/<ClientName>-<flow kind>.csv".
	CacheDir string
}

// queueNames synthesizes the five queue addresses a fully concretized
// client can touch, per §4.8.
type queueNames struct {
	clientOut, clientIn string
	serverIn, serverOut string
	serverStorage       string
}

func buildQueueNames(in ConcretizeInput) queueNames {
	clientAddr := topology.Addr(in.AddrPrefix, in.ClientHost, in.ClientVM)
	serverAddr := topology.Addr(in.AddrPrefix, in.ServerHost, in.ServerVM)
	return queueNames{
		clientOut:     clientAddr + "-out",
		clientIn:      clientAddr + "-in",
		serverIn:      serverAddr + "-in",
		serverOut:     serverAddr + "-out",
		serverStorage: serverAddr + "-storage",
	}
}

// Concretize builds the admission.ClientInfo for in's client entry placed
// at the given candidate: a network-in flow, an SSD storage flow, and a
// network-out flow, any of which client options may disable.
func Concretize(in ConcretizeInput) (admission.ClientInfo, error) {
	qn := buildQueueNames(in)

	info := admission.ClientInfo{
		Name:          in.Client.Name,
		SLOSeconds:    in.Client.SLO,
		SLOPercentile: 0.999,
	}

	if !in.Client.StorageOnly {
		flow, err := in.buildFlow(flowNetworkIn, estimator.NetworkIn{Coefficients: in.NetworkIn}, []string{qn.clientOut, qn.serverIn})
		if err != nil {
			return admission.ClientInfo{}, err
		}
		info.Flows = append(info.Flows, flow)
	}

	if !in.Client.NetworkOnly {
		if in.Device == nil {
			return admission.ClientInfo{}, errors.New("concretize: storage flow requested but no device profile given")
		}
		flow, err := in.buildFlow(flowStorage, in.Device.Estimator(), []string{qn.serverStorage})
		if err != nil {
			return admission.ClientInfo{}, err
		}
		info.Flows = append(info.Flows, flow)
	}

	if !in.Client.StorageOnly {
		flow, err := in.buildFlow(flowNetworkOut, estimator.NetworkOut{Coefficients: in.NetworkOut}, []string{qn.serverOut, qn.clientIn})
		if err != nil {
			return admission.ClientInfo{}, err
		}
		info.Flows = append(info.Flows, flow)
	}

	if len(info.Flows) == 0 {
		return admission.ClientInfo{}, errors.Errorf("client %q disables every flow kind", in.Client.Name)
	}
	return info, nil
}

func (in ConcretizeInput) buildFlow(kind string, est estimator.Estimator, queues []string) (admission.FlowInfo, error) {
	c, err := in.loadOrBuildCurve(kind, est)
	if err != nil {
		return admission.FlowInfo{}, errors.Wrapf(err, "build %s flow for client %q", kind, in.Client.Name)
	}
	return admission.FlowInfo{
		Name:       in.Client.Name + "-" + kind,
		QueueNames: queues,
		Arrival:    &c,
	}, nil
}

func (in ConcretizeInput) cachePath(kind string) string {
	if in.CacheDir == "" {
		return ""
	}
	return filepath.Join(in.CacheDir, in.Client.Name+"-"+kind+".csv")
}

func (in ConcretizeInput) loadOrBuildCurve(kind string, est estimator.Estimator) (curve.Curve, error) {
	cachePath := in.cachePath(kind)
	if cachePath != "" {
		if c, err := curve.ReadFile(cachePath); err == nil {
			return c, nil
		}
	}

	tracePath := filepath.Join(in.TraceDir, in.Client.Trace)
	f, err := os.Open(tracePath)
	if err != nil {
		return curve.Curve{}, errors.Wrapf(err, "open trace %q", tracePath)
	}
	defer f.Close()

	c, err := curve.BuildFromTrace(f, est, DefaultMaxBreakpoints)
	if err != nil {
		return curve.Curve{}, errors.Wrapf(err, "build arrival curve from trace %q", tracePath)
	}

	if cachePath != "" {
		if err := curve.WriteFile(cachePath, c); err != nil {
			log.WithError(err).WithField("path", cachePath).Warn("failed to persist arrival curve cache")
		}
	}
	return c, nil
}
