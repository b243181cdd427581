package rpc

import (
	"fmt"
	nethttp "net/http"

	log "github.com/sirupsen/logrus"
	"go.uber.org/yarpc"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/transport/http"
)

// EndpointPath is the HTTP path that the JSON-RPC procedures are served on.
const EndpointPath = "/api/v1"

// NewInbounds creates the HTTP inbound that the admission and placement
// controllers serve their YARPC procedures on. The given mux is mounted
// alongside the RPC endpoint so /health and /metrics keep working on the
// same port.
func NewInbounds(httpPort int, mux *nethttp.ServeMux) []transport.Inbound {
	ht := http.NewTransport()
	return []transport.Inbound{
		ht.NewInbound(
			fmt.Sprintf(":%d", httpPort),
			http.Mux(EndpointPath, mux),
		),
	}
}

// NewOutboundHTTP creates an HTTP outbound dialed to the given peer address,
// for clients that call an admission controller or placement controller.
func NewOutboundHTTP(peerAddr string) transport.Outbounds {
	ht := http.NewTransport()
	return transport.Outbounds{
		Unary: ht.NewSingleOutbound(peerAddr + EndpointPath),
	}
}

// NewDispatcher builds a YARPC dispatcher with the given service name,
// inbounds, and outbounds keyed by outbound service name.
func NewDispatcher(
	serviceName string,
	inbounds []transport.Inbound,
	outbounds yarpc.Outbounds,
) *yarpc.Dispatcher {
	cfg := yarpc.Config{
		Name:     serviceName,
		Inbounds: inbounds,
	}
	if len(outbounds) > 0 {
		cfg.Outbounds = outbounds
	}
	return yarpc.NewDispatcher(cfg)
}

// StartDispatcher starts the dispatcher and fatals on failure, matching the
// fail-fast posture of the rest of the service bootstrap path.
func StartDispatcher(dispatcher *yarpc.Dispatcher) {
	if err := dispatcher.Start(); err != nil {
		log.WithError(err).Fatal("failed to start RPC dispatcher")
	}
}
