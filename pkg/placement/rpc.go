package placement

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/yarpc"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/encoding/json"

	"github.com/uber/workloadcompactor/pkg/topology"
)

// ServiceName is the YARPC service name placementcontroller registers
// its procedures under.
const ServiceName = "Placement"

// PlaceClientRequest is the place_client RPC body of §6.
type PlaceClientRequest struct {
	Client topology.ClientEntry
}

// RemoveClientRequest is the remove_client RPC body.
type RemoveClientRequest struct {
	ClientName string
	ClientHost string
	ClientVM   string
}

// RemoveClientResponse is the remove_client RPC response.
type RemoveClientResponse struct {
	Error string
}

// handler adapts a Placer to yarpc's JSON encoding.
type handler struct {
	placer *Placer
}

// RegisterServiceHandler registers a Placer's operations as JSON
// procedures on dispatcher, per §6's placement RPC.
func RegisterServiceHandler(dispatcher *yarpc.Dispatcher, placer *Placer) {
	h := &handler{placer: placer}
	dispatcher.Register(json.Procedure(ServiceName+".PlaceClient", h.placeClient))
	dispatcher.Register(json.Procedure(ServiceName+".RemoveClient", h.removeClient))
}

func (h *handler) placeClient(_ context.Context, req *PlaceClientRequest) (*PlacementResult, error) {
	result, err := h.placer.PlaceClient(req.Client)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (h *handler) removeClient(_ context.Context, req *RemoveClientRequest) (*RemoveClientResponse, error) {
	if err := h.placer.RemoveClient(req.ClientName, req.ClientHost, req.ClientVM); err != nil {
		return &RemoveClientResponse{Error: err.Error()}, nil
	}
	return &RemoveClientResponse{}, nil
}

// Client calls a remote placementcontroller's JSON procedures. It is the
// primary interface placementclient uses to drive placement decisions.
type Client struct {
	json json.Client
}

// NewClient wraps a YARPC client config dialed to a placementcontroller.
func NewClient(clientConfig transport.ClientConfig) *Client {
	return &Client{json: json.New(clientConfig)}
}

// PlaceClient calls the remote placementcontroller's place_client.
func (c *Client) PlaceClient(ctx context.Context, client topology.ClientEntry) (PlacementResult, error) {
	var resp PlacementResult
	req := &PlaceClientRequest{Client: client}
	if err := c.json.Call(ctx, ServiceName+".PlaceClient", req, &resp); err != nil {
		return PlacementResult{}, err
	}
	return resp, nil
}

// RemoveClient calls the remote placementcontroller's remove_client.
func (c *Client) RemoveClient(ctx context.Context, clientName, clientHost, clientVM string) error {
	var resp RemoveClientResponse
	req := &RemoveClientRequest{ClientName: clientName, ClientHost: clientHost, ClientVM: clientVM}
	if err := c.json.Call(ctx, ServiceName+".RemoveClient", req, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return errors.New(resp.Error)
	}
	return nil
}
