package admission

import (
	"context"

	"go.uber.org/yarpc"
	"go.uber.org/yarpc/api/transport"
	"go.uber.org/yarpc/encoding/json"
)

// ServiceName is the YARPC service name admissioncontroller registers
// its procedures under.
const ServiceName = "Admission"

// AddQueueRequest is the add_queue RPC body of §6.
type AddQueueRequest struct {
	Queue QueueInfo
}

// AddQueueResponse is the add_queue RPC response.
type AddQueueResponse struct {
	Status StatusCode
}

// DelQueueRequest is the del_queue RPC body.
type DelQueueRequest struct {
	Name string
}

// DelQueueResponse is the del_queue RPC response.
type DelQueueResponse struct {
	Status StatusCode
}

// AddClientsRequest is the add_clients RPC body of §6.
type AddClientsRequest struct {
	Batch        []ClientInfo
	FastFirstFit bool
}

// DelClientRequest is the del_client RPC body.
type DelClientRequest struct {
	Name string
}

// DelClientResponse is the del_client RPC response.
type DelClientResponse struct {
	Status StatusCode
}

// handler adapts a Worker to yarpc's JSON encoding.
type handler struct {
	worker *Worker
}

// RegisterServiceHandler registers the admission worker's operations as
// JSON procedures on dispatcher, per §6's admission RPC.
func RegisterServiceHandler(dispatcher *yarpc.Dispatcher, worker *Worker) {
	h := &handler{worker: worker}
	dispatcher.Register(json.Procedure(ServiceName+".AddQueue", h.addQueue))
	dispatcher.Register(json.Procedure(ServiceName+".DelQueue", h.delQueue))
	dispatcher.Register(json.Procedure(ServiceName+".AddClients", h.addClients))
	dispatcher.Register(json.Procedure(ServiceName+".DelClient", h.delClient))
}

func (h *handler) addQueue(_ context.Context, req *AddQueueRequest) (*AddQueueResponse, error) {
	return &AddQueueResponse{Status: h.worker.AddQueue(req.Queue)}, nil
}

func (h *handler) delQueue(_ context.Context, req *DelQueueRequest) (*DelQueueResponse, error) {
	return &DelQueueResponse{Status: h.worker.DelQueue(req.Name)}, nil
}

func (h *handler) addClients(_ context.Context, req *AddClientsRequest) (*AddClientsResult, error) {
	result := h.worker.AddClients(req.Batch, req.FastFirstFit)
	return &result, nil
}

func (h *handler) delClient(_ context.Context, req *DelClientRequest) (*DelClientResponse, error) {
	return &DelClientResponse{Status: h.worker.DelClient(req.Name)}, nil
}

// Client calls a remote admissioncontroller's JSON procedures. It
// implements pkg/placement.AdmissionClient so the placement controller
// can drive it exactly like an in-process Worker.
type Client struct {
	json json.Client
}

// NewClient wraps a YARPC client config dialed to an admissioncontroller.
func NewClient(clientConfig transport.ClientConfig) *Client {
	return &Client{json: json.New(clientConfig)}
}

// AddClients implements placement.AdmissionClient.
func (c *Client) AddClients(batch []ClientInfo, fastFirstFit bool) AddClientsResult {
	var resp AddClientsResult
	ctx := context.Background()
	req := &AddClientsRequest{Batch: batch, FastFirstFit: fastFirstFit}
	if err := c.json.Call(ctx, ServiceName+".AddClients", req, &resp); err != nil {
		return AddClientsResult{Status: StatusErrInvalidArgument}
	}
	return resp
}

// DelClient implements placement.AdmissionClient.
func (c *Client) DelClient(name string) StatusCode {
	var resp DelClientResponse
	ctx := context.Background()
	req := &DelClientRequest{Name: name}
	if err := c.json.Call(ctx, ServiceName+".DelClient", req, &resp); err != nil {
		return StatusErrClientNameNonexistent
	}
	return resp.Status
}

// AddQueue calls the remote admissioncontroller's add_queue.
func (c *Client) AddQueue(ctx context.Context, info QueueInfo) (StatusCode, error) {
	var resp AddQueueResponse
	if err := c.json.Call(ctx, ServiceName+".AddQueue", &AddQueueRequest{Queue: info}, &resp); err != nil {
		return 0, err
	}
	return resp.Status, nil
}

// DelQueue calls the remote admissioncontroller's del_queue.
func (c *Client) DelQueue(ctx context.Context, name string) (StatusCode, error) {
	var resp DelQueueResponse
	if err := c.json.Call(ctx, ServiceName+".DelQueue", &DelQueueRequest{Name: name}, &resp); err != nil {
		return 0, err
	}
	return resp.Status, nil
}
