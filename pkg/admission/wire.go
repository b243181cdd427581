package admission

import "github.com/uber/workloadcompactor/pkg/curve"

// QueueInfo describes a queue to add, per §6's admission RPC.
type QueueInfo struct {
	Name      string
	Bandwidth float64
}

// FlowInfo describes one flow of a client to add. Arrival is nil when the
// caller omitted arrival information, which fails validation. Priority is
// not an input: the optimizer assigns it from the owning client's SLO
// rank and it is only ever surfaced back in a FlowResult.
type FlowInfo struct {
	Name          string
	QueueNames    []string
	Arrival       *curve.Curve
	IgnoreLatency bool
}

// ClientInfo describes a client and its flows to add. Admitted, when
// true, is an override that skips this client's own latency check (it
// does not exempt clients it affects).
type ClientInfo struct {
	Name          string
	SLOSeconds    float64
	SLOPercentile float64
	Admitted      bool
	Flows         []FlowInfo
}

// FlowResult is the admitted (priority, shaper) outcome for one flow.
type FlowResult struct {
	Name     string
	Priority int32
	Rate     float64
	Burst    float64
}

// AddClientsResult is the response to add_clients.
type AddClientsResult struct {
	Status   StatusCode
	Admitted bool
	Flows    []FlowResult
}
