package admission

import "github.com/uber-go/tally"

// Metrics holds the tally instruments emitted by the admission worker.
type Metrics struct {
	AddClientsSuccess tally.Counter
	AddClientsReject  tally.Counter
	AddClientsFail    tally.Counter
	DelClient         tally.Counter

	AddQueue tally.Counter
	DelQueue tally.Counter

	OptimizeDuration tally.Timer
	LatencyCheck     tally.Timer

	DirtyQueueDepth tally.Gauge
}

// NewMetrics returns a Metrics rooted below the given tally scope.
func NewMetrics(scope tally.Scope) *Metrics {
	addClientsScope := scope.SubScope("add_clients")
	successScope := addClientsScope.Tagged(map[string]string{"result": "success"})
	rejectScope := addClientsScope.Tagged(map[string]string{"result": "reject"})
	failScope := addClientsScope.Tagged(map[string]string{"result": "fail"})

	return &Metrics{
		AddClientsSuccess: successScope.Counter("total"),
		AddClientsReject:  rejectScope.Counter("total"),
		AddClientsFail:    failScope.Counter("total"),
		DelClient:         scope.Counter("del_client"),

		AddQueue: scope.Counter("add_queue"),
		DelQueue: scope.Counter("del_queue"),

		OptimizeDuration: scope.Timer("optimize_duration"),
		LatencyCheck:     scope.Timer("latency_check_duration"),

		DirtyQueueDepth: scope.Gauge("dirty_queue_depth"),
	}
}
