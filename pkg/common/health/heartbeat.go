package health

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally"
	"go.uber.org/atomic"
)

// Heartbeat periodically emits a liveness gauge from its own goroutine.
// It runs independently of the process's other work, so a request loop
// that is blocked does not stop the gauge.
type Heartbeat interface {
	Start()
	Stop()
}

type heartbeat struct {
	sync.Mutex

	running  atomic.Bool
	stopChan chan struct{}

	metrics           *Metrics
	heartbeatInterval time.Duration
}

var hb *heartbeat
var onceInitHeartbeat sync.Once

// InitHeartbeat initializes and starts the process-wide heartbeat.
func InitHeartbeat(parent tally.Scope, config Config) {
	onceInitHeartbeat.Do(func() {
		hb = &heartbeat{
			metrics:           NewMetrics(parent.SubScope("health")),
			heartbeatInterval: config.HeartbeatInterval,
			stopChan:          make(chan struct{}),
		}
		hb.metrics.Init.Inc(1)
		hb.Start()
	})
}

func (*heartbeat) Start() {
	log.Info("heartbeat start called")

	hb.Lock()
	defer hb.Unlock()

	if hb.running.Swap(true) {
		log.Warn("heartbeater is already running, no-op")
		return
	}

	go func() {
		defer hb.running.Store(false)

		for {
			ticker := time.NewTimer(hb.heartbeatInterval)
			select {
			case <-hb.stopChan:
				log.Info("heartbeater stopped")
				return
			case t := <-ticker.C:
				log.WithField("tick", t).Debug("emitting heartbeat")
				hb.metrics.Heartbeat.Update(1)
			}
			ticker.Stop()
		}
	}()

	log.Info("heartbeater started")
}

func (*heartbeat) Stop() {
	log.Info("heartbeat stop called")

	if !hb.running.Load() {
		log.Warn("heartbeat is not running, no-op")
		return
	}

	hb.Lock()
	defer hb.Unlock()

	hb.stopChan <- struct{}{}

	for hb.running.Load() {
		time.Sleep(time.Millisecond)
	}

	log.Info("heartbeat stopped")
}
