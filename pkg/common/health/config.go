package health

import "time"

// Config holds the heartbeat emission configuration.
type Config struct {
	// HeartbeatInterval is how often the heartbeat gauge is emitted.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}
