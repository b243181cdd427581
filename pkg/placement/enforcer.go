package placement

// ShaperAssignment is one flow's negotiated priority/shaper pair, as
// pushed to an enforcer.
type ShaperAssignment struct {
	Priority int32
	Rate     float64
	Burst    float64
}

// Enforcer is the out-of-scope push interface of §6: the core hands off
// only the data (per-flow priority and shaper), not how enforcement is
// achieved.
type Enforcer interface {
	// UpdateClient pushes the current set of per-flow shaper assignments
	// for the named client.
	UpdateClient(clientName string, assignments []ShaperAssignment) error
	// RemoveClient tells the enforcer a client's shapers no longer apply.
	RemoveClient(clientName string) error
}

// NullEnforcer discards every push. NewPlacer uses it whenever
// PlacerConfig.Enforcer is nil; the topology document's enforce flag is
// not consulted.
type NullEnforcer struct{}

// UpdateClient implements Enforcer.
func (NullEnforcer) UpdateClient(string, []ShaperAssignment) error { return nil }

// RemoveClient implements Enforcer.
func (NullEnforcer) RemoveClient(string) error { return nil }
