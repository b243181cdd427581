// Package placementtest provides test doubles for pkg/placement.
package placementtest

import (
	"sync"

	"github.com/uber/workloadcompactor/pkg/placement"
)

// FakeEnforcer records every UpdateClient/RemoveClient call for assertion
// in tests, instead of pushing anywhere.
type FakeEnforcer struct {
	mu       sync.Mutex
	Updates  map[string][]placement.ShaperAssignment
	Removed  map[string]int
}

// NewFakeEnforcer returns an empty FakeEnforcer.
func NewFakeEnforcer() *FakeEnforcer {
	return &FakeEnforcer{
		Updates: make(map[string][]placement.ShaperAssignment),
		Removed: make(map[string]int),
	}
}

// UpdateClient implements placement.Enforcer.
func (f *FakeEnforcer) UpdateClient(clientName string, assignments []placement.ShaperAssignment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Updates[clientName] = append([]placement.ShaperAssignment(nil), assignments...)
	return nil
}

// RemoveClient implements placement.Enforcer.
func (f *FakeEnforcer) RemoveClient(clientName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed[clientName]++
	return nil
}
