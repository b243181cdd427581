package placement

import (
	"sync"

	"github.com/uber/workloadcompactor/pkg/topology"
)

// Candidate is one (server_host, server_vm) pair the placement controller
// can try a workload against, in the deterministic order defined by the
// topology document's serverVMs list.
type Candidate struct {
	ServerHost string
	ServerVM   string
}

// Candidates enumerates every server VM in cfg, in document order —
// the fixed order first-fit trials pop from, per §4.7.
func Candidates(cfg *topology.Config) []Candidate {
	out := make([]Candidate, 0, len(cfg.ServerVMs))
	for _, sv := range cfg.ServerVMs {
		out = append(out, Candidate{ServerHost: sv.ServerHost, ServerVM: sv.ServerVM})
	}
	return out
}

// Inventory tracks client-host VM availability and the controller's
// sticky server-host/client-host bindings used by the client/server
// grouping procedure of §4.7.
type Inventory struct {
	mu sync.Mutex

	hostOrder []string
	freeVMs   map[string][]string

	// binding is the currently active server-host -> client-host choice.
	binding map[string]string
	// history retains every client-host ever bound to a server-host, even
	// after binding is cleared, so a server that has hosted a client
	// before prefers it again over a fresh most-free-VMs pick.
	history map[string][]string
}

// NewInventory builds an Inventory from a topology document's clientVMs.
// An Inventory is read and mutated concurrently by the placement worker
// pool and is safe for that.
func NewInventory(cfg *topology.Config) *Inventory {
	inv := &Inventory{
		freeVMs: make(map[string][]string),
		binding: make(map[string]string),
		history: make(map[string][]string),
	}
	for _, cv := range cfg.ClientVMs {
		if _, ok := inv.freeVMs[cv.ClientHost]; !ok {
			inv.hostOrder = append(inv.hostOrder, cv.ClientHost)
		}
		inv.freeVMs[cv.ClientHost] = append(inv.freeVMs[cv.ClientHost], cv.ClientVM)
	}
	return inv
}

// ChooseClientHost implements §4.7's client/server grouping procedure:
// reuse the host currently bound to serverHost; else reuse a host this
// server-host has hosted before; else pick the host with the most free
// VMs. Returns false if no client host has a free VM.
func (inv *Inventory) ChooseClientHost(serverHost string) (string, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if ch, ok := inv.binding[serverHost]; ok && len(inv.freeVMs[ch]) > 0 {
		return ch, true
	}
	for _, ch := range inv.history[serverHost] {
		if len(inv.freeVMs[ch]) > 0 {
			return ch, true
		}
	}

	best, bestFree := "", -1
	for _, ch := range inv.hostOrder {
		if free := len(inv.freeVMs[ch]); free > bestFree {
			best, bestFree = ch, free
		}
	}
	if bestFree <= 0 {
		return "", false
	}
	return best, true
}

// PeekVM returns the next VM ChooseClientHost's host would be assigned,
// without reserving it. Used during trial concretization, where the
// candidate may not end up being the chosen one.
func (inv *Inventory) PeekVM(clientHost string) (string, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	free := inv.freeVMs[clientHost]
	if len(free) == 0 {
		return "", false
	}
	return free[0], true
}

// AllocateVM removes vm from clientHost's free pool. It reports false if
// vm was not free, which can happen if a concurrent placement already
// claimed it between the trial's PeekVM and this call.
func (inv *Inventory) AllocateVM(clientHost, vm string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	free := inv.freeVMs[clientHost]
	for i, v := range free {
		if v == vm {
			inv.freeVMs[clientHost] = append(free[:i], free[i+1:]...)
			return true
		}
	}
	return false
}

// ReleaseVM returns vm to clientHost's free pool.
func (inv *Inventory) ReleaseVM(clientHost, vm string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.freeVMs[clientHost] = append(inv.freeVMs[clientHost], vm)
}

// Bind records that serverHost's workload is now hosted from clientHost.
func (inv *Inventory) Bind(serverHost, clientHost string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	inv.binding[serverHost] = clientHost
	for _, ch := range inv.history[serverHost] {
		if ch == clientHost {
			return
		}
	}
	inv.history[serverHost] = append(inv.history[serverHost], clientHost)
}

// Unbind clears the active binding for serverHost (its history entry is
// kept, so future placements still prefer it).
func (inv *Inventory) Unbind(serverHost string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.binding, serverHost)
}
