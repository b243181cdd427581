package graph

// CouplingGroup is a maximal set of client ids whose flows share queues
// transitively — the unit the WorkloadCompactor optimizer solves jointly.
type CouplingGroup struct {
	ClientIDs []int64
	QueueIDs  []int64
}

// unionFind is a minimal disjoint-set over int64 ids namespaced by kind,
// used to compute coupling groups.
type unionFind struct {
	parent map[int64]int64
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[int64]int64)}
}

func (u *unionFind) find(x int64) int64 {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
	}
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int64) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Queue ids and client ids are namespaced into a single id space by
// doubling the queue id (even) and doubling+1 the client id (odd), since
// both are small monotonically-increasing counters private to one Graph.
func queueNode(id int64) int64  { return id * 2 }
func clientNode(id int64) int64 { return id*2 + 1 }

// CouplingGroups partitions the clients reachable (via shared queues)
// from the given starting queue ids into disjoint coupling groups, per
// §4.5: two flows are coupled if they share a queue, and coupling is
// transitive across a client's other flows and queues.
func (g *Graph) CouplingGroups(queueIDs []int64) []CouplingGroup {
	uf := newUnionFind()

	visitedQueues := make(map[int64]bool)
	pending := append([]int64(nil), queueIDs...)

	for len(pending) > 0 {
		qid := pending[0]
		pending = pending[1:]
		if visitedQueues[qid] {
			continue
		}
		visitedQueues[qid] = true

		q, ok := g.queues[qid]
		if !ok {
			continue
		}
		for fid := range q.flowHops {
			flow := g.flows[fid]
			uf.union(queueNode(qid), clientNode(flow.ClientID))
			for _, otherQid := range flow.Path {
				uf.union(queueNode(qid), queueNode(otherQid))
				if !visitedQueues[otherQid] {
					pending = append(pending, otherQid)
				}
			}
		}
	}

	groups := make(map[int64]*CouplingGroup)
	groupFor := func(root int64) *CouplingGroup {
		grp, ok := groups[root]
		if !ok {
			grp = &CouplingGroup{}
			groups[root] = grp
		}
		return grp
	}

	for qid := range visitedQueues {
		groupFor(uf.find(queueNode(qid))).QueueIDs = append(groupFor(uf.find(queueNode(qid))).QueueIDs, qid)
	}

	seenClients := make(map[int64]bool)
	for qid := range visitedQueues {
		q := g.queues[qid]
		for fid := range q.flowHops {
			cid := g.flows[fid].ClientID
			if seenClients[cid] {
				continue
			}
			seenClients[cid] = true
			grp := groupFor(uf.find(clientNode(cid)))
			grp.ClientIDs = append(grp.ClientIDs, cid)
		}
	}

	out := make([]CouplingGroup, 0, len(groups))
	for _, grp := range groups {
		out = append(out, *grp)
	}
	return out
}
