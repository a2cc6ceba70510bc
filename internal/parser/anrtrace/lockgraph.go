package anrtrace

import (
	"fmt"
	"sort"

	"github.com/nordlys/bugsight/pkg/models"
)

// BuildLockGraph builds the wait-for graph: one node per thread that
// appears in a wait/hold relation, one edge per thread whose
// WaitingOnLock names a holder.
func BuildLockGraph(threads []models.ThreadInfo) models.LockGraph {
	byTid := threadsByTid(threads)

	nodes := make(map[int]string)
	addNode := func(tid int) {
		if _, ok := nodes[tid]; ok {
			return
		}
		if t, ok := byTid[tid]; ok {
			nodes[tid] = t.Name
		} else {
			nodes[tid] = fmt.Sprintf("thread-%d", tid)
		}
	}

	var edges []models.LockEdge
	for i := range threads {
		t := &threads[i]
		if len(t.HeldLocks) > 0 {
			addNode(t.Tid)
		}
		if t.WaitingOnLock == nil {
			continue
		}
		addNode(t.Tid)
		if t.WaitingOnLock.HeldByTid == 0 {
			continue
		}
		addNode(t.WaitingOnLock.HeldByTid)
		edges = append(edges, models.LockEdge{
			From:          t.Tid,
			To:            t.WaitingOnLock.HeldByTid,
			LockAddress:   t.WaitingOnLock.Address,
			LockClassName: t.WaitingOnLock.ClassName,
		})
	}

	tids := make([]int, 0, len(nodes))
	for tid := range nodes {
		tids = append(tids, tid)
	}
	sort.Ints(tids)

	g := models.LockGraph{}
	for _, tid := range tids {
		g.Nodes = append(g.Nodes, models.LockNode{Tid: tid, ThreadName: nodes[tid]})
	}
	g.Edges = edges
	return g
}

// DetectDeadlocks runs a DFS over the wait-for graph with an explicit
// recursion stack. A back-edge to a node currently on the stack closes a
// cycle; cycles spanning fewer than two threads are ignored.
func DetectDeadlocks(threads []models.ThreadInfo, graph models.LockGraph) models.DeadlockInfo {
	adjacency := make(map[int][]models.LockEdge)
	for _, e := range graph.Edges {
		adjacency[e.From] = append(adjacency[e.From], e)
	}

	byTid := threadsByTid(threads)
	visited := make(map[int]bool)
	onStack := make(map[int]bool)
	seenCycles := make(map[string]bool)

	var info models.DeadlockInfo
	var stack []int

	var dfs func(tid int)
	dfs = func(tid int) {
		visited[tid] = true
		onStack[tid] = true
		stack = append(stack, tid)

		for _, e := range adjacency[tid] {
			if !visited[e.To] {
				dfs(e.To)
				continue
			}
			if !onStack[e.To] {
				continue
			}

			// Back-edge: the cycle is the stack suffix starting at e.To.
			start := 0
			for i, t := range stack {
				if t == e.To {
					start = i
					break
				}
			}
			cycle := stack[start:]
			if len(cycle) < 2 {
				continue
			}
			if key := cycleKey(cycle); !seenCycles[key] {
				seenCycles[key] = true
				info.Cycles = append(info.Cycles, buildCycle(cycle, byTid))
			}
		}

		stack = stack[:len(stack)-1]
		onStack[tid] = false
	}

	for _, n := range graph.Nodes {
		if !visited[n.Tid] {
			dfs(n.Tid)
		}
	}

	info.Detected = len(info.Cycles) > 0
	return info
}

func buildCycle(tids []int, byTid map[int]*models.ThreadInfo) models.DeadlockCycle {
	c := models.DeadlockCycle{Tids: append([]int(nil), tids...)}
	for _, tid := range tids {
		t, ok := byTid[tid]
		if !ok {
			c.Threads = append(c.Threads, fmt.Sprintf("thread-%d", tid))
			continue
		}
		c.Threads = append(c.Threads, t.Name)
		if t.WaitingOnLock != nil {
			c.Locks = append(c.Locks, t.WaitingOnLock.Address+" ("+t.WaitingOnLock.ClassName+")")
		}
	}
	return c
}

func cycleKey(tids []int) string {
	sorted := append([]int(nil), tids...)
	sort.Ints(sorted)
	return fmt.Sprint(sorted)
}

// BlockingChain follows WaitingOnLock.HeldByTid transitively from a
// thread, returning the names of threads holding the resources it needs,
// nearest holder first. A visited set guards against cycles.
func BlockingChain(start *models.ThreadInfo, threads []models.ThreadInfo) []string {
	byTid := threadsByTid(threads)
	visited := map[int]bool{start.Tid: true}

	var chain []string
	cur := start
	for cur.WaitingOnLock != nil && cur.WaitingOnLock.HeldByTid != 0 {
		holderTid := cur.WaitingOnLock.HeldByTid
		if visited[holderTid] {
			break
		}
		visited[holderTid] = true

		holder, ok := byTid[holderTid]
		if !ok {
			chain = append(chain, fmt.Sprintf("thread-%d", holderTid))
			break
		}
		chain = append(chain, holder.Name)
		cur = holder
	}
	return chain
}

// isInDeadlockCycle reports whether a tid participates in any detected cycle.
func isInDeadlockCycle(tid int, info models.DeadlockInfo) bool {
	for _, c := range info.Cycles {
		for _, t := range c.Tids {
			if t == tid {
				return true
			}
		}
	}
	return false
}

func threadsByTid(threads []models.ThreadInfo) map[int]*models.ThreadInfo {
	m := make(map[int]*models.ThreadInfo, len(threads))
	for i := range threads {
		m[threads[i].Tid] = &threads[i]
	}
	return m
}
