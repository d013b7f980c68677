package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/hyperplay/internal/ir"
)

// CycleWarning represents a potential cycle among links.
//
// Cycles are warnings, not errors, because they may be intentional:
// a looping slideshow restarts itself through a link on its own end.
// At runtime the propagation quota stops loops that never settle.
type CycleWarning struct {
	Path    []string `json:"path"`    // Cycle path: ["body/l1", "body/l2", "body/l1"]
	Message string   `json:"message"` // Human-readable description
	Level   string   `json:"level"`   // "warning" or "info"
}

// AnalyzeCycles performs static cycle analysis on the links of a document.
//
// Link A feeds link B when one of A's actions is the transition one of
// B's conditions waits for, on the same interface point after following
// ports and refers. Strongly connected components of that graph (and
// self-loops) are reported as warnings, in a stable order.
//
// A document whose links form a DAG returns an empty warning list.
func AnalyzeCycles(doc *ir.Document) []CycleWarning {
	graph := buildDependencyGraph(doc)
	if len(graph) == 0 {
		return []CycleWarning{}
	}

	sccs := tarjanSCC(graph)

	warnings := []CycleWarning{}
	for _, scc := range sccs {
		if len(scc) > 1 || (len(scc) == 1 && hasSelfLoop(scc[0], graph)) {
			warnings = append(warnings, cycleSCCToWarning(scc, graph))
		}
	}
	sort.Slice(warnings, func(i, j int) bool {
		return warnings[i].Path[0] < warnings[j].Path[0]
	})
	return warnings
}

// dependencyGraph maps link key -> link keys its actions may trigger.
type dependencyGraph map[string][]string

// linkKey names a link by its context and id.
func linkKey(ctx *ir.Context, l *ir.Link) string {
	return ctx.ID() + "/" + l.ID
}

// bindKey names the event a bind refers to.
func bindKey(doc *ir.Document, b ir.Bind) string {
	target, anchor := b.Component, b.Interface
	if res, err := doc.Resolve(b.Component, b.Interface); err == nil {
		if n, err := doc.Deref(res.Target); err == nil {
			target = n.ID()
		}
		anchor = res.Anchor.ID
	}
	if anchor == "" {
		anchor = ir.LambdaID
	}
	return fmt.Sprintf("%s.%s/%s/%s", target, anchor, b.EventType, b.Transition)
}

// buildDependencyGraph constructs the link dependency graph.
//
// For each link:
//   - Extract the events its actions drive
//   - Find all links with a condition on one of those events
//   - Add edges: this_link -> triggered_links
func buildDependencyGraph(doc *ir.Document) dependencyGraph {
	graph := make(dependencyGraph)
	if doc == nil {
		return graph
	}

	type entry struct {
		key  string
		link *ir.Link
	}
	var links []entry
	listeners := make(map[string][]string)
	for _, n := range doc.Nodes() {
		ctx, ok := n.(*ir.Context)
		if !ok {
			continue
		}
		for _, l := range ctx.Links {
			key := linkKey(ctx, l)
			links = append(links, entry{key: key, link: l})
			for _, c := range l.Conditions {
				ev := bindKey(doc, c)
				listeners[ev] = append(listeners[ev], key)
			}
		}
	}

	for _, e := range links {
		// Initialize with empty slice if no edges (ensures node exists in graph)
		if graph[e.key] == nil {
			graph[e.key] = []string{}
		}
		seen := make(map[string]bool)
		for _, a := range e.link.Actions {
			for _, target := range listeners[bindKey(doc, a)] {
				if !seen[target] {
					seen[target] = true
					graph[e.key] = append(graph[e.key], target)
				}
			}
		}
	}
	return graph
}

// hasSelfLoop checks if a node has an edge to itself.
func hasSelfLoop(node string, graph dependencyGraph) bool {
	for _, neighbor := range graph[node] {
		if neighbor == node {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's algorithm.
//
// Nodes are visited in sorted order so results are reproducible.
// Single-node SCCs without self-loops are NOT cycles.
func tarjanSCC(graph dependencyGraph) [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range graph[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// If v is a root node, pop the stack and create an SCC
		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sort.Strings(scc)
			sccs = append(sccs, scc)
		}
	}

	nodes := make([]string, 0, len(graph))
	for node := range graph {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)
	for _, node := range nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}

	return sccs
}

// cycleSCCToWarning converts an SCC to a CycleWarning.
func cycleSCCToWarning(scc []string, graph dependencyGraph) CycleWarning {
	if len(scc) == 1 {
		id := scc[0]
		return CycleWarning{
			Path:    []string{id, id},
			Message: fmt.Sprintf("Self-triggering link detected: %s -> %s", id, id),
			Level:   "warning",
		}
	}

	path := reconstructCyclePath(scc, graph)
	return CycleWarning{
		Path:    path,
		Message: fmt.Sprintf("Potential link cycle detected: %s", strings.Join(path, " -> ")),
		Level:   "warning",
	}
}

// reconstructCyclePath builds a cycle path from an SCC.
//
// Strategy: Start at first node in SCC, follow edges to other SCC members,
// continue until we return to start node.
func reconstructCyclePath(scc []string, graph dependencyGraph) []string {
	if len(scc) == 0 {
		return []string{}
	}

	sccSet := make(map[string]bool)
	for _, node := range scc {
		sccSet[node] = true
	}

	start := scc[0]
	current := start
	path := []string{current}
	visited := make(map[string]bool)

	for {
		visited[current] = true

		var next string
		for _, neighbor := range graph[current] {
			if sccSet[neighbor] && (!visited[neighbor] || neighbor == start) {
				next = neighbor
				break
			}
		}
		if next == "" {
			break
		}

		path = append(path, next)
		if next == start {
			break
		}
		current = next
	}

	return path
}
