package datastructure

import (
	"sort"

	"github.com/lintang-b-s/waymatcher/pkg/util"
)

// Components. strongly connected components of a road graph, indexed by node.
type Components struct {
	component map[NodeID]int
	sizes     []int
}

// ComponentOf. -1 for a node the graph does not contain.
func (c *Components) ComponentOf(n NodeID) int {
	id, ok := c.component[n]
	if !ok {
		return -1
	}
	return id
}

// Size. number of nodes in component id.
func (c *Components) Size(id int) int {
	if id < 0 || id >= len(c.sizes) {
		return 0
	}
	return c.sizes[id]
}

func (c *Components) Count() int {
	return len(c.sizes)
}

// RunKosaraju. runs kosaraju's algorithm on the node graph of segments. a segment contributes the arc
// entry->exit for every direction allow accepts. node & arc order is sorted so component ids are stable.
func RunKosaraju(segments []*WaySegment, allow func(s *WaySegment, dir Direction) bool) *Components {
	adj := make(map[NodeID][]NodeID)
	radj := make(map[NodeID][]NodeID)
	nodeSet := make(map[NodeID]struct{})

	for _, s := range segments {
		nodeSet[s.GetStartNode()] = struct{}{}
		nodeSet[s.GetEndNode()] = struct{}{}
		for _, dir := range []Direction{FORWARD, BACKWARD} {
			if !allow(s, dir) {
				continue
			}
			from, to := s.EntryNode(dir), s.ExitNode(dir)
			adj[from] = append(adj[from], to)
			radj[to] = append(radj[to], from)
		}
	}

	nodes := make([]NodeID, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sortNodes(nodes)
	for _, out := range adj {
		sortNodes(out)
	}
	for _, in := range radj {
		sortNodes(in)
	}

	order := make([]NodeID, 0, len(nodes))
	visited := make(map[NodeID]bool, len(nodes))
	for _, v := range nodes {
		if !visited[v] {
			dfs(v, adj, &order, visited)
		}
	}

	order = util.Reversed(order)

	// reset visited
	visited = make(map[NodeID]bool, len(nodes))
	comps := &Components{component: make(map[NodeID]int, len(nodes))}
	for _, v := range order {
		if visited[v] {
			continue
		}
		component := make([]NodeID, 0, 10)
		dfs(v, radj, &component, visited)
		id := len(comps.sizes)
		for _, n := range component {
			comps.component[n] = id
		}
		comps.sizes = append(comps.sizes, len(component))
	}
	return comps
}

func dfs(v NodeID, adj map[NodeID][]NodeID, output *[]NodeID, visited map[NodeID]bool) {
	visited[v] = true
	for _, w := range adj[v] {
		if !visited[w] {
			dfs(w, adj, output, visited)
		}
	}
	*output = append(*output, v)
}

func sortNodes(nodes []NodeID) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
}
