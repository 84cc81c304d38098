package topology

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
)

func layoutConfig(seed int64) config.TopologyConfig {
	return config.TopologyConfig{
		Iterations: 100,
		Repulsion:  50.0,
		Attraction: 0.05,
		Bounds:     50.0,
		Seed:       seed,
	}
}

func makeNodes(n int) []NetworkNode {
	nodes := make([]NetworkNode, n)
	for i := range nodes {
		nodes[i] = NetworkNode{
			ID:      fmt.Sprintf("node-%d", i),
			Address: fmt.Sprintf("192.168.1.%d", i+1),
			Status:  NodeStatusOnline,
		}
	}
	return nodes
}

func TestComputePositionsSeedsUnplacedNodes(t *testing.T) {
	engine := NewLayoutEngine(layoutConfig(42))
	nodes := makeNodes(6)
	edges := BuildEdges(nodes)

	out := engine.ComputePositions(nodes, edges)
	require.Len(t, out, 6)

	for i := range out {
		pos := out[i].Position
		assert.NotEqual(t, Position{}, pos, "node %d must be positioned", i)
		assert.LessOrEqual(t, pos.X, 50.0)
		assert.GreaterOrEqual(t, pos.X, -50.0)
		assert.LessOrEqual(t, pos.Y, 50.0)
		assert.GreaterOrEqual(t, pos.Y, -50.0)
		assert.LessOrEqual(t, pos.Z, 50.0)
		assert.GreaterOrEqual(t, pos.Z, -50.0)
	}
}

func TestComputePositionsDeterministicForSeed(t *testing.T) {
	engine := NewLayoutEngine(layoutConfig(7))

	a := engine.ComputePositions(makeNodes(8), BuildEdges(makeNodes(8)))
	b := engine.ComputePositions(makeNodes(8), BuildEdges(makeNodes(8)))

	for i := range a {
		assert.Equal(t, a[i].Position, b[i].Position,
			"same seed and ordering must reproduce positions")
	}
}

func TestComputePositionsSpreadsCoincidentNodes(t *testing.T) {
	engine := NewLayoutEngine(layoutConfig(1))
	nodes := makeNodes(4)
	// Stack every node on the same point; positioned flags keep the seeds.
	for i := range nodes {
		nodes[i].Position = Position{X: 1, Y: 1, Z: 1}
		nodes[i].positioned = true
	}

	out := engine.ComputePositions(nodes, nil)
	// Repulsion with a distance floor must separate them.
	assert.Greater(t, TotalPairwiseDistance(out), 1.0)
}

func TestLayoutNonDivergence(t *testing.T) {
	engine := NewLayoutEngine(layoutConfig(3))
	nodes := makeNodes(10)
	edges := BuildEdges(nodes)

	nodes = engine.ComputePositions(nodes, edges)
	settled := TotalPairwiseDistance(nodes)

	// Additional passes on a settled configuration must not blow the
	// energy up: the bounded space and springs keep it within a small
	// factor.
	nodes = engine.ComputePositions(nodes, edges)
	again := TotalPairwiseDistance(nodes)
	assert.InEpsilon(t, settled, again, 0.25,
		"extra iterations on a settled layout must not diverge")
}

func TestComputePositionsEmpty(t *testing.T) {
	engine := NewLayoutEngine(layoutConfig(1))
	assert.Empty(t, engine.ComputePositions(nil, nil))
}

func TestBuildEdges(t *testing.T) {
	nodes := []NetworkNode{
		{ID: "a", Address: "192.168.1.1", Status: NodeStatusOnline},
		{ID: "b", Address: "192.168.1.2", Status: NodeStatusOnline},
		{ID: "c", Address: "192.168.2.1", Status: NodeStatusOnline},
		{ID: "d", Address: "10.0.0.1", Status: NodeStatusOnline},
	}

	edges := BuildEdges(nodes)

	byID := make(map[string]NetworkEdge)
	for _, e := range edges {
		byID[e.ID] = e
	}

	require.Contains(t, byID, "a-b")
	assert.Equal(t, 1.0, byID["a-b"].Strength, "same /24 links strongly")
	require.Contains(t, byID, "a-c")
	assert.Equal(t, 0.3, byID["a-c"].Strength, "same /16 links weakly")
	assert.NotContains(t, byID, "a-d", "unrelated networks stay unlinked")
}

func TestBuildEdgesInactiveForOfflineNodes(t *testing.T) {
	nodes := []NetworkNode{
		{ID: "a", Address: "192.168.1.1", Status: NodeStatusOnline},
		{ID: "b", Address: "192.168.1.2", Status: NodeStatusOffline},
	}
	edges := BuildEdges(nodes)
	require.Len(t, edges, 1)
	assert.False(t, edges[0].Active)
}

func TestBuildDocument(t *testing.T) {
	nodes := []NetworkNode{
		{
			ID:        "a",
			Address:   "192.168.1.1",
			HostName:  "gateway.local",
			OpenPorts: []int{22, 80, 443},
			Status:    NodeStatusCritical,
			Position:  Position{X: 1, Y: 2, Z: 3},
		},
		{
			ID:      "b",
			Address: "192.168.1.2",
			Status:  NodeStatus("bogus"),
		},
	}
	edges := []NetworkEdge{
		{ID: "a-b", Source: "a", Target: "b", Type: "subnet", Strength: 1.0, Active: true},
	}

	doc := BuildDocument(TopologyResult{Nodes: nodes, Edges: edges})

	require.Len(t, doc.Nodes, 2)
	first := doc.Nodes[0]
	assert.Equal(t, "gateway.local", first.Label, "hostname preferred as label")
	assert.Equal(t, "192.168.1.1", first.IP)
	assert.Equal(t, Position{X: 1, Y: 2, Z: 3}, first.Position)
	assert.Equal(t, "#e74c3c", first.Color)
	assert.InDelta(t, 1.45, first.Size, 0.001)
	assert.Equal(t, "critical", first.Status)

	second := doc.Nodes[1]
	assert.Equal(t, "192.168.1.2", second.Label, "address used when unnamed")
	assert.Equal(t, "#3498db", second.Color, "unrecognized status falls back")

	require.Len(t, doc.Edges, 1)
	assert.Equal(t, "a-b", doc.Edges[0].ID)
	assert.Equal(t, 1.0, doc.Edges[0].Strength)
}
