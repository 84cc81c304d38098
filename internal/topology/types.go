// Package topology models the discovered network as nodes and edges and
// computes 3D positions for rendering with a force-directed layout.
package topology

// Position is a point in the bounded 3D layout space.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NodeStatus is a node's liveness/assessment state.
type NodeStatus string

const (
	NodeStatusUnknown    NodeStatus = "unknown"
	NodeStatusOnline     NodeStatus = "online"
	NodeStatusOffline    NodeStatus = "offline"
	NodeStatusVulnerable NodeStatus = "vulnerable"
	NodeStatusCritical   NodeStatus = "critical"
)

// NetworkNode is one discovered host. Identity is stable across layout
// passes; only Position is mutated by the layout engine.
type NetworkNode struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	HostName   string     `json:"host_name,omitempty"`
	OpenPorts  []int      `json:"open_ports,omitempty"`
	Status     NodeStatus `json:"status"`
	Position   Position   `json:"position"`
	DeviceType string     `json:"device_type,omitempty"`

	// positioned marks nodes that already carry a layout position and
	// must not be re-seeded.
	positioned bool
}

// Label returns the display name for a node.
func (n *NetworkNode) Label() string {
	if n.HostName != "" {
		return n.HostName
	}
	return n.Address
}

// StatusForFindings derives a node status from its assessment outcome.
func StatusForFindings(reachable bool, criticalFindings, totalFindings int) NodeStatus {
	switch {
	case !reachable:
		return NodeStatusOffline
	case criticalFindings > 0:
		return NodeStatusCritical
	case totalFindings > 0:
		return NodeStatusVulnerable
	default:
		return NodeStatusOnline
	}
}

// NetworkEdge links two nodes. Strength weights the layout attraction.
type NetworkEdge struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
	Active   bool    `json:"active"`
}

// TopologyResult is one laid-out snapshot of the network.
type TopologyResult struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}
