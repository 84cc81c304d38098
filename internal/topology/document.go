package topology

// The document types are the stable rendering contract: field names and
// shapes consumed by the visualization layer must not change.

// DocumentNode is one node in the serialized topology document.
type DocumentNode struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	IP       string   `json:"ip"`
	Position Position `json:"position"`
	Color    string   `json:"color"`
	Size     float64  `json:"size"`
	Status   string   `json:"status"`
}

// DocumentEdge is one edge in the serialized topology document.
type DocumentEdge struct {
	ID       string  `json:"id"`
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

// Document is the serialized topology snapshot.
type Document struct {
	Nodes []DocumentNode `json:"nodes"`
	Edges []DocumentEdge `json:"edges"`
}

const (
	baseNodeSize = 1.0
	sizePerPort  = 0.15
	maxNodeSize  = 4.0
)

// statusColors maps node status to render color.
var statusColors = map[NodeStatus]string{
	NodeStatusOnline:     "#2ecc71",
	NodeStatusOffline:    "#7f8c8d",
	NodeStatusVulnerable: "#f39c12",
	NodeStatusCritical:   "#e74c3c",
	NodeStatusUnknown:    "#3498db",
}

// BuildDocument serializes a topology result for the rendering boundary.
// Colors derive from node status; size grows with open-port count.
func BuildDocument(result TopologyResult) Document {
	doc := Document{
		Nodes: make([]DocumentNode, 0, len(result.Nodes)),
		Edges: make([]DocumentEdge, 0, len(result.Edges)),
	}

	for i := range result.Nodes {
		node := &result.Nodes[i]
		color, ok := statusColors[node.Status]
		if !ok {
			color = statusColors[NodeStatusUnknown]
		}
		size := baseNodeSize + float64(len(node.OpenPorts))*sizePerPort
		if size > maxNodeSize {
			size = maxNodeSize
		}
		doc.Nodes = append(doc.Nodes, DocumentNode{
			ID:       node.ID,
			Label:    node.Label(),
			IP:       node.Address,
			Position: node.Position,
			Color:    color,
			Size:     size,
			Status:   string(node.Status),
		})
	}

	for _, edge := range result.Edges {
		doc.Edges = append(doc.Edges, DocumentEdge{
			ID:       edge.ID,
			Source:   edge.Source,
			Target:   edge.Target,
			Type:     edge.Type,
			Strength: edge.Strength,
		})
	}

	return doc
}
