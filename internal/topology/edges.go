package topology

import (
	"fmt"
	"net"
)

// BuildEdges infers edges between nodes on shared subnets. Hosts in the
// same /24 get a strong link; hosts sharing only a /16 get a weak one.
// Node order determines edge order, keeping layout input deterministic.
func BuildEdges(nodes []NetworkNode) []NetworkEdge {
	var edges []NetworkEdge
	for i := 0; i < len(nodes); i++ {
		ipA := net.ParseIP(nodes[i].Address)
		if ipA == nil {
			continue
		}
		for j := i + 1; j < len(nodes); j++ {
			ipB := net.ParseIP(nodes[j].Address)
			if ipB == nil {
				continue
			}

			strength := 0.0
			switch {
			case sameSubnet(ipA, ipB, 24):
				strength = 1.0
			case sameSubnet(ipA, ipB, 16):
				strength = 0.3
			default:
				continue
			}

			edges = append(edges, NetworkEdge{
				ID:       fmt.Sprintf("%s-%s", nodes[i].ID, nodes[j].ID),
				Source:   nodes[i].ID,
				Target:   nodes[j].ID,
				Type:     "subnet",
				Strength: strength,
				Active:   nodes[i].Status != NodeStatusOffline && nodes[j].Status != NodeStatusOffline,
			})
		}
	}
	return edges
}

func sameSubnet(a, b net.IP, prefixLen int) bool {
	a4, b4 := a.To4(), b.To4()
	if a4 == nil || b4 == nil {
		return false
	}
	mask := net.CIDRMask(prefixLen, 32)
	return a4.Mask(mask).Equal(b4.Mask(mask))
}
