// Package events provides the typed publish/subscribe boundary between the
// scan engine and its consumers. Event kinds are a closed set; each kind is
// its own struct so subscribers get typed payloads instead of loose maps.
package events

import (
	"time"
)

// EventType identifies one of the closed set of event kinds.
type EventType string

const (
	TypeScanLaunched               EventType = "scan_launched"
	TypePortDiscovered             EventType = "port_discovered"
	TypeVulnerabilityDiscovered    EventType = "vulnerability_discovered"
	TypeCriticalVulnerabilityAlert EventType = "critical_vulnerability_alert"
	TypeScanProgressUpdate         EventType = "scan_progress_update"
	TypeScanCompleted              EventType = "scan_completed"
	TypeTopologyUpdated            EventType = "topology_updated"
	TypeConfigurationApplied       EventType = "configuration_applied"
	TypeNodeStatusChanged          EventType = "node_status_changed"
)

// Event is implemented by every event kind. The three base fields are common
// to all events; type-specific payloads live on the concrete structs.
type Event interface {
	Kind() EventType
	OccurredAt() time.Time
	Origin() string
}

// BaseEvent carries the fields shared by every event kind.
type BaseEvent struct {
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// Kind implements the Event interface.
func (b BaseEvent) Kind() EventType { return b.Type }

// OccurredAt implements the Event interface.
func (b BaseEvent) OccurredAt() time.Time { return b.Timestamp }

// Origin implements the Event interface.
func (b BaseEvent) Origin() string { return b.Source }

func newBase(t EventType, source string) BaseEvent {
	return BaseEvent{Type: t, Timestamp: time.Now(), Source: source}
}

// ScanLaunched is published when a scan begins executing.
type ScanLaunched struct {
	BaseEvent
	ScanID   string `json:"scan_id"`
	ScanType string `json:"scan_type"`
	Target   string `json:"target"`
}

// NewScanLaunched creates a ScanLaunched event.
func NewScanLaunched(source, scanID, scanType, target string) ScanLaunched {
	return ScanLaunched{
		BaseEvent: newBase(TypeScanLaunched, source),
		ScanID:    scanID,
		ScanType:  scanType,
		Target:    target,
	}
}

// PortDiscovered is published for each open port found during probing.
type PortDiscovered struct {
	BaseEvent
	NodeID  string `json:"node_id"`
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// NewPortDiscovered creates a PortDiscovered event.
func NewPortDiscovered(source, nodeID string, port int, service string) PortDiscovered {
	return PortDiscovered{
		BaseEvent: newBase(TypePortDiscovered, source),
		NodeID:    nodeID,
		Port:      port,
		Service:   service,
	}
}

// VulnerabilityDiscovered is published for each classified finding.
type VulnerabilityDiscovered struct {
	BaseEvent
	VulnerabilityID string `json:"vulnerability_id"`
	Severity        string `json:"severity"`
	Title           string `json:"title"`
	IPAddress       string `json:"ip_address"`
	Port            int    `json:"port"`
}

// NewVulnerabilityDiscovered creates a VulnerabilityDiscovered event.
func NewVulnerabilityDiscovered(source, vulnID, severity, title, ip string, port int) VulnerabilityDiscovered {
	return VulnerabilityDiscovered{
		BaseEvent:       newBase(TypeVulnerabilityDiscovered, source),
		VulnerabilityID: vulnID,
		Severity:        severity,
		Title:           title,
		IPAddress:       ip,
		Port:            port,
	}
}

// CriticalVulnerabilityAlert is published in addition to
// VulnerabilityDiscovered when a finding is Critical severity.
type CriticalVulnerabilityAlert struct {
	BaseEvent
	VulnerabilityID string `json:"vulnerability_id"`
	Title           string `json:"title"`
	IPAddress       string `json:"ip_address"`
	Port            int    `json:"port"`
	Remediation     string `json:"remediation"`
}

// NewCriticalVulnerabilityAlert creates a CriticalVulnerabilityAlert event.
func NewCriticalVulnerabilityAlert(source, vulnID, title, ip string, port int, remediation string) CriticalVulnerabilityAlert {
	return CriticalVulnerabilityAlert{
		BaseEvent:       newBase(TypeCriticalVulnerabilityAlert, source),
		VulnerabilityID: vulnID,
		Title:           title,
		IPAddress:       ip,
		Port:            port,
		Remediation:     remediation,
	}
}

// ScanProgressUpdate is published before each scan phase and on completion.
type ScanProgressUpdate struct {
	BaseEvent
	ScanID           string  `json:"scan_id"`
	PercentComplete  float64 `json:"percent_complete"`
	CurrentOperation string  `json:"current_operation"`
}

// NewScanProgressUpdate creates a ScanProgressUpdate event.
func NewScanProgressUpdate(source, scanID string, percent float64, operation string) ScanProgressUpdate {
	return ScanProgressUpdate{
		BaseEvent:        newBase(TypeScanProgressUpdate, source),
		ScanID:           scanID,
		PercentComplete:  percent,
		CurrentOperation: operation,
	}
}

// ScanCompleted is published exactly once for every terminal scan outcome,
// including failures and cancellations.
type ScanCompleted struct {
	BaseEvent
	ScanID             string        `json:"scan_id"`
	Status             string        `json:"status"`
	VulnerabilityCount int           `json:"vulnerability_count"`
	Duration           time.Duration `json:"duration"`
}

// NewScanCompleted creates a ScanCompleted event.
func NewScanCompleted(source, scanID, status string, vulnCount int, duration time.Duration) ScanCompleted {
	return ScanCompleted{
		BaseEvent:          newBase(TypeScanCompleted, source),
		ScanID:             scanID,
		Status:             status,
		VulnerabilityCount: vulnCount,
		Duration:           duration,
	}
}

// TopologyUpdated is published after a layout pass changes node positions.
type TopologyUpdated struct {
	BaseEvent
	NodeCount    int `json:"node_count"`
	EdgeCount    int `json:"edge_count"`
	AnomalyCount int `json:"anomaly_count"`
}

// NewTopologyUpdated creates a TopologyUpdated event.
func NewTopologyUpdated(source string, nodes, edges, anomalies int) TopologyUpdated {
	return TopologyUpdated{
		BaseEvent:    newBase(TypeTopologyUpdated, source),
		NodeCount:    nodes,
		EdgeCount:    edges,
		AnomalyCount: anomalies,
	}
}

// ConfigurationApplied is published when a new configuration takes effect.
type ConfigurationApplied struct {
	BaseEvent
	Section string `json:"section"`
}

// NewConfigurationApplied creates a ConfigurationApplied event.
func NewConfigurationApplied(source, section string) ConfigurationApplied {
	return ConfigurationApplied{
		BaseEvent: newBase(TypeConfigurationApplied, source),
		Section:   section,
	}
}

// NodeStatusChanged is published when a topology node changes status.
type NodeStatusChanged struct {
	BaseEvent
	NodeID    string `json:"node_id"`
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

// NewNodeStatusChanged creates a NodeStatusChanged event.
func NewNodeStatusChanged(source, nodeID, oldStatus, newStatus string) NodeStatusChanged {
	return NodeStatusChanged{
		BaseEvent: newBase(TypeNodeStatusChanged, source),
		NodeID:    nodeID,
		OldStatus: oldStatus,
		NewStatus: newStatus,
	}
}
