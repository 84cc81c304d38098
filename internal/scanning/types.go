package scanning

import (
	"time"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

// ScanStatus is a scan's lifecycle state. Pending and Running are the only
// non-terminal states; there are no transitions out of a terminal state.
type ScanStatus string

const (
	StatusPending   ScanStatus = "pending"
	StatusRunning   ScanStatus = "running"
	StatusCompleted ScanStatus = "completed"
	StatusFailed    ScanStatus = "failed"
	StatusCancelled ScanStatus = "cancelled"
	StatusTimeout   ScanStatus = "timeout"
)

// IsTerminal reports whether the status admits no further transitions.
func (s ScanStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	default:
		return false
	}
}

// ScanType distinguishes the two scan depths.
type ScanType string

const (
	TypeQuick ScanType = "quick"
	TypeDeep  ScanType = "deep"
)

// ScanTarget names what to scan. NodeID links results back to a topology
// node when the caller has one.
type ScanTarget struct {
	IPAddress string `json:"ip_address"`
	HostName  string `json:"host_name,omitempty"`
	Ports     []int  `json:"ports,omitempty"`
	NodeID    string `json:"node_id,omitempty"`

	// DeviceType is a coarse hint (router, printer, server, ...) filled
	// in by enrichment when the host answers SNMP.
	DeviceType string `json:"device_type,omitempty"`
}

// Address returns the preferred connect address for the target.
func (t ScanTarget) Address() string {
	if t.IPAddress != "" {
		return t.IPAddress
	}
	return t.HostName
}

// ScanStatistics is derived once at scan completion, never partially
// updated.
type ScanStatistics struct {
	PortsProbed     int           `json:"ports_probed"`
	OpenPorts       int           `json:"open_ports"`
	HostsScanned    int           `json:"hosts_scanned"`
	RiskScore       float64       `json:"risk_score"`
	RiskLevel       vuln.RiskLevel `json:"risk_level"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	SyntheticResult bool          `json:"synthetic_result,omitempty"`
}

// ScanResult is the outcome of one scan. It is owned exclusively by the
// orchestrator while the scan runs and becomes read-only once Status is
// terminal.
type ScanResult struct {
	ScanID          string           `json:"scan_id"`
	StartedAt       time.Time        `json:"started_at"`
	Type            ScanType         `json:"type"`
	Targets         []ScanTarget     `json:"targets"`
	OpenPorts       []int            `json:"open_ports"`
	Vulnerabilities []vuln.Entry     `json:"vulnerabilities"`
	Summary         vuln.SeveritySummary `json:"summary"`
	Statistics      ScanStatistics   `json:"statistics"`
	Recommendations []string         `json:"recommendations"`
	Duration        time.Duration    `json:"duration"`
	Status          ScanStatus       `json:"status"`
}

// DeepScanResult extends ScanResult with fingerprint output.
// PotentialExploits and ComplianceResults are typed extension points that
// stay empty until those stages exist.
type DeepScanResult struct {
	ScanResult

	Fingerprints      []vuln.ServiceFingerprint  `json:"fingerprints"`
	OSInfo            []vuln.OperatingSystemInfo `json:"os_info"`
	PotentialExploits []ExploitReference         `json:"potential_exploits"`
	ComplianceResults []ComplianceCheck          `json:"compliance_results"`
}

// ExploitReference points a finding at a known exploit.
type ExploitReference struct {
	VulnerabilityID string `json:"vulnerability_id"`
	Source          string `json:"source"`
	Reference       string `json:"reference"`
}

// ComplianceCheck records one policy evaluation against a scan result.
type ComplianceCheck struct {
	Policy string `json:"policy"`
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ScanProgress is the externally visible snapshot of an in-flight scan.
// PercentComplete never decreases until a terminal status is reached.
type ScanProgress struct {
	ScanID               string        `json:"scan_id"`
	Status               ScanStatus    `json:"status"`
	PercentComplete      float64       `json:"percent_complete"`
	CurrentPhase         string        `json:"current_phase"`
	VulnerabilitiesFound int           `json:"vulnerabilities_found"`
	Elapsed              time.Duration `json:"elapsed"`
}
