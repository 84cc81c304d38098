// Package vuln defines the vulnerability data model and the heuristic
// classifier that scores and categorizes findings produced by the banner
// analyzer and the deep-scan adapter.
package vuln

import (
	"strings"
	"time"
)

// Severity is one of the five ordered severity buckets.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

// String returns the bucket name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	default:
		return "Info"
	}
}

// ParseSeverity maps a severity name to its bucket. Unrecognized names map
// to Info.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return SeverityCritical
	case "high":
		return SeverityHigh
	case "medium", "moderate":
		return SeverityMedium
	case "low":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

// Category classifies what kind of weakness a finding represents.
type Category string

const (
	CategoryAuthentication        Category = "Authentication"
	CategoryAuthorization         Category = "Authorization"
	CategoryConfiguration         Category = "Configuration"
	CategoryEncryption            Category = "Encryption"
	CategoryInputValidation       Category = "InputValidation"
	CategoryNetworkSecurity       Category = "NetworkSecurity"
	CategoryPrivilegeEscalation   Category = "PrivilegeEscalation"
	CategoryInformationDisclosure Category = "InformationDisclosure"
	CategoryDenialOfService       Category = "DenialOfService"
	CategoryCodeExecution         Category = "CodeExecution"
	CategoryUnknown               Category = "Unknown"
)

// Entry is a single discovered vulnerability. Severity and category are set
// once at creation and never downgraded afterwards.
type Entry struct {
	ID           string    `json:"id"`
	NodeID       string    `json:"node_id,omitempty"`
	IPAddress    string    `json:"ip_address"`
	Port         int       `json:"port"`
	ServiceName  string    `json:"service_name"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	CVE          string    `json:"cve,omitempty"`
	Severity     Severity  `json:"severity"`
	Category     Category  `json:"category"`
	CVSSScore    float64   `json:"cvss_score"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Exploitable  bool      `json:"exploitable"`
	Remediation  string    `json:"remediation,omitempty"`
}

// ServiceFingerprint is a service/version identification from a deep scan.
type ServiceFingerprint struct {
	IPAddress string `json:"ip_address"`
	Port      int    `json:"port"`
	Protocol  string `json:"protocol"`
	Service   string `json:"service"`
	Product   string `json:"product,omitempty"`
	Version   string `json:"version,omitempty"`
	Banner    string `json:"banner,omitempty"`
}

// OperatingSystemInfo is an OS identification from a deep scan.
type OperatingSystemInfo struct {
	IPAddress  string `json:"ip_address"`
	Family     string `json:"family"`
	Vendor     string `json:"vendor,omitempty"`
	Name       string `json:"name,omitempty"`
	Confidence int    `json:"confidence"`
}

// SeveritySummary holds per-bucket counts for one result set. Total always
// equals the number of entries it was computed from.
type SeveritySummary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Total    int `json:"total"`
}

// RiskLevel is the five-level label derived from a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
	RiskVeryHigh RiskLevel = "VeryHigh"
	RiskCritical RiskLevel = "Critical"
)
