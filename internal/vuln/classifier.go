package vuln

import (
	"strings"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
)

// Approximate CVSS scores per severity bucket, used when a source stage
// could not supply a precise score.
const (
	cvssCritical = 9.0
	cvssHigh     = 7.5
	cvssMedium   = 5.0
	cvssLow      = 2.5
	cvssInfo     = 0.1
)

// RiskPolicy holds the weights and thresholds that turn severity counts
// into a risk score and label. The weights are operational policy rather
// than a published standard, which is why they are configurable.
type RiskPolicy struct {
	CriticalWeight float64
	HighWeight     float64
	MediumWeight   float64
	LowWeight      float64
	InfoWeight     float64

	ModerateThreshold float64
	HighThreshold     float64
	VeryHighThreshold float64
	CriticalThreshold float64
}

// DefaultRiskPolicy returns the standard weights (10/7/4/1/0.1) and bucket
// thresholds (5/20/50/100).
func DefaultRiskPolicy() RiskPolicy {
	return RiskPolicy{
		CriticalWeight:    10.0,
		HighWeight:        7.0,
		MediumWeight:      4.0,
		LowWeight:         1.0,
		InfoWeight:        0.1,
		ModerateThreshold: 5.0,
		HighThreshold:     20.0,
		VeryHighThreshold: 50.0,
		CriticalThreshold: 100.0,
	}
}

// PolicyFromConfig builds a RiskPolicy from the risk configuration section.
func PolicyFromConfig(cfg config.RiskConfig) RiskPolicy {
	return RiskPolicy{
		CriticalWeight:    cfg.CriticalWeight,
		HighWeight:        cfg.HighWeight,
		MediumWeight:      cfg.MediumWeight,
		LowWeight:         cfg.LowWeight,
		InfoWeight:        cfg.InfoWeight,
		ModerateThreshold: cfg.ModerateThreshold,
		HighThreshold:     cfg.HighThreshold,
		VeryHighThreshold: cfg.VeryHighThreshold,
		CriticalThreshold: cfg.CriticalThreshold,
	}
}

// Classifier assigns CVSS approximations, categories, and risk statistics
// to discovered findings. All of its methods are pure functions of their
// inputs plus the policy.
type Classifier struct {
	policy RiskPolicy
}

// NewClassifier creates a classifier with the given policy.
func NewClassifier(policy RiskPolicy) *Classifier {
	return &Classifier{policy: policy}
}

// Policy returns the classifier's risk policy.
func (c *Classifier) Policy() RiskPolicy {
	return c.policy
}

// ApproximateCVSS returns the bucket-approximate CVSS score for a severity.
func ApproximateCVSS(sev Severity) float64 {
	switch sev {
	case SeverityCritical:
		return cvssCritical
	case SeverityHigh:
		return cvssHigh
	case SeverityMedium:
		return cvssMedium
	case SeverityLow:
		return cvssLow
	default:
		return cvssInfo
	}
}

// categoryKeywords maps substring heuristics to categories. Checked in
// order; first match wins.
var categoryKeywords = []struct {
	keywords []string
	category Category
}{
	{[]string{"remote code execution", "rce", "command execution", "arbitrary code", "backdoor"}, CategoryCodeExecution},
	{[]string{"privilege escalation", "root access", "setuid"}, CategoryPrivilegeEscalation},
	{[]string{"denial of service", "dos ", "resource exhaustion", "crash"}, CategoryDenialOfService},
	{[]string{"default credential", "weak password", "anonymous login", "authentication bypass", "brute force", "login"}, CategoryAuthentication},
	{[]string{"access control", "authorization", "permission"}, CategoryAuthorization},
	{[]string{"ssl", "tls", "cipher", "certificate", "cleartext", "plaintext", "unencrypted", "encryption"}, CategoryEncryption},
	{[]string{"sql injection", "injection", "cross-site", "xss", "buffer overflow", "traversal", "overflow"}, CategoryInputValidation},
	{[]string{"information disclosure", "version disclosure", "banner", "directory listing", "exposure"}, CategoryInformationDisclosure},
	{[]string{"open port", "firewall", "exposed service", "smb", "netbios"}, CategoryNetworkSecurity},
	{[]string{"misconfiguration", "default configuration", "config"}, CategoryConfiguration},
}

// Categorize infers a category from an entry's text when the source stage
// left it Unknown. Entries that already carry a category are untouched.
func (c *Classifier) Categorize(entry *Entry) {
	if entry.Category != "" && entry.Category != CategoryUnknown {
		return
	}

	text := strings.ToLower(entry.Title + " " + entry.Description + " " + entry.ServiceName)
	for _, mapping := range categoryKeywords {
		for _, kw := range mapping.keywords {
			if strings.Contains(text, kw) {
				entry.Category = mapping.category
				return
			}
		}
	}
	entry.Category = CategoryUnknown
}

// Score fills in the CVSS approximation and category for one entry. An
// entry that already carries a precise CVSS score keeps it.
func (c *Classifier) Score(entry *Entry) {
	if entry.CVSSScore == 0 {
		entry.CVSSScore = ApproximateCVSS(entry.Severity)
	}
	c.Categorize(entry)
}

// ScoreAll scores every entry in place.
func (c *Classifier) ScoreAll(entries []Entry) {
	for i := range entries {
		c.Score(&entries[i])
	}
}

// Summarize computes per-bucket counts for a set of entries.
func Summarize(entries []Entry) SeveritySummary {
	summary := SeveritySummary{Total: len(entries)}
	for i := range entries {
		switch entries[i].Severity {
		case SeverityCritical:
			summary.Critical++
		case SeverityHigh:
			summary.High++
		case SeverityMedium:
			summary.Medium++
		case SeverityLow:
			summary.Low++
		default:
			summary.Info++
		}
	}
	return summary
}

// RiskScore computes the weighted risk score for a severity summary. The
// result depends only on the five counts and the policy weights.
func (c *Classifier) RiskScore(summary SeveritySummary) float64 {
	return float64(summary.Critical)*c.policy.CriticalWeight +
		float64(summary.High)*c.policy.HighWeight +
		float64(summary.Medium)*c.policy.MediumWeight +
		float64(summary.Low)*c.policy.LowWeight +
		float64(summary.Info)*c.policy.InfoWeight
}

// RiskLevel buckets a risk score into the five-level label.
func (c *Classifier) RiskLevel(score float64) RiskLevel {
	switch {
	case score < c.policy.ModerateThreshold:
		return RiskLow
	case score < c.policy.HighThreshold:
		return RiskModerate
	case score < c.policy.VeryHighThreshold:
		return RiskHigh
	case score < c.policy.CriticalThreshold:
		return RiskVeryHigh
	default:
		return RiskCritical
	}
}
