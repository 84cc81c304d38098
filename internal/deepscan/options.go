// Package deepscan wraps the external probe utility behind an adapter
// interface. A real adapter drives the utility as a subprocess and parses
// its structured output; a synthetic adapter stands in when the utility is
// unavailable so deep scans degrade instead of failing.
package deepscan

import (
	"strings"

	"github.com/Ullaakut/nmap/v3"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
)

// Intensity selects how aggressively the utility probes.
type Intensity string

const (
	IntensityStealthy   Intensity = "stealthy"
	IntensityNormal     Intensity = "normal"
	IntensityAggressive Intensity = "aggressive"
	IntensityInsane     Intensity = "insane"
)

// ParseIntensity maps a string to an intensity, defaulting to normal.
func ParseIntensity(s string) Intensity {
	switch Intensity(strings.ToLower(strings.TrimSpace(s))) {
	case IntensityStealthy:
		return IntensityStealthy
	case IntensityAggressive:
		return IntensityAggressive
	case IntensityInsane:
		return IntensityInsane
	default:
		return IntensityNormal
	}
}

// timingTemplate returns the utility timing template for an intensity.
func (i Intensity) timingTemplate() nmap.Timing {
	switch i {
	case IntensityStealthy:
		return nmap.TimingSneaky
	case IntensityAggressive:
		return nmap.TimingAggressive
	case IntensityInsane:
		return nmap.TimingFastest
	default:
		return nmap.TimingNormal
	}
}

// DepthOptions controls one deep scan invocation.
type DepthOptions struct {
	MaxHosts                int       `json:"max_hosts"`
	MaxPorts                int       `json:"max_ports"`
	Intensity               Intensity `json:"intensity"`
	IncludeServiceDetection bool      `json:"include_service_detection"`
	IncludeOSDetection      bool      `json:"include_os_detection"`
	IncludeVulnScripts      bool      `json:"include_vuln_scripts"`
	TimeoutSeconds          int       `json:"timeout_seconds"`
}

// DefaultDepthOptions builds options from the deep-scan configuration
// section.
func DefaultDepthOptions(cfg config.DeepScanConfig) DepthOptions {
	return DepthOptions{
		MaxHosts:                cfg.MaxHosts,
		MaxPorts:                cfg.MaxPorts,
		Intensity:               ParseIntensity(cfg.Intensity),
		IncludeServiceDetection: cfg.ServiceDetection,
		IncludeOSDetection:      cfg.OSDetection,
		IncludeVulnScripts:      cfg.VulnScripts,
		TimeoutSeconds:          cfg.TimeoutSeconds,
	}
}

// Normalize fills zero fields from defaults so callers can pass partially
// specified options.
func (o DepthOptions) Normalize(cfg config.DeepScanConfig) DepthOptions {
	defaults := DefaultDepthOptions(cfg)
	if o.MaxHosts <= 0 {
		o.MaxHosts = defaults.MaxHosts
	}
	if o.MaxPorts <= 0 {
		o.MaxPorts = defaults.MaxPorts
	}
	if o.Intensity == "" {
		o.Intensity = defaults.Intensity
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = defaults.TimeoutSeconds
	}
	return o
}
