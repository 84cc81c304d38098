package deepscan

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"
	"github.com/google/uuid"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/probe"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

// Finding is the parsed output of one deep scan: open ports plus the
// fingerprints and vulnerabilities the utility detected.
type Finding struct {
	OpenPorts       []probe.OpenPort
	Fingerprints    []vuln.ServiceFingerprint
	OSInfo          []vuln.OperatingSystemInfo
	Vulnerabilities []vuln.Entry
	Synthetic       bool
}

// ProbeAdapter runs one deep probe against a target. Implementations must
// honor the context and never return a nil finding alongside a nil error.
type ProbeAdapter interface {
	Probe(ctx context.Context, target string, ports []int, opts DepthOptions) (*Finding, error)
	Name() string
}

// NewAdapter returns the utility-backed adapter when the binary is on PATH
// and the synthetic fallback otherwise. Availability is checked once.
func NewAdapter(utilityPath string) ProbeAdapter {
	path := utilityPath
	if path == "" {
		path = "nmap"
	}
	if _, err := exec.LookPath(path); err != nil {
		logging.Warn("Probe utility not found, deep scans will use synthetic results",
			"path", path, "error", err)
		return NewSyntheticAdapter()
	}
	return &NmapAdapter{
		binaryPath: path,
		logger:     logging.Default().WithComponent("deepscan"),
		fallback:   NewSyntheticAdapter(),
	}
}

// NmapAdapter drives the external utility as a subprocess and converts its
// parsed run into a Finding. Unusable output degrades to the synthetic
// fallback rather than failing the scan.
type NmapAdapter struct {
	binaryPath string
	logger     *logging.Logger
	fallback   *SyntheticAdapter
}

// Name identifies the adapter in logs and results.
func (a *NmapAdapter) Name() string { return "nmap" }

// Probe runs one scan of the target and parses the structured output.
func (a *NmapAdapter) Probe(ctx context.Context, target string, ports []int, opts DepthOptions) (*Finding, error) {
	runCtx := ctx
	if opts.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	scanner, err := nmap.NewScanner(runCtx, a.buildOptions(target, ports, opts)...)
	if err != nil {
		a.logger.Warn("Scanner setup failed, degrading to synthetic result",
			"target", target, "error", err)
		return a.fallback.Probe(ctx, target, ports, opts)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		a.logger.Warn("Probe utility failed, degrading to synthetic result",
			"target", target, "error", err)
		return a.fallback.Probe(ctx, target, ports, opts)
	}
	if warnings != nil && len(*warnings) > 0 {
		a.logger.Debug("Probe utility warnings", "target", target, "warnings", *warnings)
	}
	if len(result.Hosts) == 0 {
		a.logger.Warn("Probe utility returned no hosts, degrading to synthetic result",
			"target", target)
		return a.fallback.Probe(ctx, target, ports, opts)
	}

	return a.convert(target, result), nil
}

// buildOptions assembles the subprocess arguments from the depth options.
func (a *NmapAdapter) buildOptions(target string, ports []int, opts DepthOptions) []nmap.Option {
	options := []nmap.Option{
		nmap.WithBinaryPath(a.binaryPath),
		nmap.WithTargets(target),
		nmap.WithTimingTemplate(opts.Intensity.timingTemplate()),
		nmap.WithSkipHostDiscovery(),
	}

	if len(ports) > 0 {
		options = append(options, nmap.WithPorts(probe.PortSpec(ports)))
	} else {
		topN := opts.MaxPorts
		if topN <= 0 {
			topN = 100
		}
		options = append(options, nmap.WithMostCommonPorts(topN))
	}

	if opts.IncludeServiceDetection {
		options = append(options, nmap.WithServiceInfo(), nmap.WithVersionAll())
	}
	if opts.IncludeOSDetection {
		options = append(options, nmap.WithOSDetection())
	}
	if opts.IncludeVulnScripts {
		options = append(options, nmap.WithScripts("vuln"))
	}
	if opts.TimeoutSeconds > 0 {
		options = append(options,
			nmap.WithHostTimeout(time.Duration(opts.TimeoutSeconds)*time.Second))
	}

	return options
}

// convert maps the parsed run onto a Finding. A malformed single entry is
// skipped and logged; everything usable is kept.
func (a *NmapAdapter) convert(target string, result *nmap.Run) *Finding {
	finding := &Finding{}

	for i := range result.Hosts {
		host := &result.Hosts[i]
		address := target
		if len(host.Addresses) > 0 {
			address = host.Addresses[0].Addr
		}

		for j := range host.Ports {
			port := &host.Ports[j]
			if port.State.State != "open" {
				continue
			}

			service := port.Service.Name
			if service == "" {
				service = probe.ServiceName(int(port.ID))
			}
			finding.OpenPorts = append(finding.OpenPorts, probe.OpenPort{
				Port:    int(port.ID),
				Service: service,
			})

			if port.Service.Name != "" || port.Service.Product != "" {
				finding.Fingerprints = append(finding.Fingerprints, vuln.ServiceFingerprint{
					IPAddress: address,
					Port:      int(port.ID),
					Protocol:  port.Protocol,
					Service:   port.Service.Name,
					Product:   port.Service.Product,
					Version:   port.Service.Version,
				})
			}

			for k := range port.Scripts {
				entry, ok := a.scriptToEntry(address, int(port.ID), service, &port.Scripts[k])
				if !ok {
					continue
				}
				finding.Vulnerabilities = append(finding.Vulnerabilities, entry)
			}
		}

		for j := range host.OS.Matches {
			match := &host.OS.Matches[j]
			info := vuln.OperatingSystemInfo{
				IPAddress:  address,
				Name:       match.Name,
				Confidence: match.Accuracy,
			}
			if len(match.Classes) > 0 {
				info.Family = match.Classes[0].Family
				info.Vendor = match.Classes[0].Vendor
			}
			finding.OSInfo = append(finding.OSInfo, info)
		}
	}

	a.logger.Debug("Deep probe converted",
		"target", target,
		"open_ports", len(finding.OpenPorts),
		"fingerprints", len(finding.Fingerprints),
		"vulnerabilities", len(finding.Vulnerabilities))
	return finding
}

// scriptToEntry turns one vulnerability-script result into an entry. A
// script with no usable output is skipped.
func (a *NmapAdapter) scriptToEntry(address string, port int, service string, script *nmap.Script) (vuln.Entry, bool) {
	output := strings.TrimSpace(script.Output)
	if script.ID == "" || output == "" {
		a.logger.Debug("Skipping malformed script finding",
			"address", address, "port", port, "script", script.ID)
		return vuln.Entry{}, false
	}
	if !strings.Contains(strings.ToLower(output), "vulnerable") {
		return vuln.Entry{}, false
	}

	severity := scriptSeverity(output)
	entry := vuln.Entry{
		ID:           uuid.New().String(),
		IPAddress:    address,
		Port:         port,
		ServiceName:  service,
		Title:        fmt.Sprintf("Script finding: %s", script.ID),
		Description:  firstLines(output, 4),
		CVE:          extractCVE(output),
		Severity:     severity,
		Category:     vuln.CategoryUnknown,
		DiscoveredAt: time.Now(),
		Exploitable:  strings.Contains(strings.ToLower(output), "exploit"),
	}
	return entry, true
}

// scriptSeverity estimates severity from script output keywords.
func scriptSeverity(output string) vuln.Severity {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "critical"):
		return vuln.SeverityCritical
	case strings.Contains(lower, "high"):
		return vuln.SeverityHigh
	case strings.Contains(lower, "medium"):
		return vuln.SeverityMedium
	case strings.Contains(lower, "low"):
		return vuln.SeverityLow
	default:
		return vuln.SeverityMedium
	}
}

// extractCVE pulls the first CVE identifier out of script output, if any.
func extractCVE(output string) string {
	idx := strings.Index(output, "CVE-")
	if idx < 0 {
		return ""
	}
	end := idx
	for end < len(output) && (output[end] == '-' ||
		(output[end] >= '0' && output[end] <= '9') ||
		(output[end] >= 'A' && output[end] <= 'Z')) {
		end++
	}
	if end-idx < len("CVE-0000-0000") {
		return ""
	}
	return output[idx:end]
}

// firstLines returns at most n lines of text, joined with newlines.
func firstLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.Join(lines, "\n")
}

var _ ProbeAdapter = (*NmapAdapter)(nil)
