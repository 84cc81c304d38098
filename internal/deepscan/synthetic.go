package deepscan

import (
	"context"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/probe"
)

// SyntheticAdapter is the degraded-mode adapter used when the probe utility
// is missing or its output unusable. It reports the requested ports as open
// with unknown services so the scan can proceed and produce a result.
type SyntheticAdapter struct {
	logger *logging.Logger
}

// NewSyntheticAdapter creates the fallback adapter.
func NewSyntheticAdapter() *SyntheticAdapter {
	return &SyntheticAdapter{
		logger: logging.Default().WithComponent("deepscan"),
	}
}

// Name identifies the adapter in logs and results.
func (a *SyntheticAdapter) Name() string { return "synthetic" }

// Probe fabricates a minimal finding from the requested port list.
func (a *SyntheticAdapter) Probe(ctx context.Context, target string, ports []int, opts DepthOptions) (*Finding, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if len(ports) == 0 {
		ports = probe.DefaultPorts
	}
	if opts.MaxPorts > 0 && len(ports) > opts.MaxPorts {
		ports = ports[:opts.MaxPorts]
	}

	finding := &Finding{Synthetic: true}
	for _, port := range ports {
		finding.OpenPorts = append(finding.OpenPorts, probe.OpenPort{
			Port:    port,
			Service: "unknown",
		})
	}

	a.logger.Warn("Synthetic deep-scan result produced",
		"target", target,
		"ports", len(finding.OpenPorts))
	return finding, nil
}

var _ ProbeAdapter = (*SyntheticAdapter)(nil)
