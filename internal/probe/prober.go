package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/workers"
)

// OpenPort is one accepted connection discovered by the prober.
type OpenPort struct {
	Port    int    `json:"port"`
	Service string `json:"service"`
}

// Prober finds the open subset of a port set by attempting TCP connections
// through a bounded worker pool. Transient dial failures are retried with
// doubling backoff; connection refused is treated as a definitive closed
// port and never retried.
type Prober struct {
	cfg    config.ScanningConfig
	logger *logging.Logger

	// dial is replaceable for tests; defaults to a real TCP dial.
	dial func(ctx context.Context, address string, timeout time.Duration) error

	// onAttempt, when set, is invoked at the start of every connection
	// attempt. Used by instrumented tests to observe concurrency.
	onAttempt func(target string, port int)
}

// NewProber creates a prober using the scanning configuration's concurrency
// cap, timeouts, and retry policy.
func NewProber(cfg config.ScanningConfig) *Prober {
	p := &Prober{
		cfg:    cfg,
		logger: logging.Default().WithComponent("prober"),
	}
	p.dial = p.dialTCP
	return p
}

// SetAttemptHook registers a callback invoked before every dial attempt.
func (p *Prober) SetAttemptHook(hook func(target string, port int)) {
	p.onAttempt = hook
}

// SetDialFunc overrides the connection function. Tests use this to probe
// without real sockets.
func (p *Prober) SetDialFunc(dial func(ctx context.Context, address string, timeout time.Duration) error) {
	p.dial = dial
}

// Probe attempts a TCP connection to every port in the set and returns the
// subset that accepted, in ascending port order. The port list is capped at
// the configured maximum. Per-port failures are not errors; only context
// cancellation aborts the whole probe.
func (p *Prober) Probe(ctx context.Context, target string, ports []int) ([]OpenPort, error) {
	if len(ports) == 0 {
		ports = DefaultPorts
	}
	if p.cfg.PortCap > 0 && len(ports) > p.cfg.PortCap {
		p.logger.Debug("Capping port list",
			"target", target,
			"requested", len(ports),
			"cap", p.cfg.PortCap)
		ports = ports[:p.cfg.PortCap]
	}

	concurrency := p.cfg.ProbeConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	maxRetries := p.cfg.Retry.MaxAttempts - 1
	if maxRetries < 0 {
		maxRetries = 0
	}

	pool := workers.New(workers.Config{
		Size:            concurrency,
		QueueSize:       len(ports),
		MaxRetries:      maxRetries,
		RetryDelay:      p.cfg.Retry.BaseDelay,
		ShutdownTimeout: p.cfg.ScanTimeout,
	})
	pool.Start()
	defer func() {
		if err := pool.Shutdown(); err != nil {
			p.logger.Warn("Probe pool shutdown failed", "error", err)
		}
	}()

	// Workers deliver discoveries here and never touch shared state; the
	// buffer holds the worst case so a straggler can finish after a
	// cancelled caller stops receiving.
	found := make(chan OpenPort, len(ports))

	for _, port := range ports {
		job := workers.NewProbeJob(
			fmt.Sprintf("%s:%d", target, port),
			target, port,
			func(jobCtx context.Context, target string, port int) error {
				select {
				case <-ctx.Done():
					return errors.WrapProbeError(errors.CodeCanceled, "probe canceled", target, port, ctx.Err())
				default:
				}

				if p.onAttempt != nil {
					p.onAttempt(target, port)
				}
				metrics.IncrementProbeAttempts(target, "attempted")

				address := net.JoinHostPort(target, fmt.Sprintf("%d", port))
				if err := p.dial(ctx, address, p.cfg.ConnectTimeout); err != nil {
					return classifyDialError(err, target, port)
				}

				found <- OpenPort{Port: port, Service: ServiceName(port)}
				metrics.Counter(metrics.MetricPortsOpen, metrics.Labels{"target": target})
				return nil
			})
		if err := pool.Submit(job); err != nil {
			return nil, errors.WrapScanError(errors.CodeInternal, "failed to queue probe job", err)
		}
	}

	for received := 0; received < len(ports); {
		select {
		case result := <-pool.Results():
			received++
			if result.Error != nil {
				p.logger.Debug("Port probe failed",
					"job_id", result.JobID,
					"retries", result.Retries,
					"error", result.Error)
			}
		case <-ctx.Done():
			return mergeOpen(found), ctx.Err()
		}
	}

	result := mergeOpen(found)
	p.logger.Debug("Port probe finished",
		"target", target,
		"probed", len(ports),
		"open", len(result))
	return result, nil
}

// mergeOpen collects the discoveries delivered so far into a sorted slice.
func mergeOpen(found <-chan OpenPort) []OpenPort {
	var open []OpenPort
	for {
		select {
		case op := <-found:
			open = append(open, op)
		default:
			sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
			return open
		}
	}
}

// dialTCP performs one real connection attempt bounded by the timeout.
func (p *Prober) dialTCP(ctx context.Context, address string, timeout time.Duration) error {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// classifyDialError maps a dial failure onto the error taxonomy so the
// worker pool can decide whether to retry. Connection refused is a
// definitive closed port; timeouts, resets, and unreachable routes are
// transient.
func classifyDialError(err error, target string, port int) error {
	var netErr net.Error
	switch {
	case stderrors.Is(err, context.Canceled):
		return errors.WrapProbeError(errors.CodeCanceled, "probe canceled", target, port, err)
	case stderrors.Is(err, syscall.ECONNREFUSED):
		return errors.WrapProbeError(errors.CodePortClosed, "connection refused", target, port, err)
	case stderrors.Is(err, syscall.ECONNRESET):
		return errors.WrapProbeError(errors.CodeConnectionReset, "connection reset", target, port, err)
	case stderrors.Is(err, syscall.ENETUNREACH):
		return errors.WrapProbeError(errors.CodeNetworkUnreachable, "network unreachable", target, port, err)
	case stderrors.Is(err, syscall.EHOSTUNREACH):
		return errors.WrapProbeError(errors.CodeHostUnreachable, "host unreachable", target, port, err)
	case stderrors.As(err, &netErr) && netErr.Timeout():
		return errors.WrapProbeError(errors.CodeTimeout, "connect timed out", target, port, err)
	case strings.Contains(err.Error(), "refused"):
		return errors.WrapProbeError(errors.CodePortClosed, "connection refused", target, port, err)
	default:
		return errors.WrapProbeError(errors.CodeConnectionReset, "connect failed", target, port, err)
	}
}
