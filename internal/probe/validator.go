package probe

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
)

// Validator checks that a scan target is syntactically valid and reachable
// before any probing starts. When the external probe utility is on PATH it
// uses a ping scan; otherwise it falls back to TCP connects against a small
// well-known port list.
type Validator struct {
	cfg    config.ScanningConfig
	logger *logging.Logger

	pingAvailable func() bool
	dial          func(ctx context.Context, address string, timeout time.Duration) error
}

// NewValidator creates a validator with the configured liveness timeout.
func NewValidator(cfg config.ScanningConfig) *Validator {
	v := &Validator{
		cfg:           cfg,
		logger:        logging.Default().WithComponent("validator"),
		pingAvailable: utilityOnPath,
	}
	v.dial = func(ctx context.Context, address string, timeout time.Duration) error {
		dialer := net.Dialer{Timeout: timeout}
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		return conn.Close()
	}
	return v
}

// SetPingAvailable overrides the utility availability check. Tests use
// this to force the TCP fallback path.
func (v *Validator) SetPingAvailable(available func() bool) {
	v.pingAvailable = available
}

// SetDialFunc overrides the liveness connection function.
func (v *Validator) SetDialFunc(dial func(ctx context.Context, address string, timeout time.Duration) error) {
	v.dial = dial
}

var (
	utilityOnce  sync.Once
	utilityFound bool
)

// utilityOnPath reports whether the nmap binary is available, checked once
// per process.
func utilityOnPath() bool {
	utilityOnce.Do(func() {
		_, err := exec.LookPath("nmap")
		utilityFound = err == nil
	})
	return utilityFound
}

// Validate returns nil when the target is a valid address or hostname that
// responded to a liveness check. A failure is definitive for the scan: the
// caller moves the scan to Failed without probing.
func (v *Validator) Validate(ctx context.Context, target string) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.NewScanError(errors.CodeTargetInvalid, "target is empty")
	}

	host := target
	if net.ParseIP(target) == nil {
		// Not a literal IP: must resolve as a hostname.
		resolveCtx, cancel := context.WithTimeout(ctx, v.cfg.ValidateTimeout)
		addrs, err := net.DefaultResolver.LookupHost(resolveCtx, target)
		cancel()
		if err != nil || len(addrs) == 0 {
			return errors.WrapScanErrorWithTarget(errors.CodeTargetInvalid,
				"target does not resolve", target, err)
		}
		host = addrs[0]
	}

	checkCtx, cancel := context.WithTimeout(ctx, v.cfg.ValidateTimeout)
	defer cancel()

	if v.pingAvailable() {
		if err := v.pingScan(checkCtx, host); err == nil {
			return nil
		}
		// Ping may be filtered; fall through to the TCP check before
		// declaring the host down.
	}

	if v.anyPortAccepts(checkCtx, host) {
		return nil
	}

	v.logger.Debug("Liveness check failed", "target", target, "host", host)
	return errors.NewScanErrorWithTarget(errors.CodeHostUnreachable,
		"host did not respond to liveness checks", target)
}

// pingScan runs a no-port ping scan against the host.
func (v *Validator) pingScan(ctx context.Context, host string) error {
	scanner, err := nmap.NewScanner(ctx,
		nmap.WithTargets(host),
		nmap.WithPingScan(),
	)
	if err != nil {
		return errors.WrapAdapterError(errors.CodeAdapterUnavailable, "ping scanner setup failed", err)
	}

	result, warnings, err := scanner.Run()
	if err != nil {
		return errors.WrapAdapterError(errors.CodeAdapterOutput, "ping scan failed", err)
	}
	if warnings != nil && len(*warnings) > 0 {
		v.logger.Debug("Ping scan warnings", "host", host, "warnings", *warnings)
	}

	for i := range result.Hosts {
		if result.Hosts[i].Status.State == "up" {
			return nil
		}
	}
	return errors.NewScanErrorWithTarget(errors.CodeHostUnreachable, "host reported down", host)
}

// anyPortAccepts dials the liveness port list concurrently and reports
// whether any connection was accepted before the context expired.
func (v *Validator) anyPortAccepts(ctx context.Context, host string) bool {
	results := make(chan bool, len(livenessPorts))
	var wg sync.WaitGroup
	for _, port := range livenessPorts {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
			err := v.dial(ctx, address, v.cfg.ConnectTimeout)
			// Refused still proves the host is up and routing.
			results <- err == nil || strings.Contains(err.Error(), "refused")
		}(port)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	for alive := range results {
		if alive {
			return true
		}
	}
	return false
}
