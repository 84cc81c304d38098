package scanning

import (
	"context"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/probe"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

// eventRecorder captures every published event for assertion.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) record(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *eventRecorder) ofKind(kind events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, e := range r.events {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Scanning.ProbeConcurrency = 8
	cfg.Scanning.ConnectTimeout = 20 * time.Millisecond
	cfg.Scanning.BannerTimeout = 50 * time.Millisecond
	cfg.Scanning.ValidateTimeout = 200 * time.Millisecond
	cfg.Scanning.ScanTimeout = 5 * time.Second
	cfg.Scanning.Retry.MaxAttempts = 1
	cfg.Scanning.Retry.BaseDelay = time.Millisecond
	return cfg
}

// newTestOrchestrator wires an orchestrator with a live target, one open
// FTP port, and a ProFTPD banner, all without real sockets.
func newTestOrchestrator(t *testing.T, cfg *config.Config) (*Orchestrator, *eventRecorder) {
	t.Helper()

	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.SubscribeAll(recorder.record)

	o := New(cfg, bus)
	o.SetAdapter(deepscan.NewSyntheticAdapter())

	o.validator.SetPingAvailable(func() bool { return false })
	o.validator.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		return syscall.ECONNREFUSED // refused proves liveness
	})
	o.prober.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		if address == "192.0.2.50:21" {
			return nil
		}
		return syscall.ECONNREFUSED
	})
	o.banners.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "220 ProFTPD 1.3.3 Server ready.\r\n", nil
	})
	o.resolver = hostNamerFunc(func(ctx context.Context, ip string) string {
		return "fileserver.example.internal"
	})
	o.device = deviceTyperFunc(func(ctx context.Context, ip string) string {
		return "server"
	})

	return o, recorder
}

type hostNamerFunc func(ctx context.Context, ip string) string

func (f hostNamerFunc) ReverseLookup(ctx context.Context, ip string) string { return f(ctx, ip) }

type deviceTyperFunc func(ctx context.Context, ip string) string

func (f deviceTyperFunc) Identify(ctx context.Context, ip string) string { return f(ctx, ip) }

func TestQuickScanHappyPath(t *testing.T) {
	o, recorder := newTestOrchestrator(t, testConfig())

	target := ScanTarget{IPAddress: "192.0.2.50", Ports: []int{21, 22, 80}, NodeID: "node-1"}
	result := o.StartQuickScan(context.Background(), target)

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, TypeQuick, result.Type)
	assert.Equal(t, []int{21}, result.OpenPorts)
	assert.NotEmpty(t, result.ScanID)
	assert.Positive(t, result.Duration)

	// Enrichment fills names the caller did not provide.
	require.Len(t, result.Targets, 1)
	assert.Equal(t, "fileserver.example.internal", result.Targets[0].HostName)
	assert.Equal(t, "server", result.Targets[0].DeviceType)

	// ProFTPD 1.3.3 banner plus the FTP exposure check.
	require.NotEmpty(t, result.Vulnerabilities)
	var critical *vuln.Entry
	for i := range result.Vulnerabilities {
		if result.Vulnerabilities[i].Severity == vuln.SeverityCritical {
			critical = &result.Vulnerabilities[i]
		}
	}
	require.NotNil(t, critical, "ProFTPD 1.3.3 banner must yield a critical entry")
	assert.Equal(t, "node-1", critical.NodeID)
	assert.InDelta(t, 9.0, critical.CVSSScore, 0.001)

	assert.Equal(t, len(result.Vulnerabilities), result.Summary.Total)
	assert.Positive(t, result.Statistics.RiskScore)
	assert.NotEmpty(t, result.Recommendations)

	assert.Len(t, recorder.ofKind(events.TypeScanLaunched), 1)
	assert.Len(t, recorder.ofKind(events.TypePortDiscovered), 1)
	assert.NotEmpty(t, recorder.ofKind(events.TypeVulnerabilityDiscovered))
	assert.Len(t, recorder.ofKind(events.TypeCriticalVulnerabilityAlert), 1)
	require.Len(t, recorder.ofKind(events.TypeScanCompleted), 1)

	completed := recorder.ofKind(events.TypeScanCompleted)[0].(events.ScanCompleted)
	assert.Equal(t, result.ScanID, completed.ScanID)
	assert.Equal(t, string(StatusCompleted), completed.Status)
}

func TestQuickScanProgressMonotonic(t *testing.T) {
	o, recorder := newTestOrchestrator(t, testConfig())

	o.StartQuickScan(context.Background(), ScanTarget{IPAddress: "192.0.2.50"})

	updates := recorder.ofKind(events.TypeScanProgressUpdate)
	require.NotEmpty(t, updates)
	expected := []float64{10, 30, 60, 80, 95}
	require.Len(t, updates, len(expected))
	for i, e := range updates {
		update := e.(events.ScanProgressUpdate)
		assert.Equal(t, expected[i], update.PercentComplete)
	}
}

func TestUnreachableTargetFailsWithoutProbing(t *testing.T) {
	cfg := testConfig()
	o, recorder := newTestOrchestrator(t, cfg)

	o.validator.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		return syscall.EHOSTUNREACH
	})
	var probed int32
	o.prober.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		atomic.AddInt32(&probed, 1)
		return nil
	})

	result := o.StartQuickScan(context.Background(), ScanTarget{IPAddress: "192.0.2.51"})

	assert.Equal(t, StatusFailed, result.Status)
	assert.Len(t, result.Recommendations, 1)
	assert.Empty(t, result.Vulnerabilities)
	assert.Zero(t, atomic.LoadInt32(&probed), "no phase beyond validation may run")

	// Only the validation phase announced; completion still published.
	assert.Len(t, recorder.ofKind(events.TypeScanProgressUpdate), 1)
	require.Len(t, recorder.ofKind(events.TypeScanCompleted), 1)
	completed := recorder.ofKind(events.TypeScanCompleted)[0].(events.ScanCompleted)
	assert.Equal(t, string(StatusFailed), completed.Status)
}

func TestCancelMidScan(t *testing.T) {
	cfg := testConfig()
	o, recorder := newTestOrchestrator(t, cfg)

	release := make(chan struct{})
	o.prober.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return syscall.ECONNREFUSED
	})

	done := make(chan *ScanResult, 1)
	go func() {
		done <- o.StartQuickScan(context.Background(), ScanTarget{IPAddress: "192.0.2.52", Ports: []int{80, 81}})
	}()

	// Wait for the scan to register, then cancel it.
	var scanID string
	require.Eventually(t, func() bool {
		ids := o.ActiveScans()
		if len(ids) == 0 {
			return false
		}
		scanID = ids[0]
		return true
	}, 2*time.Second, 5*time.Millisecond)
	require.True(t, o.Cancel(scanID))
	close(release)

	select {
	case result := <-done:
		assert.Equal(t, StatusCancelled, result.Status)
		assert.Equal(t, scanID, result.ScanID)
	case <-time.After(3 * time.Second):
		t.Fatal("scan did not terminate after cancellation")
	}

	require.Len(t, recorder.ofKind(events.TypeScanCompleted), 1)
	completed := recorder.ofKind(events.TypeScanCompleted)[0].(events.ScanCompleted)
	assert.Equal(t, string(StatusCancelled), completed.Status)
}

func TestCancelDuringEnrichmentDropsLateLookups(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	o.device = deviceTyperFunc(func(c context.Context, ip string) string {
		return "server"
	})
	o.resolver = hostNamerFunc(func(c context.Context, ip string) string {
		cancel()
		// Finish only as the enrichment pool shuts down, after the
		// cancelled scan has already moved on.
		<-c.Done()
		return "late.example.internal"
	})

	target := ScanTarget{IPAddress: "192.0.2.50", Ports: []int{21}, NodeID: "node-9"}
	result := o.StartQuickScan(ctx, target)

	assert.Equal(t, StatusCancelled, result.Status)
	require.Len(t, result.Targets, 1)
	assert.Empty(t, result.Targets[0].HostName,
		"a lookup finishing after cancellation must not mutate the result")
}

func TestCancelUnknownScan(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	assert.False(t, o.Cancel("no-such-scan"))
}

func TestGetProgress(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	_, err := o.GetProgress("no-such-scan")
	assert.Error(t, err)

	result := o.StartQuickScan(context.Background(), ScanTarget{IPAddress: "192.0.2.50"})

	// Terminal snapshots stay readable after the scan leaves the registry.
	progress, err := o.GetProgress(result.ScanID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, progress.Status)
	assert.Equal(t, 100.0, progress.PercentComplete)
	assert.Empty(t, o.ActiveScans())
}

func TestConfigChecksFlagExposedServices(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	o.prober.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		if address == "192.0.2.53:23" || address == "192.0.2.53:445" {
			return nil
		}
		return syscall.ECONNREFUSED
	})
	o.banners.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "", syscall.ECONNRESET
	})

	result := o.StartQuickScan(context.Background(),
		ScanTarget{IPAddress: "192.0.2.53", Ports: []int{23, 80, 445}})

	require.Equal(t, StatusCompleted, result.Status)
	titles := make(map[string]vuln.Category)
	for _, entry := range result.Vulnerabilities {
		titles[entry.Title] = entry.Category
	}
	assert.Equal(t, vuln.CategoryConfiguration, titles["Telnet Service Exposed"])
	assert.Equal(t, vuln.CategoryNetworkSecurity, titles["SMB Service Exposed"])
}

// fakeAdapter returns a canned deep-scan finding.
type fakeAdapter struct {
	finding *deepscan.Finding
	err     error
}

func (f *fakeAdapter) Name() string { return "fake" }

func (f *fakeAdapter) Probe(ctx context.Context, target string, ports []int, opts deepscan.DepthOptions) (*deepscan.Finding, error) {
	return f.finding, f.err
}

func TestDeepScanWithAdapterFindings(t *testing.T) {
	o, recorder := newTestOrchestrator(t, testConfig())
	o.SetAdapter(&fakeAdapter{finding: &deepscan.Finding{
		OpenPorts: []probe.OpenPort{{Port: 22, Service: "ssh"}},
		Fingerprints: []vuln.ServiceFingerprint{
			{IPAddress: "192.0.2.54", Port: 22, Service: "ssh", Product: "OpenSSH", Version: "7.2p2"},
		},
		OSInfo: []vuln.OperatingSystemInfo{
			{IPAddress: "192.0.2.54", Family: "Linux", Confidence: 95},
		},
		Vulnerabilities: []vuln.Entry{
			{ID: "v1", IPAddress: "192.0.2.54", Port: 22, Title: "weak ciphers", Severity: vuln.SeverityMedium},
		},
	}})

	result := o.StartDeepScan(context.Background(),
		ScanTarget{IPAddress: "192.0.2.54"}, deepscan.DepthOptions{})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.Equal(t, TypeDeep, result.Type)
	assert.Equal(t, []int{22}, result.OpenPorts)
	require.Len(t, result.Fingerprints, 1)
	assert.Equal(t, "OpenSSH", result.Fingerprints[0].Product)
	require.Len(t, result.OSInfo, 1)

	// Extension points are typed and empty, never nil.
	assert.NotNil(t, result.PotentialExploits)
	assert.NotNil(t, result.ComplianceResults)

	require.Len(t, result.Vulnerabilities, 1)
	assert.InDelta(t, 5.0, result.Vulnerabilities[0].CVSSScore, 0.001,
		"classifier approximates missing CVSS")
	assert.False(t, result.Statistics.SyntheticResult)

	require.Len(t, recorder.ofKind(events.TypeScanCompleted), 1)
}

func TestDeepScanSyntheticFallback(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())
	o.SetAdapter(deepscan.NewSyntheticAdapter())

	result := o.StartDeepScan(context.Background(),
		ScanTarget{IPAddress: "192.0.2.55", Ports: []int{8080}}, deepscan.DepthOptions{})

	assert.Equal(t, StatusCompleted, result.Status)
	assert.True(t, result.Statistics.SyntheticResult)
	assert.Equal(t, []int{8080}, result.OpenPorts)
}

func TestConcurrentScansAreIsolated(t *testing.T) {
	o, _ := newTestOrchestrator(t, testConfig())

	const n = 8
	results := make(chan *ScanResult, n)
	for i := 0; i < n; i++ {
		go func() {
			results <- o.StartQuickScan(context.Background(),
				ScanTarget{IPAddress: "192.0.2.50", Ports: []int{21}})
		}()
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		select {
		case r := <-results:
			assert.Equal(t, StatusCompleted, r.Status)
			assert.False(t, seen[r.ScanID], "scan ids must be unique")
			seen[r.ScanID] = true
			assert.Equal(t, r.Summary.Total, len(r.Vulnerabilities))
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for concurrent scans")
		}
	}
}

func TestScanTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Scanning.ScanTimeout = 50 * time.Millisecond
	o, _ := newTestOrchestrator(t, cfg)

	o.prober.SetDialFunc(func(ctx context.Context, address string, timeout time.Duration) error {
		<-ctx.Done()
		return ctx.Err()
	})

	result := o.StartQuickScan(context.Background(),
		ScanTarget{IPAddress: "192.0.2.56", Ports: []int{80}})
	assert.Equal(t, StatusTimeout, result.Status)
}
