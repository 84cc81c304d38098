// Package scanning coordinates the scan pipeline: target validation, port
// probing, banner analysis or deep probing, classification, and result
// assembly. One orchestrator instance runs many scans concurrently; each
// scan's mutable state is private to its scan id.
package scanning

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/errors"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/probe"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/workers"
)

const eventSource = "orchestrator"

// Quick-scan phase completion percentages.
const (
	phaseValidate     = 10.0
	phaseProbe        = 30.0
	phaseBanner       = 60.0
	phaseConfigChecks = 80.0
	phaseCompile      = 95.0
	phaseDone         = 100.0
)

// scanHandle is one in-flight scan's registry entry. The mutex guards the
// progress snapshot; cancel aborts the scan's context.
type scanHandle struct {
	mu       sync.Mutex
	progress ScanProgress
	started  time.Time
	cancel   context.CancelFunc
}

func (h *scanHandle) update(percent float64, phase string, vulnCount int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if percent > h.progress.PercentComplete {
		h.progress.PercentComplete = percent
	}
	h.progress.CurrentPhase = phase
	if vulnCount > h.progress.VulnerabilitiesFound {
		h.progress.VulnerabilitiesFound = vulnCount
	}
	h.progress.Elapsed = time.Since(h.started)
}

func (h *scanHandle) setVulnCount(n int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n > h.progress.VulnerabilitiesFound {
		h.progress.VulnerabilitiesFound = n
	}
}

func (h *scanHandle) setStatus(status ScanStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.progress.Status.IsTerminal() {
		return
	}
	h.progress.Status = status
}

func (h *scanHandle) snapshot() ScanProgress {
	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.progress
	if !p.Status.IsTerminal() {
		p.Elapsed = time.Since(h.started)
	}
	return p
}

// HostNamer labels addresses with reverse-DNS names. Lookups are best
// effort; "" means no name.
type HostNamer interface {
	ReverseLookup(ctx context.Context, ip string) string
}

// DeviceTyper produces a coarse device-type hint for a host, or "unknown".
type DeviceTyper interface {
	Identify(ctx context.Context, ip string) string
}

// Orchestrator runs scans end to end and tracks their progress. The active
// registry is the only cross-scan shared state.
type Orchestrator struct {
	cfg        *config.Config
	validator  *probe.Validator
	prober     *probe.Prober
	banners    *probe.BannerAnalyzer
	adapter    deepscan.ProbeAdapter
	classifier *vuln.Classifier
	resolver   HostNamer
	device     DeviceTyper
	bus        events.Publisher
	logger     *logging.Logger

	mu       sync.RWMutex
	active   map[string]*scanHandle
	finished map[string]ScanProgress
}

// How many terminal progress snapshots to retain for late GetProgress
// callers.
const finishedRetention = 256

// New creates an orchestrator wired to the full scan pipeline.
func New(cfg *config.Config, bus events.Publisher) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		validator:  probe.NewValidator(cfg.Scanning),
		prober:     probe.NewProber(cfg.Scanning),
		banners:    probe.NewBannerAnalyzer(cfg.Scanning),
		adapter:    deepscan.NewAdapter(cfg.DeepScan.UtilityPath),
		classifier: vuln.NewClassifier(vuln.PolicyFromConfig(cfg.Risk)),
		resolver:   probe.NewResolver(),
		device:     probe.NewDeviceTypeProbe(),
		bus:        bus,
		logger:     logging.Default().WithComponent("orchestrator"),
	}
}

// SetAdapter replaces the deep-scan adapter. Tests use this to avoid the
// external utility.
func (o *Orchestrator) SetAdapter(adapter deepscan.ProbeAdapter) {
	o.adapter = adapter
}

// SetHostNamer replaces the reverse-DNS lookup used for host enrichment.
func (o *Orchestrator) SetHostNamer(namer HostNamer) {
	o.resolver = namer
}

// SetDeviceTyper replaces the SNMP device-type probe used for host enrichment.
func (o *Orchestrator) SetDeviceTyper(typer DeviceTyper) {
	o.device = typer
}

// Prober exposes the underlying prober for instrumentation.
func (o *Orchestrator) Prober() *probe.Prober {
	return o.prober
}

// Validator exposes the target validator for instrumentation.
func (o *Orchestrator) Validator() *probe.Validator {
	return o.validator
}

// Banners exposes the banner analyzer for instrumentation.
func (o *Orchestrator) Banners() *probe.BannerAnalyzer {
	return o.banners
}

// GetProgress returns a copy of a scan's progress snapshot.
func (o *Orchestrator) GetProgress(scanID string) (ScanProgress, error) {
	o.mu.RLock()
	handle, ok := o.active[scanID]
	if !ok {
		snapshot, done := o.finished[scanID]
		o.mu.RUnlock()
		if done {
			return snapshot, nil
		}
		return ScanProgress{}, errors.NewScanError(errors.CodeScanNotFound, "scan not found: "+scanID)
	}
	o.mu.RUnlock()
	return handle.snapshot(), nil
}

// Cancel requests cancellation of an in-flight scan. Returns false when the
// scan id is unknown.
func (o *Orchestrator) Cancel(scanID string) bool {
	o.mu.RLock()
	handle, ok := o.active[scanID]
	o.mu.RUnlock()
	if !ok {
		return false
	}
	o.logger.InfoScan("Scan cancellation requested", scanID)
	handle.cancel()
	return true
}

// ActiveScans returns the ids of every registered scan.
func (o *Orchestrator) ActiveScans() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ids := make([]string, 0, len(o.active))
	for id := range o.active {
		ids = append(ids, id)
	}
	return ids
}

// register creates a handle for a new scan and a context bounded by the
// configured scan timeout.
func (o *Orchestrator) register(ctx context.Context, scanID string) (*scanHandle, context.Context, context.CancelFunc) {
	scanCtx, cancel := context.WithTimeout(ctx, o.cfg.Scanning.ScanTimeout)
	handle := &scanHandle{
		progress: ScanProgress{ScanID: scanID, Status: StatusPending},
		started:  time.Now(),
		cancel:   cancel,
	}

	o.mu.Lock()
	if o.active == nil {
		o.active = make(map[string]*scanHandle)
	}
	o.active[scanID] = handle
	o.mu.Unlock()

	return handle, scanCtx, cancel
}

// finish marks the scan terminal, publishes the completion event, and
// removes the registry entry.
func (o *Orchestrator) finish(handle *scanHandle, result *ScanResult) {
	result.Duration = time.Since(handle.started)
	result.Statistics.ElapsedTime = result.Duration

	handle.setStatus(result.Status)
	handle.update(phaseDone, "finished", len(result.Vulnerabilities))

	o.bus.Publish(events.NewScanCompleted(eventSource, result.ScanID,
		string(result.Status), len(result.Vulnerabilities), result.Duration))

	metrics.IncrementScanTotal(string(result.Type), string(result.Status))
	metrics.RecordScanDuration(string(result.Type), targetLabel(result.Targets), result.Duration)

	o.mu.Lock()
	delete(o.active, result.ScanID)
	if o.finished == nil {
		o.finished = make(map[string]ScanProgress)
	}
	if len(o.finished) >= finishedRetention {
		// Drop an arbitrary old snapshot to bound memory.
		for id := range o.finished {
			delete(o.finished, id)
			break
		}
	}
	o.finished[result.ScanID] = handle.snapshot()
	o.mu.Unlock()

	o.logger.InfoScan("Scan finished", targetLabel(result.Targets),
		"scan_id", result.ScanID,
		"status", result.Status,
		"vulnerabilities", len(result.Vulnerabilities),
		"duration", result.Duration)
}

func targetLabel(targets []ScanTarget) string {
	if len(targets) == 0 {
		return ""
	}
	return targets[0].Address()
}

// enterPhase publishes the progress event for a phase and updates the
// handle. Returns false when the scan context is already done.
func (o *Orchestrator) enterPhase(ctx context.Context, handle *scanHandle, percent float64, phase string, vulnCount int) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}
	handle.update(percent, phase, vulnCount)
	o.bus.Publish(events.NewScanProgressUpdate(eventSource, handle.progress.ScanID, percent, phase))
	metrics.Gauge(metrics.MetricScanPhase, percent, metrics.Labels{"scan_id": handle.progress.ScanID})
	return true
}

// terminalStatusFor maps a scan context error onto the terminal status.
func terminalStatusFor(ctx context.Context) ScanStatus {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
		return StatusTimeout
	}
	return StatusCancelled
}

// StartQuickScan runs the quick pipeline synchronously and returns the
// terminal result. The scan is registered for progress and cancellation
// for its whole duration.
func (o *Orchestrator) StartQuickScan(ctx context.Context, target ScanTarget) *ScanResult {
	scanID := uuid.New().String()
	handle, scanCtx, cancel := o.register(ctx, scanID)
	defer cancel()

	result := &ScanResult{
		ScanID:    scanID,
		StartedAt: handle.started,
		Type:      TypeQuick,
		Targets:   []ScanTarget{target},
		Status:    StatusRunning,
	}
	handle.setStatus(StatusRunning)

	o.bus.Publish(events.NewScanLaunched(eventSource, scanID, string(TypeQuick), target.Address()))
	o.logger.InfoScan("Quick scan started", target.Address(), "scan_id", scanID)

	o.runQuickPhases(scanCtx, handle, target, result)
	o.compile(result)
	o.finish(handle, result)
	return result
}

// runQuickPhases executes validation through config checks, leaving the
// result populated and Status set.
func (o *Orchestrator) runQuickPhases(ctx context.Context, handle *scanHandle, target ScanTarget, result *ScanResult) {
	// Phase: validate target.
	if !o.enterPhase(ctx, handle, phaseValidate, "validating target", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	if err := o.validator.Validate(ctx, target.Address()); err != nil {
		o.logger.ErrorScan("Target validation failed", target.Address(), err, "scan_id", result.ScanID)
		result.Status = StatusFailed
		result.Recommendations = append(result.Recommendations,
			"Target did not respond to liveness checks. Verify the address and that the host is online and reachable from the scan origin.")
		metrics.IncrementScanErrors(string(result.Type), string(errors.GetCode(err)))
		return
	}

	// Phase: port probe.
	if !o.enterPhase(ctx, handle, phaseProbe, "probing ports", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	open, err := o.prober.Probe(ctx, target.Address(), target.Ports)
	o.recordOpenPorts(target, open, result)
	if err != nil {
		result.Status = terminalStatusFor(ctx)
		return
	}

	// Phase: banner analysis.
	if !o.enterPhase(ctx, handle, phaseBanner, "analyzing banners", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	entries, _ := o.banners.Analyze(ctx, target.Address(), open)
	o.recordVulnerabilities(handle, result, entries)
	o.enrich(ctx, result)
	select {
	case <-ctx.Done():
		result.Status = terminalStatusFor(ctx)
		return
	default:
	}

	// Phase: basic configuration checks.
	if !o.enterPhase(ctx, handle, phaseConfigChecks, "checking configuration exposure", len(result.Vulnerabilities)) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	o.recordVulnerabilities(handle, result, configChecks(target.Address(), open))

	// Phase: compile results.
	if !o.enterPhase(ctx, handle, phaseCompile, "compiling results", len(result.Vulnerabilities)) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	result.Status = StatusCompleted
}

// StartDeepScan runs the deep pipeline: validation, adapter probe,
// classification. The adapter degrades internally, so adapter availability
// never fails the scan.
func (o *Orchestrator) StartDeepScan(ctx context.Context, target ScanTarget, opts deepscan.DepthOptions) *DeepScanResult {
	scanID := uuid.New().String()
	handle, scanCtx, cancel := o.register(ctx, scanID)
	defer cancel()

	opts = opts.Normalize(o.cfg.DeepScan)

	deep := &DeepScanResult{
		ScanResult: ScanResult{
			ScanID:    scanID,
			StartedAt: handle.started,
			Type:      TypeDeep,
			Targets:   []ScanTarget{target},
			Status:    StatusRunning,
		},
		PotentialExploits: []ExploitReference{},
		ComplianceResults: []ComplianceCheck{},
	}
	handle.setStatus(StatusRunning)

	o.bus.Publish(events.NewScanLaunched(eventSource, scanID, string(TypeDeep), target.Address()))
	o.logger.InfoScan("Deep scan started", target.Address(),
		"scan_id", scanID,
		"adapter", o.adapter.Name(),
		"intensity", opts.Intensity)

	o.runDeepPhases(scanCtx, handle, target, opts, deep)
	o.compile(&deep.ScanResult)
	o.finish(handle, &deep.ScanResult)
	return deep
}

func (o *Orchestrator) runDeepPhases(ctx context.Context, handle *scanHandle, target ScanTarget,
	opts deepscan.DepthOptions, deep *DeepScanResult) {
	result := &deep.ScanResult

	if !o.enterPhase(ctx, handle, phaseValidate, "validating target", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	if err := o.validator.Validate(ctx, target.Address()); err != nil {
		o.logger.ErrorScan("Target validation failed", target.Address(), err, "scan_id", result.ScanID)
		result.Status = StatusFailed
		result.Recommendations = append(result.Recommendations,
			"Target did not respond to liveness checks. Verify the address and that the host is online and reachable from the scan origin.")
		metrics.IncrementScanErrors(string(result.Type), string(errors.GetCode(err)))
		return
	}

	if !o.enterPhase(ctx, handle, phaseProbe, "running deep probe", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	finding, err := o.adapter.Probe(ctx, target.Address(), target.Ports, opts)
	if err != nil {
		if ctx.Err() != nil {
			result.Status = terminalStatusFor(ctx)
			return
		}
		// Adapter errors on a live context are degraded, not fatal.
		o.logger.ErrorScan("Deep probe failed", target.Address(), err, "scan_id", result.ScanID)
		finding = &deepscan.Finding{Synthetic: true}
	}

	o.recordOpenPorts(target, finding.OpenPorts, result)
	result.Statistics.SyntheticResult = finding.Synthetic
	deep.Fingerprints = finding.Fingerprints
	deep.OSInfo = finding.OSInfo

	if !o.enterPhase(ctx, handle, phaseBanner, "classifying findings", 0) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	o.recordVulnerabilities(handle, result, finding.Vulnerabilities)
	o.enrich(ctx, result)

	if !o.enterPhase(ctx, handle, phaseConfigChecks, "checking configuration exposure", len(result.Vulnerabilities)) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	o.recordVulnerabilities(handle, result, configChecks(target.Address(), finding.OpenPorts))

	if !o.enterPhase(ctx, handle, phaseCompile, "compiling results", len(result.Vulnerabilities)) {
		result.Status = terminalStatusFor(ctx)
		return
	}
	result.Status = StatusCompleted
}

// lookupOutcome carries one enrichment lookup back from a worker.
type lookupOutcome struct {
	kind  string
	value string
}

// enrich fills in best-effort host metadata: a reverse-DNS name when the
// target was given as a bare address, and an SNMP-derived device type. The
// two lookups run concurrently through a small pool; both fail silently.
// Workers report over a channel and only this goroutine writes the target,
// so a straggler cut off by cancellation cannot race the caller.
func (o *Orchestrator) enrich(ctx context.Context, result *ScanResult) {
	if len(result.Targets) == 0 {
		return
	}
	target := &result.Targets[0]
	if target.IPAddress == "" {
		return
	}

	pool := workers.New(workers.Config{
		Size:            2,
		QueueSize:       2,
		ShutdownTimeout: o.cfg.Scanning.ValidateTimeout,
	})
	pool.Start()
	defer func() {
		if err := pool.Shutdown(); err != nil {
			o.logger.Warn("Enrichment pool shutdown failed", "error", err)
		}
	}()

	outcomes := make(chan lookupOutcome, 2)

	submitted := 0
	if target.HostName == "" {
		job := workers.NewLookupJob(target.IPAddress+":ptr", target.IPAddress, "ptr",
			func(jobCtx context.Context, ip string) error {
				outcomes <- lookupOutcome{kind: "ptr", value: o.resolver.ReverseLookup(jobCtx, ip)}
				return nil
			})
		if err := pool.Submit(job); err == nil {
			submitted++
		}
	}
	if target.DeviceType == "" {
		job := workers.NewLookupJob(target.IPAddress+":snmp", target.IPAddress, "snmp",
			func(jobCtx context.Context, ip string) error {
				outcomes <- lookupOutcome{kind: "snmp", value: o.device.Identify(jobCtx, ip)}
				return nil
			})
		if err := pool.Submit(job); err == nil {
			submitted++
		}
	}

	for received := 0; received < submitted; received++ {
		select {
		case out := <-outcomes:
			switch out.kind {
			case "ptr":
				target.HostName = out.value
			case "snmp":
				target.DeviceType = out.value
			}
		case <-ctx.Done():
			return
		}
	}
}

// recordOpenPorts merges probe output into the result and publishes a
// discovery event per port.
func (o *Orchestrator) recordOpenPorts(target ScanTarget, open []probe.OpenPort, result *ScanResult) {
	for _, op := range open {
		result.OpenPorts = append(result.OpenPorts, op.Port)
		o.bus.Publish(events.NewPortDiscovered(eventSource, target.NodeID, op.Port, op.Service))
	}
	result.Statistics.OpenPorts = len(result.OpenPorts)
}

// recordVulnerabilities scores new entries, merges them into the result,
// and publishes discovery events. Critical findings additionally raise an
// alert event.
func (o *Orchestrator) recordVulnerabilities(handle *scanHandle, result *ScanResult, entries []vuln.Entry) {
	for i := range entries {
		entry := &entries[i]
		entry.NodeID = nodeIDFor(result)
		o.classifier.Score(entry)

		result.Vulnerabilities = append(result.Vulnerabilities, *entry)
		metrics.IncrementVulnerabilities(string(result.Type), entry.Severity.String())

		o.bus.Publish(events.NewVulnerabilityDiscovered(eventSource,
			entry.ID, entry.Severity.String(), entry.Title, entry.IPAddress, entry.Port))
		if entry.Severity == vuln.SeverityCritical {
			o.bus.Publish(events.NewCriticalVulnerabilityAlert(eventSource,
				entry.ID, entry.Title, entry.IPAddress, entry.Port, entry.Remediation))
		}
	}
	handle.setVulnCount(len(result.Vulnerabilities))
}

func nodeIDFor(result *ScanResult) string {
	if len(result.Targets) > 0 {
		return result.Targets[0].NodeID
	}
	return ""
}

// compile recomputes the summary, risk statistics, and recommendations.
// Runs exactly once per scan, after the last phase.
func (o *Orchestrator) compile(result *ScanResult) {
	result.Summary = vuln.Summarize(result.Vulnerabilities)
	score := o.classifier.RiskScore(result.Summary)
	result.Statistics.RiskScore = score
	result.Statistics.RiskLevel = o.classifier.RiskLevel(score)
	result.Statistics.HostsScanned = len(result.Targets)
	result.Recommendations = append(result.Recommendations, recommendations(result)...)
}

// recommendations derives remediation guidance from the compiled result.
func recommendations(result *ScanResult) []string {
	var recs []string
	if result.Summary.Critical > 0 {
		recs = append(recs, "Critical vulnerabilities found. Isolate the affected hosts and patch the flagged services immediately.")
	}
	if result.Summary.High > 0 {
		recs = append(recs, "High-severity vulnerabilities found. Schedule remediation for the flagged services.")
	}
	for _, port := range result.OpenPorts {
		switch port {
		case 23:
			recs = append(recs, "Telnet is exposed. Replace it with SSH and disable the telnet service.")
		case 21:
			recs = append(recs, "FTP is exposed. Prefer SFTP or FTPS and disable anonymous access.")
		}
	}
	if len(recs) == 0 && result.Status == StatusCompleted {
		recs = append(recs, "No significant findings. Keep services patched and re-scan periodically.")
	}
	return recs
}
