package probe

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/config"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

// signature maps a banner substring to a known vulnerability.
type signature struct {
	match       string
	title       string
	description string
	cve         string
	severity    vuln.Severity
	category    vuln.Category
	exploitable bool
	remediation string
}

// signatures is the known-vulnerable service table. Matching is
// case-insensitive substring; first match per banner wins.
var signatures = []signature{
	{
		match:       "proftpd 1.3.3",
		title:       "ProFTPD 1.3.3 Remote Code Execution",
		description: "ProFTPD 1.3.3c was distributed with a backdoor allowing unauthenticated remote command execution.",
		cve:         "CVE-2010-4221",
		severity:    vuln.SeverityCritical,
		category:    vuln.CategoryCodeExecution,
		exploitable: true,
		remediation: "Upgrade ProFTPD to a current release and verify package integrity.",
	},
	{
		match:       "vsftpd 2.3.4",
		title:       "vsftpd 2.3.4 Backdoor",
		description: "vsftpd 2.3.4 contains a backdoor that opens a command shell on port 6200 when a crafted username is supplied.",
		cve:         "CVE-2011-2523",
		severity:    vuln.SeverityCritical,
		category:    vuln.CategoryCodeExecution,
		exploitable: true,
		remediation: "Upgrade vsftpd to 3.x from a trusted source.",
	},
	{
		match:       "openssh 7.2",
		title:       "Outdated OpenSSH 7.2",
		description: "OpenSSH 7.2 is affected by multiple user-enumeration and crypto weaknesses fixed in later releases.",
		cve:         "CVE-2016-6210",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryAuthentication,
		remediation: "Upgrade OpenSSH to a supported release.",
	},
	{
		match:       "openssh 5.",
		title:       "Obsolete OpenSSH 5.x",
		description: "OpenSSH 5.x is end-of-life and missing a decade of security fixes.",
		severity:    vuln.SeverityHigh,
		category:    vuln.CategoryAuthentication,
		remediation: "Upgrade OpenSSH to a supported release.",
	},
	{
		match:       "apache/2.2",
		title:       "End-of-Life Apache HTTP Server 2.2",
		description: "Apache 2.2 no longer receives security updates and carries multiple known request-handling flaws.",
		severity:    vuln.SeverityHigh,
		category:    vuln.CategoryConfiguration,
		remediation: "Upgrade to Apache 2.4 or move the service behind a maintained proxy.",
	},
	{
		match:       "apache/2.4.49",
		title:       "Apache 2.4.49 Path Traversal",
		description: "Apache 2.4.49 allows path traversal and remote code execution via crafted URLs when CGI is enabled.",
		cve:         "CVE-2021-41773",
		severity:    vuln.SeverityCritical,
		category:    vuln.CategoryInputValidation,
		exploitable: true,
		remediation: "Upgrade to Apache 2.4.51 or later.",
	},
	{
		match:       "iis/6.0",
		title:       "Microsoft IIS 6.0 WebDAV Overflow",
		description: "IIS 6.0 WebDAV is vulnerable to a buffer overflow allowing remote code execution.",
		cve:         "CVE-2017-7269",
		severity:    vuln.SeverityCritical,
		category:    vuln.CategoryCodeExecution,
		exploitable: true,
		remediation: "Decommission IIS 6.0; migrate to a supported Windows Server release.",
	},
	{
		match:       "mysql 5.5",
		title:       "End-of-Life MySQL 5.5",
		description: "MySQL 5.5 is end-of-life and exposed database services accumulate unpatched authentication flaws.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryConfiguration,
		remediation: "Upgrade MySQL and restrict network exposure of the database port.",
	},
	{
		match:       "220 ",
		title:       "Service Version Disclosure",
		description: "The service greeting discloses product and version details useful for targeted attacks.",
		severity:    vuln.SeverityInfo,
		category:    vuln.CategoryInformationDisclosure,
		remediation: "Suppress or genericize the service banner.",
	},
}

// BannerAnalyzer grabs one greeting line from each open port and matches it
// against the signature table. A port with no banner or no match simply
// yields nothing from this stage.
type BannerAnalyzer struct {
	cfg    config.ScanningConfig
	logger *logging.Logger

	// grab is replaceable for tests; defaults to a real TCP read.
	grab func(ctx context.Context, address string, timeout time.Duration) (string, error)
}

// NewBannerAnalyzer creates an analyzer with the configured read deadline
// and port cap.
func NewBannerAnalyzer(cfg config.ScanningConfig) *BannerAnalyzer {
	a := &BannerAnalyzer{
		cfg:    cfg,
		logger: logging.Default().WithComponent("banner"),
	}
	a.grab = a.grabTCP
	return a
}

// SetGrabFunc overrides the banner read. Tests use this to supply canned
// greetings.
func (a *BannerAnalyzer) SetGrabFunc(grab func(ctx context.Context, address string, timeout time.Duration) (string, error)) {
	a.grab = grab
}

// Analyze reads banners from up to the configured number of open ports and
// returns vulnerability entries for matched signatures plus fingerprints
// for every banner that was read. Read failures are logged and swallowed.
func (a *BannerAnalyzer) Analyze(ctx context.Context, target string, openPorts []OpenPort) ([]vuln.Entry, []vuln.ServiceFingerprint) {
	ports := openPorts
	if a.cfg.BannerPortCap > 0 && len(ports) > a.cfg.BannerPortCap {
		ports = ports[:a.cfg.BannerPortCap]
	}

	var entries []vuln.Entry
	var prints []vuln.ServiceFingerprint

	for _, op := range ports {
		select {
		case <-ctx.Done():
			return entries, prints
		default:
		}

		address := net.JoinHostPort(target, fmt.Sprintf("%d", op.Port))
		banner, err := a.grab(ctx, address, a.cfg.BannerTimeout)
		if err != nil {
			a.logger.Debug("Banner read failed",
				"target", target,
				"port", op.Port,
				"error", err)
			continue
		}
		banner = strings.TrimSpace(banner)
		if banner == "" {
			continue
		}

		prints = append(prints, vuln.ServiceFingerprint{
			IPAddress: target,
			Port:      op.Port,
			Protocol:  "tcp",
			Service:   op.Service,
			Banner:    banner,
		})

		if entry, ok := a.matchSignature(target, op, banner); ok {
			entries = append(entries, entry)
			metrics.Counter(metrics.MetricBannersMatched, metrics.Labels{
				"severity": entry.Severity.String(),
			})
		}
	}

	return entries, prints
}

// matchSignature returns the first signature table hit for a banner.
func (a *BannerAnalyzer) matchSignature(target string, op OpenPort, banner string) (vuln.Entry, bool) {
	lower := strings.ToLower(banner)
	for _, sig := range signatures {
		if !strings.Contains(lower, sig.match) {
			continue
		}
		return vuln.Entry{
			ID:           uuid.New().String(),
			IPAddress:    target,
			Port:         op.Port,
			ServiceName:  op.Service,
			Title:        sig.title,
			Description:  sig.description,
			CVE:          sig.cve,
			Severity:     sig.severity,
			Category:     sig.category,
			DiscoveredAt: time.Now(),
			Exploitable:  sig.exploitable,
			Remediation:  sig.remediation,
		}, true
	}
	return vuln.Entry{}, false
}

// grabTCP connects and reads one line under the deadline.
func (a *BannerAnalyzer) grabTCP(ctx context.Context, address string, timeout time.Duration) (string, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
