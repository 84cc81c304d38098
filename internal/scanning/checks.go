package scanning

import (
	"time"

	"github.com/google/uuid"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/probe"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

// exposureCheck flags a well-known risky service being reachable from the
// scan origin.
type exposureCheck struct {
	port        int
	title       string
	description string
	severity    vuln.Severity
	category    vuln.Category
	remediation string
}

var exposureChecks = []exposureCheck{
	{
		port:        23,
		title:       "Telnet Service Exposed",
		description: "Telnet transmits credentials and session data in cleartext and should not be reachable.",
		severity:    vuln.SeverityHigh,
		category:    vuln.CategoryConfiguration,
		remediation: "Disable telnet and use SSH for remote administration.",
	},
	{
		port:        445,
		title:       "SMB Service Exposed",
		description: "SMB reachable from the scan origin widens the attack surface for lateral movement and worm propagation.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryNetworkSecurity,
		remediation: "Restrict SMB to trusted management networks.",
	},
	{
		port:        21,
		title:       "FTP Service Exposed",
		description: "FTP transmits credentials in cleartext.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryEncryption,
		remediation: "Replace FTP with SFTP or FTPS and disable anonymous access.",
	},
	{
		port:        3389,
		title:       "RDP Service Exposed",
		description: "Remote Desktop reachable from the scan origin is a common brute-force and exploit target.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryNetworkSecurity,
		remediation: "Gate RDP behind a VPN or bastion and enforce network-level authentication.",
	},
	{
		port:        6379,
		title:       "Redis Service Exposed",
		description: "Redis ships without authentication by default; an exposed instance allows data access and often code execution.",
		severity:    vuln.SeverityHigh,
		category:    vuln.CategoryConfiguration,
		remediation: "Bind Redis to localhost or a private interface and require AUTH.",
	},
	{
		port:        5900,
		title:       "VNC Service Exposed",
		description: "VNC frequently runs with weak or absent authentication and unencrypted transport.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryAuthentication,
		remediation: "Tunnel VNC over SSH or a VPN and enforce strong passwords.",
	},
	{
		port:        11211,
		title:       "Memcached Service Exposed",
		description: "Exposed memcached instances leak cached data and are abused for amplification attacks.",
		severity:    vuln.SeverityMedium,
		category:    vuln.CategoryConfiguration,
		remediation: "Bind memcached to localhost and disable UDP where unused.",
	},
	{
		port:        9200,
		title:       "Elasticsearch Service Exposed",
		description: "Elasticsearch without authentication allows full read and write access to indexed data.",
		severity:    vuln.SeverityHigh,
		category:    vuln.CategoryConfiguration,
		remediation: "Enable authentication and restrict the HTTP port to trusted networks.",
	},
}

// configChecks flags risky well-known services among the open ports.
func configChecks(address string, open []probe.OpenPort) []vuln.Entry {
	byPort := make(map[int]probe.OpenPort, len(open))
	for _, op := range open {
		byPort[op.Port] = op
	}

	var entries []vuln.Entry
	for _, check := range exposureChecks {
		op, ok := byPort[check.port]
		if !ok {
			continue
		}
		entries = append(entries, vuln.Entry{
			ID:           uuid.New().String(),
			IPAddress:    address,
			Port:         check.port,
			ServiceName:  op.Service,
			Title:        check.title,
			Description:  check.description,
			Severity:     check.severity,
			Category:     check.category,
			DiscoveredAt: time.Now(),
			Remediation:  check.remediation,
		})
	}
	return entries
}
