// Package probe implements the quick-scan network stages: target liveness
// validation, bounded concurrent port probing, banner analysis against a
// known-vulnerable signature table, and auxiliary reverse-DNS and SNMP
// lookups used to label discovered nodes.
package probe

import "fmt"

// wellKnownServices maps common ports to their conventional service names.
// Used to label open ports when no banner or deep-scan fingerprint is
// available.
var wellKnownServices = map[int]string{
	21:    "ftp",
	22:    "ssh",
	23:    "telnet",
	25:    "smtp",
	53:    "dns",
	80:    "http",
	110:   "pop3",
	111:   "rpcbind",
	135:   "msrpc",
	139:   "netbios-ssn",
	143:   "imap",
	161:   "snmp",
	389:   "ldap",
	443:   "https",
	445:   "microsoft-ds",
	465:   "smtps",
	514:   "syslog",
	587:   "submission",
	631:   "ipp",
	636:   "ldaps",
	873:   "rsync",
	993:   "imaps",
	995:   "pop3s",
	1080:  "socks",
	1433:  "mssql",
	1521:  "oracle",
	1723:  "pptp",
	2049:  "nfs",
	2375:  "docker",
	3000:  "http-alt",
	3128:  "squid",
	3306:  "mysql",
	3389:  "rdp",
	5060:  "sip",
	5432:  "postgresql",
	5672:  "amqp",
	5900:  "vnc",
	5985:  "winrm",
	6379:  "redis",
	8000:  "http-alt",
	8080:  "http-proxy",
	8443:  "https-alt",
	8888:  "http-alt",
	9090:  "http-alt",
	9200:  "elasticsearch",
	11211: "memcached",
	27017: "mongodb",
}

// DefaultPorts is the quick-scan default port set: the well-known service
// ports above in ascending order.
var DefaultPorts = []int{
	21, 22, 23, 25, 53, 80, 110, 111, 135, 139,
	143, 161, 389, 443, 445, 465, 514, 587, 631, 636,
	873, 993, 995, 1080, 1433, 1521, 1723, 2049, 2375, 3000,
	3128, 3306, 3389, 5060, 5432, 5672, 5900, 5985, 6379, 8000,
	8080, 8443, 8888, 9090, 9200, 11211, 27017,
}

// livenessPorts is the small set dialed by the validator's TCP fallback
// when no external ping utility is available.
var livenessPorts = []int{80, 443, 22, 445, 3389, 8080}

// ServiceName returns the conventional service name for a port, or
// "unknown" when the port has no well-known assignment.
func ServiceName(port int) string {
	if name, ok := wellKnownServices[port]; ok {
		return name
	}
	return "unknown"
}

// PortSpec renders a port list as a comma-separated specification string.
func PortSpec(ports []int) string {
	spec := ""
	for i, p := range ports {
		if i > 0 {
			spec += ","
		}
		spec += fmt.Sprintf("%d", p)
	}
	return spec
}
