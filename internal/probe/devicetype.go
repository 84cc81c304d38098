package probe

import (
	"context"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
)

// sysDescr OID per RFC 1213.
const oidSysDescr = "1.3.6.1.2.1.1.1.0"

// DeviceTypeProbe asks a host for its SNMP system description and maps it
// to a coarse device-type hint for topology labeling. Hosts without SNMP
// simply stay "unknown".
type DeviceTypeProbe struct {
	community string
	timeout   time.Duration
	logger    *logging.Logger
}

// NewDeviceTypeProbe creates a probe using the public community and a one
// second timeout.
func NewDeviceTypeProbe() *DeviceTypeProbe {
	return &DeviceTypeProbe{
		community: "public",
		timeout:   time.Second,
		logger:    logging.Default().WithComponent("devicetype"),
	}
}

// Identify returns a device-type hint for the host, or "unknown". All SNMP
// failures are swallowed.
func (d *DeviceTypeProbe) Identify(ctx context.Context, ip string) string {
	snmp := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      161,
		Community: d.community,
		Version:   gosnmp.Version2c,
		Timeout:   d.timeout,
		Retries:   0,
		Context:   ctx,
	}

	if err := snmp.Connect(); err != nil {
		return "unknown"
	}
	defer snmp.Conn.Close()

	result, err := snmp.Get([]string{oidSysDescr})
	if err != nil || len(result.Variables) == 0 {
		d.logger.Debug("SNMP sysDescr query failed", "ip", ip, "error", err)
		return "unknown"
	}

	descr, ok := result.Variables[0].Value.([]byte)
	if !ok {
		return "unknown"
	}
	return ClassifyDescriptor(string(descr))
}

// ClassifyDescriptor maps a system descriptor string to a device type.
func ClassifyDescriptor(descr string) string {
	lower := strings.ToLower(descr)
	switch {
	case strings.Contains(lower, "cisco ios"), strings.Contains(lower, "juniper"),
		strings.Contains(lower, "mikrotik"), strings.Contains(lower, "routeros"):
		return "router"
	case strings.Contains(lower, "switch"):
		return "switch"
	case strings.Contains(lower, "firewall"), strings.Contains(lower, "fortigate"),
		strings.Contains(lower, "palo alto"):
		return "firewall"
	case strings.Contains(lower, "printer"), strings.Contains(lower, "jetdirect"),
		strings.Contains(lower, "laserjet"):
		return "printer"
	case strings.Contains(lower, "windows"):
		return "workstation"
	case strings.Contains(lower, "linux"), strings.Contains(lower, "freebsd"),
		strings.Contains(lower, "ubuntu"), strings.Contains(lower, "debian"):
		return "server"
	case strings.Contains(lower, "camera"), strings.Contains(lower, "axis"):
		return "camera"
	default:
		return "unknown"
	}
}
