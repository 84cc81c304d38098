package probe

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/vuln"
)

func TestAnalyzeMatchesCriticalSignature(t *testing.T) {
	a := NewBannerAnalyzer(proberConfig())
	a.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "220 ProFTPD 1.3.3 Server ready.\r\n", nil
	})

	entries, prints := a.Analyze(context.Background(), "192.0.2.10",
		[]OpenPort{{Port: 21, Service: "ftp"}})

	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, vuln.SeverityCritical, entry.Severity)
	assert.Equal(t, vuln.CategoryCodeExecution, entry.Category)
	assert.Equal(t, "CVE-2010-4221", entry.CVE)
	assert.Equal(t, 21, entry.Port)
	assert.Equal(t, "192.0.2.10", entry.IPAddress)
	assert.True(t, entry.Exploitable)
	assert.NotEmpty(t, entry.ID)
	assert.NotEmpty(t, entry.Remediation)

	require.Len(t, prints, 1)
	assert.Contains(t, prints[0].Banner, "ProFTPD 1.3.3")
}

func TestAnalyzeNoMatchYieldsNoEntry(t *testing.T) {
	a := NewBannerAnalyzer(proberConfig())
	a.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "SSH-2.0-OpenSSH_9.6\r\n", nil
	})

	entries, prints := a.Analyze(context.Background(), "192.0.2.11",
		[]OpenPort{{Port: 22, Service: "ssh"}})

	assert.Empty(t, entries)
	// The banner is still captured as a fingerprint.
	require.Len(t, prints, 1)
	assert.Equal(t, "ssh", prints[0].Service)
}

func TestAnalyzeSwallowsReadFailures(t *testing.T) {
	a := NewBannerAnalyzer(proberConfig())
	a.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		if address == "192.0.2.12:21" {
			return "", errors.New("read timeout")
		}
		return "220 ProFTPD 1.3.3\r\n", nil
	})

	entries, prints := a.Analyze(context.Background(), "192.0.2.12",
		[]OpenPort{{Port: 21, Service: "ftp"}, {Port: 2121, Service: "unknown"}})

	// The failed port produces nothing; the second port still matches.
	require.Len(t, entries, 1)
	assert.Equal(t, 2121, entries[0].Port)
	require.Len(t, prints, 1)
}

func TestAnalyzeRespectsPortCap(t *testing.T) {
	cfg := proberConfig()
	cfg.BannerPortCap = 2
	a := NewBannerAnalyzer(cfg)

	var grabbed int
	a.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		grabbed++
		return "", errors.New("no banner")
	})

	ports := []OpenPort{{Port: 1}, {Port: 2}, {Port: 3}, {Port: 4}}
	a.Analyze(context.Background(), "192.0.2.13", ports)
	assert.Equal(t, 2, grabbed)
}

func TestAnalyzeStopsOnCancel(t *testing.T) {
	a := NewBannerAnalyzer(proberConfig())

	ctx, cancel := context.WithCancel(context.Background())
	a.SetGrabFunc(func(grabCtx context.Context, address string, timeout time.Duration) (string, error) {
		cancel()
		return "220 ProFTPD 1.3.3\r\n", nil
	})

	ports := []OpenPort{{Port: 21, Service: "ftp"}, {Port: 2121, Service: "unknown"}}
	entries, _ := a.Analyze(ctx, "192.0.2.14", ports)

	// Entries found before the cancellation checkpoint are preserved.
	assert.Len(t, entries, 1)
}

func TestVersionDisclosureSignature(t *testing.T) {
	a := NewBannerAnalyzer(proberConfig())
	a.SetGrabFunc(func(ctx context.Context, address string, timeout time.Duration) (string, error) {
		return "220 mail.example.org ESMTP Postfix\r\n", nil
	})

	entries, _ := a.Analyze(context.Background(), "192.0.2.15",
		[]OpenPort{{Port: 25, Service: "smtp"}})

	require.Len(t, entries, 1)
	assert.Equal(t, vuln.SeverityInfo, entries[0].Severity)
	assert.Equal(t, vuln.CategoryInformationDisclosure, entries[0].Category)
}
