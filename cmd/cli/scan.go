package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
)

var (
	scanTarget    string
	scanPorts     string
	scanDeep      bool
	scanIntensity string
	scanMaxPorts  int
	scanJSON      bool
	scanOutput    string
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a target for open ports and vulnerable services",
	Long: `Scan validates the target is reachable, probes its ports, reads
service banners, and classifies findings by severity. With --deep the
scan runs through the nmap utility for service, OS, and vulnerability
script detection, degrading to the built-in prober when nmap is not
installed.`,
	Example: `  netrecon scan --target 192.168.1.10
  netrecon scan --target fileserver.local --ports "21,22,80,443"
  netrecon scan --target 192.168.1.10 --deep --intensity aggressive
  netrecon scan --target 192.168.1.10 --json --output report.json`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanTarget, "target", "", "IP address or hostname to scan")
	scanCmd.Flags().StringVar(&scanPorts, "ports", "", "Ports to probe: '22,80,443' or '8000-8100' (default: common ports)")
	scanCmd.Flags().BoolVar(&scanDeep, "deep", false, "Run a deep scan through the nmap utility")
	scanCmd.Flags().StringVar(&scanIntensity, "intensity", "normal", "Deep scan intensity: stealthy, normal, aggressive, insane")
	scanCmd.Flags().IntVar(&scanMaxPorts, "max-ports", 0, "Deep scan port budget (default from config)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Emit the full result as JSON")
	scanCmd.Flags().StringVar(&scanOutput, "output", "", "Write the JSON result to a file")

	_ = scanCmd.MarkFlagRequired("target")
}

func runScan(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ports, err := parsePorts(scanPorts)
	if err != nil {
		return fmt.Errorf("invalid port specification %q: %w", scanPorts, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orchestrator := scanning.New(cfg, events.NewBus())

	target := scanning.ScanTarget{Ports: ports}
	if net.ParseIP(scanTarget) != nil {
		target.IPAddress = scanTarget
	} else {
		target.HostName = scanTarget
	}

	if scanDeep {
		opts := deepscan.DepthOptions{
			Intensity: deepscan.ParseIntensity(scanIntensity),
			MaxPorts:  scanMaxPorts,
		}
		result := orchestrator.StartDeepScan(ctx, target, opts)
		return renderDeepResult(result)
	}

	result := orchestrator.StartQuickScan(ctx, target)
	return renderResult(result)
}

// parsePorts accepts "22,80,443" and "8000-8100" forms, mixed.
func parsePorts(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}

	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := parsePort(lo)
			if err != nil {
				return nil, err
			}
			end, err := parsePort(hi)
			if err != nil {
				return nil, err
			}
			if end < start {
				return nil, fmt.Errorf("range %q is reversed", part)
			}
			for p := start; p <= end; p++ {
				ports = append(ports, p)
			}
			continue
		}

		p, err := parsePort(part)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}

	sort.Ints(ports)
	return ports, nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("port %d out of range", p)
	}
	return p, nil
}

func renderResult(result *scanning.ScanResult) error {
	if scanJSON || scanOutput != "" {
		return writeJSONResult(result)
	}
	printScanSummary(result)
	return nil
}

func renderDeepResult(result *scanning.DeepScanResult) error {
	if scanJSON || scanOutput != "" {
		return writeJSONResult(result)
	}

	printScanSummary(&result.ScanResult)

	if len(result.Fingerprints) > 0 {
		fmt.Println("\nService fingerprints:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Port", "Service", "Product", "Version")
		for i := range result.Fingerprints {
			fp := &result.Fingerprints[i]
			_ = table.Append([]string{
				strconv.Itoa(fp.Port),
				fp.Service,
				fp.Product,
				fp.Version,
			})
		}
		_ = table.Render()
	}

	for i := range result.OSInfo {
		osInfo := &result.OSInfo[i]
		fmt.Printf("\nOS: %s (%s) confidence %d%%\n", osInfo.Name, osInfo.Family, osInfo.Confidence)
	}
	return nil
}

func printScanSummary(result *scanning.ScanResult) {
	fmt.Printf("Scan %s: %s\n", result.ScanID, result.Status)
	fmt.Printf("Target: %s\n", result.Targets[0].Address())
	fmt.Printf("Duration: %s  Ports probed: %d  Open: %d\n",
		result.Duration.Round(time.Millisecond),
		result.Statistics.PortsProbed,
		result.Statistics.OpenPorts)
	fmt.Printf("Risk: %s (score %.1f)\n", result.Statistics.RiskLevel, result.Statistics.RiskScore)
	if result.Statistics.SyntheticResult {
		fmt.Println("Note: deep scan utility unavailable, results are from the built-in prober")
	}

	if len(result.OpenPorts) > 0 {
		openPorts := make([]string, len(result.OpenPorts))
		for i, p := range result.OpenPorts {
			openPorts[i] = strconv.Itoa(p)
		}
		fmt.Printf("Open ports: %s\n", strings.Join(openPorts, ", "))
	}

	if len(result.Vulnerabilities) > 0 {
		fmt.Println("\nFindings:")
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Severity", "Port", "Title", "CVE", "CVSS")
		for i := range result.Vulnerabilities {
			entry := &result.Vulnerabilities[i]
			_ = table.Append([]string{
				entry.Severity.String(),
				strconv.Itoa(entry.Port),
				entry.Title,
				entry.CVE,
				fmt.Sprintf("%.1f", entry.CVSSScore),
			})
		}
		_ = table.Render()
	}

	if len(result.Recommendations) > 0 {
		fmt.Println("\nRecommendations:")
		for _, rec := range result.Recommendations {
			fmt.Printf("  - %s\n", rec)
		}
	}
}

func writeJSONResult(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	if scanOutput != "" {
		if err := os.WriteFile(scanOutput, data, 0600); err != nil {
			return fmt.Errorf("writing %s: %w", scanOutput, err)
		}
		fmt.Printf("Result written to %s\n", scanOutput)
		return nil
	}

	fmt.Println(string(data))
	return nil
}
