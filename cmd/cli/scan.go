package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/anstrom/scanexport/internal/batch"
	"github.com/anstrom/scanexport/internal/nmaprun"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		flags    exportFlags
		targets  string
		ports    string
		scanType string
		timing   int
		osDetect bool
		noSvc    bool
		timeout  string
		nmapPath string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run nmap and export the result",
		Long: `Run an nmap scan against the given targets and export its XML report
through the same pipeline as report files. Scan defaults come from the scan
section of the configuration. A failed scan is reported like an unreadable
report: the export is written, but without hosts.`,
		Example: `  scanexport scan --targets 192.168.1.0/24
  scanexport scan --targets "10.0.0.1,10.0.0.2" --ports "22,80,443" -f csv
  scanexport scan --targets localhost --type version --timing 4 -o local.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed := cmd.Flags().Changed
			scanCfg := a.cfg.Scan
			if changed("ports") {
				scanCfg.Ports = ports
			}
			if changed("type") {
				scanCfg.ScanType = scanType
			}
			if changed("timing") {
				scanCfg.Timing = timing
			}
			if changed("os-detection") {
				scanCfg.OSDetection = osDetect
			}
			if noSvc {
				scanCfg.ServiceDetection = false
			}
			if changed("nmap") {
				scanCfg.BinaryPath = nmapPath
			}
			if changed("timeout") {
				d, err := parseDuration(timeout)
				if err != nil {
					return fmt.Errorf("invalid timeout %q: %w", timeout, err)
				}
				scanCfg.Timeout = d
			}

			if err := validatePorts(scanCfg.Ports); err != nil {
				return fmt.Errorf("invalid port specification '%s': %w", scanCfg.Ports, err)
			}
			if err := flags.apply(cmd, a); err != nil {
				return err
			}

			opts := nmaprun.OptionsFromConfig(scanCfg, parseTargets(targets))
			if err := opts.Validate(); err != nil {
				return err
			}

			runner := a.runner
			if runner == nil {
				runner = nmaprun.NewScanner(a.logger)
			}
			sources := []batch.Source{nmaprun.NewSource(runner, opts)}
			return a.runExport(cmd, sources, flags.summary)
		},
	}

	flags.register(cmd.Flags())
	f := cmd.Flags()
	f.StringVar(&targets, "targets", "", "Comma-separated list of targets (IPs, hostnames, CIDR ranges)")
	f.StringVar(&ports, "ports", "22,80,443,8080,8443", "Port specification: '80,443', '1-1000' or 'T:100' for top ports")
	f.StringVar(&scanType, "type", nmaprun.ScanTypeConnect, "Scan type: connect, syn (requires root), version")
	f.IntVar(&timing, "timing", 3, "Timing template 0 (paranoid) to 5 (insane)")
	f.BoolVar(&osDetect, "os-detection", false, "Enable OS detection (requires root)")
	f.BoolVar(&noSvc, "no-service-detection", false, "Disable service version detection")
	f.StringVar(&timeout, "timeout", "10m", "Maximum scan duration, e.g. 90s, 10m or 1d")
	f.StringVar(&nmapPath, "nmap", "", "Path to the nmap binary (default searches PATH)")
	_ = cmd.MarkFlagRequired("targets")
	return cmd
}

func validatePorts(ports string) error {
	if ports == "" {
		return fmt.Errorf("empty port specification")
	}

	// Top ports specification
	if strings.HasPrefix(ports, "T:") {
		return nil
	}

	for _, part := range strings.Split(ports, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if err := validatePortPart(part); err != nil {
			return err
		}
	}
	return nil
}

// validatePortPart checks a single port or a start-end range.
func validatePortPart(part string) error {
	if !strings.Contains(part, "-") {
		if _, err := parsePort(part); err != nil {
			return fmt.Errorf("invalid port: %s", part)
		}
		return nil
	}

	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != 2 {
		return fmt.Errorf("invalid port range: %s", part)
	}
	start, err := parsePort(rangeParts[0])
	if err != nil {
		return fmt.Errorf("invalid start port in range: %s", rangeParts[0])
	}
	end, err := parsePort(rangeParts[1])
	if err != nil {
		return fmt.Errorf("invalid end port in range: %s", rangeParts[1])
	}
	if start > end {
		return fmt.Errorf("start port cannot be greater than end port: %s", part)
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

func parseTargets(targets string) []string {
	if targets == "" {
		return nil
	}

	var result []string
	for _, part := range strings.Split(targets, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}

// parseDuration accepts Go durations and whole days such as "1d".
func parseDuration(duration string) (time.Duration, error) {
	duration = strings.ToLower(strings.TrimSpace(duration))
	if d, err := time.ParseDuration(duration); err == nil {
		return d, nil
	}

	if days, ok := strings.CutSuffix(duration, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day format: %s", duration)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("invalid duration format: %s", duration)
}
