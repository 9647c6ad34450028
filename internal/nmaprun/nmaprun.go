// Package nmaprun runs live nmap scans and exposes their XML reports as batch
// sources, so a scan is exported through the same pipeline as report files.
package nmaprun

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/Ullaakut/nmap/v3"

	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
)

// Scan types.
const (
	ScanTypeConnect = "connect"
	ScanTypeSYN     = "syn"
	ScanTypeVersion = "version"
)

// Options describe one nmap run.
type Options struct {
	Targets          []string
	Ports            string
	ScanType         string
	Timing           int
	ServiceDetection bool
	OSDetection      bool
	Timeout          time.Duration
	BinaryPath       string
}

// OptionsFromConfig builds run options for targets from the scan defaults.
func OptionsFromConfig(cfg config.ScanConfig, targets []string) Options {
	return Options{
		Targets:          targets,
		Ports:            cfg.Ports,
		ScanType:         cfg.ScanType,
		Timing:           cfg.Timing,
		ServiceDetection: cfg.ServiceDetection,
		OSDetection:      cfg.OSDetection,
		Timeout:          cfg.Timeout,
		BinaryPath:       cfg.BinaryPath,
	}
}

// Validate checks the options before nmap is started.
func (o Options) Validate() error {
	if len(o.Targets) == 0 {
		return errors.ErrConfigMissing("targets")
	}
	for _, target := range o.Targets {
		if strings.TrimSpace(target) == "" || strings.HasPrefix(target, "-") {
			return errors.ErrConfigInvalid("targets", target)
		}
	}
	switch o.ScanType {
	case "", ScanTypeConnect, ScanTypeSYN, ScanTypeVersion:
	default:
		return errors.ErrConfigInvalid("scan.scan_type", o.ScanType)
	}
	if o.Timing < 0 || o.Timing > 5 {
		return errors.ErrConfigInvalid("scan.timing", o.Timing)
	}
	return nil
}

// buildScanOptions translates Options into nmap options.
func buildScanOptions(o Options) []nmap.Option {
	options := []nmap.Option{
		nmap.WithTargets(o.Targets...),
	}
	if o.Ports != "" {
		options = append(options, nmap.WithPorts(o.Ports))
	}

	switch o.ScanType {
	case ScanTypeSYN:
		options = append(options, nmap.WithSYNScan())
	case ScanTypeVersion:
		options = append(options,
			nmap.WithConnectScan(),
			nmap.WithServiceInfo(),
		)
	default:
		options = append(options, nmap.WithConnectScan())
	}

	if o.ServiceDetection && o.ScanType != ScanTypeVersion {
		options = append(options, nmap.WithServiceInfo())
	}
	if o.OSDetection {
		options = append(options, nmap.WithOSDetection())
	}

	options = append(options, nmap.WithTimingTemplate(nmap.Timing(o.Timing)))

	if o.BinaryPath != "" {
		options = append(options, nmap.WithBinaryPath(o.BinaryPath))
	}

	return options
}

// Runner executes a scan and returns the raw XML report.
type Runner interface {
	Run(ctx context.Context, opts Options) ([]byte, error)
}

// Scanner runs nmap through github.com/Ullaakut/nmap.
type Scanner struct {
	logger *logging.Logger
}

// NewScanner creates a Scanner that reports nmap warnings to logger.
func NewScanner(logger *logging.Logger) *Scanner {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Scanner{logger: logger.WithComponent("nmap")}
}

// Run implements Runner.
func (s *Scanner) Run(ctx context.Context, opts Options) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	scanner, err := nmap.NewScanner(ctx, buildScanOptions(opts)...)
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeScanFailed, "Failed to create scanner", opts.Targets, err)
	}

	s.logger.Info("Starting scan", "targets", opts.Targets, "ports", opts.Ports, "scan_type", opts.ScanType)
	start := time.Now()

	result, warnings, err := scanner.Run()
	if warnings != nil && len(*warnings) > 0 {
		s.logger.Warn("Scan completed with warnings", "warnings", *warnings)
	}
	if err != nil {
		code := errors.CodeScanFailed
		if ctx.Err() != nil {
			code = errors.CodeTimeout
		}
		return nil, errors.WrapScanError(code, "Scan failed", opts.Targets, err)
	}

	data, err := io.ReadAll(result.ToReader())
	if err != nil {
		return nil, errors.WrapScanError(errors.CodeScanFailed, "Failed to read scan report", opts.Targets, err)
	}

	s.logger.Info("Scan completed", "hosts", len(result.Hosts), "duration", time.Since(start))
	return data, nil
}

// Source is a batch source backed by a live scan. Every Read runs a new scan.
type Source struct {
	Label   string
	Options Options
	Runner  Runner
}

// NewSource creates a source that scans with runner.
func NewSource(runner Runner, opts Options) *Source {
	return &Source{
		Label:   fmt.Sprintf("nmap:%s", strings.Join(opts.Targets, ",")),
		Options: opts,
		Runner:  runner,
	}
}

// Name returns the label of the scan.
func (s *Source) Name() string {
	return s.Label
}

// Read runs the scan. A failed scan is reported as a source error, so a
// batch skips it like an unreadable file.
func (s *Source) Read(ctx context.Context) ([]byte, error) {
	data, err := s.Runner.Run(ctx, s.Options)
	if err != nil {
		return nil, errors.ErrSourceRead(s.Label, err)
	}
	return data, nil
}
