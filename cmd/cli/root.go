// Package cli provides the command-line interface of scanexport. It
// implements the Cobra command tree for converting nmap XML reports, running
// live scans, serving the conversion API, scheduled exports and the
// PostgreSQL row store.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/anstrom/scanexport/internal/api/handlers"
	"github.com/anstrom/scanexport/internal/config"
	"github.com/anstrom/scanexport/internal/db"
	"github.com/anstrom/scanexport/internal/errors"
	"github.com/anstrom/scanexport/internal/logging"
	"github.com/anstrom/scanexport/internal/nmaprun"
)

const (
	envPrefix      = "SCANEXPORT"
	configName     = "scanexport"
	skipConfigFlag = "skip-config"
)

// Build information - these will be set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// app holds the state shared by the commands of one invocation.
type app struct {
	cfgFile  string
	verbose  bool
	logLevel string

	viper  *viper.Viper
	cfg    *config.Config
	logger *logging.Logger

	// Replaceable in tests.
	runner nmaprun.Runner
	openDB func(ctx context.Context, cfg *db.Config) (*db.DB, error)
}

func newApp() *app {
	return &app{
		viper:  viper.New(),
		openDB: db.Connect,
	}
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(newApp())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	handlers.SetBuildInfo(v, c, bt)
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// exitCode distinguishes usage and configuration problems from failed runs.
func exitCode(err error) int {
	var cfgErr *errors.ConfigError
	if stderrors.As(err, &cfgErr) {
		return 2
	}
	return 1
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "scanexport",
		Short: "Export nmap XML reports as JSON or CSV",
		Long: `scanexport converts nmap XML reports into flat exports: one JSON record per
host, or one CSV row per host and port. Reports that cannot be read or parsed
are skipped and reported, so one broken file never spoils a batch.

Reports can come from files, directories, glob patterns, live nmap scans or
HTTP uploads, and exports can be written on a cron schedule or stored in
PostgreSQL.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigFlag] == "true" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./scanexport.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	if err := a.viper.BindPFlag("logging.level", flags.Lookup("log-level")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind log-level flag: %v\n", err)
	}

	root.AddCommand(
		newConvertCmd(a),
		newNormalizeCmd(a),
		newScanCmd(a),
		newServeCmd(a),
		newScheduleCmd(a),
		newStoreCmd(a),
		newAPIKeyCmd(),
		newVersionCmd(),
	)
	return root
}

// setup loads the configuration and sets up logging.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	logCfg := cfg.Logging
	if a.verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: failed to initialize logging: %v\n", err)
		logger = logging.NewDefault()
	}
	logging.SetDefault(logger)
	a.logger = logger

	if a.verbose && a.viper.ConfigFileUsed() != "" {
		logger.Debug("Using config file", "path", a.viper.ConfigFileUsed())
	}
	return nil
}

// loadConfig reads the config file, then applies SCANEXPORT_* environment
// variables and bound flags on top of it.
func (a *app) loadConfig() (*config.Config, error) {
	v := a.viper
	if a.cfgFile != "" {
		v.SetConfigFile(a.cfgFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/scanexport")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile != "" || !stderrors.As(err, &notFound) {
			return nil, errors.WrapConfigError(errors.CodeConfiguration, "Failed to read config file", err)
		}
	}

	cfg, err := config.Load(v.ConfigFileUsed())
	if err != nil {
		return nil, err
	}

	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Settings that may be overridden by environment variables, for example
// SCANEXPORT_DATABASE_PASSWORD.
var (
	stringOverrides = map[string]func(*config.Config) *string{
		"export.format":       func(c *config.Config) *string { return &c.Export.Format },
		"export.output":       func(c *config.Config) *string { return &c.Export.Output },
		"export.pattern":      func(c *config.Config) *string { return &c.Export.Pattern },
		"scan.ports":          func(c *config.Config) *string { return &c.Scan.Ports },
		"scan.scan_type":      func(c *config.Config) *string { return &c.Scan.ScanType },
		"scan.binary_path":    func(c *config.Config) *string { return &c.Scan.BinaryPath },
		"database.host":       func(c *config.Config) *string { return &c.Database.Host },
		"database.database":   func(c *config.Config) *string { return &c.Database.Database },
		"database.username":   func(c *config.Config) *string { return &c.Database.Username },
		"database.password":   func(c *config.Config) *string { return &c.Database.Password },
		"database.ssl_mode":   func(c *config.Config) *string { return &c.Database.SSLMode },
		"api.listen_addr":     func(c *config.Config) *string { return &c.API.ListenAddr },
		"logging.output":      func(c *config.Config) *string { return &c.Logging.Output },
		"metrics.pushgateway": func(c *config.Config) *string { return &c.Metrics.Pushgateway },
		"metrics.push_job":    func(c *config.Config) *string { return &c.Metrics.PushJob },
	}

	intOverrides = map[string]func(*config.Config) *int{
		"export.workers": func(c *config.Config) *int { return &c.Export.Workers },
		"scan.timing":    func(c *config.Config) *int { return &c.Scan.Timing },
		"database.port":  func(c *config.Config) *int { return &c.Database.Port },
		"api.port":       func(c *config.Config) *int { return &c.API.Port },
	}

	boolOverrides = map[string]func(*config.Config) *bool{
		"export.pretty":     func(c *config.Config) *bool { return &c.Export.Pretty },
		"api.cors.enabled":  func(c *config.Config) *bool { return &c.API.CORS.Enabled },
		"api.auth.enabled":  func(c *config.Config) *bool { return &c.API.Auth.Enabled },
		"scan.os_detection": func(c *config.Config) *bool { return &c.Scan.OSDetection },
	}
)

func applyOverrides(v *viper.Viper, cfg *config.Config) {
	for key, field := range stringOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetString(key)
		}
	}
	for key, field := range intOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetInt(key)
		}
	}
	for key, field := range boolOverrides {
		if v.IsSet(key) {
			*field(cfg) = v.GetBool(key)
		}
	}
	if v.IsSet("logging.level") {
		cfg.Logging.Level = logging.LogLevel(v.GetString("logging.level"))
	}
	if v.IsSet("logging.format") {
		cfg.Logging.Format = logging.LogFormat(v.GetString("logging.format"))
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{skipConfigFlag: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "scanexport %s\n", getVersion())
		},
	}
}
