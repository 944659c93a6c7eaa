package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/safari-runner/pkg/config"
	"github.com/devicelab-dev/safari-runner/pkg/core"
	"github.com/devicelab-dev/safari-runner/pkg/driver/mock"
	"github.com/devicelab-dev/safari-runner/pkg/driver/safari"
	"github.com/devicelab-dev/safari-runner/pkg/executor"
	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/logger"
	"github.com/devicelab-dev/safari-runner/pkg/report"
	"github.com/devicelab-dev/safari-runner/pkg/validator"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Run scenarios in mobile Safari",
	ArgsUsage: "[scenario-file-or-folder | builtin:<name>]...",
	Description: `Run one or more scenarios, each in its own browser session. Without
arguments the built-in Barcamp Brno 2018 scenario runs.

Reports are generated in the output directory:
  - Default: <home>/reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

The exit status is 0 when every scenario passed and 1 otherwise.

Examples:
  safari-runner run
  safari-runner run -e BASE_URL=http://localhost:8080 builtin:barcamp-brno-2018
  safari-runner run --include-tags smoke scenarios/
  safari-runner run --dry-run scenario.yaml`,
	Flags: []cli.Flag{
		// Environment variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Scenario variables (KEY=VALUE)",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only run scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Skip scenarios with these tags",
		},

		// Output directory
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output directory for reports",
			EnvVars: []string{"SAFARI_RUNNER_OUTPUT"},
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},

		// Waits
		&cli.IntFlag{
			Name:    "wait-timeout",
			Usage:   "Default waitUntil timeout in ms (a step's own timeout wins)",
			EnvVars: []string{"SAFARI_RUNNER_WAIT_TIMEOUT"},
		},

		// Artifacts
		&cli.BoolFlag{
			Name:  "screenshot-all",
			Usage: "Capture a screenshot after every step, not only failed ones",
		},

		// Execution modes
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Execute against a mock driver without a server",
		},
	},
	Action: runScenarios,
}

// RunConfig holds everything a run needs once flags and the config file are merged.
type RunConfig struct {
	// Scenarios
	Refs        []string
	IncludeTags []string
	ExcludeTags []string

	// Session
	Config *config.Config
	DryRun bool

	// Scenario variables: config file env, overridden by -e flags
	Env map[string]string

	// Output
	OutputDir     string
	ScreenshotAll bool
	Verbose       bool
}

func runScenarios(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("wait-timeout") {
		cfg.Timeouts.WaitMs = c.Int("wait-timeout")
	}

	output := c.String("output")
	if output == "" {
		output = cfg.Output
	}
	outputDir, err := resolveOutputDir(output, c.Bool("flatten"))
	if err != nil {
		return err
	}

	// CLI env overrides config file env
	env := make(map[string]string)
	for k, v := range cfg.Env {
		env[k] = v
	}
	for k, v := range parseEnvVars(c.StringSlice("env")) {
		env[k] = v
	}

	refs := c.Args().Slice()
	if len(refs) == 0 && cfg.Scenario != "" {
		refs = []string{cfg.Scenario}
	}

	rc := &RunConfig{
		Refs:          refs,
		IncludeTags:   c.StringSlice("include-tags"),
		ExcludeTags:   c.StringSlice("exclude-tags"),
		Config:        cfg,
		DryRun:        c.Bool("dry-run"),
		Env:           env,
		OutputDir:     outputDir,
		ScreenshotAll: c.Bool("screenshot-all"),
		Verbose:       c.Bool("verbose"),
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	suite, err := executeRun(ctx, rc)
	if err != nil {
		return err
	}
	if !suite.Success() {
		return cli.Exit("", 1)
	}
	return nil
}

// loadConfig reads --config (or ./safari-runner.yaml) and applies the global
// flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v := c.String("server"); v != "" {
		cfg.ServerURL = v
	}
	if v := c.String("device"); v != "" {
		cfg.Capabilities.DeviceName = v
	}
	if v := c.String("platform-version"); v != "" {
		cfg.Capabilities.PlatformVersion = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, core.ErrInvalidConfig.WithCause(err)
	}
	return cfg, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No output: <home>/reports/<timestamp>/
// - output given: <output>/<timestamp>/
// - output + flatten: <output>/ (error if output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = config.GetReportsDir()
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

// executeRun validates the scenarios, runs them and writes the reports.
func executeRun(ctx context.Context, rc *RunConfig) (*core.SuiteResult, error) {
	checked := validator.New(rc.IncludeTags, rc.ExcludeTags).Validate(rc.Refs...)
	if !checked.IsValid() {
		for _, err := range checked.Errors {
			fmt.Fprintf(os.Stderr, "  %s✗%s %v\n", color(colorRed), color(colorReset), err)
		}
		return nil, cli.Exit(fmt.Sprintf("%d scenario error(s)", len(checked.Errors)), 1)
	}
	if len(checked.Flows) == 0 {
		return nil, cli.Exit("no scenario matches the tag filters", 1)
	}

	if err := os.MkdirAll(rc.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	logger.SetVerbose(rc.Verbose)
	if err := logger.Init(filepath.Join(rc.OutputDir, "runner.log")); err != nil {
		return nil, err
	}
	defer logger.Close()

	driverName := "safari"
	if rc.DryRun {
		driverName = "mock"
	}
	logger.WithFields(map[string]interface{}{
		"version": Version,
		"driver":  driverName,
		"server":  rc.Config.ServerURL,
		"output":  rc.OutputDir,
	}).Info("safari-runner starting")

	fmt.Printf("\n  %ssafari-runner %s%s  %s%s%s\n", color(colorBold), Version, color(colorReset),
		color(colorGray), describeTarget(rc), color(colorReset))

	runner := executor.New(newDriverFactory(rc), executor.RunnerConfig{
		OutputDir:    rc.OutputDir,
		Env:          rc.Env,
		WaitTimeout:  rc.Config.Timeouts.Wait(),
		PollInterval: rc.Config.Timeouts.Poll(),
		Artifacts: core.ArtifactConfig{
			CaptureOnFailure: true,
			CaptureOnSuccess: rc.ScreenshotAll,
		},
		SystemEnv:      true,
		OnFlowStart:    onFlowStart,
		OnStepComplete: onStepComplete,
		OnFlowEnd:      onFlowEnd,
	})
	suite := runner.Run(ctx, checked.Flows)

	r := report.Build(suite, report.BuilderConfig{
		RunnerVersion: Version,
		DriverName:    driverName,
		ServerURL:     serverFor(rc),
	})
	if err := report.Write(rc.OutputDir, r); err != nil {
		return suite, fmt.Errorf("write report: %w", err)
	}

	printSummary(suite)
	fmt.Printf("\n  Reports: %s\n", rc.OutputDir)
	if ctx.Err() != nil {
		fmt.Printf("  %sRun interrupted%s\n", color(colorYellow), color(colorReset))
	}
	return suite, nil
}

// newDriverFactory opens one session per scenario.
func newDriverFactory(rc *RunConfig) executor.DriverFactory {
	if rc.DryRun {
		return func(context.Context) (core.Driver, error) {
			return mock.New(mock.Config{}), nil
		}
	}

	cfg := rc.Config
	return func(ctx context.Context) (core.Driver, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d, err := safari.Open(ctx, safari.Options{
			ServerURL:       cfg.ServerURL,
			Capabilities:    cfg.Capabilities.Map(),
			PageLoadTimeout: cfg.Timeouts.PageLoad(),
			ScreenHeight:    cfg.Screen.Height,
		})
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func serverFor(rc *RunConfig) string {
	if rc.DryRun {
		return ""
	}
	return rc.Config.ServerURL
}

func describeTarget(rc *RunConfig) string {
	if rc.DryRun {
		return "dry run (mock driver)"
	}
	caps := rc.Config.Capabilities
	return fmt.Sprintf("%s on %s (%s %s) via %s",
		caps.BrowserName, caps.DeviceName, caps.PlatformName, caps.PlatformVersion, rc.Config.ServerURL)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		key, value, ok := strings.Cut(e, "=")
		if ok && key != "" {
			result[key] = value
		}
	}
	return result
}

// scenarioName is the display name used by validate.
func scenarioName(f *flow.Flow) string {
	return executor.FlowName(f)
}
