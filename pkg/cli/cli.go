// Package cli provides the command-line interface for safari-runner.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to safari-runner.yaml (default: ./safari-runner.yaml if present)",
		EnvVars: []string{"SAFARI_RUNNER_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Usage:   "WebDriver endpoint of the Appium server",
		EnvVars: []string{"SAFARI_RUNNER_SERVER", "APPIUM_URL"},
	},
	&cli.StringFlag{
		Name:    "device",
		Usage:   "deviceName capability",
		EnvVars: []string{"SAFARI_RUNNER_DEVICE"},
	},
	&cli.StringFlag{
		Name:    "platform-version",
		Usage:   "platformVersion capability",
		EnvVars: []string{"SAFARI_RUNNER_PLATFORM_VERSION"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"SAFARI_RUNNER_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// NewApp builds the command tree. Errors implementing cli.ExitCoder carry the
// process exit status; the app itself never exits.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "safari-runner",
		Usage:   "Scripted mobile Safari scenarios over WebDriver",
		Version: Version,
		Description: `safari-runner opens a Safari session on an iOS device through an
Appium/WebDriver server, runs a scenario step by step and always ends
the session. Without a scenario argument it runs the built-in
Barcamp Brno 2018 scenario.

Examples:
  safari-runner run
  safari-runner --server http://127.0.0.1:4723/wd/hub run scenario.yaml
  safari-runner run -e BASE_URL=http://staging.barcampbrno.cz scenarios/
  safari-runner validate scenario.yaml
  safari-runner caps`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			validateCommand,
			capsCommand,
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-ansi") {
				colorsEnabled = false
			}
			return nil
		},
		ExitErrHandler: func(*cli.Context, error) {},
	}
}

// Execute runs the CLI and exits with the scenario outcome.
func Execute() {
	err := NewApp().Run(os.Args)
	if err == nil {
		return
	}

	code := 1
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if msg := err.Error(); msg != "" {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(code)
}
