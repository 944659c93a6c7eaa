package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/devicelab-dev/safari-runner/pkg/flow"
	"github.com/devicelab-dev/safari-runner/pkg/validator"
	"github.com/devicelab-dev/safari-runner/pkg/webdriver"
)

var validateCommand = &cli.Command{
	Name:      "validate",
	Usage:     "Parse scenarios and list their steps without a server",
	ArgsUsage: "[scenario-file-or-folder | builtin:<name>]...",
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include scenarios with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude scenarios with these tags",
		},
		&cli.BoolFlag{
			Name:  "list-builtin",
			Usage: "List the built-in scenarios and exit",
		},
	},
	Action: runValidate,
}

func runValidate(c *cli.Context) error {
	w := c.App.Writer

	if c.Bool("list-builtin") {
		for _, name := range flow.BuiltinNames() {
			fmt.Fprintf(w, "%s%s\n", flow.BuiltinPrefix, name)
		}
		return nil
	}

	result := validator.New(c.StringSlice("include-tags"), c.StringSlice("exclude-tags")).Validate(c.Args().Slice()...)

	for _, f := range result.Flows {
		fmt.Fprintf(w, "%s✓%s %s%s%s (%s, %d steps)\n",
			color(colorGreen), color(colorReset), color(colorBold), scenarioName(f), color(colorReset),
			filepath.Base(f.SourcePath), len(f.Steps))
		for i, step := range f.Steps {
			line := fmt.Sprintf("  %2d. %s", i+1, step.Describe())
			if step.IsOptional() {
				line += " (optional)"
			}
			if label := step.Label(); label != "" {
				line += " [" + label + "]"
			}
			fmt.Fprintln(w, line)
		}
	}

	for _, err := range result.Errors {
		fmt.Fprintf(c.App.ErrWriter, "%s✗%s %v\n", color(colorRed), color(colorReset), err)
	}
	if !result.IsValid() {
		return cli.Exit(fmt.Sprintf("%d scenario error(s)", len(result.Errors)), 1)
	}
	return nil
}

var capsCommand = &cli.Command{
	Name:   "caps",
	Usage:  "Print the session request that would be sent to the server",
	Action: runCaps,
}

func runCaps(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(webdriver.NewSessionRequest(cfg.Capabilities.Map()), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "POST %s/session\n%s\n", cfg.ServerURL, out)
	return nil
}
