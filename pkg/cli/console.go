package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/devicelab-dev/safari-runner/pkg/core"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// Steps slower than this are marked in the live output.
const slowThreshold = 5 * time.Second

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// Live progress callbacks

func onFlowStart(flowIdx, totalFlows int, name, file string) {
	fmt.Printf("\n  %s[%d/%d]%s %s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		color(colorBold), name, color(colorReset), file)
	fmt.Println(strings.Repeat("─", 60))
}

func onStepComplete(_ int, r *core.StepResult) {
	fmt.Print(formatStepLine(r))
}

// formatStepLine renders one executed step, plus its error on a second line.
func formatStepLine(r *core.StepResult) string {
	dur := formatDuration(r.Duration)
	name := r.Name()

	switch r.Status {
	case core.StatusPassed:
		symbol, symbolColor, durColor := "✓", color(colorGreen), ""
		if r.Duration >= slowThreshold {
			symbol, symbolColor, durColor = "⚠", color(colorYellow), color(colorYellow)
		}
		return fmt.Sprintf("    %s%s%s %s %s(%s)%s\n",
			symbolColor, symbol, color(colorReset), name, durColor, dur, color(colorReset))
	case core.StatusWarned:
		return fmt.Sprintf("    %s⚠%s %s (%s)\n      %s╰─%s optional: %s\n",
			color(colorYellow), color(colorReset), name, dur,
			color(colorGray), color(colorReset), r.Error)
	default:
		line := fmt.Sprintf("    %s✗%s %s (%s)\n", color(colorRed), color(colorReset), name, dur)
		if r.Error != "" {
			line += fmt.Sprintf("      %s╰─%s [%s] %s\n", color(colorGray), color(colorReset), r.ErrorCode, r.Error)
		}
		return line
	}
}

func onFlowEnd(r *core.FlowResult) {
	symbol, symbolColor := "✓", color(colorGreen)
	switch r.Status {
	case core.StatusFailed, core.StatusErrored:
		symbol, symbolColor = "✗", color(colorRed)
	case core.StatusSkipped:
		symbol, symbolColor = "-", color(colorCyan)
	}
	fmt.Printf("%s%s %s%s %s%s%s\n",
		symbolColor, symbol, color(colorReset), r.Name, color(colorGray), formatDuration(r.Duration), color(colorReset))

	if r.SessionError != "" {
		fmt.Printf("  %s╰─%s no session: %s\n", color(colorGray), color(colorReset), r.SessionError)
	}
	if r.Teardown != nil && r.Teardown.Error != "" {
		fmt.Printf("  %s╰─%s teardown: %s\n", color(colorGray), color(colorReset), r.Teardown.Error)
	}
}

func statusLabel(s core.StepStatus) (string, string) {
	switch s {
	case core.StatusFailed:
		return "✗ FAIL", color(colorRed)
	case core.StatusErrored:
		return "✗ ERR", color(colorRed)
	case core.StatusSkipped:
		return "- SKIP", color(colorCyan)
	case core.StatusWarned:
		return "⚠ WARN", color(colorYellow)
	}
	return "✓ PASS", color(colorGreen)
}

func printSummary(suite *core.SuiteResult) {
	var total, passed, failed, skipped, warned int
	for _, fr := range suite.Flows {
		total += fr.TotalSteps
		passed += fr.PassedSteps
		failed += fr.FailedSteps
		skipped += fr.SkippedSteps
		warned += fr.WarnedSteps
	}

	fmt.Println()
	if passed > 0 {
		fmt.Printf("  %s%d steps passing%s (%s)\n", color(colorGreen), passed, color(colorReset), formatDuration(suite.Duration))
	}
	if warned > 0 {
		fmt.Printf("  %s%d optional steps warned%s\n", color(colorYellow), warned, color(colorReset))
	}
	if failed > 0 {
		fmt.Printf("  %s%d steps failing%s\n", color(colorRed), failed, color(colorReset))
	}
	if skipped > 0 {
		fmt.Printf("  %s%d steps skipped%s\n", color(colorCyan), skipped, color(colorReset))
	}
	fmt.Println()

	tableWidth := 92
	fmt.Println(strings.Repeat("═", tableWidth))
	fmt.Printf("  %-42s %6s %7s %6s %6s %6s %10s\n", "Scenario", "Status", "Steps", "Pass", "Fail", "Skip", "Duration")
	fmt.Println(strings.Repeat("─", tableWidth))

	for _, fr := range suite.Flows {
		status, statusColor := statusLabel(fr.Status)

		name := fr.Name
		if len(name) > 42 {
			name = name[:39] + "..."
		}

		fmt.Printf("  %-42s %s%6s%s %7d %6d %6d %6d %10s\n",
			name, statusColor, status, color(colorReset),
			fr.TotalSteps, fr.PassedSteps+fr.WarnedSteps, fr.FailedSteps, fr.SkippedSteps,
			formatDuration(fr.Duration))
	}

	fmt.Println(strings.Repeat("─", tableWidth))
	statusStr := fmt.Sprintf("%d/%d", suite.PassedFlows, suite.TotalFlows)
	statusColor := color(colorGreen)
	if !suite.Success() {
		statusColor = color(colorRed)
	}
	fmt.Printf("  %s%-42s%s %s%6s%s %7d %6d %6d %6d %10s\n",
		color(colorBold), "TOTAL", color(colorReset),
		statusColor, statusStr, color(colorReset),
		total, passed+warned, failed, skipped,
		formatDuration(suite.Duration))
	fmt.Println(strings.Repeat("═", tableWidth))
}

// formatDuration shows milliseconds below one second, seconds below a minute.
func formatDuration(d time.Duration) string {
	ms := d.Milliseconds()
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	return fmt.Sprintf("%dm %ds", ms/60000, (ms%60000)/1000)
}
