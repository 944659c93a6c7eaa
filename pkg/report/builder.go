package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devicelab-dev/safari-runner/pkg/core"
)

// BuilderConfig contains the run metadata that is not part of the results.
type BuilderConfig struct {
	RunnerVersion string // safari-runner version
	DriverName    string // safari, mock
	ServerURL     string // WebDriver endpoint
}

// Build converts suite results into the report.json structure.
func Build(suite *core.SuiteResult, cfg BuilderConfig) *Report {
	r := &Report{
		Version:   Version,
		RunID:     suite.RunID,
		StartTime: suite.StartTime,
		EndTime:   suite.StartTime.Add(suite.Duration),
		Duration:  suite.Duration.Milliseconds(),
		Runner: RunnerInfo{
			Name:    "safari-runner",
			Version: cfg.RunnerVersion,
			Driver:  cfg.DriverName,
			Server:  cfg.ServerURL,
		},
		Summary: Summary{
			Total:   suite.TotalFlows,
			Passed:  suite.PassedFlows,
			Failed:  suite.FailedFlows,
			Skipped: suite.SkippedFlows,
		},
		Flows: make([]Flow, len(suite.Flows)),
	}

	for i := range suite.Flows {
		r.Flows[i] = buildFlow(i, &suite.Flows[i])
	}

	switch {
	case len(suite.Flows) == 0:
		r.Status = StatusSkipped
	case suite.Success():
		r.Status = StatusPassed
	default:
		r.Status = StatusFailed
	}
	return r
}

func buildFlow(i int, fr *core.FlowResult) Flow {
	f := Flow{
		ID:           fmt.Sprintf("flow-%03d", i),
		Name:         fr.Name,
		File:         fr.FilePath,
		Tags:         fr.Tags,
		Status:       convertStatus(fr.Status),
		StartTime:    fr.StartTime,
		Duration:     fr.Duration.Milliseconds(),
		SessionError: fr.SessionError,
		Error:        fr.Error,
		Summary: CommandSummary{
			Total:   fr.TotalSteps,
			Passed:  fr.PassedSteps,
			Failed:  fr.FailedSteps,
			Skipped: fr.SkippedSteps,
			Warned:  fr.WarnedSteps,
		},
		Commands: make([]Command, len(fr.Steps)),
	}

	if p := fr.PlatformInfo; p != nil {
		f.Platform = &Platform{
			Platform:  p.Platform,
			OSVersion: p.OSVersion,
			Device:    p.DeviceName,
			Browser:   p.Browser,
			SessionID: p.SessionID,
			Width:     p.ScreenWidth,
			Height:    p.ScreenHeight,
		}
	}
	if t := fr.Teardown; t != nil && t.Attempted {
		f.Teardown = &Teardown{
			Duration: t.Duration.Milliseconds(),
			Error:    t.Error,
		}
	}

	for j := range fr.Steps {
		f.Commands[j] = buildCommand(&fr.Steps[j])
	}
	return f
}

func buildCommand(sr *core.StepResult) Command {
	cmd := Command{
		Index:       sr.Index,
		Type:        sr.Command,
		Label:       sr.Label,
		Description: sr.Description,
		Optional:    sr.Optional,
		ExecutedBy:  string(sr.ExecutedBy),
		Status:      convertStatus(sr.Status),
		Duration:    sr.Duration.Milliseconds(),
		Message:     sr.Message,
		Data:        sr.Data,
	}

	if !sr.StartTime.IsZero() {
		t := sr.StartTime
		cmd.StartTime = &t
	}

	if e := sr.Element; e != nil {
		cmd.Element = &Element{
			ID:      e.ID,
			Alias:   e.Alias,
			Locator: e.Locator,
			Text:    e.Text,
			Bounds: Bounds{
				X:      e.Bounds.X,
				Y:      e.Bounds.Y,
				Width:  e.Bounds.Width,
				Height: e.Bounds.Height,
			},
			Visible: e.Visible,
		}
	}

	if sr.Error != "" {
		cmd.Error = &Error{
			Category: sr.Category.String(),
			Code:     sr.ErrorCode,
			Message:  sr.Error,
		}
	}

	for _, a := range sr.Attachments {
		switch a.Name {
		case core.AttachmentScreenshot:
			cmd.Screenshots = append(cmd.Screenshots, a.Path)
		case core.AttachmentSource:
			cmd.PageSource = a.Path
		}
	}
	if path, ok := sr.Data.(string); ok && sr.Command == "takeScreenshot" {
		cmd.Screenshots = append(cmd.Screenshots, path)
	}
	return cmd
}

// convertStatus maps an execution status onto the report vocabulary.
func convertStatus(s core.StepStatus) Status {
	switch s {
	case core.StatusPassed:
		return StatusPassed
	case core.StatusFailed:
		return StatusFailed
	case core.StatusErrored:
		return StatusErrored
	case core.StatusSkipped:
		return StatusSkipped
	case core.StatusWarned:
		return StatusWarned
	case core.StatusRunning:
		return StatusRunning
	default:
		return StatusPending
	}
}

// Write writes report.json, junit.xml and report.html into outputDir.
func Write(outputDir string, r *Report) error {
	if err := ensureDir(outputDir); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if err := atomicWriteJSON(filepath.Join(outputDir, "report.json"), r); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if err := WriteJUnit(filepath.Join(outputDir, "junit.xml"), r); err != nil {
		return fmt.Errorf("write junit: %w", err)
	}

	if err := GenerateHTML(outputDir, HTMLConfig{}); err != nil {
		return fmt.Errorf("generate html: %w", err)
	}

	return nil
}

// ReadReport loads report.json from a report directory.
func ReadReport(reportDir string) (*Report, error) {
	data, err := os.ReadFile(filepath.Join(reportDir, "report.json"))
	if err != nil {
		return nil, err
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report.json: %w", err)
	}
	return &r, nil
}

// WriteAsset saves data to <outputDir>/assets/<name> and returns the path
// relative to outputDir.
func WriteAsset(outputDir, name string, data []byte) (string, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("invalid asset name %q", name)
	}

	dir := filepath.Join(outputDir, "assets")
	if err := ensureDir(dir); err != nil {
		return "", err
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join("assets", name)), nil
}

// atomicWriteJSON writes v as indented JSON via a temp file and rename, so a
// reader never sees a half-written file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(path, data)
}

func atomicWrite(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}
