package report

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HTMLConfig contains configuration for HTML report generation.
type HTMLConfig struct {
	OutputPath  string // Path to write the HTML file (default: <reportDir>/report.html)
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Safari Runner Report")
}

// GenerateHTML renders report.json in reportDir as a standalone HTML page.
func GenerateHTML(reportDir string, cfg HTMLConfig) error {
	r, err := ReadReport(reportDir)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Safari Runner Report"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	html, err := renderHTML(buildHTMLData(r, reportDir, cfg))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return fmt.Errorf("write html: %w", err)
	}
	return nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Report        *Report
	Flows         []FlowHTMLData
	TotalDuration string
	PassRate      float64
}

// FlowHTMLData contains flow data formatted for HTML.
type FlowHTMLData struct {
	Flow
	DurationStr string
	Commands    []CommandHTMLData
}

// CommandHTMLData contains command data formatted for HTML.
type CommandHTMLData struct {
	Command
	DurationStr string
	Images      []string // base64 data URIs or relative paths
}

func buildHTMLData(r *Report, reportDir string, cfg HTMLConfig) HTMLData {
	flows := make([]FlowHTMLData, len(r.Flows))
	for i, f := range r.Flows {
		cmds := make([]CommandHTMLData, len(f.Commands))
		for j, c := range f.Commands {
			cmd := CommandHTMLData{
				Command:     c,
				DurationStr: formatDuration(c.Duration),
			}
			for _, shot := range c.Screenshots {
				if cfg.EmbedAssets {
					if uri := loadAsBase64(filepath.Join(reportDir, shot)); uri != "" {
						cmd.Images = append(cmd.Images, uri)
					}
					continue
				}
				cmd.Images = append(cmd.Images, shot)
			}
			cmds[j] = cmd
		}
		flows[i] = FlowHTMLData{
			Flow:        f,
			DurationStr: formatDuration(f.Duration),
			Commands:    cmds,
		}
	}

	var passRate float64
	if r.Summary.Total > 0 {
		passRate = float64(r.Summary.Passed) / float64(r.Summary.Total) * 100
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Report:        r,
		Flows:         flows,
		TotalDuration: formatDuration(r.Duration),
		PassRate:      passRate,
	}
}

func formatDuration(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", ms)
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

func loadAsBase64(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	mimeType := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
		// data URIs are built by loadAsBase64, relative paths by WriteAsset
		"img": func(s string) template.URL { return template.URL(s) },
	}).Parse(htmlTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --text-muted: rgb(107, 114, 128);
            --border-color: #e5e7eb;
            --passed: #22c55e;
            --failed: #ef4444;
            --errored: #f97316;
            --skipped: #eab308;
            --warned: #a855f7;
        }
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; color: #111; }
        h1 { font-size: 1.4rem; margin-bottom: .25rem; }
        .meta { color: var(--text-muted); font-size: .85rem; margin-bottom: 1.5rem; }
        .flow { border: 1px solid var(--border-color); border-radius: 6px; margin-bottom: 1.5rem; }
        .flow-header { padding: .75rem 1rem; border-bottom: 1px solid var(--border-color); display: flex; gap: 1rem; align-items: baseline; }
        .flow-header .name { font-weight: 600; flex: 1; }
        table { border-collapse: collapse; width: 100%; font-size: .9rem; }
        td { padding: .4rem 1rem; border-top: 1px solid var(--border-color); vertical-align: top; }
        td.num, td.dur { color: var(--text-muted); white-space: nowrap; }
        .status { font-weight: 600; text-transform: uppercase; font-size: .75rem; }
        .passed { color: var(--passed); }
        .failed { color: var(--failed); }
        .errored { color: var(--errored); }
        .skipped { color: var(--skipped); }
        .warned { color: var(--warned); }
        .error { color: var(--failed); font-family: monospace; font-size: .8rem; margin-top: .25rem; }
        .note { color: var(--text-muted); font-size: .8rem; padding: .5rem 1rem; }
        img { max-width: 240px; margin-top: .5rem; border: 1px solid var(--border-color); }
    </style>
</head>
<body>
    <h1>{{.Title}}</h1>
    <div class="meta">
        <span class="status {{.Report.Status}}">{{.Report.Status}}</span>
        &middot; {{.Report.Summary.Passed}}/{{.Report.Summary.Total}} flows passed ({{printf "%.0f" .PassRate}}%)
        &middot; {{.TotalDuration}}
        &middot; driver {{.Report.Runner.Driver}}{{if .Report.Runner.Server}} @ {{.Report.Runner.Server}}{{end}}
        &middot; run {{.Report.RunID}}
        &middot; generated {{.GeneratedAt}}
    </div>
    {{range .Flows}}
    <div class="flow">
        <div class="flow-header">
            <span class="name">{{.Name}}</span>
            <span class="status {{.Status}}">{{.Status}}</span>
            <span class="dur">{{.DurationStr}}</span>
        </div>
        {{if .Platform}}<div class="note">{{.Platform.Browser}} on {{.Platform.Device}} ({{.Platform.Platform}} {{.Platform.OSVersion}}){{if .Platform.SessionID}}, session {{.Platform.SessionID}}{{end}}</div>{{end}}
        {{if .SessionError}}<div class="note error">{{.SessionError}}</div>{{end}}
        <table>
            {{range .Commands}}
            <tr>
                <td class="num">{{inc .Index}}</td>
                <td class="status {{.Status}}">{{.Status}}</td>
                <td>
                    {{if .Label}}<strong>{{.Label}}</strong> &middot; {{end}}{{.Description}}
                    {{if .Error}}<div class="error">[{{.Error.Code}}] {{.Error.Message}}</div>{{end}}
                    {{range .Images}}<div><img src="{{img .}}" alt="screenshot"></div>{{end}}
                    {{if .PageSource}}<div class="note"><a href="{{.PageSource}}">page source</a></div>{{end}}
                </td>
                <td class="dur">{{.DurationStr}}</td>
            </tr>
            {{end}}
        </table>
        {{if .Teardown}}<div class="note">teardown {{if .Teardown.Error}}<span class="error">{{.Teardown.Error}}</span>{{else}}ok{{end}}</div>{{end}}
    </div>
    {{end}}
</body>
</html>
`
