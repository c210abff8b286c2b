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
	OutputPath  string // Path to write the HTML file
	EmbedAssets bool   // Embed screenshots as base64 (makes file larger but portable)
	Title       string // Report title (default: "Test Report")
	ReportDir   string // Directory containing report.json (needed for asset paths)
}

// GenerateHTML generates an HTML report from the report directory and
// returns the path it was written to.
func GenerateHTML(reportDir string, cfg HTMLConfig) (string, error) {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}

	if cfg.Title == "" {
		cfg.Title = "Test Report"
	}
	if cfg.ReportDir == "" {
		cfg.ReportDir = reportDir
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = filepath.Join(reportDir, "report.html")
	}

	data := buildHTMLData(index, flows, cfg)

	html, err := renderHTML(data)
	if err != nil {
		return "", fmt.Errorf("render html: %w", err)
	}

	if err := os.WriteFile(cfg.OutputPath, []byte(html), 0o644); err != nil {
		return "", fmt.Errorf("write html: %w", err)
	}
	return cfg.OutputPath, nil
}

// HTMLData contains all data needed for the HTML template.
type HTMLData struct {
	Title         string
	GeneratedAt   string
	Index         *Index
	Flows         []FlowHTMLData
	Subjects      []string
	TotalDuration string
	PassRate      float64
}

// FlowHTMLData contains flow data formatted for HTML.
type FlowHTMLData struct {
	FlowDetail
	Index           int
	Status          Status
	DurationStr     string
	DurationPct     float64
	Error           string
	FinalScreenshot string
	Commands        []CommandHTMLData
}

// CommandHTMLData contains command data formatted for HTML.
type CommandHTMLData struct {
	Command
	Summary          string
	DurationStr      string
	ScreenshotBefore string // base64 or path
	ScreenshotAfter  string // base64 or path
	SubCommands      []CommandHTMLData
}

// Expandable reports whether the command has anything beyond its summary line.
func (c CommandHTMLData) Expandable() bool {
	return c.YAML != "" || c.Error != nil || c.Message != "" ||
		c.ScreenshotBefore != "" || c.ScreenshotAfter != "" || len(c.SubCommands) > 0
}

func buildHTMLData(index *Index, flows []FlowDetail, cfg HTMLConfig) HTMLData {
	var maxDuration int64
	for _, entry := range index.Flows {
		if entry.Duration != nil && *entry.Duration > maxDuration {
			maxDuration = *entry.Duration
		}
	}

	seen := map[string]bool{}
	var subjects []string
	flowsData := make([]FlowHTMLData, len(flows))
	for i, f := range flows {
		entry := index.Flows[i]

		fd := FlowHTMLData{
			FlowDetail:  f,
			Index:       i,
			Status:      entry.Status,
			DurationStr: formatDuration(entry.Duration),
			Commands:    buildCommandsHTML(f.Commands, cfg),
		}
		if entry.Duration != nil && maxDuration > 0 {
			fd.DurationPct = float64(*entry.Duration) / float64(maxDuration) * 100
		}
		if entry.Error != nil {
			fd.Error = *entry.Error
		}
		if f.Artifacts.FinalScreenshot != "" {
			fd.FinalScreenshot = assetRef(cfg, f.Artifacts.FinalScreenshot)
		}
		if f.Subject != "" && !seen[f.Subject] {
			seen[f.Subject] = true
			subjects = append(subjects, f.Subject)
		}
		flowsData[i] = fd
	}

	var passRate float64
	if index.Summary.Total > 0 {
		passRate = float64(index.Summary.Passed) / float64(index.Summary.Total) * 100
	}

	var totalDurationMs int64
	if index.EndTime != nil {
		totalDurationMs = index.EndTime.Sub(index.StartTime).Milliseconds()
	}

	return HTMLData{
		Title:         cfg.Title,
		GeneratedAt:   time.Now().Format("2006-01-02 15:04:05"),
		Index:         index,
		Flows:         flowsData,
		Subjects:      subjects,
		TotalDuration: formatDuration(&totalDurationMs),
		PassRate:      passRate,
	}
}

func buildCommandsHTML(commands []Command, cfg HTMLConfig) []CommandHTMLData {
	out := make([]CommandHTMLData, len(commands))
	for i, c := range commands {
		cmd := CommandHTMLData{
			Command:     c,
			Summary:     commandSummaryText(c),
			DurationStr: formatDuration(c.Duration),
			SubCommands: buildCommandsHTML(c.SubCommands, cfg),
		}
		if c.Artifacts.ScreenshotBefore != "" {
			cmd.ScreenshotBefore = assetRef(cfg, c.Artifacts.ScreenshotBefore)
		}
		if c.Artifacts.ScreenshotAfter != "" {
			cmd.ScreenshotAfter = assetRef(cfg, c.Artifacts.ScreenshotAfter)
		}
		out[i] = cmd
	}
	return out
}

// commandSummaryText is the one-line description next to the command type:
// the label if the flow gave one, otherwise the target and value.
func commandSummaryText(c Command) string {
	if c.Label != "" {
		return c.Label
	}
	if c.Params == nil {
		return ""
	}
	var parts []string
	if c.Params.Form != "" {
		parts = append(parts, c.Params.Form)
	}
	if sel := c.Params.Selector; sel != nil {
		if sel.Description != "" {
			parts = append(parts, sel.Description)
		} else {
			parts = append(parts, sel.CSS)
		}
	}
	switch {
	case c.Params.Option != "":
		parts = append(parts, "= "+c.Params.Option)
	case c.Params.Value != "":
		parts = append(parts, "= "+c.Params.Value)
	}
	return strings.Join(parts, " ")
}

func assetRef(cfg HTMLConfig, rel string) string {
	if cfg.EmbedAssets {
		return loadAsBase64(filepath.Join(cfg.ReportDir, rel))
	}
	return rel
}

func formatDuration(ms *int64) string {
	if ms == nil {
		return "-"
	}
	d := time.Duration(*ms) * time.Millisecond
	if d < time.Second {
		return fmt.Sprintf("%dms", *ms)
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
	ext := strings.ToLower(filepath.Ext(path))
	mimeType := "image/png"
	if ext == ".jpg" || ext == ".jpeg" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

func renderHTML(data HTMLData) (string, error) {
	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"imgsrc": func(s string) template.URL { return template.URL(s) },
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

const htmlTemplate = `{{define "command"}}
<div class="command {{.Status}}{{if .Optional}} optional{{end}}">
    <div class="command-summary"{{if .Expandable}} onclick="toggle(this)"{{end}}>
        <span class="dot {{.Status}}"></span>
        <span class="command-type">{{.Type}}</span>
        <span class="command-value">{{.Summary}}</span>
        <span class="command-duration">{{.DurationStr}}</span>
    </div>
    {{if .Expandable}}
    <div class="command-details">
        {{if .Message}}<div class="command-message">{{.Message}}</div>{{end}}
        {{if .Error}}
        <div class="command-error">
            <div class="error-type">{{.Error.Type}}{{if .Error.Code}} · {{.Error.Code}}{{end}}</div>
            <div class="error-message">{{.Error.Message}}</div>
        </div>
        {{end}}
        {{if and .YAML (not .SubCommands)}}<pre class="command-yaml">{{.YAML}}</pre>{{end}}
        {{if or .ScreenshotBefore .ScreenshotAfter}}
        <div class="screenshots">
            {{if .ScreenshotBefore}}<img class="screenshot" src="{{imgsrc .ScreenshotBefore}}" title="Before" onclick="zoom(event, this.src)">{{end}}
            {{if .ScreenshotAfter}}<img class="screenshot" src="{{imgsrc .ScreenshotAfter}}" title="After" onclick="zoom(event, this.src)">{{end}}
        </div>
        {{end}}
        {{range .SubCommands}}{{template "command" .}}{{end}}
    </div>
    {{end}}
</div>
{{end}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        :root {
            --passed: #22c55e; --failed: #ef4444; --skipped: #a3a3a3;
            --running: #3b82f6; --pending: #d4d4d4;
            --bg: #f8fafc; --panel: #ffffff; --border: #e2e8f0; --text: #0f172a; --muted: #64748b;
        }
        * { box-sizing: border-box; }
        body { margin: 0; font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; background: var(--bg); color: var(--text); font-size: 14px; }
        header { display: flex; align-items: center; justify-content: space-between; padding: 12px 24px; background: var(--panel); border-bottom: 1px solid var(--border); }
        .header-title-main { font-size: 18px; font-weight: 600; }
        .header-title-sub { color: var(--muted); margin-left: 12px; }
        .browser-badge { padding: 4px 10px; border-radius: 12px; background: #eef2ff; color: #3730a3; font-weight: 500; }
        .summary { display: flex; gap: 32px; align-items: center; padding: 16px 24px; background: var(--panel); border-bottom: 1px solid var(--border); }
        .pie { width: 72px; height: 72px; border-radius: 50%; position: relative; }
        .pie-center { position: absolute; inset: 14px; border-radius: 50%; background: var(--panel); display: flex; align-items: center; justify-content: center; font-weight: 600; }
        .legend-item { display: flex; align-items: center; gap: 6px; }
        .env { display: grid; grid-template-columns: repeat(3, auto); gap: 4px 24px; }
        .env-label { color: var(--muted); margin-right: 6px; }
        main { display: grid; grid-template-columns: 360px 1fr; height: calc(100vh - 170px); }
        .sidebar { border-right: 1px solid var(--border); overflow-y: auto; background: var(--panel); }
        .controls { padding: 12px; display: flex; flex-wrap: wrap; gap: 6px; border-bottom: 1px solid var(--border); }
        .controls input, .controls select { flex: 1 1 100%; padding: 6px 8px; border: 1px solid var(--border); border-radius: 6px; }
        .filter-btn { border: 1px solid var(--border); background: none; border-radius: 6px; padding: 4px 10px; cursor: pointer; }
        .filter-btn.active { background: var(--text); color: #fff; }
        .flow-item { padding: 10px 12px; border-bottom: 1px solid var(--border); cursor: pointer; }
        .flow-item.selected { background: #eff6ff; }
        .flow-meta { display: flex; gap: 10px; color: var(--muted); font-size: 12px; margin-top: 4px; align-items: center; }
        .subject { font-family: ui-monospace, monospace; }
        .duration-bar { flex: 1; height: 4px; background: var(--border); border-radius: 2px; }
        .duration-fill { height: 100%; background: var(--muted); border-radius: 2px; }
        .dot { display: inline-block; width: 8px; height: 8px; border-radius: 50%; background: var(--pending); flex-shrink: 0; }
        .dot.passed { background: var(--passed); } .dot.failed { background: var(--failed); }
        .dot.skipped { background: var(--skipped); } .dot.running { background: var(--running); }
        .detail { overflow-y: auto; padding: 16px 24px; }
        .flow-detail { display: none; }
        .flow-detail.shown { display: block; }
        .empty-state { color: var(--muted); text-align: center; margin-top: 80px; }
        .info { display: flex; flex-wrap: wrap; gap: 8px 24px; margin: 8px 0 16px; color: var(--muted); }
        .flow-error { background: #fef2f2; border: 1px solid #fecaca; border-radius: 6px; padding: 8px 12px; margin-bottom: 12px; white-space: pre-wrap; }
        .command { border-left: 2px solid var(--border); margin: 2px 0 2px 4px; }
        .command.failed { border-left-color: var(--failed); }
        .command-summary { display: flex; gap: 10px; align-items: center; padding: 4px 8px; cursor: default; }
        .command-summary[onclick] { cursor: pointer; }
        .command-type { font-weight: 600; min-width: 120px; }
        .command-value { flex: 1; color: var(--muted); overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
        .command-duration { color: var(--muted); font-size: 12px; }
        .command-details { display: none; padding: 4px 8px 8px 20px; }
        .command.open > .command-details { display: block; }
        .command.failed > .command-details { display: block; }
        .command-message { color: var(--muted); margin-bottom: 6px; }
        .command-error { background: #fef2f2; border-radius: 6px; padding: 6px 10px; margin-bottom: 6px; }
        .error-type { font-size: 11px; text-transform: uppercase; color: var(--failed); }
        .command-yaml { background: #f1f5f9; border-radius: 6px; padding: 6px 10px; margin: 0 0 6px; }
        .screenshot { max-height: 220px; border: 1px solid var(--border); border-radius: 4px; margin-right: 8px; cursor: zoom-in; }
        .image-modal { display: none; position: fixed; inset: 0; background: rgba(0,0,0,.8); align-items: center; justify-content: center; }
        .image-modal.shown { display: flex; }
        .image-modal img { max-width: 95vw; max-height: 95vh; }
    </style>
</head>
<body>
    <header>
        <div>
            <span class="header-title-main">{{.Title}}</span>
            <span class="header-title-sub">{{.GeneratedAt}}</span>
        </div>
        <span class="browser-badge">{{.Index.Browser.Name}} · {{.Index.Browser.Backend}}{{if .Index.Browser.Headless}} · headless{{end}}</span>
    </header>
    <section class="summary">
        <div class="pie" id="pie-chart" data-passed="{{.Index.Summary.Passed}}" data-failed="{{.Index.Summary.Failed}}" data-skipped="{{.Index.Summary.Skipped}}" data-total="{{.Index.Summary.Total}}">
            <div class="pie-center">{{printf "%.0f" .PassRate}}%</div>
        </div>
        <div>
            <div class="legend-item"><span class="dot passed"></span><span>{{.Index.Summary.Passed}} passed</span></div>
            <div class="legend-item"><span class="dot failed"></span><span>{{.Index.Summary.Failed}} failed</span></div>
            {{if .Index.Summary.Skipped}}<div class="legend-item"><span class="dot skipped"></span><span>{{.Index.Summary.Skipped}} skipped</span></div>{{end}}
        </div>
        <div class="env">
            <div><span class="env-label">Application</span>{{if .Index.App.Name}}{{.Index.App.Name}}{{else}}{{.Index.App.URL}}{{end}}</div>
            <div><span class="env-label">URL</span>{{.Index.App.URL}}</div>
            <div><span class="env-label">Driver</span>{{.Index.Runner.Driver}}</div>
            <div><span class="env-label">Runner</span>{{.Index.Runner.Version}}</div>
            <div><span class="env-label">Duration</span>{{.TotalDuration}}</div>
            <div><span class="env-label">Subjects</span>{{len .Subjects}}</div>
        </div>
    </section>
    <main>
        <aside class="sidebar">
            <div class="controls">
                <input type="text" id="search-input" placeholder="Search flows (/)">
                {{if .Subjects}}
                <select id="subject-filter">
                    <option value="">All subjects</option>
                    {{range .Subjects}}<option value="{{.}}">{{.}}</option>{{end}}
                </select>
                {{end}}
                <button class="filter-btn active" data-filter="all">All ({{.Index.Summary.Total}})</button>
                <button class="filter-btn" data-filter="failed">Failed ({{.Index.Summary.Failed}})</button>
                <button class="filter-btn" data-filter="passed">Passed ({{.Index.Summary.Passed}})</button>
            </div>
            {{range .Flows}}
            <div class="flow-item" data-flow-index="{{.Index}}" data-status="{{.Status}}" data-name="{{.Name}}" data-subject="{{.Subject}}">
                <div><span class="dot {{.Status}}"></span> <span class="flow-name">{{.Name}}</span></div>
                <div class="flow-meta">
                    {{if .Subject}}<span class="subject">{{.Subject}}</span>{{end}}
                    <span>{{len .Commands}} steps</span>
                    <div class="duration-bar"><div class="duration-fill" style="width: {{printf "%.1f" .DurationPct}}%"></div></div>
                    <span>{{.DurationStr}}</span>
                </div>
            </div>
            {{end}}
        </aside>
        <section class="detail">
            <div class="empty-state" id="empty-state">Select a flow to see its steps</div>
            {{range .Flows}}
            <div class="flow-detail" id="flow-{{.Index}}">
                <h2>{{.Name}}</h2>
                <div class="info">
                    <span>Status: {{.Status}}</span>
                    <span>Duration: {{.DurationStr}}</span>
                    {{if .Subject}}<span>Subject: <span class="subject">{{.Subject}}</span></span>{{end}}
                    <span>Source: {{.SourceFile}}</span>
                    {{if .Tags}}<span>Tags: {{range $i, $t := .Tags}}{{if $i}}, {{end}}{{$t}}{{end}}</span>{{end}}
                </div>
                {{if .Error}}<div class="flow-error">{{.Error}}</div>{{end}}
                {{range .Commands}}{{template "command" .}}{{end}}
                {{if .FinalScreenshot}}
                <h3>Final screenshot</h3>
                <img class="screenshot" src="{{imgsrc .FinalScreenshot}}" onclick="zoom(event, this.src)">
                {{end}}
            </div>
            {{end}}
        </section>
    </main>
    <div class="image-modal" id="image-modal" onclick="this.classList.remove('shown')">
        <img id="modal-image" src="" alt="Screenshot">
    </div>
    <script>
        (function () {
            const pie = document.getElementById('pie-chart');
            const total = parseInt(pie.dataset.total) || 1;
            const p = parseInt(pie.dataset.passed) / total * 100;
            const f = parseInt(pie.dataset.failed) / total * 100;
            const s = parseInt(pie.dataset.skipped) / total * 100;
            pie.style.background = 'conic-gradient(var(--passed) 0% ' + p + '%, var(--failed) ' + p + '% ' + (p + f) +
                '%, var(--skipped) ' + (p + f) + '% ' + (p + f + s) + '%, var(--pending) ' + (p + f + s) + '% 100%)';
        })();

        let statusFilter = 'all';

        function applyFilters() {
            const query = document.getElementById('search-input').value.toLowerCase();
            const subjectEl = document.getElementById('subject-filter');
            const subject = subjectEl ? subjectEl.value : '';
            document.querySelectorAll('.flow-item').forEach(item => {
                const show = (statusFilter === 'all' || item.dataset.status === statusFilter) &&
                    (!subject || item.dataset.subject === subject) &&
                    item.dataset.name.toLowerCase().includes(query);
                item.style.display = show ? '' : 'none';
            });
        }

        function selectFlow(index) {
            document.querySelectorAll('.flow-item').forEach(f => f.classList.toggle('selected', f.dataset.flowIndex === String(index)));
            document.querySelectorAll('.flow-detail').forEach(d => d.classList.toggle('shown', d.id === 'flow-' + index));
            document.getElementById('empty-state').style.display = 'none';
            window.location.hash = 'flow-' + index;
        }

        function toggle(summary) {
            summary.parentElement.classList.toggle('open');
        }

        function zoom(event, src) {
            event.stopPropagation();
            document.getElementById('modal-image').src = src;
            document.getElementById('image-modal').classList.add('shown');
        }

        document.querySelectorAll('.flow-item').forEach(item => {
            item.addEventListener('click', () => selectFlow(item.dataset.flowIndex));
        });
        document.querySelectorAll('.filter-btn').forEach(btn => {
            btn.addEventListener('click', () => {
                document.querySelectorAll('.filter-btn').forEach(b => b.classList.remove('active'));
                btn.classList.add('active');
                statusFilter = btn.dataset.filter;
                applyFilters();
            });
        });
        document.getElementById('search-input').addEventListener('input', applyFilters);
        const subjectFilter = document.getElementById('subject-filter');
        if (subjectFilter) subjectFilter.addEventListener('change', applyFilters);

        document.addEventListener('keydown', e => {
            if (e.target.tagName === 'INPUT') {
                if (e.key === 'Escape') e.target.blur();
                return;
            }
            const visible = Array.from(document.querySelectorAll('.flow-item')).filter(f => f.style.display !== 'none');
            const current = visible.findIndex(f => f.classList.contains('selected'));
            if (e.key === '/') {
                e.preventDefault();
                document.getElementById('search-input').focus();
            } else if (e.key === 'j' && current < visible.length - 1) {
                selectFlow(visible[current + 1].dataset.flowIndex);
            } else if (e.key === 'k' && current > 0) {
                selectFlow(visible[current - 1].dataset.flowIndex);
            } else if (e.key === 'n') {
                const failed = visible.filter(f => f.dataset.status === 'failed');
                if (failed.length > 0) {
                    const i = failed.findIndex(f => f.classList.contains('selected'));
                    selectFlow(failed[(i + 1) % failed.length].dataset.flowIndex);
                }
            } else if (e.key === 'Escape') {
                document.getElementById('image-modal').classList.remove('shown');
            }
        });

        const hash = window.location.hash.match(/^#flow-(\d+)$/);
        if (hash) {
            selectFlow(hash[1]);
        } else {
            const firstFailed = document.querySelector('.flow-item[data-status="failed"]');
            if (firstFailed) selectFlow(firstFailed.dataset.flowIndex);
        }
    </script>
</body>
</html>
`
