package report

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pookie-qa/pookie-runner/pkg/logger"
)

// Allure result schema types.

// AllureResult represents a single test result in Allure format.
type AllureResult struct {
	UUID          string              `json:"uuid"`
	HistoryID     string              `json:"historyId"`
	FullName      string              `json:"fullName"`
	Name          string              `json:"name"`
	Status        string              `json:"status"`
	Stage         string              `json:"stage"`
	Start         int64               `json:"start"`
	Stop          int64               `json:"stop"`
	Labels        []AllureLabel       `json:"labels"`
	Parameters    []AllureParameter   `json:"parameters,omitempty"`
	StatusDetails AllureStatusDetails `json:"statusDetails"`
	Steps         []AllureStep        `json:"steps"`
	Attachments   []AllureAttachment  `json:"attachments"`
}

// AllureStep represents a step within a test result.
type AllureStep struct {
	Name          string               `json:"name"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	Start         int64                `json:"start"`
	Stop          int64                `json:"stop"`
	StatusDetails *AllureStatusDetails `json:"statusDetails,omitempty"`
	Steps         []AllureStep         `json:"steps"`
	Attachments   []AllureAttachment   `json:"attachments"`
}

// AllureAttachment represents a file attachment.
type AllureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

// AllureLabel represents a label on a test result.
type AllureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureParameter is shown next to the test name; the subject lands here so
// runs of one flow against several PC1 ids stay apart.
type AllureParameter struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// AllureStatusDetails holds failure message and trace.
type AllureStatusDetails struct {
	Message string `json:"message"`
	Trace   string `json:"trace"`
}

// AllureCategory defines a failure category with regex matching.
type AllureCategory struct {
	Name            string   `json:"name"`
	MatchedStatuses []string `json:"matchedStatuses"`
	MessageRegex    string   `json:"messageRegex"`
}

// AllureExecutor describes who produced the results.
type AllureExecutor struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	BuildName  string `json:"buildName,omitempty"`
	BuildURL   string `json:"buildUrl,omitempty"`
	ReportName string `json:"reportName"`
}

// GenerateAllure generates Allure-compatible report files in <reportDir>/allure-results/.
func GenerateAllure(reportDir string) (string, error) {
	index, flows, err := ReadReport(reportDir)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}

	allureDir := filepath.Join(reportDir, "allure-results")
	if err := os.MkdirAll(allureDir, 0o755); err != nil {
		return "", fmt.Errorf("create allure-results dir: %w", err)
	}

	for i, entry := range index.Flows {
		var detail *FlowDetail
		if i < len(flows) {
			detail = &flows[i]
		}

		result := buildAllureResult(&entry, detail, index)

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal allure result for %s: %w", entry.ID, err)
		}

		resultPath := filepath.Join(allureDir, entry.ID+"-result.json")
		if err := os.WriteFile(resultPath, data, 0o644); err != nil {
			return "", fmt.Errorf("write allure result %s: %w", entry.ID, err)
		}
	}

	copyAllureAttachments(reportDir, allureDir, flows)

	if err := writeAllureCategories(allureDir); err != nil {
		return "", err
	}
	if err := writeAllureEnvironment(allureDir, index); err != nil {
		return "", err
	}
	if err := writeAllureExecutor(allureDir, index); err != nil {
		return "", err
	}

	return allureDir, nil
}

func buildAllureResult(entry *FlowEntry, detail *FlowDetail, index *Index) AllureResult {
	startMs, stopMs := allureSpan(entry.StartTime, entry.EndTime, entry.Duration)

	labels := []AllureLabel{
		{Name: "suite", Value: entry.Name},
		{Name: "parentSuite", Value: filepath.Base(entry.SourceFile)},
		{Name: "framework", Value: "pookie-runner"},
		{Name: "severity", Value: "normal"},
	}
	if host := browserLabel(index.Browser); host != "" {
		labels = append(labels, AllureLabel{Name: "host", Value: host})
	}
	var params []AllureParameter
	if entry.Subject != "" {
		labels = append(labels, AllureLabel{Name: "thread", Value: entry.Subject})
		params = append(params, AllureParameter{Name: "subject", Value: entry.Subject})
	}

	var statusDetails AllureStatusDetails
	if entry.Error != nil {
		statusDetails.Message = *entry.Error
	}

	var steps []AllureStep
	var attachments []AllureAttachment
	if detail != nil {
		for _, tag := range detail.Tags {
			labels = append(labels, AllureLabel{Name: "tag", Value: tag})
		}
		steps = buildAllureSteps(detail.Commands)
		attachments = collectAttachments(detail)
		if statusDetails.Message != "" {
			statusDetails.Trace = failureTrace(detail.Commands)
		}
	}

	return AllureResult{
		UUID:          entry.ID,
		HistoryID:     fnv32aHash(entry.Name + ":" + entry.SourceFile + ":" + entry.Subject),
		FullName:      entry.SourceFile + "#" + entry.Name,
		Name:          entry.Name,
		Status:        mapAllureStatus(entry.Status),
		Stage:         "finished",
		Start:         startMs,
		Stop:          stopMs,
		Labels:        labels,
		Parameters:    params,
		StatusDetails: statusDetails,
		Steps:         steps,
		Attachments:   attachments,
	}
}

func browserLabel(b Browser) string {
	switch {
	case b.Name != "" && b.Backend != "":
		return b.Name + "/" + b.Backend
	case b.Name != "":
		return b.Name
	default:
		return b.Backend
	}
}

// allureSpan converts report times to epoch milliseconds. A missing end time
// is derived from the recorded duration.
func allureSpan(start, end *time.Time, duration *int64) (int64, int64) {
	var startMs, stopMs int64
	if start != nil {
		startMs = start.UnixMilli()
	}
	if end != nil {
		stopMs = end.UnixMilli()
	} else if start != nil && duration != nil {
		stopMs = startMs + *duration
	}
	return startMs, stopMs
}

func buildAllureSteps(commands []Command) []AllureStep {
	steps := make([]AllureStep, 0, len(commands))
	for _, cmd := range commands {
		steps = append(steps, buildAllureStep(cmd))
	}
	return steps
}

func buildAllureStep(cmd Command) AllureStep {
	name := cmd.Type
	if cmd.Label != "" {
		name = cmd.Type + ": " + cmd.Label
	}

	startMs, stopMs := allureSpan(cmd.StartTime, cmd.EndTime, cmd.Duration)

	subSteps := []AllureStep{}
	if len(cmd.SubCommands) > 0 {
		subSteps = buildAllureSteps(cmd.SubCommands)
	}

	step := AllureStep{
		Name:        name,
		Status:      mapAllureStatus(cmd.Status),
		Stage:       "finished",
		Start:       startMs,
		Stop:        stopMs,
		Steps:       subSteps,
		Attachments: commandAttachments(cmd, "Before", "After"),
	}
	if cmd.Error != nil {
		step.StatusDetails = &AllureStatusDetails{Message: cmd.Error.Message}
	}
	return step
}

func commandAttachments(cmd Command, before, after string) []AllureAttachment {
	var attachments []AllureAttachment
	if cmd.Artifacts.ScreenshotBefore != "" {
		attachments = append(attachments, AllureAttachment{
			Name: before, Source: filepath.Base(cmd.Artifacts.ScreenshotBefore), Type: "image/png",
		})
	}
	if cmd.Artifacts.ScreenshotAfter != "" {
		attachments = append(attachments, AllureAttachment{
			Name: after, Source: filepath.Base(cmd.Artifacts.ScreenshotAfter), Type: "image/png",
		})
	}
	if cmd.Artifacts.PageSource != "" {
		attachments = append(attachments, AllureAttachment{
			Name: "Page source", Source: filepath.Base(cmd.Artifacts.PageSource), Type: "text/html",
		})
	}
	return attachments
}

// collectAttachments flattens every command artifact plus the final
// screenshot and page source into the flow-level list.
func collectAttachments(detail *FlowDetail) []AllureAttachment {
	var attachments []AllureAttachment
	var walk func([]Command)
	walk = func(commands []Command) {
		for _, cmd := range commands {
			attachments = append(attachments, commandAttachments(cmd, "Screenshot", "Screenshot")...)
			walk(cmd.SubCommands)
		}
	}
	walk(detail.Commands)

	if p := detail.Artifacts.FinalScreenshot; p != "" {
		attachments = append(attachments, AllureAttachment{Name: "Final screenshot", Source: filepath.Base(p), Type: "image/png"})
	}
	if p := detail.Artifacts.FinalPageSource; p != "" {
		attachments = append(attachments, AllureAttachment{Name: "Final page source", Source: filepath.Base(p), Type: "text/html"})
	}
	return attachments
}

// failureTrace lists the failed commands, innermost last, so the trace shows
// which nested flow step broke.
func failureTrace(commands []Command) string {
	var b strings.Builder
	var walk func([]Command, int)
	walk = func(commands []Command, depth int) {
		for _, cmd := range commands {
			if cmd.Status != StatusFailed {
				continue
			}
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(cmd.Type)
			if cmd.Label != "" {
				b.WriteString(" (" + cmd.Label + ")")
			}
			if cmd.Error != nil {
				b.WriteString(": " + cmd.Error.Message)
			}
			b.WriteString("\n")
			walk(cmd.SubCommands, depth+1)
		}
	}
	walk(commands, 0)
	return b.String()
}

// copyAllureAttachments copies artifacts from assets subdirs into allure-results/ flat.
func copyAllureAttachments(reportDir, allureDir string, flows []FlowDetail) {
	for _, flow := range flows {
		copyCommandAttachments(reportDir, allureDir, flow.Commands)
		for _, path := range []string{flow.Artifacts.FinalScreenshot, flow.Artifacts.FinalPageSource} {
			if path != "" {
				copyFile(filepath.Join(reportDir, path), filepath.Join(allureDir, filepath.Base(path)))
			}
		}
	}
}

func copyCommandAttachments(reportDir, allureDir string, commands []Command) {
	for _, cmd := range commands {
		for _, path := range []string{cmd.Artifacts.ScreenshotBefore, cmd.Artifacts.ScreenshotAfter, cmd.Artifacts.PageSource} {
			if path == "" {
				continue
			}
			copyFile(filepath.Join(reportDir, path), filepath.Join(allureDir, filepath.Base(path)))
		}
		if len(cmd.SubCommands) > 0 {
			copyCommandAttachments(reportDir, allureDir, cmd.SubCommands)
		}
	}
}

// copyFile copies a single file from src to dst. Missing sources are skipped
// quietly; artifacts are only captured for failing commands.
func copyFile(src, dst string) {
	in, err := os.Open(src)
	if err != nil {
		return
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		logger.Warn("failed to create %s: %v", dst, err)
		return
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		logger.Warn("failed to copy %s to %s: %v", src, dst, err)
	}
}

func mapAllureStatus(s Status) string {
	switch s {
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

// allureCategories group failures by the messages the interaction layer
// produces.
var allureCategories = []AllureCategory{
	{Name: "Element Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*(not found|no such element|not in the grid|never seen).*"},
	{Name: "Option Not Found", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*(option|no candidate).*not (found|available).*"},
	{Name: "Value Not Set", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*(not interactable|could not set|value .* did not stick|readonly).*"},
	{Name: "Stale Element", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*stale.*"},
	{Name: "Timeout", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*(timeout|timed out|did not (appear|close|finish)).*"},
	{Name: "Assertion Failed", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*(expected|mismatch|unexpected|assert|no success toast).*"},
	{Name: "Session Error", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*(connection|session|webdriver|browser has been closed|login).*"},
	{Name: "Script Error", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*(script|evalScript|runScript).*"},
}

func writeAllureCategories(allureDir string) error {
	data, err := json.MarshalIndent(allureCategories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}

	path := filepath.Join(allureDir, "categories.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	return nil
}

// writeAllureEnvironment writes environment.properties with browser and
// application metadata. Empty values are left out.
func writeAllureEnvironment(allureDir string, index *Index) error {
	var b strings.Builder
	b.WriteString("framework=pookie-runner\n")

	props := []struct{ key, value string }{
		{"browser.name", index.Browser.Name},
		{"browser.backend", index.Browser.Backend},
		{"browser.headless", strconv.FormatBool(index.Browser.Headless)},
		{"runner.version", index.Runner.Version},
		{"runner.driver", index.Runner.Driver},
		{"app.url", index.App.URL},
		{"app.name", index.App.Name},
	}
	for _, p := range props {
		if p.value != "" {
			fmt.Fprintf(&b, "%s=%s\n", p.key, p.value)
		}
	}

	path := filepath.Join(allureDir, "environment.properties")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	return nil
}

// writeAllureExecutor writes executor.json, linking the CI build when the
// run recorded one.
func writeAllureExecutor(allureDir string, index *Index) error {
	executor := AllureExecutor{
		Name:       "pookie-runner",
		Type:       "pookie-runner",
		ReportName: "pookie-runner " + index.Runner.Version,
	}
	if index.CI != nil {
		if index.CI.Provider != "" {
			executor.Type = index.CI.Provider
		}
		executor.BuildName = index.CI.BuildID
		executor.BuildURL = index.CI.BuildURL
	}

	data, err := json.MarshalIndent(executor, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal executor: %w", err)
	}

	path := filepath.Join(allureDir, "executor.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}
