package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pookie-qa/pookie-runner/pkg/config"
	"github.com/pookie-qa/pookie-runner/pkg/executor"
	"github.com/pookie-qa/pookie-runner/pkg/flow"
	"github.com/pookie-qa/pookie-runner/pkg/logger"
	"github.com/pookie-qa/pookie-runner/pkg/report"
	"github.com/pookie-qa/pookie-runner/pkg/validator"
)

var testCommand = &cli.Command{
	Name:      "test",
	Usage:     "Run flows against the web app",
	ArgsUsage: "<flow-file-or-folder>...",
	Description: `Run one or more flow files. Every subject (PC1 id) gets its own
browser session; flows marked perSubject run once per subject.

Reports are generated in the output directory:
  - Default: ./reports/<timestamp>/
  - With --output: <output>/<timestamp>/
  - With --output and --flatten: <output>/ (no timestamp subfolder)

Examples:
  pookie-runner test flows/
  pookie-runner test flows/hits.yaml flows/phq9.yaml
  pookie-runner test flows/ --include-tags forms --parallel 2
  pookie-runner test flows/ -e TEST_WORKER_NAME="Worker, Test"
  pookie-runner test flows/ --format html,allure`,
	Flags: []cli.Flag{
		// Variables
		&cli.StringSliceFlag{
			Name:    "env",
			Aliases: []string{"e"},
			Usage:   "Flow variables (KEY=VALUE)",
		},

		// Tag filtering
		&cli.StringSliceFlag{
			Name:  "include-tags",
			Usage: "Only include flows with these tags",
		},
		&cli.StringSliceFlag{
			Name:  "exclude-tags",
			Usage: "Exclude flows with these tags",
		},

		// Subjects
		&cli.StringFlag{
			Name:  "subjects",
			Usage: "Comma-separated PC1 ids; overrides the TestPc1Ids setting",
		},
		&cli.IntFlag{
			Name:  "parallel",
			Usage: "Maximum browser sessions at once (0 = one per subject)",
		},

		// Output directory
		&cli.StringFlag{
			Name:  "output",
			Usage: "Output directory for reports (default: ./reports)",
		},
		&cli.BoolFlag{
			Name:  "flatten",
			Usage: "Don't create timestamp subfolder (requires --output)",
		},
		&cli.StringSliceFlag{
			Name:  "format",
			Usage: "Reports to build from report.json after the run (html, allure, none)",
			Value: cli.NewStringSlice("html"),
		},
		&cli.StringFlag{
			Name:  "artifacts",
			Usage: "When to save screenshots and page sources (on-failure, always, never)",
			Value: "on-failure",
		},

		// Execution
		&cli.BoolFlag{
			Name:  "stop-on-fail",
			Usage: "Skip remaining flows after the first failure",
		},
		&cli.BoolFlag{
			Name:  "install",
			Usage: "Download the Playwright driver and Chromium before running",
		},
	},
	Action: runTest,
}

// RunConfig holds the complete test run configuration.
type RunConfig struct {
	// Paths
	FlowPaths []string

	// App settings (URL, credentials, test data)
	App *config.AppConfig

	// Flow variables from -e; they win over settings and workspace env
	Env map[string]string

	// Filtering
	IncludeTags []string
	ExcludeTags []string

	// Output
	OutputDir string // Final resolved output directory
	Artifacts executor.ArtifactMode
	Formats   []string // html, allure; report.json is always written

	// Execution
	Subjects   []string
	Parallel   int
	StopOnFail bool
	Verbose    bool

	// Browser
	Browser      string // selenium, playwright, mock
	Headless     bool
	WebDriverURL string
	Install      bool
}

func runTest(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("at least one flow file or folder is required")
	}

	app, err := loadAppConfig(c)
	if err != nil {
		return err
	}

	outputDir, err := resolveOutputDir(c.String("output"), c.Bool("flatten"))
	if err != nil {
		return err
	}

	artifacts, err := parseArtifactMode(c.String("artifacts"))
	if err != nil {
		return err
	}

	formats, err := parseFormats(c.StringSlice("format"))
	if err != nil {
		return err
	}

	subjects := app.TestPc1Ids
	if c.IsSet("subjects") {
		subjects = parseSubjects(c.String("subjects"))
	}

	cfg := &RunConfig{
		FlowPaths:    c.Args().Slice(),
		App:          app,
		Env:          parseEnvVars(c.StringSlice("env")),
		IncludeTags:  c.StringSlice("include-tags"),
		ExcludeTags:  c.StringSlice("exclude-tags"),
		OutputDir:    outputDir,
		Artifacts:    artifacts,
		Formats:      formats,
		Subjects:     subjects,
		Parallel:     c.Int("parallel"),
		StopOnFail:   c.Bool("stop-on-fail"),
		Verbose:      c.Bool("verbose"),
		Browser:      app.Browser,
		Headless:     app.Headless,
		WebDriverURL: app.WebDriverURL,
		Install:      c.Bool("install"),
	}

	if cfg.Browser != browserMock {
		if err := app.Validate(); err != nil {
			return err
		}
	}

	return executeTest(c.Context, cfg)
}

// loadAppConfig reads app settings and applies the global flag overrides.
func loadAppConfig(c *cli.Context) (*config.AppConfig, error) {
	app, err := config.Load(config.LoadOptions{
		File:   c.String("config"),
		DotEnv: c.StringSlice("env-file"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if c.IsSet("browser") {
		app.Browser = strings.ToLower(c.String("browser"))
	}
	if c.IsSet("headless") {
		app.Headless = c.Bool("headless")
	}
	if c.IsSet("webdriver-url") {
		app.WebDriverURL = c.String("webdriver-url")
	}
	return app, nil
}

// resolveOutputDir determines the output directory based on flags.
// - No --output: ./reports/<timestamp>/
// - --output given: <output>/<timestamp>/
// - --output + --flatten: <output>/ (error if --output not given)
func resolveOutputDir(output string, flatten bool) (string, error) {
	if flatten && output == "" {
		return "", fmt.Errorf("--flatten requires --output to be specified")
	}

	baseDir := output
	if baseDir == "" {
		baseDir = "./reports"
	}

	if flatten {
		return filepath.Clean(baseDir), nil
	}

	// Create timestamp-based subfolder
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(baseDir, timestamp), nil
}

func parseArtifactMode(s string) (executor.ArtifactMode, error) {
	switch strings.ToLower(s) {
	case "", "on-failure":
		return executor.ArtifactOnFailure, nil
	case "always":
		return executor.ArtifactAlways, nil
	case "never":
		return executor.ArtifactNever, nil
	default:
		return 0, fmt.Errorf("invalid --artifacts %q (on-failure, always, never)", s)
	}
}

// Report formats accepted by --format.
const (
	formatHTML   = "html"
	formatAllure = "allure"
	formatNone   = "none"
)

// parseFormats splits comma-separated and repeated --format values. "none"
// on its own turns the extra reports off.
func parseFormats(values []string) ([]string, error) {
	var formats []string
	seen := map[string]bool{}
	for _, v := range values {
		for _, f := range strings.Split(v, ",") {
			f = strings.ToLower(strings.TrimSpace(f))
			switch f {
			case "":
				continue
			case formatHTML, formatAllure, formatNone:
			default:
				return nil, fmt.Errorf("invalid --format %q (html, allure, none)", f)
			}
			if !seen[f] {
				seen[f] = true
				formats = append(formats, f)
			}
		}
	}
	if seen[formatNone] {
		if len(formats) > 1 {
			return nil, fmt.Errorf("--format none cannot be combined with other formats")
		}
		return nil, nil
	}
	return formats, nil
}

// generatedReport is one extra report written after the run.
type generatedReport struct {
	Label string
	Path  string
}

// generateReports builds each requested format from the report directory.
// A format that fails is logged and reported; it does not fail the run.
func generateReports(outputDir string, formats []string) []generatedReport {
	var out []generatedReport
	for _, f := range formats {
		var (
			path  string
			err   error
			label string
		)
		switch f {
		case formatHTML:
			label = "HTML"
			path, err = report.GenerateHTML(outputDir, report.HTMLConfig{Title: "Pookie Test Report"})
		case formatAllure:
			label = "Allure"
			path, err = report.GenerateAllure(outputDir)
		default:
			continue
		}
		if err != nil {
			logger.L().Warn("report generation failed", zap.String("format", f), zap.Error(err))
			fmt.Printf("  %s⚠%s Warning: failed to generate %s report: %v\n", color(colorYellow), color(colorReset), label, err)
			continue
		}
		out = append(out, generatedReport{Label: label, Path: path})
	}
	return out
}

func parseSubjects(s string) []string {
	return config.NormalizeList(strings.Split(s, ","))
}

func executeTest(ctx context.Context, cfg *RunConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// 1. Create output directory
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	// 2. Initialize logging
	logPath := filepath.Join(cfg.OutputDir, "pookie-runner.log")
	if err := logger.InitWithOptions(logPath, logger.Options{Debug: cfg.Verbose}); err != nil {
		fmt.Printf("Warning: Failed to initialize logger: %v\n", err)
	}
	defer logger.Close()

	log := logger.L()
	log.Info("test execution started",
		zap.String("output", cfg.OutputDir),
		zap.String("browser", cfg.Browser),
		zap.String("app", cfg.App.AppUrl),
		zap.Strings("subjects", cfg.Subjects))

	// Ctrl+C cancels the run; flows not yet started are marked skipped
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Validate and parse flows
	flows, err := validateAndParseFlows(cfg)
	if err != nil {
		log.Error("flow validation failed", zap.Error(err))
		return err
	}
	log.Info("validated flows", zap.Int("count", len(flows)))

	// 4. Browser sessions
	factory, err := newSessionFactory(cfg)
	if err != nil {
		return err
	}
	printSetupSuccess(fmt.Sprintf("Browser: %s%s", cfg.Browser, headlessLabel(cfg.Headless)))
	if len(cfg.Subjects) > 0 {
		printSetupSuccess(fmt.Sprintf("Subjects: %s", strings.Join(cfg.Subjects, ", ")))
	}

	// 5. Execute flows
	runner := executor.NewSubjectRunner(cfg.Subjects, factory, buildRunnerConfig(cfg))
	result, err := runner.Run(ctx, flows)
	if err != nil {
		log.Error("flow execution failed", zap.Error(err))
		return err
	}
	log.Info("flow execution completed",
		zap.Int("passed", result.PassedFlows),
		zap.Int("failed", result.FailedFlows),
		zap.Int("skipped", result.SkippedFlows))

	// 6. Print unified output
	if err := printUnifiedOutput(cfg.OutputDir, result); err != nil {
		fmt.Printf("Warning: Failed to print unified output: %v\n", err)
		printSummary(result)
	}

	// 7. Extra report formats
	generated := generateReports(cfg.OutputDir, cfg.Formats)

	fmt.Println("  Reports:")
	for _, r := range generated {
		fmt.Printf("    %-7s %s\n", r.Label+":", r.Path)
	}
	fmt.Printf("    JSON:   %s\n", filepath.Join(cfg.OutputDir, "report.json"))
	fmt.Printf("    Log:    %s\n", logPath)
	fmt.Println()

	if result.Status != report.StatusPassed {
		return cli.Exit("", 1)
	}
	return nil
}

// buildRunnerConfig maps the run configuration onto the executor's.
func buildRunnerConfig(cfg *RunConfig) executor.RunnerConfig {
	return executor.RunnerConfig{
		OutputDir:   cfg.OutputDir,
		Parallelism: cfg.Parallel,
		StopOnFail:  cfg.StopOnFail,
		Artifacts:   cfg.Artifacts,
		Variables:   mergeVariables(cfg),
		Browser: report.Browser{
			Name:     "chrome",
			Backend:  cfg.Browser,
			Headless: cfg.Headless,
		},
		App: report.App{
			URL: cfg.App.AppUrl,
		},
		CI:            detectCI(),
		RunnerVersion: Version,
		DriverName:    cfg.Browser,
		Logger:        logger.L(),

		OnFlowStart:       onFlowStart,
		OnStepComplete:    onStepComplete,
		OnNestedFlowStart: onNestedFlowStart,
		OnNestedStep:      onNestedStep,
		OnFlowEnd:         onFlowEnd,
	}
}

// mergeVariables layers flow variables: app settings, then workspace env of
// every flow directory, then -e values.
func mergeVariables(cfg *RunConfig) map[string]string {
	vars := cfg.App.Variables()
	for _, path := range cfg.FlowPaths {
		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			continue
		}
		ws, err := config.LoadWorkspaceFromDir(path)
		if err != nil {
			continue
		}
		for k, v := range ws.Env {
			vars[k] = v
		}
	}
	for k, v := range cfg.Env {
		vars[k] = v
	}
	return vars
}

// validateAndParseFlows validates and parses all flow files.
func validateAndParseFlows(cfg *RunConfig) ([]flow.Flow, error) {
	v := validator.New(cfg.IncludeTags, cfg.ExcludeTags)
	var parsed []*flow.Flow
	var allErrors []error

	for _, path := range cfg.FlowPaths {
		result := v.Validate(path)
		parsed = append(parsed, result.Flows...)
		allErrors = append(allErrors, result.Errors...)
	}

	if len(allErrors) > 0 {
		fmt.Fprintf(os.Stderr, "Validation errors:\n")
		for _, err := range allErrors {
			fmt.Fprintf(os.Stderr, "  - %v\n", err)
		}
		return nil, fmt.Errorf("validation failed with %d error(s)", len(allErrors))
	}

	if len(parsed) == 0 {
		return nil, fmt.Errorf("no test flows found")
	}

	fmt.Printf("\n%sSetup%s\n", color(colorBold), color(colorReset))
	fmt.Println(strings.Repeat("─", 40))
	printSetupSuccess(fmt.Sprintf("Found %d test flow(s)", len(parsed)))

	flows := make([]flow.Flow, len(parsed))
	for i, f := range parsed {
		flows[i] = *f
	}
	return flows, nil
}

// detectCI reads build information from well-known CI variables.
func detectCI() *report.CI {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		ci := &report.CI{
			Provider: "github-actions",
			BuildID:  os.Getenv("GITHUB_RUN_ID"),
			Branch:   os.Getenv("GITHUB_REF_NAME"),
			Commit:   os.Getenv("GITHUB_SHA"),
		}
		if server, repo := os.Getenv("GITHUB_SERVER_URL"), os.Getenv("GITHUB_REPOSITORY"); server != "" && repo != "" && ci.BuildID != "" {
			ci.BuildURL = fmt.Sprintf("%s/%s/actions/runs/%s", server, repo, ci.BuildID)
		}
		return ci
	case os.Getenv("TF_BUILD") == "True":
		return &report.CI{
			Provider: "azure-pipelines",
			BuildID:  os.Getenv("BUILD_BUILDID"),
			Branch:   os.Getenv("BUILD_SOURCEBRANCHNAME"),
			Commit:   os.Getenv("BUILD_SOURCEVERSION"),
		}
	case os.Getenv("GITLAB_CI") == "true":
		return &report.CI{
			Provider: "gitlab",
			BuildID:  os.Getenv("CI_PIPELINE_ID"),
			BuildURL: os.Getenv("CI_PIPELINE_URL"),
			Branch:   os.Getenv("CI_COMMIT_REF_NAME"),
			Commit:   os.Getenv("CI_COMMIT_SHA"),
		}
	}
	return nil
}

func headlessLabel(headless bool) string {
	if headless {
		return " (headless)"
	}
	return ""
}

// printSetupSuccess prints a success message for setup
func printSetupSuccess(msg string) {
	fmt.Printf("  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

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

// Slow step threshold in milliseconds (5 seconds)
const slowThresholdMs = 5000

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

// progressOut receives the live progress lines.
var progressOut io.Writer = os.Stdout

// subjectTag prefixes progress lines with the PC1 id, so lines of subjects
// running at once can be told apart.
func subjectTag(subject string) string {
	if subject == "" {
		return ""
	}
	return fmt.Sprintf("%s[%s]%s ", color(colorGray), subject, color(colorReset))
}

// Live progress callbacks. With several subjects running at once their
// lines interleave; every line carries the subject, and the summary printed
// afterwards is grouped per flow.
func onFlowStart(subject string, flowIdx, totalFlows int, name, file string) {
	fmt.Fprintf(progressOut, "\n  %s[%d/%d]%s %s%s%s%s (%s)\n",
		color(colorCyan), flowIdx+1, totalFlows, color(colorReset),
		subjectTag(subject), color(colorBold), name, color(colorReset), file)
	fmt.Fprintln(progressOut, strings.Repeat("─", 60))
}

func onStepComplete(subject string, idx int, desc string, passed bool, durationMs int64, errMsg string) {
	isSlow := durationMs >= slowThresholdMs && !isCompoundCommand(desc)
	durStr := formatDuration(durationMs)
	tag := subjectTag(subject)

	if passed {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if isSlow {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Fprintf(progressOut, "    %s%s%s%s %s %s(%s)%s\n",
			tag, symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	} else {
		fmt.Fprintf(progressOut, "    %s%s✗%s %s (%s)\n", tag, color(colorRed), color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(progressOut, "      %s%s╰─%s %s\n", tag, color(colorGray), color(colorReset), errMsg)
		}
	}
}

func onNestedFlowStart(subject string, depth int, desc string) {
	indent := strings.Repeat("  ", 2+depth)
	fmt.Fprintf(progressOut, "%s%s%s▸%s %s\n", indent, subjectTag(subject), color(colorCyan), color(colorReset), desc)
}

func onNestedStep(subject string, depth int, desc string, passed bool, durationMs int64, errMsg string) {
	indent := strings.Repeat("  ", 2+depth+1)
	durStr := formatDuration(durationMs)
	tag := subjectTag(subject)

	if passed {
		symbol := "✓"
		symbolColor := color(colorGreen)
		durColor := ""
		if durationMs >= slowThresholdMs {
			durColor = color(colorYellow)
			symbol = "⚠"
			symbolColor = color(colorYellow)
		}
		fmt.Fprintf(progressOut, "%s%s%s%s%s %s %s(%s)%s\n",
			indent, tag, symbolColor, symbol, color(colorReset), desc, durColor, durStr, color(colorReset))
	} else {
		fmt.Fprintf(progressOut, "%s%s%s✗%s %s (%s)\n", indent, tag, color(colorRed), color(colorReset), desc, durStr)
		if errMsg != "" {
			fmt.Fprintf(progressOut, "%s  %s%s╰─%s %s\n", indent, tag, color(colorGray), color(colorReset), errMsg)
		}
	}
}

func onFlowEnd(subject, name string, passed bool, durationMs int64) {
	symbol, symbolColor := "✓", color(colorGreen)
	if !passed {
		symbol, symbolColor = "✗", color(colorRed)
	}
	fmt.Fprintf(progressOut, "%s%s %s%s%s %s%s%s\n",
		symbolColor, symbol, color(colorReset), subjectTag(subject), name,
		color(colorGray), formatDuration(durationMs), color(colorReset))
}

// formatDuration formats milliseconds to a human-readable string.
// Shows milliseconds for values < 1s, seconds otherwise.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	if ms < 60000 {
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	}
	mins := ms / 60000
	secs := (ms % 60000) / 1000
	return fmt.Sprintf("%dm %ds", mins, secs)
}

func parseEnvVars(envs []string) map[string]string {
	result := make(map[string]string)
	for _, e := range envs {
		parts := strings.SplitN(e, "=", 2)
		if len(parts) == 2 {
			result[parts[0]] = parts[1]
		}
	}
	return result
}
