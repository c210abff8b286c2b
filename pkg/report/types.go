// Package report provides JSON-based test reporting with real-time updates.
//
// Layout:
//   - report.json: the index (small, frequently updated, mutex-protected)
//   - flows/flow-XXX.json: per-run flow details, one writer each
//   - assets/flow-XXX/: screenshots and page sources captured on failure
//
// The index is the single source of truth for status. Consumers poll
// report.json and fetch a flow's detail only when its updateSeq changed.
package report

import "time"

// Version is the report schema version.
const Version = "1.0.0"

// Status represents the execution status.
type Status string

// Status values.
const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// IsTerminal returns true if the status is a final state.
func (s Status) IsTerminal() bool {
	return s == StatusPassed || s == StatusFailed || s == StatusSkipped
}

// ============================================================================
// INDEX (report.json)
// ============================================================================

// Index is the main report file that binds everything together.
type Index struct {
	Version     string      `json:"version"`
	RunID       string      `json:"runId"`
	UpdateSeq   uint64      `json:"updateSeq"`
	Status      Status      `json:"status"`
	StartTime   time.Time   `json:"startTime"`
	EndTime     *time.Time  `json:"endTime,omitempty"`
	LastUpdated time.Time   `json:"lastUpdated"`
	Browser     Browser     `json:"browser"`
	App         App         `json:"app"`
	CI          *CI         `json:"ci,omitempty"`
	Runner      RunnerInfo  `json:"runner"`
	Summary     Summary     `json:"summary"`
	Flows       []FlowEntry `json:"flows"`
}

// Browser describes the browser sessions of the run.
type Browser struct {
	Name     string `json:"name"`    // chrome, chromium
	Backend  string `json:"backend"` // selenium, playwright
	Headless bool   `json:"headless"`
}

// App identifies the application under test.
type App struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
}

// CI contains CI/CD build information.
type CI struct {
	Provider string `json:"provider,omitempty"`
	BuildID  string `json:"buildId,omitempty"`
	BuildURL string `json:"buildUrl,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Commit   string `json:"commit,omitempty"`
}

// RunnerInfo identifies the runner build.
type RunnerInfo struct {
	Version string `json:"version"`
	Driver  string `json:"driver"`
}

// Summary contains aggregated counts.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Running int `json:"running"`
	Pending int `json:"pending"`
}

// FlowEntry is the index entry for one flow run.
type FlowEntry struct {
	Index       int            `json:"index"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Subject     string         `json:"subject,omitempty"` // PC1 id
	SourceFile  string         `json:"sourceFile"`
	DataFile    string         `json:"dataFile"`
	AssetsDir   string         `json:"assetsDir"`
	Status      Status         `json:"status"`
	UpdateSeq   uint64         `json:"updateSeq"`
	StartTime   *time.Time     `json:"startTime,omitempty"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Duration    *int64         `json:"duration,omitempty"` // milliseconds
	LastUpdated *time.Time     `json:"lastUpdated,omitempty"`
	Commands    CommandSummary `json:"commands"`
	Error       *string        `json:"error,omitempty"`
}

// CommandSummary contains command counts for a flow.
type CommandSummary struct {
	Total   int  `json:"total"`
	Passed  int  `json:"passed"`
	Failed  int  `json:"failed"`
	Skipped int  `json:"skipped"`
	Running int  `json:"running"`
	Pending int  `json:"pending"`
	Current *int `json:"current,omitempty"` // Currently running command index
}

// ============================================================================
// FLOW DETAIL (flows/flow-XXX.json)
// ============================================================================

// FlowDetail contains full flow execution details.
type FlowDetail struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Subject    string        `json:"subject,omitempty"`
	SessionID  string        `json:"sessionId,omitempty"`
	SourceFile string        `json:"sourceFile"`
	Tags       []string      `json:"tags,omitempty"`
	StartTime  time.Time     `json:"startTime"`
	EndTime    *time.Time    `json:"endTime,omitempty"`
	Duration   *int64        `json:"duration,omitempty"` // milliseconds
	Commands   []Command     `json:"commands"`
	Artifacts  FlowArtifacts `json:"artifacts"`
}

// Command represents a single command execution.
type Command struct {
	ID          string           `json:"id"`
	Index       int              `json:"index"`
	Type        string           `json:"type"`
	Label       string           `json:"label,omitempty"`
	YAML        string           `json:"yaml,omitempty"`
	Status      Status           `json:"status"`
	Optional    bool             `json:"optional,omitempty"`
	StartTime   *time.Time       `json:"startTime,omitempty"`
	EndTime     *time.Time       `json:"endTime,omitempty"`
	Duration    *int64           `json:"duration,omitempty"` // milliseconds
	Params      *CommandParams   `json:"params,omitempty"`
	Message     string           `json:"message,omitempty"`
	Element     *Element         `json:"element,omitempty"`
	Data        interface{}      `json:"data,omitempty"`
	Error       *Error           `json:"error,omitempty"`
	Artifacts   CommandArtifacts `json:"artifacts"`
	SubCommands []Command        `json:"subCommands,omitempty"`
}

// CommandParams contains command-specific parameters.
type CommandParams struct {
	Selector *Selector `json:"selector,omitempty"`
	Value    string    `json:"value,omitempty"`
	Option   string    `json:"option,omitempty"`
	Form     string    `json:"form,omitempty"`
	Timeout  int       `json:"timeout,omitempty"`
}

// Selector represents an element selector.
type Selector struct {
	CSS         string `json:"css"`
	Description string `json:"description,omitempty"`
	PageOnly    bool   `json:"pageOnly,omitempty"`
}

// Element contains information about the element a command acted on.
type Element struct {
	Found   bool   `json:"found"`
	Tag     string `json:"tag,omitempty"`
	ID      string `json:"id,omitempty"`
	Name    string `json:"name,omitempty"`
	Text    string `json:"text,omitempty"`
	Value   string `json:"value,omitempty"`
	Class   string `json:"class,omitempty"`
	InModal bool   `json:"inModal,omitempty"`
}

// Error contains error details.
type Error struct {
	Type    string                 `json:"type"` // assertion, timeout, stale, connection, config, unknown
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// ============================================================================
// ARTIFACTS (paths only, never inline data)
// ============================================================================

// FlowArtifacts contains flow-level artifact paths.
type FlowArtifacts struct {
	FinalScreenshot string `json:"finalScreenshot,omitempty"`
	FinalPageSource string `json:"finalPageSource,omitempty"`
}

// CommandArtifacts contains command-level artifact paths.
type CommandArtifacts struct {
	ScreenshotBefore string `json:"screenshotBefore,omitempty"`
	ScreenshotAfter  string `json:"screenshotAfter,omitempty"`
	PageSource       string `json:"pageSource,omitempty"`
}

// ============================================================================
// UPDATE TYPES
// ============================================================================

// FlowUpdate contains the fields to update in index for a flow.
type FlowUpdate struct {
	Status    Status
	StartTime *time.Time
	EndTime   *time.Time
	Duration  *int64
	Commands  CommandSummary
	Error     *string
}
