package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// FlowWriter writes updates for a single flow run.
// Each flow runs on one goroutine with its own FlowWriter, so no locking.
type FlowWriter struct {
	flow      *FlowDetail
	path      string
	assetsDir string
	index     *IndexWriter
}

// NewFlowWriter creates a new FlowWriter for a flow.
func NewFlowWriter(flowDetail *FlowDetail, outputDir string, index *IndexWriter) *FlowWriter {
	assetsDir := filepath.Join(outputDir, "assets", flowDetail.ID)
	_ = ensureDir(assetsDir)

	return &FlowWriter{
		flow:      flowDetail,
		path:      filepath.Join(outputDir, "flows", flowDetail.ID+".json"),
		assetsDir: assetsDir,
		index:     index,
	}
}

// SetSession records the browser session that runs the flow.
func (w *FlowWriter) SetSession(sessionID string) {
	w.flow.SessionID = sessionID
}

// Start marks the flow as started.
func (w *FlowWriter) Start() {
	now := time.Now()
	w.flow.StartTime = now

	w.flush()
	w.updateIndex(StatusRunning, &now, nil, nil, nil)
}

// CommandStart marks a command as started.
func (w *FlowWriter) CommandStart(cmdIndex int) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = StatusRunning
	cmd.StartTime = &now

	w.flush()
	w.updateIndexProgress()
}

// CommandOutcome is what a finished command contributes to the report.
type CommandOutcome struct {
	Status      Status
	Message     string
	Element     *Element
	Data        interface{}
	Error       *Error
	Artifacts   CommandArtifacts
	SubCommands []Command
}

// CommandEnd marks a command as complete.
func (w *FlowWriter) CommandEnd(cmdIndex int, out CommandOutcome) {
	if cmdIndex < 0 || cmdIndex >= len(w.flow.Commands) {
		return
	}

	now := time.Now()
	cmd := &w.flow.Commands[cmdIndex]
	cmd.Status = out.Status
	cmd.EndTime = &now
	if cmd.StartTime != nil {
		duration := now.Sub(*cmd.StartTime).Milliseconds()
		cmd.Duration = &duration
	}
	cmd.Message = out.Message
	cmd.Element = out.Element
	cmd.Data = out.Data
	cmd.Error = out.Error
	cmd.Artifacts = out.Artifacts
	cmd.SubCommands = out.SubCommands

	w.flush()
	w.updateIndexProgress()
}

// End marks the flow as complete. errMsg is recorded on the index entry
// when the flow failed.
func (w *FlowWriter) End(status Status, errMsg string) {
	now := time.Now()
	w.flow.EndTime = &now

	var duration int64
	if !w.flow.StartTime.IsZero() {
		duration = now.Sub(w.flow.StartTime).Milliseconds()
		w.flow.Duration = &duration
	}

	w.flush()

	var errPtr *string
	if status == StatusFailed {
		if errMsg == "" {
			errMsg = w.firstError()
		}
		if errMsg != "" {
			errPtr = &errMsg
		}
	}
	w.updateIndex(status, nil, &now, &duration, errPtr)
}

func (w *FlowWriter) firstError() string {
	for _, cmd := range w.flow.Commands {
		if cmd.Error != nil {
			return cmd.Error.Message
		}
	}
	return ""
}

// SetFlowArtifacts sets flow-level artifacts.
func (w *FlowWriter) SetFlowArtifacts(artifacts FlowArtifacts) {
	w.flow.Artifacts = artifacts
	w.flush()
}

// SaveScreenshot saves a PNG and returns its path relative to the report.
func (w *FlowWriter) SaveScreenshot(cmdIndex int, timing string, data []byte) (string, error) {
	return w.saveAsset(fmt.Sprintf("cmd-%03d-%s.png", cmdIndex, timing), data)
}

// SavePageSource saves the serialized DOM and returns its relative path.
func (w *FlowWriter) SavePageSource(cmdIndex int, data []byte) (string, error) {
	return w.saveAsset(fmt.Sprintf("cmd-%03d-source.html", cmdIndex), data)
}

// SaveFinal saves flow-level artifacts under fixed names.
func (w *FlowWriter) SaveFinal(name string, data []byte) (string, error) {
	return w.saveAsset(name, data)
}

func (w *FlowWriter) saveAsset(filename string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(w.assetsDir, filename), data, 0o644); err != nil {
		return "", err
	}
	return filepath.Join("assets", w.flow.ID, filename), nil
}

// GetFlowDetail returns the current flow detail.
func (w *FlowWriter) GetFlowDetail() *FlowDetail {
	return w.flow
}

func (w *FlowWriter) flush() {
	_ = atomicWriteJSON(w.path, w.flow)
}

func (w *FlowWriter) updateIndex(status Status, startTime, endTime *time.Time, duration *int64, errMsg *string) {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:    status,
		StartTime: startTime,
		EndTime:   endTime,
		Duration:  duration,
		Commands:  w.commandSummary(),
		Error:     errMsg,
	})
}

func (w *FlowWriter) updateIndexProgress() {
	w.index.UpdateFlow(w.flow.ID, &FlowUpdate{
		Status:   StatusRunning,
		Commands: w.commandSummary(),
	})
}

func (w *FlowWriter) commandSummary() CommandSummary {
	var s CommandSummary
	s.Total = len(w.flow.Commands)

	for i, cmd := range w.flow.Commands {
		switch cmd.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
			idx := i
			s.Current = &idx
		case StatusPending:
			s.Pending++
		}
	}

	return s
}

// SkipRemainingCommands marks all pending commands from fromIndex on as
// skipped. Called when a required command fails.
func (w *FlowWriter) SkipRemainingCommands(fromIndex int) {
	for i := fromIndex; i < len(w.flow.Commands); i++ {
		if w.flow.Commands[i].Status == StatusPending {
			w.flow.Commands[i].Status = StatusSkipped
		}
	}
	w.flush()
}
