package report

import (
	"path/filepath"
	"sync"
	"time"
)

// DebounceInterval delays progress writes of report.json.
const DebounceInterval = 100 * time.Millisecond

// IndexWriter provides thread-safe updates to the report index.
// Every subject's goroutine updates the same index.
type IndexWriter struct {
	mu     sync.Mutex
	path   string
	index  *Index
	closed bool

	// Debouncing for progress updates
	pending map[string]*FlowUpdate
	timer   *time.Timer
}

// NewIndexWriter creates a new IndexWriter.
func NewIndexWriter(outputDir string, index *Index) *IndexWriter {
	return &IndexWriter{
		path:    filepath.Join(outputDir, "report.json"),
		index:   index,
		pending: make(map[string]*FlowUpdate),
	}
}

// Start marks the run as started.
func (w *IndexWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	w.flushLocked()
}

// UpdateFlow queues an update for a flow entry. Terminal states flush
// immediately; progress updates are debounced.
func (w *IndexWriter) UpdateFlow(flowID string, update *FlowUpdate) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if prev, ok := w.pending[flowID]; ok {
		update = mergeUpdate(prev, update)
	}
	w.pending[flowID] = update

	if update.Status.IsTerminal() || w.closed {
		w.flushLocked()
		return
	}

	if w.timer == nil {
		w.timer = time.AfterFunc(DebounceInterval, w.flush)
	}
}

// mergeUpdate keeps timestamps from an earlier queued update that the later
// one does not carry.
func mergeUpdate(prev, next *FlowUpdate) *FlowUpdate {
	merged := *next
	if merged.StartTime == nil {
		merged.StartTime = prev.StartTime
	}
	if merged.EndTime == nil {
		merged.EndTime = prev.EndTime
	}
	if merged.Duration == nil {
		merged.Duration = prev.Duration
	}
	if merged.Error == nil {
		merged.Error = prev.Error
	}
	return &merged
}

// End marks the run as complete.
func (w *IndexWriter) End() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.applyPendingLocked()
	now := time.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	w.flushLocked()
}

// Close stops the debounce timer and flushes pending updates.
// Safe to call multiple times.
func (w *IndexWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.flushLocked()
}

// GetIndex returns the current index.
func (w *IndexWriter) GetIndex() *Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.index
}

func (w *IndexWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
}

func (w *IndexWriter) applyPendingLocked() {
	for flowID, update := range w.pending {
		w.applyUpdate(flowID, update)
	}
	w.pending = make(map[string]*FlowUpdate)
}

// flushLocked applies pending updates and writes report.json.
func (w *IndexWriter) flushLocked() {
	w.applyPendingLocked()

	w.index.UpdateSeq++
	w.index.LastUpdated = time.Now()
	w.index.Summary = w.computeSummary()

	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}

	_ = atomicWriteJSON(w.path, w.index)
}

func (w *IndexWriter) applyUpdate(flowID string, update *FlowUpdate) {
	for i := range w.index.Flows {
		if w.index.Flows[i].ID != flowID {
			continue
		}
		f := &w.index.Flows[i]
		f.Status = update.Status
		if update.StartTime != nil {
			f.StartTime = update.StartTime
		}
		if update.EndTime != nil {
			f.EndTime = update.EndTime
		}
		if update.Duration != nil {
			f.Duration = update.Duration
		}
		f.Commands = update.Commands
		if update.Error != nil {
			f.Error = update.Error
		}
		f.UpdateSeq++
		now := time.Now()
		f.LastUpdated = &now
		return
	}
}

func (w *IndexWriter) computeSummary() Summary {
	var s Summary
	for _, f := range w.index.Flows {
		s.Total++
		switch f.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusRunning:
			s.Running++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus derives the run status from the flows.
func (w *IndexWriter) computeRunStatus() Status {
	hasFailure := false
	for _, f := range w.index.Flows {
		if !f.Status.IsTerminal() {
			return StatusRunning
		}
		if f.Status == StatusFailed {
			hasFailure = true
		}
	}
	if hasFailure {
		return StatusFailed
	}
	return StatusPassed
}

// MarkSkipped marks a flow that never started as skipped.
func (w *IndexWriter) MarkSkipped(flowID, reason string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Flows {
		f := &w.index.Flows[i]
		if f.ID != flowID {
			continue
		}
		f.Status = StatusSkipped
		f.Commands.Skipped, f.Commands.Pending = f.Commands.Total, 0
		if reason != "" {
			r := reason
			f.Error = &r
		}
		f.UpdateSeq++
		break
	}
	w.flushLocked()
}
