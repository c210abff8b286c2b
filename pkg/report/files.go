package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func ensureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// atomicWriteJSON writes v next to path and renames it into place, so a
// polling reader never sees a half-written file.
func atomicWriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// ReadIndex loads report.json from a report directory.
func ReadIndex(reportDir string) (*Index, error) {
	var index Index
	if err := readJSON(filepath.Join(reportDir, "report.json"), &index); err != nil {
		return nil, err
	}
	return &index, nil
}

// ReadFlowDetail loads the detail file an index entry points at.
func ReadFlowDetail(reportDir string, entry FlowEntry) (*FlowDetail, error) {
	var detail FlowDetail
	if err := readJSON(filepath.Join(reportDir, entry.DataFile), &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadReport loads the index and every flow detail it references, in index
// order.
func ReadReport(reportDir string) (*Index, []FlowDetail, error) {
	index, err := ReadIndex(reportDir)
	if err != nil {
		return nil, nil, err
	}
	flows := make([]FlowDetail, len(index.Flows))
	for i, entry := range index.Flows {
		detail, err := ReadFlowDetail(reportDir, entry)
		if err != nil {
			return nil, nil, fmt.Errorf("flow %s: %w", entry.ID, err)
		}
		flows[i] = *detail
	}
	return index, flows, nil
}
