package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func createTestFlowWriter(t *testing.T) (*FlowWriter, *IndexWriter, string) {
	tmpDir := t.TempDir()

	index := &Index{
		Version: Version,
		Status:  StatusRunning,
		Flows: []FlowEntry{
			{ID: "flow-000", Name: "AuditC", Subject: "EC01001408989", DataFile: "flows/flow-000.json", Status: StatusPending},
		},
	}
	indexWriter := NewIndexWriter(tmpDir, index)

	flowDetail := &FlowDetail{
		ID:   "flow-000",
		Name: "AuditC",
		Commands: []Command{
			{Index: 0, Type: "login", Status: StatusPending},
			{Index: 1, Type: "click", Status: StatusPending},
			{Index: 2, Type: "assertToast", Status: StatusPending},
		},
	}

	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "flows"), 0o755))
	return NewFlowWriter(flowDetail, tmpDir, indexWriter), indexWriter, tmpDir
}

func TestNewFlowWriter(t *testing.T) {
	fw, iw, tmpDir := createTestFlowWriter(t)
	defer iw.Close()

	assert.Equal(t, filepath.Join(tmpDir, "flows", "flow-000.json"), fw.path)
	assert.Equal(t, filepath.Join(tmpDir, "assets", "flow-000"), fw.assetsDir)
	_, err := os.Stat(fw.assetsDir)
	assert.NoError(t, err, "assets directory created")
}

func TestFlowWriter_StartWritesDetailAndIndex(t *testing.T) {
	fw, iw, tmpDir := createTestFlowWriter(t)
	defer iw.Close()

	before := time.Now()
	fw.Start()
	assert.False(t, fw.flow.StartTime.Before(before))

	var index *Index
	require.Eventually(t, func() bool {
		var err error
		index, err = ReadIndex(tmpDir)
		return err == nil && index.Flows[0].Status == StatusRunning
	}, 2*time.Second, 20*time.Millisecond)
	require.NotNil(t, index.Flows[0].StartTime)

	detail, err := ReadFlowDetail(tmpDir, index.Flows[0])
	require.NoError(t, err)
	assert.Equal(t, "AuditC", detail.Name)
}

func TestFlowWriter_CommandLifecycle(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	fw.Start()
	fw.CommandStart(1)
	cmd := fw.flow.Commands[1]
	assert.Equal(t, StatusRunning, cmd.Status)
	require.NotNil(t, cmd.StartTime)

	time.Sleep(5 * time.Millisecond)
	fw.CommandEnd(1, CommandOutcome{
		Status:    StatusPassed,
		Message:   "Clicked New Audit-C",
		Element:   &Element{Found: true, Tag: "a", ID: "lnkNewAuditC"},
		Data:      "typed",
		Artifacts: CommandArtifacts{ScreenshotAfter: "assets/flow-000/cmd-001-after.png"},
	})

	cmd = fw.flow.Commands[1]
	assert.Equal(t, StatusPassed, cmd.Status)
	require.NotNil(t, cmd.Duration)
	assert.GreaterOrEqual(t, *cmd.Duration, int64(5))
	assert.Equal(t, "lnkNewAuditC", cmd.Element.ID)
	assert.Equal(t, "Clicked New Audit-C", cmd.Message)
	assert.Equal(t, "typed", cmd.Data)
	assert.Equal(t, "assets/flow-000/cmd-001-after.png", cmd.Artifacts.ScreenshotAfter)
}

func TestFlowWriter_InvalidIndexIgnored(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	fw.CommandStart(-1)
	fw.CommandStart(100)
	fw.CommandEnd(100, CommandOutcome{Status: StatusPassed})
	for _, c := range fw.flow.Commands {
		assert.Equal(t, StatusPending, c.Status)
	}
}

func TestFlowWriter_EndWithFailureRecordsError(t *testing.T) {
	fw, iw, tmpDir := createTestFlowWriter(t)
	defer iw.Close()

	fw.Start()
	fw.CommandStart(0)
	fw.CommandEnd(0, CommandOutcome{Status: StatusFailed, Error: &Error{Type: "config", Message: "login needs a user name and password"}})
	fw.SkipRemainingCommands(1)
	fw.End(StatusFailed, "")

	require.NotNil(t, fw.flow.EndTime)
	require.NotNil(t, fw.flow.Duration)

	index, err := ReadIndex(tmpDir)
	require.NoError(t, err)
	entry := index.Flows[0]
	assert.Equal(t, StatusFailed, entry.Status)
	require.NotNil(t, entry.Error)
	assert.Equal(t, "login needs a user name and password", *entry.Error)
	assert.Equal(t, 1, entry.Commands.Failed)
	assert.Equal(t, 2, entry.Commands.Skipped)
}

func TestFlowWriter_EndExplicitError(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	fw.Start()
	fw.End(StatusFailed, "onFlowStart failed")

	require.NotNil(t, iw.GetIndex().Flows[0].Error)
	assert.Equal(t, "onFlowStart failed", *iw.GetIndex().Flows[0].Error)
}

func TestFlowWriter_SaveAssets(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	path, err := fw.SaveScreenshot(0, "after", []byte{0x89, 0x50, 0x4E, 0x47})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("assets", "flow-000", "cmd-000-after.png"), path)
	_, err = os.Stat(filepath.Join(fw.assetsDir, "cmd-000-after.png"))
	assert.NoError(t, err)

	path, err = fw.SavePageSource(2, []byte("<html></html>"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("assets", "flow-000", "cmd-002-source.html"), path)

	path, err = fw.SaveFinal("final.png", []byte("png"))
	require.NoError(t, err)
	fw.SetFlowArtifacts(FlowArtifacts{FinalScreenshot: path})
	assert.Equal(t, path, fw.GetFlowDetail().Artifacts.FinalScreenshot)
}

func TestFlowWriter_SetSession(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	fw.SetSession("6f1c")
	assert.Equal(t, "6f1c", fw.GetFlowDetail().SessionID)
}

func TestFlowWriter_commandSummary(t *testing.T) {
	fw, iw, _ := createTestFlowWriter(t)
	defer iw.Close()

	fw.flow.Commands[0].Status = StatusPassed
	fw.flow.Commands[1].Status = StatusRunning
	fw.flow.Commands[2].Status = StatusPending

	summary := fw.commandSummary()
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 1, summary.Passed)
	assert.Equal(t, 1, summary.Running)
	assert.Equal(t, 1, summary.Pending)
	require.NotNil(t, summary.Current)
	assert.Equal(t, 1, *summary.Current)
}
