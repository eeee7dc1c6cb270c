package artifacts

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadObjectShape(t *testing.T) {
	dir := t.TempDir()
	doc := Document{
		Metadata: Metadata{GeneratedAt: "2026-07-31T10:00:00+05:30", TotalModels: 2, PipelineStage: "extract"},
		Models:   []any{map[string]any{"id": "a"}, map[string]any{"id": "b"}},
	}

	path, err := Write(dir, "b-extract", doc)
	require.NoError(t, err)
	assert.FileExists(t, path)

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, "extract", got.Metadata.PipelineStage)
	assert.Len(t, got.Models, 2)
}

func TestWriteReportCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteReport(dir, "b-extract", "stage succeeded\n2 models processed\n")
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2 models processed")
	assert.Equal(t, filepath.Join(dir, "b-extract-report.txt"), path)
}

func TestWriteReportRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteReport(dir, "c-license", "fetch failed: Authorization: Bearer sk-ant-REDACTED\n")
	require.NoError(t, err)
	body, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "sk-ant-REDACTED")
	assert.Contains(t, string(body), "[REDACTED")
}

func TestDecodeAcceptsBareArrayShape(t *testing.T) {
	doc, err := Decode([]byte(`[{"id":"a"},{"id":"b"}]`))
	require.NoError(t, err)
	assert.Len(t, doc.Models, 2)
	assert.Equal(t, 2, doc.Metadata.TotalModels)
}

func TestDecodeAcceptsObjectShape(t *testing.T) {
	doc, err := Decode([]byte(`{"metadata":{"pipeline_stage":"fuse","total_models":1},"models":[{"id":"a"}]}`))
	require.NoError(t, err)
	assert.Equal(t, "fuse", doc.Metadata.PipelineStage)
	assert.Len(t, doc.Models, 1)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestISTTimestampUsesFixedOffset(t *testing.T) {
	ts := time.Date(2026, 7, 31, 4, 30, 0, 0, time.UTC)
	formatted := ISTTimestamp(ts)
	assert.Contains(t, formatted, "+05:30")
	assert.Contains(t, formatted, "2026-07-31T10:00:00")
}
