// Package artifacts writes and reads the per-stage JSON/report files every
// pipeline stage produces: `<letter>-<purpose>.json` plus a matching
// `…-report.txt`, both landing in a per-provider output directory. S3Mirror
// can upload a written file to S3 for archival; Write and WriteReport do
// not call it themselves.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/aicatalog/cpe/internal/observability"
)

// redactor scrubs API keys, bearer tokens, and auth headers that a failed
// HTTP fetch or HF API response can echo back into a diagnostic string
// before that string lands verbatim in a report.txt artifact.
var redactor = observability.NewRedactor()

// Metadata is the stable header every JSON artifact carries.
type Metadata struct {
	GeneratedAt   string `json:"generated_at"` // ISO-8601 with offset
	TotalModels   int    `json:"total_models"`
	PipelineStage string `json:"pipeline_stage"`
}

// Document is the shape written for every stage: metadata plus the model
// list. Some legacy artifacts on disk are a bare array; Read accepts both.
type Document struct {
	Metadata Metadata `json:"metadata"`
	Models   []any    `json:"models"`
}

// Write marshals doc as indented JSON to <dir>/<name>.json.
func Write(dir, name string, doc Document) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".json")
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact %s: %w", name, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", path, err)
	}
	return path, nil
}

// WriteReport writes the accompanying human-readable "<name>-report.txt".
// It always succeeds for a stage that ran, even when the stage itself
// failed — the caller passes the failure text as part of body.
func WriteReport(dir, name, body string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+"-report.txt")
	if err := os.WriteFile(path, []byte(redactor.Redact(body)), 0o644); err != nil {
		return "", fmt.Errorf("write report %s: %w", path, err)
	}
	return path, nil
}

// Read loads a JSON artifact, accepting either the {metadata,models} object
// shape or a bare array of models (some legacy artifacts use the latter).
func Read(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return Decode(data)
}

// Decode applies the same duck-typed shape detection as Read, operating on
// bytes already in memory.
func Decode(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err == nil && (doc.Models != nil || looksLikeObject(data)) {
		return doc, nil
	}

	var bare []any
	if err := json.Unmarshal(data, &bare); err != nil {
		return Document{}, fmt.Errorf("decode artifact: neither object nor array shape: %w", err)
	}
	return Document{
		Metadata: Metadata{TotalModels: len(bare)},
		Models:   bare,
	}, nil
}

func looksLikeObject(data []byte) bool {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// ISTTimestamp formats t in IST (UTC+5:30) with an explicit offset, matching
// the documented `generated_at` format.
func ISTTimestamp(t time.Time) string {
	ist := time.FixedZone("IST", 5*60*60+30*60)
	return t.In(ist).Format("2006-01-02T15:04:05-07:00")
}
