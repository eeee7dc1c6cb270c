// Package compare implements the comparator/drift reporter (C11): a
// purely informational diff between the pipeline's fused output and the
// current working-table slice, keyed by human_readable_name.
package compare

import (
	"strings"

	"github.com/aicatalog/cpe/internal/catalog"
)

// comparedFields is the fixed field list compared row by row.
var comparedFields = []string{
	"inference_provider", "model_provider", "human_readable_name",
	"model_provider_country", "official_url", "input_modalities", "output_modalities",
	"license_info_text", "license_info_url", "license_name", "license_url",
	"rate_limits", "provider_api_access",
}

// FieldCounts tallies outcomes for one field. Exact and Differs count
// models present on both sides; MissingLeft and MissingRight count models
// present only in the working table or only in the pipeline output.
type FieldCounts struct {
	Exact        int
	Differs      int
	MissingLeft  int
	MissingRight int
}

// FieldDiff is one field's left/right values for a model with a
// difference.
type FieldDiff struct {
	Field string
	Left  string
	Right string
}

// RowDiff lists the differing fields for one model present on both sides.
type RowDiff struct {
	HumanReadableName string
	Fields            []FieldDiff
}

// Report is the outcome of comparing pipeline output ("left") against the
// working-table slice ("right").
type Report struct {
	InBoth              int
	PipelineOnly        []string
	WorkingTableOnly    []string
	DuplicateNamesLeft  []string
	DuplicateNamesRight []string
	FieldCounts         map[string]FieldCounts
	RowDiffs            []RowDiff
}

// Compare builds a Report from pipeline (the freshly fused rows) and
// workingTable (the current slice for the same provider). It never
// mutates either input.
func Compare(pipeline, workingTable []catalog.DbRow) Report {
	left, dupLeft := indexByName(pipeline)
	right, dupRight := indexByName(workingTable)

	report := Report{
		FieldCounts:         make(map[string]FieldCounts, len(comparedFields)),
		DuplicateNamesLeft:  dupLeft,
		DuplicateNamesRight: dupRight,
	}

	for name := range left {
		if _, ok := right[name]; !ok {
			report.PipelineOnly = append(report.PipelineOnly, name)
		}
	}
	for name := range right {
		if _, ok := left[name]; !ok {
			report.WorkingTableOnly = append(report.WorkingTableOnly, name)
		}
	}

	for name, leftRow := range left {
		rightRow, ok := right[name]
		if !ok {
			continue
		}
		report.InBoth++

		var diffFields []FieldDiff
		for _, field := range comparedFields {
			leftVal := fieldValue(leftRow, field)
			rightVal := fieldValue(rightRow, field)
			counts := report.FieldCounts[field]
			if normalize(leftVal) == normalize(rightVal) {
				counts.Exact++
			} else {
				counts.Differs++
				diffFields = append(diffFields, FieldDiff{Field: field, Left: leftVal, Right: rightVal})
			}
			report.FieldCounts[field] = counts
		}
		if len(diffFields) > 0 {
			report.RowDiffs = append(report.RowDiffs, RowDiff{HumanReadableName: name, Fields: diffFields})
		}
	}

	for _, field := range comparedFields {
		counts := report.FieldCounts[field]
		counts.MissingLeft = len(report.WorkingTableOnly)
		counts.MissingRight = len(report.PipelineOnly)
		report.FieldCounts[field] = counts
	}

	return report
}

// normalize treats empty string and SQL NULL (represented here as "")
// as equal, and trims whitespace before comparison.
func normalize(s string) string {
	return strings.TrimSpace(s)
}

func indexByName(rows []catalog.DbRow) (map[string]catalog.DbRow, []string) {
	index := make(map[string]catalog.DbRow, len(rows))
	seen := make(map[string]bool, len(rows))
	var duplicates []string
	for _, r := range rows {
		if seen[r.HumanReadableName] {
			duplicates = append(duplicates, r.HumanReadableName)
			continue
		}
		seen[r.HumanReadableName] = true
		index[r.HumanReadableName] = r
	}
	return index, duplicates
}

func fieldValue(row catalog.DbRow, field string) string {
	switch field {
	case "inference_provider":
		return row.InferenceProvider
	case "model_provider":
		return row.ModelProvider
	case "human_readable_name":
		return row.HumanReadableName
	case "model_provider_country":
		return row.ModelProviderCountry
	case "official_url":
		return row.OfficialURL
	case "input_modalities":
		return row.InputModalities
	case "output_modalities":
		return row.OutputModalities
	case "license_info_text":
		return row.LicenseInfoText
	case "license_info_url":
		return row.LicenseInfoURL
	case "license_name":
		return row.LicenseName
	case "license_url":
		return row.LicenseURL
	case "rate_limits":
		return row.RateLimits
	case "provider_api_access":
		return row.ProviderAPIAccess
	default:
		return ""
	}
}
