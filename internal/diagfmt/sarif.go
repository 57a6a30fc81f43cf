package diagfmt

import (
	"errors"
	"fmt"
	"io"

	"tessera/internal/diag"
)

const (
	sarifVersion = "2.1.0"
	sarifSchema  = "https://json.schemastore.org/sarif-2.1.0.json"
)

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool        sarifTool         `json:"tool"`
	Invocations []sarifInvocation `json:"invocations,omitempty"`
	Results     []sarifResult     `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type sarifInvocation struct {
	Arguments           []string `json:"arguments,omitempty"`
	ExecutionSuccessful bool     `json:"executionSuccessful"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysical `json:"physicalLocation"`
}

type sarifPhysical struct {
	ArtifactLocation sarifArtifact `json:"artifactLocation"`
	Region           *sarifRegion  `json:"region,omitempty"`
}

type sarifArtifact struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine   int `json:"startLine,omitempty"`
	StartColumn int `json:"startColumn,omitempty"`
	EndColumn   int `json:"endColumn,omitempty"`
}

// Sarif writes diagnostics and compile failures as a SARIF 2.1.0 log with a
// single run. Aggregated failures are flattened into one result each.
func Sarif(w io.Writer, items []diag.Diagnostic, failures []error, meta SarifRunMeta) error {
	run := sarifRun{
		Tool:    sarifTool{Driver: sarifDriver{Name: meta.ToolName, Version: meta.ToolVersion}},
		Results: make([]sarifResult, 0, len(items)+len(failures)),
	}
	if len(meta.InvocationArgs) > 0 {
		run.Invocations = []sarifInvocation{{
			Arguments:           meta.InvocationArgs,
			ExecutionSuccessful: len(failures) == 0,
		}}
	}
	for _, d := range items {
		rule := "diagnostic"
		if d.Code != 0 {
			rule = fmt.Sprintf("TES%04d", d.Code)
		}
		run.Results = append(run.Results, sarifResult{
			RuleID:    rule,
			Level:     sarifLevel(d.Severity),
			Message:   sarifMessage{Text: d.Text},
			Locations: sarifLocations(d.Location.File, d.Location.Line, d.Location.Column, d.Location.Length),
		})
	}
	for _, err := range failures {
		run.Results = append(run.Results, failureResults(err)...)
	}
	return writeJSON(w, sarifLog{Version: sarifVersion, Schema: sarifSchema, Runs: []sarifRun{run}})
}

func failureResults(err error) []sarifResult {
	var agg *diag.AggregateError
	if errors.As(err, &agg) {
		var out []sarifResult
		for _, child := range agg.Errors {
			out = append(out, failureResults(child)...)
		}
		return out
	}
	var ce *diag.CompilerError
	if errors.As(err, &ce) {
		return []sarifResult{{
			RuleID:    ce.Name(),
			Level:     "error",
			Message:   sarifMessage{Text: ce.Message},
			Locations: sarifLocations(ce.Location.File, ce.Location.Line, ce.Location.Column, 0),
		}}
	}
	return []sarifResult{{RuleID: "Error", Level: "error", Message: sarifMessage{Text: err.Error()}}}
}

func sarifLocations(file string, line, column, length int) []sarifLocation {
	if file == "" {
		return nil
	}
	loc := sarifLocation{PhysicalLocation: sarifPhysical{ArtifactLocation: sarifArtifact{URI: formatPath(file, PathModeRelative, "")}}}
	if line > 0 {
		region := &sarifRegion{StartLine: line, StartColumn: column}
		if column > 0 && length > 0 {
			region.EndColumn = column + length
		}
		loc.PhysicalLocation.Region = region
	}
	return []sarifLocation{loc}
}

func sarifLevel(s diag.Severity) string {
	switch s {
	case diag.SevError:
		return "error"
	case diag.SevWarning:
		return "warning"
	default:
		return "note"
	}
}
