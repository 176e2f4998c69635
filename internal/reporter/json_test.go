package reporter

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/five82/transcode/internal/pipeline"
)

func TestJSONReporterReportEmitsNullForNaN(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.Report(pipeline.ProgressSample{Fraction: math.NaN(), Elapsed: 1.5, ETA: math.NaN()})

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if event["fraction"] != nil {
		t.Errorf("fraction = %v, want nil", event["fraction"])
	}
	if event["eta_seconds"] != nil {
		t.Errorf("eta_seconds = %v, want nil", event["eta_seconds"])
	}
	if event["elapsed"].(float64) != 1.5 {
		t.Errorf("elapsed = %v, want 1.5", event["elapsed"])
	}
}

func TestJSONReporterReportEmitsNumbersWhenKnown(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.Report(pipeline.ProgressSample{Fraction: 0.5, Elapsed: 10, ETA: 10})

	var event map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if event["fraction"].(float64) != 0.5 {
		t.Errorf("fraction = %v, want 0.5", event["fraction"])
	}
}

func TestJSONReporterOneEventPerLine(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONReporterWithWriter(&buf)

	r.Warning("low disk space")
	r.Error(ReporterError{Title: "boom", Message: "something failed"})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	for _, line := range lines {
		var v map[string]interface{}
		if err := json.Unmarshal([]byte(line), &v); err != nil {
			t.Errorf("line %q is not valid JSON: %v", line, err)
		}
	}
}

type recordingReporter struct {
	reports int
}

func (r *recordingReporter) Hardware(HardwareSummary)             {}
func (r *recordingReporter) Initialization(InitializationSummary) {}
func (r *recordingReporter) EncodingConfig(EncodingConfigSummary) {}
func (r *recordingReporter) Report(pipeline.ProgressSample)       { r.reports++ }
func (r *recordingReporter) Complete(EncodingOutcome)             {}
func (r *recordingReporter) Warning(string)                       {}
func (r *recordingReporter) Error(ReporterError)                  {}
func (r *recordingReporter) Verbose(string)                       {}

func TestCompositeReporterFansOut(t *testing.T) {
	a := &recordingReporter{}
	b := &recordingReporter{}
	c := NewCompositeReporter(a, b)

	c.Report(pipeline.ProgressSample{Fraction: 0.1, Elapsed: 1, ETA: 9})

	if a.reports != 1 || b.reports != 1 {
		t.Errorf("reports = (%d, %d), want (1, 1)", a.reports, b.reports)
	}
}
