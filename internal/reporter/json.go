package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"time"

	"github.com/five82/transcode/internal/pipeline"
	"github.com/five82/transcode/internal/util"
)

// JSONReporter outputs NDJSON events, one per line.
type JSONReporter struct {
	writer io.Writer
	mu     sync.Mutex
}

// NewJSONReporter creates a JSON reporter that writes to stdout.
func NewJSONReporter() *JSONReporter {
	return &JSONReporter{writer: os.Stdout}
}

// NewJSONReporterWithWriter creates a JSON reporter with a custom writer.
func NewJSONReporterWithWriter(w io.Writer) *JSONReporter {
	return &JSONReporter{writer: w}
}

func (r *JSONReporter) timestamp() int64 {
	return time.Now().Unix()
}

func (r *JSONReporter) write(v interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintln(r.writer, string(data))
}

// nullableFloat converts a possibly-NaN float into a JSON-marshalable
// value: the float itself when defined, nil (JSON null) otherwise.
// encoding/json cannot marshal NaN directly.
func nullableFloat(v float64) interface{} {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func (r *JSONReporter) Hardware(summary HardwareSummary) {
	r.write(map[string]interface{}{
		"type":      "hardware",
		"hostname":  summary.Hostname,
		"num_cpu":   summary.NumCPU,
		"os":        summary.OS,
		"arch":      summary.Arch,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Initialization(summary InitializationSummary) {
	r.write(map[string]interface{}{
		"type":        "initialization",
		"input_file":  summary.InputFile,
		"output_file": summary.OutputFile,
		"resolution":  summary.Resolution,
		"output_size": summary.OutputSize,
		"fps":         summary.FPS,
		"frame_count": summary.FrameCount,
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) EncodingConfig(summary EncodingConfigSummary) {
	r.write(map[string]interface{}{
		"type":           "encoding_config",
		"encoder":        summary.Encoder,
		"preset":         summary.Preset,
		"crf":            summary.CRF,
		"pixel_format":   summary.PixelFormat,
		"queue_capacity": summary.QueueCapacity,
		"timestamp":      r.timestamp(),
	})
}

func (r *JSONReporter) Report(sample pipeline.ProgressSample) {
	r.write(map[string]interface{}{
		"type":        "progress",
		"fraction":    nullableFloat(sample.Fraction),
		"elapsed":     sample.Elapsed,
		"eta_seconds": nullableFloat(sample.ETA),
		"timestamp":   r.timestamp(),
	})
}

func (r *JSONReporter) Complete(outcome EncodingOutcome) {
	reduction := util.CalculateSizeReduction(outcome.OriginalSize, outcome.EncodedSize)

	r.write(map[string]interface{}{
		"type":                   "complete",
		"input_file":             outcome.InputFile,
		"output_file":            outcome.OutputFile,
		"original_size":          outcome.OriginalSize,
		"encoded_size":           outcome.EncodedSize,
		"duration_seconds":       int64(outcome.TotalTime.Seconds()),
		"size_reduction_percent": reduction,
		"timestamp":              r.timestamp(),
	})
}

func (r *JSONReporter) Warning(message string) {
	r.write(map[string]interface{}{
		"type":      "warning",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}

func (r *JSONReporter) Error(err ReporterError) {
	r.write(map[string]interface{}{
		"type":       "error",
		"title":      err.Title,
		"message":    err.Message,
		"context":    err.Context,
		"suggestion": err.Suggestion,
		"timestamp":  r.timestamp(),
	})
}

func (r *JSONReporter) Verbose(message string) {
	r.write(map[string]interface{}{
		"type":      "verbose",
		"message":   message,
		"timestamp": r.timestamp(),
	})
}
