// Package reporter provides progress reporting interfaces and
// implementations for a single transcode job: terminal (human,
// colorized, progress bar), JSON (NDJSON events), a composite fan-out,
// and a no-op null reporter.
package reporter

import "time"

// HardwareSummary describes the host the job is running on.
type HardwareSummary struct {
	Hostname string
	NumCPU   int
	OS       string
	Arch     string
}

// InitializationSummary describes the job before the pipeline starts.
type InitializationSummary struct {
	InputFile  string
	OutputFile string
	Resolution string
	OutputSize string
	FPS        float64
	FrameCount uint64
}

// EncodingConfigSummary describes the encoder configuration for the job.
type EncodingConfigSummary struct {
	Encoder       string
	Preset        string
	CRF           int
	PixelFormat   string
	QueueCapacity int
}

// EncodingOutcome contains final job results.
type EncodingOutcome struct {
	InputFile    string
	OutputFile   string
	OriginalSize uint64
	EncodedSize  uint64
	TotalTime    time.Duration
}

// ReporterError contains error information for terminal job failure.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
