package reporter

import "github.com/five82/transcode/internal/pipeline"

// Reporter defines the interface for progress reporting. Its Report method
// has the same signature as pipeline.Reporter's, so any Reporter value can
// be passed directly as the engine's progress sink.
type Reporter interface {
	Hardware(summary HardwareSummary)
	Initialization(summary InitializationSummary)
	EncodingConfig(summary EncodingConfigSummary)
	Report(sample pipeline.ProgressSample)
	Complete(outcome EncodingOutcome)
	Warning(message string)
	Error(err ReporterError)
	Verbose(message string)
}

// NullReporter is a no-op reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Hardware(HardwareSummary)             {}
func (NullReporter) Initialization(InitializationSummary) {}
func (NullReporter) EncodingConfig(EncodingConfigSummary) {}
func (NullReporter) Report(pipeline.ProgressSample)       {}
func (NullReporter) Complete(EncodingOutcome)             {}
func (NullReporter) Warning(string)                       {}
func (NullReporter) Error(ReporterError)                  {}
func (NullReporter) Verbose(string)                       {}
