// Package transcode provides a Go library for GPU-accelerated streaming
// video transcoding to H.264.
//
// Transcode decodes a source file frame by frame, resizes and color
// converts each frame on the GPU, and streams the result into an
// external H.264 encoder, all without ever buffering the whole video in
// memory.
//
// Basic usage:
//
//	job, err := transcode.New("input.mkv", "output.mp4", transcode.WithCRF(20))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := job.Run(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Printf("Encoded: %s, reduction: %.1f%%\n",
//	    result.OutputFile, result.SizeReductionPercent)
package transcode

import (
	"context"
	"fmt"
	"time"

	"github.com/five82/transcode/internal/config"
	"github.com/five82/transcode/internal/encoder"
	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/gpu"
	"github.com/five82/transcode/internal/pipeline"
	"github.com/five82/transcode/internal/reporter"
	"github.com/five82/transcode/internal/source"
	"github.com/five82/transcode/internal/util"
)

// Option configures a Job's parameters.
type Option func(*config.JobParams)

// WithCRF sets the constant rate factor, 0-51 (default 23).
func WithCRF(crf int) Option {
	return func(p *config.JobParams) { p.CRF = crf }
}

// WithPreset sets the libx264 preset index, 0-9 (default 4).
func WithPreset(preset int) Option {
	return func(p *config.JobParams) { p.Preset = preset }
}

// WithQueueCapacity sets the capacity of each inter-stage bounded queue
// (default 4).
func WithQueueCapacity(capacity int) Option {
	return func(p *config.JobParams) { p.QueueCapacity = capacity }
}

// Result summarizes one completed job.
type Result struct {
	OutputFile           string
	OriginalSize         uint64
	EncodedSize          uint64
	SizeReductionPercent float64
	TotalTime            time.Duration
}

// Job is the entry point for a single transcode. It wires together the
// decoder, GPU preprocessor, and encoder stages behind a pipeline.Engine.
type Job struct {
	params *config.JobParams
}

// New validates inputPath and outputPath and the given options into a
// runnable Job. It does not open the input or touch the GPU; that happens
// in Run.
func New(inputPath, outputPath string, opts ...Option) (*Job, error) {
	params := config.NewJobParams(inputPath, outputPath)
	for _, opt := range opts {
		opt(params)
	}
	if err := params.Validate(); err != nil {
		return nil, errors.NewInvalidArgsError(err.Error())
	}
	return &Job{params: params}, nil
}

// Run opens the source, acquires a GPU preprocessor, starts the encoder,
// and streams the job to completion. A nil rep discards all reporting.
// Run respects ctx cancellation: a canceled context stops the pipeline
// early and Run returns a Canceled error.
func (j *Job) Run(ctx context.Context, rep reporter.Reporter) (*Result, error) {
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	inputSize, err := util.GetFileSize(j.params.InputPath)
	if err != nil {
		return nil, errors.NewInvalidArgsError(fmt.Sprintf("cannot stat input: %v", err))
	}

	src, err := source.Open(j.params.InputPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()

	geom := src.Geometry()
	targetW, targetH := config.DeriveOutputGeometry(geom.Width, geom.Height)
	if targetW <= 0 || targetH <= 0 {
		return nil, errors.NewInvalidGeometryError(fmt.Sprintf("source %dx%d is too small to downscale", geom.Width, geom.Height))
	}

	pre, err := gpu.New()
	if err != nil {
		return nil, err
	}
	defer func() { _ = pre.Close() }()

	enc, err := encoder.New(j.params.OutputPath, targetW, targetH, geom.FPS, j.params.CRF, j.params.PresetName())
	if err != nil {
		return nil, err
	}

	sys := util.GetSystemInfo()
	rep.Hardware(reporter.HardwareSummary{
		Hostname: sys.Hostname,
		NumCPU:   sys.NumCPU,
		OS:       sys.OS,
		Arch:     sys.Arch,
	})
	rep.Initialization(reporter.InitializationSummary{
		InputFile:  util.GetFilename(j.params.InputPath),
		OutputFile: util.GetFilename(j.params.OutputPath),
		Resolution: fmt.Sprintf("%dx%d -> %dx%d", geom.Width, geom.Height, targetW, targetH),
		OutputSize: fmt.Sprintf("%dx%d", targetW, targetH),
		FPS:        geom.FPS,
		FrameCount: geom.FrameCountHint,
	})
	rep.EncodingConfig(reporter.EncodingConfigSummary{
		Encoder:       "libx264",
		Preset:        j.params.PresetName(),
		CRF:           j.params.CRF,
		PixelFormat:   "yuv420p",
		QueueCapacity: j.params.QueueCapacity,
	})

	engine := pipeline.New(src, pre, enc, rep, targetW, targetH, j.params.QueueCapacity)

	start := time.Now()
	runErr := engine.Run(ctx)
	elapsed := time.Since(start)

	if runErr != nil {
		rep.Error(reporter.ReporterError{Title: "encoding failed", Message: runErr.Error()})
		return nil, runErr
	}

	outputSize, err := util.GetFileSize(j.params.OutputPath)
	if err != nil {
		return nil, errors.NewInternalError("cannot stat output", err)
	}

	rep.Complete(reporter.EncodingOutcome{
		InputFile:    util.GetFilename(j.params.InputPath),
		OutputFile:   util.GetFilename(j.params.OutputPath),
		OriginalSize: inputSize,
		EncodedSize:  outputSize,
		TotalTime:    elapsed,
	})

	return &Result{
		OutputFile:           j.params.OutputPath,
		OriginalSize:         inputSize,
		EncodedSize:          outputSize,
		SizeReductionPercent: util.CalculateSizeReduction(inputSize, outputSize),
		TotalTime:            elapsed,
	}, nil
}
