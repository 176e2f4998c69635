// Package main provides the CLI entry point for Transcode.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/five82/transcode"
	"github.com/five82/transcode/internal/config"
	"github.com/five82/transcode/internal/discovery"
	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/logging"
	"github.com/five82/transcode/internal/reporter"
	"github.com/five82/transcode/internal/util"
	"github.com/spf13/cobra"
)

const appVersion = "0.1.0"

// encodeArgs holds the parsed flags for the encode subcommand.
type encodeArgs struct {
	input         string
	output        string
	crf           int
	preset        int
	queueCapacity int
	verbose       bool
	jsonOutput    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	root := newRootCmd()
	root.SetContext(ctx)

	if err := root.Execute(); err != nil {
		var pe *errors.PipelineError
		if !isPipelineError(err, &pe) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", pe)
		return pe.Kind.ExitCode()
	}
	return 0
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "transcode",
		Short:         "GPU-accelerated streaming video transcoder",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newEncodeCmd())
	return root
}

func newEncodeCmd() *cobra.Command {
	var a encodeArgs

	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Transcode one file, or every video file in a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeEncode(cmd.Context(), a)
		},
	}

	cmd.Flags().StringVarP(&a.input, "input", "i", "", "input video file or directory (required)")
	cmd.Flags().StringVarP(&a.output, "output", "o", "", "output MP4 file, or directory when input is a directory (required)")
	cmd.Flags().IntVar(&a.crf, "crf", config.DefaultCRF, "constant rate factor, 0-51 (lower is higher quality)")
	cmd.Flags().IntVar(&a.preset, "preset", config.DefaultPreset, "libx264 preset index, 0-9 (lower is faster, higher is slower/better)")
	cmd.Flags().IntVar(&a.queueCapacity, "queue-capacity", config.DefaultQueueCapacity, "capacity of each inter-stage queue")
	cmd.Flags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	cmd.Flags().BoolVar(&a.jsonOutput, "json", false, "emit NDJSON progress events instead of terminal output")

	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func isPipelineError(err error, target **errors.PipelineError) bool {
	pe, ok := err.(*errors.PipelineError)
	if ok {
		*target = pe
	}
	return ok
}

func executeEncode(ctx context.Context, a encodeArgs) error {
	level := logging.LevelInfo
	if a.verbose {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	inputInfo, err := os.Stat(a.input)
	if err != nil {
		return errors.NewInvalidArgsError(fmt.Sprintf("input path does not exist: %s", a.input))
	}

	rep := newReporter(a)

	if !inputInfo.IsDir() {
		return runOne(ctx, a, a.input, a.output, rep)
	}

	result, err := discovery.FindVideoFilesWithLogging(a.input, slogDiscoveryLogger{})
	if err != nil {
		return errors.NewInvalidArgsError(fmt.Sprintf("failed to discover video files: %v", err))
	}
	if err := util.EnsureDirectory(a.output); err != nil {
		return errors.NewInvalidArgsError(fmt.Sprintf("failed to create output directory: %v", err))
	}

	// One PipelineEngine.Run per discovered file, sequentially: each job
	// already saturates its own decoder/GPU/encoder stages, so there is
	// nothing to gain from running jobs concurrently.
	for i, f := range result.Files {
		logging.Info("encoding file", "index", i+1, "total", len(result.Files), "file", f)
		outPath := filepath.Join(a.output, util.GetFileStem(f)+".mp4")
		if err := runOne(ctx, a, f, outPath, rep); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return errors.NewCanceledError()
		}
	}
	return nil
}

// slogDiscoveryLogger adapts the package-level logging functions to
// discovery's DiscoveryLogger interface.
type slogDiscoveryLogger struct{}

func (slogDiscoveryLogger) Info(format string, args ...any) {
	logging.Info(fmt.Sprintf(format, args...))
}

func (slogDiscoveryLogger) Debug(format string, args ...any) {
	logging.Debug(fmt.Sprintf(format, args...))
}

func runOne(ctx context.Context, a encodeArgs, input, output string, rep reporter.Reporter) error {
	job, err := transcode.New(input, output,
		transcode.WithCRF(a.crf),
		transcode.WithPreset(a.preset),
		transcode.WithQueueCapacity(a.queueCapacity),
	)
	if err != nil {
		return err
	}

	_, err = job.Run(ctx, rep)
	return err
}

func newReporter(a encodeArgs) reporter.Reporter {
	var rep reporter.Reporter
	if a.jsonOutput {
		rep = reporter.NewJSONReporter()
	} else {
		rep = reporter.NewTerminalReporter()
	}
	if a.verbose {
		rep = reporter.NewCompositeReporter(rep, verboseLogReporter{})
	}
	return rep
}

// verboseLogReporter prints each Verbose call to stderr; the primary
// reporter (terminal or JSON) already renders everything else.
type verboseLogReporter struct {
	reporter.NullReporter
}

func (verboseLogReporter) Verbose(message string) {
	logging.Debug(message)
}
