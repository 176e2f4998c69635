package reporter

import (
	"fmt"
	"math"
	"os"
	"sync"

	"github.com/fatih/color"
	"github.com/five82/transcode/internal/pipeline"
	"github.com/five82/transcode/internal/util"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu         sync.Mutex
	progress   *progressbar.ProgressBar
	maxPercent int64
	cyan       *color.Color
	green      *color.Color
	yellow     *color.Color
	red        *color.Color
	bold       *color.Color
}

// NewTerminalReporter creates a new terminal reporter.
func NewTerminalReporter() *TerminalReporter {
	return &TerminalReporter{
		cyan:   color.New(color.FgCyan, color.Bold),
		green:  color.New(color.FgGreen),
		yellow: color.New(color.FgYellow, color.Bold),
		red:    color.New(color.FgRed, color.Bold),
		bold:   color.New(color.Bold),
	}
}

func (r *TerminalReporter) printLabel(width int, label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", width, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Hardware(summary HardwareSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("HARDWARE")
	r.printLabel(10, "Host:", summary.Hostname)
	r.printLabel(10, "CPU:", fmt.Sprintf("%d cores", summary.NumCPU))
	r.printLabel(10, "Platform:", fmt.Sprintf("%s/%s", summary.OS, summary.Arch))
}

func (r *TerminalReporter) Initialization(summary InitializationSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("VIDEO")
	r.printLabel(10, "File:", summary.InputFile)
	r.printLabel(10, "Output:", summary.OutputFile)
	r.printLabel(10, "Source:", fmt.Sprintf("%s @ %.3g fps, %d frames", summary.Resolution, summary.FPS, summary.FrameCount))
	r.printLabel(10, "Target:", summary.OutputSize)
}

func (r *TerminalReporter) EncodingConfig(summary EncodingConfigSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("ENCODING")
	const w = 10
	r.printLabel(w, "Encoder:", summary.Encoder)
	r.printLabel(w, "Preset:", summary.Preset)
	r.printLabel(w, "CRF:", fmt.Sprintf("%d", summary.CRF))
	r.printLabel(w, "Format:", summary.PixelFormat)
	r.printLabel(w, "Queues:", fmt.Sprintf("capacity %d", summary.QueueCapacity))

	r.mu.Lock()
	r.progress = progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(""),
		progressbar.OptionSetWidth(40),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowDescriptionAtLineEnd(),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "Encoding [",
			BarEnd:        "]",
		}),
	)
	r.maxPercent = 0
	r.mu.Unlock()
}

// Report renders one progress sample on the terminal's progress bar. A
// NaN fraction (unknown frame count) leaves the bar at its last position
// and only updates the elapsed/eta description.
func (r *TerminalReporter) Report(sample pipeline.ProgressSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.progress == nil {
		return
	}

	if !math.IsNaN(sample.Fraction) {
		percent := int64(sample.Fraction * 100)
		if percent > 100 {
			percent = 100
		}
		if percent >= r.maxPercent {
			r.maxPercent = percent
			_ = r.progress.Set64(percent)
		}
	}

	etaText := "unknown"
	if !math.IsNaN(sample.ETA) {
		etaText = util.FormatDurationFromSecs(int64(sample.ETA))
	}
	r.progress.Describe(fmt.Sprintf("elapsed %s, eta %s", util.FormatDurationFromSecs(int64(sample.Elapsed)), etaText))
}

func (r *TerminalReporter) Complete(outcome EncodingOutcome) {
	r.mu.Lock()
	if r.progress != nil {
		_ = r.progress.Finish()
		r.progress = nil
	}
	r.mu.Unlock()

	reduction := util.CalculateSizeReduction(outcome.OriginalSize, outcome.EncodedSize)

	fmt.Println()
	_, _ = r.cyan.Println("RESULTS")
	fmt.Printf("  %s %s\n", r.bold.Sprint("Output:"), r.bold.Sprint(outcome.OutputFile))
	fmt.Printf("  %s %s -> %s (%.1f%% reduction)\n",
		r.bold.Sprint("Size:"),
		util.FormatBytesReadable(outcome.OriginalSize),
		util.FormatBytesReadable(outcome.EncodedSize),
		reduction)
	fmt.Printf("  %s %s\n", r.bold.Sprint("Time:"), util.FormatDurationFromSecs(int64(outcome.TotalTime.Seconds())))
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	fmt.Printf("  %s\n", message)
}
