package config

import "fmt"

// Default constants.
const (
	// DefaultCRF is the default constant rate factor (0-51, lower is higher quality).
	DefaultCRF = 23

	// DefaultPreset is the default preset index (0-9, higher is slower/higher quality).
	DefaultPreset = 4 // "fast"

	// DefaultQueueCapacity is the default capacity of each bounded queue
	// between pipeline stages.
	DefaultQueueCapacity = 4

	// MaxCRF is the maximum valid CRF value for the H.264 encoder.
	MaxCRF = 51

	// MaxPresetIndex is the highest valid preset index.
	MaxPresetIndex = 9
)

// presetNames is the ordered set of libx264 preset names addressed by
// JobParams.Preset, fastest (and lowest quality) first.
var presetNames = [...]string{
	"ultrafast",
	"superfast",
	"veryfast",
	"faster",
	"fast",
	"medium",
	"slow",
	"slower",
	"veryslow",
	"placebo",
}

// PresetName returns the libx264 preset name for a preset index.
// The index is assumed to already be validated by Validate.
func PresetName(preset int) string {
	if preset < 0 || preset >= len(presetNames) {
		return presetNames[DefaultPreset]
	}
	return presetNames[preset]
}

// JobParams is the immutable configuration for a single transcode job.
type JobParams struct {
	// InputPath is the source media file.
	InputPath string
	// OutputPath is the destination H.264-in-MP4 file.
	OutputPath string
	// CRF is the constant rate factor, 0-51 (default 23).
	CRF int
	// Preset is the speed/compression tradeoff index, 0-9 (default 4).
	Preset int
	// QueueCapacity is the capacity of each bounded queue between stages
	// (default 4).
	QueueCapacity int
}

// NewJobParams creates JobParams with default CRF, preset, and queue
// capacity for the given input and output paths.
func NewJobParams(inputPath, outputPath string) *JobParams {
	return &JobParams{
		InputPath:     inputPath,
		OutputPath:    outputPath,
		CRF:           DefaultCRF,
		Preset:        DefaultPreset,
		QueueCapacity: DefaultQueueCapacity,
	}
}

// Validate checks JobParams for errors.
func (p *JobParams) Validate() error {
	if p.InputPath == "" || p.OutputPath == "" {
		return ErrInvalidPath
	}
	if p.CRF < 0 || p.CRF > MaxCRF {
		return fmt.Errorf("%w: got %d", ErrInvalidCRF, p.CRF)
	}
	if p.Preset < 0 || p.Preset > MaxPresetIndex {
		return fmt.Errorf("%w: got %d", ErrInvalidPreset, p.Preset)
	}
	if p.QueueCapacity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQueueCapacity, p.QueueCapacity)
	}
	return nil
}

// PresetName returns the libx264 preset name for this job's Preset index.
func (p *JobParams) PresetName() string {
	return PresetName(p.Preset)
}

// DeriveOutputGeometry computes the output frame size from the source
// geometry: half of each dimension, rounded down to even.
func DeriveOutputGeometry(srcWidth, srcHeight int) (width, height int) {
	width = (srcWidth / 2) &^ 1
	height = (srcHeight / 2) &^ 1
	return width, height
}
