package transcode

import (
	"context"
	"testing"

	"github.com/five82/transcode/internal/config"
	"github.com/five82/transcode/internal/errors"
)

func TestNewAppliesOptions(t *testing.T) {
	job, err := New("in.mkv", "out.mp4", WithCRF(18), WithPreset(2), WithQueueCapacity(8))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if job.params.CRF != 18 {
		t.Errorf("CRF = %d, want 18", job.params.CRF)
	}
	if job.params.Preset != 2 {
		t.Errorf("Preset = %d, want 2", job.params.Preset)
	}
	if job.params.QueueCapacity != 8 {
		t.Errorf("QueueCapacity = %d, want 8", job.params.QueueCapacity)
	}
}

func TestNewDefaultsMatchConfig(t *testing.T) {
	job, err := New("in.mkv", "out.mp4")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if job.params.CRF != config.DefaultCRF {
		t.Errorf("CRF = %d, want default %d", job.params.CRF, config.DefaultCRF)
	}
}

func TestNewRejectsInvalidCRF(t *testing.T) {
	_, err := New("in.mkv", "out.mp4", WithCRF(999))
	if err == nil {
		t.Fatal("expected error for out-of-range CRF")
	}
	if !errors.IsKind(err, errors.KindInvalidArgs) {
		t.Errorf("error = %v, want KindInvalidArgs", err)
	}
}

func TestNewRejectsEmptyPaths(t *testing.T) {
	_, err := New("", "out.mp4")
	if !errors.IsKind(err, errors.KindInvalidArgs) {
		t.Errorf("error = %v, want KindInvalidArgs", err)
	}
}

func TestRunFailsFastOnMissingInput(t *testing.T) {
	job, err := New("/no/such/input.mkv", "out.mp4")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = job.Run(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for missing input file")
	}
}
