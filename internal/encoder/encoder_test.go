package encoder

import (
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/five82/transcode/internal/media"
)

func TestBuildFfmpegArgs(t *testing.T) {
	got := buildFfmpegArgs("/tmp/out.mp4", 320, 240, 30, 23, "fast")
	want := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", "320x240",
		"-r", "30",
		"-i", "-",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"/tmp/out.mp4",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("buildFfmpegArgs = %v, want %v", got, want)
	}
}

func TestBuildFfmpegArgsFractionalFps(t *testing.T) {
	got := buildFfmpegArgs("out.mp4", 1920, 1080, 23.976, 18, "slow")
	found := false
	for i, a := range got {
		if a == "-r" && i+1 < len(got) {
			if got[i+1] != "23.976" {
				t.Fatalf("-r value = %q, want %q", got[i+1], "23.976")
			}
			found = true
		}
	}
	if !found {
		t.Fatal("-r flag not present")
	}
}

func TestFrameEncoderEndToEnd(t *testing.T) {
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		t.Skip("ffmpeg not on PATH")
	}

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	enc, err := New(outputPath, 16, 16, 25, 30, "ultrafast")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	gray := make([]byte, media.Size(16, 16))
	for i := range gray {
		gray[i] = 128
	}
	payload := media.YuvPayload{Width: 16, Height: 16, Data: gray}

	for i := 0; i < 5; i++ {
		if err := enc.Write(payload); err != nil {
			t.Fatalf("Write(frame %d) = %v", i, err)
		}
	}

	if err := enc.Finish(); err != nil {
		t.Fatalf("Finish() = %v", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("output file not created: %v", err)
	}
}

func TestFrameEncoderFinishIdempotent(t *testing.T) {
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		t.Skip("ffmpeg not on PATH")
	}

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	enc, err := New(outputPath, 16, 16, 25, 30, "ultrafast")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}

	if err := enc.Finish(); err != nil {
		t.Fatalf("first Finish() = %v", err)
	}
	if err := enc.Finish(); err != nil {
		t.Fatalf("second Finish() = %v, want nil", err)
	}
}

func TestFrameEncoderRejectsMismatchedPayload(t *testing.T) {
	if _, err := exec.LookPath(ffmpegBinary); err != nil {
		t.Skip("ffmpeg not on PATH")
	}

	outputPath := filepath.Join(t.TempDir(), "out.mp4")
	enc, err := New(outputPath, 16, 16, 25, 30, "ultrafast")
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	defer enc.Finish()

	bad := media.YuvPayload{Width: 16, Height: 16, Data: make([]byte, 4)}
	if err := enc.Write(bad); err == nil {
		t.Fatal("Write(mismatched payload) = nil, want error")
	}
}
