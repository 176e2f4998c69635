// Package encoder streams planar YUV 4:2:0 payloads to an external ffmpeg
// process and produces H.264-in-MP4 output.
package encoder

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/media"
)

const ffmpegBinary = "ffmpeg"

// FrameEncoder accepts fixed-geometry YUV 4:2:0 payloads over a byte-stream
// sink to ffmpeg and waits for it to finish. Write must be called with
// payloads of exactly the constructed width and height; Finish must be
// called exactly once, on every path after construction succeeds.
type FrameEncoder struct {
	cmd    *exec.Cmd
	stdin  *streamWriter
	stderr *bytes.Buffer
	width  int
	height int

	finished bool
	failed   bool
}

// New starts ffmpeg configured to read raw planar YUV 4:2:0 frames of the
// given geometry and rate from stdin, and to write H.264-in-MP4 to
// outputPath at the given crf and preset name. Construction failure is
// EncoderInit.
func New(outputPath string, width, height int, fps float64, crf int, presetName string) (*FrameEncoder, error) {
	args := buildFfmpegArgs(outputPath, width, height, fps, crf, presetName)
	cmd := exec.Command(ffmpegBinary, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewEncoderInitError("failed to create ffmpeg stdin pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, errors.NewEncoderInitError(fmt.Sprintf("failed to start %s", ffmpegBinary), err)
	}

	return &FrameEncoder{
		cmd:    cmd,
		stdin:  &streamWriter{w: pipe},
		stderr: &stderr,
		width:  width,
		height: height,
	}, nil
}

func buildFfmpegArgs(outputPath string, width, height int, fps float64, crf int, presetName string) []string {
	return []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "yuv420p",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", fmt.Sprintf("%g", fps),
		"-i", "-",
		"-c:v", "libx264",
		"-preset", presetName,
		"-crf", fmt.Sprintf("%d", crf),
		outputPath,
	}
}

// Write sends payload's exact byte sequence to ffmpeg's stdin. A partial
// or failed write is EncoderIo and terminal for the encoder: subsequent
// calls to Write write nothing and return an EncoderIo error. Finish still
// closes ffmpeg's stdin and waits for it to exit.
func (e *FrameEncoder) Write(payload media.YuvPayload) error {
	if e.failed {
		return errors.NewEncoderIoError("encoder already failed", nil)
	}
	if err := payload.Validate(); err != nil {
		e.failed = true
		return errors.NewEncoderIoError(err.Error(), nil)
	}

	if err := e.stdin.Write(payload.Data); err != nil {
		e.failed = true
		return errors.NewEncoderIoError("failed to write frame to ffmpeg stdin", err)
	}
	return nil
}

// Finish closes ffmpeg's stdin and waits for it to exit. Idempotent: the
// second and later calls are no-ops returning nil. A non-success exit is
// EncoderIo, with ffmpeg's stderr attached when available.
func (e *FrameEncoder) Finish() error {
	if e.finished {
		return nil
	}
	e.finished = true

	_ = e.stdin.Close()

	if err := e.cmd.Wait(); err != nil {
		return errors.WrapExecError("encoder", ffmpegBinary, err, e.stderr.String())
	}
	return nil
}

// streamWriter wraps an io.WriteCloser so it can be closed exactly once
// regardless of how many times Close is called.
type streamWriter struct {
	w      interface {
		Write(p []byte) (int, error)
		Close() error
	}
	closed bool
}

func (s *streamWriter) Write(p []byte) error {
	_, err := s.w.Write(p)
	return err
}

func (s *streamWriter) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
