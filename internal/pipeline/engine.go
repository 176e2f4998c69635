// Package pipeline coordinates the reader, GPU preprocessor, and encoder
// stages over two bounded queues, and aggregates their outcome into a
// single job result.
package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/five82/transcode/internal/errors"
	"github.com/five82/transcode/internal/media"
	"github.com/five82/transcode/internal/queue"
)

// FrameSource yields decoded frames in presentation order. Engine treats
// it as already constructed and open; Engine never opens or closes it.
type FrameSource interface {
	Geometry() media.Geometry
	Next() (media.Frame, bool, error)
}

// Preprocessor resizes and color-converts one frame per call. Engine
// treats it as already constructed; Engine never closes it.
type Preprocessor interface {
	Process(frame media.Frame, targetW, targetH int) (media.YuvPayload, error)
}

// Encoder accepts fixed-geometry YUV payloads and produces the final
// output file. Engine calls Finish exactly once, on every exit path.
type Encoder interface {
	Write(payload media.YuvPayload) error
	Finish() error
}

// ProgressSample reports job progress after one successfully encoded
// frame. Fraction and ETA are NaN when the source frame count is unknown
// or, for ETA, when fraction is zero.
type ProgressSample struct {
	Fraction float64
	Elapsed  float64
	ETA      float64
}

// Reporter receives one ProgressSample per successfully encoded frame.
// Report may be called from the encoder worker goroutine and must be
// safe to call from outside the caller's own goroutine.
type Reporter interface {
	Report(sample ProgressSample)
}

// Engine wires a FrameSource, Preprocessor, and Encoder together with two
// bounded queues and runs them to completion. The zero value is not
// usable; construct with New.
type Engine struct {
	source   FrameSource
	pre      Preprocessor
	enc      Encoder
	reporter Reporter

	targetW, targetH int
	queueCapacity    int

	mu       sync.Mutex
	firstErr error
}

// New constructs an Engine from already-open stages. targetW and
// targetH are the output geometry the preprocessor and encoder were
// configured for; queueCapacity bounds each of the two inter-stage
// queues.
func New(source FrameSource, pre Preprocessor, enc Encoder, reporter Reporter, targetW, targetH, queueCapacity int) *Engine {
	return &Engine{
		source:        source,
		pre:           pre,
		enc:           enc,
		reporter:      reporter,
		targetW:       targetW,
		targetH:       targetH,
		queueCapacity: queueCapacity,
	}
}

// Run starts the reader, preprocessor, and encoder workers, and blocks
// until all three have exited. It returns the first recorded
// PipelineError, or nil on success. Canceling ctx closes the reader's
// output queue and the job terminates with a Canceled error.
func (e *Engine) Run(ctx context.Context) error {
	q1 := queue.NewBounded[media.Frame](e.queueCapacity)
	q2 := queue.NewBounded[media.YuvPayload](e.queueCapacity)

	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			e.recordError(errors.NewCanceledError())
			q1.Close()
		case <-watcherDone:
		}
	}()

	t0 := time.Now()
	frameCountHint := e.source.Geometry().FrameCountHint

	readerDone := make(chan struct{})
	preDone := make(chan struct{})
	encDone := make(chan struct{})

	go func() {
		defer close(readerDone)
		e.runReader(q1)
	}()
	go func() {
		defer close(preDone)
		e.runPreprocessor(q1, q2)
	}()
	go func() {
		defer close(encDone)
		e.runEncoder(q2, t0, frameCountHint)
	}()

	<-readerDone
	<-preDone
	<-encDone

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstErr
}

func (e *Engine) recordError(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.firstErr == nil {
		e.firstErr = err
	}
}

// runReader pulls frames from the source and pushes them to q1. It closes
// q1 on EndOfStream, on a source error, or when q1 rejects a push because
// it was closed by a downstream failure or a cancellation.
func (e *Engine) runReader(q1 *queue.Bounded[media.Frame]) {
	for {
		frame, ok, err := e.source.Next()
		if err != nil {
			e.recordError(err)
			q1.Close()
			return
		}
		if !ok {
			q1.Close()
			return
		}
		if !q1.Push(frame) {
			return
		}
	}
}

// runPreprocessor pops frames from q1, resizes and color-converts them,
// and pushes the result to q2. A GPU error closes both queues so the
// reader unblocks and the encoder observes EndOfStream.
func (e *Engine) runPreprocessor(q1 *queue.Bounded[media.Frame], q2 *queue.Bounded[media.YuvPayload]) {
	for {
		frame, ok := q1.Pop()
		if !ok {
			q2.Close()
			return
		}

		payload, err := e.pre.Process(frame, e.targetW, e.targetH)
		if err != nil {
			e.recordError(err)
			q1.Close()
			q2.Close()
			return
		}

		if !q2.Push(payload) {
			q1.Close()
			return
		}
	}
}

// runEncoder pops payloads from q2 and writes them, reporting progress
// after each successful write. On EndOfStream it finishes the encoder.
// On a write error it records the error, closes and drains q2, and
// finishes the encoder best-effort before exiting.
func (e *Engine) runEncoder(q2 *queue.Bounded[media.YuvPayload], t0 time.Time, frameCountHint uint64) {
	var processed uint64

	for {
		payload, ok := q2.Pop()
		if !ok {
			if err := e.enc.Finish(); err != nil {
				e.recordError(err)
			}
			return
		}

		if err := e.enc.Write(payload); err != nil {
			e.recordError(err)
			q2.Close()
			drain(q2)
			_ = e.enc.Finish()
			return
		}

		processed++
		e.reporter.Report(computeProgress(processed, frameCountHint, time.Since(t0).Seconds()))
	}
}

// drain discards remaining payloads so an upstream producer blocked on a
// full q2 observes the close and exits rather than waiting on a consumer
// that has stopped popping.
func drain(q2 *queue.Bounded[media.YuvPayload]) {
	for {
		if _, ok := q2.Pop(); !ok {
			return
		}
	}
}

// computeProgress derives a ProgressSample from the processed-frame count
// and elapsed time. Fraction and ETA are NaN when frameCountHint is 0;
// ETA is also NaN at fraction 0, since 1/fraction is undefined there.
func computeProgress(processed, frameCountHint uint64, elapsed float64) ProgressSample {
	if frameCountHint == 0 {
		return ProgressSample{Fraction: math.NaN(), Elapsed: elapsed, ETA: math.NaN()}
	}

	fraction := math.Min(1, float64(processed)/float64(frameCountHint))
	eta := math.NaN()
	if fraction > 0 {
		eta = elapsed * (1/fraction - 1)
	}
	return ProgressSample{Fraction: fraction, Elapsed: elapsed, ETA: eta}
}
