// Package recorder drives the session-info and telemetry pipelines. Each runs
// in its own goroutine, waits on its signal, diffs the current snapshot and
// writes a change block when anything changed.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/logging"
	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/policy"
	"github.com/crbraun/irsdkrec/internal/sessioninfo"
	"github.com/crbraun/irsdkrec/internal/sink"
	"github.com/crbraun/irsdkrec/internal/telemetry"
)

const (
	DefaultSessionInfoPath = "SessionInfo.txt"
	DefaultTelemetryPath   = "TelemetryData.txt"
	DefaultFailureBuffer   = 8
)

// Archive persists runs and their blocks alongside the text files.
// *db.Store implements it.
type Archive interface {
	sink.BlockAppender
	InsertRun(ctx context.Context, run model.Run) error
	FinishRun(ctx context.Context, runID string, stoppedAt time.Time) error
}

type Options struct {
	SessionInfoPath string
	TelemetryPath   string
	BufferSize      int
	Policy          *policy.Policy
	Logger          *zap.Logger
	Archive         Archive
	FailureBuffer   int
}

// ErrLoopPanic wraps a panic recovered from a diff cycle.
var ErrLoopPanic = errors.New("diff cycle panicked")

// LoopError is delivered on Failures when a pipeline stops on its own.
type LoopError struct {
	Stream model.Stream
	Err    error
}

func (e *LoopError) Error() string {
	return fmt.Sprintf("%s loop: %v", e.Stream, e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}

type Recorder struct {
	src      irsdk.Source
	opts     Options
	log      *zap.Logger
	failures chan error

	mu      sync.Mutex
	state   model.RecorderState
	runID   string
	stop    chan struct{}
	group   *errgroup.Group
	archive Archive
	infoSig *irsdk.Signal
	telSig  *irsdk.Signal

	infoRunning atomic.Bool
	telRunning  atomic.Bool
	infoCycles  atomic.Uint64
	telCycles   atomic.Uint64
}

func New(src irsdk.Source, opts Options) *Recorder {
	if opts.SessionInfoPath == "" {
		opts.SessionInfoPath = DefaultSessionInfoPath
	}
	if opts.TelemetryPath == "" {
		opts.TelemetryPath = DefaultTelemetryPath
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = sink.DefaultBufferSize
	}
	if opts.FailureBuffer <= 0 {
		opts.FailureBuffer = DefaultFailureBuffer
	}
	return &Recorder{
		src:      src,
		opts:     opts,
		log:      logging.OrNop(opts.Logger),
		failures: make(chan error, opts.FailureBuffer),
		state:    model.RecorderStopped,
	}
}

// Failures reports loop-ending errors as *LoopError. The channel is never
// closed; failures are dropped when it is full.
func (r *Recorder) Failures() <-chan error {
	return r.failures
}

func (r *Recorder) State() model.RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// RunID is the id of the current or most recent run.
func (r *Recorder) RunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runID
}

// Running reports whether the loop for stream is alive.
func (r *Recorder) Running(stream model.Stream) bool {
	switch stream {
	case model.StreamSessionInfo:
		return r.infoRunning.Load()
	case model.StreamTelemetry:
		return r.telRunning.Load()
	}
	return false
}

// Cycles counts the diff cycles stream has completed since New.
func (r *Recorder) Cycles(stream model.Stream) uint64 {
	switch stream {
	case model.StreamSessionInfo:
		return r.infoCycles.Load()
	case model.StreamTelemetry:
		return r.telCycles.Load()
	}
	return 0
}

// Start truncates both output files and launches the two loops with fresh
// retained state.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != model.RecorderStopped {
		return model.ErrAlreadyStarted
	}

	runID := uuid.NewString()
	log := r.log.With(zap.String("run_id", runID))
	archive := r.opts.Archive
	if archive != nil {
		run := model.Run{
			RunID:           runID,
			StartedAt:       time.Now().UTC(),
			SessionInfoPath: r.opts.SessionInfoPath,
			TelemetryPath:   r.opts.TelemetryPath,
		}
		if err := archive.InsertRun(context.Background(), run); err != nil {
			log.Warn("archive disabled for run", zap.Error(err))
			archive = nil
		}
	}

	stop := make(chan struct{})
	pipelines := []*pipeline{
		{
			stream:  model.StreamSessionInfo,
			path:    r.opts.SessionInfoPath,
			signal:  irsdk.NewSignal(),
			running: &r.infoRunning,
			cycles:  &r.infoCycles,
			diff:    r.sessionInfoCycle(sessioninfo.NewDiffer()),
		},
		{
			stream:  model.StreamTelemetry,
			path:    r.opts.TelemetryPath,
			signal:  irsdk.NewSignal(),
			running: &r.telRunning,
			cycles:  &r.telCycles,
			diff:    r.telemetryCycle(telemetry.NewDiffer(r.opts.Policy), log.With(zap.String("stream", string(model.StreamTelemetry)))),
		},
	}

	r.runID = runID
	r.stop = stop
	r.archive = archive
	r.infoSig = pipelines[0].signal
	r.telSig = pipelines[1].signal
	r.group = new(errgroup.Group)
	r.state = model.RecorderRunning

	for _, p := range pipelines {
		p := p
		p.running.Store(true)
		r.group.Go(func() error {
			r.runLoop(p, runID, stop, archive, log)
			return nil
		})
	}
	log.Info("recorder started",
		zap.String("session_info_path", r.opts.SessionInfoPath),
		zap.String("telemetry_path", r.opts.TelemetryPath),
		zap.Bool("archive", archive != nil))
	return nil
}

// Stop signals both loops and blocks until they have finished their current
// cycle and closed their files.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if r.state != model.RecorderRunning {
		r.mu.Unlock()
		return model.ErrNotStarted
	}
	r.state = model.RecorderStopping
	stop, group := r.stop, r.group
	infoSig, telSig := r.infoSig, r.telSig
	runID, archive := r.runID, r.archive
	r.mu.Unlock()

	close(stop)
	infoSig.Raise()
	telSig.Raise()
	_ = group.Wait()

	if archive != nil {
		if err := archive.FinishRun(context.Background(), runID, time.Now().UTC()); err != nil {
			r.log.Warn("finish archived run", zap.String("run_id", runID), zap.Error(err))
		}
	}

	r.mu.Lock()
	r.infoSig, r.telSig = nil, nil
	r.stop, r.group, r.archive = nil, nil, nil
	r.state = model.RecorderStopped
	r.mu.Unlock()
	r.log.Info("recorder stopped", zap.String("run_id", runID))
	return nil
}

// NotifySessionInfo wakes the session-info loop. It is a no-op while stopped.
func (r *Recorder) NotifySessionInfo() {
	r.mu.Lock()
	sig := r.infoSig
	r.mu.Unlock()
	sig.Raise()
}

// NotifyTelemetry wakes the telemetry loop. It is a no-op while stopped.
func (r *Recorder) NotifyTelemetry() {
	r.mu.Lock()
	sig := r.telSig
	r.mu.Unlock()
	sig.Raise()
}

func (r *Recorder) fail(stream model.Stream, err error, log *zap.Logger) {
	lerr := &LoopError{Stream: stream, Err: err}
	log.Error("recorder loop failed", zap.Error(err))
	select {
	case r.failures <- lerr:
	default:
		log.Warn("failure channel full, dropping failure", zap.Error(err))
	}
}
