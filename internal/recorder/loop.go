package recorder

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/sessioninfo"
	"github.com/crbraun/irsdkrec/internal/sink"
	"github.com/crbraun/irsdkrec/internal/telemetry"
)

// cycleFunc produces the block for one wake-up. ok is false when there was
// nothing to diff.
type cycleFunc func() (b model.Block, ok bool, err error)

type pipeline struct {
	stream  model.Stream
	path    string
	signal  *irsdk.Signal
	running *atomic.Bool
	cycles  *atomic.Uint64
	diff    cycleFunc
}

func (r *Recorder) runLoop(p *pipeline, runID string, stop <-chan struct{}, archive Archive, log *zap.Logger) {
	defer p.running.Store(false)
	log = log.With(zap.String("stream", string(p.stream)))

	out, err := r.openSink(p.path, archive, log)
	if err != nil {
		r.fail(p.stream, err, log)
		return
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warn("close sink", zap.Error(err))
		}
	}()
	log.Debug("loop started", zap.String("path", p.path))
	defer log.Debug("loop stopped")

	for {
		select {
		case <-stop:
			return
		case <-p.signal.C():
		}
		select {
		case <-stop:
			return
		default:
		}
		if err := runCycle(p, runID, out); err != nil {
			r.fail(p.stream, err, log)
			return
		}
		p.cycles.Add(1)
	}
}

func (r *Recorder) openSink(path string, archive Archive, log *zap.Logger) (sink.Sink, error) {
	file, err := sink.CreateFile(path, r.opts.BufferSize)
	if err != nil {
		return nil, err
	}
	if archive == nil {
		return file, nil
	}
	return sink.Tee(file, sink.BestEffort(sink.NewArchive(archive), func(err error) {
		log.Warn("archive write failed", zap.Error(err))
	})), nil
}

func runCycle(p *pipeline, runID string, out sink.Sink) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrLoopPanic, rec)
		}
	}()
	b, ok, err := p.diff()
	if err != nil {
		return err
	}
	if !ok || len(b.Lines) == 0 {
		return nil
	}
	b.RunID = runID
	b.Stream = p.stream
	b.RecordedAt = time.Now().UTC()
	return out.WriteBlock(b)
}

func (r *Recorder) telemetryCycle(d *telemetry.Differ, log *zap.Logger) cycleFunc {
	return func() (model.Block, bool, error) {
		t := r.src.Telemetry()
		if t == nil {
			return model.Block{}, false, nil
		}
		fresh := d.Table().Len() == 0
		lines, err := d.Diff(t)
		if err != nil {
			return model.Block{}, false, err
		}
		if fresh && d.Table().Len() > 0 {
			log.Info("telemetry catalog",
				zap.Int("vars", d.Table().Len()),
				zap.String("fingerprint", irsdk.CatalogFingerprint(t.Vars())))
		}
		return model.Block{
			SessionNum:  t.SessionNum(),
			SessionTime: t.SessionTime(),
			Tick:        t.TickCount(),
			Lines:       lines,
		}, true, nil
	}
}

// sessionInfoCycle stamps blocks with the session clock of the current
// telemetry snapshot, or 0:0 when there is none.
func (r *Recorder) sessionInfoCycle(d *sessioninfo.Differ) cycleFunc {
	return func() (model.Block, bool, error) {
		info := r.src.SessionInfo()
		if info == nil {
			return model.Block{}, false, nil
		}
		lines, err := d.Diff(info)
		if err != nil {
			return model.Block{}, false, fmt.Errorf("diff session info: %w", err)
		}
		b := model.Block{Lines: lines}
		if t := r.src.Telemetry(); t != nil {
			b.SessionNum = t.SessionNum()
			b.SessionTime = t.SessionTime()
			b.Tick = t.TickCount()
		}
		return b, true, nil
	}
}
