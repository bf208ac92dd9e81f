package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/logging"
	"github.com/crbraun/irsdkrec/internal/model"
)

// Target is the recorder surface the player drives. *recorder.Recorder
// implements it.
type Target interface {
	NotifySessionInfo()
	NotifyTelemetry()
	Cycles(stream model.Stream) uint64
	Running(stream model.Stream) bool
}

type Player struct {
	scenario *Scenario
	mem      *irsdk.Memory
	target   Target
	log      *zap.Logger
	poll     time.Duration
}

func NewPlayer(s *Scenario, mem *irsdk.Memory, target Target, logger *zap.Logger) *Player {
	return &Player{
		scenario: s,
		mem:      mem,
		target:   target,
		log:      logging.OrNop(logger),
		poll:     time.Millisecond,
	}
}

// Run publishes every frame in order. After each publish it waits until the
// matching loop has finished a cycle, so every frame is diffed exactly once.
// A stream whose loop has stopped is skipped.
func (p *Player) Run(ctx context.Context) error {
	p.mem.SetTickRate(p.scenario.TickRate)
	if err := p.mem.SetVars(p.scenario.catalog); err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	for i := range p.scenario.Frames {
		f := &p.scenario.Frames[i]
		if err := ctx.Err(); err != nil {
			return err
		}
		err := p.mem.Apply(func(w *irsdk.FrameWriter) error {
			w.SetTick(f.Tick)
			if f.SessionNum != nil || f.SessionTime != nil {
				num, tm := 0, float64(f.Tick)/float64(p.scenario.TickRate)
				if f.SessionNum != nil {
					num = *f.SessionNum
				}
				if f.SessionTime != nil {
					tm = *f.SessionTime
				}
				w.SetSession(num, tm)
			}
			for name, values := range f.Values {
				for j, v := range values {
					if err := w.SetValue(name, j, v); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}

		if f.HasSessionInfo() {
			p.mem.SetSessionInfo(f.info)
			if err := p.deliver(ctx, model.StreamSessionInfo); err != nil {
				return err
			}
		}
		if err := p.deliver(ctx, model.StreamTelemetry); err != nil {
			return err
		}
		p.log.Debug("frame replayed", zap.Int("frame", i), zap.Int("tick", f.Tick))
	}
	return nil
}

func (p *Player) deliver(ctx context.Context, stream model.Stream) error {
	if !p.target.Running(stream) {
		return nil
	}
	before := p.target.Cycles(stream)
	switch stream {
	case model.StreamSessionInfo:
		p.target.NotifySessionInfo()
	case model.StreamTelemetry:
		p.target.NotifyTelemetry()
	}

	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	for {
		if p.target.Cycles(stream) > before || !p.target.Running(stream) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
