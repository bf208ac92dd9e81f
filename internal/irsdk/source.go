package irsdk

import "github.com/crbraun/irsdkrec/internal/sessioninfo"

// Telemetry is one read-only telemetry snapshot. Accessors are typed strictly
// by the declared kind of the variable.
type Telemetry interface {
	Vars() []Var
	GetChar(name string, index int) (byte, error)
	GetBool(name string, index int) (bool, error)
	GetInt(name string, index int) (int32, error)
	GetBitField(name string, index int) (uint32, error)
	GetFloat(name string, index int) (float32, error)
	GetDouble(name string, index int) (float64, error)
	TickCount() int
	TickRate() int
	SessionNum() int
	SessionTime() float64
}

// Source hands out the current snapshots. Either may be nil before the
// simulator has published anything. Callers must not modify what they get.
type Source interface {
	Telemetry() Telemetry
	SessionInfo() *sessioninfo.Node
}

// Signal is an edge-triggered, single-slot wake-up: raises that happen before
// the waiter consumes the previous one collapse into a single wake.
type Signal struct {
	ch chan struct{}
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Raise never blocks. A nil Signal ignores the raise.
func (s *Signal) Raise() {
	if s == nil {
		return
	}
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *Signal) C() <-chan struct{} {
	return s.ch
}
