// Package telemetry keeps a retained copy of every telemetry variable and
// reports the array elements that changed since they were last emitted.
package telemetry

import (
	"math"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/policy"
)

// neverUpdated marks an element that has not been emitted yet; such an
// element emits on its first change regardless of throttling.
const neverUpdated = math.MinInt

// Slot is the retained state of one telemetry variable.
type Slot struct {
	Var             irsdk.Var
	IntervalSeconds int
	Suppressed      bool

	values   []any
	lastTick []int
}

func newSlot(v irsdk.Var, p *policy.Policy) *Slot {
	s := &Slot{
		Var:             v,
		IntervalSeconds: p.IntervalSeconds(v.Name),
		Suppressed:      p.IsSuppressed(v.Name),
		values:          make([]any, v.Count),
		lastTick:        make([]int, v.Count),
	}
	for i := range s.values {
		s.values[i] = v.Type.Zero()
		s.lastTick[i] = neverUpdated
	}
	return s
}

// Value returns the last emitted value at index.
func (s *Slot) Value(index int) any {
	return s.values[index]
}

// LastUpdate returns the tick of the last emission at index.
func (s *Slot) LastUpdate(index int) (tick int, ok bool) {
	t := s.lastTick[index]
	if t == neverUpdated {
		return 0, false
	}
	return t, true
}

// eligible reports whether index may emit at tick. Each index has its own
// throttle window.
func (s *Slot) eligible(index, tick, tickRate int) bool {
	last := s.lastTick[index]
	if last == neverUpdated {
		return true
	}
	return last+s.IntervalSeconds*tickRate <= tick
}

func (s *Slot) store(index, tick int, v any) {
	s.values[index] = v
	s.lastTick[index] = tick
}

// Table holds one slot per catalog var, in catalog order. It is built once
// and never shrinks.
type Table struct {
	slots []*Slot
}

// EnsureBuilt allocates the slots on the first call with a non-empty
// catalog and reports whether it did so.
func (t *Table) EnsureBuilt(vars []irsdk.Var, p *policy.Policy) bool {
	if len(t.slots) > 0 {
		return false
	}
	for _, v := range vars {
		t.slots = append(t.slots, newSlot(v, p))
	}
	return len(t.slots) > 0
}

func (t *Table) ForEach(fn func(*Slot) error) error {
	for _, s := range t.slots {
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) Len() int {
	return len(t.slots)
}

// Lookup returns the slot for name, or nil.
func (t *Table) Lookup(name string) *Slot {
	for _, s := range t.slots {
		if s.Var.Name == name {
			return s
		}
	}
	return nil
}
