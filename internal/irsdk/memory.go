package irsdk

import (
	"fmt"
	"sync"

	"github.com/crbraun/irsdkrec/internal/sessioninfo"
)

// Frame is an immutable telemetry snapshot held by Memory.
type Frame struct {
	vars        []Var
	byName      map[string]int
	values      [][]any
	tickCount   int
	tickRate    int
	sessionNum  int
	sessionTime float64
}

func (f *Frame) Vars() []Var {
	return f.vars
}

func (f *Frame) TickCount() int { return f.tickCount }

func (f *Frame) TickRate() int { return f.tickRate }

// SessionNum prefers the SessionNum telemetry var when the catalog has one.
func (f *Frame) SessionNum() int {
	if v, err := f.GetInt("SessionNum", 0); err == nil {
		return int(v)
	}
	return f.sessionNum
}

// SessionTime prefers the SessionTime telemetry var when the catalog has one.
func (f *Frame) SessionTime() float64 {
	if v, err := f.GetDouble("SessionTime", 0); err == nil {
		return v
	}
	return f.sessionTime
}

func (f *Frame) lookup(name string, index int, want VarType) (any, error) {
	i, ok := f.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVar, name)
	}
	v := f.vars[i]
	if v.Type != want {
		return nil, fmt.Errorf("%w: %s is %s, read as %s", ErrTypeMismatch, name, v.Type, want)
	}
	if index < 0 || index >= v.Count {
		return nil, fmt.Errorf("%w: %s[%d] (count %d)", ErrIndexOutOfRange, name, index, v.Count)
	}
	return f.values[i][index], nil
}

func (f *Frame) GetChar(name string, index int) (byte, error) {
	v, err := f.lookup(name, index, Char)
	if err != nil {
		return 0, err
	}
	return v.(byte), nil
}

func (f *Frame) GetBool(name string, index int) (bool, error) {
	v, err := f.lookup(name, index, Bool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (f *Frame) GetInt(name string, index int) (int32, error) {
	v, err := f.lookup(name, index, Int)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (f *Frame) GetBitField(name string, index int) (uint32, error) {
	v, err := f.lookup(name, index, BitField)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func (f *Frame) GetFloat(name string, index int) (float32, error) {
	v, err := f.lookup(name, index, Float)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func (f *Frame) GetDouble(name string, index int) (float64, error) {
	v, err := f.lookup(name, index, Double)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (f *Frame) clone() *Frame {
	out := *f
	out.values = make([][]any, len(f.values))
	for i, vs := range f.values {
		out.values[i] = append([]any(nil), vs...)
	}
	return &out
}

// FrameWriter mutates a private copy of the current frame inside
// Memory.Apply.
type FrameWriter struct {
	f *Frame
}

// SetValue stores v, coerced to the var's kind, at index.
func (w *FrameWriter) SetValue(name string, index int, v any) error {
	i, ok := w.f.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownVar, name)
	}
	def := w.f.vars[i]
	if index < 0 || index >= def.Count {
		return fmt.Errorf("%w: %s[%d] (count %d)", ErrIndexOutOfRange, name, index, def.Count)
	}
	converted, err := ConvertValue(def.Type, v)
	if err != nil {
		return fmt.Errorf("set %s[%d]: %w", name, index, err)
	}
	w.f.values[i][index] = converted
	return nil
}

func (w *FrameWriter) SetTick(count int) {
	w.f.tickCount = count
}

func (w *FrameWriter) SetSession(num int, sessionTime float64) {
	w.f.sessionNum = num
	w.f.sessionTime = sessionTime
}

// Memory is a thread-safe in-memory Source. Every write publishes a new
// Frame; snapshots already handed out never change.
type Memory struct {
	mu       sync.RWMutex
	frame    *Frame
	info     *sessioninfo.Node
	tickRate int
}

func NewMemory(tickRate int) *Memory {
	return &Memory{tickRate: tickRate}
}

// SetVars replaces the catalog and resets every value to its zero value.
func (m *Memory) SetVars(vars []Var) error {
	if err := validateVars(vars); err != nil {
		return err
	}
	f := &Frame{
		vars:     append([]Var(nil), vars...),
		byName:   make(map[string]int, len(vars)),
		values:   make([][]any, len(vars)),
		tickRate: m.tickRate,
	}
	for i, v := range vars {
		f.byName[v.Name] = i
		f.values[i] = make([]any, v.Count)
		for j := range f.values[i] {
			f.values[i][j] = v.Type.Zero()
		}
	}
	m.mu.Lock()
	if m.frame != nil {
		f.tickCount = m.frame.tickCount
		f.sessionNum = m.frame.sessionNum
		f.sessionTime = m.frame.sessionTime
	}
	m.frame = f
	m.mu.Unlock()
	return nil
}

// Apply runs fn against a copy of the current frame and publishes it when fn
// succeeds.
func (m *Memory) Apply(fn func(w *FrameWriter) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.frame == nil {
		return fmt.Errorf("telemetry catalog not set")
	}
	next := m.frame.clone()
	if err := fn(&FrameWriter{f: next}); err != nil {
		return err
	}
	m.frame = next
	return nil
}

func (m *Memory) SetValue(name string, index int, v any) error {
	return m.Apply(func(w *FrameWriter) error {
		return w.SetValue(name, index, v)
	})
}

func (m *Memory) SetTick(count int) error {
	return m.Apply(func(w *FrameWriter) error {
		w.SetTick(count)
		return nil
	})
}

func (m *Memory) SetTickRate(rate int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tickRate = rate
	if m.frame != nil {
		next := m.frame.clone()
		next.tickRate = rate
		m.frame = next
	}
}

func (m *Memory) SetSessionInfo(n *sessioninfo.Node) {
	m.mu.Lock()
	m.info = n
	m.mu.Unlock()
}

func (m *Memory) Telemetry() Telemetry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.frame == nil {
		return nil
	}
	return m.frame
}

func (m *Memory) SessionInfo() *sessioninfo.Node {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.info
}
