package telemetry

import (
	"fmt"
	"math"
	"strconv"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/policy"
)

// Differ compares each telemetry snapshot against its retained table. It is
// owned by a single goroutine.
type Differ struct {
	policy *policy.Policy
	table  *Table
}

func NewDiffer(p *policy.Policy) *Differ {
	return &Differ{policy: p, table: &Table{}}
}

func (d *Differ) Table() *Table {
	return d.table
}

// Reset drops the retained table; the next Diff rebuilds it from the catalog.
func (d *Differ) Reset() {
	d.table = &Table{}
}

// Diff returns one "name[index] = value" line for every element that changed
// and whose throttle window has elapsed, updating the retained value and
// last-update tick of each emitted element.
func (d *Differ) Diff(t irsdk.Telemetry) ([]string, error) {
	d.table.EnsureBuilt(t.Vars(), d.policy)

	tick := t.TickCount()
	rate := t.TickRate()
	var lines []string
	err := d.table.ForEach(func(s *Slot) error {
		if s.Suppressed {
			return nil
		}
		for i := 0; i < s.Var.Count; i++ {
			v, err := read(t, s.Var, i)
			if err != nil {
				return err
			}
			if sameValue(v, s.values[i]) || !s.eligible(i, tick, rate) {
				continue
			}
			s.store(i, tick, v)
			lines = append(lines, s.Var.Name+"["+strconv.Itoa(i)+"] = "+FormatValue(v))
		}
		return nil
	})
	if err != nil {
		return lines, fmt.Errorf("read telemetry: %w", err)
	}
	return lines, nil
}

func read(t irsdk.Telemetry, v irsdk.Var, index int) (any, error) {
	switch v.Type {
	case irsdk.Char:
		return t.GetChar(v.Name, index)
	case irsdk.Bool:
		return t.GetBool(v.Name, index)
	case irsdk.Int:
		return t.GetInt(v.Name, index)
	case irsdk.BitField:
		return t.GetBitField(v.Name, index)
	case irsdk.Float:
		return t.GetFloat(v.Name, index)
	case irsdk.Double:
		return t.GetDouble(v.Name, index)
	}
	return nil, fmt.Errorf("%w: %s has type %s", irsdk.ErrTypeMismatch, v.Name, v.Type)
}

// sameValue is exact equality, except that NaN equals NaN so a stuck NaN is
// not re-emitted every tick.
func sameValue(a, b any) bool {
	switch x := a.(type) {
	case float32:
		y, ok := b.(float32)
		if !ok {
			return false
		}
		return x == y || (math.IsNaN(float64(x)) && math.IsNaN(float64(y)))
	case float64:
		y, ok := b.(float64)
		if !ok {
			return false
		}
		return x == y || (math.IsNaN(x) && math.IsNaN(y))
	}
	return a == b
}

// FormatValue renders a telemetry value for the change log.
func FormatValue(v any) string {
	switch x := v.(type) {
	case byte:
		if x == 0 {
			return `\0`
		}
		return string(rune(x))
	case bool:
		return strconv.FormatBool(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case float32:
		return model.FormatFloat(float64(x), 32)
	case float64:
		return model.FormatFloat(x, 64)
	}
	return fmt.Sprint(v)
}
