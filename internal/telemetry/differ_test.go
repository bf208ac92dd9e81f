package telemetry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/policy"
)

var catalog = []irsdk.Var{
	{Name: "FuelLevel", Type: irsdk.Float, Count: 2},
	{Name: "Gear", Type: irsdk.Int, Count: 1},
	{Name: "OnPitRoad", Type: irsdk.Bool, Count: 1},
	{Name: "LapDistPct", Type: irsdk.Double, Count: 1},
}

func testPolicy() *policy.Policy {
	return policy.New(map[string]int{"FuelLevel": 1}, []string{"Gear"})
}

func newSource(t *testing.T) *irsdk.Memory {
	t.Helper()
	mem := irsdk.NewMemory(60)
	require.NoError(t, mem.SetVars(catalog))
	return mem
}

type sample struct {
	name  string
	index int
	value any
}

func step(t *testing.T, mem *irsdk.Memory, tick int, samples ...sample) irsdk.Telemetry {
	t.Helper()
	require.NoError(t, mem.Apply(func(w *irsdk.FrameWriter) error {
		w.SetTick(tick)
		for _, s := range samples {
			if err := w.SetValue(s.name, s.index, s.value); err != nil {
				return err
			}
		}
		return nil
	}))
	return mem.Telemetry()
}

func TestColdStartEmitsOnlyNonZeroValues(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(testPolicy())

	lines, err := d.Diff(step(t, mem, 0, sample{"FuelLevel", 0, 39.5}, sample{"OnPitRoad", 0, true}))
	require.NoError(t, err)
	assert.Equal(t, []string{"FuelLevel[0] = 39.5", "OnPitRoad[0] = true"}, lines)
	assert.Equal(t, len(catalog), d.Table().Len())

	lines, err = d.Diff(mem.Telemetry())
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestThrottleWindowIsPerIndex(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(testPolicy())

	diff := func(tick int, a, b float64) []string {
		lines, err := d.Diff(step(t, mem, tick, sample{"FuelLevel", 0, a}, sample{"FuelLevel", 1, b}))
		require.NoError(t, err)
		return lines
	}

	assert.Equal(t, []string{"FuelLevel[0] = 39.5"}, diff(0, 39.5, 0))
	// index 1 has never been emitted, so index 0's window does not hold it back
	assert.Equal(t, []string{"FuelLevel[1] = 5"}, diff(30, 39.25, 5))
	assert.Equal(t, []string{"FuelLevel[0] = 39"}, diff(61, 39, 6))
	assert.Equal(t, []string{"FuelLevel[1] = 6"}, diff(91, 39, 6))

	slot := d.Table().Lookup("FuelLevel")
	require.NotNil(t, slot)
	assert.Equal(t, float32(39), slot.Value(0))
	tick, ok := slot.LastUpdate(1)
	assert.True(t, ok)
	assert.Equal(t, 91, tick)
}

func TestThrottledValueIsRetainedOnlyOnEmit(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(testPolicy())

	_, err := d.Diff(step(t, mem, 0, sample{"FuelLevel", 0, 10}))
	require.NoError(t, err)
	lines, err := d.Diff(step(t, mem, 10, sample{"FuelLevel", 0, 11}))
	require.NoError(t, err)
	assert.Empty(t, lines)
	assert.Equal(t, float32(10), d.Table().Lookup("FuelLevel").Value(0))

	// back to the retained value before the window closes: nothing to report
	lines, err = d.Diff(step(t, mem, 70, sample{"FuelLevel", 0, 10}))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSuppressedVarsNeverEmit(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(testPolicy())
	for tick := 0; tick < 5; tick++ {
		lines, err := d.Diff(step(t, mem, tick, sample{"Gear", 0, tick + 1}))
		require.NoError(t, err)
		assert.Empty(t, lines)
	}
	assert.True(t, d.Table().Lookup("Gear").Suppressed)
	_, ok := d.Table().Lookup("Gear").LastUpdate(0)
	assert.False(t, ok)
}

func TestNaNIsNotReEmitted(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(nil)
	lines, err := d.Diff(step(t, mem, 1, sample{"LapDistPct", 0, math.NaN()}))
	require.NoError(t, err)
	assert.Equal(t, []string{"LapDistPct[0] = NaN"}, lines)

	lines, err = d.Diff(step(t, mem, 2))
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestResetRebuildsTable(t *testing.T) {
	mem := newSource(t)
	d := NewDiffer(nil)
	_, err := d.Diff(step(t, mem, 0, sample{"Gear", 0, 3}))
	require.NoError(t, err)
	d.Reset()
	assert.Zero(t, d.Table().Len())

	lines, err := d.Diff(mem.Telemetry())
	require.NoError(t, err)
	assert.Equal(t, []string{"Gear[0] = 3"}, lines)
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{byte('P'), "P"},
		{byte(0), `\0`},
		{false, "false"},
		{int32(-4), "-4"},
		{uint32(0x10), "16"},
		{float32(0.1), "0.1"},
		{float64(1.0167), "1.0167"},
		{float64(1234567.5), "1234567.5"},
		{float32(2500000), "2500000"},
		{float64(2e16), "2e+16"},
		{math.Inf(1), "+Inf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.in), "%T(%v)", tc.in, tc.in)
	}
}

func TestDefaultPolicySuppressionWinsOverThrottle(t *testing.T) {
	mem := irsdk.NewMemory(60)
	require.NoError(t, mem.SetVars([]irsdk.Var{
		{Name: "CarIdxRPM", Type: irsdk.Float, Count: 2},
		{Name: "FuelLevel", Type: irsdk.Float, Count: 1},
	}))
	d := NewDiffer(policy.Default())

	for tick := 0; tick <= 300; tick += 60 {
		lines, err := d.Diff(step(t, mem, tick,
			sample{"CarIdxRPM", 0, 3000 + tick},
			sample{"CarIdxRPM", 1, 4000 + tick},
			sample{"FuelLevel", 0, 40 - tick/60}))
		require.NoError(t, err)
		for _, line := range lines {
			assert.NotContains(t, line, "CarIdxRPM", "tick %d", tick)
		}
		assert.Len(t, lines, 1, "tick %d", tick)
	}
	slot := d.Table().Lookup("CarIdxRPM")
	require.NotNil(t, slot)
	assert.True(t, slot.Suppressed)
	assert.Equal(t, 1, slot.IntervalSeconds)
}
