package recorder_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/policy"
	"github.com/crbraun/irsdkrec/internal/recorder"
	"github.com/crbraun/irsdkrec/internal/sessioninfo"
	"github.com/crbraun/irsdkrec/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const waitFor = 2 * time.Second

var fuelCatalog = []irsdk.Var{
	{Name: "SessionNum", Type: irsdk.Int, Count: 1},
	{Name: "SessionTime", Type: irsdk.Double, Count: 1, Unit: "s"},
	{Name: "FuelLevel", Type: irsdk.Float, Count: 1, Unit: "l"},
}

func newMemory(t *testing.T) *irsdk.Memory {
	t.Helper()
	mem := irsdk.NewMemory(60)
	require.NoError(t, mem.SetVars(fuelCatalog))
	return mem
}

func outputPaths(t *testing.T) (string, string) {
	dir := t.TempDir()
	return filepath.Join(dir, "SessionInfo.txt"), filepath.Join(dir, "TelemetryData.txt")
}

func startRecorder(t *testing.T, src irsdk.Source, opts recorder.Options) *recorder.Recorder {
	t.Helper()
	if opts.Policy == nil {
		opts.Policy = policy.Default()
	}
	rec := recorder.New(src, opts)
	require.NoError(t, rec.Start())
	t.Cleanup(func() {
		if rec.State() == model.RecorderRunning {
			_ = rec.Stop()
		}
	})
	return rec
}

func setFuel(t *testing.T, mem *irsdk.Memory, tick int, fuel float32) {
	t.Helper()
	require.NoError(t, mem.Apply(func(w *irsdk.FrameWriter) error {
		w.SetTick(tick)
		if err := w.SetValue("SessionTime", 0, float64(tick)/60); err != nil {
			return err
		}
		return w.SetValue("FuelLevel", 0, fuel)
	}))
}

// pulse raises the stream's signal and waits for the loop to finish the
// resulting cycle.
func pulse(t *testing.T, rec *recorder.Recorder, stream model.Stream) {
	t.Helper()
	before := rec.Cycles(stream)
	switch stream {
	case model.StreamTelemetry:
		rec.NotifyTelemetry()
	case model.StreamSessionInfo:
		rec.NotifySessionInfo()
	}
	require.Eventually(t, func() bool {
		return rec.Cycles(stream) > before
	}, waitFor, time.Millisecond, "no %s cycle completed", stream)
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func nextFailure(t *testing.T, rec *recorder.Recorder) *recorder.LoopError {
	t.Helper()
	select {
	case err := <-rec.Failures():
		var lerr *recorder.LoopError
		require.ErrorAs(t, err, &lerr)
		return lerr
	case <-time.After(waitFor):
		require.FailNow(t, "no failure reported")
		return nil
	}
}

func TestFuelLevelThrottledAcrossTicks(t *testing.T) {
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})

	setFuel(t, mem, 0, 39.5)
	pulse(t, rec, model.StreamTelemetry)
	assert.Equal(t, "\nSessionTime = 0:0.0000\nFuelLevel[0] = 39.5\n", readFile(t, telPath))

	setFuel(t, mem, 30, 39.25)
	pulse(t, rec, model.StreamTelemetry)
	assert.Equal(t, "\nSessionTime = 0:0.0000\nFuelLevel[0] = 39.5\n", readFile(t, telPath), "change inside the throttle window must not emit")

	setFuel(t, mem, 61, 39)
	pulse(t, rec, model.StreamTelemetry)

	require.NoError(t, rec.Stop())
	want := "\nSessionTime = 0:0.0000\nFuelLevel[0] = 39.5\n" +
		"\nSessionTime = 0:1.0167\nFuelLevel[0] = 39\n"
	assert.Equal(t, want, readFile(t, telPath))
	assert.Equal(t, "", readFile(t, infoPath))
}

func TestStartStopUsageErrors(t *testing.T) {
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := recorder.New(mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})

	require.ErrorIs(t, rec.Stop(), model.ErrNotStarted)
	assert.Equal(t, model.RecorderStopped, rec.State())

	require.NoError(t, rec.Start())
	require.ErrorIs(t, rec.Start(), model.ErrAlreadyStarted)
	assert.Equal(t, model.RecorderRunning, rec.State())

	require.NoError(t, rec.Stop())
	require.ErrorIs(t, rec.Stop(), model.ErrNotStarted)
	assert.Equal(t, model.RecorderStopped, rec.State())

	// signals are gone once stopped
	rec.NotifyTelemetry()
	rec.NotifySessionInfo()
}

func TestStopWhileBlockedClosesSinksAndRestartTruncates(t *testing.T) {
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})
	firstRun := rec.RunID()

	setFuel(t, mem, 0, 12)
	pulse(t, rec, model.StreamTelemetry)
	require.True(t, rec.Running(model.StreamTelemetry))
	require.True(t, rec.Running(model.StreamSessionInfo))

	require.NoError(t, rec.Stop())
	assert.False(t, rec.Running(model.StreamTelemetry))
	assert.False(t, rec.Running(model.StreamSessionInfo))
	assert.Contains(t, readFile(t, telPath), "FuelLevel[0] = 12\n")

	require.NoError(t, rec.Start())
	assert.NotEqual(t, firstRun, rec.RunID())
	require.Eventually(t, func() bool {
		st, err := os.Stat(telPath)
		return err == nil && st.Size() == 0
	}, waitFor, time.Millisecond)

	// fresh retained state: the unchanged value is emitted again
	pulse(t, rec, model.StreamTelemetry)
	require.NoError(t, rec.Stop())
	assert.Equal(t, "\nSessionTime = 0:0.0000\nFuelLevel[0] = 12\n", readFile(t, telPath))
}

func TestSinkOpenFailureOnlyStopsThatLoop(t *testing.T) {
	mem := newMemory(t)
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))
	telPath := filepath.Join(dir, "TelemetryData.txt")

	rec := startRecorder(t, mem, recorder.Options{
		SessionInfoPath: filepath.Join(blocker, "SessionInfo.txt"),
		TelemetryPath:   telPath,
	})

	lerr := nextFailure(t, rec)
	assert.Equal(t, model.StreamSessionInfo, lerr.Stream)
	assert.ErrorIs(t, lerr, model.ErrSinkOpen)
	require.Eventually(t, func() bool { return !rec.Running(model.StreamSessionInfo) }, waitFor, time.Millisecond)

	setFuel(t, mem, 0, 5)
	pulse(t, rec, model.StreamTelemetry)
	assert.True(t, rec.Running(model.StreamTelemetry))
	assert.Equal(t, model.RecorderRunning, rec.State())
	require.NoError(t, rec.Stop())
	assert.Contains(t, readFile(t, telPath), "FuelLevel[0] = 5\n")
}

func TestSessionInfoChangesWithoutTelemetry(t *testing.T) {
	mem := irsdk.NewMemory(60)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})

	// no telemetry yet: the cycle is a no-op
	pulse(t, rec, model.StreamTelemetry)

	mem.SetSessionInfo(sessioninfo.Aggregate(
		sessioninfo.Member{Name: "WeekendInfo", Value: sessioninfo.Aggregate(
			sessioninfo.Member{Name: "TrackName", Value: sessioninfo.String("spa")},
			sessioninfo.Member{Name: "TrackID", Value: sessioninfo.Int(163)},
		)},
	))
	pulse(t, rec, model.StreamSessionInfo)

	mem.SetSessionInfo(sessioninfo.Aggregate(
		sessioninfo.Member{Name: "WeekendInfo", Value: sessioninfo.Aggregate(
			sessioninfo.Member{Name: "TrackName", Value: sessioninfo.String("spa")},
			sessioninfo.Member{Name: "TrackID", Value: sessioninfo.Int(164)},
		)},
	))
	pulse(t, rec, model.StreamSessionInfo)
	pulse(t, rec, model.StreamSessionInfo)

	require.NoError(t, rec.Stop())
	want := "\nSessionTime = 0:0.0000\nWeekendInfo.TrackName = spa\nWeekendInfo.TrackID = 163\n" +
		"\nSessionTime = 0:0.0000\nWeekendInfo.TrackID = 164\n"
	assert.Equal(t, want, readFile(t, infoPath))
	assert.Equal(t, "", readFile(t, telPath))
}

func TestShapeConflictEndsSessionInfoLoop(t *testing.T) {
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})

	mem.SetSessionInfo(sessioninfo.Aggregate(sessioninfo.Member{Name: "DriverInfo", Value: sessioninfo.Aggregate(
		sessioninfo.Member{Name: "DriverCarIdx", Value: sessioninfo.Int(3)},
	)}))
	pulse(t, rec, model.StreamSessionInfo)

	mem.SetSessionInfo(sessioninfo.Aggregate(sessioninfo.Member{Name: "DriverInfo", Value: sessioninfo.String("gone")}))
	rec.NotifySessionInfo()

	lerr := nextFailure(t, rec)
	assert.Equal(t, model.StreamSessionInfo, lerr.Stream)
	assert.ErrorIs(t, lerr, model.ErrShapeInference)
	require.Eventually(t, func() bool { return !rec.Running(model.StreamSessionInfo) }, waitFor, time.Millisecond)

	setFuel(t, mem, 0, 7)
	pulse(t, rec, model.StreamTelemetry)
	require.NoError(t, rec.Stop())
	assert.Equal(t, "\nSessionTime = 0:0.0000\nDriverInfo.DriverCarIdx = 3\n", readFile(t, infoPath))
	assert.Contains(t, readFile(t, telPath), "FuelLevel[0] = 7\n")
}

type panicSource struct {
	irsdk.Source
}

func (panicSource) Telemetry() irsdk.Telemetry {
	panic("shared memory unmapped")
}

func TestPanicInCycleIsReported(t *testing.T) {
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, panicSource{Source: mem}, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath})

	rec.NotifyTelemetry()
	lerr := nextFailure(t, rec)
	assert.Equal(t, model.StreamTelemetry, lerr.Stream)
	assert.ErrorIs(t, lerr, recorder.ErrLoopPanic)
	require.Eventually(t, func() bool { return !rec.Running(model.StreamTelemetry) }, waitFor, time.Millisecond)
	assert.True(t, rec.Running(model.StreamSessionInfo))
}

func TestArchiveMirrorsBlocks(t *testing.T) {
	store, ctx := testutil.NewStore(t)
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath, Archive: store})

	setFuel(t, mem, 0, 39.5)
	pulse(t, rec, model.StreamTelemetry)
	setFuel(t, mem, 120, 38)
	pulse(t, rec, model.StreamTelemetry)
	runID := rec.RunID()
	require.NoError(t, rec.Stop())

	blocks, err := store.ListBlocks(ctx, runID, model.StreamTelemetry, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, []string{"FuelLevel[0] = 39.5"}, blocks[0].Lines)
	assert.Equal(t, []string{"FuelLevel[0] = 38"}, blocks[1].Lines)
	assert.Equal(t, 120, blocks[1].Tick)
	assert.InDelta(t, 2.0, blocks[1].SessionTime, 1e-9)

	run, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.NotNil(t, run.StoppedAt)
	assert.Equal(t, telPath, run.TelemetryPath)
}

type brokenArchive struct {
	appends atomic.Int32
}

func (a *brokenArchive) InsertRun(context.Context, model.Run) error {
	return errors.New("disk full")
}

func (a *brokenArchive) FinishRun(context.Context, string, time.Time) error {
	return nil
}

func (a *brokenArchive) AppendBlock(context.Context, model.Block) (string, error) {
	a.appends.Add(1)
	return "", nil
}

func TestArchiveFailureDoesNotStopRecording(t *testing.T) {
	archive := &brokenArchive{}
	mem := newMemory(t)
	infoPath, telPath := outputPaths(t)
	rec := startRecorder(t, mem, recorder.Options{SessionInfoPath: infoPath, TelemetryPath: telPath, Archive: archive})

	setFuel(t, mem, 0, 1)
	pulse(t, rec, model.StreamTelemetry)
	require.NoError(t, rec.Stop())

	assert.Zero(t, archive.appends.Load())
	assert.Contains(t, readFile(t, telPath), "FuelLevel[0] = 1\n")
	select {
	case err := <-rec.Failures():
		assert.NoError(t, err, "unexpected loop failure")
	default:
	}
}
