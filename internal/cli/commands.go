package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crbraun/irsdkrec/internal/api"
	"github.com/crbraun/irsdkrec/internal/db"
	"github.com/crbraun/irsdkrec/internal/irsdk"
	"github.com/crbraun/irsdkrec/internal/model"
	"github.com/crbraun/irsdkrec/internal/policy"
	"github.com/crbraun/irsdkrec/internal/recorder"
	"github.com/crbraun/irsdkrec/internal/replay"
	"github.com/crbraun/irsdkrec/internal/sink"
	"github.com/crbraun/irsdkrec/internal/watch"
)

func (r *Runner) replayCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>",
		Short: "Record a scripted scenario to the output files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runReplay(cmd.Context(), args[0], jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func (r *Runner) runReplay(ctx context.Context, path string, jsonOut bool) error {
	scenario, err := replay.Load(path)
	if err != nil {
		return err
	}
	rec, mem, closeArchive, err := r.newRecorder(ctx, scenario.TickRate)
	if err != nil {
		return err
	}
	defer closeArchive()

	if err := rec.Start(); err != nil {
		return err
	}
	playErr := replay.NewPlayer(scenario, mem, rec, r.log).Run(ctx)
	if err := rec.Stop(); err != nil {
		return err
	}
	failures := drainFailures(rec)

	summary := api.RecordingSummary{
		SchemaVersion:   api.SchemaVersion,
		GeneratedAt:     time.Now().UTC(),
		RunID:           rec.RunID(),
		Frames:          len(scenario.Frames),
		CatalogHash:     irsdk.CatalogFingerprint(scenario.Catalog()),
		SessionInfoPath: r.cfg.SessionInfoPath(),
		TelemetryPath:   r.cfg.TelemetryPath(),
		Failures:        failures,
	}
	if jsonOut {
		if err := r.writeJSON(summary); err != nil {
			return err
		}
	} else {
		_, _ = fmt.Fprintf(r.out, "run %s: %d frames\n", summary.RunID, summary.Frames)
		_, _ = fmt.Fprintf(r.out, "  session info: %s\n", summary.SessionInfoPath)
		_, _ = fmt.Fprintf(r.out, "  telemetry:    %s\n", summary.TelemetryPath)
		for _, f := range failures {
			_, _ = fmt.Fprintf(r.errOut, "%s loop failed: %s\n", f.Stream, f.Message)
		}
	}
	if playErr != nil {
		return fmt.Errorf("replay: %w", playErr)
	}
	if len(failures) > 0 {
		return fmt.Errorf("%d recorder loop(s) failed", len(failures))
	}
	return nil
}

func (r *Runner) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <session-info.yaml>",
		Short: "Record session info changes of a YAML file until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.runWatch(cmd.Context(), args[0])
		},
	}
}

func (r *Runner) runWatch(ctx context.Context, path string) error {
	rec, mem, closeArchive, err := r.newRecorder(ctx, replay.DefaultTickRate)
	if err != nil {
		return err
	}
	defer closeArchive()

	w, err := watch.New(path, mem, rec, r.cfg.WatchDebounce, r.log)
	if err != nil {
		return err
	}
	defer w.Stop()
	if err := rec.Start(); err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		_ = rec.Stop()
		return err
	}
	_, _ = fmt.Fprintf(r.out, "watching %s (run %s)\n", path, rec.RunID())

	var failed int
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case err := <-rec.Failures():
			failed++
			_, _ = fmt.Fprintf(r.errOut, "%v\n", err)
			if !rec.Running(model.StreamSessionInfo) {
				break loop
			}
		}
	}
	w.Stop()
	if err := rec.Stop(); err != nil {
		return err
	}
	for _, f := range drainFailures(rec) {
		failed++
		_, _ = fmt.Fprintf(r.errOut, "%s loop failed: %s\n", f.Stream, f.Message)
	}
	_, _ = fmt.Fprintf(r.out, "stopped after %d document(s)\n", w.Loaded())
	if failed > 0 {
		return fmt.Errorf("%d recorder loop(s) failed", failed)
	}
	return nil
}

func (r *Runner) runsCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List archived recording runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := r.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			runs, err := store.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOut {
				env := api.RunsEnvelope{SchemaVersion: api.SchemaVersion, GeneratedAt: time.Now().UTC(), Runs: []api.RunResponse{}}
				for _, run := range runs {
					env.Runs = append(env.Runs, api.FromRun(run))
				}
				return r.writeJSON(env)
			}
			for _, run := range runs {
				stopped := "running"
				if run.StoppedAt != nil {
					stopped = run.StoppedAt.Sub(run.StartedAt).Round(time.Millisecond).String()
				}
				_, _ = fmt.Fprintf(r.out, "%s\t%s\t%s\n", run.RunID, run.StartedAt.Format(time.RFC3339), stopped)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func (r *Runner) blocksCommand() *cobra.Command {
	var (
		runID   string
		stream  string
		limit   int
		jsonOut bool
	)
	cmd := &cobra.Command{
		Use:   "blocks",
		Short: "Print archived change blocks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s model.Stream
			if stream != "" {
				parsed, err := model.ParseStream(stream)
				if err != nil {
					return err
				}
				s = parsed
			}
			store, err := r.requireArchive(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close() //nolint:errcheck
			blocks, err := store.ListBlocks(cmd.Context(), runID, s, limit)
			if err != nil {
				return err
			}
			if jsonOut {
				env := api.BlocksEnvelope{SchemaVersion: api.SchemaVersion, GeneratedAt: time.Now().UTC(), Blocks: []api.BlockResponse{}}
				for _, b := range blocks {
					env.Blocks = append(env.Blocks, api.FromBlock(b))
				}
				return r.writeJSON(env)
			}
			for _, b := range blocks {
				_, _ = fmt.Fprintf(r.out, "# run=%s stream=%s seq=%d tick=%d", b.RunID, b.Stream, b.Seq, b.Tick)
				_, _ = fmt.Fprint(r.out, sink.FormatBlock(b.Block))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "only blocks of this run")
	cmd.Flags().StringVar(&stream, "stream", "", "session_info or telemetry")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of blocks (0 = all)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

func (r *Runner) policyCommand() *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Print the effective throttle and suppression policy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := policy.Load(r.cfg.PolicyPath)
			if err != nil {
				return err
			}
			source := r.cfg.PolicyPath
			if source == "" {
				source = "built-in"
			}
			env := api.FromPolicy(p, source, time.Now().UTC())
			if jsonOut {
				return r.writeJSON(env)
			}
			_, _ = fmt.Fprintf(r.out, "policy: %s\n", env.Source)
			_, _ = fmt.Fprintln(r.out, "throttled:")
			for _, iv := range env.Throttled {
				_, _ = fmt.Fprintf(r.out, "  %-20s %ds\n", iv.Name, iv.Seconds)
			}
			_, _ = fmt.Fprintf(r.out, "suppressed (%d):\n", len(env.Suppressed))
			_, _ = fmt.Fprintf(r.out, "  %s\n", strings.Join(env.Suppressed, " "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output JSON")
	return cmd
}

// newRecorder wires a recorder over a fresh in-memory source using the
// loaded config. The returned func closes the archive, if any.
func (r *Runner) newRecorder(ctx context.Context, tickRate int) (*recorder.Recorder, *irsdk.Memory, func(), error) {
	p, err := policy.Load(r.cfg.PolicyPath)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := r.openArchive(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := recorder.Options{
		SessionInfoPath: r.cfg.SessionInfoPath(),
		TelemetryPath:   r.cfg.TelemetryPath(),
		BufferSize:      r.cfg.BufferSize,
		Policy:          p,
		Logger:          r.log,
		FailureBuffer:   r.cfg.FailureBuffer,
	}
	closeArchive := func() {}
	if store != nil {
		opts.Archive = store
		closeArchive = func() {
			if err := store.Close(); err != nil {
				r.log.Warn("close archive", zap.Error(err))
			}
		}
	}
	mem := irsdk.NewMemory(tickRate)
	return recorder.New(mem, opts), mem, closeArchive, nil
}

func (r *Runner) requireArchive(ctx context.Context) (*db.Store, error) {
	if r.cfg.ArchivePath == "" {
		return nil, errors.New("no archive configured (use --archive or archive_path)")
	}
	return r.openArchive(ctx)
}

func drainFailures(rec *recorder.Recorder) []api.LoopFailure {
	var out []api.LoopFailure
	for {
		select {
		case err := <-rec.Failures():
			f := api.LoopFailure{Message: err.Error()}
			var lerr *recorder.LoopError
			if errors.As(err, &lerr) {
				f.Stream = string(lerr.Stream)
				f.Message = lerr.Err.Error()
			}
			out = append(out, f)
		default:
			return out
		}
	}
}
