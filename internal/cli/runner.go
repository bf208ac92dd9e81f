// Package cli implements the irsdkrec command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/crbraun/irsdkrec/internal/config"
	"github.com/crbraun/irsdkrec/internal/db"
	"github.com/crbraun/irsdkrec/internal/logging"
)

type Runner struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	verbose     bool
	outputDir   string
	archivePath string
	policyPath  string

	cfg config.Config
	log *zap.Logger
}

func NewRunner(out, errOut io.Writer) *Runner {
	if out == nil {
		out = os.Stdout
	}
	if errOut == nil {
		errOut = os.Stderr
	}
	return &Runner{out: out, errOut: errOut}
}

// Run executes args and returns the process exit code.
func (r *Runner) Run(ctx context.Context, args []string) int {
	root := r.rootCommand()
	root.SetArgs(args)
	root.SetOut(r.out)
	root.SetErr(r.errOut)
	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(r.errOut, "error: %v\n", err)
		return 1
	}
	return 0
}

func (r *Runner) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "irsdkrec",
		Short:         "Record session info and telemetry changes from the iRacing SDK",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return r.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if r.log != nil {
				_ = r.log.Sync()
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVar(&r.configPath, "config", "", "config file (yaml)")
	flags.BoolVarP(&r.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&r.outputDir, "output-dir", "", "directory for SessionInfo.txt and TelemetryData.txt")
	flags.StringVar(&r.archivePath, "archive", "", "sqlite archive of recorded blocks")
	flags.StringVar(&r.policyPath, "policy", "", "throttle/suppression policy file (yaml)")

	root.AddCommand(
		r.replayCommand(),
		r.watchCommand(),
		r.runsCommand(),
		r.blocksCommand(),
		r.policyCommand(),
	)
	return root
}

// setup layers flags over the loaded config and builds the logger.
func (r *Runner) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(r.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("output-dir") {
		cfg.OutputDir = r.outputDir
	}
	if flags.Changed("archive") {
		cfg.ArchivePath = r.archivePath
	}
	if flags.Changed("policy") {
		cfg.PolicyPath = r.policyPath
	}
	if r.verbose {
		cfg.LogLevel = "debug"
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	r.cfg = cfg
	r.log = logger
	return nil
}

// openArchive opens and migrates the configured archive. It returns nil
// when no archive is configured.
func (r *Runner) openArchive(ctx context.Context) (*db.Store, error) {
	if r.cfg.ArchivePath == "" {
		return nil, nil
	}
	store, err := db.Open(ctx, r.cfg.ArchivePath)
	if err != nil {
		return nil, err
	}
	if err := db.ApplyMigrations(ctx, store.DB()); err != nil {
		store.Close() //nolint:errcheck
		return nil, err
	}
	return store, nil
}

func (r *Runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
