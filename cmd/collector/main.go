package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"econdash/internal/config"
	"econdash/internal/dataset"
	"econdash/internal/export"
	"econdash/internal/logging"
	"econdash/internal/metrics"
	"econdash/internal/model"
	"econdash/internal/providers/fred"
	"econdash/internal/store"
	"econdash/internal/store/postgres"
	"econdash/internal/store/sqlite"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "collector",
	Short: "Fetch FRED indicators and record assembly runs",
	Long: `collector assembles every catalog indicator from FRED, prints a
summary per indicator and records the run in the ledger.

Examples:
  collector run
  collector run --ledger postgres --db postgres://localhost/econdash
  collector runs --limit 5`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var runFlags struct {
	db          string
	ledger      string
	concurrency int
	metricsOut  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Assemble the dataset once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runCollector(cmd.Context(), cmd.OutOrStdout(), cfg, runFlags.metricsOut)
	},
}

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent assembly runs from the ledger",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return listRuns(cmd.Context(), cmd.OutOrStdout(), cfg, runsLimit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "HCL config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&runFlags.db, "db", "", "ledger DSN or sqlite path (empty disables the ledger)")
	rootCmd.PersistentFlags().StringVar(&runFlags.ledger, "ledger", "", "ledger driver: sqlite or postgres")

	runCmd.Flags().IntVar(&runFlags.concurrency, "concurrency", 0, "parallel fetches (1 = sequential)")
	runCmd.Flags().StringVar(&runFlags.metricsOut, "metrics-out", "", "write Prometheus metrics to this textfile")
	runsCmd.Flags().IntVar(&runsLimit, "limit", store.DefaultListLimit, "number of runs to list")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(runsCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "collector failed:", err)
		os.Exit(1)
	}
}

// loadConfig resolves the config file and environment, then applies
// explicitly set flags on top.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("ledger") {
		cfg.Ledger.Driver = strings.TrimSpace(runFlags.ledger)
	}
	if flags.Changed("db") {
		cfg.Ledger.DSN = strings.TrimSpace(runFlags.db)
		if cfg.Ledger.DSN == "" {
			cfg.Ledger.Driver = config.LedgerNone
		}
	}
	if flags.Changed("concurrency") {
		cfg.Assembly.Concurrency = runFlags.concurrency
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func runCollector(ctx context.Context, out io.Writer, cfg config.Config, metricsOut string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ledger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	cfg.Fred.Logger = logger
	provider, err := fred.NewWithConfig(cfg.Fred)
	if err != nil {
		return err
	}
	defer provider.Close()

	recorder := metrics.NewRecorder()
	assembler, err := dataset.NewAssembler(provider, dataset.Options{
		HistoryYears: cfg.Assembly.HistoryYears,
		Concurrency:  cfg.Assembly.Concurrency,
		Logger:       logger,
		Metrics:      recorder,
	})
	if err != nil {
		return err
	}

	run := model.Run{
		ID:        uuid.NewString(),
		Provider:  provider.Name(),
		StartedAt: time.Now().UTC(),
	}
	run.WindowStart, run.WindowEnd = assembler.Window()

	ds, assembleErr := assembler.Assemble(ctx)
	run.FinishedAt = time.Now().UTC()
	if assembleErr != nil {
		run.Status = model.RunFailed
		run.Error = assembleErr.Error()
	} else {
		run.Status = model.RunSucceeded
		run.Fetches = ds.Records()
		printSummary(out, ds)
	}

	if err := ledger.RecordRun(ctx, run); err != nil {
		logger.Error("record run failed", zap.String("run_id", run.ID), zap.Error(err))
		if assembleErr == nil {
			return fmt.Errorf("record run: %w", err)
		}
	}
	if metricsOut != "" {
		if err := recorder.WriteTextfile(metricsOut); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if assembleErr != nil {
		return assembleErr
	}

	fmt.Fprintf(out, "collector run complete (provider=%s run=%s indicators=%d window=%s..%s)\n",
		run.Provider,
		run.ID,
		len(run.Fetches),
		run.WindowStart.Format(model.DateLayout),
		run.WindowEnd.Format(model.DateLayout),
	)
	return nil
}

func printSummary(out io.Writer, ds *dataset.Dataset) {
	for _, entry := range ds.Catalog {
		s, ok := ds.Get(entry.Indicator)
		if !ok {
			continue
		}
		last, ok := s.Last()
		if !ok {
			fmt.Fprintf(out, "%-22s %-9s points=0\n", entry.Indicator, entry.SeriesID)
			continue
		}
		first, _ := s.First()
		value := export.FormatValue(last.Value)
		if s.Percentage {
			value += "%"
		}
		fmt.Fprintf(out, "%-22s %-9s points=%d first=%s last=%s value=%s\n",
			entry.Indicator,
			entry.SeriesID,
			s.Len(),
			first.Date.Format(model.DateLayout),
			last.Date.Format(model.DateLayout),
			value,
		)
	}
}

func listRuns(ctx context.Context, out io.Writer, cfg config.Config, limit int) error {
	if cfg.Ledger.Driver == config.LedgerNone {
		return errors.New("ledger is disabled")
	}
	ledger, err := openLedger(ctx, cfg.Ledger)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "no runs recorded")
		return nil
	}
	for _, run := range runs {
		points := 0
		for _, fetch := range run.Fetches {
			points += fetch.Points
		}
		line := fmt.Sprintf("%s %-9s started=%s duration=%s indicators=%d points=%d",
			run.ID,
			run.Status,
			run.StartedAt.Format(time.RFC3339),
			run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond),
			len(run.Fetches),
			points,
		)
		if run.Error != "" {
			line += " error=" + run.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

func openLedger(ctx context.Context, cfg config.LedgerConfig) (store.Store, error) {
	switch cfg.Driver {
	case config.LedgerNone:
		return &store.NopStore{}, nil
	case config.LedgerSQLite:
		if strings.TrimSpace(cfg.DSN) == "" {
			return &store.NopStore{}, nil
		}
		return sqlite.New(cfg.DSN)
	case config.LedgerPostgres:
		return postgres.New(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: unknown ledger driver %q", config.ErrInvalid, cfg.Driver)
	}
}
