package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/bookkeeper/internal/books"
	"github.com/dvloznov/bookkeeper/internal/config"
	infraBQ "github.com/dvloznov/bookkeeper/internal/infra/bigquery"
	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

const jobTimeout = 10 * time.Minute

func runSettings(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Println("Usage: cli settings [key=value ...]")
		fmt.Printf("Keys: %s, %s, %s, %s\n", books.KeyMaximizeWindow, books.KeyAutoSave, books.KeySaveOnClose, books.KeyMinimizeToTray)
	}
	fs.Parse(args)

	s := openSession(cfg, log, commandTimeout)
	defer s.close()

	current := s.settings.Get()
	if fs.NArg() > 0 {
		var err error
		current, err = s.settings.Update(s.ctx, func(st *books.Settings) error {
			for _, arg := range fs.Args() {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if err := st.Set(key, value); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to change settings")
		}
	}

	fmt.Printf("%-18s %v\n", books.KeyMaximizeWindow, current.MaximizeWindow)
	fmt.Printf("%-18s %v\n", books.KeyAutoSave, current.AutoSave)
	fmt.Printf("%-18s %v\n", books.KeySaveOnClose, current.SaveOnClose)
	fmt.Printf("%-18s %v\n", books.KeyMinimizeToTray, current.MinimizeToTray)
}

func runBackup(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	object := fs.String("object", "", "GCS object to back up to (defaults to <dir of GCS_OBJECT>/backup/<data file>)")
	fs.Parse(args)

	s := openSession(cfg, log, jobTimeout)
	defer s.close()

	backup, closeBackup, err := storage.OpenBackup(s.ctx, cfg, *object)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backup store")
	}
	defer closeBackup()

	job := runJob(s, jobs.JobTypeBackup, books.WithBackupStore(backup))
	fmt.Printf("Backed up %s to %s (job %s)\n", s.book.Store().Location(), job.Location, job.JobID)
}

func runRestore(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	object := fs.String("object", "", "GCS object to restore from (defaults to the backup location)")
	fs.Parse(args)

	s := openSession(cfg, log, jobTimeout)
	defer s.close()

	backup, closeBackup, err := storage.OpenBackup(s.ctx, cfg, *object)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open backup store")
	}
	defer closeBackup()

	// The backup has to decode before it replaces anything.
	data, err := backup.ReadAll(s.ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read backup")
	}
	doc, err := xmlcodec.NewDecoder(xmlcodec.WithLogger(log)).Decode(bytes.NewReader(data))
	if err != nil {
		log.Fatal().Err(err).Str("location", backup.Location()).Msg("Backup is not a readable book")
	}

	if err := storage.Copy(s.ctx, s.book.Store(), backup); err != nil {
		log.Fatal().Err(err).Msg("Restore failed")
	}
	if err := s.book.Load(s.ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load restored book")
	}

	fmt.Printf("Restored %d transactions from %s (%d skipped)\n", len(doc.Transactions), backup.Location(), len(doc.Skipped))
}

func runExport(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.Parse(args)

	exporter := newExporter(cfg, log)
	defer exporter.Close()

	s := openSession(cfg, log, jobTimeout)
	defer s.close()

	job := runJob(s, jobs.JobTypeExport, books.WithExporter(exporter))
	fmt.Printf("Exported %d transactions to %s.%s.%s (job %s)\n",
		s.book.Transactions().Len(), cfg.BQProject, cfg.BQDataset, cfg.BQTable, job.JobID)
}

func runReport(cfg *config.Config, log zerolog.Logger, args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	year := fs.Int("year", time.Now().Year(), "Year to report on")
	fs.Parse(args)

	exporter := newExporter(cfg, log)
	defer exporter.Close()

	ctx, cancel := contextWithLogger(log, commandTimeout)
	defer cancel()

	totals, err := exporter.MonthlyTotals(ctx, *year)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query monthly totals")
	}

	fmt.Printf("=== %d (latest export) ===\n", *year)
	fmt.Printf("%-10s  %12s  %12s\n", "Month", "Income", "Expense")
	for _, m := range totals {
		fmt.Printf("%-10s  %12s  %12s\n", time.Month(m.Month), ratString(m.Income), ratString(m.Expense))
	}
}

// runJob executes one job of type t on a runner of its own and waits for
// it to finish.
func runJob(s *session, t jobs.JobType, opts ...books.RunnerOption) *jobs.BookJob {
	opts = append(opts, books.WithRunnerLogger(s.log))
	runner := books.NewRunner(s.book, inmemory.NewStore(), opts...)
	if err := runner.Start(s.ctx); err != nil {
		s.log.Fatal().Err(err).Msg("Failed to start job runner")
	}
	defer runner.Stop(s.ctx)

	job, err := runner.Submit(s.ctx, t)
	if err != nil {
		s.log.Fatal().Err(err).Msg("Failed to queue job")
	}
	done, err := runner.Wait(s.ctx, job.JobID)
	if err != nil {
		s.log.Fatal().Err(err).Msg("Job did not finish")
	}
	if done.Status == jobs.JobStatusFailed {
		s.log.Fatal().Str("job_id", done.JobID).Int("retries", done.RetryCount).Str("error", done.Error).Msg("Job failed")
	}
	return done
}

func newExporter(cfg *config.Config, log zerolog.Logger) *infraBQ.Exporter {
	if cfg.BQProject == "" {
		log.Fatal().Msg("BQ_PROJECT is required")
	}
	// The client outlives this call, so it gets an uncancelled context.
	exporter, err := infraBQ.NewExporter(context.Background(), cfg.BQProject, cfg.BQDataset, cfg.BQTable, cfg.ClientOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery exporter")
	}
	return exporter
}
