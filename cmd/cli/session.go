package main

import (
	"context"
	"time"

	"github.com/dvloznov/bookkeeper/internal/books"
	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/jobs/inmemory"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

// session is an opened book with its settings, as every command needs.
type session struct {
	ctx       context.Context
	cancel    context.CancelFunc
	cfg       *config.Config
	log       zerolog.Logger
	book      *books.Book
	settings  *books.SettingsStore
	runner    *books.Runner
	autosaver *books.Autosaver
	closers   []func()
}

func openSession(cfg *config.Config, log zerolog.Logger, timeout time.Duration, opts ...books.Option) *session {
	ctx, cancel := contextWithLogger(log, timeout)
	s := &session{ctx: ctx, cancel: cancel, cfg: cfg, log: log}

	dataStore, closeData, err := storage.Open(ctx, cfg, cfg.DataFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open data store")
	}
	s.closers = append(s.closers, closeData)

	settingsStore, closeSettings, err := storage.Open(ctx, cfg, cfg.SettingsFile)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open settings store")
	}
	s.closers = append(s.closers, closeSettings)

	opts = append([]books.Option{books.WithLogger(log)}, opts...)
	if cfg.LenientDates {
		opts = append(opts, books.WithDecoderOptions(xmlcodec.WithBestEffortDates(time.Now)))
	}
	s.book, err = books.Open(ctx, dataStore, opts...)
	if err != nil {
		log.Fatal().Err(err).Str("location", dataStore.Location()).Msg("Failed to load book")
	}
	for _, skipped := range s.book.Skipped() {
		log.Warn().Int64("transaction_id", skipped.ID).Str("reason", skipped.Reason).Msg("Transaction skipped")
	}

	s.settings = books.NewSettingsStore(settingsStore)
	if _, err := s.settings.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load settings")
	}

	s.runner = books.NewRunner(s.book, inmemory.NewStore(), books.WithRunnerLogger(log))
	if err := s.runner.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job runner")
	}
	s.closers = append(s.closers, func() { s.runner.Stop(context.Background()) })
	s.autosaver = books.NewAutosaver(s.book, s.settings, s.runner, log)
	return s
}

// commit writes the book after a change the way the settings ask for: the
// saves queued by auto save are awaited, then save on close runs. With
// both settings off the command saves explicitly.
func (s *session) commit() {
	current := s.settings.Get()
	if err := s.autosaver.Flush(s.ctx); err != nil {
		s.log.Fatal().Err(err).Msg("Auto save failed")
	}
	if err := s.autosaver.Close(s.ctx); err != nil {
		s.log.Fatal().Err(err).Msg("Failed to save book")
	}
	if current.AutoSave || current.SaveOnClose {
		return
	}

	s.log.Debug().Msg("Auto save and save on close are off, saving explicitly")
	if err := s.book.Save(s.ctx); err != nil {
		s.log.Fatal().Err(err).Msg("Failed to save book")
	}
}

func (s *session) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.cancel()
}
