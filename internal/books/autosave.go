package books

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/bookkeeper/internal/jobs"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/rs/zerolog"
)

// queueTimeout bounds how long a change waits for room in the job queue.
// Changes arrive under the book lock, which the worker needs to save.
const queueTimeout = 100 * time.Millisecond

// Autosaver queues a save on every change to the book while the auto save
// setting is on. Saving never changes the transactions, so a save cannot
// trigger another one.
type Autosaver struct {
	book     *Book
	settings *SettingsStore
	runner   *Runner
	log      zerolog.Logger

	mu     sync.Mutex
	queued []string

	once        sync.Once
	unsubscribe func()
}

// NewAutosaver subscribes to book. The runner must be started for saves to
// happen.
func NewAutosaver(book *Book, settings *SettingsStore, runner *Runner, log zerolog.Logger) *Autosaver {
	a := &Autosaver{
		book:     book,
		settings: settings,
		runner:   runner,
		log:      log,
	}
	a.unsubscribe = book.Subscribe(a.onChange)
	return a
}

func (a *Autosaver) onChange(e ledger.Event) {
	if !a.settings.Get().AutoSave {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), queueTimeout)
	defer cancel()

	job, err := a.runner.Submit(ctx, jobs.JobTypeSave)
	if err != nil {
		a.log.Warn().Err(err).Str("event", e.Kind.String()).Msg("Auto save not queued, the next change or close saves instead")
		return
	}
	if job == nil {
		return
	}

	a.mu.Lock()
	a.queued = append(a.queued, job.JobID)
	a.mu.Unlock()
}

// Flush waits for the saves queued so far and reports those that failed.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	queued := a.queued
	a.queued = nil
	a.mu.Unlock()

	var errs []error
	for _, id := range queued {
		job, err := a.runner.Wait(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("Flush: %w", err))
			continue
		}
		if job.Status == jobs.JobStatusFailed {
			errs = append(errs, fmt.Errorf("Flush: save %s: %s", id, job.Error))
		}
	}
	return errors.Join(errs...)
}

// Close stops listening to the book, and saves it once more when the save
// on close setting is on.
func (a *Autosaver) Close(ctx context.Context) error {
	var err error
	a.once.Do(func() {
		a.unsubscribe()
		if !a.settings.Get().SaveOnClose {
			return
		}
		if saveErr := a.book.Save(ctx); saveErr != nil {
			err = fmt.Errorf("Close: %w", saveErr)
		}
	})
	return err
}
