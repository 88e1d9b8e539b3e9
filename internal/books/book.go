// Package books ties a transaction collection to the store it is loaded
// from and saved to, together with the user's settings.
package books

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/ledger"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
	"github.com/rs/zerolog"
)

// ErrNotLoaded is returned by Save while the last load failed, so a
// document that could not be read is never overwritten.
var ErrNotLoaded = errors.New("book is not loaded")

// Option configures a Book.
type Option func(*Book)

// WithLogger sets the logger for load and save reports.
func WithLogger(log zerolog.Logger) Option {
	return func(b *Book) {
		b.log = log
	}
}

// WithDecoderOptions configures how documents are decoded.
func WithDecoderOptions(opts ...xmlcodec.Option) Option {
	return func(b *Book) {
		b.decoderOpts = append(b.decoderOpts, opts...)
	}
}

// Book holds the live transactions of one document. Load, Save and Do are
// serialized; everything touching the collection from more than one
// goroutine must go through Do.
type Book struct {
	mu          sync.Mutex
	store       storage.Store
	decoderOpts []xmlcodec.Option
	decoder     *xmlcodec.Decoder
	encoder     *xmlcodec.Encoder
	log         zerolog.Logger

	txs      *ledger.Collection
	detach   func()
	metadata []xmlcodec.Setting
	skipped  []xmlcodec.RecordError
	loaded   bool

	events domain.Notifier[ledger.Event]
}

// New returns an empty, unloaded book backed by store.
func New(store storage.Store, opts ...Option) *Book {
	b := &Book{
		store:   store,
		encoder: xmlcodec.NewEncoder(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.decoder = xmlcodec.NewDecoder(append([]xmlcodec.Option{xmlcodec.WithLogger(b.log)}, b.decoderOpts...)...)
	b.attach(ledger.New())
	return b
}

// Open creates the document if it does not exist yet and loads it.
func Open(ctx context.Context, store storage.Store, opts ...Option) (*Book, error) {
	b := New(store, opts...)
	if err := store.EnsureCreated(ctx); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	if err := b.Load(ctx); err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}
	return b, nil
}

func (b *Book) attach(c *ledger.Collection) {
	if b.detach != nil {
		b.detach()
	}
	b.txs = c
	b.detach = c.Subscribe(func(e ledger.Event) {
		b.events.Notify(e)
	})
}

// Load replaces the transactions with the stored document. On failure the
// previous transactions are kept and LoadSucceeded reports false.
func (b *Book) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	log := b.log.With().Str("location", b.store.Location()).Logger()

	data, err := b.store.ReadAll(ctx)
	if err != nil {
		b.loaded = false
		log.Error().Err(err).Msg("Failed to read book")
		return fmt.Errorf("Load: %w", err)
	}

	doc, err := b.decoder.Decode(bytes.NewReader(data))
	if err != nil {
		b.loaded = false
		log.Error().Err(err).Msg("Failed to decode book")
		return fmt.Errorf("Load: %s: %w", b.store.Location(), err)
	}

	b.attach(ledger.New(doc.Transactions...))
	b.metadata = doc.Settings
	b.skipped = doc.Skipped
	b.loaded = true

	log.Info().
		Int("transactions", len(doc.Transactions)).
		Int("skipped", len(doc.Skipped)).
		Msg("Loaded book")
	return nil
}

// LoadSucceeded reports whether the last Load succeeded.
func (b *Book) LoadSucceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loaded
}

// Skipped returns the records the last successful Load left out.
func (b *Book) Skipped() []xmlcodec.RecordError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]xmlcodec.RecordError(nil), b.skipped...)
}

// Save writes every transaction, ordered by date paid, to the store. The
// live collection keeps its order. Saving twice writes the same document.
func (b *Book) Save(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.loaded {
		return fmt.Errorf("Save: %s: %w", b.store.Location(), ErrNotLoaded)
	}

	snapshot := b.txs.SortBy(domain.FieldDatePaid).All()

	var buf bytes.Buffer
	if err := b.encoder.Encode(&buf, snapshot, b.metadata); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := b.store.WriteAll(ctx, buf.Bytes()); err != nil {
		b.log.Error().Err(err).Str("location", b.store.Location()).Msg("Failed to save book")
		return fmt.Errorf("Save: %w", err)
	}

	b.log.Debug().
		Str("location", b.store.Location()).
		Int("transactions", len(snapshot)).
		Msg("Saved book")
	return nil
}

// Do runs fn on the live collection while holding the book lock.
func (b *Book) Do(fn func(*ledger.Collection) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return fn(b.txs)
}

// Transactions returns the live collection. It is replaced by Load.
func (b *Book) Transactions() *ledger.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.txs
}

// Subscribe registers fn for changes to the transactions. Subscriptions
// survive Load. Handlers run inside Do and must not call back into the
// book; neither may the returned function be called from inside Do.
func (b *Book) Subscribe(fn func(ledger.Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	remove := b.events.Subscribe(fn)
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		remove()
	}
}

// Store returns the store the book is kept in.
func (b *Book) Store() storage.Store {
	return b.store
}
