// Command migrate moves the data and settings documents from one storage
// backend to another, e.g. from the local files to Postgres.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/bookkeeper/internal/config"
	"github.com/dvloznov/bookkeeper/internal/logger"
	"github.com/dvloznov/bookkeeper/internal/storage"
	"github.com/dvloznov/bookkeeper/internal/xmlcodec"
)

var (
	errSourceMissing = errors.New("source document does not exist")
	errTargetExists  = errors.New("target document already exists")
)

var (
	from   = flag.String("from", config.StoreFile, "Backend to read from (file, gcs or postgres)")
	to     = flag.String("to", "", "Backend to write to (file, gcs or postgres)")
	force  = flag.Bool("force", false, "Overwrite documents that already exist in the target")
	dryRun = flag.Bool("dry-run", false, "Check the source documents without writing")
)

func main() {
	flag.Parse()

	log := logger.New()
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	log = logger.NewConsole(os.Stderr, cfg.LogLevel)

	if *to == "" {
		log.Fatal().Msg("Error: -to flag is required")
	}
	if *to == *from {
		log.Fatal().Str("backend", *to).Msg("Error: -from and -to are the same backend")
	}

	srcCfg, err := withBackend(cfg, *from)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid source backend")
	}
	dstCfg, err := withBackend(cfg, *to)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid target backend")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	migrated := 0
	for _, name := range []string{cfg.DataFile, cfg.SettingsFile} {
		src, closeSrc, err := storage.Open(ctx, srcCfg, name)
		if err != nil {
			log.Fatal().Err(err).Str("name", name).Msg("Failed to open source")
		}
		dst, closeDst, err := storage.Open(ctx, dstCfg, name)
		if err != nil {
			log.Fatal().Err(err).Str("name", name).Msg("Failed to open target")
		}

		n, err := migrateDocument(ctx, src, dst, *force, *dryRun)
		closeSrc()
		closeDst()

		switch {
		case errors.Is(err, errSourceMissing):
			log.Info().Msgf("  [SKIP] %s (not in %s)", name, src.Location())
		case errors.Is(err, errTargetExists):
			log.Fatal().Err(err).Str("location", dst.Location()).Msg("Use -force to overwrite")
		case err != nil:
			log.Fatal().Err(err).Str("name", name).Msg("Migration failed")
		case *dryRun:
			log.Info().Msgf("  [DRY]  %s -> %s (%d transactions)", src.Location(), dst.Location(), n)
		default:
			log.Info().Msgf("  [OK]   %s -> %s (%d transactions)", src.Location(), dst.Location(), n)
			migrated++
		}
	}

	fmt.Printf("Migrated %d document(s) from %s to %s\n", migrated, *from, *to)
}

// withBackend returns a copy of cfg that selects backend.
func withBackend(cfg *config.Config, backend string) (*config.Config, error) {
	c := *cfg
	c.Store = backend
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// migrateDocument copies src to dst once src decodes, and returns the
// number of transactions it holds.
func migrateDocument(ctx context.Context, src, dst storage.Store, force, dryRun bool) (int, error) {
	ok, err := src.Exists(ctx)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%s: %w", src.Location(), errSourceMissing)
	}

	data, err := src.ReadAll(ctx)
	if err != nil {
		return 0, err
	}
	doc, err := xmlcodec.NewDecoder().Decode(bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", src.Location(), err)
	}
	if len(doc.Skipped) > 0 {
		return 0, fmt.Errorf("%s: %d transactions would be lost", src.Location(), len(doc.Skipped))
	}

	if !force {
		exists, err := dst.Exists(ctx)
		if err != nil {
			return 0, err
		}
		if exists {
			return 0, fmt.Errorf("%s: %w", dst.Location(), errTargetExists)
		}
	}
	if dryRun {
		return len(doc.Transactions), nil
	}

	if err := dst.WriteAll(ctx, data); err != nil {
		return 0, err
	}
	return len(doc.Transactions), nil
}
