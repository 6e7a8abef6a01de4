// Command catalog-import loads products from a gzip-compressed JSON-lines
// file. Rows repeating an SKU already seen in the file are skipped, as are
// rows that conflict with the stored catalog.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"

	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/storage/postgres"
)

func main() {
	var (
		file        string
		databaseURL string
		workers     int
	)

	flag.StringVar(&file, "file", "data/products.jsonl.gz", "gzip-compressed JSON-lines product file")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&workers, "workers", 4, "number of concurrent writers")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, file, databaseURL, workers); err != nil {
		slog.Error("catalog import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog import completed successfully")
}

func run(ctx context.Context, file, databaseURL string, workers int) error {
	if _, err := os.Stat(file); err != nil {
		return errors.Wrapf(err, "check file %s", file)
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	imp := importer{
		products: product.NewService(postgres.NewProductRepository(pool), nil),
		workers:  workers,
	}
	stats, err := imp.Import(ctx, file)
	if err != nil {
		return err
	}

	slog.Info("import summary",
		slog.Int64("rows", stats.Rows),
		slog.Int64("created", stats.Created),
		slog.Int64("duplicates", stats.Duplicates),
		slog.Int64("conflicts", stats.Conflicts),
		slog.Int64("invalid", stats.Invalid),
	)
	return nil
}
