package main

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/promo-engine/internal/domain"
	"github.com/xenking/promo-engine/internal/domain/product"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000
	maxLineBytes  = 1 << 20
)

// record is one line of the import file.
type record struct {
	Name        string          `json:"name"`
	Slug        string          `json:"slug"`
	SKU         string          `json:"sku"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Weight      int64           `json:"weight"`
	Currency    string          `json:"currency"`
	IsEnabled   *bool           `json:"isEnabled"`
}

func (r record) request() product.CreateRequest {
	return product.CreateRequest{
		Name:        r.Name,
		Slug:        r.Slug,
		SKU:         r.SKU,
		Description: r.Description,
		Price:       r.Price,
		WeightGrams: r.Weight,
		Currency:    r.Currency,
		Active:      r.IsEnabled,
	}
}

// Stats counts import outcomes.
type Stats struct {
	Rows       int64
	Created    int64
	Duplicates int64
	Conflicts  int64
	Invalid    int64
}

type importer struct {
	products *product.Service
	workers  int
}

// Import streams the file twice. Pass 1 adds every SKU to a bloom filter and
// keeps the SKUs the filter had already seen as candidates. Pass 2 confirms
// candidates exactly and sends every first occurrence to the writers.
func (imp importer) Import(ctx context.Context, path string) (*Stats, error) {
	slog.Info("pass 1: building SKU filter", slog.String("file", path))

	candidates, err := findCandidates(ctx, path)
	if err != nil {
		return nil, errors.Wrap(err, "find duplicate candidates")
	}
	slog.Info("pass 1 complete", slog.Int("candidates", len(candidates)))

	slog.Info("pass 2: importing products", slog.Int("workers", imp.workers))

	var stats Stats
	rows := make(chan record, imp.workers*2)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(rows)
		seen := make(map[string]struct{}, len(candidates))
		return streamRecords(gctx, path, func(r record) error {
			n := atomic.AddInt64(&stats.Rows, 1)
			if n%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Int64("rows", n))
			}
			if _, ok := candidates[r.SKU]; ok {
				if _, dup := seen[r.SKU]; dup {
					atomic.AddInt64(&stats.Duplicates, 1)
					slog.Warn("duplicate sku skipped", slog.String("sku", r.SKU))
					return nil
				}
				seen[r.SKU] = struct{}{}
			}
			select {
			case rows <- r:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})
	for range max(imp.workers, 1) {
		g.Go(func() error {
			for r := range rows {
				if err := imp.create(gctx, r, &stats); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return &stats, errors.Wrap(err, "import products")
	}
	return &stats, nil
}

// create stores one record. Invalid and conflicting rows are counted and
// skipped; other failures abort the import.
func (imp importer) create(ctx context.Context, r record, stats *Stats) error {
	_, err := imp.products.Create(ctx, r.request())
	switch {
	case err == nil:
		atomic.AddInt64(&stats.Created, 1)
	case errors.Is(err, domain.ErrConflict):
		atomic.AddInt64(&stats.Conflicts, 1)
		slog.Warn("conflicting product skipped", slog.String("sku", r.SKU), slog.String("error", err.Error()))
	case errors.Is(err, domain.ErrInvalidInput):
		atomic.AddInt64(&stats.Invalid, 1)
		slog.Warn("invalid product skipped", slog.String("sku", r.SKU), slog.String("error", err.Error()))
	default:
		return errors.Wrapf(err, "create product %s", r.SKU)
	}
	return nil
}

// findCandidates returns every SKU that may occur more than once. It holds
// true duplicates and the filter's false positives.
func findCandidates(ctx context.Context, path string) (map[string]struct{}, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	candidates := make(map[string]struct{})

	err := streamRecords(ctx, path, func(r record) error {
		if filter.TestOrAddString(r.SKU) {
			candidates[r.SKU] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// streamRecords opens a gzip-compressed JSON-lines file and calls fn for each
// record. Blank lines are ignored.
func streamRecords(ctx context.Context, path string, fn func(record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r record
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return errors.Wrapf(err, "parse line %d", line)
		}
		if err := fn(r); err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
