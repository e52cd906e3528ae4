// Command coupon-import bulk-loads coupon codes from gzip-compressed code
// lists (one code per line) and registers each as a coupon bound to a shared
// condition set. Duplicate codes, within and across files, are skipped.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/verdora/coupon-engine/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
	minCodeLen    = 4
	maxCodeLen    = 32
)

const (
	insertSetSQL = `INSERT INTO condition_sets (id, name, is_reusable)
	VALUES ($1, $2, TRUE)
	ON CONFLICT (id) DO NOTHING`

	setExistsSQL = `SELECT EXISTS (SELECT 1 FROM condition_sets WHERE id = $1)`

	insertCodeSQL = `INSERT INTO coupons
	(id, code, discount_type, value, max_discount, start_time, end_time,
	 usage_limit, condition_set_id)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (UPPER(code)) DO NOTHING`
)

type options struct {
	databaseURL  string
	setID        string
	discountType string
	value        decimal.Decimal
	maxDiscount  decimal.NullDecimal
	usageLimit   int
	validDays    int
	files        []string
}

func main() {
	var (
		opts     options
		rawValue string
		rawMax   string
	)

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.setID, "condition-set", "", "existing condition set ID to bind (default: create an unconditional set)")
	flag.StringVar(&opts.discountType, "discount-type", "PERCENT", "discount type for imported codes (PERCENT or FIXED)")
	flag.StringVar(&rawValue, "value", "10", "discount value for imported codes")
	flag.StringVar(&rawMax, "max-discount", "", "discount cap for percentage codes (empty: no cap)")
	flag.IntVar(&opts.usageLimit, "usage-limit", 1, "usage limit per imported code")
	flag.IntVar(&opts.validDays, "valid-days", 365, "validity window in days, starting now")
	flag.Parse()

	opts.files = flag.Args()
	if len(opts.files) == 0 {
		slog.Error("at least one code-list file is required")
		os.Exit(1)
	}
	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	var err error
	if opts.value, err = decimal.NewFromString(rawValue); err != nil {
		slog.Error("invalid --value", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if rawMax != "" {
		md, err := decimal.NewFromString(rawMax)
		if err != nil {
			slog.Error("invalid --max-discount", slog.String("error", err.Error()))
			os.Exit(1)
		}
		opts.maxDiscount = decimal.NewNullDecimal(md)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, opts); err != nil {
		slog.Error("coupon import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon import completed successfully")
}

func run(ctx context.Context, opts options) error {
	for _, f := range opts.files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	setID, err := ensureConditionSet(ctx, pool, opts.setID)
	if err != nil {
		return errors.Wrap(err, "ensure condition set")
	}

	// One reader per file fans codes into a single writer. The writer owns
	// the bloom filter, so dedup needs no locking. A writer failure cancels
	// the group context, which unblocks any reader waiting on the channel.
	codes := make(chan string, 4096)
	g, ctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(ctx)

	for _, f := range opts.files {
		readers.Go(streamFile(rctx, f, codes))
	}
	g.Go(func() error {
		defer close(codes)
		return errors.Wrap(readers.Wait(), "read code lists")
	})
	g.Go(func() error {
		return writeCodes(ctx, pool, setID, opts, codes)
	})

	return g.Wait()
}

// ensureConditionSet returns the condition set to bind imported codes to,
// creating an unconditional reusable set when none is given.
func ensureConditionSet(ctx context.Context, pool *pgxpool.Pool, setID string) (string, error) {
	if setID != "" {
		var exists bool
		if err := pool.QueryRow(ctx, setExistsSQL, setID).Scan(&exists); err != nil {
			return "", errors.Wrapf(err, "check condition set %s", setID)
		}
		if !exists {
			return "", errors.Errorf("condition set %s does not exist", setID)
		}
		return setID, nil
	}

	id := uuid.New().String()
	if _, err := pool.Exec(ctx, insertSetSQL, id, "Imported codes"); err != nil {
		return "", errors.Wrap(err, "create condition set")
	}
	slog.Info("created unconditional condition set", slog.String("id", id))
	return id, nil
}

// streamFile reads a gzip-compressed code list line by line into out.
func streamFile(ctx context.Context, path string, out chan<- string) func() error {
	return func() error {
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

		var count uint64
		scanner := bufio.NewScanner(gz)
		for scanner.Scan() {
			code := scanner.Text()
			if len(code) < minCodeLen || len(code) > maxCodeLen {
				continue
			}
			count++
			if count%progressEvery == 0 {
				slog.Info("read progress", slog.String("file", path), slog.Uint64("codes", count))
			}
			select {
			case out <- code:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return errors.Wrapf(err, "scan %s", path)
		}

		slog.Info("file complete", slog.String("file", path), slog.Uint64("total_codes", count))
		return nil
	}
}

// writeCodes consumes codes, drops duplicates through the bloom filter, and
// inserts the rest. Codes already present in the database are left untouched.
func writeCodes(ctx context.Context, pool *pgxpool.Pool, setID string, opts options, codes <-chan string) error {
	seen := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
	start := time.Now()
	end := start.AddDate(0, 0, opts.validDays)

	var written, skipped uint64
	for code := range codes {
		if seen.TestOrAddString(code) {
			skipped++
			continue
		}

		_, err := pool.Exec(ctx, insertCodeSQL,
			uuid.New().String(), code, opts.discountType, opts.value, opts.maxDiscount,
			start, end, opts.usageLimit, setID,
		)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %s", code)
		}

		written++
		if written%progressEvery == 0 {
			slog.Info("write progress", slog.Uint64("written", written), slog.Uint64("skipped", skipped))
		}
	}

	slog.Info("write complete",
		slog.Uint64("written", written),
		slog.Uint64("skipped", skipped),
		slog.String("elapsed", fmt.Sprintf("%.1fs", time.Since(start).Seconds())),
	)
	return nil
}
