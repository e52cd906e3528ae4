// Command coupon-seed provisions a local database with membership tiers,
// demo users, and a handful of demo coupons for manual testing.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/verdora/coupon-engine/internal/domain/coupon"
	"github.com/verdora/coupon-engine/internal/repository"
)

const (
	upsertTierSQL = `INSERT INTO membership_tiers (id, name)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

	upsertUserSQL = `INSERT INTO users (id, email, membership_tier_id, created_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (id) DO UPDATE SET
		email = EXCLUDED.email,
		membership_tier_id = EXCLUDED.membership_tier_id,
		created_at = EXCLUDED.created_at`
)

type seedUser struct {
	id      string
	email   string
	tierID  string
	created time.Time
}

type seedCoupon struct {
	code        string
	kind        coupon.DiscountType
	value       string
	maxDiscount string
	usageLimit  int
	setName     string
	conditions  []coupon.ConditionDetail
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
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

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedTiers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed membership tiers")
	}
	if err := seedUsers(ctx, pool); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedCoupons(ctx, coupon.NewService(repository.NewCouponRepository(pool))); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedTiers(ctx context.Context, pool *pgxpool.Pool) error {
	tiers := map[string]string{
		"bronze": "Bronze",
		"silver": "Silver",
		"gold":   "Gold",
	}
	for id, name := range tiers {
		if _, err := pool.Exec(ctx, upsertTierSQL, id, name); err != nil {
			return errors.Wrapf(err, "upsert tier %s", id)
		}
		slog.Info("upserted tier", slog.String("id", id))
	}
	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now()
	users := []seedUser{
		{id: "user-alice", email: "alice@example.com", tierID: "gold", created: now.AddDate(-2, 0, 0)},
		{id: "user-bob", email: "bob@example.com", tierID: "silver", created: now.AddDate(0, 0, -90)},
		{id: "user-carol", email: "carol@example.com", tierID: "bronze", created: now.Add(-time.Hour)},
	}
	for _, u := range users {
		if _, err := pool.Exec(ctx, upsertUserSQL, u.id, u.email, u.tierID, u.created); err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}
		slog.Info("upserted user", slog.String("id", u.id), slog.String("tier", u.tierID))
	}
	return nil
}

func seedCoupons(ctx context.Context, svc *coupon.Service) error {
	now := time.Now()
	coupons := []seedCoupon{
		{
			code: "SALE10", kind: coupon.DiscountPercent, value: "10", maxDiscount: "30",
			usageLimit: 1000, setName: "Orders over $100",
			conditions: []coupon.ConditionDetail{
				{Type: coupon.ConditionMinOrderValue, Value: "100.00"},
			},
		},
		{
			code: "NEWBIE5", kind: coupon.DiscountFixed, value: "5",
			usageLimit: 5000, setName: "New users only",
			conditions: []coupon.ConditionDetail{
				{Type: coupon.ConditionNewUser, Value: "true"},
			},
		},
		{
			code: "WEEKEND15", kind: coupon.DiscountPercent, value: "15", maxDiscount: "50",
			usageLimit: 2000, setName: "Weekend orders",
			conditions: []coupon.ConditionDetail{
				{Type: coupon.ConditionDayOfWeek, Value: "SAT,SUN"},
			},
		},
		{
			code: "GOLDONLY", kind: coupon.DiscountPercent, value: "20",
			usageLimit: 500, setName: "Gold members",
			conditions: []coupon.ConditionDetail{
				{Type: coupon.ConditionTier, Value: "gold"},
			},
		},
		{
			code: "HAPPYHRS", kind: coupon.DiscountPercent, value: "18",
			usageLimit: 300, setName: "Happy hours",
			conditions: []coupon.ConditionDetail{
				{Type: coupon.ConditionHourOfDay, Value: "17:00-19:00"},
			},
		},
	}

	for _, c := range coupons {
		value, err := decimal.NewFromString(c.value)
		if err != nil {
			return errors.Wrapf(err, "parse value for %s", c.code)
		}
		var maxDiscount decimal.NullDecimal
		if c.maxDiscount != "" {
			md, err := decimal.NewFromString(c.maxDiscount)
			if err != nil {
				return errors.Wrapf(err, "parse max discount for %s", c.code)
			}
			maxDiscount = decimal.NewNullDecimal(md)
		}

		_, err = svc.Create(ctx, coupon.CreateRequest{
			Code:        c.code,
			Type:        c.kind,
			Value:       value,
			MaxDiscount: maxDiscount,
			StartTime:   now.AddDate(0, 0, -1),
			EndTime:     now.AddDate(1, 0, 0),
			UsageLimit:  c.usageLimit,
			SetName:     c.setName,
			SetReusable: true,
			Details:     c.conditions,
		})
		if err != nil {
			if errors.Is(err, coupon.ErrCodeExists) {
				slog.Info("coupon already exists, skipping", slog.String("code", c.code))
				continue
			}
			return errors.Wrapf(err, "create coupon %s", c.code)
		}
		slog.Info("created coupon", slog.String("code", c.code))
	}
	return nil
}
