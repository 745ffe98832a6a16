// seed-db populates a development database: demo users with session tokens,
// a small product catalog, shipping zones and methods for Lagos and Abuja,
// store locations, and a handful of coupons.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/gadget-cartel/internal/repository"
)

func main() {
	var (
		databaseURL string
		pepper      string
		userToken   string
		adminToken  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&pepper, "token-pepper", "", "HMAC pepper for session token hashing (or CARTEL_TOKEN_PEPPER env)")
	flag.StringVar(&userToken, "user-token", "", "bearer token to seed for the demo user (or CARTEL_SEED_USER_TOKEN env)")
	flag.StringVar(&adminToken, "admin-token", "", "bearer token to seed for the admin user (or CARTEL_SEED_ADMIN_TOKEN env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if pepper == "" {
		pepper = os.Getenv("CARTEL_TOKEN_PEPPER")
	}
	if userToken == "" {
		userToken = os.Getenv("CARTEL_SEED_USER_TOKEN")
	}
	if adminToken == "" {
		adminToken = os.Getenv("CARTEL_SEED_ADMIN_TOKEN")
	}
	if userToken == "" || adminToken == "" {
		slog.Error("seed tokens are required: set --user-token and --admin-token")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, pepper, userToken, adminToken); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, pepper, userToken, adminToken string) error {
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

	if err := seedUsers(ctx, pool, pepper, userToken, adminToken); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedShipping(ctx, pool); err != nil {
		return errors.Wrap(err, "seed shipping")
	}
	if err := seedStoreLocations(ctx, pool); err != nil {
		return errors.Wrap(err, "seed store locations")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	return nil
}

func hashToken(pepper, token string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, pepper, userToken, adminToken string) error {
	slog.Info("seeding demo users and sessions")

	users := []struct {
		id, email, name, phone string
		isAdmin                bool
		token                  string
	}{
		{"user-demo", "ada@gadgetcartel.example", "Ada Obi", "+2348000000001", false, userToken},
		{"user-admin", "admin@gadgetcartel.example", "Cartel Admin", "+2348000000002", true, adminToken},
	}

	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, email, name, phone, is_admin)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET email = $2, name = $3, phone = $4, is_admin = $5`,
			u.id, u.email, u.name, u.phone, u.isAdmin)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}

		_, err = pool.Exec(ctx, `
			INSERT INTO sessions (token_hash, user_id, expires_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (token_hash) DO UPDATE SET user_id = $2, expires_at = $3`,
			hashToken(pepper, u.token), u.id, time.Now().AddDate(1, 0, 0))
		if err != nil {
			return errors.Wrapf(err, "upsert session for %s", u.id)
		}

		slog.Info("upserted user", slog.String("id", u.id), slog.Bool("admin", u.isAdmin))
	}

	_, err := pool.Exec(ctx, `
		INSERT INTO addresses (id, user_id, street, city, state, country)
		VALUES ('addr-demo', 'user-demo', '1 Marina Road', 'Lagos', 'Lagos', 'NG')
		ON CONFLICT (id) DO NOTHING`)
	return errors.Wrap(err, "upsert demo address")
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct {
		id, name, category string
		price              decimal.Decimal
	}{
		{"prod-mouse", "Wireless Mouse", "peripherals", decimal.NewFromInt(14500)},
		{"prod-keyboard", "Mechanical Keyboard", "peripherals", decimal.NewFromInt(62000)},
		{"prod-monitor", "27in 4K Monitor", "displays", decimal.NewFromInt(310000)},
		{"prod-headset", "Noise Cancelling Headset", "audio", decimal.NewFromInt(88000)},
		{"prod-hub", "USB-C Hub", "accessories", decimal.NewFromInt(25500)},
		{"prod-ssd", "1TB NVMe SSD", "storage", decimal.NewFromInt(115000)},
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, name, price, category, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, category = $4, is_active = TRUE`,
			p.id, p.name, p.price, p.category)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}
		slog.Info("upserted product", slog.String("id", p.id), slog.String("name", p.name))
	}
	return nil
}

func seedShipping(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding shipping zones, methods, and prices")

	_, err := pool.Exec(ctx, `
		INSERT INTO delivery_methods (id, name, type, price, is_active) VALUES
			('dm-standard', 'Standard Delivery', 'DELIVERY', 2500, TRUE),
			('dm-express',  'Express Delivery',  'DELIVERY', 6000, TRUE),
			('dm-pickup',   'Store Pickup',      'PICKUP',   0,    TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, is_active = TRUE`)
	if err != nil {
		return errors.Wrap(err, "upsert delivery methods")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO shipping_zones (id, name, state, city, is_active) VALUES
			('zone-lagos-metro', 'Lagos Metro',   'lagos', 'lagos', TRUE),
			('zone-lagos-state', 'Lagos State',   'lagos', NULL,    TRUE),
			('zone-abuja',       'Abuja / FCT',   'fct',   NULL,    TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = TRUE`)
	if err != nil {
		return errors.Wrap(err, "upsert shipping zones")
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO shipping_prices (id, zone_id, delivery_method_id, price, free_over, is_active) VALUES
			('sp-lagos-metro-std', 'zone-lagos-metro', 'dm-standard', 1500, 100000, TRUE),
			('sp-lagos-metro-exp', 'zone-lagos-metro', 'dm-express',  4000, NULL,   TRUE),
			('sp-lagos-state-std', 'zone-lagos-state', 'dm-standard', 2500, 150000, TRUE),
			('sp-abuja-std',       'zone-abuja',       'dm-standard', 3500, 200000, TRUE)
		ON CONFLICT (zone_id, delivery_method_id) DO UPDATE SET price = EXCLUDED.price, free_over = EXCLUDED.free_over, is_active = TRUE`)
	return errors.Wrap(err, "upsert shipping prices")
}

func seedStoreLocations(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding store locations")

	_, err := pool.Exec(ctx, `
		INSERT INTO store_locations (id, name, city, state, is_active) VALUES
			('store-ikeja', 'Ikeja City Mall',    'Lagos', 'Lagos', TRUE),
			('store-lekki', 'Lekki Flagship',     'Lagos', 'Lagos', TRUE),
			('store-wuse',  'Wuse 2 Experience',  'Abuja', 'FCT',   TRUE)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, is_active = TRUE`)
	return errors.Wrap(err, "upsert store locations")
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding coupons")

	coupons := []struct {
		id, code, discountType       string
		value, maxDiscount, minOrder decimal.Decimal
		usageLimit, perUserLimit     int
	}{
		{"cpn-welcome10", "WELCOME10", "percentage", decimal.NewFromInt(10), decimal.NewFromInt(20000), decimal.Zero, 0, 1},
		{"cpn-cartel5k", "CARTEL5K", "fixed", decimal.NewFromInt(5000), decimal.Zero, decimal.NewFromInt(50000), 1000, 0},
		{"cpn-bigspender", "BIGSPENDER", "percentage", decimal.NewFromInt(15), decimal.NewFromInt(100000), decimal.NewFromInt(250000), 500, 2},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, code, discount_type, discount_value, maximum_discount,
				minimum_order_amount, usage_limit, usage_limit_per_user, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, TRUE)
			ON CONFLICT (code) DO UPDATE SET discount_type = $3, discount_value = $4,
				maximum_discount = $5, minimum_order_amount = $6,
				usage_limit = $7, usage_limit_per_user = $8, is_active = TRUE`,
			c.id, c.code, c.discountType, c.value, c.maxDiscount, c.minOrder, c.usageLimit, c.perUserLimit)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}
	return nil
}
