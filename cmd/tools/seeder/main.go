package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/funroad-api/internal/config"
	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/obs"
)

// Development seeder: a couple of storefronts with sellable digital goods,
// the tag vocabulary, and demo buyers. Idempotent via ON CONFLICT upserts.
func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger("console", "info")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	if err := seed(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Msg("seeding completed")
}

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	tenants := []struct {
		Slug      string
		Name      string
		Account   string
		Submitted bool
	}{
		{"alice", "Alice's Studio", "acct_dev_alice", true},
		{"bob", "Bob's Type Foundry", "acct_dev_bob", true},
		{"carol", "Carol Makes Things", "", false},
	}
	tenantIDs := map[string]string{}
	for _, t := range tenants {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO tenants (slug, name, stripe_account_id, stripe_details_submitted)
			VALUES ($1, $2, NULLIF($3, ''), $4)
			ON CONFLICT (slug) DO UPDATE SET
				name = EXCLUDED.name,
				stripe_account_id = EXCLUDED.stripe_account_id,
				stripe_details_submitted = EXCLUDED.stripe_details_submitted
			RETURNING id`,
			t.Slug, t.Name, t.Account, t.Submitted).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed tenant %s: %w", t.Slug, err)
		}
		tenantIDs[t.Slug] = id
	}

	users := []struct {
		Email    string
		Username string
		Tenant   string
	}{
		{"alice@funroad.test", "alice", "alice"},
		{"bob@funroad.test", "bob", "bob"},
		{"buyer@funroad.test", "buyer", ""},
	}
	for _, u := range users {
		var tenantID any
		if u.Tenant != "" {
			tenantID = tenantIDs[u.Tenant]
		}
		if _, err := pool.Exec(ctx, `
			INSERT INTO users (email, username, roles, tenant_id)
			VALUES ($1, $2, ARRAY['user'], $3)
			ON CONFLICT (email) DO NOTHING`,
			u.Email, u.Username, tenantID); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}

	tags := []string{"design", "fonts", "icons", "templates", "courses", "ebooks", "music", "photography"}
	tagIDs := map[string]string{}
	for _, name := range tags {
		var id string
		err := pool.QueryRow(ctx, `
			INSERT INTO tags (name) VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id`, name).Scan(&id)
		if err != nil {
			return fmt.Errorf("seed tag %s: %w", name, err)
		}
		tagIDs[name] = id
	}

	products := []struct {
		Tenant   string
		Name     string
		Desc     string
		Cents    int64
		Category string
		Refund   string
		Content  string
		Tags     []string
	}{
		{"alice", "Minimal Icon Pack", "400 pixel-perfect icons", 2500, "design", "30-day", "https://cdn.funroad.test/downloads/icon-pack.zip", []string{"design", "icons"}},
		{"alice", "Procreate Brush Set", "36 texture brushes", 1800, "design", "14-day", "https://cdn.funroad.test/downloads/brushes.zip", []string{"design"}},
		{"alice", "Landing Page Templates", "10 responsive HTML templates", 4900, "templates", "no-refunds", "https://cdn.funroad.test/downloads/templates.zip", []string{"templates", "design"}},
		{"bob", "Grotesk Display Family", "6 weights with italics", 7900, "fonts", "30-day", "https://cdn.funroad.test/downloads/grotesk.zip", []string{"fonts"}},
		{"bob", "Monospace Coding Font", "Ligature-rich terminal font", 3900, "fonts", "30-day", "https://cdn.funroad.test/downloads/mono.zip", []string{"fonts"}},
		{"bob", "Type Design Course", "12 hours of video lessons", 12900, "courses", "14-day", "https://cdn.funroad.test/downloads/course-access.txt", []string{"courses", "fonts"}},
	}
	for _, p := range products {
		var id string
		err := pool.QueryRow(ctx,
			`SELECT id FROM products WHERE tenant_id = $1 AND name = $2`,
			tenantIDs[p.Tenant], p.Name).Scan(&id)
		if err != nil {
			err = pool.QueryRow(ctx, `
				INSERT INTO products (tenant_id, name, description, price_cents, currency, refund_policy, category, content)
				VALUES ($1, $2, $3, $4, 'usd', $5, $6, $7)
				RETURNING id`,
				tenantIDs[p.Tenant], p.Name, p.Desc, p.Cents, p.Refund, p.Category, p.Content).Scan(&id)
			if err != nil {
				return fmt.Errorf("seed product %s: %w", p.Name, err)
			}
		}
		for _, tag := range p.Tags {
			if _, err := pool.Exec(ctx, `
				INSERT INTO product_tags (product_id, tag_id) VALUES ($1, $2)
				ON CONFLICT DO NOTHING`, id, tagIDs[tag]); err != nil {
				return fmt.Errorf("seed product tag %s/%s: %w", p.Name, tag, err)
			}
		}
	}
	return nil
}
