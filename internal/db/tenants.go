package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const tenantColumns = `id, slug, name, image_url, stripe_account_id, stripe_details_submitted, created_at, updated_at`

// GetTenantBySlug fetches a tenant by its storefront slug.
func (q *Queries) GetTenantBySlug(ctx context.Context, slug string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = $1`, slug)
	return scanTenant(row)
}

// GetTenantByID fetches a tenant by primary key.
func (q *Queries) GetTenantByID(ctx context.Context, id pgtype.UUID) (Tenant, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	return scanTenant(row)
}

// GetTenantByStripeAccount fetches the tenant owning a connected account.
func (q *Queries) GetTenantByStripeAccount(ctx context.Context, accountID string) (Tenant, error) {
	row := q.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE stripe_account_id = $1`, accountID)
	return scanTenant(row)
}

// SetTenantStripeDetails records the connected account onboarding state.
func (q *Queries) SetTenantStripeDetails(ctx context.Context, id pgtype.UUID, submitted bool) error {
	_, err := q.db.Exec(ctx,
		`UPDATE tenants SET stripe_details_submitted = $2, updated_at = now() WHERE id = $1`,
		id, submitted)
	return err
}

func scanTenant(row interface{ Scan(...any) error }) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.ImageURL, &t.StripeAccountID,
		&t.StripeDetailsSubmitted, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}
