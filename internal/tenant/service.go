package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
)

type queryProvider interface {
	GetTenantBySlug(ctx context.Context, slug string) (db.Tenant, error)
}

// Service exposes public tenant (storefront) lookups.
type Service struct {
	Q queryProvider
}

// Info is the public view of a tenant. Payment account identifiers never
// leave the server.
type Info struct {
	ID       string `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	ImageURL string `json:"image,omitempty"`
	// CanSell reports whether the tenant has finished payment onboarding.
	CanSell bool `json:"canSell"`
}

// BySlug returns the public tenant record for a storefront slug.
func (s *Service) BySlug(ctx context.Context, slug string) (Info, error) {
	if s == nil || s.Q == nil {
		return Info{}, errors.New("tenant service not configured")
	}
	if slug == "" {
		return Info{}, common.BadRequest("tenant slug is required")
	}
	row, err := s.Q.GetTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Info{}, common.NotFound("tenant not found")
		}
		return Info{}, fmt.Errorf("get tenant: %w", err)
	}
	return Info{
		ID:       db.UUIDString(row.ID),
		Slug:     row.Slug,
		Name:     row.Name,
		ImageURL: row.ImageURL.String,
		CanSell:  row.StripeDetailsSubmitted && row.StripeAccountID.String != "",
	}, nil
}
