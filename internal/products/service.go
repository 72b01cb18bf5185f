package products

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
)

type queryProvider interface {
	ListProducts(ctx context.Context, params db.ListProductsParams) ([]db.ProductRow, error)
	CountProducts(ctx context.Context, params db.ListProductsParams) (int64, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (db.ProductRow, error)
	ProductTags(ctx context.Context, productID pgtype.UUID) ([]string, error)
	ReviewDistribution(ctx context.Context, productID pgtype.UUID) ([]db.RatingBucket, error)
	HasPurchased(ctx context.Context, userID, productID pgtype.UUID) (bool, error)
}

// Service assembles the public product listing and detail payloads.
type Service struct {
	Q            queryProvider
	Cache        *Cache
	DefaultLimit int
	MaxLimit     int
}

// ListInput scopes one listing request.
type ListInput struct {
	Filters    Filters
	TenantSlug string
	Category   string
	Page       int
	Limit      int
	// IncludePrivate is set for a tenant's own storefront; the public
	// storefront never sees private products.
	IncludePrivate bool
}

// Summary is a product entry in list responses.
type Summary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description,omitempty"`
	PriceCents   int64   `json:"price"`
	Currency     string  `json:"currency"`
	ImageURL     string  `json:"image,omitempty"`
	TenantSlug   string  `json:"tenantSlug"`
	TenantName   string  `json:"tenantName"`
	TenantImage  string  `json:"tenantImage,omitempty"`
	ReviewCount  int64   `json:"reviewCount"`
	ReviewRating float64 `json:"reviewRating"`
}

// Detail is the full product payload for the product page.
type Detail struct {
	Summary
	CoverURL     string   `json:"cover,omitempty"`
	RefundPolicy string   `json:"refundPolicy"`
	Category     string   `json:"category,omitempty"`
	Tags         []string `json:"tags"`
	IsPurchased  bool     `json:"isPurchased"`
	// Content is only revealed to buyers who own the product.
	Content            string          `json:"content,omitempty"`
	RatingDistribution map[int]float64 `json:"ratingDistribution"`
}

func (s *Service) limits(in ListInput) (int, int) {
	limit := in.Limit
	if limit < 1 {
		limit = s.DefaultLimit
	}
	if limit < 1 {
		limit = 12
	}
	if s.MaxLimit > 0 && limit > s.MaxLimit {
		limit = s.MaxLimit
	}
	page := in.Page
	if page < 1 {
		page = 1
	}
	return page, limit
}

// List returns one page of products matching the filters. Archived products
// never appear; private products only appear when IncludePrivate is set.
func (s *Service) List(ctx context.Context, in ListInput) (common.Page[Summary], error) {
	if s == nil || s.Q == nil {
		return common.Page[Summary]{}, errors.New("products service not configured")
	}
	page, limit := s.limits(in)

	key := s.listCacheKey(in, page, limit)
	var cached common.Page[Summary]
	if hit, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	params := db.ListProductsParams{
		TenantSlug:     in.TenantSlug,
		Category:       in.Category,
		Search:         in.Filters.Search,
		Sort:           in.Filters.Sort,
		MinPriceCents:  in.Filters.MinPriceCents,
		MaxPriceCents:  in.Filters.MaxPriceCents,
		TagNames:       in.Filters.Tags,
		IncludePrivate: in.IncludePrivate,
		Limit:          limit,
		Offset:         common.Offset(page, limit),
	}
	rows, err := s.Q.ListProducts(ctx, params)
	if err != nil {
		return common.Page[Summary]{}, fmt.Errorf("list products: %w", err)
	}
	total, err := s.Q.CountProducts(ctx, params)
	if err != nil {
		return common.Page[Summary]{}, fmt.Errorf("count products: %w", err)
	}

	docs := make([]Summary, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, toSummary(row))
	}
	result := common.NewPage(docs, total, page, limit)
	_ = s.Cache.SetJSON(ctx, key, result)
	return result, nil
}

// GetOne returns the product detail. userID may be empty for anonymous
// visitors; it gates isPurchased and the protected content.
func (s *Service) GetOne(ctx context.Context, id, userID string) (Detail, error) {
	if s == nil || s.Q == nil {
		return Detail{}, errors.New("products service not configured")
	}
	productID := db.ParseUUID(id)
	if !productID.Valid {
		return Detail{}, common.NotFound("product not found")
	}
	row, err := s.Q.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Detail{}, common.NotFound("product not found")
		}
		return Detail{}, fmt.Errorf("get product: %w", err)
	}

	detail := Detail{
		Summary:      toSummary(row),
		CoverURL:     row.CoverURL.String,
		RefundPolicy: row.RefundPolicy,
		Category:     row.Category.String,
		Tags:         []string{},
	}
	if tags, err := s.Q.ProductTags(ctx, productID); err == nil && tags != nil {
		detail.Tags = tags
	}

	buckets, err := s.Q.ReviewDistribution(ctx, productID)
	if err != nil {
		return Detail{}, fmt.Errorf("review distribution: %w", err)
	}
	detail.RatingDistribution = distributionPercentages(buckets)

	if userID != "" {
		purchased, err := s.Q.HasPurchased(ctx, db.ParseUUID(userID), productID)
		if err != nil {
			return Detail{}, fmt.Errorf("check purchase: %w", err)
		}
		detail.IsPurchased = purchased
		if purchased {
			detail.Content = row.Content.String
		}
	}
	return detail, nil
}

func toSummary(row db.ProductRow) Summary {
	return Summary{
		ID:           db.UUIDString(row.ID),
		Name:         row.Name,
		Description:  row.Description.String,
		PriceCents:   row.PriceCents,
		Currency:     row.Currency,
		ImageURL:     row.ImageURL.String,
		TenantSlug:   row.TenantSlug,
		TenantName:   row.TenantName,
		TenantImage:  row.TenantImageURL.String,
		ReviewCount:  row.ReviewCount,
		ReviewRating: row.ReviewRating,
	}
}

// distributionPercentages turns per-star counts into whole percentages for
// all five star levels.
func distributionPercentages(buckets []db.RatingBucket) map[int]float64 {
	dist := map[int]float64{1: 0, 2: 0, 3: 0, 4: 0, 5: 0}
	var total int64
	for _, b := range buckets {
		total += b.Count
	}
	if total == 0 {
		return dist
	}
	for _, b := range buckets {
		if b.Rating < 1 || b.Rating > 5 {
			continue
		}
		dist[int(b.Rating)] = math.Round(float64(b.Count) / float64(total) * 100)
	}
	return dist
}

func (s *Service) listCacheKey(in ListInput, page, limit int) string {
	var b strings.Builder
	b.WriteString(in.TenantSlug)
	b.WriteString("|")
	b.WriteString(in.Category)
	b.WriteString("|")
	b.WriteString(in.Filters.Values().Encode())
	fmt.Fprintf(&b, "|%d|%d|%t", page, limit, in.IncludePrivate)
	sum := sha256.Sum256([]byte(b.String()))
	return "products:list:" + hex.EncodeToString(sum[:16])
}
