package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
	"github.com/noah-isme/funroad-api/internal/events"
	"github.com/noah-isme/funroad-api/internal/obs"
)

type queryProvider interface {
	ListPurchasedProducts(ctx context.Context, userID pgtype.UUID, limit, offset int) ([]db.ProductRow, error)
	CountPurchasedProducts(ctx context.Context, userID pgtype.UUID) (int64, error)
	HasPurchased(ctx context.Context, userID, productID pgtype.UUID) (bool, error)
	GetProduct(ctx context.Context, id pgtype.UUID) (db.ProductRow, error)
	GetReviewByUserProduct(ctx context.Context, userID, productID pgtype.UUID) (db.Review, error)
}

// Service lists a buyer's purchased products. Pages are cached per user in
// Redis; invalidation bumps the user's version key, so stale pages simply
// stop being addressable.
type Service struct {
	Q     queryProvider
	Redis *redis.Client
	TTL   time.Duration

	DefaultLimit int
}

// Item is one purchased product in the library.
type Item struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	ImageURL     string  `json:"image,omitempty"`
	TenantSlug   string  `json:"tenantSlug"`
	TenantName   string  `json:"tenantName"`
	ReviewCount  int64   `json:"reviewCount"`
	ReviewRating float64 `json:"reviewRating"`
}

// Purchase is the ownership-checked detail of a bought product, content
// included.
type Purchase struct {
	Item
	Content      string `json:"content,omitempty"`
	RefundPolicy string `json:"refundPolicy"`
	HasReviewed  bool   `json:"hasReviewed"`
}

// List returns one page of the user's purchases, newest first.
func (s *Service) List(ctx context.Context, userID string, page, limit int) (common.Page[Item], error) {
	if s == nil || s.Q == nil {
		return common.Page[Item]{}, errors.New("library service not configured")
	}
	uid := db.ParseUUID(userID)
	if !uid.Valid {
		return common.Page[Item]{}, common.Unauthorized("sign in to continue")
	}
	if limit < 1 {
		limit = s.DefaultLimit
	}
	if limit < 1 {
		limit = 12
	}
	if page < 1 {
		page = 1
	}

	key, err := s.cacheKey(ctx, userID, page, limit)
	if err == nil && key != "" {
		if cached, ok := s.getCached(ctx, key); ok {
			if obs.LibraryCacheHits != nil {
				obs.LibraryCacheHits.WithLabelValues("hit").Inc()
			}
			return cached, nil
		}
		if obs.LibraryCacheHits != nil {
			obs.LibraryCacheHits.WithLabelValues("miss").Inc()
		}
	}

	rows, err := s.Q.ListPurchasedProducts(ctx, uid, limit, common.Offset(page, limit))
	if err != nil {
		return common.Page[Item]{}, fmt.Errorf("list purchases: %w", err)
	}
	total, err := s.Q.CountPurchasedProducts(ctx, uid)
	if err != nil {
		return common.Page[Item]{}, fmt.Errorf("count purchases: %w", err)
	}
	docs := make([]Item, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, Item{
			ID:           db.UUIDString(row.ID),
			Name:         row.Name,
			ImageURL:     row.ImageURL.String,
			TenantSlug:   row.TenantSlug,
			TenantName:   row.TenantName,
			ReviewCount:  row.ReviewCount,
			ReviewRating: row.ReviewRating,
		})
	}
	result := common.NewPage(docs, total, page, limit)
	s.setCached(ctx, key, result)
	return result, nil
}

// GetOne returns a purchased product with its protected content. Users who
// do not own the product get NOT_FOUND rather than a hint it exists.
func (s *Service) GetOne(ctx context.Context, userID, productID string) (Purchase, error) {
	if s == nil || s.Q == nil {
		return Purchase{}, errors.New("library service not configured")
	}
	uid := db.ParseUUID(userID)
	pid := db.ParseUUID(productID)
	if !uid.Valid {
		return Purchase{}, common.Unauthorized("sign in to continue")
	}
	if !pid.Valid {
		return Purchase{}, common.NotFound("product not found")
	}
	owned, err := s.Q.HasPurchased(ctx, uid, pid)
	if err != nil {
		return Purchase{}, fmt.Errorf("check ownership: %w", err)
	}
	if !owned {
		return Purchase{}, common.NotFound("product not found")
	}
	row, err := s.Q.GetProduct(ctx, pid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Purchase{}, common.NotFound("product not found")
		}
		return Purchase{}, fmt.Errorf("get product: %w", err)
	}
	purchase := Purchase{
		Item: Item{
			ID:           db.UUIDString(row.ID),
			Name:         row.Name,
			ImageURL:     row.ImageURL.String,
			TenantSlug:   row.TenantSlug,
			TenantName:   row.TenantName,
			ReviewCount:  row.ReviewCount,
			ReviewRating: row.ReviewRating,
		},
		Content:      row.Content.String,
		RefundPolicy: row.RefundPolicy,
	}
	if _, err := s.Q.GetReviewByUserProduct(ctx, uid, pid); err == nil {
		purchase.HasReviewed = true
	}
	return purchase, nil
}

// Invalidate bumps the user's cache version; previously cached pages become
// unreachable and expire by TTL.
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	if s == nil || s.Redis == nil || userID == "" {
		return nil
	}
	return s.Redis.Incr(ctx, versionKey(userID)).Err()
}

func versionKey(userID string) string {
	return "library:ver:" + userID
}

func (s *Service) cacheKey(ctx context.Context, userID string, page, limit int) (string, error) {
	if s.Redis == nil {
		return "", nil
	}
	ver, err := s.Redis.Get(ctx, versionKey(userID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", err
	}
	return fmt.Sprintf("library:%s:v%d:p%d:l%d", userID, ver, page, limit), nil
}

func (s *Service) getCached(ctx context.Context, key string) (common.Page[Item], bool) {
	var page common.Page[Item]
	if s.Redis == nil || key == "" {
		return page, false
	}
	data, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return page, false
	}
	if err := json.Unmarshal(data, &page); err != nil {
		return page, false
	}
	return page, true
}

func (s *Service) setCached(ctx context.Context, key string, page common.Page[Item]) {
	if s.Redis == nil || key == "" {
		return
	}
	data, err := json.Marshal(page)
	if err != nil {
		return
	}
	_ = s.Redis.Set(ctx, key, data, s.TTL).Err()
}

// Invalidator reacts to purchase events by invalidating the buyer's cached
// library pages. It owns the cache keys; checkout never touches them.
type Invalidator struct {
	Svc *Service
}

// Notify implements events.Notifier.
func (i Invalidator) Notify(ctx context.Context, event events.Event) error {
	switch event.Topic {
	case events.TopicCheckoutCompleted, events.TopicOrderCreated:
	default:
		return nil
	}
	var payload struct {
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}
	if payload.UserID == "" {
		return nil
	}
	return i.Svc.Invalidate(ctx, payload.UserID)
}
