package reviews

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
)

type queryProvider interface {
	GetReviewByUserProduct(ctx context.Context, userID, productID pgtype.UUID) (db.Review, error)
	CreateReview(ctx context.Context, userID, productID pgtype.UUID, rating int32, description string) (db.Review, error)
	UpdateReview(ctx context.Context, reviewID, userID pgtype.UUID, rating int32, description string) (db.Review, error)
	HasPurchased(ctx context.Context, userID, productID pgtype.UUID) (bool, error)
}

// Service manages the single review each buyer may leave per product.
type Service struct {
	Q queryProvider
}

// Review is the API view of a stored review.
type Review struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Rating      int32  `json:"rating"`
	Description string `json:"description"`
}

// GetOwn returns the caller's review of a product, or NOT_FOUND when they
// have not reviewed it yet.
func (s *Service) GetOwn(ctx context.Context, userID, productID string) (Review, error) {
	if s == nil || s.Q == nil {
		return Review{}, errors.New("reviews service not configured")
	}
	uid, pid, err := parseIDs(userID, productID)
	if err != nil {
		return Review{}, err
	}
	row, err := s.Q.GetReviewByUserProduct(ctx, uid, pid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, common.NotFound("review not found")
		}
		return Review{}, fmt.Errorf("get review: %w", err)
	}
	return toReview(row), nil
}

// Create stores a buyer's review. Only owners of the product may review it,
// and only once; a second attempt conflicts.
func (s *Service) Create(ctx context.Context, userID, productID string, rating int32, description string) (Review, error) {
	if s == nil || s.Q == nil {
		return Review{}, errors.New("reviews service not configured")
	}
	uid, pid, err := parseIDs(userID, productID)
	if err != nil {
		return Review{}, err
	}
	if rating < 1 || rating > 5 {
		return Review{}, common.BadRequest("rating must be between 1 and 5")
	}
	owned, err := s.Q.HasPurchased(ctx, uid, pid)
	if err != nil {
		return Review{}, fmt.Errorf("check ownership: %w", err)
	}
	if !owned {
		return Review{}, common.NewAppError("FORBIDDEN", "only buyers can review a product", http.StatusForbidden, common.ErrForbidden)
	}
	row, err := s.Q.CreateReview(ctx, uid, pid, rating, description)
	if err != nil {
		if isUniqueViolation(err) {
			return Review{}, common.NewAppError("REVIEW_EXISTS", "you have already reviewed this product", http.StatusConflict, common.ErrConflict)
		}
		return Review{}, fmt.Errorf("create review: %w", err)
	}
	return toReview(row), nil
}

// Update edits the caller's own review in place.
func (s *Service) Update(ctx context.Context, userID, reviewID string, rating int32, description string) (Review, error) {
	if s == nil || s.Q == nil {
		return Review{}, errors.New("reviews service not configured")
	}
	uid := db.ParseUUID(userID)
	rid := db.ParseUUID(reviewID)
	if !uid.Valid {
		return Review{}, common.Unauthorized("sign in to continue")
	}
	if !rid.Valid {
		return Review{}, common.NotFound("review not found")
	}
	if rating < 1 || rating > 5 {
		return Review{}, common.BadRequest("rating must be between 1 and 5")
	}
	row, err := s.Q.UpdateReview(ctx, rid, uid, rating, description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, common.NotFound("review not found")
		}
		return Review{}, fmt.Errorf("update review: %w", err)
	}
	return toReview(row), nil
}

func parseIDs(userID, productID string) (pgtype.UUID, pgtype.UUID, error) {
	uid := db.ParseUUID(userID)
	pid := db.ParseUUID(productID)
	if !uid.Valid {
		return uid, pid, common.Unauthorized("sign in to continue")
	}
	if !pid.Valid {
		return uid, pid, common.NotFound("product not found")
	}
	return uid, pid, nil
}

func toReview(row db.Review) Review {
	return Review{
		ID:          db.UUIDString(row.ID),
		ProductID:   db.UUIDString(row.ProductID),
		Rating:      row.Rating,
		Description: row.Description,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
