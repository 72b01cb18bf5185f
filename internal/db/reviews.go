package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const reviewColumns = `id, product_id, user_id, rating, description, created_at, updated_at`

// GetReviewByUserProduct fetches the single review a user left on a product.
func (q *Queries) GetReviewByUserProduct(ctx context.Context, userID, productID pgtype.UUID) (Review, error) {
	var r Review
	err := q.db.QueryRow(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE user_id = $1 AND product_id = $2`,
		userID, productID).
		Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// CreateReview inserts a review. The (product_id, user_id) unique constraint
// enforces one review per user and product.
func (q *Queries) CreateReview(ctx context.Context, userID, productID pgtype.UUID, rating int32, description string) (Review, error) {
	var r Review
	err := q.db.QueryRow(ctx,
		`INSERT INTO reviews (product_id, user_id, rating, description)
		VALUES ($1, $2, $3, $4)
		RETURNING `+reviewColumns,
		productID, userID, rating, description).
		Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// UpdateReview updates the user's own review.
func (q *Queries) UpdateReview(ctx context.Context, reviewID, userID pgtype.UUID, rating int32, description string) (Review, error) {
	var r Review
	err := q.db.QueryRow(ctx,
		`UPDATE reviews SET rating = $3, description = $4, updated_at = now()
		WHERE id = $1 AND user_id = $2
		RETURNING `+reviewColumns,
		reviewID, userID, rating, description).
		Scan(&r.ID, &r.ProductID, &r.UserID, &r.Rating, &r.Description, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// RatingBucket is one star level of a product's rating distribution.
type RatingBucket struct {
	Rating int32
	Count  int64
}

// ReviewDistribution returns per-star review counts for a product.
func (q *Queries) ReviewDistribution(ctx context.Context, productID pgtype.UUID) ([]RatingBucket, error) {
	rows, err := q.db.Query(ctx,
		`SELECT rating, COUNT(*) FROM reviews WHERE product_id = $1 GROUP BY rating`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var buckets []RatingBucket
	for rows.Next() {
		var b RatingBucket
		if err := rows.Scan(&b.Rating, &b.Count); err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, rows.Err()
}
