package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// CreateOrderParams inserts one order row per purchased product.
type CreateOrderParams struct {
	UserID            pgtype.UUID
	ProductID         pgtype.UUID
	TenantID          pgtype.UUID
	Name              string
	CheckoutSessionID string
	StripeAccountID   pgtype.Text
	TotalCents        int64
	Currency          string
}

// CreateOrder inserts an order. The (checkout_session_id, product_id) unique
// constraint makes fulfillment replays a conflict instead of a duplicate.
func (q *Queries) CreateOrder(ctx context.Context, params CreateOrderParams) (Order, error) {
	var o Order
	err := q.db.QueryRow(ctx,
		`INSERT INTO orders (user_id, product_id, tenant_id, name, checkout_session_id, stripe_account_id, total_cents, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, product_id, tenant_id, name, checkout_session_id, stripe_account_id, total_cents, currency, created_at`,
		params.UserID, params.ProductID, params.TenantID, params.Name,
		params.CheckoutSessionID, params.StripeAccountID, params.TotalCents, params.Currency).
		Scan(&o.ID, &o.UserID, &o.ProductID, &o.TenantID, &o.Name,
			&o.CheckoutSessionID, &o.StripeAccountID, &o.TotalCents, &o.Currency, &o.CreatedAt)
	return o, err
}

// ListPurchasedProductIDs returns ids of all products the user has bought.
func (q *Queries) ListPurchasedProductIDs(ctx context.Context, userID pgtype.UUID) ([]pgtype.UUID, error) {
	rows, err := q.db.Query(ctx,
		`SELECT DISTINCT product_id FROM orders WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []pgtype.UUID
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPurchasedProducts returns one page of a user's purchased products,
// newest purchase first.
func (q *Queries) ListPurchasedProducts(ctx context.Context, userID pgtype.UUID, limit, offset int) ([]ProductRow, error) {
	query := `SELECT ` + productColumns + `, t.slug, t.name, t.image_url,
		COALESCE(r.review_count, 0), COALESCE(r.review_rating, 0)
	FROM orders o
	JOIN products p ON p.id = o.product_id
	JOIN tenants t ON t.id = p.tenant_id
	LEFT JOIN (
		SELECT product_id, COUNT(*) AS review_count, AVG(rating)::float8 AS review_rating
		FROM reviews GROUP BY product_id
	) r ON r.product_id = p.id
	WHERE o.user_id = $1
	ORDER BY o.created_at DESC
	LIMIT $2 OFFSET $3`
	rows, err := q.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// CountPurchasedProducts returns the user's total purchase count.
func (q *Queries) CountPurchasedProducts(ctx context.Context, userID pgtype.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID).Scan(&total)
	return total, err
}

// HasPurchased reports whether the user owns the product.
func (q *Queries) HasPurchased(ctx context.Context, userID, productID pgtype.UUID) (bool, error) {
	var exists bool
	err := q.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM orders WHERE user_id = $1 AND product_id = $2)`,
		userID, productID).Scan(&exists)
	return exists, err
}
