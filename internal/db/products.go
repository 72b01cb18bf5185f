package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `p.id, p.tenant_id, p.name, p.description, p.price_cents, p.currency,
	p.image_url, p.cover_url, p.refund_policy, p.category, p.content, p.is_archived, p.is_private,
	p.created_at, p.updated_at`

// ProductRow is a product joined with its tenant and review summary.
type ProductRow struct {
	Product
	TenantSlug     string
	TenantName     string
	TenantImageURL pgtype.Text
	ReviewCount    int64
	ReviewRating   float64
}

// ListProductsParams drives the storefront product listing query.
type ListProductsParams struct {
	TenantSlug    string
	Category      string
	Search        string
	Sort          string
	MinPriceCents int64
	MaxPriceCents int64
	TagNames      []string
	// IncludePrivate is set when listing a tenant's own storefront, where
	// private products remain visible.
	IncludePrivate bool
	Limit          int
	Offset         int
}

func (p ListProductsParams) whereClause(args *[]any) string {
	var conds []string
	conds = append(conds, "NOT p.is_archived")
	if !p.IncludePrivate {
		conds = append(conds, "NOT p.is_private")
	}
	if p.TenantSlug != "" {
		*args = append(*args, p.TenantSlug)
		conds = append(conds, fmt.Sprintf("t.slug = $%d", len(*args)))
	}
	if p.Category != "" {
		*args = append(*args, p.Category)
		conds = append(conds, fmt.Sprintf("p.category = $%d", len(*args)))
	}
	if p.Search != "" {
		*args = append(*args, "%"+p.Search+"%")
		conds = append(conds, fmt.Sprintf("p.name ILIKE $%d", len(*args)))
	}
	if p.MinPriceCents > 0 {
		*args = append(*args, p.MinPriceCents)
		conds = append(conds, fmt.Sprintf("p.price_cents >= $%d", len(*args)))
	}
	if p.MaxPriceCents > 0 {
		*args = append(*args, p.MaxPriceCents)
		conds = append(conds, fmt.Sprintf("p.price_cents <= $%d", len(*args)))
	}
	if len(p.TagNames) > 0 {
		*args = append(*args, p.TagNames)
		conds = append(conds, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM product_tags pt JOIN tags tg ON tg.id = pt.tag_id WHERE pt.product_id = p.id AND tg.name = ANY($%d))",
			len(*args)))
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

func (p ListProductsParams) orderClause() string {
	switch p.Sort {
	case "hot_and_new":
		return "ORDER BY p.created_at ASC"
	default:
		// curated and trending both surface the newest products first.
		return "ORDER BY p.created_at DESC"
	}
}

// ListProducts returns one page of products with tenant and review summary data.
func (q *Queries) ListProducts(ctx context.Context, params ListProductsParams) ([]ProductRow, error) {
	var args []any
	where := params.whereClause(&args)
	args = append(args, params.Limit)
	limitPos := len(args)
	args = append(args, params.Offset)
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s, t.slug, t.name, t.image_url,
		COALESCE(r.review_count, 0), COALESCE(r.review_rating, 0)
	FROM products p
	JOIN tenants t ON t.id = p.tenant_id
	LEFT JOIN (
		SELECT product_id, COUNT(*) AS review_count, AVG(rating)::float8 AS review_rating
		FROM reviews GROUP BY product_id
	) r ON r.product_id = p.id
	%s %s LIMIT $%d OFFSET $%d`, productColumns, where, params.orderClause(), limitPos, offsetPos)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// CountProducts returns the total row count for the same filter set.
func (q *Queries) CountProducts(ctx context.Context, params ListProductsParams) (int64, error) {
	var args []any
	where := params.whereClause(&args)
	query := fmt.Sprintf(`SELECT COUNT(*) FROM products p JOIN tenants t ON t.id = p.tenant_id %s`, where)
	var total int64
	if err := q.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// GetProduct fetches a single non-archived product with tenant and review summary.
func (q *Queries) GetProduct(ctx context.Context, id pgtype.UUID) (ProductRow, error) {
	query := fmt.Sprintf(`SELECT %s, t.slug, t.name, t.image_url,
		COALESCE(r.review_count, 0), COALESCE(r.review_rating, 0)
	FROM products p
	JOIN tenants t ON t.id = p.tenant_id
	LEFT JOIN (
		SELECT product_id, COUNT(*) AS review_count, AVG(rating)::float8 AS review_rating
		FROM reviews GROUP BY product_id
	) r ON r.product_id = p.id
	WHERE p.id = $1 AND NOT p.is_archived`, productColumns)

	row := q.db.QueryRow(ctx, query, id)
	return scanProductRow(row)
}

// GetProductsByIDs resolves the given ids to non-archived products, optionally
// restricted to a tenant slug. Missing ids are simply absent from the result.
func (q *Queries) GetProductsByIDs(ctx context.Context, ids []pgtype.UUID, tenantSlug string) ([]ProductRow, error) {
	args := []any{ids}
	cond := ""
	if tenantSlug != "" {
		args = append(args, tenantSlug)
		cond = fmt.Sprintf(" AND t.slug = $%d", len(args))
	}
	query := fmt.Sprintf(`SELECT %s, t.slug, t.name, t.image_url,
		COALESCE(r.review_count, 0), COALESCE(r.review_rating, 0)
	FROM products p
	JOIN tenants t ON t.id = p.tenant_id
	LEFT JOIN (
		SELECT product_id, COUNT(*) AS review_count, AVG(rating)::float8 AS review_rating
		FROM reviews GROUP BY product_id
	) r ON r.product_id = p.id
	WHERE p.id = ANY($1) AND NOT p.is_archived%s`, productColumns, cond)

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanProductRows(rows)
}

// ProductTags returns the tag names attached to a product.
func (q *Queries) ProductTags(ctx context.Context, productID pgtype.UUID) ([]string, error) {
	rows, err := q.db.Query(ctx,
		`SELECT tg.name FROM product_tags pt JOIN tags tg ON tg.id = pt.tag_id WHERE pt.product_id = $1 ORDER BY tg.name`,
		productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanProductRows(rows pgx.Rows) ([]ProductRow, error) {
	var out []ProductRow
	for rows.Next() {
		item, err := scanProductRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func scanProductRow(row pgx.Row) (ProductRow, error) {
	var p ProductRow
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Description, &p.PriceCents, &p.Currency,
		&p.ImageURL, &p.CoverURL, &p.RefundPolicy, &p.Category, &p.Content, &p.IsArchived, &p.IsPrivate,
		&p.CreatedAt, &p.UpdatedAt,
		&p.TenantSlug, &p.TenantName, &p.TenantImageURL,
		&p.ReviewCount, &p.ReviewRating,
	)
	return p, err
}
