package products

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/db"
)

type stubQueries struct {
	rows       []db.ProductRow
	total      int64
	lastParams db.ListProductsParams
	detail     db.ProductRow
	detailErr  error
	buckets    []db.RatingBucket
	purchased  bool
	tags       []string
}

func (s *stubQueries) ListProducts(_ context.Context, params db.ListProductsParams) ([]db.ProductRow, error) {
	s.lastParams = params
	return s.rows, nil
}

func (s *stubQueries) CountProducts(_ context.Context, params db.ListProductsParams) (int64, error) {
	return s.total, nil
}

func (s *stubQueries) GetProduct(_ context.Context, _ pgtype.UUID) (db.ProductRow, error) {
	if s.detailErr != nil {
		return db.ProductRow{}, s.detailErr
	}
	return s.detail, nil
}

func (s *stubQueries) ProductTags(context.Context, pgtype.UUID) ([]string, error) {
	return s.tags, nil
}

func (s *stubQueries) ReviewDistribution(context.Context, pgtype.UUID) ([]db.RatingBucket, error) {
	return s.buckets, nil
}

func (s *stubQueries) HasPurchased(context.Context, pgtype.UUID, pgtype.UUID) (bool, error) {
	return s.purchased, nil
}

func sampleRow(name string) db.ProductRow {
	return db.ProductRow{
		Product: db.Product{
			ID:         db.NewUUID(),
			Name:       name,
			PriceCents: 1500,
			Currency:   "usd",
			Content:    pgtype.Text{String: "download link", Valid: true},
		},
		TenantSlug:   "alice",
		TenantName:   "Alice's Studio",
		ReviewCount:  3,
		ReviewRating: 4.5,
	}
}

func TestListBuildsPaginationEnvelope(t *testing.T) {
	q := &stubQueries{rows: []db.ProductRow{sampleRow("A"), sampleRow("B")}, total: 25}
	svc := &Service{Q: q, DefaultLimit: 12}

	page, err := svc.List(context.Background(), ListInput{
		Filters:    Filters{Sort: SortCurated},
		TenantSlug: "alice",
		Page:       2,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, page.Docs, 2)
	require.Equal(t, int64(25), page.TotalDocs)
	require.Equal(t, 3, page.TotalPages)
	require.True(t, page.HasNextPage)
	require.True(t, page.HasPrevPage)

	require.Equal(t, "alice", q.lastParams.TenantSlug)
	require.Equal(t, 10, q.lastParams.Limit)
	require.Equal(t, 10, q.lastParams.Offset)
	require.False(t, q.lastParams.IncludePrivate, "public storefront never sees private products")
}

func TestListPassesFilters(t *testing.T) {
	q := &stubQueries{}
	svc := &Service{Q: q, DefaultLimit: 12}

	_, err := svc.List(context.Background(), ListInput{
		Filters: Filters{Search: "icons", Sort: SortHotAndNew, MinPriceCents: 1000, MaxPriceCents: 5000, Tags: []string{"design"}},
	})
	require.NoError(t, err)
	require.Equal(t, "icons", q.lastParams.Search)
	require.Equal(t, SortHotAndNew, q.lastParams.Sort)
	require.Equal(t, int64(1000), q.lastParams.MinPriceCents)
	require.Equal(t, int64(5000), q.lastParams.MaxPriceCents)
	require.Equal(t, []string{"design"}, q.lastParams.TagNames)
}

func TestGetOneNotFound(t *testing.T) {
	q := &stubQueries{detailErr: pgx.ErrNoRows}
	svc := &Service{Q: q}

	_, err := svc.GetOne(context.Background(), db.UUIDString(db.NewUUID()), "")
	require.Error(t, err)
}

func TestGetOneGatesContentToBuyers(t *testing.T) {
	row := sampleRow("E-book")
	q := &stubQueries{detail: row, buckets: []db.RatingBucket{{Rating: 5, Count: 3}, {Rating: 4, Count: 1}}}
	svc := &Service{Q: q}
	userID := db.UUIDString(db.NewUUID())

	detail, err := svc.GetOne(context.Background(), db.UUIDString(row.ID), userID)
	require.NoError(t, err)
	require.False(t, detail.IsPurchased)
	require.Empty(t, detail.Content, "content stays hidden before purchase")
	require.Equal(t, float64(75), detail.RatingDistribution[5])
	require.Equal(t, float64(25), detail.RatingDistribution[4])
	require.Zero(t, detail.RatingDistribution[1])

	q.purchased = true
	detail, err = svc.GetOne(context.Background(), db.UUIDString(row.ID), userID)
	require.NoError(t, err)
	require.True(t, detail.IsPurchased)
	require.Equal(t, "download link", detail.Content)
}
