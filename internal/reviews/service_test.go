package reviews

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/funroad-api/internal/common"
	"github.com/noah-isme/funroad-api/internal/db"
)

type stubQueries struct {
	existing  *db.Review
	purchased bool
	createErr error
	created   db.Review
	updated   db.Review
	updateErr error
}

func (s *stubQueries) GetReviewByUserProduct(context.Context, pgtype.UUID, pgtype.UUID) (db.Review, error) {
	if s.existing == nil {
		return db.Review{}, pgx.ErrNoRows
	}
	return *s.existing, nil
}

func (s *stubQueries) CreateReview(_ context.Context, userID, productID pgtype.UUID, rating int32, description string) (db.Review, error) {
	if s.createErr != nil {
		return db.Review{}, s.createErr
	}
	s.created = db.Review{ID: db.NewUUID(), ProductID: productID, UserID: userID, Rating: rating, Description: description}
	return s.created, nil
}

func (s *stubQueries) UpdateReview(_ context.Context, reviewID, userID pgtype.UUID, rating int32, description string) (db.Review, error) {
	if s.updateErr != nil {
		return db.Review{}, s.updateErr
	}
	s.updated = db.Review{ID: reviewID, UserID: userID, Rating: rating, Description: description}
	return s.updated, nil
}

func (s *stubQueries) HasPurchased(context.Context, pgtype.UUID, pgtype.UUID) (bool, error) {
	return s.purchased, nil
}

func TestCreateRequiresPurchase(t *testing.T) {
	q := &stubQueries{purchased: false}
	svc := &Service{Q: q}

	_, err := svc.Create(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 5, "great")
	require.ErrorIs(t, err, common.ErrForbidden)
}

func TestCreateStoresReview(t *testing.T) {
	q := &stubQueries{purchased: true}
	svc := &Service{Q: q}

	review, err := svc.Create(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 4, "solid")
	require.NoError(t, err)
	require.Equal(t, int32(4), review.Rating)
	require.Equal(t, "solid", review.Description)
}

func TestCreateSecondReviewConflicts(t *testing.T) {
	q := &stubQueries{purchased: true, createErr: &pgconn.PgError{Code: "23505"}}
	svc := &Service{Q: q}

	_, err := svc.Create(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 4, "again")
	require.ErrorIs(t, err, common.ErrConflict)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "REVIEW_EXISTS", appErr.Code)
}

func TestCreateRejectsOutOfRangeRating(t *testing.T) {
	svc := &Service{Q: &stubQueries{purchased: true}}
	_, err := svc.Create(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 6, "")
	require.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = svc.Create(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 0, "")
	require.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestGetOwnNotFound(t *testing.T) {
	svc := &Service{Q: &stubQueries{}}
	_, err := svc.GetOwn(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()))
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdateOwnReview(t *testing.T) {
	q := &stubQueries{}
	svc := &Service{Q: q}

	review, err := svc.Update(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 3, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, int32(3), review.Rating)
}

func TestUpdateSomeoneElsesReview(t *testing.T) {
	q := &stubQueries{updateErr: pgx.ErrNoRows}
	svc := &Service{Q: q}

	_, err := svc.Update(context.Background(), db.UUIDString(db.NewUUID()), db.UUIDString(db.NewUUID()), 3, "")
	require.ErrorIs(t, err, common.ErrNotFound, "scoping the update by user hides foreign reviews")
}
