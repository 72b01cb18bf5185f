package db

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Tenant struct {
	ID                     pgtype.UUID
	Slug                   string
	Name                   string
	ImageURL               pgtype.Text
	StripeAccountID        pgtype.Text
	StripeDetailsSubmitted bool
	CreatedAt              pgtype.Timestamptz
	UpdatedAt              pgtype.Timestamptz
}

type User struct {
	ID        pgtype.UUID
	Email     string
	Username  string
	Roles     []string
	TenantID  pgtype.UUID
	CreatedAt pgtype.Timestamptz
}

type Product struct {
	ID           pgtype.UUID
	TenantID     pgtype.UUID
	Name         string
	Description  pgtype.Text
	PriceCents   int64
	Currency     string
	ImageURL     pgtype.Text
	CoverURL     pgtype.Text
	RefundPolicy string
	Category     pgtype.Text
	Content      pgtype.Text
	IsArchived   bool
	IsPrivate    bool
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

type Tag struct {
	ID   pgtype.UUID
	Name string
}

type Order struct {
	ID                pgtype.UUID
	UserID            pgtype.UUID
	ProductID         pgtype.UUID
	TenantID          pgtype.UUID
	Name              string
	CheckoutSessionID string
	StripeAccountID   pgtype.Text
	TotalCents        int64
	Currency          string
	CreatedAt         pgtype.Timestamptz
}

type Review struct {
	ID          pgtype.UUID
	ProductID   pgtype.UUID
	UserID      pgtype.UUID
	Rating      int32
	Description string
	CreatedAt   pgtype.Timestamptz
	UpdatedAt   pgtype.Timestamptz
}

type DomainEvent struct {
	ID        pgtype.UUID
	Topic     string
	Payload   []byte
	CreatedAt pgtype.Timestamptz
}
