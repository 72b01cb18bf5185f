package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

// GetUserByID fetches a user by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	var u User
	err := q.db.QueryRow(ctx,
		`SELECT id, email, username, roles, tenant_id, created_at FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Username, &u.Roles, &u.TenantID, &u.CreatedAt)
	return u, err
}

// GetUserByUsername fetches a user by its unique username.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := q.db.QueryRow(ctx,
		`SELECT id, email, username, roles, tenant_id, created_at FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Email, &u.Username, &u.Roles, &u.TenantID, &u.CreatedAt)
	return u, err
}
