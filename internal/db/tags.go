package db

import "context"

// ListTags returns one page of tags ordered by name.
func (q *Queries) ListTags(ctx context.Context, limit, offset int) ([]Tag, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, name FROM tags ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// CountTags returns the total number of tags.
func (q *Queries) CountTags(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM tags`).Scan(&total)
	return total, err
}
