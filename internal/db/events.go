package db

import "context"

// InsertDomainEvent persists a domain event before notifier fan-out.
func (q *Queries) InsertDomainEvent(ctx context.Context, topic string, payload []byte) error {
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	_, err := q.db.Exec(ctx,
		`INSERT INTO domain_events (topic, payload) VALUES ($1, $2)`, topic, payload)
	return err
}
