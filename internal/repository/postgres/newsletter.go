package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/newsletter/internal/domain"
)

// NewsletterRepo implements newsletter.Repository against PostgreSQL.
type NewsletterRepo struct{ db *sql.DB }

// NewNewsletterRepo creates a Postgres-backed newsletter repository.
func NewNewsletterRepo(db *sql.DB) *NewsletterRepo { return &NewsletterRepo{db: db} }

// ListConfirmed returns every confirmed subscriber, oldest first.
func (r *NewsletterRepo) ListConfirmed(ctx context.Context) ([]domain.ConfirmedSubscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email, name
		FROM subscriptions
		WHERE status = $1
		ORDER BY subscribed_at, id
	`, string(domain.SubscriberConfirmed))
	if err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	defer rows.Close()

	var out []domain.ConfirmedSubscriber
	for rows.Next() {
		var s domain.ConfirmedSubscriber
		if err := rows.Scan(&s.ID, &s.Email, &s.Name); err != nil {
			return nil, fmt.Errorf("scan confirmed subscriber: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list confirmed subscribers: %w", err)
	}
	return out, nil
}
