package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/subscription"
)

// SubscriberRepo implements subscription.SubscriberRepository.
type SubscriberRepo struct{ q querier }

func (r *SubscriberRepo) FindByEmail(ctx context.Context, email domain.SubscriberEmail) (string, bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx,
		`SELECT id FROM subscriptions WHERE email = $1`, email.String(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError(subscription.OpQuery, fmt.Errorf("find subscriber by email: %w", err))
	}
	return id, true, nil
}

// InsertOrGet relies on ON CONFLICT rather than catching a unique violation,
// which would abort the surrounding transaction.
func (r *SubscriberRepo) InsertOrGet(ctx context.Context, sub domain.NewSubscriber) (string, error) {
	var id string
	err := r.q.QueryRowContext(ctx, `
		INSERT INTO subscriptions (id, email, name, status, subscribed_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO NOTHING
		RETURNING id
	`, uuid.New().String(), sub.Email.String(), sub.Name.String(), string(domain.SubscriberPendingConfirmation),
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", storageError(subscription.OpInsert, fmt.Errorf("insert subscriber: %w", err))
	}

	id, found, err := r.FindByEmail(ctx, sub.Email)
	if err != nil {
		return "", err
	}
	if !found {
		return "", storageError(subscription.OpQuery, fmt.Errorf("subscriber %s vanished after conflict", sub.Email))
	}
	return id, nil
}

func (r *SubscriberRepo) Get(ctx context.Context, id string) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.q.QueryRowContext(ctx, `
		SELECT id, email, name, status, subscribed_at
		FROM subscriptions
		WHERE id = $1
	`, id).Scan(&s.ID, &s.Email, &s.Name, &s.Status, &s.SubscribedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscription.ErrSubscriberNotFound
	}
	if err != nil {
		return nil, storageError(subscription.OpQuery, fmt.Errorf("get subscriber: %w", err))
	}
	return s, nil
}

func (r *SubscriberRepo) MarkConfirmed(ctx context.Context, id string) (bool, error) {
	res, err := r.q.ExecContext(ctx, `
		UPDATE subscriptions SET status = $2
		WHERE id = $1 AND status = $3
	`, id, string(domain.SubscriberConfirmed), string(domain.SubscriberPendingConfirmation))
	if err != nil {
		return false, storageError(subscription.OpUpdate, fmt.Errorf("confirm subscriber: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storageError(subscription.OpUpdate, fmt.Errorf("confirm subscriber: %w", err))
	}
	return n == 1, nil
}
