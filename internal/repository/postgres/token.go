package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ignite/newsletter/internal/service/subscription"
)

// maxTokenAttempts bounds retries after a generated token collides with an
// existing one.
const maxTokenAttempts = 3

// TokenRepo implements subscription.TokenStore.
type TokenRepo struct {
	q        querier
	newToken func() string
}

func (r *TokenRepo) GetToken(ctx context.Context, subscriberID string) (string, bool, error) {
	var token string
	err := r.q.QueryRowContext(ctx,
		`SELECT subscription_token FROM subscription_tokens WHERE subscriber_id = $1`, subscriberID,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError(subscription.OpQuery, fmt.Errorf("get token: %w", err))
	}
	return token, true, nil
}

// GetOrCreateToken inserts with ON CONFLICT DO NOTHING and reads back the
// row for the subscriber. A concurrent writer for the same subscriber wins
// and its token is returned; a collision on the token itself is retried
// with a fresh one.
func (r *TokenRepo) GetOrCreateToken(ctx context.Context, subscriberID string) (string, error) {
	token, found, err := r.GetToken(ctx, subscriberID)
	if err != nil || found {
		return token, err
	}

	for attempt := 0; attempt < maxTokenAttempts; attempt++ {
		if _, err := r.q.ExecContext(ctx, `
			INSERT INTO subscription_tokens (subscription_token, subscriber_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, r.newToken(), subscriberID); err != nil {
			return "", storageError(subscription.OpInsert, fmt.Errorf("insert token: %w", err))
		}

		token, found, err = r.GetToken(ctx, subscriberID)
		if err != nil || found {
			return token, err
		}
	}
	return "", storageError(subscription.OpInsert,
		fmt.Errorf("insert token: no unique token after %d attempts", maxTokenAttempts))
}

func (r *TokenRepo) SubscriberIDByToken(ctx context.Context, token string) (string, bool, error) {
	var id string
	err := r.q.QueryRowContext(ctx,
		`SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1`, token,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageError(subscription.OpQuery, fmt.Errorf("resolve token: %w", err))
	}
	return id, true, nil
}
