package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/service/subscription"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func fixedTokens(tokens ...string) func() string {
	i := 0
	return func() string {
		tok := tokens[i%len(tokens)]
		i++
		return tok
	}
}

var (
	insertSubscriberSQL = regexp.QuoteMeta(`INSERT INTO subscriptions`)
	findByEmailSQL      = regexp.QuoteMeta(`SELECT id FROM subscriptions WHERE email = $1`)
	getSubscriberSQL    = regexp.QuoteMeta(`SELECT id, email, name, status, subscribed_at`)
	confirmSQL          = regexp.QuoteMeta(`UPDATE subscriptions SET status = $2`)
	getTokenSQL         = regexp.QuoteMeta(`SELECT subscription_token FROM subscription_tokens WHERE subscriber_id = $1`)
	insertTokenSQL      = regexp.QuoteMeta(`INSERT INTO subscription_tokens`)
	resolveTokenSQL     = regexp.QuoteMeta(`SELECT subscriber_id FROM subscription_tokens WHERE subscription_token = $1`)
)

func newSubscriber(t *testing.T) domain.NewSubscriber {
	t.Helper()
	sub, err := domain.ParseNewSubscriber("Ursula", "ursula@example.com")
	require.NoError(t, err)
	return sub
}

func TestStore_RunInTx_Commits(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, time.Second)
	store.newToken = fixedTokens("tokentokentokentokentoken")

	mock.ExpectBegin()
	mock.ExpectQuery(insertSubscriberSQL).
		WithArgs(sqlmock.AnyArg(), "ursula@example.com", "Ursula", "pending_confirmation").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sub-1"))
	mock.ExpectQuery(getTokenSQL).WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	mock.ExpectExec(insertTokenSQL).WithArgs("tokentokentokentokentoken", "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(getTokenSQL).WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}).AddRow("tokentokentokentokentoken"))
	mock.ExpectCommit()

	var id, token string
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx subscription.Tx) error {
		var err error
		if id, err = tx.Subscribers().InsertOrGet(ctx, newSubscriber(t)); err != nil {
			return err
		}
		token, err = tx.Tokens().GetOrCreateToken(ctx, id)
		return err
	})

	require.NoError(t, err)
	assert.Equal(t, "sub-1", id)
	assert.Equal(t, "tokentokentokentokentoken", token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunInTx_RollsBackOnError(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectRollback()

	sentinel := errors.New("stop")
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx subscription.Tx) error {
		return sentinel
	})

	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunInTx_BeginFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, 0)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	called := false
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx subscription.Tx) error {
		called = true
		return nil
	})

	var se *subscription.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, subscription.OpAcquire, se.Op)
	assert.False(t, called)
}

func TestStore_RunInTx_CommitFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, 0)

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("could not serialize access"))

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx subscription.Tx) error {
		return nil
	})

	var se *subscription.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, subscription.OpCommit, se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_RunInTx_AppliesTimeout(t *testing.T) {
	db, mock := setupMockDB(t)
	store := NewStore(db, 50*time.Millisecond)

	mock.ExpectBegin()
	mock.ExpectRollback()

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx subscription.Tx) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
		return errors.New("done")
	})
	assert.Error(t, err)
}

func TestSubscriberRepo_InsertOrGet_Conflict(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &SubscriberRepo{q: db}

	mock.ExpectQuery(insertSubscriberSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(findByEmailSQL).WithArgs("ursula@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("existing-id"))

	id, err := repo.InsertOrGet(context.Background(), newSubscriber(t))

	require.NoError(t, err)
	assert.Equal(t, "existing-id", id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepo_InsertOrGet_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		wantOp subscription.StorageOp
	}{
		{"generic failure", errors.New("disk full"), subscription.OpInsert},
		{"connection failure", &pq.Error{Code: "08006"}, subscription.OpAcquire},
		{"admin shutdown", &pq.Error{Code: "57P01"}, subscription.OpAcquire},
		{"conn done", sql.ErrConnDone, subscription.OpAcquire},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := setupMockDB(t)
			repo := &SubscriberRepo{q: db}
			mock.ExpectQuery(insertSubscriberSQL).WillReturnError(tt.err)

			_, err := repo.InsertOrGet(context.Background(), newSubscriber(t))

			var se *subscription.StorageError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.wantOp, se.Op)
		})
	}
}

func TestSubscriberRepo_Get(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &SubscriberRepo{q: db}
	now := time.Now().UTC().Truncate(time.Second)

	mock.ExpectQuery(getSubscriberSQL).WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}).
			AddRow("sub-1", "ursula@example.com", "Ursula", "confirmed", now))
	mock.ExpectQuery(getSubscriberSQL).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name", "status", "subscribed_at"}))

	sub, err := repo.Get(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriberConfirmed, sub.Status)
	assert.Equal(t, now, sub.SubscribedAt)

	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, subscription.ErrSubscriberNotFound)
}

func TestSubscriberRepo_MarkConfirmed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &SubscriberRepo{q: db}

	mock.ExpectExec(confirmSQL).WithArgs("sub-1", "confirmed", "pending_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(confirmSQL).WithArgs("sub-1", "confirmed", "pending_confirmation").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(confirmSQL).WillReturnError(errors.New("deadlock detected"))

	changed, err := repo.MarkConfirmed(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.MarkConfirmed(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = repo.MarkConfirmed(context.Background(), "sub-1")
	var se *subscription.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, subscription.OpUpdate, se.Op)
}

func TestTokenRepo_GetOrCreateToken_Existing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &TokenRepo{q: db, newToken: func() string {
		t.Fatal("no token should be generated")
		return ""
	}}

	mock.ExpectQuery(getTokenSQL).WithArgs("sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}).AddRow("existing"))

	tok, err := repo.GetOrCreateToken(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "existing", tok)
}

func TestTokenRepo_GetOrCreateToken_RetriesCollision(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &TokenRepo{q: db, newToken: fixedTokens("taken", "fresh")}

	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	mock.ExpectExec(insertTokenSQL).WithArgs("taken", "sub-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	mock.ExpectExec(insertTokenSQL).WithArgs("fresh", "sub-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}).AddRow("fresh"))

	tok, err := repo.GetOrCreateToken(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_GetOrCreateToken_ConcurrentWinner(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &TokenRepo{q: db, newToken: fixedTokens("mine")}

	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	mock.ExpectExec(insertTokenSQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}).AddRow("theirs"))

	tok, err := repo.GetOrCreateToken(context.Background(), "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "theirs", tok)
}

func TestTokenRepo_GetOrCreateToken_GivesUp(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &TokenRepo{q: db, newToken: fixedTokens("taken")}

	mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	for i := 0; i < maxTokenAttempts; i++ {
		mock.ExpectExec(insertTokenSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(getTokenSQL).WillReturnRows(sqlmock.NewRows([]string{"subscription_token"}))
	}

	_, err := repo.GetOrCreateToken(context.Background(), "sub-1")

	var se *subscription.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, subscription.OpInsert, se.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenRepo_SubscriberIDByToken(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := &TokenRepo{q: db}

	mock.ExpectQuery(resolveTokenSQL).WithArgs("known").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}).AddRow("sub-1"))
	mock.ExpectQuery(resolveTokenSQL).WithArgs("unknown").
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id"}))
	mock.ExpectQuery(resolveTokenSQL).WithArgs("broken").
		WillReturnError(fmt.Errorf("network unreachable"))

	id, found, err := repo.SubscriberIDByToken(context.Background(), "known")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "sub-1", id)

	_, found, err = repo.SubscriberIDByToken(context.Background(), "unknown")
	require.NoError(t, err)
	assert.False(t, found)

	_, _, err = repo.SubscriberIDByToken(context.Background(), "broken")
	var se *subscription.StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, subscription.OpQuery, se.Op)
}

func TestNewsletterRepo_ListConfirmed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNewsletterRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, name`)).WithArgs("confirmed").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "name"}).
			AddRow("sub-1", "a@example.com", "A").
			AddRow("sub-2", "b@example.com", "B"))

	subs, err := repo.ListConfirmed(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "b@example.com", subs[1].Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewsletterRepo_ListConfirmed_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewNewsletterRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, email, name`)).WillReturnError(errors.New("timeout"))

	_, err := repo.ListConfirmed(context.Background())
	assert.Error(t, err)
}
