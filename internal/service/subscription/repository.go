package subscription

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// SubscriberRepository owns subscriber rows. Implementations run inside the
// transaction they were obtained from and never commit on their own.
type SubscriberRepository interface {
	// FindByEmail looks up a subscriber id by normalized email.
	FindByEmail(ctx context.Context, email domain.SubscriberEmail) (id string, found bool, err error)

	// InsertOrGet returns the id of the subscriber with this email, creating
	// a pending row if none exists. An existing row is left untouched.
	// Concurrent callers racing on one email all get the same id.
	InsertOrGet(ctx context.Context, sub domain.NewSubscriber) (string, error)

	// Get returns a subscriber by id or ErrSubscriberNotFound.
	Get(ctx context.Context, id string) (*domain.Subscriber, error)

	// MarkConfirmed moves a pending subscriber to confirmed. It reports false
	// when the subscriber was not pending, so only one caller ever wins.
	MarkConfirmed(ctx context.Context, id string) (bool, error)
}

// TokenStore owns confirmation tokens, at most one per subscriber.
type TokenStore interface {
	// GetToken returns the token issued to a subscriber, if any.
	GetToken(ctx context.Context, subscriberID string) (token string, found bool, err error)

	// GetOrCreateToken returns the existing token or issues a new one.
	GetOrCreateToken(ctx context.Context, subscriberID string) (string, error)

	// SubscriberIDByToken resolves a token to its owner.
	SubscriberIDByToken(ctx context.Context, token string) (id string, found bool, err error)
}

// Tx is a transaction-scoped view of the store.
type Tx interface {
	Subscribers() SubscriberRepository
	Tokens() TokenStore
}

// TxRunner runs fn inside one transaction: committed when fn returns nil,
// rolled back otherwise. Begin and commit failures come back as *StorageError.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Notifier delivers one email. It returns an error on transport failure or
// a non-success response from the provider.
type Notifier interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// Renderer builds the confirmation email for a subscriber. To is left empty.
type Renderer interface {
	Confirmation(name, link string) (domain.EmailMessage, error)
}
