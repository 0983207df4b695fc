package newsletter

import (
	"context"

	"github.com/ignite/newsletter/internal/domain"
)

// Repository reads the delivery audience.
type Repository interface {
	// ListConfirmed returns every subscriber in the confirmed state.
	ListConfirmed(ctx context.Context) ([]domain.ConfirmedSubscriber, error)
}

// Notifier delivers one email.
type Notifier interface {
	Send(ctx context.Context, msg domain.EmailMessage) error
}

// Composer turns an issue into a per-subscriber message builder.
type Composer interface {
	Compose(issue domain.NewsletterIssue) func(to domain.ConfirmedSubscriber) domain.EmailMessage
}
