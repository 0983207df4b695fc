package api

import (
	"context"

	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/newsletter"
	"github.com/ignite/newsletter/internal/service/subscription"
)

// SubscriptionService is the workflow behind /subscriptions.
type SubscriptionService interface {
	Subscribe(ctx context.Context, in subscription.SubscribeInput) (*subscription.SubscribeResult, error)
	Confirm(ctx context.Context, token string) error
}

// NewsletterPublisher is the service behind /newsletters.
type NewsletterPublisher interface {
	Publish(ctx context.Context, in newsletter.PublishInput) (*newsletter.PublishResult, error)
}

// Handlers holds the request handlers and their dependencies.
type Handlers struct {
	subscriptions SubscriptionService
	newsletters   NewsletterPublisher
	log           *logger.Logger
}

// NewHandlers creates the handler set.
func NewHandlers(subs SubscriptionService, news NewsletterPublisher, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Default()
	}
	return &Handlers{subscriptions: subs, newsletters: news, log: log.With("component", "api")}
}
