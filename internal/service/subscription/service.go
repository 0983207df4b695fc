package subscription

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

const defaultNotifyTimeout = 10 * time.Second

// Config carries the workflow settings.
type Config struct {
	// BaseURL is the public origin confirmation links point at.
	BaseURL string
	// NotifyTimeout bounds a single confirmation email send.
	NotifyTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Service implements the subscribe and confirm operations. It is safe for
// concurrent use; all shared state lives in the store behind TxRunner.
type Service struct {
	tx       TxRunner
	notifier Notifier
	renderer Renderer
	cfg      Config
	log      *logger.Logger
}

// NewService wires the workflow to its store, notifier and email renderer.
func NewService(tx TxRunner, notifier Notifier, renderer Renderer, cfg Config, log *logger.Logger) *Service {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		tx:       tx,
		notifier: notifier,
		renderer: renderer,
		cfg:      cfg,
		log:      log.With("component", "subscription"),
	}
}

// SubscribeInput is the raw, unvalidated subscribe request.
type SubscribeInput struct {
	Name  string
	Email string
}

// SubscribeResult identifies the pending subscription.
type SubscribeResult struct {
	SubscriberID     string
	Token            string
	ConfirmationLink string
}

// Subscribe validates the input, persists the subscriber and its token in
// one transaction, and then emails the confirmation link. Repeating the call
// for the same email reuses the subscriber and token and re-sends the same
// link, greeting the name stored by the first call.
//
// Errors: *domain.ValidationError (nothing persisted), *StorageError
// (nothing persisted), *NotifierError (subscriber and token persisted).
func (s *Service) Subscribe(ctx context.Context, in SubscribeInput) (*SubscribeResult, error) {
	sub, err := domain.ParseNewSubscriber(in.Name, in.Email)
	if err != nil {
		s.cfg.Metrics.Subscription(metrics.OutcomeRejected)
		return nil, err
	}

	var (
		subscriberID, token string
		recipient           domain.NewSubscriber
	)
	err = s.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		id, err := tx.Subscribers().InsertOrGet(ctx, sub)
		if err != nil {
			return fmt.Errorf("insert or get subscriber: %w", err)
		}
		// A repeat subscribe leaves the row as first stored; the email is
		// addressed with the stored name, never the caller's.
		stored, err := tx.Subscribers().Get(ctx, id)
		if err != nil {
			return fmt.Errorf("load subscriber: %w", err)
		}
		tok, err := tx.Tokens().GetOrCreateToken(ctx, id)
		if err != nil {
			return fmt.Errorf("get or create token: %w", err)
		}
		subscriberID, token = id, tok
		recipient = domain.NewSubscriber{
			Name:  domain.SubscriberName(stored.Name),
			Email: domain.SubscriberEmail(stored.Email),
		}
		return nil
	})
	if err != nil {
		s.log.Error("subscription not persisted", "email", sub.Email, "error", err)
		s.cfg.Metrics.Subscription(metrics.OutcomeFailed)
		return nil, fmt.Errorf("persist subscription: %w", NewStorageError(OpQuery, err))
	}

	result := &SubscribeResult{
		SubscriberID:     subscriberID,
		Token:            token,
		ConfirmationLink: s.confirmationLink(token),
	}

	if err := s.sendConfirmation(ctx, recipient, result); err != nil {
		s.log.Error("confirmation email not sent",
			"subscriber_id", subscriberID, "email", sub.Email, "error", err)
		s.cfg.Metrics.Subscription(metrics.OutcomeFailed)
		return nil, &NotifierError{SubscriberID: subscriberID, Err: err}
	}

	s.cfg.Metrics.Subscription(metrics.OutcomeOK)
	s.log.Info("confirmation email sent", "subscriber_id", subscriberID, "email", sub.Email)
	return result, nil
}

// Confirm moves the token owner from pending to confirmed.
//
// Errors: *domain.ValidationError for an empty token, ErrUnknownToken,
// ErrAlreadyConfirmed, *StorageError.
func (s *Service) Confirm(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		s.cfg.Metrics.Confirmation(metrics.OutcomeRejected)
		return &domain.ValidationError{Field: "token", Reason: "token is required"}
	}
	if !ValidTokenFormat(token) {
		s.cfg.Metrics.Confirmation(metrics.OutcomeRejected)
		return ErrUnknownToken
	}

	var subscriberID string
	err := s.runInTx(ctx, func(ctx context.Context, tx Tx) error {
		id, found, err := tx.Tokens().SubscriberIDByToken(ctx, token)
		if err != nil {
			return fmt.Errorf("resolve token: %w", err)
		}
		if !found {
			return ErrUnknownToken
		}
		subscriberID = id

		sub, err := tx.Subscribers().Get(ctx, id)
		if errors.Is(err, ErrSubscriberNotFound) {
			return ErrUnknownToken
		}
		if err != nil {
			return fmt.Errorf("load subscriber: %w", err)
		}
		if sub.Status == domain.SubscriberConfirmed {
			return ErrAlreadyConfirmed
		}

		changed, err := tx.Subscribers().MarkConfirmed(ctx, id)
		if err != nil {
			return fmt.Errorf("mark confirmed: %w", err)
		}
		if !changed {
			// A concurrent confirm won the conditional update.
			return ErrAlreadyConfirmed
		}
		return nil
	})

	switch {
	case err == nil:
		s.cfg.Metrics.Confirmation(metrics.OutcomeOK)
		s.log.Info("subscription confirmed", "subscriber_id", subscriberID)
		return nil
	case errors.Is(err, ErrUnknownToken), errors.Is(err, ErrAlreadyConfirmed):
		s.cfg.Metrics.Confirmation(metrics.OutcomeRejected)
		s.log.Debug("confirmation rejected", "subscriber_id", subscriberID, "reason", err)
		return err
	default:
		s.cfg.Metrics.Confirmation(metrics.OutcomeFailed)
		s.log.Error("confirmation failed", "subscriber_id", subscriberID, "error", err)
		return fmt.Errorf("confirm subscription: %w", NewStorageError(OpQuery, err))
	}
}

// runInTx detaches the transaction from the caller's cancellation so a
// client disconnect cannot abandon an open transaction. The runner bounds
// its duration.
func (s *Service) runInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return s.tx.RunInTx(context.WithoutCancel(ctx), fn)
}

func (s *Service) sendConfirmation(ctx context.Context, sub domain.NewSubscriber, result *SubscribeResult) error {
	msg, err := s.renderer.Confirmation(sub.Name.String(), result.ConfirmationLink)
	if err != nil {
		return fmt.Errorf("render confirmation email: %w", err)
	}
	msg.To = sub.Email.String()

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()
	err = s.notifier.Send(sendCtx, msg)
	s.cfg.Metrics.EmailSent("confirmation", err)
	return err
}

func (s *Service) confirmationLink(token string) string {
	return s.cfg.BaseURL + "/subscriptions/confirm?" + url.Values{"token": {token}}.Encode()
}
