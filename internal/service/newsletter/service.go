package newsletter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/metrics"
	"github.com/ignite/newsletter/internal/pkg/distlock"
	"github.com/ignite/newsletter/internal/pkg/logger"
	"github.com/ignite/newsletter/internal/service/subscription"
	"github.com/ignite/newsletter/internal/storage"
)

const defaultNotifyTimeout = 10 * time.Second

// Config tunes publishing.
type Config struct {
	// NotifyTimeout bounds each individual send.
	NotifyTimeout time.Duration
	// Metrics is optional.
	Metrics *metrics.Metrics
}

// Service publishes newsletter issues. It is safe for concurrent use.
type Service struct {
	repo     Repository
	notifier Notifier
	composer Composer
	archive  storage.Archive
	locks    distlock.Factory
	cfg      Config
	log      *logger.Logger
	now      func() time.Time
}

// NewService wires the publisher. A nil archive keeps nothing.
func NewService(repo Repository, notifier Notifier, composer Composer, archive storage.Archive, locks distlock.Factory, cfg Config, log *logger.Logger) *Service {
	if archive == nil {
		archive = storage.NopArchive{}
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	if log == nil {
		log = logger.Default()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		composer: composer,
		archive:  archive,
		locks:    locks,
		cfg:      cfg,
		log:      log.With("component", "newsletter"),
		now:      time.Now,
	}
}

// PublishInput is the raw publish request.
type PublishInput struct {
	Title          string
	Text           string
	HTML           string
	IdempotencyKey string
}

// PublishResult reports a publish. Replayed is true when the issue had
// already been published under the same key and nothing was sent.
type PublishResult struct {
	Report   domain.DeliveryReport
	Replayed bool
}

// Publish validates the issue and sends it to every confirmed subscriber.
// Stored addresses that no longer validate are skipped. The first failed
// send aborts the publish with a *DeliveryError; subscribers
// already reached are not tracked, so a retry sends to them again.
//
// Errors: *domain.ValidationError, ErrPublishInProgress,
// *subscription.StorageError, *DeliveryError.
func (s *Service) Publish(ctx context.Context, in PublishInput) (*PublishResult, error) {
	issue, err := domain.ParseNewsletterIssue(in.Title, in.Text, in.HTML)
	if err != nil {
		return nil, err
	}

	// Sends continue even if the caller goes away mid-publish.
	ctx = context.WithoutCancel(ctx)

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.New().String()
		return s.deliver(ctx, key, issue)
	}
	if !storage.ValidKey(key) {
		return nil, &domain.ValidationError{
			Field:  "Idempotency-Key",
			Reason: "idempotency key must be 1-128 characters of letters, digits, '.', '_' or '-'",
		}
	}

	lock := s.locks.NewLock("newsletter:" + key)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire publish lock: %w", err)
	}
	if !acquired {
		return nil, ErrPublishInProgress
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.log.Warn("publish lock release failed", "issue_key", key, "error", err)
		}
	}()

	rec, err := s.archive.Get(ctx, key)
	switch {
	case err == nil:
		s.log.Info("newsletter already published, replaying", "issue_key", key)
		return &PublishResult{Replayed: true, Report: domain.DeliveryReport{
			IssueKey:    rec.Key,
			Delivered:   rec.Delivered,
			Skipped:     rec.Skipped,
			PublishedAt: rec.PublishedAt,
		}}, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("look up archived issue: %w", err)
	}

	return s.deliver(ctx, key, issue)
}

func (s *Service) deliver(ctx context.Context, key string, issue domain.NewsletterIssue) (*PublishResult, error) {
	defer s.cfg.Metrics.ObservePublish(time.Now())

	subs, err := s.repo.ListConfirmed(ctx)
	if err != nil {
		return nil, subscription.NewStorageError(subscription.OpQuery, fmt.Errorf("list confirmed subscribers: %w", err))
	}

	message := s.composer.Compose(issue)
	report := domain.DeliveryReport{IssueKey: key}

	for _, sub := range subs {
		email, err := domain.ParseSubscriberEmail(sub.Email)
		if err != nil {
			s.log.Warn("skipping confirmed subscriber with invalid stored email",
				"subscriber_id", sub.ID, "error", err)
			report.Skipped++
			s.cfg.Metrics.RecipientSkipped()
			continue
		}
		sub.Email = email.String()

		if err := s.send(ctx, message(sub)); err != nil {
			s.log.Error("newsletter delivery aborted",
				"issue_key", key, "subscriber_id", sub.ID, "delivered", report.Delivered, "error", err)
			return nil, &DeliveryError{IssueKey: key, SubscriberID: sub.ID, Delivered: report.Delivered, Err: err}
		}
		report.Delivered++
	}
	report.PublishedAt = s.now().UTC()

	// The issue is out; an archive failure must not make the caller retry.
	if err := s.archive.Save(ctx, storage.IssueRecord{
		Key:         key,
		Title:       issue.Title,
		TextBody:    issue.TextBody,
		HTMLBody:    issue.HTMLBody,
		Delivered:   report.Delivered,
		Skipped:     report.Skipped,
		PublishedAt: report.PublishedAt,
	}); err != nil {
		s.log.Error("newsletter archive failed", "issue_key", key, "error", err)
	}

	s.log.Info("newsletter published",
		"issue_key", key, "delivered", report.Delivered, "skipped", report.Skipped)
	return &PublishResult{Report: report}, nil
}

func (s *Service) send(ctx context.Context, msg domain.EmailMessage) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()
	err := s.notifier.Send(sendCtx, msg)
	s.cfg.Metrics.EmailSent("newsletter", err)
	return err
}
