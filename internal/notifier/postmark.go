package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

// StatusError is a non-2xx answer from the email API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("email api returned %d: %s", e.StatusCode, e.Body)
}

// PostmarkClient sends through POST {base}/email authenticated with the
// X-Postmark-Server-Token header.
type PostmarkClient struct {
	endpoint string
	sender   domain.SubscriberEmail
	token    string
	http     httpretry.HTTPDoer
	log      *logger.Logger
}

// NewPostmarkClient validates the sender and base URL. doer is usually a
// *httpretry.RetryClient; the per-send timeout comes from the caller's
// context.
func NewPostmarkClient(baseURL, sender, token string, doer httpretry.HTTPDoer, log *logger.Logger) (*PostmarkClient, error) {
	from, err := domain.ParseSubscriberEmail(sender)
	if err != nil {
		return nil, fmt.Errorf("email sender: %w", err)
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("email base url %q is not an absolute URL", baseURL)
	}
	if doer == nil {
		doer = httpretry.NewRetryClient(nil, 0)
	}
	if log == nil {
		log = logger.Default()
	}
	return &PostmarkClient{
		endpoint: u.JoinPath("email").String(),
		sender:   from,
		token:    token,
		http:     doer,
		log:      log,
	}, nil
}

type postmarkRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HTMLBody string `json:"HtmlBody"`
	TextBody string `json:"TextBody"`
}

// Send implements subscription.Notifier.
func (c *PostmarkClient) Send(ctx context.Context, msg domain.EmailMessage) error {
	body, err := json.Marshal(postmarkRequest{
		From:     c.sender.String(),
		To:       msg.To,
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	c.log.Debug("email accepted", "recipient", msg.To, "provider", "postmark")
	return nil
}
