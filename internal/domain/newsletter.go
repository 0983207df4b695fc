package domain

import (
	"strings"
	"time"
)

// NewsletterIssue is a validated newsletter ready to be sent.
type NewsletterIssue struct {
	Title    string `json:"title"`
	TextBody string `json:"text"`
	HTMLBody string `json:"html"`
}

// ParseNewsletterIssue requires a title and both renditions of the content.
func ParseNewsletterIssue(title, text, html string) (NewsletterIssue, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return NewsletterIssue{}, &ValidationError{Field: "title", Reason: "title is required"}
	}
	if strings.TrimSpace(text) == "" {
		return NewsletterIssue{}, &ValidationError{Field: "content.text", Reason: "text content is required"}
	}
	if strings.TrimSpace(html) == "" {
		return NewsletterIssue{}, &ValidationError{Field: "content.html", Reason: "html content is required"}
	}
	return NewsletterIssue{Title: title, TextBody: text, HTMLBody: html}, nil
}

// ConfirmedSubscriber is the projection used for newsletter delivery.
type ConfirmedSubscriber struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DeliveryReport summarizes one newsletter publish.
type DeliveryReport struct {
	IssueKey    string    `json:"issue_key"`
	Delivered   int       `json:"delivered"`
	Skipped     int       `json:"skipped"`
	PublishedAt time.Time `json:"published_at"`
}
