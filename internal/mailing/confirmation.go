package mailing

import (
	"fmt"

	"github.com/ignite/newsletter/internal/domain"
)

// ConfirmationTemplates are the Liquid sources of the confirmation email.
// Each receives the variables name and link.
type ConfirmationTemplates struct {
	Subject string
	HTML    string
	Text    string
}

// DefaultConfirmationTemplates returns the built-in confirmation email.
func DefaultConfirmationTemplates() ConfirmationTemplates {
	return ConfirmationTemplates{
		Subject: `Welcome! Please confirm your subscription`,
		HTML: `<p>Hi {{ name | escape }},</p>
<p>Welcome to our newsletter!</p>
<p>Click <a href="{{ link | escape }}">here</a> to confirm your subscription.</p>`,
		Text: `Hi {{ name }},

Welcome to our newsletter!
Visit {{ link }} to confirm your subscription.`,
	}
}

const (
	confirmationSubjectKey = "confirmation:subject"
	confirmationHTMLKey    = "confirmation:html"
	confirmationTextKey    = "confirmation:text"
)

// ConfirmationRenderer builds the double opt-in email.
type ConfirmationRenderer struct {
	ts  *TemplateService
	tpl ConfirmationTemplates
}

// NewConfirmationRenderer compiles the templates up front so a broken
// template fails at startup rather than on the first subscribe.
func NewConfirmationRenderer(ts *TemplateService, tpl ConfirmationTemplates) (*ConfirmationRenderer, error) {
	for key, src := range map[string]string{
		confirmationSubjectKey: tpl.Subject,
		confirmationHTMLKey:    tpl.HTML,
		confirmationTextKey:    tpl.Text,
	} {
		ts.ClearCacheKey(key)
		if _, err := ts.compile(key, src); err != nil {
			return nil, err
		}
	}
	return &ConfirmationRenderer{ts: ts, tpl: tpl}, nil
}

// Confirmation renders the email for one subscriber. The link appears in
// both bodies; To is left for the caller.
func (r *ConfirmationRenderer) Confirmation(name, link string) (domain.EmailMessage, error) {
	vars := map[string]interface{}{"name": name, "link": link}

	subject, err := r.ts.Render(confirmationSubjectKey, r.tpl.Subject, vars)
	if err != nil {
		return domain.EmailMessage{}, fmt.Errorf("confirmation subject: %w", err)
	}
	html, err := r.ts.Render(confirmationHTMLKey, r.tpl.HTML, vars)
	if err != nil {
		return domain.EmailMessage{}, fmt.Errorf("confirmation html: %w", err)
	}
	text, err := r.ts.Render(confirmationTextKey, r.tpl.Text, vars)
	if err != nil {
		return domain.EmailMessage{}, fmt.Errorf("confirmation text: %w", err)
	}
	return domain.EmailMessage{Subject: subject, HTMLBody: html, TextBody: text}, nil
}
