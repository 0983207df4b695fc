package mailing

import (
	"html"

	"github.com/osteele/liquid"

	"github.com/ignite/newsletter/internal/domain"
)

// PreparedIssue is a newsletter issue compiled once for a whole send. The
// bodies may reference {{ name }} and {{ email }}. In the HTML body both are
// bound already HTML-escaped, so templates must not add "| escape".
type PreparedIssue struct {
	issue domain.NewsletterIssue
	html  *liquid.Template
	text  *liquid.Template
}

// PrepareIssue compiles the issue bodies. A body that is not valid Liquid is
// sent verbatim instead of failing the publish.
func (ts *TemplateService) PrepareIssue(issue domain.NewsletterIssue) *PreparedIssue {
	p := &PreparedIssue{issue: issue}
	if tpl, err := ts.engine.ParseString(issue.HTMLBody); err == nil {
		p.html = tpl
	}
	if tpl, err := ts.engine.ParseString(issue.TextBody); err == nil {
		p.text = tpl
	}
	return p
}

// Message renders the issue for one subscriber.
func (p *PreparedIssue) Message(to domain.ConfirmedSubscriber) domain.EmailMessage {
	textVars := liquid.Bindings{"name": to.Name, "email": to.Email}
	htmlVars := liquid.Bindings{"name": html.EscapeString(to.Name), "email": html.EscapeString(to.Email)}
	return domain.EmailMessage{
		To:       to.Email,
		Subject:  p.issue.Title,
		HTMLBody: renderOr(p.html, htmlVars, p.issue.HTMLBody),
		TextBody: renderOr(p.text, textVars, p.issue.TextBody),
	}
}

func renderOr(tpl *liquid.Template, vars liquid.Bindings, fallback string) string {
	if tpl == nil {
		return fallback
	}
	out, err := tpl.RenderString(vars)
	if err != nil {
		return fallback
	}
	return out
}

// Compose implements newsletter.Composer.
func (ts *TemplateService) Compose(issue domain.NewsletterIssue) func(to domain.ConfirmedSubscriber) domain.EmailMessage {
	return ts.PrepareIssue(issue).Message
}
