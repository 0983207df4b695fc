package domain

// EmailMessage is one outgoing email as handed to a notifier.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}
