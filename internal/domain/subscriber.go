package domain

import (
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// SubscriberStatus enumerates the states a subscriber can be in.
// The only transition is PendingConfirmation -> Confirmed.
type SubscriberStatus string

const (
	SubscriberPendingConfirmation SubscriberStatus = "pending_confirmation"
	SubscriberConfirmed           SubscriberStatus = "confirmed"
)

// Valid reports whether s is a known status.
func (s SubscriberStatus) Valid() bool {
	return s == SubscriberPendingConfirmation || s == SubscriberConfirmed
}

// MaxNameLength is the longest display name accepted, in characters.
const MaxNameLength = 256

const (
	maxEmailLength     = 254
	maxEmailLocalPart  = 64
	maxEmailDomainPart = 253
)

// Subscriber is one person's subscription to the newsletter.
type Subscriber struct {
	ID           string           `json:"id" db:"id"`
	Email        string           `json:"email" db:"email"`
	Name         string           `json:"name" db:"name"`
	Status       SubscriberStatus `json:"status" db:"status"`
	SubscribedAt time.Time        `json:"subscribed_at" db:"subscribed_at"`
}

// SubscriberName is a display name that passed validation.
type SubscriberName string

// ParseSubscriberName trims raw and rejects empty, overlong or
// control-character-bearing names.
func ParseSubscriberName(raw string) (SubscriberName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", &ValidationError{Field: "name", Reason: "name is required"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", &ValidationError{Field: "name", Reason: "name must be at most 256 characters"}
	}
	for _, r := range name {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return "", &ValidationError{Field: "name", Reason: "name contains invalid characters"}
		}
	}
	return SubscriberName(name), nil
}

func (n SubscriberName) String() string { return string(n) }

// SubscriberEmail is a syntactically valid, normalized email address.
type SubscriberEmail string

// ParseSubscriberEmail trims and lower-cases raw and checks it against the
// local-part "@" domain grammar.
func ParseSubscriberEmail(raw string) (SubscriberEmail, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", &ValidationError{Field: "email", Reason: "email is required"}
	}
	if !ValidEmail(email) {
		return "", &ValidationError{Field: "email", Reason: "email is not a valid address"}
	}
	return SubscriberEmail(email), nil
}

func (e SubscriberEmail) String() string { return string(e) }

// ValidEmail reports whether email is a bare address of the form
// local@domain.tld. Display names and angle brackets are rejected.
func ValidEmail(email string) bool {
	if len(email) < 3 || len(email) > maxEmailLength {
		return false
	}
	if strings.ContainsFunc(email, unicode.IsSpace) {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	local, host := parts[0], parts[1]
	if local == "" || len(local) > maxEmailLocalPart {
		return false
	}
	if host == "" || len(host) > maxEmailDomainPart || !strings.Contains(host, ".") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" {
			return false
		}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && strings.EqualFold(addr.Address, email)
}

// NewSubscriber is validated subscribe input, ready for persistence.
type NewSubscriber struct {
	Name  SubscriberName
	Email SubscriberEmail
}

// ParseNewSubscriber validates both fields. The name is checked first, so a
// request with two bad fields reports the name.
func ParseNewSubscriber(name, email string) (NewSubscriber, error) {
	n, err := ParseSubscriberName(name)
	if err != nil {
		return NewSubscriber{}, err
	}
	e, err := ParseSubscriberEmail(email)
	if err != nil {
		return NewSubscriber{}, err
	}
	return NewSubscriber{Name: n, Email: e}, nil
}
