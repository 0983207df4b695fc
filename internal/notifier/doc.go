// Package notifier delivers single emails through an outside provider:
// a Postmark-style JSON HTTP API or AWS SES v2. Both satisfy
// subscription.Notifier and newsletter.Notifier.
package notifier
