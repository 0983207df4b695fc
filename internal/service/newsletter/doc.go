// Package newsletter implements publishing an issue to every confirmed
// subscriber.
//
// A publish may carry an idempotency key. The key guards the publish with a
// distributed lock, and an issue already archived under the key is
// replayed instead of re-sent.
//
// The service depends on the Repository, Notifier and Composer interfaces
// defined in repository.go. It never imports net/http or database/sql
// directly.
package newsletter
