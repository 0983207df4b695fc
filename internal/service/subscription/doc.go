// Package subscription implements the double opt-in workflow.
//
// Subscribe persists a pending subscriber and its confirmation token in one
// transaction, then emails the confirmation link. Confirm flips the
// subscriber to confirmed exactly once.
//
// The service depends on the transactional Tx contract defined in
// repository.go and on a Notifier for outgoing mail. It never imports
// net/http or database/sql directly.
package subscription
