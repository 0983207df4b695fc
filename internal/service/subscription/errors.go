package subscription

import (
	"errors"
	"fmt"
)

// Sentinel errors for expected workflow outcomes.
var (
	ErrUnknownToken       = errors.New("confirmation token is unknown")
	ErrAlreadyConfirmed   = errors.New("subscription is already confirmed")
	ErrSubscriberNotFound = errors.New("subscriber not found")
)

// StorageOp names the storage step that failed.
type StorageOp string

const (
	OpAcquire StorageOp = "acquire"
	OpQuery   StorageOp = "query"
	OpInsert  StorageOp = "insert"
	OpUpdate  StorageOp = "update"
	OpCommit  StorageOp = "commit"
)

// StorageError wraps a failure of the relational store. The subscriber
// state is unknown to the caller; the transaction was rolled back.
type StorageError struct {
	Op  StorageOp
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it is nil or already a *StorageError.
func NewStorageError(op StorageOp, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

// NotifierError wraps a failed confirmation email. The subscriber and its
// token were committed before the send was attempted.
type NotifierError struct {
	SubscriberID string
	Err          error
}

func (e *NotifierError) Error() string {
	return fmt.Sprintf("send confirmation email to subscriber %s: %v", e.SubscriberID, e.Err)
}

func (e *NotifierError) Unwrap() error { return e.Err }
