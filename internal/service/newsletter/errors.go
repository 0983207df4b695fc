package newsletter

import (
	"errors"
	"fmt"
)

// ErrPublishInProgress is returned when another publish holds the lock for
// the same idempotency key.
var ErrPublishInProgress = errors.New("a publish with this idempotency key is already in progress")

// DeliveryError reports the send that aborted a publish. Subscribers before
// it in the delivery order already received the issue.
type DeliveryError struct {
	IssueKey     string
	SubscriberID string
	Delivered    int
	Err          error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("send newsletter %s to subscriber %s (after %d delivered): %v",
		e.IssueKey, e.SubscriberID, e.Delivered, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
