package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/newsletter"
	"github.com/ignite/newsletter/internal/service/subscription"
)

// respondServiceError maps a service error to its status code. Causes of 5xx
// responses are logged and never leave the process.
func (h *Handlers) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		ve *domain.ValidationError
		se *subscription.StorageError
		ne *subscription.NotifierError
		de *newsletter.DeliveryError
	)
	switch {
	case errors.As(err, &ve):
		httputil.BadRequest(w, "validation_failed", ve.Error())
	case errors.Is(err, subscription.ErrUnknownToken):
		httputil.Error(w, http.StatusUnauthorized, "unknown_token", "confirmation token is unknown")
	case errors.Is(err, subscription.ErrAlreadyConfirmed):
		httputil.BadRequest(w, "already_confirmed", "subscription is already confirmed")
	case errors.Is(err, newsletter.ErrPublishInProgress):
		httputil.Error(w, http.StatusConflict, "publish_in_progress", err.Error())
	case errors.As(err, &ne):
		h.log.Error("notification failed",
			"request_id", middleware.GetReqID(r.Context()), "subscriber_id", ne.SubscriberID, "error", ne.Err)
		httputil.Error(w, http.StatusInternalServerError, "notification_failed", "could not send email")
	case errors.As(err, &de):
		h.log.Error("newsletter delivery failed",
			"request_id", middleware.GetReqID(r.Context()), "issue_key", de.IssueKey,
			"subscriber_id", de.SubscriberID, "delivered", de.Delivered, "error", de.Err)
		httputil.Error(w, http.StatusInternalServerError, "notification_failed", "could not send email")
	case errors.As(err, &se):
		h.log.Error("storage failed",
			"request_id", middleware.GetReqID(r.Context()), "op", se.Op, "error", se.Err)
		httputil.Error(w, http.StatusInternalServerError, "storage_failed", "internal server error")
	default:
		httputil.InternalError(w, h.log.With("request_id", middleware.GetReqID(r.Context())), err)
	}
}
