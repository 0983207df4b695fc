package api

import (
	"mime"
	"net/http"

	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/subscription"
)

type subscribeRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Subscribe registers a pending subscriber and sends the confirmation email.
// Accepts a urlencoded form or a JSON body.
//
//	POST /subscriptions
func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		if err := httputil.Decode(r, &req); err != nil {
			httputil.BadRequest(w, "invalid_body", err.Error())
			return
		}
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "invalid_body", "malformed form body")
			return
		}
		req.Name = r.PostForm.Get("name")
		req.Email = r.PostForm.Get("email")
	default:
		httputil.Error(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
			"use application/x-www-form-urlencoded or application/json")
		return
	}

	if _, err := h.subscriptions.Subscribe(r.Context(), subscription.SubscribeInput{
		Name:  req.Name,
		Email: req.Email,
	}); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httputil.Empty(w)
}

// Confirm activates the subscription the token belongs to.
//
//	GET /subscriptions/confirm?token=...
func (h *Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("token") {
		httputil.BadRequest(w, "missing_token", "token query parameter is required")
		return
	}

	if err := h.subscriptions.Confirm(r.Context(), q.Get("token")); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httputil.Empty(w)
}
