package api

import (
	"net/http"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httputil"
	"github.com/ignite/newsletter/internal/service/newsletter"
)

type publishRequest struct {
	Title   string `json:"title"`
	Content struct {
		Text string `json:"text"`
		HTML string `json:"html"`
	} `json:"content"`
}

type publishResponse struct {
	domain.DeliveryReport
	Replayed bool `json:"replayed"`
}

// PublishNewsletter sends an issue to every confirmed subscriber. An
// Idempotency-Key header makes retries safe.
//
//	POST /newsletters
func (h *Handlers) PublishNewsletter(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := httputil.Decode(r, &req); err != nil {
		httputil.BadRequest(w, "invalid_body", err.Error())
		return
	}

	res, err := h.newsletters.Publish(r.Context(), newsletter.PublishInput{
		Title:          req.Title,
		Text:           req.Content.Text,
		HTML:           req.Content.HTML,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	httputil.OK(w, publishResponse{DeliveryReport: res.Report, Replayed: res.Replayed})
}
