package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/newsletter/internal/domain"
	"github.com/ignite/newsletter/internal/pkg/httpretry"
	"github.com/ignite/newsletter/internal/pkg/logger"
)

func testMessage() domain.EmailMessage {
	return domain.EmailMessage{
		To:       "ursula@example.com",
		Subject:  "Welcome!",
		HTMLBody: "<p>Hi</p>",
		TextBody: "Hi",
	}
}

func TestPostmarkClient_SendsExpectedRequest(t *testing.T) {
	var got postmarkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/email", r.URL.Path)
		assert.Equal(t, "my-token", r.Header.Get("X-Postmark-Server-Token"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(srv.URL+"/", "sender@example.com", "my-token", srv.Client(), logger.Discard())
	require.NoError(t, err)

	require.NoError(t, c.Send(context.Background(), testMessage()))

	assert.Equal(t, postmarkRequest{
		From:     "sender@example.com",
		To:       "ursula@example.com",
		Subject:  "Welcome!",
		HTMLBody: "<p>Hi</p>",
		TextBody: "Hi",
	}, got)
}

func TestPostmarkClient_RawFieldNames(t *testing.T) {
	var raw map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(srv.URL, "sender@example.com", "t", srv.Client(), logger.Discard())
	require.NoError(t, err)
	require.NoError(t, c.Send(context.Background(), testMessage()))

	for _, key := range []string{"From", "To", "Subject", "HtmlBody", "TextBody"} {
		assert.Contains(t, raw, key)
	}
}

func TestPostmarkClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(srv.URL, "sender@example.com", "t", srv.Client(), logger.Discard())
	require.NoError(t, err)

	err = c.Send(context.Background(), testMessage())

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Contains(t, se.Body, "Invalid email request")
}

func TestPostmarkClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(srv.URL, "sender@example.com", "t", srv.Client(), logger.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Send(ctx, testMessage())
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPostmarkClient_NoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewPostmarkClient(srv.URL, "sender@example.com", "t",
		httpretry.NewRetryClient(srv.Client(), 0), logger.Discard())
	require.NoError(t, err)

	assert.Error(t, c.Send(context.Background(), testMessage()))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewPostmarkClient_Validation(t *testing.T) {
	_, err := NewPostmarkClient("http://localhost", "not-an-email", "t", nil, nil)
	assert.Error(t, err)

	_, err = NewPostmarkClient("localhost", "sender@example.com", "t", nil, nil)
	assert.Error(t, err)

	c, err := NewPostmarkClient("http://localhost:9999/", "sender@example.com", "t", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9999/email", c.endpoint)
}
