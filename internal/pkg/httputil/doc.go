// Package httputil provides shared HTTP response/request helpers for handlers.
//
// Handlers use these helpers instead of raw http.ResponseWriter calls so
// every endpoint emits the same JSON error envelope.
package httputil
