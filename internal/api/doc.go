// Package api exposes the subscription workflow and newsletter publishing
// over HTTP on a chi router.
package api
