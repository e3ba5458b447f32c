// Package httpserver builds the http.Server the rollcall binary runs.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server for the given address and handler. ReadHeaderTimeout
// keeps slow-header clients from pinning connections during check-in bursts;
// per-request deadlines are the router middleware's job.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
