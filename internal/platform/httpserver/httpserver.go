// Package httpserver builds the public HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

const (
	defaultRequestTimeout = 10 * time.Second
	readHeaderTimeout     = 5 * time.Second
	bodyReadTimeout       = 10 * time.Second
	writeSlack            = 5 * time.Second
	idleTimeout           = 60 * time.Second
	maxHeaderBytes        = 16 << 10
)

// New builds the server. The write deadline outlives requestTimeout so a
// reconciliation that times out can still be answered with 504.
func New(addr string, handler http.Handler, requestTimeout time.Duration) *http.Server {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       bodyReadTimeout,
		WriteTimeout:      requestTimeout + writeSlack,
		IdleTimeout:       idleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}
}
