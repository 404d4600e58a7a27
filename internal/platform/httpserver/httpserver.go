// Package httpserver builds the process HTTP server with the timeouts this
// service needs: a short header read bound against slow-loris clients, and
// write/idle bounds sized for JSON APIs with base64 file uploads.
package httpserver

import (
	"net/http"
	"time"
)

func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
