package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for this project. A zero
// readHeaderTimeout selects five seconds.
func New(addr string, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 5 * time.Second
	}
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}
