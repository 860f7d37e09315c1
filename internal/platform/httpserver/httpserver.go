package httpserver

import (
	"net/http"
	"time"
)

// New builds the operational HTTP server. The admin run endpoints block until
// the triggered run reports, which the runner's partition wait bounds, so no
// WriteTimeout is set; slow clients are cut off by the header read timeout
// and the idle timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
