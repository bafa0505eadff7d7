package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server with its timeout policy in one place. The write
// timeout is generous: review submission fans out synchronous compliance
// audit writes before it answers.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
