package apiserver

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer creates a new HTTP server for the REST API.
func NewServer(d Deps) *http.Server {
	cfg := d.Config.APIServer
	writeTimeout := cfg.RequestTimeout + 5*time.Second

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Address, cfg.Port),
		Handler:      NewRouter(d),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}
}
