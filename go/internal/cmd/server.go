package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/partdraft/go/internal/config"
	"github.com/mcdev12/partdraft/go/internal/draft/adminrpc"
	"github.com/mcdev12/partdraft/go/internal/draft/gateway"
)

func setupServer(cfg config.HTTPConfig, router chi.Router, admin *adminrpc.Service) *http.Server {
	// Register admin RPCs next to the websocket and state routes
	adminPath, adminHandler := adminrpc.NewAdminServiceHandler(admin)
	router.Mount(adminPath, adminHandler)

	handler := gateway.CORS(cfg.AllowedOrigins)(router)

	// h2c so connect clients can use HTTP/2 without TLS
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
