package gateway

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS wraps a handler with cross-origin rules. An empty origin list allows any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Requested-With", "Connect-Protocol-Version"},
		MaxAge:         86400,
	})
	return c.Handler
}
