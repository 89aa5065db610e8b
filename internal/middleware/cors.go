package middleware

import (
	"net/http"
	"slices"

	"github.com/rs/cors"

	"tablet-tracker/internal/config"
)

// NewCORS lets the floor dashboard call the API from another origin. The
// request id header is exposed so the browser can quote it in bug reports.
// Credentials are only allowed for an explicit origin list, never for "*".
func NewCORS(cfg *config.Config) func(http.Handler) http.Handler {
	origins := cfg.Server.CorsAllowedOrigins
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   cfg.Server.CorsAllowedMethods,
		AllowedHeaders:   cfg.Server.CorsAllowedHeaders,
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: len(origins) > 0 && !slices.Contains(origins, "*"),
		MaxAge:           300,
	})

	return c.Handler
}
