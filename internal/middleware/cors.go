package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
)

// CORS builds rs/cors middleware for the annotation frontend. frontendURL
// is a comma-separated origin list; empty entries are dropped and the local
// dev origin is always allowed.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := []string{"http://localhost:3000"}
	for _, origin := range strings.Split(frontendURL, ",") {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		duplicate := false
		for _, existing := range origins {
			if existing == trimmed {
				duplicate = true
				break
			}
		}
		if !duplicate {
			origins = append(origins, trimmed)
		}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return c.Handler
}
