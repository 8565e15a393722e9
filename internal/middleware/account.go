package middleware

import (
	"net/http"

	"voice-banking/internal/domain/dto"
)

// AccountMiddleware attaches the configured banking account to each request context.
func AccountMiddleware(accountID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if accountID != "" {
				r = r.WithContext(dto.WithAccount(r.Context(), dto.AccountRef{ID: accountID}))
			}
			next.ServeHTTP(w, r)
		})
	}
}
