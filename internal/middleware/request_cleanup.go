package middleware

import (
	"io"
	"net/http"
)

// DrainAndCloseRequest reads whatever the handler left of the request body,
// so the connection can be reused for the next request, and closes it.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if r.Body == nil {
					return
				}
				_, _ = io.Copy(io.Discard, r.Body)
				_ = r.Body.Close()
			}()
			next.ServeHTTP(w, r)
		})
	}
}
