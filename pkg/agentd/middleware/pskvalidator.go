package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

const PSKHeader = "X-PSK"

func PskValidatorMiddleware(keys []string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			psk := []byte(r.Header.Get(PSKHeader))
			for _, key := range keys {
				if len(key) > 0 && subtle.ConstantTimeCompare([]byte(key), psk) == 1 {
					next.ServeHTTP(w, r)
					return
				}
			}
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintf(w, "Unauthorized access: Invalid key")
		}
		return http.HandlerFunc(fn)
	}
}
