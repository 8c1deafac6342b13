package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// ServiceMiddleware guards the server-to-server routes. It accepts only the
// HS256 service tokens minted by the service-token endpoint, scoped to
// campaign submission.
func ServiceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		reqToken := r.Header.Get("Authorization")
		if !strings.HasPrefix(reqToken, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error": "unauthorized"}`))
			return
		}
		reqToken = strings.TrimPrefix(reqToken, "Bearer ")

		secret := []byte(os.Getenv("JWT_SECRET"))
		token, err := jwt.Parse(reqToken, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil {
			zap.S().Errorw("service token rejected", "url", r.URL, "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(fmt.Sprintf(`{"error": %q}`, fmt.Sprintf("failed to parse token, %v", err))))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok || claims["scope"] != "notifications:send" {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error": "token missing notifications:send scope"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}
