package handler

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"

	"quinn/internal/errs"
)

// Auth validates bearer tokens issued by the main backend. A nil Auth (no
// secret configured) disables authentication, which is only acceptable in
// local development.
type Auth struct {
	secret []byte
}

func NewAuthFromConfig() *Auth {
	secret := viper.GetString("auth.jwt_secret")
	if secret == "" {
		return nil
	}
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || tokenString == "" {
			writeUnauthorized(w, "missing bearer token")
			return
		}

		_, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, &errs.ErrValidation{Field: "token", Message: "unexpected signing method"}
			}
			return a.secret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err != nil {
			writeUnauthorized(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
