package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const usuarioIDKey contextKey = "usuario_id"

// UsuarioIDFromContext returns the subject claim the middleware stored, or
// empty when the request was not authenticated.
func UsuarioIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(usuarioIDKey).(string)
	return value
}

// Middleware validates a Bearer access token and stores its subject in the
// request context.
func Middleware(jwtSecret string, next http.Handler) http.Handler {
	secret := []byte(jwtSecret)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeMessage(w, http.StatusUnauthorized, "Token não informado")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeMessage(w, http.StatusUnauthorized, "Formato de autorização inválido")
			return
		}

		tokenStr := strings.TrimSpace(parts[1])
		if tokenStr == "" {
			writeMessage(w, http.StatusUnauthorized, "Token inválido")
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
			return secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			writeMessage(w, http.StatusUnauthorized, "Token inválido ou expirado")
			return
		}
		if tokenType, _ := claims["typ"].(string); tokenType != "access" {
			writeMessage(w, http.StatusUnauthorized, "Tipo de token inválido")
			return
		}

		sub, _ := claims["sub"].(string)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), usuarioIDKey, sub)))
	})
}
