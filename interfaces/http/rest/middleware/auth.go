package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/LoadingLlama/relation/pkg/auth"

	"go.uber.org/zap"
)

// RateLimits sets the per-minute rate and burst of the two limiters. The
// IP limiter runs before authentication, the user limiter after it.
type RateLimits struct {
	IPPerMinute   int
	IPBurst       int
	UserPerMinute int
	UserBurst     int
}

// DefaultRateLimits returns the production limits
func DefaultRateLimits() RateLimits {
	return RateLimits{
		IPPerMinute:   100,
		IPBurst:       10,
		UserPerMinute: 200,
		UserBurst:     20,
	}
}

// withDefaults fills unset fields from DefaultRateLimits
func (l RateLimits) withDefaults() RateLimits {
	def := DefaultRateLimits()
	if l.IPPerMinute <= 0 {
		l.IPPerMinute = def.IPPerMinute
	}
	if l.IPBurst <= 0 {
		l.IPBurst = def.IPBurst
	}
	if l.UserPerMinute <= 0 {
		l.UserPerMinute = def.UserPerMinute
	}
	if l.UserBurst <= 0 {
		l.UserBurst = def.UserBurst
	}
	return l
}

// Authenticate verifies the bearer token, applies per-IP and per-user rate
// limits and stores the principal in the request context.
func Authenticate(verifier auth.Verifier, limits RateLimits, logger *zap.Logger) func(next http.Handler) http.Handler {
	limits = limits.withDefaults()
	ipLimiter := auth.NewKeyedLimiter(limits.IPPerMinute, limits.IPBurst)
	userLimiter := auth.NewKeyedLimiter(limits.UserPerMinute, limits.UserBurst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP := getClientIP(r)
			if !ipLimiter.Allow(clientIP) {
				respondWithError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}

			token := extractToken(r)
			if token == "" {
				respondUnauthorized(w, "Missing authentication token")
				return
			}

			principal, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.Warn("Invalid token",
					zap.Error(err),
					zap.String("ip", clientIP),
					zap.String("path", r.URL.Path),
				)

				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					respondUnauthorized(w, "Token has expired")
				case errors.Is(err, auth.ErrInvalidSignature):
					respondUnauthorized(w, "Invalid token signature")
				default:
					respondUnauthorized(w, "Invalid token")
				}
				return
			}

			if !userLimiter.Allow(principal.Subject) {
				respondWithError(w, http.StatusTooManyRequests, "User rate limit exceeded")
				return
			}

			logger.Debug("Request authenticated",
				zap.String("identity_id", principal.Subject),
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method),
			)

			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)))
		})
	}
}

// extractToken reads the bearer token from the Authorization header or the
// auth_token cookie
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return authHeader
	}

	if cookie, err := r.Cookie("auth_token"); err == nil {
		return cookie.Value
	}
	return ""
}

// getClientIP extracts the client IP address
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}

func respondUnauthorized(w http.ResponseWriter, message string) {
	respondWithError(w, http.StatusUnauthorized, message)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"message": message,
		"code":    code,
	})
}
