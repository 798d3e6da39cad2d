package middleware

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strings"

	"github.com/motorhub/marketplace-backend/api/responses"
	"github.com/motorhub/marketplace-backend/pkg/logger"
)

// CronSecret guards the lifecycle trigger. The header must carry the shared
// secret as a bearer token; an empty configured secret rejects every call.
func CronSecret(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	expected := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validCronSecret(expected, strictBearerToken(r)) {
				if logg != nil {
					ctx := logg.WithFields(r.Context(), map[string]any{
						"configured": len(expected) > 0,
						"remote_ip":  clientIP(r),
					})
					logg.Warn(ctx, "autobilling.unauthorized")
				}
				responses.WriteTriggerError(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid cron secret")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func validCronSecret(expected []byte, presented string) bool {
	if len(expected) == 0 || presented == "" {
		return false
	}
	return subtle.ConstantTimeCompare(expected, []byte(presented)) == 1
}

// strictBearerToken only accepts the "Bearer <token>" form; a bare token yields "".
func strictBearerToken(r *http.Request) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(raw[7:])
}

// TriggerRecoverer turns a panic on the trigger routes into the flat 500 body
// scheduler clients expect.
func TriggerRecoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if logg != nil {
						ctx := logg.WithFields(r.Context(), map[string]any{"panic": rec})
						logg.Error(ctx, "autobilling.panic", fmt.Errorf("panic: %v", rec))
					}
					responses.WriteTriggerError(w, http.StatusInternalServerError, "Internal server error", "unexpected failure while processing auto-billing")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
