package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/food-checkout/internal/common"
)

// Middleware authenticates requests with a bearer token.
type Middleware struct {
	Verifier *Verifier
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject as the request's user id.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Verifier == nil {
			common.JSONError(w, http.StatusInternalServerError, common.CodeInternal, "authentication not configured", nil)
			return
		}
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
			return
		}
		userID, err := m.Verifier.Subject(token)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				zerolog.Ctx(r.Context()).Debug().Err(appErr.Err).Msg("bearer token rejected")
			}
			common.WriteError(w, err)
			return
		}
		ctx := common.WithUserID(r.Context(), userID)
		logger := zerolog.Ctx(ctx).With().Str("user_id", userID).Logger()
		next.ServeHTTP(w, r.WithContext(logger.WithContext(ctx)))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
