package middleware

import (
	"net/http"
	"strings"

	"github.com/medifast-dev/medifast-backend/api/responses"
	pkgauth "github.com/medifast-dev/medifast-backend/pkg/auth"
	"github.com/medifast-dev/medifast-backend/pkg/config"
	pkgerrors "github.com/medifast-dev/medifast-backend/pkg/errors"
	"github.com/medifast-dev/medifast-backend/pkg/logger"
)

// Auth validates the Bearer token and stores the caller's identity on the
// request context.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeUnauthorized, "malformed authorization header"))
				return
			}

			claims, err := pkgauth.ParseAccessToken(cfg, parts[1])
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid or expired token"))
				return
			}

			ctx := WithUserID(r.Context(), claims.UserID)
			ctx = WithRole(ctx, claims.Role)
			ctx = logg.WithUserID(ctx, claims.UserID.String())
			ctx = logg.WithActorRole(ctx, string(claims.Role))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
