package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core/user"
)

// sessionMiddleware rejects tokens issued before the user signed out.
// Requests without a token are let through; routes requiring one are guarded by the jwt middleware.
func sessionMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return next(ctx)
			}
			p, err := getContextProfile(ctx, svc, claims)
			if err != nil {
				return errors.Wrap(err, "getting context profile")
			}
			if p.TokenRevoked(claims.issuedAt()) {
				return errSessionRevoked
			}
			return next(ctx)
		}
	}
}

func adminMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := getContextProfile(ctx, svc)
			if err != nil {
				return errors.Wrap(err, "getting context profile")
			}
			if p.IsAdmin() {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
