package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/hocsinh/core/otp"
)

// adminMiddleware rejects tokens that were not issued for an admin session,
// or whose admin was removed from the configured accounts since.
func adminMiddleware(accounts otp.Accounts) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.Audience == tokenAudience && accounts.Has(claims.Email) {
				return next(ctx)
			}
			return errUnauthorized
		}
	}
}
