package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
)

const (
	HeaderAdminKey       = "X-Admin-Key"
	HeaderCronSecret     = "X-Cron-Secret"
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotency-Replayed"

	ADMIN_MODE_API_KEY = "api-key"
	ADMIN_MODE_BEARER  = "bearer"
	ADMIN_MODE_CRON    = services.AUDIT_MODE_CRON
)

type ctxKey string

var ctxKeyAdminActor ctxKey = "ADMIN_ACTOR"

// AdminAuthn accepts any one configured credential and terminates the
// request otherwise. An unset credential never matches.
func AdminAuthn(settings *services.Settings) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header
			mode := ""
			switch {
			case secretMatches(header.Get(HeaderAdminKey), settings.AdminAPIKey):
				mode = ADMIN_MODE_API_KEY
			case secretMatches(bearerToken(header.Get(echo.HeaderAuthorization)), settings.AdminBearerToken):
				mode = ADMIN_MODE_BEARER
			case secretMatches(header.Get(HeaderCronSecret), settings.CronSecret):
				mode = ADMIN_MODE_CRON
			default:
				//nolint:errcheck
				httpx.Abort(c, errorx.Wrap(errors.New("unauthorized"), errorx.Authn), -1)
				return nil
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, ctxKeyAdminActor, services.Actor{Mode: mode, IP: c.RealIP()})
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

func ResolveAdminActor(ctx context.Context) (services.Actor, error) {
	actor, ok := ctx.Value(ctxKeyAdminActor).(services.Actor)
	if !ok {
		return services.Actor{}, errorx.Wrap(errors.New("missing admin session"), errorx.Authn)
	}
	return actor, nil
}

func bearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

func secretMatches(given, want string) bool {
	if given == "" || want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(want)) == 1
}
