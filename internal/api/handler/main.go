package handler

import (
	"net/http"

	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo-contrib/pprof"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/do"
)

type Config struct {
	Container *do.Injector
	Mode      string
	Origins   []string
}

func New(cfg *Config) (http.Handler, error) {
	r := echo.New()
	r.Pre(middleware.RemoveTrailingSlash())
	if cfg.Mode == "debug" {
		r.Debug = true
		pprof.Register(r)
	}

	r.JSONSerializer = httpx.SegmentJSONSerializer{}
	r.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "${time_rfc3339}\t${method}\t${uri}\t${status}\t${latency_human}\n",
	}))
	r.Use(middleware.Recover())

	r.GET("", func(c echo.Context) error {
		return c.String(http.StatusOK, "🤖")
	})

	routesAPIv1 := r.Group("/api/v1")
	{
		settings, err := do.Invoke[*services.Settings](cfg.Container)
		if err != nil {
			return nil, err
		}
		cors := middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.Origins,
			AllowHeaders: []string{
				echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization,
				HeaderAdminKey, HeaderCronSecret, HeaderIdempotencyKey,
			},
			AllowCredentials: true,
			MaxAge:           60 * 60,
		})

		routesAPIv1.Use(cors)
		routesAPIv1.GET("", Hello)

		p := groupProgress{cfg.Container}
		routesAPIv1.GET("/progress", p.Get)
		routesAPIv1.POST("/progress", p.Upsert)
		routesAPIv1.POST("/progress/tasks", p.CompleteTask)
		routesAPIv1.GET("/tasks", p.Tasks)

		l := groupLeaderboard{cfg.Container}
		routesAPIv1.GET("/leaderboard", l.GetLeaderboard)

		e := groupEconomy{cfg.Container}
		routesAPIv1.GET("/economy/balance", e.Balance)
		routesAPIv1.POST("/economy/charge", e.Charge)
		routesAPIv1.GET("/economy/ledger", e.Ledger)

		routesAPIv1Admin := routesAPIv1.Group("/admin")
		routesAPIv1Admin.Use(AdminAuthn(settings))
		{
			a := groupAdmin{cfg.Container}
			routesAPIv1Admin.POST("/actions", a.Execute)
			routesAPIv1Admin.GET("/overview", a.Overview)
			routesAPIv1Admin.GET("/audit", a.Audit)
		}
	}

	return r, nil
}

func Hello(c echo.Context) error {
	return httpx.RestAbort(c, "hello world", nil)
}

// wrapServiceError maps caller mistakes to a validation failure and
// everything else to a service failure.
func wrapServiceError(err error) error {
	if services.IsValidation(err) {
		return errorx.Wrap(err, errorx.Validation)
	}
	return errorx.Wrap(err, errorx.Service)
}
