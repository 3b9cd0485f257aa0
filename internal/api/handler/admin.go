package handler

import (
	"net/http"
	"strconv"

	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"github.com/segmentio/encoding/json"
)

type groupAdmin struct {
	container *do.Injector
}

// Execute writes the action's own status and body so a replay is
// byte-identical to the first answer.
func (gr *groupAdmin) Execute(c echo.Context) error {
	ctx := c.Request().Context()

	actor, err := ResolveAdminActor(ctx)
	if err != nil {
		return httpx.RestAbort(c, nil, err)
	}

	var req services.AdminRequest
	if err := c.Bind(&req); err != nil {
		body, _ := json.Marshal(services.AdminResponse{Message: "malformed request body"})
		return c.JSONBlob(http.StatusBadRequest, body)
	}
	req.IdempotencyKey = c.Request().Header.Get(HeaderIdempotencyKey)
	req.Actor = actor

	serviceAdmin, err := do.Invoke[*services.ServiceAdmin](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	result, err := serviceAdmin.Execute(ctx, &req)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	if result.Replayed {
		c.Response().Header().Set(HeaderReplayed, "true")
	}
	return c.JSONBlob(result.Status, result.Body)
}

func (gr *groupAdmin) Overview(c echo.Context) error {
	serviceDiagnostics, err := do.Invoke[*services.ServiceDiagnostics](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	overview, err := serviceDiagnostics.Overview(c.Request().Context())
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, overview, nil)
}

func (gr *groupAdmin) Audit(c echo.Context) error {
	serviceAudit, err := do.Invoke[*services.ServiceAudit](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	entries, err := serviceAudit.List(c.Request().Context(), limit)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, entries, nil)
}
