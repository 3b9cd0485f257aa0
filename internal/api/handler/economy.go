package handler

import (
	"strconv"

	"haxquest/internal/models"
	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupEconomy struct {
	container *do.Injector
}

type chargePayload struct {
	UserID         string         `json:"user_id"`
	Feature        models.Feature `json:"feature"`
	Units          int64          `json:"units"`
	Source         string         `json:"source"`
	TransactionRef string         `json:"transaction_ref"`
}

func (gr *groupEconomy) Balance(c echo.Context) error {
	serviceEconomy, err := do.Invoke[*services.ServiceEconomy](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	balance, err := serviceEconomy.Balance(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, balance, nil)
}

// Charge answers a short balance with charged=false in the data, not an error.
func (gr *groupEconomy) Charge(c echo.Context) error {
	var payload chargePayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}
	if payload.Units == 0 {
		payload.Units = 1
	}

	serviceEconomy, err := do.Invoke[*services.ServiceEconomy](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	result, err := serviceEconomy.ChargeFeature(c.Request().Context(), payload.UserID, payload.Feature, payload.Units, payload.Source, payload.TransactionRef)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, result, nil)
}

func (gr *groupEconomy) Ledger(c echo.Context) error {
	serviceEconomy, err := do.Invoke[*services.ServiceEconomy](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	limit := 0
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	entries, err := serviceEconomy.Entries(c.Request().Context(), c.QueryParam("user_id"), limit)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return httpx.RestAbort(c, entries, nil)
}
