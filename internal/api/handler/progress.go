package handler

import (
	"haxquest/internal/models"
	"haxquest/internal/services"

	"github.com/hiendaovinh/toolkit/pkg/errorx"
	"github.com/hiendaovinh/toolkit/pkg/httpx-echo"
	"github.com/labstack/echo/v4"
	"github.com/samber/do"
)

type groupProgress struct {
	container *do.Injector
}

type progressPayload struct {
	UserID   string                   `json:"user_id"`
	Snapshot *models.ProgressSnapshot `json:"snapshot"`
}

type taskPayload struct {
	UserID string `json:"user_id"`
	TaskID string `json:"task_id"`
	Score  int    `json:"score"`
}

type progressView struct {
	Progress *models.ProgressSnapshot `json:"progress"`
	Score    models.ScoreBreakdown    `json:"score"`
}

func (gr *groupProgress) Get(c echo.Context) error {
	serviceProgress, err := do.Invoke[*services.ServiceProgress](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	progress, err := serviceProgress.Get(c.Request().Context(), c.QueryParam("user_id"))
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return gr.respond(c, progress)
}

func (gr *groupProgress) Upsert(c echo.Context) error {
	var payload progressPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceProgress, err := do.Invoke[*services.ServiceProgress](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	progress, err := serviceProgress.Upsert(c.Request().Context(), payload.UserID, payload.Snapshot)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return gr.respond(c, progress)
}

func (gr *groupProgress) CompleteTask(c echo.Context) error {
	var payload taskPayload
	if err := c.Bind(&payload); err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Invalid))
	}

	serviceProgress, err := do.Invoke[*services.ServiceProgress](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	progress, err := serviceProgress.CompleteTask(c.Request().Context(), payload.UserID, payload.TaskID, payload.Score)
	if err != nil {
		return httpx.RestAbort(c, nil, wrapServiceError(err))
	}

	return gr.respond(c, progress)
}

func (gr *groupProgress) Tasks(c echo.Context) error {
	serviceProgress, err := do.Invoke[*services.ServiceProgress](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, serviceProgress.Catalog(), nil)
}

func (gr *groupProgress) respond(c echo.Context, progress *models.ProgressSnapshot) error {
	serviceLeaderboard, err := do.Invoke[*services.ServiceLeaderboard](gr.container)
	if err != nil {
		return httpx.RestAbort(c, nil, errorx.Wrap(err, errorx.Service))
	}

	return httpx.RestAbort(c, progressView{progress, serviceLeaderboard.Score(progress)}, nil)
}
