package echoapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/AlriyanKhan/Ai-attendance/core"
	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

var (
	eventView  = "view"
	eventError = "error"
)

type dashboardApi struct {
	repo   attendance.Repository
	shared *attendance.Dashboard
	logger core.Logger
}

func registerDashboardAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	repo attendance.Repository,
	shared *attendance.Dashboard,
	logger core.Logger,
) {
	api := dashboardApi{
		repo:   repo,
		shared: shared,
		logger: logger,
	}

	dg := g.Group("/dashboard", jwt)
	dg.GET("", api.view)
	dg.GET("/stream", api.stream)
}

// Handlers

func (api *dashboardApi) view(ctx echo.Context) error {
	if api.shared != nil {
		return ctx.JSON(http.StatusOK, api.shared.View())
	}

	records, err := api.repo.Recent(ctx.Request().Context(), attendance.WindowSize)
	if err != nil {
		return core.NewKindError(core.KindRecord, "echoapi.view", errors.Wrap(err, "querying records"))
	}
	now := attendance.NowFunc()
	return ctx.JSON(http.StatusOK, attendance.View{
		Stats:     attendance.Aggregate(records, now),
		Rows:      attendance.Rows(records),
		UpdatedAt: now,
	})
}

// stream pushes a view per recompute as server-sent events until the client goes away.
// Every connection runs its own live query so that the listener stops with the connection.
func (api *dashboardApi) stream(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	d := attendance.NewDashboard(api.repo, api.logger)
	defer d.Stop()

	res := ctx.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	if err := d.Start(reqCtx); err != nil {
		// the dashboard already holds the error banner
		return writeEvent(res, eventError, d.View())
	}

	for {
		select {
		case <-reqCtx.Done():
			return nil
		case v, ok := <-d.Updates():
			if !ok {
				return nil
			}
			event := eventView
			if v.Err != "" {
				event = eventError
			}
			if err := writeEvent(res, event, v); err != nil {
				return nil // client gone
			}
		}
	}
}

func writeEvent(res *echo.Response, event string, v attendance.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshalling view")
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	res.Flush()
	return nil
}
