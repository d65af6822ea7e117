package echoapi

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/AlriyanKhan/Ai-attendance/core/attendance"
)

var (
	limitParam = "limit"
	maxLimit   = 100
)

// Limit is the window size asked for with `?limit=`, attendance.WindowSize by default.
type Limit struct {
	Value int
}

func (l *Limit) Bind(ctx echo.Context) {
	l.Value = attendance.WindowSize

	val := ctx.QueryParam(limitParam)
	if val == "" {
		return
	}
	n, err := strconv.Atoi(val)
	if err != nil || n <= 0 {
		return
	}
	if n > maxLimit {
		n = maxLimit
	}
	l.Value = n
}
