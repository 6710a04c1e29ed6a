package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
)

var (
	orderingParam = "ordering"
	dateParam     = "date"
)

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindDate returns the date supplied via the "date" query parameter, falling
// back to fallback when absent. Task listings pass the user's own today here
// so that "today" follows the user's wall clock, not the server's.
func bindDate(ctx echo.Context, fallback schedule.Date) (schedule.Date, error) {
	raw := ctx.QueryParam(dateParam)
	if raw == "" {
		return fallback, nil
	}
	d, err := schedule.ParseDate(raw)
	if err != nil {
		return schedule.Date{}, core.NewValidationError(nil,
			core.FieldError{Field: dateParam, Error: "must be a date in YYYY-MM-DD format"})
	}
	return d, nil
}

// bindTimeParam parses an RFC 3339 query parameter; absent reads as the zero
// time.
func bindTimeParam(ctx echo.Context, name string) (time.Time, error) {
	raw := ctx.QueryParam(name)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// intParam parses a numeric path parameter; malformed values read as a
// missing resource.
func intParam(ctx echo.Context, name string) (int, error) {
	val, err := strconv.Atoi(ctx.Param(name))
	if err != nil {
		return 0, errHttpNotFound
	}
	return val, nil
}
