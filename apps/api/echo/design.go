package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
)

type designApi struct {
	svc cohort.Service
}

func registerDesignAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := designApi{svc: deps.CohortSvc}

	dg := g.Group("/cohorts", jwt, staffMiddleware())
	dg.POST("/design", api.importDesign)
	dg.PUT("/:id/design", api.updateDesign)
	dg.GET("/:id/design", api.exportDesign)
}

// Handlers

// importDesign creates a cohort from a design document. ?dry_run=true
// validates without writing.
func (api *designApi) importDesign(ctx echo.Context) error {
	var data cohort.Design
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Design")
	}

	opts := cohort.ImportOptions{
		NameOverride: ctx.QueryParam("name"),
		DryRun:       ctx.QueryParam("dry_run") == "true",
	}
	c, err := api.svc.ImportDesign(ctx.Request().Context(), data, opts)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return ctx.JSON(http.StatusOK, DesignCheckResponse{Valid: true, Summary: data.Summary()})
	}
	return ctx.JSON(http.StatusCreated, c)
}

// updateDesign applies a design document to an existing cohort.
func (api *designApi) updateDesign(ctx echo.Context) error {
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data cohort.Design
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Design")
	}

	opts := cohort.ImportOptions{
		NameOverride: ctx.QueryParam("name"),
		CohortID:     cohortID,
		DryRun:       ctx.QueryParam("dry_run") == "true",
	}
	c, err := api.svc.ImportDesign(ctx.Request().Context(), data, opts)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return ctx.JSON(http.StatusOK, DesignCheckResponse{Valid: true, Summary: data.Summary()})
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *designApi) exportDesign(ctx echo.Context) error {
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	d, err := api.svc.ExportDesign(ctx.Request().Context(), cohortID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, d)
}

type DesignCheckResponse struct {
	Valid   bool   `json:"valid"`
	Summary string `json:"summary"`
}
