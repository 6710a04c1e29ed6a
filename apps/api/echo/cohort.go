package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

type cohortApi struct {
	svc      cohort.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerCohortAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := cohortApi{
		svc:      deps.CohortSvc,
		usrSvc:   deps.UserSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/cohorts")

	// un-authed endpoints: the pre-signup landing pages
	cg.GET("/next", api.next)
	cg.GET("/:id/upcoming", api.upcoming)

	// authed endpoints
	ag := cg.Group("", jwt)
	ag.GET("", api.query)
	ag.POST("", api.create, staffMiddleware())
	ag.GET("/:id", api.retrieve)
	ag.POST("/:id/join", api.join)
	ag.GET("/:id/tasks", api.tasks)
	ag.GET("/:id/stats", api.stats)

	eg := g.Group("/enrollments", jwt)
	eg.GET("", api.enrollments)
	eg.POST("/:id/paid", api.markPaid, staffMiddleware())
}

// Handlers

// next serves the landing page's "next cohort starts on ..." teaser.
func (api *cohortApi) next(ctx echo.Context) error {
	c, err := api.svc.NextUpcoming(ctx.Request().Context(), schedule.Today(time.UTC))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

// upcoming previews each scheduled task's first occurrence, so visitors can
// see what a cohort will ask of them before joining.
func (api *cohortApi) upcoming(ctx echo.Context) error {
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	today, err := bindDate(ctx, schedule.Today(time.UTC))
	if err != nil {
		return err
	}

	upcoming, err := api.svc.UpcomingTasks(ctx.Request().Context(), cohortID, today)
	if err != nil {
		return errors.Wrap(err, "previewing upcoming tasks")
	}
	if upcoming == nil {
		upcoming = []schedule.Upcoming{}
	}
	return ctx.JSON(http.StatusOK, upcoming)
}

func (api *cohortApi) query(ctx echo.Context) error {
	if ctx.QueryParam("all") == "true" {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsStaff {
			return errHttpForbidden
		}
		cohorts, err := api.svc.QueryAll(ctx.Request().Context())
		if err != nil {
			return errors.Wrap(err, "querying cohorts")
		}
		if cohorts == nil {
			cohorts = []cohort.Cohort{}
		}
		return ctx.JSON(http.StatusOK, cohorts)
	}

	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	joinable, err := api.svc.Joinable(ctx.Request().Context(), usr.Today())
	if err != nil {
		return errors.Wrap(err, "querying joinable cohorts")
	}
	return ctx.JSON(http.StatusOK, joinable)
}

func (api *cohortApi) create(ctx echo.Context) error {
	var data cohort.NewCohort
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCohort")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	c, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating cohort")
	}
	return ctx.JSON(http.StatusCreated, c)
}

func (api *cohortApi) retrieve(ctx echo.Context) error {
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	c, err := api.svc.Get(ctx.Request().Context(), cohortID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *cohortApi) join(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	enr, err := api.svc.Join(ctx.Request().Context(), usr, cohortID, usr.Today())
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, enr)
}

func (api *cohortApi) tasks(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	today, err := bindDate(ctx, usr.Today())
	if err != nil {
		return err
	}

	pending, completed, err := api.svc.UserTasks(ctx.Request().Context(), usr, cohortID, today, taskURL(cohortID))
	if err != nil {
		return err
	}
	if pending == nil {
		pending = []schedule.Task{}
	}
	if completed == nil {
		completed = []survey.Submission{}
	}
	return ctx.JSON(http.StatusOK, TasksResponse{Pending: pending, Completed: completed})
}

func (api *cohortApi) stats(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	stats, err := api.svc.UserStats(ctx.Request().Context(), usr, cohortID)
	if err != nil {
		return err
	}
	if stats == nil {
		stats = map[string]survey.MetricStats{}
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *cohortApi) enrollments(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	enrs, err := api.svc.UserEnrollments(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []cohort.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *cohortApi) markPaid(ctx echo.Context) error {
	enrollmentID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}
	var data PaidRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaidRequest")
	}

	enr, err := api.svc.MarkEnrollmentPaid(ctx.Request().Context(), enrollmentID, data.AmountCents)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, enr)
}

// taskURL builds the API URL stamped on every pending task.
func taskURL(cohortID int) schedule.URLBuilder {
	return func(ruleSlug string, instanceID int) string {
		return fmt.Sprintf("/v1/cohorts/%d/tasks/%s/%d", cohortID, ruleSlug, instanceID)
	}
}

type (
	TasksResponse struct {
		Pending   []schedule.Task     `json:"pending"`
		Completed []survey.Submission `json:"completed"`
	}

	PaidRequest struct {
		AmountCents int `json:"amount_cents"`
	}
)
