package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

type surveyApi struct {
	svc       survey.Service
	cohortSvc cohort.Service
	usrSvc    user.Service
}

func registerSurveyAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := surveyApi{
		svc:       deps.SurveySvc,
		cohortSvc: deps.CohortSvc,
		usrSvc:    deps.UserSvc,
	}

	tg := g.Group("/cohorts/:id", jwt)
	tg.GET("/tasks/:slug/:instance", api.retrieveTask)
	tg.POST("/tasks/:slug/:instance", api.submitTask)
	tg.GET("/submissions", api.submissions)
}

// Handlers

// retrieveTask resolves one task instance into the survey the frontend
// renders as its form.
func (api *surveyApi) retrieveTask(ctx echo.Context) error {
	usr, cohortID, slug, instanceID, err := api.bindTask(ctx)
	if err != nil {
		return err
	}

	rt, err := api.cohortSvc.ResolveTask(ctx.Request().Context(), usr, cohortID, slug, instanceID)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rt)
}

// submitTask records the answers for one task instance, marking it complete.
func (api *surveyApi) submitTask(ctx echo.Context) error {
	usr, cohortID, slug, instanceID, err := api.bindTask(ctx)
	if err != nil {
		return err
	}

	var data SubmitTaskRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitTaskRequest")
	}

	// the gate: enrollment, known rule, instance in range, not yet completed
	rt, err := api.cohortSvc.ResolveTask(ctx.Request().Context(), usr, cohortID, slug, instanceID)
	if err != nil {
		return err
	}

	sub, err := api.svc.CreateSubmission(ctx.Request().Context(), survey.NewSubmission{
		UserID:     usr.ID,
		CohortID:   cohortID,
		SurveyID:   rt.Survey.ID,
		RuleSlug:   slug,
		InstanceID: instanceID,
		DueDate:    rt.DueDate,
		Answers:    data.Answers,
	})
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *surveyApi) submissions(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return err
	}

	subs, err := api.svc.UserSubmissions(ctx.Request().Context(), usr.ID, cohortID)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	if subs == nil {
		subs = []survey.Submission{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *surveyApi) bindTask(ctx echo.Context) (user.User, int, string, int, error) {
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return user.User{}, 0, "", 0, errors.Wrap(err, "getting context user")
	}
	cohortID, err := intParam(ctx, "id")
	if err != nil {
		return user.User{}, 0, "", 0, err
	}
	instanceID, err := intParam(ctx, "instance")
	if err != nil {
		return user.User{}, 0, "", 0, err
	}
	return usr, cohortID, ctx.Param("slug"), instanceID, nil
}

type SubmitTaskRequest struct {
	Answers map[string]string `json:"answers"`
}
