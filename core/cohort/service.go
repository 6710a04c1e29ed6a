package cohort

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

var (
	// errors
	ErrNotFound             = errors.New("cohort not found")
	ErrAlreadyEnrolled      = errors.New("already enrolled in this cohort")
	ErrNotEnrolled          = errors.New("not enrolled in this cohort")
	ErrCohortClosed         = errors.New("this cohort is not open for enrollment")
	ErrTaskAlreadyCompleted = errors.New("this task has already been completed")
)

type (
	Repository interface {
		CreateCohort(ctx context.Context, c Cohort) (Cohort, error)
		GetCohortByID(ctx context.Context, id int) (Cohort, error)
		// QueryAllCohorts returns every cohort, newest start date first.
		QueryAllCohorts(ctx context.Context) ([]Cohort, error)
		QueryActiveCohorts(ctx context.Context) ([]Cohort, error)
		UpdateCohort(ctx context.Context, c Cohort) (Cohort, error)

		// CreateEnrollment persists the enrollment. A (user, cohort) unique
		// violation comes back as ErrAlreadyEnrolled.
		CreateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, userID, cohortID int) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id int) (Enrollment, error)
		// QueryUserEnrollments returns the user's enrollments, newest first.
		QueryUserEnrollments(ctx context.Context, userID int) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, cohortID int) (int, error)
		UpdateEnrollment(ctx context.Context, enr Enrollment) (Enrollment, error)

		CreateRule(ctx context.Context, r ScheduleRule) (ScheduleRule, error)
		// QueryCohortRules returns the cohort's rules ordered by id, i.e.
		// creation order.
		QueryCohortRules(ctx context.Context, cohortID int) ([]ScheduleRule, error)
		QueryRulesBySurveyID(ctx context.Context, surveyID int) ([]ScheduleRule, error)
		GetRuleBySlug(ctx context.Context, cohortID int, slug string) (ScheduleRule, error)
		UpdateRule(ctx context.Context, r ScheduleRule) (ScheduleRule, error)
		DeleteRulesByID(ctx context.Context, ids ...int) error
	}

	Service interface {
		Create(ctx context.Context, nc NewCohort) (Cohort, error)
		Get(ctx context.Context, id int) (Cohort, error)
		QueryAll(ctx context.Context) ([]Cohort, error)
		Joinable(ctx context.Context, today schedule.Date) ([]JoinableCohort, error)
		NextUpcoming(ctx context.Context, today schedule.Date) (Cohort, error)
		Join(ctx context.Context, usr user.User, cohortID int, today schedule.Date) (Enrollment, error)
		UserEnrollments(ctx context.Context, userID int) ([]Enrollment, error)
		MarkEnrollmentPaid(ctx context.Context, enrollmentID, amountCents int) (Enrollment, error)
		UserTasks(ctx context.Context, usr user.User, cohortID int, today schedule.Date, urlFor schedule.URLBuilder) ([]schedule.Task, []survey.Submission, error)
		UpcomingTasks(ctx context.Context, cohortID int, today schedule.Date) ([]schedule.Upcoming, error)
		UserStats(ctx context.Context, usr user.User, cohortID int) (map[string]survey.MetricStats, error)
		ResolveTask(ctx context.Context, usr user.User, cohortID int, ruleSlug string, instanceID int) (ResolvedTask, error)
		ImportDesign(ctx context.Context, d Design, opts ImportOptions) (Cohort, error)
		ExportDesign(ctx context.Context, cohortID int) (Design, error)
	}

	service struct {
		repo       Repository
		surveyRepo survey.Repository
		conf       *core.Config
		logger     core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, surveyRepo survey.Repository, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:       repo,
		surveyRepo: surveyRepo,
		conf:       conf,
		logger:     logger,
	}
}

func (svc *service) Create(ctx context.Context, nc NewCohort) (Cohort, error) {
	if err := validateNewCohort(nc); err != nil {
		return Cohort{}, err
	}

	now := time.Now().UTC()
	c := Cohort{
		Name:                nc.Name,
		StartDate:           nc.StartDate,
		EndDate:             nc.EndDate,
		EnrollmentStartDate: nc.EnrollmentStartDate,
		EnrollmentEndDate:   nc.EnrollmentEndDate,
		IsPaid:              nc.IsPaid,
		MinimumPriceCents:   nc.MinimumPriceCents,
		MaxSeats:            nc.MaxSeats,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	return svc.repo.CreateCohort(ctx, c)
}

func validateNewCohort(nc NewCohort) error {
	var flds []core.FieldError
	if nc.EndDate.Before(nc.StartDate) {
		flds = append(flds, core.FieldError{Field: "end_date", Error: "end date must not be before start date"})
	}
	if nc.EnrollmentStartDate != nil && nc.EnrollmentEndDate != nil &&
		nc.EnrollmentEndDate.Before(*nc.EnrollmentStartDate) {
		flds = append(flds, core.FieldError{Field: "enrollment_end_date", Error: "enrollment end must not be before enrollment start"})
	}
	if nc.MaxSeats.Valid && nc.MaxSeats.Int < 1 {
		flds = append(flds, core.FieldError{Field: "max_seats", Error: "must be at least 1 when set"})
	}
	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid cohort"), flds...)
	}
	return nil
}

func (svc *service) Get(ctx context.Context, id int) (Cohort, error) {
	return svc.repo.GetCohortByID(ctx, id)
}

func (svc *service) QueryAll(ctx context.Context) ([]Cohort, error) {
	return svc.repo.QueryAllCohorts(ctx)
}

// Joinable lists the active cohorts a user could enroll in today, with
// their remaining seat counts.
func (svc *service) Joinable(ctx context.Context, today schedule.Date) ([]JoinableCohort, error) {
	cohorts, err := svc.repo.QueryActiveCohorts(ctx)
	if err != nil {
		return nil, err
	}

	joinable := make([]JoinableCohort, 0, len(cohorts))
	for _, c := range cohorts {
		enrolled, err := svc.repo.CountEnrollments(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if !c.CanJoin(today, enrolled) {
			continue
		}
		joinable = append(joinable, JoinableCohort{Cohort: c, SeatsLeft: c.SeatsLeft(enrolled)})
	}
	return joinable, nil
}

// NextUpcoming returns the active cohort starting soonest on or after
// today, ErrNotFound when none is planned.
func (svc *service) NextUpcoming(ctx context.Context, today schedule.Date) (Cohort, error) {
	cohorts, err := svc.repo.QueryActiveCohorts(ctx)
	if err != nil {
		return Cohort{}, err
	}

	var next Cohort
	for _, c := range cohorts {
		if c.StartDate.Before(today) {
			continue
		}
		if next.ID == 0 || c.StartDate.Before(next.StartDate) {
			next = c
		}
	}
	if next.ID == 0 {
		return Cohort{}, ErrNotFound
	}
	return next, nil
}

// Join enrolls the user into the cohort. Free cohorts enroll directly as
// "free"; paid cohorts start "pending" until staff mark them paid.
func (svc *service) Join(ctx context.Context, usr user.User, cohortID int, today schedule.Date) (Enrollment, error) {
	c, err := svc.repo.GetCohortByID(ctx, cohortID)
	if err != nil {
		return Enrollment{}, err
	}
	enrolled, err := svc.repo.CountEnrollments(ctx, cohortID)
	if err != nil {
		return Enrollment{}, err
	}
	if !c.CanJoin(today, enrolled) {
		return Enrollment{}, ErrCohortClosed
	}

	status := EnrollmentFree
	if c.IsPaid {
		status = EnrollmentPending
	}
	enr := Enrollment{
		UserID:    usr.ID,
		CohortID:  cohortID,
		Status:    status,
		CreatedAt: time.Now().UTC(),
	}
	enr, err = svc.repo.CreateEnrollment(ctx, enr)
	if err != nil {
		return Enrollment{}, err
	}
	svc.logger.Info(fmt.Sprintf("user %d joined cohort %q (%s)", usr.ID, c.Name, status))
	return enr, nil
}

func (svc *service) UserEnrollments(ctx context.Context, userID int) ([]Enrollment, error) {
	return svc.repo.QueryUserEnrollments(ctx, userID)
}

// MarkEnrollmentPaid records an out-of-band payment for a pending
// enrollment. Payment collection itself happens elsewhere; this is the
// administrative hook that used to sit behind the payment webhook.
func (svc *service) MarkEnrollmentPaid(ctx context.Context, enrollmentID, amountCents int) (Enrollment, error) {
	if amountCents < 0 {
		return Enrollment{}, core.NewValidationError(errors.New("invalid amount"),
			core.FieldError{Field: "amount_cents", Error: "must not be negative"})
	}

	enr, err := svc.repo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return Enrollment{}, err
	}
	enr.Status = EnrollmentPaid
	enr.AmountCents = amountCents
	enr.PaidAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateEnrollment(ctx, enr)
}

// UserTasks returns the user's pending tasks as of today together with
// their completed submissions (newest first). The user must be enrolled.
func (svc *service) UserTasks(ctx context.Context, usr user.User, cohortID int, today schedule.Date, urlFor schedule.URLBuilder) ([]schedule.Task, []survey.Submission, error) {
	c, err := svc.repo.GetCohortByID(ctx, cohortID)
	if err != nil {
		return nil, nil, err
	}
	if err = svc.requireEnrollment(ctx, usr.ID, cohortID); err != nil {
		return nil, nil, err
	}

	planner, err := svc.plannerFor(ctx, c, urlFor)
	if err != nil {
		return nil, nil, err
	}
	keys, err := svc.surveyRepo.QueryCompletedKeys(ctx, usr.ID, cohortID)
	if err != nil {
		return nil, nil, err
	}
	subs, err := svc.surveyRepo.QueryUserSubmissions(ctx, usr.ID, cohortID)
	if err != nil {
		return nil, nil, err
	}

	tasks := planner.UserTasks(schedule.NewCompletionSet(keys...), today)
	return tasks, subs, nil
}

// UpcomingTasks previews each rule's first occurrence after today. No
// enrollment required: this feeds the pre-join "what to expect" panel.
func (svc *service) UpcomingTasks(ctx context.Context, cohortID int, today schedule.Date) ([]schedule.Upcoming, error) {
	c, err := svc.repo.GetCohortByID(ctx, cohortID)
	if err != nil {
		return nil, err
	}
	planner, err := svc.plannerFor(ctx, c, nil)
	if err != nil {
		return nil, err
	}
	return planner.UpcomingTasks(today), nil
}

// UserStats aggregates the caller's numeric check-in answers across all
// their submissions in the cohort.
func (svc *service) UserStats(ctx context.Context, usr user.User, cohortID int) (map[string]survey.MetricStats, error) {
	if err := svc.requireEnrollment(ctx, usr.ID, cohortID); err != nil {
		return nil, err
	}
	subs, err := svc.surveyRepo.QueryUserSubmissions(ctx, usr.ID, cohortID)
	if err != nil {
		return nil, err
	}

	surveys, err := svc.surveysByID(ctx, surveyIDs(subs))
	if err != nil {
		return nil, err
	}
	return survey.AggregateMetrics(subs, surveys), nil
}

// ResolveTask is the submission gate: it validates that (ruleSlug,
// instanceID) names a real task instance the enrolled user has not
// completed yet, and returns what the submission form needs. Instances may
// be submitted ahead of their due date.
func (svc *service) ResolveTask(ctx context.Context, usr user.User, cohortID int, ruleSlug string, instanceID int) (ResolvedTask, error) {
	c, err := svc.repo.GetCohortByID(ctx, cohortID)
	if err != nil {
		return ResolvedTask{}, err
	}
	if err = svc.requireEnrollment(ctx, usr.ID, cohortID); err != nil {
		return ResolvedTask{}, err
	}
	rule, err := svc.repo.GetRuleBySlug(ctx, cohortID, ruleSlug)
	if err != nil {
		return ResolvedTask{}, err
	}
	svy, err := svc.surveyRepo.GetSurveyByID(ctx, rule.SurveyID)
	if err != nil {
		return ResolvedTask{}, err
	}

	engineRule, err := rule.BuildRule(svy)
	if err != nil {
		return ResolvedTask{}, err
	}
	due, err := schedule.DueDate(c.Window(), engineRule, instanceID)
	if err != nil {
		return ResolvedTask{}, err
	}

	keys, err := svc.surveyRepo.QueryCompletedKeys(ctx, usr.ID, cohortID)
	if err != nil {
		return ResolvedTask{}, err
	}
	key := schedule.CompletionKey{RuleSlug: ruleSlug, InstanceID: instanceID}
	if schedule.NewCompletionSet(keys...).Has(key) {
		return ResolvedTask{}, ErrTaskAlreadyCompleted
	}

	return ResolvedTask{Rule: rule, Survey: svy, DueDate: due}, nil
}

func (svc *service) requireEnrollment(ctx context.Context, userID, cohortID int) error {
	if _, err := svc.repo.GetEnrollment(ctx, userID, cohortID); err != nil {
		if err == ErrNotFound {
			return ErrNotEnrolled
		}
		return err
	}
	return nil
}

// plannerFor assembles the scheduling engine's inputs for one cohort.
// Rules with broken stored data are logged and skipped so one bad row
// never empties the whole task list.
func (svc *service) plannerFor(ctx context.Context, c Cohort, urlFor schedule.URLBuilder) (schedule.Planner, error) {
	rules, err := svc.repo.QueryCohortRules(ctx, c.ID)
	if err != nil {
		return schedule.Planner{}, err
	}

	ids := make([]int, 0, len(rules))
	for _, r := range rules {
		ids = append(ids, r.SurveyID)
	}
	surveys, err := svc.surveysByID(ctx, ids)
	if err != nil {
		return schedule.Planner{}, err
	}

	engineRules := make([]schedule.Rule, 0, len(rules))
	for _, r := range rules {
		svy, ok := surveys[r.SurveyID]
		if !ok {
			svc.logger.Warn(fmt.Sprintf("cohort %d: rule %q references missing survey %d, skipping", c.ID, r.Slug, r.SurveyID))
			continue
		}
		engineRule, err := r.BuildRule(svy)
		if err != nil {
			svc.logger.Warn(fmt.Sprintf("cohort %d: skipping rule %q", c.ID, r.Slug), err)
			continue
		}
		engineRules = append(engineRules, engineRule)
	}

	return schedule.Planner{
		Window: c.Window(),
		Rules:  engineRules,
		URLFor: urlFor,
		Logger: svc.logger,
	}, nil
}

func (svc *service) surveysByID(ctx context.Context, ids []int) (map[int]survey.Survey, error) {
	distinct := make([]int, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}

	surveys := make(map[int]survey.Survey, len(distinct))
	if len(distinct) == 0 {
		return surveys, nil
	}
	svys, err := svc.surveyRepo.QuerySurveysByID(ctx, distinct...)
	if err != nil {
		return nil, err
	}
	for _, svy := range svys {
		surveys[svy.ID] = svy
	}
	return surveys, nil
}

func surveyIDs(subs []survey.Submission) []int {
	ids := make([]int, 0, len(subs))
	for _, sub := range subs {
		ids = append(ids, sub.SurveyID)
	}
	return ids
}
