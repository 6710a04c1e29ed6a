package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
)

const (
	cohortColumns = `id, name, start_date, end_date, enrollment_start_date, enrollment_end_date,
	is_paid, minimum_price_cents, max_seats, is_active, onboarding_survey_id, created_at, updated_at`

	enrollmentColumns = `id, user_id, cohort_id, status, amount_cents, paid_at, created_at`

	ruleColumns = `id, cohort_id, slug, survey_id, frequency, is_cumulative, day_of_week,
	offset_days, offset_from, title_template, description_template, created_at, updated_at`
)

type cohortRow struct {
	ID                  int           `db:"id"`
	Name                string        `db:"name"`
	StartDate           schedule.Date `db:"start_date"`
	EndDate             schedule.Date `db:"end_date"`
	EnrollmentStartDate schedule.Date `db:"enrollment_start_date"` // zero = NULL
	EnrollmentEndDate   schedule.Date `db:"enrollment_end_date"`   // zero = NULL
	IsPaid              bool          `db:"is_paid"`
	MinimumPriceCents   int           `db:"minimum_price_cents"`
	MaxSeats            null.Int      `db:"max_seats"`
	IsActive            bool          `db:"is_active"`
	OnboardingSurveyID  null.Int      `db:"onboarding_survey_id"`
	CreatedAt           time.Time     `db:"created_at"`
	UpdatedAt           time.Time     `db:"updated_at"`
}

func newCohortRow(c cohort.Cohort) cohortRow {
	row := cohortRow{
		ID:                 c.ID,
		Name:               c.Name,
		StartDate:          c.StartDate,
		EndDate:            c.EndDate,
		IsPaid:             c.IsPaid,
		MinimumPriceCents:  c.MinimumPriceCents,
		MaxSeats:           c.MaxSeats,
		IsActive:           c.IsActive,
		OnboardingSurveyID: c.OnboardingSurveyID,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
	}
	if c.EnrollmentStartDate != nil {
		row.EnrollmentStartDate = *c.EnrollmentStartDate
	}
	if c.EnrollmentEndDate != nil {
		row.EnrollmentEndDate = *c.EnrollmentEndDate
	}
	return row
}

func (row cohortRow) toCohort() cohort.Cohort {
	c := cohort.Cohort{
		ID:                 row.ID,
		Name:               row.Name,
		StartDate:          row.StartDate,
		EndDate:            row.EndDate,
		IsPaid:             row.IsPaid,
		MinimumPriceCents:  row.MinimumPriceCents,
		MaxSeats:           row.MaxSeats,
		IsActive:           row.IsActive,
		OnboardingSurveyID: row.OnboardingSurveyID,
		CreatedAt:          row.CreatedAt.UTC(),
		UpdatedAt:          row.UpdatedAt.UTC(),
	}
	if !row.EnrollmentStartDate.IsZero() {
		d := row.EnrollmentStartDate
		c.EnrollmentStartDate = &d
	}
	if !row.EnrollmentEndDate.IsZero() {
		d := row.EnrollmentEndDate
		c.EnrollmentEndDate = &d
	}
	return c
}

func cohortsFromRows(rows []cohortRow) []cohort.Cohort {
	if len(rows) == 0 {
		return nil
	}
	cs := make([]cohort.Cohort, len(rows))
	for i, row := range rows {
		cs[i] = row.toCohort()
	}
	return cs
}

type enrollmentRow struct {
	ID          int                     `db:"id"`
	UserID      int                     `db:"user_id"`
	CohortID    int                     `db:"cohort_id"`
	Status      cohort.EnrollmentStatus `db:"status"`
	AmountCents int                     `db:"amount_cents"`
	PaidAt      null.Time               `db:"paid_at"`
	CreatedAt   time.Time               `db:"created_at"`
}

func newEnrollmentRow(enr cohort.Enrollment) enrollmentRow {
	return enrollmentRow{
		ID:          enr.ID,
		UserID:      enr.UserID,
		CohortID:    enr.CohortID,
		Status:      enr.Status,
		AmountCents: enr.AmountCents,
		PaidAt:      enr.PaidAt,
		CreatedAt:   enr.CreatedAt,
	}
}

func (row enrollmentRow) toEnrollment() cohort.Enrollment {
	return cohort.Enrollment{
		ID:          row.ID,
		UserID:      row.UserID,
		CohortID:    row.CohortID,
		Status:      row.Status,
		AmountCents: row.AmountCents,
		PaidAt:      row.PaidAt,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type ruleRow struct {
	ID                  int                `db:"id"`
	CohortID            int                `db:"cohort_id"`
	Slug                string             `db:"slug"`
	SurveyID            int                `db:"survey_id"`
	Frequency           schedule.Frequency `db:"frequency"`
	IsCumulative        bool               `db:"is_cumulative"`
	DayOfWeek           null.Int           `db:"day_of_week"`
	OffsetDays          null.Int           `db:"offset_days"`
	OffsetFrom          null.String        `db:"offset_from"`
	TitleTemplate       string             `db:"title_template"`
	DescriptionTemplate string             `db:"description_template"`
	CreatedAt           time.Time          `db:"created_at"`
	UpdatedAt           time.Time          `db:"updated_at"`
}

func newRuleRow(r cohort.ScheduleRule) ruleRow {
	return ruleRow{
		ID:                  r.ID,
		CohortID:            r.CohortID,
		Slug:                r.Slug,
		SurveyID:            r.SurveyID,
		Frequency:           r.Frequency,
		IsCumulative:        r.IsCumulative,
		DayOfWeek:           r.DayOfWeek,
		OffsetDays:          r.OffsetDays,
		OffsetFrom:          r.OffsetFrom,
		TitleTemplate:       r.TitleTemplate,
		DescriptionTemplate: r.DescriptionTemplate,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

func (row ruleRow) toRule() cohort.ScheduleRule {
	return cohort.ScheduleRule{
		ID:                  row.ID,
		CohortID:            row.CohortID,
		Slug:                row.Slug,
		SurveyID:            row.SurveyID,
		Frequency:           row.Frequency,
		IsCumulative:        row.IsCumulative,
		DayOfWeek:           row.DayOfWeek,
		OffsetDays:          row.OffsetDays,
		OffsetFrom:          row.OffsetFrom,
		TitleTemplate:       row.TitleTemplate,
		DescriptionTemplate: row.DescriptionTemplate,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
}

func rulesFromRows(rows []ruleRow) []cohort.ScheduleRule {
	if len(rows) == 0 {
		return nil
	}
	rules := make([]cohort.ScheduleRule, len(rows))
	for i, row := range rows {
		rules[i] = row.toRule()
	}
	return rules
}

type cohortRepository struct {
	db *sqlx.DB
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(db *sqlx.DB) cohort.Repository {
	return &cohortRepository{db: db}
}

func (repo *cohortRepository) CreateCohort(ctx context.Context, c cohort.Cohort) (cohort.Cohort, error) {
	const query = `
	INSERT INTO cohorts (name, start_date, end_date, enrollment_start_date, enrollment_end_date,
		is_paid, minimum_price_cents, max_seats, is_active, onboarding_survey_id, created_at, updated_at)
	VALUES (:name, :start_date, :end_date, :enrollment_start_date, :enrollment_end_date,
		:is_paid, :minimum_price_cents, :max_seats, :is_active, :onboarding_survey_id, :created_at, :updated_at)
	RETURNING id`

	row := newCohortRow(c)
	if err := namedGet(ctx, repo.db, &row.ID, query, row); err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "creating cohort")
	}
	c.ID = row.ID
	return c, nil
}

func (repo *cohortRepository) GetCohortByID(ctx context.Context, id int) (cohort.Cohort, error) {
	var row cohortRow
	query := repo.db.Rebind("SELECT " + cohortColumns + " FROM cohorts WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return cohort.Cohort{}, cohort.ErrNotFound
		}
		return cohort.Cohort{}, errors.Wrap(err, "getting cohort")
	}
	return row.toCohort(), nil
}

func (repo *cohortRepository) QueryAllCohorts(ctx context.Context) ([]cohort.Cohort, error) {
	var rows []cohortRow
	query := "SELECT " + cohortColumns + " FROM cohorts ORDER BY start_date DESC, id"
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying cohorts")
	}
	return cohortsFromRows(rows), nil
}

func (repo *cohortRepository) QueryActiveCohorts(ctx context.Context) ([]cohort.Cohort, error) {
	var rows []cohortRow
	query := "SELECT " + cohortColumns + " FROM cohorts WHERE is_active ORDER BY start_date DESC, id"
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying active cohorts")
	}
	return cohortsFromRows(rows), nil
}

func (repo *cohortRepository) UpdateCohort(ctx context.Context, c cohort.Cohort) (cohort.Cohort, error) {
	const query = `
	UPDATE cohorts SET
		name = :name, start_date = :start_date, end_date = :end_date,
		enrollment_start_date = :enrollment_start_date, enrollment_end_date = :enrollment_end_date,
		is_paid = :is_paid, minimum_price_cents = :minimum_price_cents, max_seats = :max_seats,
		is_active = :is_active, onboarding_survey_id = :onboarding_survey_id,
		created_at = :created_at, updated_at = :updated_at
	WHERE id = :id`

	n, err := namedExecAffected(ctx, repo.db, query, newCohortRow(c))
	if err != nil {
		return cohort.Cohort{}, errors.Wrap(err, "updating cohort")
	}
	if n == 0 {
		return cohort.Cohort{}, cohort.ErrNotFound
	}
	return c, nil
}

func (repo *cohortRepository) CreateEnrollment(ctx context.Context, enr cohort.Enrollment) (cohort.Enrollment, error) {
	const query = `
	INSERT INTO enrollments (user_id, cohort_id, status, amount_cents, paid_at, created_at)
	VALUES (:user_id, :cohort_id, :status, :amount_cents, :paid_at, :created_at)
	RETURNING id`

	row := newEnrollmentRow(enr)
	if err := namedGet(ctx, repo.db, &row.ID, query, row); err != nil {
		if isUniqueViolation(err) {
			return cohort.Enrollment{}, cohort.ErrAlreadyEnrolled
		}
		return cohort.Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	enr.ID = row.ID
	return enr, nil
}

func (repo *cohortRepository) GetEnrollment(ctx context.Context, userID, cohortID int) (cohort.Enrollment, error) {
	var row enrollmentRow
	query := repo.db.Rebind("SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? AND cohort_id = ?")
	if err := repo.db.GetContext(ctx, &row, query, userID, cohortID); err != nil {
		if err == sql.ErrNoRows {
			return cohort.Enrollment{}, cohort.ErrNotFound
		}
		return cohort.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *cohortRepository) GetEnrollmentByID(ctx context.Context, id int) (cohort.Enrollment, error) {
	var row enrollmentRow
	query := repo.db.Rebind("SELECT " + enrollmentColumns + " FROM enrollments WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return cohort.Enrollment{}, cohort.ErrNotFound
		}
		return cohort.Enrollment{}, errors.Wrap(err, "getting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *cohortRepository) QueryUserEnrollments(ctx context.Context, userID int) ([]cohort.Enrollment, error) {
	var rows []enrollmentRow
	query := repo.db.Rebind("SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? ORDER BY created_at DESC, id DESC")
	if err := repo.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "querying enrollments")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	enrs := make([]cohort.Enrollment, len(rows))
	for i, row := range rows {
		enrs[i] = row.toEnrollment()
	}
	return enrs, nil
}

func (repo *cohortRepository) CountEnrollments(ctx context.Context, cohortID int) (int, error) {
	var n int
	query := repo.db.Rebind("SELECT COUNT(*) FROM enrollments WHERE cohort_id = ?")
	if err := repo.db.GetContext(ctx, &n, query, cohortID); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

func (repo *cohortRepository) UpdateEnrollment(ctx context.Context, enr cohort.Enrollment) (cohort.Enrollment, error) {
	const query = `
	UPDATE enrollments SET
		user_id = :user_id, cohort_id = :cohort_id, status = :status,
		amount_cents = :amount_cents, paid_at = :paid_at, created_at = :created_at
	WHERE id = :id`

	n, err := namedExecAffected(ctx, repo.db, query, newEnrollmentRow(enr))
	if err != nil {
		return cohort.Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	if n == 0 {
		return cohort.Enrollment{}, cohort.ErrNotFound
	}
	return enr, nil
}

func (repo *cohortRepository) CreateRule(ctx context.Context, r cohort.ScheduleRule) (cohort.ScheduleRule, error) {
	const query = `
	INSERT INTO schedules (cohort_id, slug, survey_id, frequency, is_cumulative, day_of_week,
		offset_days, offset_from, title_template, description_template, created_at, updated_at)
	VALUES (:cohort_id, :slug, :survey_id, :frequency, :is_cumulative, :day_of_week,
		:offset_days, :offset_from, :title_template, :description_template, :created_at, :updated_at)
	RETURNING id`

	row := newRuleRow(r)
	if err := namedGet(ctx, repo.db, &row.ID, query, row); err != nil {
		return cohort.ScheduleRule{}, errors.Wrap(err, "creating schedule rule")
	}
	r.ID = row.ID
	return r, nil
}

func (repo *cohortRepository) QueryCohortRules(ctx context.Context, cohortID int) ([]cohort.ScheduleRule, error) {
	var rows []ruleRow
	query := repo.db.Rebind("SELECT " + ruleColumns + " FROM schedules WHERE cohort_id = ? ORDER BY id")
	if err := repo.db.SelectContext(ctx, &rows, query, cohortID); err != nil {
		return nil, errors.Wrap(err, "querying schedule rules")
	}
	return rulesFromRows(rows), nil
}

func (repo *cohortRepository) QueryRulesBySurveyID(ctx context.Context, surveyID int) ([]cohort.ScheduleRule, error) {
	var rows []ruleRow
	query := repo.db.Rebind("SELECT " + ruleColumns + " FROM schedules WHERE survey_id = ? ORDER BY id")
	if err := repo.db.SelectContext(ctx, &rows, query, surveyID); err != nil {
		return nil, errors.Wrap(err, "querying schedule rules by survey")
	}
	return rulesFromRows(rows), nil
}

func (repo *cohortRepository) GetRuleBySlug(ctx context.Context, cohortID int, slug string) (cohort.ScheduleRule, error) {
	var row ruleRow
	query := repo.db.Rebind("SELECT " + ruleColumns + " FROM schedules WHERE cohort_id = ? AND slug = ?")
	if err := repo.db.GetContext(ctx, &row, query, cohortID, slug); err != nil {
		if err == sql.ErrNoRows {
			return cohort.ScheduleRule{}, cohort.ErrNotFound
		}
		return cohort.ScheduleRule{}, errors.Wrap(err, "getting schedule rule")
	}
	return row.toRule(), nil
}

func (repo *cohortRepository) UpdateRule(ctx context.Context, r cohort.ScheduleRule) (cohort.ScheduleRule, error) {
	const query = `
	UPDATE schedules SET
		cohort_id = :cohort_id, slug = :slug, survey_id = :survey_id, frequency = :frequency,
		is_cumulative = :is_cumulative, day_of_week = :day_of_week, offset_days = :offset_days,
		offset_from = :offset_from, title_template = :title_template,
		description_template = :description_template, created_at = :created_at, updated_at = :updated_at
	WHERE id = :id`

	n, err := namedExecAffected(ctx, repo.db, query, newRuleRow(r))
	if err != nil {
		return cohort.ScheduleRule{}, errors.Wrap(err, "updating schedule rule")
	}
	if n == 0 {
		return cohort.ScheduleRule{}, cohort.ErrNotFound
	}
	return r, nil
}

func (repo *cohortRepository) DeleteRulesByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM schedules WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building rule delete query")
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting schedule rules")
	}
	return nil
}
