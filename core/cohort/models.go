package cohort

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
)

// Cohort is one time-boxed run of the declutter program. Users enroll into
// a cohort and work through its scheduled check-ins between StartDate and
// EndDate (both inclusive).
type Cohort struct {
	ID        int           `json:"id"`
	Name      string        `json:"name"`
	StartDate schedule.Date `json:"start_date"`
	EndDate   schedule.Date `json:"end_date"`

	// Enrollment window; a nil bound leaves that side open.
	EnrollmentStartDate *schedule.Date `json:"enrollment_start_date,omitempty"`
	EnrollmentEndDate   *schedule.Date `json:"enrollment_end_date,omitempty"`

	IsPaid            bool     `json:"is_paid"`
	MinimumPriceCents int      `json:"minimum_price_cents"`
	MaxSeats          null.Int `json:"max_seats"` // null = unlimited
	IsActive          bool     `json:"is_active"`

	// OnboardingSurveyID points at the survey new members fill in right
	// after joining, independent of any schedule rule.
	OnboardingSurveyID null.Int `json:"onboarding_survey_id"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Window is the cohort's date range in the form the scheduling engine
// consumes.
func (c Cohort) Window() schedule.Window {
	return schedule.Window{
		Start:       c.StartDate,
		End:         c.EndDate,
		EnrollStart: c.EnrollmentStartDate,
		EnrollEnd:   c.EnrollmentEndDate,
	}
}

func (c Cohort) DurationDays() int {
	return c.EndDate.DaysSince(c.StartDate)
}

// IsFull reports whether enrolled occupies every seat. Null MaxSeats means
// unlimited.
func (c Cohort) IsFull(enrolled int) bool {
	return c.MaxSeats.Valid && enrolled >= c.MaxSeats.Int
}

// SeatsLeft returns the remaining seat count; invalid means unlimited.
func (c Cohort) SeatsLeft(enrolled int) null.Int {
	if !c.MaxSeats.Valid {
		return null.Int{}
	}
	left := c.MaxSeats.Int - enrolled
	if left < 0 {
		left = 0
	}
	return null.IntFrom(left)
}

func (c Cohort) enrollmentOpen(today schedule.Date) bool {
	if c.EnrollmentStartDate != nil && today.Before(*c.EnrollmentStartDate) {
		return false
	}
	if c.EnrollmentEndDate != nil && today.After(*c.EnrollmentEndDate) {
		return false
	}
	return true
}

// CanJoin reports whether a user could enroll today given the current
// enrollment count: the cohort is active, has a seat left, and its
// enrollment window (when defined) contains today.
func (c Cohort) CanJoin(today schedule.Date, enrolled int) bool {
	return c.IsActive && !c.IsFull(enrolled) && c.enrollmentOpen(today)
}

// JoinableCohort pairs a cohort with its remaining seat count for listings.
type JoinableCohort struct {
	Cohort
	SeatsLeft null.Int `json:"seats_left"` // null = unlimited
}

// NewCohort is the payload for creating a cohort by hand; the design
// importer builds cohorts itself.
type NewCohort struct {
	Name                string         `json:"name" validate:"required"`
	StartDate           schedule.Date  `json:"start_date" validate:"required"`
	EndDate             schedule.Date  `json:"end_date" validate:"required"`
	EnrollmentStartDate *schedule.Date `json:"enrollment_start_date"`
	EnrollmentEndDate   *schedule.Date `json:"enrollment_end_date"`
	IsPaid              bool           `json:"is_paid"`
	MinimumPriceCents   int            `json:"minimum_price_cents" validate:"min=0"`
	MaxSeats            null.Int       `json:"max_seats"`
}

func (nc *NewCohort) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// EnrollmentStatus tracks how a user got (or lost) their seat.
type EnrollmentStatus string

const (
	EnrollmentPending  EnrollmentStatus = "pending" // paid cohort, payment outstanding
	EnrollmentFree     EnrollmentStatus = "free"
	EnrollmentPaid     EnrollmentStatus = "paid"
	EnrollmentRefunded EnrollmentStatus = "refunded"
)

func (s EnrollmentStatus) Valid() bool {
	switch s {
	case EnrollmentPending, EnrollmentFree, EnrollmentPaid, EnrollmentRefunded:
		return true
	}
	return false
}

// Enrollment ties a user to a cohort. (UserID, CohortID) is unique.
type Enrollment struct {
	ID          int              `json:"id"`
	UserID      int              `json:"user_id"`
	CohortID    int              `json:"cohort_id"`
	Status      EnrollmentStatus `json:"status"`
	AmountCents int              `json:"amount_cents"`
	PaidAt      null.Time        `json:"paid_at"`
	CreatedAt   time.Time        `json:"created_at"` // UTC
}

// ScheduleRule is the stored form of one scheduling rule. The nullable
// columns mirror the design document: WEEKLY rules carry DayOfWeek, ONCE
// rules carry OffsetDays and OffsetFrom.
type ScheduleRule struct {
	ID           int                `json:"id"`
	CohortID     int                `json:"cohort_id"`
	SurveyID     int                `json:"survey_id"`
	Slug         string             `json:"slug"`
	Frequency    schedule.Frequency `json:"frequency"`
	IsCumulative bool               `json:"is_cumulative"`

	DayOfWeek  null.Int    `json:"day_of_week"`
	OffsetDays null.Int    `json:"offset_days"`
	OffsetFrom null.String `json:"offset_from"`

	TitleTemplate       string `json:"task_title_template"`
	DescriptionTemplate string `json:"task_description_template"`

	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// BuildRule converts the stored row plus its survey into the engine's Rule.
// Bad stored data (missing day of week, unknown reference point, broken
// template) surfaces as *schedule.InvalidRuleError so callers can skip the
// rule without dropping the whole cohort.
func (r ScheduleRule) BuildRule(svy survey.Survey) (schedule.Rule, error) {
	rule := schedule.Rule{
		Slug:                 r.Slug,
		SurveyName:           svy.Name,
		SurveyDescription:    svy.Description,
		EstimatedTimeMinutes: svy.EstimatedTimeMinutes.Int,
	}

	switch r.Frequency {
	case schedule.FrequencyOnce:
		if !r.OffsetFrom.Valid {
			return schedule.Rule{}, &schedule.InvalidRuleError{Slug: r.Slug, Reason: "ONCE rule without offset_from"}
		}
		rule.Recurrence = schedule.Once{
			OffsetDays: r.OffsetDays.Int,
			From:       schedule.ReferencePoint(r.OffsetFrom.String),
		}
	case schedule.FrequencyDaily:
		rule.Recurrence = schedule.Daily{Cumulative: r.IsCumulative}
	case schedule.FrequencyWeekly:
		if !r.DayOfWeek.Valid {
			return schedule.Rule{}, &schedule.InvalidRuleError{Slug: r.Slug, Reason: "WEEKLY rule without day_of_week"}
		}
		rule.Recurrence = schedule.Weekly{
			Day:        schedule.Weekday(r.DayOfWeek.Int),
			Cumulative: r.IsCumulative,
		}
	default:
		return schedule.Rule{}, &schedule.InvalidRuleError{Slug: r.Slug, Reason: fmt.Sprintf("unknown frequency %q", r.Frequency)}
	}

	var err error
	if r.TitleTemplate != "" {
		if rule.Title, err = schedule.ParseTaskTemplate(r.TitleTemplate); err != nil {
			return schedule.Rule{}, &schedule.InvalidRuleError{Slug: r.Slug, Reason: err.Error()}
		}
	}
	if r.DescriptionTemplate != "" {
		if rule.Description, err = schedule.ParseTaskTemplate(r.DescriptionTemplate); err != nil {
			return schedule.Rule{}, &schedule.InvalidRuleError{Slug: r.Slug, Reason: err.Error()}
		}
	}

	if err = rule.Validate(); err != nil {
		return schedule.Rule{}, err
	}
	return rule, nil
}

// ResolvedTask is the submission gate's answer: the rule owning the task
// instance, the survey to render and the instance's due date.
type ResolvedTask struct {
	Rule    ScheduleRule  `json:"rule"`
	Survey  survey.Survey `json:"survey"`
	DueDate schedule.Date `json:"due_date"`
}
