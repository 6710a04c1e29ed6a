package cohort

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
)

// A cohort design is a portable JSON document describing everything one run
// needs: dates and pricing, the surveys with their questions, and the
// schedule rules binding surveys to the calendar. Staff exchange designs
// through the import/export API and CLI; the document format is the
// contract, so changes here are breaking.

// Design is the root of the document.
type Design struct {
	Name              string   `json:"name"`
	IsPaid            bool     `json:"is_paid,omitempty"`
	MinimumPriceCents int      `json:"minimum_price_cents,omitempty"`
	MaxSeats          null.Int `json:"max_seats"` // null = unlimited

	// OnboardingSurvey names the survey (by internal id) presented right
	// after joining, outside any schedule.
	OnboardingSurvey string `json:"onboarding_survey,omitempty"`

	Dates     DesignDates      `json:"dates"`
	Surveys   []DesignSurvey   `json:"surveys"`
	Schedules []DesignSchedule `json:"schedules,omitempty"`
}

type DesignDates struct {
	EnrollStart *schedule.Date `json:"enroll_start,omitempty"`
	EnrollEnd   *schedule.Date `json:"enroll_end,omitempty"`
	CohortStart schedule.Date  `json:"cohort_start"`
	CohortEnd   schedule.Date  `json:"cohort_end"`
}

// DesignSurvey carries a survey definition under a document-internal id
// ("entry", "daily-checkin", …). Schedules and the onboarding pointer
// reference surveys by this id; the stored slug is derived from it.
type DesignSurvey struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	TitleTemplate        string          `json:"title_template,omitempty"`
	EstimatedTimeMinutes null.Int        `json:"estimated_time_minutes"`
	Sections             []DesignSection `json:"sections"`
}

type DesignSection struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Questions   []DesignQuestion `json:"questions"`
}

type DesignQuestion struct {
	Key        string              `json:"key"`
	Text       string              `json:"text"`
	Type       survey.QuestionType `json:"type"`
	IsRequired *bool               `json:"is_required,omitempty"` // absent = true
	Choices    survey.ChoiceMap    `json:"choices,omitempty"`
}

// Required resolves the document default: questions are required unless the
// document says otherwise.
func (q DesignQuestion) Required() bool {
	return q.IsRequired == nil || *q.IsRequired
}

// DesignSchedule is one scheduling rule. DayOfWeek applies to WEEKLY rules,
// OffsetDays and OffsetFrom to ONCE rules.
type DesignSchedule struct {
	Slug                string                  `json:"slug"`
	SurveyID            string                  `json:"survey_id"`
	Frequency           schedule.Frequency      `json:"frequency"`
	IsCumulative        bool                    `json:"is_cumulative,omitempty"`
	TitleTemplate       string                  `json:"task_title_template,omitempty"`
	DescriptionTemplate string                  `json:"task_description_template,omitempty"`
	DayOfWeek           *int                    `json:"day_of_week,omitempty"`
	OffsetDays          *int                    `json:"offset_days,omitempty"`
	OffsetFrom          schedule.ReferencePoint `json:"offset_from,omitempty"`
}

const defaultTitleTemplate = "{survey_name}"

// Validate checks the document's structure and internal consistency:
// required fields, date ordering, unique slugs and ids, resolvable survey
// references, known types, parseable templates and the frequency-specific
// fields. All problems are reported at once, keyed by document path.
func (d Design) Validate() error {
	var flds []core.FieldError
	add := func(field, msg string) {
		flds = append(flds, core.FieldError{Field: field, Error: msg})
	}

	if d.Name == "" {
		add("name", "required")
	}
	if d.MinimumPriceCents < 0 {
		add("minimum_price_cents", "must not be negative")
	}
	if d.MaxSeats.Valid && d.MaxSeats.Int < 1 {
		add("max_seats", "must be at least 1 when set")
	}

	if d.Dates.CohortStart.IsZero() {
		add("dates.cohort_start", "required")
	}
	if d.Dates.CohortEnd.IsZero() {
		add("dates.cohort_end", "required")
	}
	if !d.Dates.CohortStart.IsZero() && !d.Dates.CohortEnd.IsZero() &&
		d.Dates.CohortEnd.Before(d.Dates.CohortStart) {
		add("dates.cohort_end", "must not be before cohort_start")
	}
	if d.Dates.EnrollStart != nil && d.Dates.EnrollEnd != nil &&
		d.Dates.EnrollEnd.Before(*d.Dates.EnrollStart) {
		add("dates.enroll_end", "must not be before enroll_start")
	}

	if len(d.Surveys) == 0 {
		add("surveys", "at least one survey is required")
	}
	surveyIDs := make(map[string]bool, len(d.Surveys))
	for i, ds := range d.Surveys {
		field := fmt.Sprintf("surveys[%d]", i)
		if ds.ID == "" {
			add(field+".id", "required")
		} else if surveyIDs[ds.ID] {
			add(field+".id", fmt.Sprintf("duplicate survey id %q", ds.ID))
		}
		surveyIDs[ds.ID] = true
		if ds.Name == "" {
			add(field+".name", "required")
		}
		if ds.TitleTemplate != "" {
			if _, err := schedule.ParseTaskTemplate(ds.TitleTemplate); err != nil {
				add(field+".title_template", err.Error())
			}
		}
		if len(ds.Sections) == 0 {
			add(field+".sections", "at least one section is required")
		}
		keys := make(map[string]bool)
		for j, sec := range ds.Sections {
			sfield := fmt.Sprintf("%s.sections[%d]", field, j)
			if sec.Title == "" {
				add(sfield+".title", "required")
			}
			if len(sec.Questions) == 0 {
				add(sfield+".questions", "at least one question is required")
			}
			for k, q := range sec.Questions {
				qfield := fmt.Sprintf("%s.questions[%d]", sfield, k)
				if q.Key == "" {
					add(qfield+".key", "required")
				} else if keys[q.Key] {
					add(qfield+".key", fmt.Sprintf("duplicate question key %q", q.Key))
				}
				keys[q.Key] = true
				if q.Text == "" {
					add(qfield+".text", "required")
				}
				if !q.Type.Valid() {
					add(qfield+".type", fmt.Sprintf("unknown question type %q", q.Type))
				}
				if q.Type == survey.QuestionRadio && len(q.Choices) == 0 {
					add(qfield+".choices", "radio questions need at least one choice")
				}
			}
		}
	}

	slugs := make(map[string]bool, len(d.Schedules))
	for i, sched := range d.Schedules {
		field := fmt.Sprintf("schedules[%d]", i)
		if sched.Slug == "" {
			add(field+".slug", "required")
		} else if slugs[sched.Slug] {
			add(field+".slug", fmt.Sprintf("duplicate schedule slug %q", sched.Slug))
		}
		slugs[sched.Slug] = true
		if sched.SurveyID == "" {
			add(field+".survey_id", "required")
		} else if !surveyIDs[sched.SurveyID] {
			add(field+".survey_id", fmt.Sprintf("unknown survey %q", sched.SurveyID))
		}

		switch sched.Frequency {
		case "":
			add(field+".frequency", "required")
		case schedule.FrequencyOnce:
			if sched.OffsetDays == nil {
				add(field+".offset_days", "required for ONCE schedules")
			}
			if sched.OffsetFrom == "" {
				add(field+".offset_from", "required for ONCE schedules")
			} else if !sched.OffsetFrom.Valid() {
				add(field+".offset_from", fmt.Sprintf("unknown reference point %q", sched.OffsetFrom))
			}
		case schedule.FrequencyDaily:
		case schedule.FrequencyWeekly:
			if sched.DayOfWeek == nil {
				add(field+".day_of_week", "required for WEEKLY schedules")
			} else if !schedule.Weekday(*sched.DayOfWeek).Valid() {
				add(field+".day_of_week", "must be between 0 (Monday) and 6 (Sunday)")
			}
		default:
			add(field+".frequency", fmt.Sprintf("unknown frequency %q", sched.Frequency))
		}

		if sched.TitleTemplate != "" {
			if _, err := schedule.ParseTaskTemplate(sched.TitleTemplate); err != nil {
				add(field+".task_title_template", err.Error())
			}
		}
		if sched.DescriptionTemplate != "" {
			if _, err := schedule.ParseTaskTemplate(sched.DescriptionTemplate); err != nil {
				add(field+".task_description_template", err.Error())
			}
		}
	}

	if d.OnboardingSurvey != "" && !surveyIDs[d.OnboardingSurvey] {
		add("onboarding_survey", fmt.Sprintf("unknown survey %q", d.OnboardingSurvey))
	}

	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid cohort design"), flds...)
	}
	return nil
}

// Summary is a one-line description of the document for CLI output.
func (d Design) Summary() string {
	return fmt.Sprintf("%q (%s to %s): %d surveys, %d schedules",
		d.Name, d.Dates.CohortStart, d.Dates.CohortEnd, len(d.Surveys), len(d.Schedules))
}

type ImportOptions struct {
	// NameOverride replaces the document's name when non-empty.
	NameOverride string
	// CohortID selects the cohort to update; zero creates a new one.
	CohortID int
	// DryRun validates the document (and, in update mode, that the cohort
	// exists) without writing anything.
	DryRun bool
}

// ImportDesign creates or updates a cohort from a design document.
//
// Create mode builds everything fresh: each design survey becomes a new
// cohort-scoped survey (slug "{cohortID}_{internalID}"), so surveys are
// never shared between cohorts.
//
// Update mode reconciles: cohort fields are rewritten from the document,
// surveys are matched by slug (metadata updated freely, questions recreated
// only while the survey has no submissions), rules are upserted by slug,
// and rules or surveys that dropped out of the document are deleted unless
// submissions still reference them.
func (svc *service) ImportDesign(ctx context.Context, d Design, opts ImportOptions) (Cohort, error) {
	if err := d.Validate(); err != nil {
		return Cohort{}, err
	}
	if opts.DryRun {
		if opts.CohortID != 0 {
			return svc.repo.GetCohortByID(ctx, opts.CohortID)
		}
		return designCohort(d, opts.NameOverride), nil
	}
	if opts.CohortID != 0 {
		return svc.updateFromDesign(ctx, d, opts)
	}
	return svc.createFromDesign(ctx, d, opts)
}

func (svc *service) createFromDesign(ctx context.Context, d Design, opts ImportOptions) (Cohort, error) {
	now := time.Now().UTC()
	c := designCohort(d, opts.NameOverride)
	c.CreatedAt, c.UpdatedAt = now, now
	c, err := svc.repo.CreateCohort(ctx, c)
	if err != nil {
		return Cohort{}, err
	}

	surveys := make(map[string]survey.Survey, len(d.Surveys))
	for _, ds := range d.Surveys {
		svy, err := svc.surveyRepo.CreateSurvey(ctx, designSurvey(c.ID, ds, now))
		if err != nil {
			return Cohort{}, err
		}
		surveys[ds.ID] = svy
	}

	for _, sched := range d.Schedules {
		if _, err = svc.repo.CreateRule(ctx, designRule(c.ID, surveys[sched.SurveyID].ID, sched, now)); err != nil {
			return Cohort{}, err
		}
	}

	if d.OnboardingSurvey != "" {
		c.OnboardingSurveyID = null.IntFrom(surveys[d.OnboardingSurvey].ID)
		if c, err = svc.repo.UpdateCohort(ctx, c); err != nil {
			return Cohort{}, err
		}
	}
	svc.logger.Info(fmt.Sprintf("imported cohort %q (id %d): %d surveys, %d schedules", c.Name, c.ID, len(d.Surveys), len(d.Schedules)))
	return c, nil
}

func (svc *service) updateFromDesign(ctx context.Context, d Design, opts ImportOptions) (Cohort, error) {
	c, err := svc.repo.GetCohortByID(ctx, opts.CohortID)
	if err != nil {
		return Cohort{}, err
	}

	now := time.Now().UTC()
	updated := designCohort(d, opts.NameOverride)
	c.Name = updated.Name
	c.StartDate = updated.StartDate
	c.EndDate = updated.EndDate
	c.EnrollmentStartDate = updated.EnrollmentStartDate
	c.EnrollmentEndDate = updated.EnrollmentEndDate
	c.IsPaid = updated.IsPaid
	c.MinimumPriceCents = updated.MinimumPriceCents
	c.MaxSeats = updated.MaxSeats
	c.UpdatedAt = now

	surveys := make(map[string]survey.Survey, len(d.Surveys))
	for _, ds := range d.Surveys {
		svy, err := svc.upsertDesignSurvey(ctx, c.ID, ds, now)
		if err != nil {
			return Cohort{}, err
		}
		surveys[ds.ID] = svy
	}

	kept := make(map[string]bool, len(d.Schedules))
	for _, sched := range d.Schedules {
		if err = svc.upsertDesignRule(ctx, c.ID, surveys[sched.SurveyID].ID, sched, now); err != nil {
			return Cohort{}, err
		}
		kept[sched.Slug] = true
	}
	if err = svc.cleanupRemovedRules(ctx, c.ID, kept); err != nil {
		return Cohort{}, err
	}
	if err = svc.cleanupRemovedSurveys(ctx, c.ID, surveys); err != nil {
		return Cohort{}, err
	}

	c.OnboardingSurveyID = null.Int{}
	if d.OnboardingSurvey != "" {
		c.OnboardingSurveyID = null.IntFrom(surveys[d.OnboardingSurvey].ID)
	}
	return svc.repo.UpdateCohort(ctx, c)
}

// upsertDesignSurvey matches the design survey to an existing row by its
// cohort-scoped slug. Metadata updates freely; questions are only recreated
// while the survey has no submissions, since stored answers reference
// question keys.
func (svc *service) upsertDesignSurvey(ctx context.Context, cohortID int, ds DesignSurvey, now time.Time) (survey.Survey, error) {
	fresh := designSurvey(cohortID, ds, now)

	existing, err := svc.surveyRepo.GetSurveyBySlug(ctx, fresh.Slug)
	if err == survey.ErrNotFound {
		return svc.surveyRepo.CreateSurvey(ctx, fresh)
	}
	if err != nil {
		return survey.Survey{}, err
	}

	if surveyMetadataChanged(existing, fresh) {
		existing.Name = fresh.Name
		existing.Description = fresh.Description
		existing.TitleTemplate = fresh.TitleTemplate
		existing.EstimatedTimeMinutes = fresh.EstimatedTimeMinutes
		existing.UpdatedAt = now
		if existing, err = svc.surveyRepo.UpdateSurvey(ctx, existing); err != nil {
			return survey.Survey{}, err
		}
	}

	if questionsChanged(existing, ds) {
		has, err := svc.surveyRepo.HasSubmissions(ctx, existing.ID)
		if err != nil {
			return survey.Survey{}, err
		}
		if has {
			svc.logger.Error(fmt.Sprintf("cannot modify questions for survey %q (%s): it has submissions, questions left unchanged", existing.Name, ds.ID))
			return existing, nil
		}
		if err = svc.surveyRepo.ReplaceSurveyQuestions(ctx, existing.ID, fresh.Sections, fresh.Questions); err != nil {
			return survey.Survey{}, err
		}
		return svc.surveyRepo.GetSurveyByID(ctx, existing.ID)
	}
	return existing, nil
}

func (svc *service) upsertDesignRule(ctx context.Context, cohortID, surveyID int, sched DesignSchedule, now time.Time) error {
	fresh := designRule(cohortID, surveyID, sched, now)

	existing, err := svc.repo.GetRuleBySlug(ctx, cohortID, sched.Slug)
	if err == ErrNotFound {
		_, err = svc.repo.CreateRule(ctx, fresh)
		return err
	}
	if err != nil {
		return err
	}

	fresh.ID = existing.ID
	fresh.CreatedAt = existing.CreatedAt
	_, err = svc.repo.UpdateRule(ctx, fresh)
	return err
}

// cleanupRemovedRules deletes the cohort's rules that dropped out of the
// design. Rules with recorded submissions stay: completions reference the
// slug and history must survive a redesign.
func (svc *service) cleanupRemovedRules(ctx context.Context, cohortID int, kept map[string]bool) error {
	rules, err := svc.repo.QueryCohortRules(ctx, cohortID)
	if err != nil {
		return err
	}

	var removable []int
	for _, r := range rules {
		if kept[r.Slug] {
			continue
		}
		has, err := svc.surveyRepo.HasRuleSubmissions(ctx, cohortID, r.Slug)
		if err != nil {
			return err
		}
		if has {
			svc.logger.Warn(fmt.Sprintf("cohort %d: keeping removed rule %q, it has submissions", cohortID, r.Slug))
			continue
		}
		removable = append(removable, r.ID)
	}
	if len(removable) == 0 {
		return nil
	}
	return svc.repo.DeleteRulesByID(ctx, removable...)
}

// cleanupRemovedSurveys deletes the cohort's surveys that dropped out of
// the design, unless a rule still references them or submissions exist.
func (svc *service) cleanupRemovedSurveys(ctx context.Context, cohortID int, kept map[string]survey.Survey) error {
	all, err := svc.surveyRepo.QuerySurveysBySlugPrefix(ctx, cohortSlugPrefix(cohortID))
	if err != nil {
		return err
	}
	keptIDs := make(map[int]bool, len(kept))
	for _, svy := range kept {
		keptIDs[svy.ID] = true
	}

	var removable []int
	for _, svy := range all {
		if keptIDs[svy.ID] {
			continue
		}
		refs, err := svc.repo.QueryRulesBySurveyID(ctx, svy.ID)
		if err != nil {
			return err
		}
		if len(refs) > 0 {
			continue
		}
		has, err := svc.surveyRepo.HasSubmissions(ctx, svy.ID)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		removable = append(removable, svy.ID)
	}
	if len(removable) == 0 {
		return nil
	}
	return svc.surveyRepo.DeleteSurveysByID(ctx, removable...)
}

// ExportDesign reconstructs the portable document from a stored cohort.
// Internal survey ids come back by stripping the cohort's slug prefix.
func (svc *service) ExportDesign(ctx context.Context, cohortID int) (Design, error) {
	c, err := svc.repo.GetCohortByID(ctx, cohortID)
	if err != nil {
		return Design{}, err
	}
	rules, err := svc.repo.QueryCohortRules(ctx, cohortID)
	if err != nil {
		return Design{}, err
	}
	surveys, err := svc.surveyRepo.QuerySurveysBySlugPrefix(ctx, cohortSlugPrefix(cohortID))
	if err != nil {
		return Design{}, err
	}

	d := Design{
		Name:              c.Name,
		IsPaid:            c.IsPaid,
		MinimumPriceCents: c.MinimumPriceCents,
		MaxSeats:          c.MaxSeats,
		Dates: DesignDates{
			EnrollStart: c.EnrollmentStartDate,
			EnrollEnd:   c.EnrollmentEndDate,
			CohortStart: c.StartDate,
			CohortEnd:   c.EndDate,
		},
	}

	internalIDs := make(map[int]string, len(surveys))
	for _, svy := range surveys {
		internalID := strings.TrimPrefix(svy.Slug, cohortSlugPrefix(cohortID))
		internalIDs[svy.ID] = internalID
		d.Surveys = append(d.Surveys, exportSurvey(internalID, svy))
	}
	for _, r := range rules {
		d.Schedules = append(d.Schedules, exportSchedule(internalIDs[r.SurveyID], r))
	}
	if c.OnboardingSurveyID.Valid {
		d.OnboardingSurvey = internalIDs[c.OnboardingSurveyID.Int]
	}
	return d, nil
}

func designCohort(d Design, nameOverride string) Cohort {
	name := d.Name
	if nameOverride != "" {
		name = nameOverride
	}
	return Cohort{
		Name:                name,
		StartDate:           d.Dates.CohortStart,
		EndDate:             d.Dates.CohortEnd,
		EnrollmentStartDate: d.Dates.EnrollStart,
		EnrollmentEndDate:   d.Dates.EnrollEnd,
		IsPaid:              d.IsPaid,
		MinimumPriceCents:   d.MinimumPriceCents,
		MaxSeats:            d.MaxSeats,
		IsActive:            true,
	}
}

func cohortSlugPrefix(cohortID int) string {
	return fmt.Sprintf("%d_", cohortID)
}

func surveySlug(cohortID int, internalID string) string {
	return cohortSlugPrefix(cohortID) + internalID
}

func designSurvey(cohortID int, ds DesignSurvey, now time.Time) survey.Survey {
	svy := survey.Survey{
		Slug:                 surveySlug(cohortID, ds.ID),
		Name:                 ds.Name,
		Description:          ds.Description,
		TitleTemplate:        ds.TitleTemplate,
		EstimatedTimeMinutes: ds.EstimatedTimeMinutes,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if svy.TitleTemplate == "" {
		svy.TitleTemplate = defaultTitleTemplate
	}
	svy.Sections, svy.Questions = designQuestions(ds)
	return svy
}

// designQuestions flattens the document's sections into the storage shape.
// Question order is global across sections, as the reading order on the
// form. Pre-persist, SectionID holds the section's position; repositories
// swap in the real id.
func designQuestions(ds DesignSurvey) ([]survey.Section, []survey.Question) {
	var sections []survey.Section
	var questions []survey.Question
	order := 0
	for i, sec := range ds.Sections {
		sections = append(sections, survey.Section{
			Title:       sec.Title,
			Description: sec.Description,
			Order:       i,
		})
		for _, q := range sec.Questions {
			questions = append(questions, survey.Question{
				SectionID:  null.IntFrom(i),
				Key:        q.Key,
				Text:       q.Text,
				Type:       q.Type,
				Order:      order,
				IsRequired: q.Required(),
				Choices:    q.Choices,
			})
			order++
		}
	}
	return sections, questions
}

func designRule(cohortID, surveyID int, sched DesignSchedule, now time.Time) ScheduleRule {
	r := ScheduleRule{
		CohortID:            cohortID,
		SurveyID:            surveyID,
		Slug:                sched.Slug,
		Frequency:           sched.Frequency,
		IsCumulative:        sched.IsCumulative,
		TitleTemplate:       sched.TitleTemplate,
		DescriptionTemplate: sched.DescriptionTemplate,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	switch sched.Frequency {
	case schedule.FrequencyWeekly:
		r.DayOfWeek = null.IntFromPtr(sched.DayOfWeek)
	case schedule.FrequencyOnce:
		r.OffsetDays = null.IntFromPtr(sched.OffsetDays)
		r.OffsetFrom = null.StringFrom(string(sched.OffsetFrom))
	}
	return r
}

func surveyMetadataChanged(old, fresh survey.Survey) bool {
	return old.Name != fresh.Name ||
		old.Description != fresh.Description ||
		old.TitleTemplate != fresh.TitleTemplate ||
		old.EstimatedTimeMinutes != fresh.EstimatedTimeMinutes
}

// questionShape is the projection used to decide whether stored questions
// differ from the design: everything answer validation and rendering
// depend on, in reading order.
type questionShape struct {
	Key      string
	Text     string
	Type     survey.QuestionType
	Section  string
	Required bool
	Choices  survey.ChoiceMap
}

func questionsChanged(existing survey.Survey, ds DesignSurvey) bool {
	return !reflect.DeepEqual(storedQuestionShapes(existing), designQuestionShapes(ds))
}

func designQuestionShapes(ds DesignSurvey) []questionShape {
	var shapes []questionShape
	for _, sec := range ds.Sections {
		for _, q := range sec.Questions {
			shapes = append(shapes, questionShape{
				Key:      q.Key,
				Text:     q.Text,
				Type:     q.Type,
				Section:  sec.Title,
				Required: q.Required(),
				Choices:  normalizeChoices(q.Choices),
			})
		}
	}
	return shapes
}

func storedQuestionShapes(svy survey.Survey) []questionShape {
	titles := make(map[int]string, len(svy.Sections))
	for _, sec := range svy.Sections {
		titles[sec.ID] = sec.Title
	}
	var shapes []questionShape
	for _, q := range svy.Questions {
		section := ""
		if q.SectionID.Valid {
			section = titles[q.SectionID.Int]
		}
		shapes = append(shapes, questionShape{
			Key:      q.Key,
			Text:     q.Text,
			Type:     q.Type,
			Section:  section,
			Required: q.IsRequired,
			Choices:  normalizeChoices(q.Choices),
		})
	}
	return shapes
}

func normalizeChoices(c survey.ChoiceMap) survey.ChoiceMap {
	if len(c) == 0 {
		return nil
	}
	return c
}

func exportSurvey(internalID string, svy survey.Survey) DesignSurvey {
	ds := DesignSurvey{
		ID:                   internalID,
		Name:                 svy.Name,
		Description:          svy.Description,
		TitleTemplate:        svy.TitleTemplate,
		EstimatedTimeMinutes: svy.EstimatedTimeMinutes,
	}
	for _, sec := range svy.Sections {
		dsec := DesignSection{Title: sec.Title, Description: sec.Description}
		for _, q := range svy.Questions {
			if !q.SectionID.Valid || q.SectionID.Int != sec.ID {
				continue
			}
			req := q.IsRequired
			dsec.Questions = append(dsec.Questions, DesignQuestion{
				Key:        q.Key,
				Text:       q.Text,
				Type:       q.Type,
				IsRequired: &req,
				Choices:    q.Choices,
			})
		}
		ds.Sections = append(ds.Sections, dsec)
	}
	return ds
}

func exportSchedule(internalID string, r ScheduleRule) DesignSchedule {
	sched := DesignSchedule{
		Slug:                r.Slug,
		SurveyID:            internalID,
		Frequency:           r.Frequency,
		IsCumulative:        r.IsCumulative,
		TitleTemplate:       r.TitleTemplate,
		DescriptionTemplate: r.DescriptionTemplate,
	}
	switch r.Frequency {
	case schedule.FrequencyWeekly:
		sched.DayOfWeek = r.DayOfWeek.Ptr()
	case schedule.FrequencyOnce:
		sched.OffsetDays = r.OffsetDays.Ptr()
		if r.OffsetFrom.Valid {
			sched.OffsetFrom = schedule.ReferencePoint(r.OffsetFrom.String)
		}
	}
	return sched
}
