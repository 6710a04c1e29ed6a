package survey

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
)

var (
	// errors
	ErrNotFound            = errors.New("survey not found")
	ErrDuplicateSubmission = errors.New("this task has already been submitted")
)

type (
	Repository interface {
		// CreateSurvey persists the survey with its nested sections and
		// questions, resolving section references by position.
		CreateSurvey(ctx context.Context, svy Survey) (Survey, error)
		GetSurveyByID(ctx context.Context, id int) (Survey, error)
		GetSurveyBySlug(ctx context.Context, slug string) (Survey, error)
		QuerySurveysByID(ctx context.Context, ids ...int) ([]Survey, error)
		// UpdateSurvey updates the survey row only; sections and questions
		// go through ReplaceSurveyQuestions.
		UpdateSurvey(ctx context.Context, svy Survey) (Survey, error)
		ReplaceSurveyQuestions(ctx context.Context, surveyID int, sections []Section, questions []Question) error
		// QuerySurveysBySlugPrefix returns the surveys whose slug starts
		// with prefix, ordered by id. Cohort-scoped surveys share a
		// "{cohortID}_" prefix, so this recovers a cohort's full survey set.
		QuerySurveysBySlugPrefix(ctx context.Context, prefix string) ([]Survey, error)
		DeleteSurveysByID(ctx context.Context, ids ...int) error
		HasSubmissions(ctx context.Context, surveyID int) (bool, error)
		HasRuleSubmissions(ctx context.Context, cohortID int, ruleSlug string) (bool, error)
		// CreateSubmission persists the submission with its nested answers.
		// A (user, cohort, rule, instance) unique violation comes back as
		// ErrDuplicateSubmission.
		CreateSubmission(ctx context.Context, sub Submission) (Submission, error)
		// QueryUserSubmissions returns the user's submissions in the cohort,
		// newest first, answers attached.
		QueryUserSubmissions(ctx context.Context, userID, cohortID int) ([]Submission, error)
		QueryCompletedKeys(ctx context.Context, userID, cohortID int) ([]schedule.CompletionKey, error)
	}

	Service interface {
		Get(ctx context.Context, id int) (Survey, error)
		GetBySlug(ctx context.Context, slug string) (Survey, error)
		CreateSubmission(ctx context.Context, ns NewSubmission) (Submission, error)
		UserSubmissions(ctx context.Context, userID, cohortID int) ([]Submission, error)
		CompletedKeys(ctx context.Context, userID, cohortID int) ([]schedule.CompletionKey, error)
	}

	service struct {
		repo   Repository
		conf   *core.Config
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:   repo,
		conf:   conf,
		logger: logger,
	}
}

func (svc *service) Get(ctx context.Context, id int) (Survey, error) {
	return svc.repo.GetSurveyByID(ctx, id)
}

func (svc *service) GetBySlug(ctx context.Context, slug string) (Survey, error) {
	return svc.repo.GetSurveyBySlug(ctx, slug)
}

// CreateSubmission validates the answers against the survey and persists the
// submission. Only answers to known, non-info questions are stored, in
// question order; blank answers to optional questions are dropped.
func (svc *service) CreateSubmission(ctx context.Context, ns NewSubmission) (Submission, error) {
	svy, err := svc.repo.GetSurveyByID(ctx, ns.SurveyID)
	if err != nil {
		return Submission{}, err
	}
	if err = svy.ValidateAnswers(ns.Answers); err != nil {
		return Submission{}, err
	}

	sub := Submission{
		ID:          uuid.New(),
		SurveyID:    svy.ID,
		UserID:      ns.UserID,
		CohortID:    ns.CohortID,
		RuleSlug:    ns.RuleSlug,
		InstanceID:  ns.InstanceID,
		DueDate:     ns.DueDate,
		CompletedAt: time.Now().UTC(),
	}
	for _, q := range svy.Questions {
		if q.Type == QuestionInfo {
			continue
		}
		val := strings.TrimSpace(ns.Answers[q.Key])
		if val == "" {
			continue
		}
		sub.Answers = append(sub.Answers, Answer{SubmissionID: sub.ID, QuestionKey: q.Key, Value: val})
	}
	return svc.repo.CreateSubmission(ctx, sub)
}

func (svc *service) UserSubmissions(ctx context.Context, userID, cohortID int) ([]Submission, error) {
	return svc.repo.QueryUserSubmissions(ctx, userID, cohortID)
}

func (svc *service) CompletedKeys(ctx context.Context, userID, cohortID int) ([]schedule.CompletionKey, error) {
	return svc.repo.QueryCompletedKeys(ctx, userID, cohortID)
}
