package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"

	"github.com/volatiletech/null/v8"
)

type surveyRepository struct {
	db *DB
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *DB) survey.Repository {
	return &surveyRepository{db: db}
}

func (repo *surveyRepository) CreateSurvey(ctx context.Context, svy survey.Survey) (survey.Survey, error) {
	repo.db.survey.Lock()
	defer repo.db.survey.Unlock()

	repo.db.survey.pkCount++
	svy.ID = repo.db.survey.pkCount
	svy.Sections, svy.Questions = repo.persistQuestions(svy.ID, svy.Sections, svy.Questions)
	repo.db.survey.table[svy.ID] = &svy
	return svy, nil
}

// persistQuestions assigns ids to sections and questions and swaps the
// positional section references for real ids. Callers hold the write lock.
func (repo *surveyRepository) persistQuestions(surveyID int, sections []survey.Section, questions []survey.Question) ([]survey.Section, []survey.Question) {
	sectionIDs := make([]int, len(sections))
	for i := range sections {
		repo.db.survey.sectionCount++
		sections[i].ID = repo.db.survey.sectionCount
		sections[i].SurveyID = surveyID
		sectionIDs[i] = sections[i].ID
	}
	for i := range questions {
		repo.db.survey.questionCount++
		questions[i].ID = repo.db.survey.questionCount
		questions[i].SurveyID = surveyID
		if pos := questions[i].SectionID; pos.Valid && pos.Int >= 0 && pos.Int < len(sectionIDs) {
			questions[i].SectionID = null.IntFrom(sectionIDs[pos.Int])
		}
	}
	return sections, questions
}

func (repo *surveyRepository) GetSurveyByID(ctx context.Context, id int) (survey.Survey, error) {
	repo.db.survey.RLock()
	defer repo.db.survey.RUnlock()

	if svy, ok := repo.db.survey.table[id]; ok {
		return *svy, nil
	}
	return survey.Survey{}, survey.ErrNotFound
}

func (repo *surveyRepository) GetSurveyBySlug(ctx context.Context, slug string) (survey.Survey, error) {
	repo.db.survey.RLock()
	defer repo.db.survey.RUnlock()

	for _, svy := range repo.db.survey.table {
		if svy.Slug == slug {
			return *svy, nil
		}
	}
	return survey.Survey{}, survey.ErrNotFound
}

func (repo *surveyRepository) QuerySurveysByID(ctx context.Context, ids ...int) ([]survey.Survey, error) {
	repo.db.survey.RLock()
	defer repo.db.survey.RUnlock()

	var surveys []survey.Survey
	for _, id := range ids {
		if svy, ok := repo.db.survey.table[id]; ok {
			surveys = append(surveys, *svy)
		}
	}
	sort.Slice(surveys, func(i, j int) bool { return surveys[i].ID < surveys[j].ID })
	return surveys, nil
}

func (repo *surveyRepository) QuerySurveysBySlugPrefix(ctx context.Context, prefix string) ([]survey.Survey, error) {
	repo.db.survey.RLock()
	defer repo.db.survey.RUnlock()

	var surveys []survey.Survey
	for _, svy := range repo.db.survey.table {
		if strings.HasPrefix(svy.Slug, prefix) {
			surveys = append(surveys, *svy)
		}
	}
	sort.Slice(surveys, func(i, j int) bool { return surveys[i].ID < surveys[j].ID })
	return surveys, nil
}

func (repo *surveyRepository) UpdateSurvey(ctx context.Context, svy survey.Survey) (survey.Survey, error) {
	repo.db.survey.Lock()
	defer repo.db.survey.Unlock()

	existing, ok := repo.db.survey.table[svy.ID]
	if !ok {
		return survey.Survey{}, survey.ErrNotFound
	}
	svy.Sections = existing.Sections
	svy.Questions = existing.Questions
	repo.db.survey.table[svy.ID] = &svy
	return svy, nil
}

func (repo *surveyRepository) ReplaceSurveyQuestions(ctx context.Context, surveyID int, sections []survey.Section, questions []survey.Question) error {
	repo.db.survey.Lock()
	defer repo.db.survey.Unlock()

	svy, ok := repo.db.survey.table[surveyID]
	if !ok {
		return survey.ErrNotFound
	}
	svy.Sections, svy.Questions = repo.persistQuestions(surveyID, sections, questions)
	return nil
}

func (repo *surveyRepository) DeleteSurveysByID(ctx context.Context, ids ...int) error {
	repo.db.survey.Lock()
	defer repo.db.survey.Unlock()
	for _, id := range ids {
		delete(repo.db.survey.table, id)
	}
	return nil
}

func (repo *surveyRepository) HasSubmissions(ctx context.Context, surveyID int) (bool, error) {
	repo.db.submission.RLock()
	defer repo.db.submission.RUnlock()

	for _, sub := range repo.db.submission.table {
		if sub.SurveyID == surveyID {
			return true, nil
		}
	}
	return false, nil
}

func (repo *surveyRepository) HasRuleSubmissions(ctx context.Context, cohortID int, ruleSlug string) (bool, error) {
	repo.db.submission.RLock()
	defer repo.db.submission.RUnlock()

	for _, sub := range repo.db.submission.table {
		if sub.CohortID == cohortID && sub.RuleSlug == ruleSlug {
			return true, nil
		}
	}
	return false, nil
}

func (repo *surveyRepository) CreateSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error) {
	repo.db.submission.Lock()
	defer repo.db.submission.Unlock()

	for _, s := range repo.db.submission.table {
		if s.UserID == sub.UserID && s.CohortID == sub.CohortID && s.Key() == sub.Key() {
			return survey.Submission{}, survey.ErrDuplicateSubmission
		}
	}
	repo.db.submission.table = append(repo.db.submission.table, &sub)
	return sub, nil
}

func (repo *surveyRepository) QueryUserSubmissions(ctx context.Context, userID, cohortID int) ([]survey.Submission, error) {
	repo.db.submission.RLock()
	defer repo.db.submission.RUnlock()

	var subs []survey.Submission
	for _, sub := range repo.db.submission.table {
		if sub.UserID == userID && sub.CohortID == cohortID {
			subs = append(subs, *sub)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[j].CompletedAt.Before(subs[i].CompletedAt) })
	return subs, nil
}

func (repo *surveyRepository) QueryCompletedKeys(ctx context.Context, userID, cohortID int) ([]schedule.CompletionKey, error) {
	repo.db.submission.RLock()
	defer repo.db.submission.RUnlock()

	var keys []schedule.CompletionKey
	for _, sub := range repo.db.submission.table {
		if sub.UserID == userID && sub.CohortID == cohortID {
			keys = append(keys, sub.Key())
		}
	}
	return keys, nil
}
