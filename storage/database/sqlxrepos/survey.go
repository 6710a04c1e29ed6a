package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
)

const (
	surveyColumns = `id, slug, name, description, title_template, estimated_time_minutes, created_at, updated_at`

	sectionColumns = `id, survey_id, title, description, position`

	questionColumns = `id, survey_id, section_id, key, text, type, position, is_required, choices`

	submissionColumns = `id, survey_id, user_id, cohort_id, rule_slug, instance_id, due_date, completed_at`
)

type surveyRow struct {
	ID                   int       `db:"id"`
	Slug                 string    `db:"slug"`
	Name                 string    `db:"name"`
	Description          string    `db:"description"`
	TitleTemplate        string    `db:"title_template"`
	EstimatedTimeMinutes null.Int  `db:"estimated_time_minutes"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func newSurveyRow(svy survey.Survey) surveyRow {
	return surveyRow{
		ID:                   svy.ID,
		Slug:                 svy.Slug,
		Name:                 svy.Name,
		Description:          svy.Description,
		TitleTemplate:        svy.TitleTemplate,
		EstimatedTimeMinutes: svy.EstimatedTimeMinutes,
		CreatedAt:            svy.CreatedAt,
		UpdatedAt:            svy.UpdatedAt,
	}
}

func (row surveyRow) toSurvey() survey.Survey {
	return survey.Survey{
		ID:                   row.ID,
		Slug:                 row.Slug,
		Name:                 row.Name,
		Description:          row.Description,
		TitleTemplate:        row.TitleTemplate,
		EstimatedTimeMinutes: row.EstimatedTimeMinutes,
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
}

type sectionRow struct {
	ID          int    `db:"id"`
	SurveyID    int    `db:"survey_id"`
	Title       string `db:"title"`
	Description string `db:"description"`
	Position    int    `db:"position"`
}

type questionRow struct {
	ID         int                 `db:"id"`
	SurveyID   int                 `db:"survey_id"`
	SectionID  null.Int            `db:"section_id"`
	Key        string              `db:"key"`
	Text       string              `db:"text"`
	Type       survey.QuestionType `db:"type"`
	Position   int                 `db:"position"`
	IsRequired bool                `db:"is_required"`
	Choices    survey.ChoiceMap    `db:"choices"`
}

func (row questionRow) toQuestion() survey.Question {
	return survey.Question{
		ID:         row.ID,
		SurveyID:   row.SurveyID,
		SectionID:  row.SectionID,
		Key:        row.Key,
		Text:       row.Text,
		Type:       row.Type,
		Order:      row.Position,
		IsRequired: row.IsRequired,
		Choices:    row.Choices,
	}
}

type submissionRow struct {
	ID          uuid.UUID     `db:"id"`
	SurveyID    int           `db:"survey_id"`
	UserID      int           `db:"user_id"`
	CohortID    int           `db:"cohort_id"`
	RuleSlug    string        `db:"rule_slug"`
	InstanceID  int           `db:"instance_id"`
	DueDate     schedule.Date `db:"due_date"`
	CompletedAt time.Time     `db:"completed_at"`
}

func newSubmissionRow(sub survey.Submission) submissionRow {
	return submissionRow{
		ID:          sub.ID,
		SurveyID:    sub.SurveyID,
		UserID:      sub.UserID,
		CohortID:    sub.CohortID,
		RuleSlug:    sub.RuleSlug,
		InstanceID:  sub.InstanceID,
		DueDate:     sub.DueDate,
		CompletedAt: sub.CompletedAt,
	}
}

func (row submissionRow) toSubmission() survey.Submission {
	return survey.Submission{
		ID:          row.ID,
		SurveyID:    row.SurveyID,
		UserID:      row.UserID,
		CohortID:    row.CohortID,
		RuleSlug:    row.RuleSlug,
		InstanceID:  row.InstanceID,
		DueDate:     row.DueDate,
		CompletedAt: row.CompletedAt.UTC(),
	}
}

type answerRow struct {
	SubmissionID uuid.UUID `db:"submission_id"`
	QuestionKey  string    `db:"question_key"`
	Value        string    `db:"value"`
}

type surveyRepository struct {
	db *sqlx.DB
}

var _ survey.Repository = (*surveyRepository)(nil) // interface compliance check

func NewSurveyRepository(db *sqlx.DB) survey.Repository {
	return &surveyRepository{db: db}
}

func (repo *surveyRepository) CreateSurvey(ctx context.Context, svy survey.Survey) (survey.Survey, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return survey.Survey{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
	INSERT INTO surveys (slug, name, description, title_template, estimated_time_minutes, created_at, updated_at)
	VALUES (:slug, :name, :description, :title_template, :estimated_time_minutes, :created_at, :updated_at)
	RETURNING id`

	row := newSurveyRow(svy)
	if err := txNamedGet(ctx, tx, &row.ID, query, row); err != nil {
		return survey.Survey{}, errors.Wrap(err, "creating survey")
	}
	svy.ID = row.ID

	if err := insertSurveyChildren(ctx, tx, svy.ID, svy.Sections, svy.Questions); err != nil {
		return survey.Survey{}, err
	}
	if err := tx.Commit(); err != nil {
		return survey.Survey{}, errors.Wrap(err, "committing survey")
	}
	return svy, nil
}

// insertSurveyChildren persists sections and questions, assigning ids in
// place and swapping the questions' positional section references for real
// ids.
func insertSurveyChildren(ctx context.Context, tx *sqlx.Tx, surveyID int, sections []survey.Section, questions []survey.Question) error {
	const sectionQuery = `
	INSERT INTO survey_sections (survey_id, title, description, position)
	VALUES (:survey_id, :title, :description, :position)
	RETURNING id`

	sectionStmt, err := tx.PrepareNamedContext(ctx, sectionQuery)
	if err != nil {
		return errors.Wrap(err, "preparing section insert")
	}
	defer func() { _ = sectionStmt.Close() }()

	for i := range sections {
		sections[i].SurveyID = surveyID
		row := sectionRow{
			SurveyID:    surveyID,
			Title:       sections[i].Title,
			Description: sections[i].Description,
			Position:    sections[i].Order,
		}
		if err := sectionStmt.GetContext(ctx, &sections[i].ID, row); err != nil {
			return errors.Wrap(err, "creating survey section")
		}
	}

	const questionQuery = `
	INSERT INTO survey_questions (survey_id, section_id, key, text, type, position, is_required, choices)
	VALUES (:survey_id, :section_id, :key, :text, :type, :position, :is_required, :choices)
	RETURNING id`

	questionStmt, err := tx.PrepareNamedContext(ctx, questionQuery)
	if err != nil {
		return errors.Wrap(err, "preparing question insert")
	}
	defer func() { _ = questionStmt.Close() }()

	for i := range questions {
		questions[i].SurveyID = surveyID
		if pos := questions[i].SectionID; pos.Valid && pos.Int >= 0 && pos.Int < len(sections) {
			questions[i].SectionID = null.IntFrom(sections[pos.Int].ID)
		}
		row := questionRow{
			SurveyID:   surveyID,
			SectionID:  questions[i].SectionID,
			Key:        questions[i].Key,
			Text:       questions[i].Text,
			Type:       questions[i].Type,
			Position:   questions[i].Order,
			IsRequired: questions[i].IsRequired,
			Choices:    questions[i].Choices,
		}
		if err := questionStmt.GetContext(ctx, &questions[i].ID, row); err != nil {
			return errors.Wrap(err, "creating survey question")
		}
	}
	return nil
}

// txNamedGet is namedGet against a transaction.
func txNamedGet(ctx context.Context, tx *sqlx.Tx, dest interface{}, query string, arg interface{}) error {
	stmt, err := tx.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	return stmt.GetContext(ctx, dest, arg)
}

func (repo *surveyRepository) GetSurveyByID(ctx context.Context, id int) (survey.Survey, error) {
	var row surveyRow
	query := repo.db.Rebind("SELECT " + surveyColumns + " FROM surveys WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return survey.Survey{}, survey.ErrNotFound
		}
		return survey.Survey{}, errors.Wrap(err, "getting survey")
	}
	svys := []survey.Survey{row.toSurvey()}
	if err := repo.attachChildren(ctx, svys); err != nil {
		return survey.Survey{}, err
	}
	return svys[0], nil
}

func (repo *surveyRepository) GetSurveyBySlug(ctx context.Context, slug string) (survey.Survey, error) {
	var row surveyRow
	query := repo.db.Rebind("SELECT " + surveyColumns + " FROM surveys WHERE slug = ?")
	if err := repo.db.GetContext(ctx, &row, query, slug); err != nil {
		if err == sql.ErrNoRows {
			return survey.Survey{}, survey.ErrNotFound
		}
		return survey.Survey{}, errors.Wrap(err, "getting survey by slug")
	}
	svys := []survey.Survey{row.toSurvey()}
	if err := repo.attachChildren(ctx, svys); err != nil {
		return survey.Survey{}, err
	}
	return svys[0], nil
}

func (repo *surveyRepository) QuerySurveysByID(ctx context.Context, ids ...int) ([]survey.Survey, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In("SELECT "+surveyColumns+" FROM surveys WHERE id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building survey query")
	}
	var rows []surveyRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying surveys")
	}
	return repo.surveysWithChildren(ctx, rows)
}

func (repo *surveyRepository) QuerySurveysBySlugPrefix(ctx context.Context, prefix string) ([]survey.Survey, error) {
	var rows []surveyRow
	query := repo.db.Rebind("SELECT " + surveyColumns + ` FROM surveys WHERE slug LIKE ? ESCAPE '\' ORDER BY id`)
	if err := repo.db.SelectContext(ctx, &rows, query, likePrefix(prefix)); err != nil {
		return nil, errors.Wrap(err, "querying surveys by slug prefix")
	}
	return repo.surveysWithChildren(ctx, rows)
}

func (repo *surveyRepository) surveysWithChildren(ctx context.Context, rows []surveyRow) ([]survey.Survey, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	svys := make([]survey.Survey, len(rows))
	for i, row := range rows {
		svys[i] = row.toSurvey()
	}
	if err := repo.attachChildren(ctx, svys); err != nil {
		return nil, err
	}
	return svys, nil
}

// attachChildren loads sections and questions for the given surveys in two
// batched queries.
func (repo *surveyRepository) attachChildren(ctx context.Context, svys []survey.Survey) error {
	ids := make([]int, len(svys))
	index := make(map[int]int, len(svys))
	for i, svy := range svys {
		ids[i] = svy.ID
		index[svy.ID] = i
	}

	query, args, err := sqlx.In("SELECT "+sectionColumns+" FROM survey_sections WHERE survey_id IN (?) ORDER BY survey_id, position, id", ids)
	if err != nil {
		return errors.Wrap(err, "building section query")
	}
	var secRows []sectionRow
	if err := repo.db.SelectContext(ctx, &secRows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "querying survey sections")
	}
	for _, row := range secRows {
		i := index[row.SurveyID]
		svys[i].Sections = append(svys[i].Sections, survey.Section{
			ID:          row.ID,
			SurveyID:    row.SurveyID,
			Title:       row.Title,
			Description: row.Description,
			Order:       row.Position,
		})
	}

	query, args, err = sqlx.In("SELECT "+questionColumns+" FROM survey_questions WHERE survey_id IN (?) ORDER BY survey_id, position, id", ids)
	if err != nil {
		return errors.Wrap(err, "building question query")
	}
	var qRows []questionRow
	if err := repo.db.SelectContext(ctx, &qRows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "querying survey questions")
	}
	for _, row := range qRows {
		i := index[row.SurveyID]
		svys[i].Questions = append(svys[i].Questions, row.toQuestion())
	}
	return nil
}

func (repo *surveyRepository) UpdateSurvey(ctx context.Context, svy survey.Survey) (survey.Survey, error) {
	const query = `
	UPDATE surveys SET
		slug = :slug, name = :name, description = :description, title_template = :title_template,
		estimated_time_minutes = :estimated_time_minutes, created_at = :created_at, updated_at = :updated_at
	WHERE id = :id`

	n, err := namedExecAffected(ctx, repo.db, query, newSurveyRow(svy))
	if err != nil {
		return survey.Survey{}, errors.Wrap(err, "updating survey")
	}
	if n == 0 {
		return survey.Survey{}, survey.ErrNotFound
	}
	return svy, nil
}

func (repo *surveyRepository) ReplaceSurveyQuestions(ctx context.Context, surveyID int, sections []survey.Section, questions []survey.Question) error {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	query := tx.Rebind("SELECT EXISTS (SELECT 1 FROM surveys WHERE id = ?)")
	if err := tx.GetContext(ctx, &exists, query, surveyID); err != nil {
		return errors.Wrap(err, "checking survey")
	}
	if !exists {
		return survey.ErrNotFound
	}

	// questions first: some carry no section and would survive the cascade
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM survey_questions WHERE survey_id = ?"), surveyID); err != nil {
		return errors.Wrap(err, "deleting survey questions")
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM survey_sections WHERE survey_id = ?"), surveyID); err != nil {
		return errors.Wrap(err, "deleting survey sections")
	}

	if err := insertSurveyChildren(ctx, tx, surveyID, sections, questions); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing question replacement")
}

func (repo *surveyRepository) DeleteSurveysByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM surveys WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building survey delete query")
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting surveys")
	}
	return nil
}

func (repo *surveyRepository) HasSubmissions(ctx context.Context, surveyID int) (bool, error) {
	var exists bool
	query := repo.db.Rebind("SELECT EXISTS (SELECT 1 FROM submissions WHERE survey_id = ?)")
	if err := repo.db.GetContext(ctx, &exists, query, surveyID); err != nil {
		return false, errors.Wrap(err, "checking submissions")
	}
	return exists, nil
}

func (repo *surveyRepository) HasRuleSubmissions(ctx context.Context, cohortID int, ruleSlug string) (bool, error) {
	var exists bool
	query := repo.db.Rebind("SELECT EXISTS (SELECT 1 FROM submissions WHERE cohort_id = ? AND rule_slug = ?)")
	if err := repo.db.GetContext(ctx, &exists, query, cohortID, ruleSlug); err != nil {
		return false, errors.Wrap(err, "checking rule submissions")
	}
	return exists, nil
}

func (repo *surveyRepository) CreateSubmission(ctx context.Context, sub survey.Submission) (survey.Submission, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return survey.Submission{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	const query = `
	INSERT INTO submissions (id, survey_id, user_id, cohort_id, rule_slug, instance_id, due_date, completed_at)
	VALUES (:id, :survey_id, :user_id, :cohort_id, :rule_slug, :instance_id, :due_date, :completed_at)`

	if _, err := tx.NamedExecContext(ctx, query, newSubmissionRow(sub)); err != nil {
		if isUniqueViolation(err) {
			return survey.Submission{}, survey.ErrDuplicateSubmission
		}
		return survey.Submission{}, errors.Wrap(err, "creating submission")
	}

	const answerQuery = `
	INSERT INTO submission_answers (submission_id, question_key, value)
	VALUES (:submission_id, :question_key, :value)`

	stmt, err := tx.PrepareNamedContext(ctx, answerQuery)
	if err != nil {
		return survey.Submission{}, errors.Wrap(err, "preparing answer insert")
	}
	defer func() { _ = stmt.Close() }()
	for _, ans := range sub.Answers {
		row := answerRow{SubmissionID: sub.ID, QuestionKey: ans.QuestionKey, Value: ans.Value}
		if _, err := stmt.ExecContext(ctx, row); err != nil {
			return survey.Submission{}, errors.Wrap(err, "creating answer")
		}
	}

	if err := tx.Commit(); err != nil {
		return survey.Submission{}, errors.Wrap(err, "committing submission")
	}
	return sub, nil
}

func (repo *surveyRepository) QueryUserSubmissions(ctx context.Context, userID, cohortID int) ([]survey.Submission, error) {
	var rows []submissionRow
	query := repo.db.Rebind("SELECT " + submissionColumns + " FROM submissions WHERE user_id = ? AND cohort_id = ? ORDER BY completed_at DESC, id")
	if err := repo.db.SelectContext(ctx, &rows, query, userID, cohortID); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	subs := make([]survey.Submission, len(rows))
	ids := make([]uuid.UUID, len(rows))
	index := make(map[uuid.UUID]int, len(rows))
	for i, row := range rows {
		subs[i] = row.toSubmission()
		ids[i] = row.ID
		index[row.ID] = i
	}

	ansQuery, args, err := sqlx.In("SELECT submission_id, question_key, value FROM submission_answers WHERE submission_id IN (?) ORDER BY id", ids)
	if err != nil {
		return nil, errors.Wrap(err, "building answer query")
	}
	var ansRows []answerRow
	if err := repo.db.SelectContext(ctx, &ansRows, repo.db.Rebind(ansQuery), args...); err != nil {
		return nil, errors.Wrap(err, "querying answers")
	}
	for _, row := range ansRows {
		i := index[row.SubmissionID]
		subs[i].Answers = append(subs[i].Answers, survey.Answer{
			SubmissionID: row.SubmissionID,
			QuestionKey:  row.QuestionKey,
			Value:        row.Value,
		})
	}
	return subs, nil
}

func (repo *surveyRepository) QueryCompletedKeys(ctx context.Context, userID, cohortID int) ([]schedule.CompletionKey, error) {
	type keyRow struct {
		RuleSlug   string `db:"rule_slug"`
		InstanceID int    `db:"instance_id"`
	}
	var rows []keyRow
	query := repo.db.Rebind("SELECT rule_slug, instance_id FROM submissions WHERE user_id = ? AND cohort_id = ?")
	if err := repo.db.SelectContext(ctx, &rows, query, userID, cohortID); err != nil {
		return nil, errors.Wrap(err, "querying completed keys")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	keys := make([]schedule.CompletionKey, len(rows))
	for i, row := range rows {
		keys[i] = schedule.CompletionKey{RuleSlug: row.RuleSlug, InstanceID: row.InstanceID}
	}
	return keys, nil
}
