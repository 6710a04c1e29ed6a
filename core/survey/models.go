package survey

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
)

type QuestionType string

const (
	QuestionText     QuestionType = "text"
	QuestionTextarea QuestionType = "textarea"
	QuestionInteger  QuestionType = "integer"
	QuestionDecimal  QuestionType = "decimal"
	QuestionRadio    QuestionType = "radio"
	QuestionInfo     QuestionType = "info" // display only, never answered
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionText, QuestionTextarea, QuestionInteger, QuestionDecimal, QuestionRadio, QuestionInfo:
		return true
	}
	return false
}

// ChoiceMap holds the selectable values of a radio question, keyed by stored
// value ({"1": "Low", "5": "High"}). It is persisted as JSON in a text column.
type ChoiceMap map[string]string

var (
	_ driver.Valuer = (ChoiceMap)(nil)
	_ sql.Scanner   = (*ChoiceMap)(nil)
)

func (m ChoiceMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *ChoiceMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	}
	return errors.Errorf("cannot scan %T into ChoiceMap", src)
}

type (
	// Survey is a named set of questions ("Entry Survey", "Daily Check-in").
	// Surveys created by a cohort design import are cohort-scoped; their slug
	// carries the owning cohort id as a "{cohortID}_" prefix.
	Survey struct {
		ID                   int        `json:"id"`
		Slug                 string     `json:"slug"`
		Name                 string     `json:"name"`
		Description          string     `json:"description"`
		TitleTemplate        string     `json:"title_template"`
		EstimatedTimeMinutes null.Int   `json:"estimated_time_minutes"`
		Sections             []Section  `json:"sections,omitempty"`
		Questions            []Question `json:"questions,omitempty"`
		CreatedAt            time.Time  `json:"created_at"`
		UpdatedAt            time.Time  `json:"updated_at"`
	}

	// Section groups questions visually; Order positions it in the page.
	Section struct {
		ID          int    `json:"id"`
		SurveyID    int    `json:"-"`
		Title       string `json:"title"`
		Description string `json:"description"`
		Order       int    `json:"order"`
	}

	Question struct {
		ID       int `json:"id"`
		SurveyID int `json:"-"`
		// SectionID names the owning section. On a survey that has not
		// been persisted yet it holds the section's position instead;
		// repositories swap in the real id.
		SectionID  null.Int     `json:"section_id,omitempty"`
		Key        string       `json:"key"`
		Text       string       `json:"text"`
		Type       QuestionType `json:"type"`
		Order      int          `json:"order"`
		IsRequired bool         `json:"is_required"`
		Choices    ChoiceMap    `json:"choices,omitempty"`
	}
)

// Title is the display title, falling back to the survey name when no
// template was configured.
func (s Survey) Title() string {
	if s.TitleTemplate != "" {
		return s.TitleTemplate
	}
	return s.Name
}

// Question looks a question up by key.
func (s Survey) Question(key string) (Question, bool) {
	for _, q := range s.Questions {
		if q.Key == key {
			return q, true
		}
	}
	return Question{}, false
}

// ValidateAnswers checks submitted answers against the survey's questions.
// Errors come back as a core.ValidationError with one field error per
// offending question key. Unknown answer keys are ignored; info questions
// never expect an answer.
func (s Survey) ValidateAnswers(answers map[string]string) error {
	var flds []core.FieldError
	fail := func(key, msg string) {
		flds = append(flds, core.FieldError{Field: key, Error: msg})
	}

	for _, q := range s.Questions {
		if q.Type == QuestionInfo {
			continue
		}
		val := strings.TrimSpace(answers[q.Key])
		if val == "" {
			if q.IsRequired {
				fail(q.Key, "this question is required")
			}
			continue
		}
		switch q.Type {
		case QuestionInteger:
			if _, err := strconv.Atoi(val); err != nil {
				fail(q.Key, "enter a whole number")
			}
		case QuestionDecimal:
			if _, err := strconv.ParseFloat(val, 64); err != nil {
				fail(q.Key, "enter a number")
			}
		case QuestionRadio:
			if _, ok := q.Choices[val]; !ok {
				fail(q.Key, "select a valid choice")
			}
		}
	}

	if len(flds) > 0 {
		return core.NewValidationError(errors.New("invalid answers"), flds...)
	}
	return nil
}

type (
	// Submission records one completed task instance. The (RuleSlug,
	// InstanceID) pair is the completion identity; DueDate is kept for
	// display only and never participates in identity checks.
	Submission struct {
		ID          uuid.UUID     `json:"id"`
		SurveyID    int           `json:"survey_id"`
		UserID      int           `json:"-"`
		CohortID    int           `json:"-"`
		RuleSlug    string        `json:"rule_slug"`
		InstanceID  int           `json:"instance_id"`
		DueDate     schedule.Date `json:"due_date"`
		CompletedAt time.Time     `json:"completed_at"`
		Answers     []Answer      `json:"answers,omitempty"`
	}

	Answer struct {
		SubmissionID uuid.UUID `json:"-"`
		QuestionKey  string    `json:"question_key"`
		Value        string    `json:"value"`
	}

	// NewSubmission carries one task submission; everything but the answers
	// is resolved server-side from the URL and the authenticated user.
	NewSubmission struct {
		UserID     int               `json:"-"`
		CohortID   int               `json:"-"`
		SurveyID   int               `json:"-"`
		RuleSlug   string            `json:"-"`
		InstanceID int               `json:"-"`
		DueDate    schedule.Date     `json:"-"`
		Answers    map[string]string `json:"answers"`
	}
)

func (s Submission) Key() schedule.CompletionKey {
	return schedule.CompletionKey{RuleSlug: s.RuleSlug, InstanceID: s.InstanceID}
}

// AnswerMap returns the answers keyed by question key.
func (s Submission) AnswerMap() map[string]string {
	m := make(map[string]string, len(s.Answers))
	for _, ans := range s.Answers {
		m[ans.QuestionKey] = ans.Value
	}
	return m
}
