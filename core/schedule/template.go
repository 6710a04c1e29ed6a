package schedule

import (
	"strconv"
	"strings"
)

// Template placeholders. The set is closed: anything else between braces is
// rejected when the template is parsed, so bad content fails at import time
// instead of in the middle of rendering a user's task list.
const (
	phSurveyName           = "survey_name"
	phDueDate              = "due_date"
	phWeekNumber           = "week_number"
	phEstimatedTimeMinutes = "estimated_time_minutes"
)

// TaskTemplate is a parsed task title or description template. Syntax is
// "{placeholder}" with "{{" and "}}" as literal brace escapes.
type TaskTemplate struct {
	raw  string
	segs []tmplSegment
}

type tmplSegment struct {
	literal bool
	text    string // literal text, or placeholder name
}

func ParseTaskTemplate(raw string) (TaskTemplate, error) {
	var segs []tmplSegment
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			segs = append(segs, tmplSegment{literal: true, text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(raw); {
		switch raw[i] {
		case '{':
			if i+1 < len(raw) && raw[i+1] == '{' {
				lit.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(raw[i+1:], '}')
			if end < 0 {
				return TaskTemplate{}, &TemplateError{Template: raw, Detail: "unclosed '{'"}
			}
			name := raw[i+1 : i+1+end]
			switch name {
			case phSurveyName, phDueDate, phWeekNumber, phEstimatedTimeMinutes:
			default:
				return TaskTemplate{}, &TemplateError{Template: raw, Detail: "unknown placeholder " + strconv.Quote(name)}
			}
			flush()
			segs = append(segs, tmplSegment{text: name})
			i += end + 2
		case '}':
			if i+1 < len(raw) && raw[i+1] == '}' {
				lit.WriteByte('}')
				i += 2
				continue
			}
			return TaskTemplate{}, &TemplateError{Template: raw, Detail: "single '}' not allowed"}
		default:
			lit.WriteByte(raw[i])
			i++
		}
	}
	flush()
	return TaskTemplate{raw: raw, segs: segs}, nil
}

// MustTaskTemplate is ParseTaskTemplate for trusted literals; it panics on
// bad input.
func MustTaskTemplate(raw string) TaskTemplate {
	t, err := ParseTaskTemplate(raw)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TaskTemplate) IsZero() bool   { return t.raw == "" }
func (t TaskTemplate) String() string { return t.raw }

// TemplateContext carries the values available to task templates.
type TemplateContext struct {
	SurveyName           string
	DueDate              Date
	WeekNumber           int
	EstimatedTimeMinutes int
}

// Render fills the template in. Parsing already rejected unknown
// placeholders, so rendering cannot fail.
func (t TaskTemplate) Render(ctx TemplateContext) string {
	var b strings.Builder
	for _, seg := range t.segs {
		if seg.literal {
			b.WriteString(seg.text)
			continue
		}
		switch seg.text {
		case phSurveyName:
			b.WriteString(ctx.SurveyName)
		case phDueDate:
			b.WriteString(ctx.DueDate.String())
		case phWeekNumber:
			b.WriteString(strconv.Itoa(ctx.WeekNumber))
		case phEstimatedTimeMinutes:
			b.WriteString(strconv.Itoa(ctx.EstimatedTimeMinutes))
		}
	}
	return b.String()
}
