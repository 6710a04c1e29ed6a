package schedule

import (
	"testing"
	"time"
)

func TestParseTaskTemplate(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "plain text", raw: "Complete your entry survey"},
		{name: "all placeholders", raw: "{survey_name} due {due_date} (week {week_number}, ~{estimated_time_minutes} min)"},
		{name: "escaped braces", raw: "literal {{braces}} stay"},
		{name: "empty", raw: ""},
		{name: "unknown placeholder", raw: "Day {day}", wantErr: `template "Day {day}": unknown placeholder "day"`},
		{name: "spaced placeholder", raw: "{ survey_name }", wantErr: `template "{ survey_name }": unknown placeholder " survey_name "`},
		{name: "unclosed brace", raw: "Day {week_number", wantErr: `template "Day {week_number": unclosed '{'`},
		{name: "stray close", raw: "week} done", wantErr: `template "week} done": single '}' not allowed`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTaskTemplate(tt.raw)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("ParseTaskTemplate() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ParseTaskTemplate() expected error")
			}
			if _, ok := err.(*TemplateError); !ok {
				t.Errorf("ParseTaskTemplate() error type = %T, want *TemplateError", err)
			}
			if err.Error() != tt.wantErr {
				t.Errorf("ParseTaskTemplate() error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTaskTemplateRender(t *testing.T) {
	ctx := TemplateContext{
		SurveyName:           "Daily Check-in",
		DueDate:              NewDate(2025, time.September, 15),
		WeekNumber:           3,
		EstimatedTimeMinutes: 5,
	}

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "plain", raw: "Reflect on your day", want: "Reflect on your day"},
		{name: "survey name", raw: "{survey_name}", want: "Daily Check-in"},
		{name: "due date", raw: "Due {due_date}", want: "Due 2025-09-15"},
		{name: "week number", raw: "Week {week_number} Reflection", want: "Week 3 Reflection"},
		{name: "estimated time", raw: "~{estimated_time_minutes} min", want: "~5 min"},
		{
			name: "combined",
			raw:  "{survey_name} ({due_date}): {{week {week_number}}}",
			want: "Daily Check-in (2025-09-15): {week 3}",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MustTaskTemplate(tt.raw).Render(ctx); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTaskTemplateZero(t *testing.T) {
	var tmpl TaskTemplate
	if !tmpl.IsZero() {
		t.Error("zero template should report IsZero")
	}
	if got := tmpl.Render(TemplateContext{SurveyName: "x"}); got != "" {
		t.Errorf("zero template Render() = %q, want empty", got)
	}
}
