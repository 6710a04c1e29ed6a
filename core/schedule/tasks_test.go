package schedule

import (
	"fmt"
	"reflect"
	"testing"
)

type logRecorder struct {
	warnings []string
}

func (l *logRecorder) Warn(msg string, args ...interface{}) {
	l.warnings = append(l.warnings, fmt.Sprintf(msg, args...))
}

func taskKeys(tasks []Task) []CompletionKey {
	keys := make([]CompletionKey, len(tasks))
	for i, task := range tasks {
		keys[i] = task.Key()
	}
	return keys
}

// Four rules engineered to fall due on the same day must come back in a
// fixed order: opening one-off, daily, weekly, closing one-off.
func TestUserTasksOrdering(t *testing.T) {
	win := testWindow()
	p := Planner{
		Window: win,
		Rules: []Rule{
			{Slug: "exit", SurveyName: "Exit Survey", Recurrence: Once{OffsetDays: -25, From: CohortEnd}},
			{Slug: "weekly-reflection", SurveyName: "Weekly Reflection", Recurrence: Weekly{Day: Friday}},
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{}},
			{Slug: "entry", SurveyName: "Entry Survey", Recurrence: Once{OffsetDays: 4, From: CohortStart}},
		},
	}

	// Sep 5 2025 is the first friday of the window.
	got := p.UserTasks(nil, MustParseDate("2025-09-05"))

	want := []CompletionKey{
		{RuleSlug: "entry", InstanceID: 0},
		{RuleSlug: "daily-checkin", InstanceID: 4},
		{RuleSlug: "weekly-reflection", InstanceID: 0},
		{RuleSlug: "exit", InstanceID: 0},
	}
	if !reflect.DeepEqual(taskKeys(got), want) {
		t.Errorf("UserTasks() keys = %v, want %v", taskKeys(got), want)
	}
	for _, task := range got {
		if task.DueDate != MustParseDate("2025-09-05") {
			t.Errorf("task %v: due %v, want 2025-09-05", task.Key(), task.DueDate)
		}
	}
}

func TestUserTasksInterleavesByDate(t *testing.T) {
	win := testWindow()
	p := Planner{
		Window: win,
		Rules: []Rule{
			{Slug: "weekly-reflection", SurveyName: "Weekly Reflection", Recurrence: Weekly{Day: Sunday, Cumulative: true}},
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{Cumulative: true}},
		},
	}

	got := p.UserTasks(nil, MustParseDate("2025-09-08"))

	want := []CompletionKey{
		{RuleSlug: "daily-checkin", InstanceID: 0},
		{RuleSlug: "daily-checkin", InstanceID: 1},
		{RuleSlug: "daily-checkin", InstanceID: 2},
		{RuleSlug: "daily-checkin", InstanceID: 3},
		{RuleSlug: "daily-checkin", InstanceID: 4},
		{RuleSlug: "daily-checkin", InstanceID: 5},
		{RuleSlug: "daily-checkin", InstanceID: 6},
		{RuleSlug: "weekly-reflection", InstanceID: 0},
		{RuleSlug: "daily-checkin", InstanceID: 7},
	}
	if !reflect.DeepEqual(taskKeys(got), want) {
		t.Errorf("UserTasks() keys = %v, want %v", taskKeys(got), want)
	}
}

func TestUserTasksFiltersCompleted(t *testing.T) {
	win := testWindow()
	p := Planner{
		Window: win,
		Rules: []Rule{
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{Cumulative: true}},
		},
	}

	completed := NewCompletionSet(
		CompletionKey{RuleSlug: "daily-checkin", InstanceID: 0},
		CompletionKey{RuleSlug: "daily-checkin", InstanceID: 2},
	)
	got := p.UserTasks(completed, MustParseDate("2025-09-04"))

	want := []CompletionKey{
		{RuleSlug: "daily-checkin", InstanceID: 1},
		{RuleSlug: "daily-checkin", InstanceID: 3},
	}
	if !reflect.DeepEqual(taskKeys(got), want) {
		t.Errorf("UserTasks() keys = %v, want %v", taskKeys(got), want)
	}
}

// A completion recorded by rule and instance keeps filtering the same task
// after the cohort dates shift.
func TestUserTasksCompletionSurvivesDateEdits(t *testing.T) {
	rules := []Rule{{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{Cumulative: true}}}
	completed := NewCompletionSet(CompletionKey{RuleSlug: "daily-checkin", InstanceID: 1})

	before := Planner{Window: testWindow(), Rules: rules}
	for _, task := range before.UserTasks(completed, MustParseDate("2025-09-04")) {
		if task.InstanceID == 1 {
			t.Fatalf("instance 1 not filtered before date edit")
		}
	}

	// start moves three days later: instance 1 now falls due Sep 5
	shifted := testWindow()
	shifted.Start = MustParseDate("2025-09-04")
	after := Planner{Window: shifted, Rules: rules}
	for _, task := range after.UserTasks(completed, MustParseDate("2025-09-07")) {
		if task.InstanceID == 1 {
			t.Fatalf("instance 1 not filtered after date edit")
		}
	}
}

func TestUserTasksSkipsBrokenRules(t *testing.T) {
	logger := &logRecorder{}
	p := Planner{
		Window: testWindow(),
		Rules: []Rule{
			{Slug: "broken", SurveyName: "Broken"},
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{}},
		},
		Logger: logger,
	}

	got := p.UserTasks(nil, MustParseDate("2025-09-05"))

	if len(got) != 1 || got[0].RuleSlug != "daily-checkin" {
		t.Fatalf("UserTasks() = %v, want single daily-checkin task", taskKeys(got))
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %v, want one entry", logger.warnings)
	}
}

func TestUserTasksSkipsMissingEnrollmentDates(t *testing.T) {
	logger := &logRecorder{}
	p := Planner{
		Window: Window{Start: MustParseDate("2025-09-01"), End: MustParseDate("2025-09-30")},
		Rules: []Rule{
			{Slug: "entry", SurveyName: "Entry Survey", Recurrence: Once{From: EnrollStart}},
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{}},
		},
		Logger: logger,
	}

	got := p.UserTasks(nil, MustParseDate("2025-09-05"))

	if len(got) != 1 || got[0].RuleSlug != "daily-checkin" {
		t.Fatalf("UserTasks() = %v, want single daily-checkin task", taskKeys(got))
	}
	if len(logger.warnings) != 1 {
		t.Errorf("warnings = %v, want one entry", logger.warnings)
	}
}

func TestUserTasksRendersTemplates(t *testing.T) {
	p := Planner{
		Window: testWindow(),
		Rules: []Rule{
			{
				Slug:                 "weekly-reflection",
				SurveyName:           "Weekly Reflection",
				SurveyDescription:    "Look back at your week.",
				EstimatedTimeMinutes: 10,
				Recurrence:           Weekly{Day: Sunday},
				Title:                MustTaskTemplate("Week {week_number}: {survey_name}"),
				Description:          MustTaskTemplate("Due {due_date}, about {estimated_time_minutes} minutes."),
			},
			{
				Slug:       "daily-checkin",
				SurveyName: "Daily Check-in",
				Recurrence: Daily{},
			},
		},
	}

	got := p.UserTasks(nil, MustParseDate("2025-09-14"))
	if len(got) != 2 {
		t.Fatalf("UserTasks() returned %d tasks, want 2", len(got))
	}

	daily, weekly := got[0], got[1]
	if daily.Title != "Daily Check-in" || daily.Description != "" {
		t.Errorf("untemplated task = %q / %q, want survey name and empty description", daily.Title, daily.Description)
	}
	if weekly.Title != "Week 2: Weekly Reflection" {
		t.Errorf("rendered title = %q", weekly.Title)
	}
	if weekly.Description != "Due 2025-09-14, about 10 minutes." {
		t.Errorf("rendered description = %q", weekly.Description)
	}
	if weekly.EstimatedTimeMinutes != 10 {
		t.Errorf("EstimatedTimeMinutes = %d, want 10", weekly.EstimatedTimeMinutes)
	}
}

func TestUserTasksBuildsURLs(t *testing.T) {
	p := Planner{
		Window: testWindow(),
		Rules: []Rule{
			{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{}},
		},
		URLFor: func(slug string, instanceID int) string {
			return fmt.Sprintf("/v1/cohorts/42/tasks/%s/%d", slug, instanceID)
		},
	}

	got := p.UserTasks(nil, MustParseDate("2025-09-05"))
	if len(got) != 1 {
		t.Fatalf("UserTasks() returned %d tasks, want 1", len(got))
	}
	if got[0].URL != "/v1/cohorts/42/tasks/daily-checkin/4" {
		t.Errorf("URL = %q", got[0].URL)
	}
}

func TestCompletionSet(t *testing.T) {
	set := NewCompletionSet(CompletionKey{RuleSlug: "entry", InstanceID: 0})
	set.Add(CompletionKey{RuleSlug: "daily-checkin", InstanceID: 3})

	if !set.Has(CompletionKey{RuleSlug: "entry", InstanceID: 0}) {
		t.Error("missing entry key")
	}
	if set.Has(CompletionKey{RuleSlug: "entry", InstanceID: 1}) {
		t.Error("instance id should be part of the key")
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}

	var nilSet CompletionSet
	if nilSet.Has(CompletionKey{RuleSlug: "entry"}) {
		t.Error("nil set should report nothing completed")
	}
}
