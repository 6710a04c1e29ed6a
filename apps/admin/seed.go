package main

import (
	"context"
	"fmt"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
)

// seed imports the built-in demo design, starting on the given date
// (next Monday when unset).
func (cli *commandLine) seed(start string) error {
	startDate := nextMonday(schedule.Today(time.UTC))
	if start != "" {
		var err error
		if startDate, err = schedule.ParseDate(start); err != nil {
			return err
		}
	}

	c, err := cli.chtSvc.ImportDesign(context.Background(), seedDesign(startDate), cohort.ImportOptions{})
	if err != nil {
		return err
	}
	fmt.Printf("created cohort #%d %q (%s to %s); enrollment opens %s\n",
		c.ID, c.Name, c.StartDate, c.EndDate, c.EnrollmentStartDate)
	return nil
}

func nextMonday(today schedule.Date) schedule.Date {
	days := (7 - int(today.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDays(days)
}

// seedDesign is the 30-Day Digital Declutter program: entry and exit
// surveys bracket the window, a daily check-in feeds the metrics, and a
// weekly reflection lands every Sunday. Enrollment opens two weeks before
// the start; the entry survey is due one week before.
func seedDesign(start schedule.Date) cohort.Design {
	enrollStart := start.AddDays(-14)
	optional := false
	sunday := int(schedule.Sunday)
	entryOffset, exitOffset := -7, 0

	return cohort.Design{
		Name:             fmt.Sprintf("30-Day Digital Declutter (starting %s)", start),
		OnboardingSurvey: "entry",
		Dates: cohort.DesignDates{
			EnrollStart: &enrollStart,
			CohortStart: start,
			CohortEnd:   start.AddDays(29),
		},
		Surveys: []cohort.DesignSurvey{
			{
				ID:                   "entry",
				Name:                 "Entry Survey",
				Description:          "This survey establishes your baseline. Be honest with yourself—this is for your reflection, not judgment.",
				EstimatedTimeMinutes: null.IntFrom(10),
				Sections: []cohort.DesignSection{
					{
						Title: "Current State",
						Questions: []cohort.DesignQuestion{
							{Key: "mood_1to5", Text: "How do you feel right now? (1=low, 5=high)", Type: survey.QuestionInteger},
							{Key: "baseline_screentime_min", Text: "Average daily smartphone usage (minutes)", Type: survey.QuestionInteger},
						},
					},
					{
						Title: "Your Intentions",
						Questions: []cohort.DesignQuestion{
							{Key: "intention_text", Text: "Why are you interested in participating?", Type: survey.QuestionTextarea},
							{Key: "challenge_text", Text: "What would you like to reclaim?", Type: survey.QuestionTextarea, IsRequired: &optional},
						},
					},
				},
			},
			{
				ID:                   "daily-checkin",
				Name:                 "Daily Check-in",
				Description:          "5-step daily reflection: rate your mood and digital satisfaction, note your screen time, celebrate a proud moment, acknowledge any slips, and reflect on your day.",
				EstimatedTimeMinutes: null.IntFrom(5),
				Sections: []cohort.DesignSection{
					{
						Title: "Quick Ratings",
						Questions: []cohort.DesignQuestion{
							{Key: "mood_1to5", Text: "How do you feel today? (1-5)", Type: survey.QuestionInteger},
							{Key: "digital_satisfaction_1to5", Text: "Satisfaction with your digital use today (1-5)", Type: survey.QuestionInteger},
							{Key: "screentime_min", Text: "Screen time in minutes (estimated or actual)", Type: survey.QuestionInteger},
						},
					},
					{
						Title: "Daily Reflection",
						Questions: []cohort.DesignQuestion{
							{Key: "proud_moment_text", Text: "One thing you're proud of doing that replaced scrolling", Type: survey.QuestionTextarea},
							{Key: "digital_slip_text", Text: "If you slipped into digital use in any way, how?", Type: survey.QuestionTextarea, IsRequired: &optional},
							{Key: "reflection_text", Text: "1-2 sentences about how today went", Type: survey.QuestionTextarea},
						},
					},
				},
			},
			{
				ID:                   "weekly-reflection",
				Name:                 "Weekly Reflection",
				Description:          "Weekly reflection and goal setting.",
				EstimatedTimeMinutes: null.IntFrom(10),
				Sections: []cohort.DesignSection{
					{
						Title: "Goals",
						Questions: []cohort.DesignQuestion{
							{Key: "goal_text", Text: "What's your intention for this week?", Type: survey.QuestionTextarea},
						},
					},
					{
						Title: "Looking Back",
						Questions: []cohort.DesignQuestion{
							{Key: "reflection_text", Text: "Optional reflection on last week", Type: survey.QuestionTextarea, IsRequired: &optional},
						},
					},
				},
			},
			{
				ID:                   "exit",
				Name:                 "Exit Survey",
				Description:          "You've completed the 30-day journey. Reflect on your experience—what changed, what you learned, and what comes next.",
				EstimatedTimeMinutes: null.IntFrom(10),
				Sections: []cohort.DesignSection{
					{
						Title: "Current State",
						Questions: []cohort.DesignQuestion{
							{Key: "mood_1to5", Text: "How do you feel now? (1=low, 5=high)", Type: survey.QuestionInteger},
							{Key: "final_screentime_min", Text: "Current daily screen time (minutes)", Type: survey.QuestionInteger},
						},
					},
					{
						Title: "Reflection",
						Questions: []cohort.DesignQuestion{
							{Key: "wins_text", Text: "What were your wins?", Type: survey.QuestionTextarea},
							{Key: "insight_text", Text: "What insights did you gain?", Type: survey.QuestionTextarea},
						},
					},
				},
			},
		},
		Schedules: []cohort.DesignSchedule{
			{
				Slug:          "entry",
				SurveyID:      "entry",
				Frequency:     schedule.FrequencyOnce,
				TitleTemplate: "Complete your entry survey",
				OffsetDays:    &entryOffset,
				OffsetFrom:    schedule.CohortStart,
			},
			{
				Slug:          "daily-checkin",
				SurveyID:      "daily-checkin",
				Frequency:     schedule.FrequencyDaily,
				TitleTemplate: "Daily Check-in - {due_date}",
			},
			{
				Slug:          "weekly-reflection",
				SurveyID:      "weekly-reflection",
				Frequency:     schedule.FrequencyWeekly,
				IsCumulative:  true,
				TitleTemplate: "Week {week_number} Reflection",
				DayOfWeek:     &sunday,
			},
			{
				Slug:       "exit",
				SurveyID:   "exit",
				Frequency:  schedule.FrequencyOnce,
				OffsetDays: &exitOffset,
				OffsetFrom: schedule.CohortEnd,
			},
		},
	}
}
