package schedule

import (
	"reflect"
	"testing"
)

// September 2025 cohort: Mon Sep 1 through Tue Sep 30, enrollment open the
// two weeks before.
func testWindow() Window {
	enrollStart := MustParseDate("2025-08-18")
	enrollEnd := MustParseDate("2025-08-31")
	return Window{
		Start:       MustParseDate("2025-09-01"),
		End:         MustParseDate("2025-09-30"),
		EnrollStart: &enrollStart,
		EnrollEnd:   &enrollEnd,
	}
}

func onceRule(offset int, from ReferencePoint) Rule {
	return Rule{Slug: "entry", SurveyName: "Entry Survey", Recurrence: Once{OffsetDays: offset, From: from}}
}

func dailyRule(cumulative bool) Rule {
	return Rule{Slug: "daily-checkin", SurveyName: "Daily Check-in", Recurrence: Daily{Cumulative: cumulative}}
}

func weeklyRule(day Weekday, cumulative bool) Rule {
	return Rule{Slug: "weekly-reflection", SurveyName: "Weekly Reflection", Recurrence: Weekly{Day: day, Cumulative: cumulative}}
}

func TestDueDate(t *testing.T) {
	win := testWindow()

	tests := []struct {
		name     string
		rule     Rule
		instance int
		want     string
		wantErr  interface{} // error prototype to type-match
	}{
		{name: "once from cohort start", rule: onceRule(0, CohortStart), want: "2025-09-01"},
		{name: "once offset from cohort start", rule: onceRule(3, CohortStart), want: "2025-09-04"},
		{name: "once from cohort end", rule: onceRule(0, CohortEnd), want: "2025-09-30"},
		{name: "once negative offset from enroll start", rule: onceRule(-7, EnrollStart), want: "2025-08-11"},
		{name: "once from enroll end", rule: onceRule(1, EnrollEnd), want: "2025-09-01"},
		{name: "once ignores instance id", rule: onceRule(0, CohortStart), instance: 7, want: "2025-09-01"},
		{name: "daily first", rule: dailyRule(false), instance: 0, want: "2025-09-01"},
		{name: "daily mid", rule: dailyRule(true), instance: 14, want: "2025-09-15"},
		{name: "daily last", rule: dailyRule(false), instance: 29, want: "2025-09-30"},
		{name: "daily past window", rule: dailyRule(false), instance: 30, wantErr: &InstanceOutOfRangeError{}},
		{name: "daily negative", rule: dailyRule(false), instance: -1, wantErr: &InstanceOutOfRangeError{}},
		{name: "weekly first sunday", rule: weeklyRule(Sunday, false), instance: 0, want: "2025-09-07"},
		{name: "weekly on start weekday", rule: weeklyRule(Monday, false), instance: 0, want: "2025-09-01"},
		{name: "weekly fourth sunday", rule: weeklyRule(Sunday, true), instance: 3, want: "2025-09-28"},
		{name: "weekly past cap", rule: weeklyRule(Sunday, false), instance: 6, wantErr: &InstanceOutOfRangeError{}},
		{name: "weekly bad day", rule: weeklyRule(7, false), wantErr: &InvalidRuleError{}},
		{name: "once bad reference", rule: onceRule(0, "LAUNCH"), wantErr: &InvalidRuleError{}},
		{name: "no recurrence", rule: Rule{Slug: "broken"}, wantErr: &InvalidRuleError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DueDate(win, tt.rule, tt.instance)
			if tt.wantErr != nil {
				if err == nil {
					t.Fatalf("DueDate() expected %T", tt.wantErr)
				}
				if reflect.TypeOf(err) != reflect.TypeOf(tt.wantErr) {
					t.Errorf("DueDate() error type = %T, want %T", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DueDate() error = %v", err)
			}
			if got != MustParseDate(tt.want) {
				t.Errorf("DueDate() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestDueDateMissingEnrollmentDates(t *testing.T) {
	win := Window{Start: MustParseDate("2025-09-01"), End: MustParseDate("2025-09-30")}

	for _, from := range []ReferencePoint{EnrollStart, EnrollEnd} {
		t.Run(string(from), func(t *testing.T) {
			_, err := DueDate(win, onceRule(0, from), 0)
			mErr, ok := err.(*MissingReferenceDateError)
			if !ok {
				t.Fatalf("DueDate() error = %v, want *MissingReferenceDateError", err)
			}
			if mErr.From != from {
				t.Errorf("MissingReferenceDateError.From = %s, want %s", mErr.From, from)
			}
		})
	}
}

func instances(ids []int, dates []string) []Instance {
	out := make([]Instance, len(ids))
	for i := range ids {
		out[i] = Instance{ID: ids[i], Due: MustParseDate(dates[i])}
	}
	return out
}

func TestDueInstances(t *testing.T) {
	win := testWindow()

	tests := []struct {
		name  string
		rule  Rule
		today string
		want  []Instance
	}{
		// one-offs appear once due, forever after
		{name: "once before due", rule: onceRule(0, CohortStart), today: "2025-08-31", want: nil},
		{name: "once on due date", rule: onceRule(0, CohortStart), today: "2025-09-01", want: instances([]int{0}, []string{"2025-09-01"})},
		{name: "once long after due", rule: onceRule(-7, EnrollStart), today: "2025-09-20", want: instances([]int{0}, []string{"2025-08-11"})},

		// daily, non-cumulative: only today, only inside the window
		{name: "daily before window", rule: dailyRule(false), today: "2025-08-31", want: nil},
		{name: "daily first day", rule: dailyRule(false), today: "2025-09-01", want: instances([]int{0}, []string{"2025-09-01"})},
		{name: "daily mid window", rule: dailyRule(false), today: "2025-09-05", want: instances([]int{4}, []string{"2025-09-05"})},
		{name: "daily last day", rule: dailyRule(false), today: "2025-09-30", want: instances([]int{29}, []string{"2025-09-30"})},
		{name: "daily after window", rule: dailyRule(false), today: "2025-10-01", want: nil},

		// daily, cumulative: the whole backlog
		{
			name: "daily cumulative catchup", rule: dailyRule(true), today: "2025-09-05",
			want: instances([]int{0, 1, 2, 3, 4}, []string{"2025-09-01", "2025-09-02", "2025-09-03", "2025-09-04", "2025-09-05"}),
		},
		{name: "daily cumulative before window", rule: dailyRule(true), today: "2025-08-20", want: nil},
		{name: "daily cumulative after window", rule: dailyRule(true), today: "2025-10-01", want: nil},

		// weekly: due dates land on the rule's weekday, clamped to the window
		{name: "weekly before first", rule: weeklyRule(Sunday, false), today: "2025-09-06", want: nil},
		{name: "weekly on first due", rule: weeklyRule(Sunday, false), today: "2025-09-07", want: instances([]int{0}, []string{"2025-09-07"})},
		{name: "weekly non-cumulative collapses", rule: weeklyRule(Sunday, false), today: "2025-09-20", want: instances([]int{1}, []string{"2025-09-14"})},
		{
			name: "weekly cumulative backlog", rule: weeklyRule(Sunday, true), today: "2025-09-20",
			want: instances([]int{0, 1}, []string{"2025-09-07", "2025-09-14"}),
		},
		{
			name: "weekly full run", rule: weeklyRule(Sunday, true), today: "2025-10-15",
			want: instances([]int{0, 1, 2, 3}, []string{"2025-09-07", "2025-09-14", "2025-09-21", "2025-09-28"}),
		},
		{name: "weekly start weekday due day one", rule: weeklyRule(Monday, false), today: "2025-09-01", want: instances([]int{0}, []string{"2025-09-01"})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DueInstances(win, tt.rule, MustParseDate(tt.today))
			if err != nil {
				t.Fatalf("DueInstances() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DueInstances() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDueInstancesWindowClamp(t *testing.T) {
	// short window ending before a second sunday exists
	win := Window{Start: MustParseDate("2025-09-01"), End: MustParseDate("2025-09-10")}

	got, err := DueInstances(win, weeklyRule(Sunday, true), MustParseDate("2025-09-30"))
	if err != nil {
		t.Fatalf("DueInstances() error = %v", err)
	}
	want := instances([]int{0}, []string{"2025-09-07"})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DueInstances() = %v, want %v", got, want)
	}
}

// The first weekly occurrence always lands on the rule's weekday, within
// seven days of the window start, whatever weekday the window starts on.
func TestWeeklyFirstDueProperty(t *testing.T) {
	for startOffset := 0; startOffset < 7; startOffset++ {
		start := MustParseDate("2025-09-01").AddDays(startOffset)
		win := Window{Start: start, End: start.AddDays(29)}

		for day := Monday; day <= Sunday; day++ {
			first := firstWeeklyDue(win, day)
			if first.Weekday() != day {
				t.Errorf("start %s day %s: first due %s has weekday %s", start, day, first, first.Weekday())
			}
			if diff := first.DaysSince(start); diff < 0 || diff > 6 {
				t.Errorf("start %s day %s: first due %s is %d days out", start, day, first, diff)
			}
		}
	}
}

func TestDueInstancesDeterministic(t *testing.T) {
	win := testWindow()
	today := MustParseDate("2025-09-20")

	for _, rule := range []Rule{onceRule(-7, EnrollStart), dailyRule(true), weeklyRule(Sunday, true)} {
		a, err := DueInstances(win, rule, today)
		if err != nil {
			t.Fatalf("DueInstances() error = %v", err)
		}
		b, err := DueInstances(win, rule, today)
		if err != nil {
			t.Fatalf("DueInstances() error = %v", err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("rule %q: repeated runs differ: %v vs %v", rule.Slug, a, b)
		}
	}
}
