package schedule

import "fmt"

// Instance is one dated occurrence of a rule. The ID is the occurrence's
// permanent identity: 0 for a one-off, days since window start for dailies,
// weeks since the first occurrence for weeklies. Completions recorded
// against an ID survive any later edit of the cohort's dates.
type Instance struct {
	ID  int
	Due Date
}

func (i Instance) Key(ruleSlug string) CompletionKey {
	return CompletionKey{RuleSlug: ruleSlug, InstanceID: i.ID}
}

// DueDate resolves the calendar due date of one instance of a rule within a
// window. Pure: no clock, no I/O; identical inputs always yield the same
// date.
//
// For ONCE rules the instance ID is ignored since only instance 0 ever
// exists. DAILY and WEEKLY reject IDs outside what the window can hold.
func DueDate(win Window, r Rule, instanceID int) (Date, error) {
	if err := r.Validate(); err != nil {
		return Date{}, err
	}

	switch rec := r.Recurrence.(type) {
	case Once:
		ref, err := referenceDate(win, r.Slug, rec.From)
		if err != nil {
			return Date{}, err
		}
		return ref.AddDays(rec.OffsetDays), nil

	case Daily:
		if instanceID < 0 || instanceID > win.Days() {
			return Date{}, &InstanceOutOfRangeError{Slug: r.Slug, ID: instanceID}
		}
		return win.Start.AddDays(instanceID), nil

	case Weekly:
		if instanceID < 0 || instanceID >= weeklyCount(win) {
			return Date{}, &InstanceOutOfRangeError{Slug: r.Slug, ID: instanceID}
		}
		return firstWeeklyDue(win, rec.Day).AddDays(7 * instanceID), nil
	}
	return Date{}, &InvalidRuleError{Slug: r.Slug, Reason: "no recurrence set"}
}

// DueInstances expands a rule into every instance due on or before today.
// Non-cumulative rules collapse to their single most recent occurrence;
// cumulative rules keep the whole backlog so users can catch up on missed
// days. Daily instances exist only while today is inside the window; weekly
// and one-off instances already due stay due after it closes.
func DueInstances(win Window, r Rule, today Date) ([]Instance, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	switch rec := r.Recurrence.(type) {
	case Once:
		ref, err := referenceDate(win, r.Slug, rec.From)
		if err != nil {
			return nil, err
		}
		due := ref.AddDays(rec.OffsetDays)
		if today.Before(due) {
			return nil, nil
		}
		return []Instance{{ID: 0, Due: due}}, nil

	case Daily:
		if today.Before(win.Start) || today.After(win.End) {
			return nil, nil
		}
		if rec.Cumulative {
			n := today.DaysSince(win.Start)
			out := make([]Instance, 0, n+1)
			for i := 0; i <= n; i++ {
				out = append(out, Instance{ID: i, Due: win.Start.AddDays(i)})
			}
			return out, nil
		}
		return []Instance{{ID: today.DaysSince(win.Start), Due: today}}, nil

	case Weekly:
		first := firstWeeklyDue(win, rec.Day)
		var out []Instance
		for i := 0; i < weeklyCount(win); i++ {
			due := first.AddDays(7 * i)
			if due.After(today) || due.After(win.End) {
				break
			}
			out = append(out, Instance{ID: i, Due: due})
		}
		if !rec.Cumulative && len(out) > 1 {
			out = out[len(out)-1:]
		}
		return out, nil
	}
	return nil, &InvalidRuleError{Slug: r.Slug, Reason: "no recurrence set"}
}

func referenceDate(win Window, slug string, from ReferencePoint) (Date, error) {
	switch from {
	case CohortStart:
		return win.Start, nil
	case CohortEnd:
		return win.End, nil
	case EnrollStart:
		if win.EnrollStart == nil {
			return Date{}, &MissingReferenceDateError{Slug: slug, From: from}
		}
		return *win.EnrollStart, nil
	case EnrollEnd:
		if win.EnrollEnd == nil {
			return Date{}, &MissingReferenceDateError{Slug: slug, From: from}
		}
		return *win.EnrollEnd, nil
	}
	return Date{}, &InvalidRuleError{Slug: slug, Reason: fmt.Sprintf("unknown reference point %q", from)}
}

// firstWeeklyDue is the first date on or after the window start falling on
// the target weekday. A cohort starting on its target weekday is due on day
// one.
func firstWeeklyDue(win Window, day Weekday) Date {
	offset := (int(day) - int(win.Start.Weekday()) + 7) % 7
	return win.Start.AddDays(offset)
}

// weeklyCount caps weekly instance IDs. It deliberately overshoots by up to
// one week; enumeration clamps candidates to the window end.
func weeklyCount(win Window) int {
	days := win.Days()
	if days < 0 {
		return 0
	}
	return (days+6)/7 + 1
}
