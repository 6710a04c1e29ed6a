package schedule

import "sort"

// Upcoming is a preview entry for a task that has not started yet. Frequency
// and weekday are rendered as display labels, not storage codes.
type Upcoming struct {
	Title                string `json:"title"`
	FrequencyLabel       string `json:"frequency_label"`
	NextDate             Date   `json:"next_date"`
	DayOfWeekLabel       string `json:"day_of_week_label,omitempty"` // weekly rules only
	EstimatedTimeMinutes int    `json:"estimated_time_minutes,omitempty"`

	order int
}

// NextOccurrence is the date of a rule's first instance, independent of any
// "today".
func NextOccurrence(win Window, r Rule) (Date, error) {
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
	case Weekly:
		return firstWeeklyDue(win, rec.Day), nil
	default:
		return win.Start, nil
	}
}

// UpcomingTasks previews each rule's first occurrence, keeping only those
// strictly in the future. Completions are irrelevant here: this feeds the
// "what's coming" panel, not the to-do list.
func (p Planner) UpcomingTasks(today Date) []Upcoming {
	var out []Upcoming
	for _, r := range p.Rules {
		next, err := NextOccurrence(p.Window, r)
		if err != nil {
			p.warnSkip(r.Slug, err)
			continue
		}
		if !next.After(today) {
			continue
		}
		u := Upcoming{
			Title:                p.renderTitle(r, next),
			FrequencyLabel:       r.Recurrence.Frequency().Label(),
			NextDate:             next,
			EstimatedTimeMinutes: r.EstimatedTimeMinutes,
			order:                r.order(),
		}
		if w, ok := r.Recurrence.(Weekly); ok {
			u.DayOfWeekLabel = w.Day.String()
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NextDate.Equal(out[j].NextDate) {
			return out[i].NextDate.Before(out[j].NextDate)
		}
		return out[i].order < out[j].order
	})
	return out
}
