package schedule

import "fmt"

type Frequency string

const (
	FrequencyOnce   Frequency = "ONCE"
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyOnce, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// Label returns the human form shown in task previews.
func (f Frequency) Label() string {
	switch f {
	case FrequencyOnce:
		return "Once"
	case FrequencyDaily:
		return "Daily"
	case FrequencyWeekly:
		return "Weekly"
	}
	return string(f)
}

// ReferencePoint anchors a one-off task to one of the cohort's dates.
type ReferencePoint string

const (
	EnrollStart ReferencePoint = "ENROLL_START"
	EnrollEnd   ReferencePoint = "ENROLL_END"
	CohortStart ReferencePoint = "COHORT_START"
	CohortEnd   ReferencePoint = "COHORT_END"
)

func (rp ReferencePoint) Valid() bool {
	switch rp {
	case EnrollStart, EnrollEnd, CohortStart, CohortEnd:
		return true
	}
	return false
}

// anchorsEnd reports whether the point sits at the closing side of a window.
// End-anchored one-offs sort after everything else due the same day.
func (rp ReferencePoint) anchorsEnd() bool {
	return rp == EnrollEnd || rp == CohortEnd
}

// Recurrence tells how a rule spreads over the calendar. The set is closed:
// Once, Daily or Weekly.
type Recurrence interface {
	Frequency() Frequency
	recurrence()
}

// Once produces a single occurrence at a fixed offset (possibly negative)
// from one of the window's reference dates.
type Once struct {
	OffsetDays int
	From       ReferencePoint
}

func (Once) Frequency() Frequency { return FrequencyOnce }
func (Once) recurrence()          {}

// Daily produces one occurrence per day of the window. Cumulative rules keep
// the whole backlog of missed days; non-cumulative ones only surface today.
type Daily struct {
	Cumulative bool
}

func (Daily) Frequency() Frequency { return FrequencyDaily }
func (Daily) recurrence()          {}

// Weekly produces one occurrence per week on the given weekday, starting
// with the first such day on or after the window start.
type Weekly struct {
	Day        Weekday
	Cumulative bool
}

func (Weekly) Frequency() Frequency { return FrequencyWeekly }
func (Weekly) recurrence()          {}

// Window is the calendar frame of one cohort run. The enrollment dates are
// optional; rules anchored to them fail with MissingReferenceDateError when
// they are absent.
type Window struct {
	Start       Date
	End         Date
	EnrollStart *Date
	EnrollEnd   *Date
}

// Days returns the window length as a day difference (a 30-day cohort
// spanning Sep 1-30 has Days() == 29).
func (w Window) Days() int {
	return w.End.DaysSince(w.Start)
}

func (w Window) Contains(d Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// WeekNumber is the 1-based week of d within the window. Dates before the
// window start clamp to week 1; enrollment-anchored tasks may fall ahead of
// the cohort opening.
func (w Window) WeekNumber(d Date) int {
	days := d.DaysSince(w.Start)
	if days < 0 {
		return 1
	}
	return days/7 + 1
}

// Rule schedules one survey within a cohort window. The slug is the stable
// identity completions are recorded against.
type Rule struct {
	Slug                 string
	Recurrence           Recurrence
	SurveyName           string
	SurveyDescription    string
	EstimatedTimeMinutes int

	// Title and Description are optional; zero templates fall back to the
	// survey's own name and description.
	Title       TaskTemplate
	Description TaskTemplate
}

func (r Rule) Validate() error {
	if r.Slug == "" {
		return &InvalidRuleError{Slug: r.Slug, Reason: "empty slug"}
	}
	switch rec := r.Recurrence.(type) {
	case Once:
		if !rec.From.Valid() {
			return &InvalidRuleError{Slug: r.Slug, Reason: fmt.Sprintf("unknown reference point %q", rec.From)}
		}
	case Daily:
	case Weekly:
		if !rec.Day.Valid() {
			return &InvalidRuleError{Slug: r.Slug, Reason: fmt.Sprintf("day of week %d out of range", int(rec.Day))}
		}
	default:
		return &InvalidRuleError{Slug: r.Slug, Reason: "no recurrence set"}
	}
	return nil
}

// Presentation priorities for same-day ties.
const (
	orderOnceStart = 1
	orderDaily     = 2
	orderWeekly    = 3
	orderOnceEnd   = 4
)

// order maps the recurrence variant to its tie-break priority:
// start-anchored one-offs, then dailies, then weeklies, then end-anchored
// one-offs.
func (r Rule) order() int {
	switch rec := r.Recurrence.(type) {
	case Once:
		if rec.From.anchorsEnd() {
			return orderOnceEnd
		}
		return orderOnceStart
	case Weekly:
		return orderWeekly
	default:
		return orderDaily
	}
}
