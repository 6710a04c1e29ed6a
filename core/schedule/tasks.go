package schedule

import (
	"fmt"
	"sort"
)

// CompletionKey is the permanent identity of a completed task instance.
// Keys never contain dates: a cohort's dates can be edited after launch
// without orphaning or resurrecting anyone's completions.
type CompletionKey struct {
	RuleSlug   string
	InstanceID int
}

type CompletionSet map[CompletionKey]struct{}

func NewCompletionSet(keys ...CompletionKey) CompletionSet {
	s := make(CompletionSet, len(keys))
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

func (s CompletionSet) Add(k CompletionKey) { s[k] = struct{}{} }

func (s CompletionSet) Has(k CompletionKey) bool {
	_, ok := s[k]
	return ok
}

func (s CompletionSet) Len() int { return len(s) }

// Task is a due, not yet completed task instance ready for display.
type Task struct {
	RuleSlug             string `json:"rule_slug"`
	InstanceID           int    `json:"instance_id"`
	DueDate              Date   `json:"due_date"`
	Title                string `json:"title"`
	Description          string `json:"description"`
	URL                  string `json:"url,omitempty"`
	EstimatedTimeMinutes int    `json:"estimated_time_minutes,omitempty"`

	order int
}

func (t Task) Key() CompletionKey {
	return CompletionKey{RuleSlug: t.RuleSlug, InstanceID: t.InstanceID}
}

// URLBuilder resolves the link a task points at.
type URLBuilder func(ruleSlug string, instanceID int) string

// Logger is the warning surface used when a rule gets skipped. core.Logger
// satisfies it.
type Logger interface {
	Warn(msg string, args ...interface{})
}

// Planner computes task lists for one cohort window. It is a pure value:
// safe to build per request, no state beyond its fields.
type Planner struct {
	Window Window
	Rules  []Rule
	URLFor URLBuilder // optional; tasks carry no URL when nil
	Logger Logger     // optional; skips are silent when nil
}

// UserTasks returns the tasks due and not yet completed as of today, ordered
// by due date with same-day ties broken by rule kind. Rules whose stored
// configuration cannot be interpreted are logged and skipped; one bad rule
// never empties the whole list.
//
// The output is deterministic: identical inputs produce an identical slice.
func (p Planner) UserTasks(completed CompletionSet, today Date) []Task {
	var tasks []Task
	for _, r := range p.Rules {
		instances, err := DueInstances(p.Window, r, today)
		if err != nil {
			p.warnSkip(r.Slug, err)
			continue
		}
		for _, inst := range instances {
			if completed.Has(inst.Key(r.Slug)) {
				continue
			}
			t := Task{
				RuleSlug:             r.Slug,
				InstanceID:           inst.ID,
				DueDate:              inst.Due,
				Title:                p.renderTitle(r, inst.Due),
				Description:          p.renderDescription(r, inst.Due),
				EstimatedTimeMinutes: r.EstimatedTimeMinutes,
				order:                r.order(),
			}
			if p.URLFor != nil {
				t.URL = p.URLFor(r.Slug, inst.ID)
			}
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if !tasks[i].DueDate.Equal(tasks[j].DueDate) {
			return tasks[i].DueDate.Before(tasks[j].DueDate)
		}
		return tasks[i].order < tasks[j].order
	})
	return tasks
}

func (p Planner) templateContext(r Rule, due Date) TemplateContext {
	return TemplateContext{
		SurveyName:           r.SurveyName,
		DueDate:              due,
		WeekNumber:           p.Window.WeekNumber(due),
		EstimatedTimeMinutes: r.EstimatedTimeMinutes,
	}
}

func (p Planner) renderTitle(r Rule, due Date) string {
	if r.Title.IsZero() {
		return r.SurveyName
	}
	return r.Title.Render(p.templateContext(r, due))
}

func (p Planner) renderDescription(r Rule, due Date) string {
	if r.Description.IsZero() {
		return r.SurveyDescription
	}
	return r.Description.Render(p.templateContext(r, due))
}

func (p Planner) warnSkip(slug string, err error) {
	if p.Logger == nil {
		return
	}
	p.Logger.Warn(fmt.Sprintf("skipping task rule %q: %v", slug, err))
}
