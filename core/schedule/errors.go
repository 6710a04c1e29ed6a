package schedule

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidRuleError reports a rule whose stored configuration cannot be
// interpreted. The planner logs and skips such rules so one bad row does not
// take down a user's whole task list.
type InvalidRuleError struct {
	Slug   string
	Reason string
}

func (e *InvalidRuleError) Error() string {
	return fmt.Sprintf("rule %q: %s", e.Slug, e.Reason)
}

// MissingReferenceDateError reports a one-off rule anchored to an enrollment
// date the window does not define.
type MissingReferenceDateError struct {
	Slug string
	From ReferencePoint
}

func (e *MissingReferenceDateError) Error() string {
	return fmt.Sprintf("rule %q: window has no %s date", e.Slug, e.From)
}

// InstanceOutOfRangeError reports an instance ID no enumeration of the rule
// can ever produce.
type InstanceOutOfRangeError struct {
	Slug string
	ID   int
}

func (e *InstanceOutOfRangeError) Error() string {
	return fmt.Sprintf("rule %q: instance %d out of range", e.Slug, e.ID)
}

// TemplateError reports a malformed task template. Unlike rule configuration
// errors these are not skipped: a broken template is a content defect that
// must surface.
type TemplateError struct {
	Template string
	Detail   string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template %q: %s", e.Template, e.Detail)
}

// IsSkippable reports whether err is a per-rule configuration problem that
// task assembly should log and move past rather than fail on.
func IsSkippable(err error) bool {
	switch errors.Cause(err).(type) {
	case *InvalidRuleError, *MissingReferenceDateError:
		return true
	}
	return false
}
