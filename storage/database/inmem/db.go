// Package inmemdb backs the repositories with plain in-memory maps. It
// exists for tests and for running the API without a database; behavior
// (ordering, sentinel errors, uniqueness) matches the SQL implementations.
package inmemdb

import (
	"sync"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

type (
	DB struct {
		user       *userTable
		cohort     *cohortTable
		enrollment *enrollmentTable
		rule       *ruleTable
		survey     *surveyTable
		submission *submissionTable
	}

	userTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*user.User
	}

	cohortTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*cohort.Cohort
	}

	enrollmentTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*cohort.Enrollment
	}

	ruleTable struct {
		sync.RWMutex
		pkCount int
		table   map[int]*cohort.ScheduleRule
	}

	surveyTable struct {
		sync.RWMutex
		pkCount       int
		sectionCount  int
		questionCount int
		table         map[int]*survey.Survey
	}

	// submissions keep insertion order so equal timestamps sort stably.
	submissionTable struct {
		sync.RWMutex
		table []*survey.Submission
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[int]*user.User)},
		cohort:     &cohortTable{table: make(map[int]*cohort.Cohort)},
		enrollment: &enrollmentTable{table: make(map[int]*cohort.Enrollment)},
		rule:       &ruleTable{table: make(map[int]*cohort.ScheduleRule)},
		survey:     &surveyTable{table: make(map[int]*survey.Survey)},
		submission: &submissionTable{},
	}
	return db, nil
}

// Reset drops every stored row and restarts the id sequences. Tests call it
// between cases.
func (db *DB) Reset() {
	db.user.Lock()
	db.user.pkCount = 0
	db.user.table = make(map[int]*user.User)
	db.user.Unlock()

	db.cohort.Lock()
	db.cohort.pkCount = 0
	db.cohort.table = make(map[int]*cohort.Cohort)
	db.cohort.Unlock()

	db.enrollment.Lock()
	db.enrollment.pkCount = 0
	db.enrollment.table = make(map[int]*cohort.Enrollment)
	db.enrollment.Unlock()

	db.rule.Lock()
	db.rule.pkCount = 0
	db.rule.table = make(map[int]*cohort.ScheduleRule)
	db.rule.Unlock()

	db.survey.Lock()
	db.survey.pkCount = 0
	db.survey.sectionCount = 0
	db.survey.questionCount = 0
	db.survey.table = make(map[int]*survey.Survey)
	db.survey.Unlock()

	db.submission.Lock()
	db.submission.table = nil
	db.submission.Unlock()
}
