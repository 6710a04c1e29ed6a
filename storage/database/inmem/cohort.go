package inmemdb

import (
	"context"
	"sort"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
)

type cohortRepository struct {
	db *DB
}

var _ cohort.Repository = (*cohortRepository)(nil) // interface compliance check

func NewCohortRepository(db *DB) cohort.Repository {
	return &cohortRepository{db: db}
}

func (repo *cohortRepository) queryCohorts() []cohort.Cohort {
	cohorts := make([]cohort.Cohort, 0, len(repo.db.cohort.table))
	for _, c := range repo.db.cohort.table {
		cohorts = append(cohorts, *c)
	}
	sort.Slice(cohorts, func(i, j int) bool { return cohorts[i].ID < cohorts[j].ID })
	return cohorts
}

func (repo *cohortRepository) CreateCohort(ctx context.Context, c cohort.Cohort) (cohort.Cohort, error) {
	repo.db.cohort.Lock()
	defer repo.db.cohort.Unlock()

	repo.db.cohort.pkCount++
	c.ID = repo.db.cohort.pkCount
	repo.db.cohort.table[c.ID] = &c
	return c, nil
}

func (repo *cohortRepository) GetCohortByID(ctx context.Context, id int) (cohort.Cohort, error) {
	repo.db.cohort.RLock()
	defer repo.db.cohort.RUnlock()

	if c, ok := repo.db.cohort.table[id]; ok {
		return *c, nil
	}
	return cohort.Cohort{}, cohort.ErrNotFound
}

func (repo *cohortRepository) QueryAllCohorts(ctx context.Context) ([]cohort.Cohort, error) {
	repo.db.cohort.RLock()
	defer repo.db.cohort.RUnlock()

	cohorts := repo.queryCohorts()
	sortByStartDesc(cohorts)
	return cohorts, nil
}

func (repo *cohortRepository) QueryActiveCohorts(ctx context.Context) ([]cohort.Cohort, error) {
	repo.db.cohort.RLock()
	defer repo.db.cohort.RUnlock()

	var active []cohort.Cohort
	for _, c := range repo.queryCohorts() {
		if c.IsActive {
			active = append(active, c)
		}
	}
	sortByStartDesc(active)
	return active, nil
}

// sortByStartDesc orders newest start date first; ties keep id order.
func sortByStartDesc(cohorts []cohort.Cohort) {
	sort.SliceStable(cohorts, func(i, j int) bool { return cohorts[j].StartDate.Before(cohorts[i].StartDate) })
}

func (repo *cohortRepository) UpdateCohort(ctx context.Context, c cohort.Cohort) (cohort.Cohort, error) {
	repo.db.cohort.Lock()
	defer repo.db.cohort.Unlock()

	if _, ok := repo.db.cohort.table[c.ID]; !ok {
		return cohort.Cohort{}, cohort.ErrNotFound
	}
	repo.db.cohort.table[c.ID] = &c
	return c, nil
}

func (repo *cohortRepository) CreateEnrollment(ctx context.Context, enr cohort.Enrollment) (cohort.Enrollment, error) {
	repo.db.enrollment.Lock()
	defer repo.db.enrollment.Unlock()

	for _, e := range repo.db.enrollment.table {
		if e.UserID == enr.UserID && e.CohortID == enr.CohortID {
			return cohort.Enrollment{}, cohort.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollment.pkCount++
	enr.ID = repo.db.enrollment.pkCount
	repo.db.enrollment.table[enr.ID] = &enr
	return enr, nil
}

func (repo *cohortRepository) GetEnrollment(ctx context.Context, userID, cohortID int) (cohort.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	for _, e := range repo.db.enrollment.table {
		if e.UserID == userID && e.CohortID == cohortID {
			return *e, nil
		}
	}
	return cohort.Enrollment{}, cohort.ErrNotFound
}

func (repo *cohortRepository) GetEnrollmentByID(ctx context.Context, id int) (cohort.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	if e, ok := repo.db.enrollment.table[id]; ok {
		return *e, nil
	}
	return cohort.Enrollment{}, cohort.ErrNotFound
}

func (repo *cohortRepository) QueryUserEnrollments(ctx context.Context, userID int) ([]cohort.Enrollment, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	var enrs []cohort.Enrollment
	for _, e := range repo.db.enrollment.table {
		if e.UserID == userID {
			enrs = append(enrs, *e)
		}
	}
	sort.Slice(enrs, func(i, j int) bool { return enrs[i].ID > enrs[j].ID })
	sort.SliceStable(enrs, func(i, j int) bool { return enrs[j].CreatedAt.Before(enrs[i].CreatedAt) })
	return enrs, nil
}

func (repo *cohortRepository) CountEnrollments(ctx context.Context, cohortID int) (int, error) {
	repo.db.enrollment.RLock()
	defer repo.db.enrollment.RUnlock()

	var n int
	for _, e := range repo.db.enrollment.table {
		if e.CohortID == cohortID {
			n++
		}
	}
	return n, nil
}

func (repo *cohortRepository) UpdateEnrollment(ctx context.Context, enr cohort.Enrollment) (cohort.Enrollment, error) {
	repo.db.enrollment.Lock()
	defer repo.db.enrollment.Unlock()

	if _, ok := repo.db.enrollment.table[enr.ID]; !ok {
		return cohort.Enrollment{}, cohort.ErrNotFound
	}
	repo.db.enrollment.table[enr.ID] = &enr
	return enr, nil
}

func (repo *cohortRepository) CreateRule(ctx context.Context, r cohort.ScheduleRule) (cohort.ScheduleRule, error) {
	repo.db.rule.Lock()
	defer repo.db.rule.Unlock()

	repo.db.rule.pkCount++
	r.ID = repo.db.rule.pkCount
	repo.db.rule.table[r.ID] = &r
	return r, nil
}

func (repo *cohortRepository) QueryCohortRules(ctx context.Context, cohortID int) ([]cohort.ScheduleRule, error) {
	repo.db.rule.RLock()
	defer repo.db.rule.RUnlock()

	var rules []cohort.ScheduleRule
	for _, r := range repo.db.rule.table {
		if r.CohortID == cohortID {
			rules = append(rules, *r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (repo *cohortRepository) QueryRulesBySurveyID(ctx context.Context, surveyID int) ([]cohort.ScheduleRule, error) {
	repo.db.rule.RLock()
	defer repo.db.rule.RUnlock()

	var rules []cohort.ScheduleRule
	for _, r := range repo.db.rule.table {
		if r.SurveyID == surveyID {
			rules = append(rules, *r)
		}
	}
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	return rules, nil
}

func (repo *cohortRepository) GetRuleBySlug(ctx context.Context, cohortID int, slug string) (cohort.ScheduleRule, error) {
	repo.db.rule.RLock()
	defer repo.db.rule.RUnlock()

	for _, r := range repo.db.rule.table {
		if r.CohortID == cohortID && r.Slug == slug {
			return *r, nil
		}
	}
	return cohort.ScheduleRule{}, cohort.ErrNotFound
}

func (repo *cohortRepository) UpdateRule(ctx context.Context, r cohort.ScheduleRule) (cohort.ScheduleRule, error) {
	repo.db.rule.Lock()
	defer repo.db.rule.Unlock()

	if _, ok := repo.db.rule.table[r.ID]; !ok {
		return cohort.ScheduleRule{}, cohort.ErrNotFound
	}
	repo.db.rule.table[r.ID] = &r
	return r, nil
}

func (repo *cohortRepository) DeleteRulesByID(ctx context.Context, ids ...int) error {
	repo.db.rule.Lock()
	defer repo.db.rule.Unlock()
	for _, id := range ids {
		delete(repo.db.rule.table, id)
	}
	return nil
}
