package survey

import (
	"sort"
	"strconv"
)

// MetricStats aggregates one integer question across submissions.
type MetricStats struct {
	Average float64 `json:"avg"`
	Change  int     `json:"change"` // last - first; 0 with a single value
	First   int     `json:"first"`
	Last    int     `json:"last"`
	Count   int     `json:"count"`
}

// AggregateMetrics folds the integer answers of subs into per-question stats
// for the dashboard. surveys maps survey id to its definition; only questions
// of type integer count as metrics. Submissions are processed in CompletedAt
// order regardless of input order, and stored values that do not parse as
// integers are skipped.
func AggregateMetrics(subs []Submission, surveys map[int]Survey) map[string]MetricStats {
	stats := make(map[string]MetricStats)
	if len(subs) == 0 {
		return stats
	}

	metricKeys := make(map[string]bool)
	for _, svy := range surveys {
		for _, q := range svy.Questions {
			if q.Type == QuestionInteger {
				metricKeys[q.Key] = true
			}
		}
	}
	if len(metricKeys) == 0 {
		return stats
	}

	ordered := make([]Submission, len(subs))
	copy(ordered, subs)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CompletedAt.Before(ordered[j].CompletedAt)
	})

	values := make(map[string][]int)
	for _, sub := range ordered {
		for _, ans := range sub.Answers {
			if !metricKeys[ans.QuestionKey] {
				continue
			}
			n, err := strconv.Atoi(ans.Value)
			if err != nil {
				continue
			}
			values[ans.QuestionKey] = append(values[ans.QuestionKey], n)
		}
	}

	for key, vals := range values {
		sum := 0
		for _, v := range vals {
			sum += v
		}
		st := MetricStats{
			Average: float64(sum) / float64(len(vals)),
			First:   vals[0],
			Last:    vals[len(vals)-1],
			Count:   len(vals),
		}
		if len(vals) > 1 {
			st.Change = st.Last - st.First
		}
		stats[key] = st
	}
	return stats
}
