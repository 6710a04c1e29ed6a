package sqlxrepos

import (
	"testing"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func Test_likePrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		want   string
	}{
		{name: "plain", prefix: "12", want: "12%"},
		{name: "cohort slug prefix", prefix: "12_", want: `12\_%`},
		{name: "percent", prefix: "50%", want: `50\%%`},
		{name: "backslash", prefix: `a\b`, want: `a\\b%`},
		{name: "empty", prefix: "", want: "%"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, likePrefix(tt.prefix))
		})
	}
}

func Test_isUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, want: true},
		{name: "postgres foreign key violation", err: &pq.Error{Code: "23503"}, want: false},
		{name: "wrapped postgres error", err: errors.Wrap(&pq.Error{Code: "23505"}, "creating enrollment"), want: true},
		{name: "sqlite unique violation", err: errors.New("constraint failed: UNIQUE constraint failed: enrollment.user_id, enrollment.cohort_id (2067)"), want: true},
		{name: "sqlite foreign key violation", err: errors.New("constraint failed: FOREIGN KEY constraint failed (787)"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}
