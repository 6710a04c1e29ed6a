// Package sqlxrepos implements the repositories on top of database/sql with
// sqlx. Queries stick to the portable subset Postgres and SQLite share and
// are written with ? bindvars, rebound per driver; engine differences are
// confined to error inspection.
package sqlxrepos

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// modernc/sqlite registers itself as "sqlite"; sqlx's stock bindvar table
// only knows mattn's "sqlite3".
func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// whichever engine raised it.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// namedGet runs a named query expected to produce a single row (single-row
// SELECT or INSERT ... RETURNING) and scans it into dest.
func namedGet(ctx context.Context, db *sqlx.DB, dest interface{}, query string, arg interface{}) error {
	stmt, err := db.PrepareNamedContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = stmt.Close() }()
	return stmt.GetContext(ctx, dest, arg)
}

func namedExecAffected(ctx context.Context, db *sqlx.DB, query string, arg interface{}) (int64, error) {
	res, err := db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// likePrefix escapes prefix for use in a LIKE ... ESCAPE '\' pattern.
// Cohort-scoped survey slugs carry a "{cohortID}_" prefix and _ is a LIKE
// wildcard, so escaping is not optional here.
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}
