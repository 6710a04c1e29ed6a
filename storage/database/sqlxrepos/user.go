package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

const userColumns = `id, name, email, password_hash, is_active, is_staff, timezone,
	email_daily_reminder, email_weekly_reminder, created_at, updated_at, last_login`

type userRow struct {
	ID                  int       `db:"id"`
	Name                string    `db:"name"`
	Email               string    `db:"email"`
	PasswordHash        []byte    `db:"password_hash"`
	IsActive            bool      `db:"is_active"`
	IsStaff             bool      `db:"is_staff"`
	Timezone            string    `db:"timezone"`
	EmailDailyReminder  bool      `db:"email_daily_reminder"`
	EmailWeeklyReminder bool      `db:"email_weekly_reminder"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
	LastLogin           null.Time `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:                  usr.ID,
		Name:                usr.Name,
		Email:               usr.Email,
		PasswordHash:        usr.PasswordHash,
		IsActive:            usr.IsActive,
		IsStaff:             usr.IsStaff,
		Timezone:            usr.Timezone,
		EmailDailyReminder:  usr.EmailDailyReminder,
		EmailWeeklyReminder: usr.EmailWeeklyReminder,
		CreatedAt:           usr.CreatedAt,
		UpdatedAt:           usr.UpdatedAt,
		LastLogin:           null.NewTime(usr.LastLogin, !usr.LastLogin.IsZero()),
	}
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:                  row.ID,
		Name:                row.Name,
		Email:               row.Email,
		PasswordHash:        row.PasswordHash,
		IsActive:            row.IsActive,
		IsStaff:             row.IsStaff,
		Timezone:            row.Timezone,
		EmailDailyReminder:  row.EmailDailyReminder,
		EmailWeeklyReminder: row.EmailWeeklyReminder,
		CreatedAt:           row.CreatedAt.UTC(),
		UpdatedAt:           row.UpdatedAt.UTC(),
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

func usersFromRows(rows []userRow) []user.User {
	if len(rows) == 0 {
		return nil
	}
	usrs := make([]user.User, len(rows))
	for i, row := range rows {
		usrs[i] = row.toUser()
	}
	return usrs
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	query := "SELECT COUNT(*) FROM users WHERE LOWER(email) = LOWER(?)"
	args := []interface{}{email}
	if len(excludedUsers) > 0 {
		ids := make([]int, len(excludedUsers))
		for i, usr := range excludedUsers {
			ids[i] = usr.ID
		}
		var err error
		query, args, err = sqlx.In(query+" AND id NOT IN (?)", email, ids)
		if err != nil {
			return errors.Wrap(err, "building email uniqueness query")
		}
	}

	var n int
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if n > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	const query = `
	INSERT INTO users (name, email, password_hash, is_active, is_staff, timezone,
		email_daily_reminder, email_weekly_reminder, created_at, updated_at, last_login)
	VALUES (:name, :email, :password_hash, :is_active, :is_staff, :timezone,
		:email_daily_reminder, :email_weekly_reminder, :created_at, :updated_at, :last_login)
	RETURNING id`

	row := newUserRow(usr)
	if err := namedGet(ctx, repo.db, &row.ID, query, row); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "creating user")
	}
	usr.ID = row.ID
	return usr, nil
}

func (repo *userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	query := "SELECT " + userColumns + " FROM users ORDER BY id"
	if err := repo.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return usersFromRows(rows), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id int) (user.User, error) {
	var row userRow
	query := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	if err := repo.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var row userRow
	query := repo.db.Rebind("SELECT " + userColumns + " FROM users WHERE LOWER(email) = LOWER(?)")
	if err := repo.db.GetContext(ctx, &row, query, email); err != nil {
		if err == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "getting user by email")
	}
	return row.toUser(), nil
}

func (repo *userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Search != "" {
		pat := "%" + strings.ToLower(filter.Search) + "%"
		where = append(where, "(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)")
		args = append(args, pat, pat)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active = ?")
		args = append(args, *filter.IsActive)
	}
	if !filter.CreatedFrom.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, filter.CreatedFrom)
	}
	if !filter.CreatedTo.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, filter.CreatedTo)
	}

	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY " + userOrderBy(ordering)

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return usersFromRows(rows), nil
}

// userOrderBy renders the ORDER BY terms, falling back to id for fields we
// do not sort on. Never interpolates caller input.
func userOrderBy(ordering []core.DBOrdering) string {
	if len(ordering) == 0 {
		return "id"
	}
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		field := "id"
		switch ord.Field {
		case "name", "email", "created_at":
			field = ord.Field
		}
		direction := "DESC"
		if ord.Ascending {
			direction = "ASC"
		}
		terms = append(terms, field+" "+direction)
	}
	return strings.Join(append(terms, "id"), ", ")
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	const query = `
	UPDATE users SET
		name = :name, email = :email, password_hash = :password_hash,
		is_active = :is_active, is_staff = :is_staff, timezone = :timezone,
		email_daily_reminder = :email_daily_reminder, email_weekly_reminder = :email_weekly_reminder,
		created_at = :created_at, updated_at = :updated_at, last_login = :last_login
	WHERE id = :id`

	n, err := namedExecAffected(ctx, repo.db, query, newUserRow(usr))
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return usr, nil
}

func (repo *userRepository) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	query := repo.db.Rebind("UPDATE users SET last_login = ? WHERE id = ?")
	res, err := repo.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating last login")
	}
	if n == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...int) error {
	if len(ids) == 0 {
		return nil
	}
	query, args, err := sqlx.In("DELETE FROM users WHERE id IN (?)", ids)
	if err != nil {
		return errors.Wrap(err, "building user delete query")
	}
	if _, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return nil
}
