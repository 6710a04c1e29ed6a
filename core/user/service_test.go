package user

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	emailsvc "github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/services/email"
)

// fakeUserRepo is a minimal in-memory Repository for exercising the service.
type fakeUserRepo struct {
	pkCount int
	users   map[int]User
}

var _ Repository = (*fakeUserRepo)(nil)

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]User)}
}

func (r *fakeUserRepo) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error {
	for _, usr := range r.users {
		if !strings.EqualFold(usr.Email, email) {
			continue
		}
		excluded := false
		for _, exclUsr := range excludedUsers {
			if exclUsr.ID == usr.ID {
				excluded = true
				break
			}
		}
		if !excluded {
			return ErrEmailExists
		}
	}
	return nil
}

func (r *fakeUserRepo) CreateUser(ctx context.Context, usr User) (User, error) {
	r.pkCount++
	usr.ID = r.pkCount
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *fakeUserRepo) QueryAllUsers(ctx context.Context) ([]User, error) {
	usrs := make([]User, 0, len(r.users))
	for _, usr := range r.users {
		usrs = append(usrs, usr)
	}
	sort.Slice(usrs, func(i, j int) bool { return usrs[i].ID < usrs[j].ID })
	return usrs, nil
}

func (r *fakeUserRepo) GetUserByID(ctx context.Context, id int) (User, error) {
	usr, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return usr, nil
}

func (r *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (User, error) {
	for _, usr := range r.users {
		if usr.Email == email {
			return usr, nil
		}
	}
	return User{}, ErrNotFound
}

func (r *fakeUserRepo) FilterUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	all, _ := r.QueryAllUsers(ctx)
	usrs := make([]User, 0, len(all))
	for _, usr := range all {
		if filter.Search != "" {
			search := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(usr.Name), search) && !strings.Contains(strings.ToLower(usr.Email), search) {
				continue
			}
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		usrs = append(usrs, usr)
	}
	return usrs, nil
}

func (r *fakeUserRepo) UpdateUser(ctx context.Context, usr User) (User, error) {
	if _, ok := r.users[usr.ID]; !ok {
		return User{}, ErrNotFound
	}
	r.users[usr.ID] = usr
	return usr, nil
}

func (r *fakeUserRepo) UpdateLastLogin(ctx context.Context, id int, at time.Time) error {
	usr, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	usr.LastLogin = at
	r.users[id] = usr
	return nil
}

func (r *fakeUserRepo) DeleteUsersByID(ctx context.Context, ids ...int) error {
	for _, id := range ids {
		delete(r.users, id)
	}
	return nil
}

func setupService(t *testing.T) (Service, *fakeUserRepo) {
	t.Helper()
	core.ParseEmailTemplates(noopLogger{})
	emailsvc.SentMessages = emailsvc.SentMessages[:0]
	repo := newFakeUserRepo()
	svc := NewServiceMock(repo, emailsvc.NewConsoleServiceMock(), core.Conf, noopLogger{})
	return svc, repo
}

func seedUser(t *testing.T, repo Repository, name, email, pwd string, isActive bool) User {
	t.Helper()
	now := time.Now().UTC()
	usr := User{
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("seedUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("seedUser() failed: %v", err)
	}
	return usr
}

func TestServiceCreate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	usr, err := svc.Create(ctx, NewUser{
		Name:            "Jane Roe",
		Email:           "jane@test.test",
		Password:        "Str0ng&Uniq",
		PasswordConfirm: "Str0ng&Uniq",
		Timezone:        "Europe/Paris",
	})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if usr.ID == 0 {
		t.Error("Create() did not assign an ID")
	}
	if !usr.IsActive {
		t.Error("new users must be active")
	}
	if !usr.EmailDailyReminder || !usr.EmailWeeklyReminder {
		t.Error("new users must have reminder emails enabled")
	}
	if usr.Timezone != "Europe/Paris" {
		t.Errorf("Timezone = %q, want %q", usr.Timezone, "Europe/Paris")
	}
	if err = usr.CheckPassword("Str0ng&Uniq"); err != nil {
		t.Errorf("CheckPassword() failed: %v", err)
	}
	if usr.CreatedAt.IsZero() || usr.UpdatedAt.IsZero() {
		t.Error("timestamps not set")
	}

	// welcome email
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent %d mails, want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if msg.TemplateName != "welcome" {
		t.Errorf("TemplateName = %q, want %q", msg.TemplateName, "welcome")
	}
	if msg.To[0].Address != "jane@test.test" {
		t.Errorf("To = %q, want %q", msg.To[0].Address, "jane@test.test")
	}
	if !strings.Contains(msg.TextContent, "Jane Roe") {
		t.Errorf("mail body does not greet the user:\n%s", msg.TextContent)
	}
}

func TestServiceCheckEmailUniqueness(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	usr := seedUser(t, repo, "Jane Roe", "jane@test.test", "Str0ng&Uniq", true)

	err := svc.CheckEmailUniqueness(ctx, "jane@test.test")
	vErr, ok := err.(*core.ValidationError)
	if !ok {
		t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
	}
	if len(vErr.Fields) != 1 || vErr.Fields[0].Field != "email" {
		t.Errorf("unexpected field errors: %+v", vErr.Fields)
	}

	if err = svc.CheckEmailUniqueness(ctx, "other@test.test"); err != nil {
		t.Errorf("unexpected error for a free email: %v", err)
	}
	if err = svc.CheckEmailUniqueness(ctx, "jane@test.test", usr); err != nil {
		t.Errorf("unexpected error when the owner is excluded: %v", err)
	}
}

func TestServiceAuthenticate(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	seedUser(t, repo, "Jane Roe", "jane@test.test", "Str0ng&Uniq", true)
	seedUser(t, repo, "John Doe", "john@test.test", "Str0ng&Uniq", false)

	tests := []struct {
		name    string
		email   string
		pwd     string
		wantErr error
	}{
		{name: "unknown email", email: "nope@test.test", pwd: "Str0ng&Uniq", wantErr: ErrInvalidCredentials},
		{name: "wrong password", email: "jane@test.test", pwd: "wrong", wantErr: ErrInvalidCredentials},
		{name: "deactivated account", email: "john@test.test", pwd: "Str0ng&Uniq", wantErr: ErrAccountDeactivated},
		{name: "ok", email: "jane@test.test", pwd: "Str0ng&Uniq"},
		{name: "email is case-insensitive", email: "JANE@Test.Test", pwd: "Str0ng&Uniq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := svc.Authenticate(ctx, tt.email, tt.pwd)
			if err != tt.wantErr {
				t.Fatalf("Authenticate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if usr.LastLogin.IsZero() {
					t.Error("LastLogin not set")
				}
				stored, _ := repo.GetUserByID(ctx, usr.ID)
				if stored.LastLogin.IsZero() {
					t.Error("LastLogin not persisted")
				}
			}
		})
	}
}

func TestServiceRequestPasswordReset(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	usr := seedUser(t, repo, "Jane Roe", "jane@test.test", "Str0ng&Uniq", true)
	seedUser(t, repo, "John Doe", "john@test.test", "Str0ng&Uniq", false)

	if err := svc.RequestPasswordReset(ctx, "nope@test.test"); err != ErrNotFound {
		t.Errorf("unknown email: error = %v, want %v", err, ErrNotFound)
	}
	if err := svc.RequestPasswordReset(ctx, "john@test.test"); err != ErrNotFound {
		t.Errorf("deactivated account: error = %v, want %v", err, ErrNotFound)
	}

	if err := svc.RequestPasswordReset(ctx, "jane@test.test"); err != nil {
		t.Fatalf("RequestPasswordReset() failed: %v", err)
	}
	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("sent %d mails, want 1", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if msg.TemplateName != "password-reset" {
		t.Errorf("TemplateName = %q, want %q", msg.TemplateName, "password-reset")
	}
	data, ok := msg.TemplateData.(resetEmailData)
	if !ok {
		t.Fatalf("unexpected TemplateData %T", msg.TemplateData)
	}
	id, err := decodeUID(data.UID)
	if err != nil || id != usr.ID {
		t.Errorf("decodeUID(%q) = %d, %v; want %d", data.UID, id, err, usr.ID)
	}
	if err = verifyToken(usr, data.Token); err != nil {
		t.Errorf("mailed token does not verify: %v", err)
	}
	if !strings.Contains(msg.TextContent, data.Token) {
		t.Errorf("mail body does not contain the token:\n%s", msg.TextContent)
	}
}

func TestServiceResetPassword(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	usr := seedUser(t, repo, "Jane Roe", "jane@test.test", "Old&Pass1w", true)

	token := MakeToken(usr)
	updated, err := svc.ResetPassword(ctx, ResetUserPassword{
		Token:           token,
		UID:             EncodeUID(usr),
		Password:        "New&Pass1w",
		PasswordConfirm: "New&Pass1w",
	})
	if err != nil {
		t.Fatalf("ResetPassword() failed: %v", err)
	}
	if err = updated.CheckPassword("New&Pass1w"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if err = updated.CheckPassword("Old&Pass1w"); err == nil {
		t.Error("old password still accepted")
	}

	// the password change invalidates the token
	_, err = svc.ResetPassword(ctx, ResetUserPassword{
		Token:           token,
		UID:             EncodeUID(usr),
		Password:        "Other&Pass1w",
		PasswordConfirm: "Other&Pass1w",
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("reused token: expected *core.ValidationError, got %T: %v", err, err)
	}

	// garbage uid
	_, err = svc.ResetPassword(ctx, ResetUserPassword{Token: token, UID: "???", Password: "New&Pass1w", PasswordConfirm: "New&Pass1w"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("bad uid: expected *core.ValidationError, got %T: %v", err, err)
	}

	// unknown user
	_, err = svc.ResetPassword(ctx, ResetUserPassword{Token: token, UID: EncodeUID(User{ID: 999}), Password: "New&Pass1w", PasswordConfirm: "New&Pass1w"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("unknown user: expected *core.ValidationError, got %T: %v", err, err)
	}
}

func TestServiceUpdate(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	orig := seedUser(t, repo, "Jane Roe", "jane@test.test", "Str0ng&Uniq", true)
	orig.Timezone = "Europe/Paris"
	orig, _ = repo.UpdateUser(ctx, orig)

	inactive := false
	updated, err := svc.Update(ctx, orig, UpdateUser{
		Name:     "Jane Doe",
		Email:    "jane.doe@test.test",
		IsActive: &inactive,
		Password: "New&Pass1w",
	})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Name != "Jane Doe" {
		t.Errorf("Name = %q, want %q", updated.Name, "Jane Doe")
	}
	if updated.Email != "jane.doe@test.test" {
		t.Errorf("Email = %q, want %q", updated.Email, "jane.doe@test.test")
	}
	if updated.Timezone != "Europe/Paris" {
		t.Errorf("empty timezone must keep the previous value; got %q", updated.Timezone)
	}
	if updated.IsActive {
		t.Error("IsActive not updated")
	}
	if err = updated.CheckPassword("New&Pass1w"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}
	if !updated.UpdatedAt.After(orig.UpdatedAt) {
		t.Error("UpdatedAt not advanced")
	}

	// reminder toggles
	noDaily := false
	updated, err = svc.Update(ctx, updated, UpdateUser{Name: updated.Name, Email: updated.Email, EmailDailyReminder: &noDaily})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.EmailDailyReminder {
		t.Error("EmailDailyReminder not updated")
	}
	if !updated.EmailWeeklyReminder {
		t.Error("EmailWeeklyReminder must be unchanged")
	}
}

func TestServiceDelete(t *testing.T) {
	svc, repo := setupService(t)
	ctx := context.Background()
	usr1 := seedUser(t, repo, "Jane Roe", "jane@test.test", "Str0ng&Uniq", true)
	usr2 := seedUser(t, repo, "John Doe", "john@test.test", "Str0ng&Uniq", true)
	usr3 := seedUser(t, repo, "Jimmy Dean", "jimmy@test.test", "Str0ng&Uniq", true)

	if err := svc.Delete(ctx, usr1.ID, usr3.ID); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	remaining, err := svc.QueryAll(ctx)
	if err != nil {
		t.Fatalf("QueryAll() failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != usr2.ID {
		t.Errorf("remaining users = %+v, want only %d", remaining, usr2.ID)
	}
}
