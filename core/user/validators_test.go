package user

import (
	"sort"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
)

type noopLogger struct{}

func (noopLogger) Enable(bool)                  {}
func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) Fatal(string, ...interface{}) {}

func newTestValidator(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return validate
}

// passwordErrTag extracts the policy tag reported for the password field, if any.
func passwordErrTag(t *testing.T, err error) string {
	t.Helper()
	if err == nil {
		return ""
	}
	vErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		t.Fatalf("expected validator.ValidationErrors, got %T: %v", err, err)
	}
	for _, fErr := range vErrs {
		if fErr.Field() == "password" {
			return fErr.Tag()
		}
	}
	return ""
}

func TestPasswordValidation(t *testing.T) {
	validate := newTestValidator(t)

	origCommon := commonPasswords
	commonPasswords = []string{"p@ssw0rd!x"}
	defer func() { commonPasswords = origCommon }()

	tests := []struct {
		name    string
		usrName string
		email   string
		pwd     string
		wantTag string
	}{
		{name: "too short", usrName: "Bob", email: "bob@test.test", pwd: "Sh0r!t", wantTag: pwdMinLenTag},
		{name: "whitespace", usrName: "Bob", email: "bob@test.test", pwd: "No Spaces0!", wantTag: pwdNoSpaceTag},
		{name: "all numeric", usrName: "Bob", email: "bob@test.test", pwd: "12345678", wantTag: pwdNotAllNumTag},
		{name: "no uppercase", usrName: "Bob", email: "bob@test.test", pwd: "weak!pass1", wantTag: pwdComplexityTag},
		{name: "no special", usrName: "Bob", email: "bob@test.test", pwd: "Weakpass1", wantTag: pwdComplexityTag},
		{name: "similar to email", usrName: "Bob", email: "sam@test.test", pwd: "Sam@test.tes1", wantTag: pwdAttrSimTag},
		{name: "similar to name", usrName: "Charlotte", email: "bob@test.test", pwd: "Charl0tte!", wantTag: pwdAttrSimTag},
		{name: "common password", usrName: "Bob", email: "bob@test.test", pwd: "P@ssw0rd!x", wantTag: pwdNoCommonTag},
		{name: "valid", usrName: "Bob", email: "bob@test.test", pwd: "Str0ng&Uniq"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            tt.usrName,
				Email:           tt.email,
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			gotTag := passwordErrTag(t, validate.Struct(nu))
			if gotTag != tt.wantTag {
				t.Errorf("password %q: got tag %q, want %q", tt.pwd, gotTag, tt.wantTag)
			}
		})
	}
}

func TestPasswordValidationOnUpdate(t *testing.T) {
	validate := newTestValidator(t)

	// empty password means "no change"; the policy must not fire
	if err := validate.Struct(UpdateUser{Name: "Bob"}); err != nil {
		t.Errorf("UpdateUser without password: unexpected error %v", err)
	}

	if tag := passwordErrTag(t, validate.Struct(UpdateUser{Password: "12345678", PasswordConfirm: "12345678"})); tag != pwdNotAllNumTag {
		t.Errorf("UpdateUser with weak password: got tag %q, want %q", tag, pwdNotAllNumTag)
	}
}

func TestPasswordValidationOnReset(t *testing.T) {
	validate := newTestValidator(t)

	rp := ResetUserPassword{Token: "tok", UID: "uid", Password: "weak!pass1", PasswordConfirm: "weak!pass1"}
	if tag := passwordErrTag(t, validate.Struct(rp)); tag != pwdComplexityTag {
		t.Errorf("ResetUserPassword: got tag %q, want %q", tag, pwdComplexityTag)
	}
}

func TestLoadCommonPasswords(t *testing.T) {
	origCommon := commonPasswords
	commonPasswords = nil
	defer func() { commonPasswords = origCommon }()

	LoadCommonPasswords(noopLogger{})

	if len(commonPasswords) == 0 {
		t.Fatal("no common passwords loaded")
	}
	if !sort.StringsAreSorted(commonPasswords) {
		t.Error("common passwords are not sorted")
	}
	idx := sort.SearchStrings(commonPasswords, "password")
	if idx >= len(commonPasswords) || commonPasswords[idx] != "password" {
		t.Error(`expected "password" to be in the wordlist`)
	}
}
