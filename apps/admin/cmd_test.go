package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/cohort"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/schedule"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/survey"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
	inmemdb "github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/storage/database/inmem"
	testutil "github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/tests"
)

var (
	usrRepo user.Repository
	chtRepo cohort.Repository
	svyRepo survey.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db, _ := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	chtRepo = inmemdb.NewCohortRepository(db)
	svyRepo = inmemdb.NewSurveyRepository(db)

	// start CLI
	return &commandLine{
		conf:    core.Conf,
		usrRepo: usrRepo,
		chtRepo: chtRepo,
		chtSvc:  cohort.NewService(chtRepo, svyRepo, core.Conf, testutil.NewLogger()),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != nil {
				if tt.wantErr != nil {
					if err != tt.wantErr {
						t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
					}
				} else if tt.wantErrStr != "" {
					if err.Error() != tt.wantErrStr {
						t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
					}
				} else {
					t.Errorf("cli.run() unexpected error = %v", err)
				}
			}
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "awe", "awe@test.cd", "mdr", false, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.cd"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.cd"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, extra: extra{pwd: "lol"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			if extra, ok := tt.extra.(extra); ok {
				return []byte(extra.pwd), nil
			}
			return nil, nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				if err != nil {
					t.Fatalf("GetUserByID() failed, %v", err)
				}
				if bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash) {
					t.Error("failed to update new password")
				}
			} else if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)

	type extra struct {
		pwds []string // one per prompt
	}
	tests := []cliTest{
		{name: "no email", args: []string{"adduser", "-name", "Ada"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-email", "ada@test.cd"}, wantErr: errHelp},
		{name: "password mismatch", args: []string{"adduser", "-email", "ada@test.cd"}, extra: extra{pwds: []string{"s3cret!", "t3rces!"}}, wantErr: errPasswordMismatch},
		{name: "create", args: []string{"adduser", "-name", "Ada", "-email", "Ada@Test.CD", "-staff"}, extra: extra{pwds: []string{"s3cret!", "s3cret!"}}},
		{name: "update", args: []string{"adduser", "-name", "Ada L.", "-email", "ada@test.cd"}, extra: extra{pwds: []string{"n3w-pwd", "n3w-pwd"}}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		var prompts int
		readPasswordFunc = func(fd int) ([]byte, error) {
			extra, ok := tt.extra.(extra)
			if !ok || len(extra.pwds) == 0 {
				return nil, nil
			}
			pwd := extra.pwds[prompts%len(extra.pwds)]
			prompts++
			return []byte(pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if err != nil {
				if err != tt.wantErr {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
				return
			}

			usr, err := usrRepo.GetUserByEmail(context.Background(), "ada@test.cd")
			if err != nil {
				t.Fatalf("GetUserByEmail() failed, %v", err)
			}
			if !usr.IsActive {
				t.Error("expected an active user")
			}
			switch tt.name {
			case "create":
				if usr.Name != "Ada" {
					t.Errorf("Name = %q, want %q", usr.Name, "Ada")
				}
				if !usr.IsStaff {
					t.Error("expected a staff user")
				}
				if err := usr.CheckPassword("s3cret!"); err != nil {
					t.Error("failed to set password")
				}
			case "update":
				if usr.Name != "Ada L." {
					t.Errorf("Name = %q, want %q", usr.Name, "Ada L.")
				}
				if !usr.IsStaff {
					t.Error("staff access should be kept on update")
				}
				if err := usr.CheckPassword("n3w-pwd"); err != nil {
					t.Error("failed to update password")
				}
			}
		})
	}
}

func Test_commandLine_seed(t *testing.T) {
	ctx := context.Background()

	t.Run("bad start date", func(t *testing.T) {
		cli := setup(t)
		if err := cli.run([]string{"admin", "seed", "-start", "lol"}); err == nil {
			t.Error("cli.run() expected an error")
		}
	})

	t.Run("seed with explicit start", func(t *testing.T) {
		cli := setup(t)
		if err := cli.run([]string{"admin", "seed", "-start", "2026-09-07"}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}

		cohorts, err := chtRepo.QueryAllCohorts(ctx)
		if err != nil {
			t.Fatalf("QueryAllCohorts() failed, %v", err)
		}
		if len(cohorts) != 1 {
			t.Fatalf("len(cohorts) = %d, want 1", len(cohorts))
		}
		c := cohorts[0]
		if want := "30-Day Digital Declutter (starting 2026-09-07)"; c.Name != want {
			t.Errorf("Name = %q, want %q", c.Name, want)
		}
		if want := schedule.MustParseDate("2026-09-07"); !c.StartDate.Equal(want) {
			t.Errorf("StartDate = %s, want %s", c.StartDate, want)
		}
		if want := schedule.MustParseDate("2026-10-06"); !c.EndDate.Equal(want) {
			t.Errorf("EndDate = %s, want %s", c.EndDate, want)
		}
		if c.EnrollmentStartDate == nil || !c.EnrollmentStartDate.Equal(schedule.MustParseDate("2026-08-24")) {
			t.Errorf("EnrollmentStartDate = %v, want 2026-08-24", c.EnrollmentStartDate)
		}
		if c.EnrollmentEndDate != nil {
			t.Errorf("EnrollmentEndDate = %v, want nil", c.EnrollmentEndDate)
		}
		if !c.IsActive {
			t.Error("expected an active cohort")
		}

		entrySvy, err := svyRepo.GetSurveyBySlug(ctx, fmt.Sprintf("%d_entry", c.ID))
		if err != nil {
			t.Fatalf("GetSurveyBySlug() failed, %v", err)
		}
		if !c.OnboardingSurveyID.Valid || c.OnboardingSurveyID.Int != entrySvy.ID {
			t.Errorf("OnboardingSurveyID = %v, want %d", c.OnboardingSurveyID, entrySvy.ID)
		}

		daily, err := svyRepo.GetSurveyBySlug(ctx, fmt.Sprintf("%d_daily-checkin", c.ID))
		if err != nil {
			t.Fatalf("GetSurveyBySlug() failed, %v", err)
		}
		if len(daily.Sections) != 2 {
			t.Fatalf("len(Sections) = %d, want 2", len(daily.Sections))
		}
		if len(daily.Questions) != 6 {
			t.Errorf("daily check-in has %d questions, want 6", len(daily.Questions))
		}
		if q, ok := daily.Question("digital_slip_text"); !ok || q.IsRequired {
			t.Error("digital_slip_text should be optional")
		}

		rules, err := chtRepo.QueryCohortRules(ctx, c.ID)
		if err != nil {
			t.Fatalf("QueryCohortRules() failed, %v", err)
		}
		if len(rules) != 4 {
			t.Fatalf("len(rules) = %d, want 4", len(rules))
		}

		entry, err := chtRepo.GetRuleBySlug(ctx, c.ID, "entry")
		if err != nil {
			t.Fatalf("GetRuleBySlug() failed, %v", err)
		}
		if entry.Frequency != schedule.FrequencyOnce {
			t.Errorf("entry Frequency = %s, want %s", entry.Frequency, schedule.FrequencyOnce)
		}
		if entry.OffsetDays.Int != -7 || entry.OffsetFrom.String != string(schedule.CohortStart) {
			t.Errorf("entry offset = %d from %s, want -7 from %s", entry.OffsetDays.Int, entry.OffsetFrom.String, schedule.CohortStart)
		}
		if want := "Complete your entry survey"; entry.TitleTemplate != want {
			t.Errorf("entry TitleTemplate = %q, want %q", entry.TitleTemplate, want)
		}

		checkin, err := chtRepo.GetRuleBySlug(ctx, c.ID, "daily-checkin")
		if err != nil {
			t.Fatalf("GetRuleBySlug() failed, %v", err)
		}
		if checkin.Frequency != schedule.FrequencyDaily || checkin.IsCumulative {
			t.Errorf("daily check-in = %s cumulative=%v, want %s cumulative=false", checkin.Frequency, checkin.IsCumulative, schedule.FrequencyDaily)
		}
		if want := "Daily Check-in - {due_date}"; checkin.TitleTemplate != want {
			t.Errorf("daily check-in TitleTemplate = %q, want %q", checkin.TitleTemplate, want)
		}

		weekly, err := chtRepo.GetRuleBySlug(ctx, c.ID, "weekly-reflection")
		if err != nil {
			t.Fatalf("GetRuleBySlug() failed, %v", err)
		}
		if weekly.Frequency != schedule.FrequencyWeekly || !weekly.IsCumulative {
			t.Errorf("weekly reflection = %s cumulative=%v, want %s cumulative=true", weekly.Frequency, weekly.IsCumulative, schedule.FrequencyWeekly)
		}
		if !weekly.DayOfWeek.Valid || weekly.DayOfWeek.Int != int(schedule.Sunday) {
			t.Errorf("weekly DayOfWeek = %v, want %d", weekly.DayOfWeek, int(schedule.Sunday))
		}
	})

	t.Run("default start is next Monday", func(t *testing.T) {
		cli := setup(t)
		if err := cli.run([]string{"admin", "seed"}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}

		cohorts, err := chtRepo.QueryAllCohorts(ctx)
		if err != nil {
			t.Fatalf("QueryAllCohorts() failed, %v", err)
		}
		if len(cohorts) != 1 {
			t.Fatalf("len(cohorts) = %d, want 1", len(cohorts))
		}
		c := cohorts[0]
		today := schedule.Today(time.UTC)
		if !c.StartDate.After(today) {
			t.Errorf("StartDate = %s, want after %s", c.StartDate, today)
		}
		if c.StartDate.Weekday() != schedule.Monday {
			t.Errorf("StartDate.Weekday() = %v, want Monday", c.StartDate.Weekday())
		}
		if days := c.StartDate.DaysSince(today); days < 1 || days > 7 {
			t.Errorf("cohort starts in %d days, want within the coming week", days)
		}
	})
}

func Test_nextMonday(t *testing.T) {
	tests := []struct {
		name  string
		today string
		want  string
	}{
		{name: "on a Monday", today: "2026-09-07", want: "2026-09-14"},
		{name: "on a Tuesday", today: "2026-09-08", want: "2026-09-14"},
		{name: "on a Sunday", today: "2026-09-13", want: "2026-09-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nextMonday(schedule.MustParseDate(tt.today))
			if want := schedule.MustParseDate(tt.want); !got.Equal(want) {
				t.Errorf("nextMonday(%s) = %s, want %s", tt.today, got, want)
			}
		})
	}
}

func Test_commandLine_designImportExport(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	exported := filepath.Join(t.TempDir(), "design.json")

	// a cohort to export
	if err := cli.run([]string{"admin", "seed", "-start", "2026-09-07"}); err != nil {
		t.Fatalf("cli.run() failed, %v", err)
	}

	t.Run("export requires an existing cohort", func(t *testing.T) {
		if err := cli.run([]string{"admin", "exportdesign", "-cohort", "999", "-output", exported}); err != cohort.ErrNotFound {
			t.Errorf("cli.run() error = %v, wantErr %v", err, cohort.ErrNotFound)
		}
	})

	t.Run("no cohort id lists cohorts", func(t *testing.T) {
		if err := cli.run([]string{"admin", "exportdesign"}); err != nil {
			t.Errorf("cli.run() failed, %v", err)
		}
	})

	t.Run("export writes the document", func(t *testing.T) {
		if err := cli.run([]string{"admin", "exportdesign", "-cohort", "1", "-output", exported}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}
		data, err := os.ReadFile(exported)
		if err != nil {
			t.Fatalf("ReadFile() failed, %v", err)
		}
		var d cohort.Design
		if err = json.Unmarshal(data, &d); err != nil {
			t.Fatalf("Unmarshal() failed, %v", err)
		}
		if want := "30-Day Digital Declutter (starting 2026-09-07)"; d.Name != want {
			t.Errorf("Name = %q, want %q", d.Name, want)
		}
		if len(d.Surveys) != 4 || len(d.Schedules) != 4 {
			t.Errorf("len(Surveys) = %d, len(Schedules) = %d, want 4 and 4", len(d.Surveys), len(d.Schedules))
		}
	})

	t.Run("no file flag", func(t *testing.T) {
		if err := cli.run([]string{"admin", "importdesign"}); err != errHelp {
			t.Errorf("cli.run() error = %v, wantErr %v", err, errHelp)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if err := cli.run([]string{"admin", "importdesign", "-file", exported + ".nope"}); err == nil {
			t.Error("cli.run() expected an error")
		}
	})

	t.Run("validate only does not write", func(t *testing.T) {
		if err := cli.run([]string{"admin", "importdesign", "-file", exported, "-validate"}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}
		cohorts, err := chtRepo.QueryAllCohorts(ctx)
		if err != nil {
			t.Fatalf("QueryAllCohorts() failed, %v", err)
		}
		if len(cohorts) != 1 {
			t.Errorf("len(cohorts) = %d, want 1", len(cohorts))
		}
	})

	t.Run("invalid document is rejected", func(t *testing.T) {
		data, err := os.ReadFile(exported)
		if err != nil {
			t.Fatalf("ReadFile() failed, %v", err)
		}
		var d cohort.Design
		if err = json.Unmarshal(data, &d); err != nil {
			t.Fatalf("Unmarshal() failed, %v", err)
		}
		d.Name = ""
		broken, err := json.Marshal(d)
		if err != nil {
			t.Fatalf("Marshal() failed, %v", err)
		}
		file := filepath.Join(t.TempDir(), "broken.json")
		if err = os.WriteFile(file, broken, 0644); err != nil {
			t.Fatalf("WriteFile() failed, %v", err)
		}

		err = cli.run([]string{"admin", "importdesign", "-file", file})
		if err == nil || err.Error() != "invalid cohort design" {
			t.Errorf("cli.run() error = %v, want invalid cohort design", err)
		}
	})

	t.Run("reimport creates a second cohort", func(t *testing.T) {
		if err := cli.run([]string{"admin", "importdesign", "-file", exported, "-name", "Encore Run"}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}
		cohorts, err := chtRepo.QueryAllCohorts(ctx)
		if err != nil {
			t.Fatalf("QueryAllCohorts() failed, %v", err)
		}
		if len(cohorts) != 2 {
			t.Fatalf("len(cohorts) = %d, want 2", len(cohorts))
		}
		var found bool
		for _, c := range cohorts {
			found = found || c.Name == "Encore Run"
		}
		if !found {
			t.Error("expected a cohort named Encore Run")
		}
	})

	t.Run("update in place", func(t *testing.T) {
		if err := cli.run([]string{"admin", "importdesign", "-file", exported, "-cohort", "1", "-name", "Renamed Run"}); err != nil {
			t.Fatalf("cli.run() failed, %v", err)
		}
		c, err := chtRepo.GetCohortByID(ctx, 1)
		if err != nil {
			t.Fatalf("GetCohortByID() failed, %v", err)
		}
		if c.Name != "Renamed Run" {
			t.Errorf("Name = %q, want %q", c.Name, "Renamed Run")
		}
	})
}
