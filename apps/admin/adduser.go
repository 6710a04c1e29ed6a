package main

import (
	"context"
	"time"

	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core"
	"github.com/Digital-Minimalist-Lab/30-day-cohorts-webapp/core/user"
)

// addUser updates or creates a user.User. The repository is used directly
// so bootstrapping an account does not send a welcome email.
func (cli *commandLine) addUser(name, email, pwd string, isStaff bool) error {
	ctx := context.Background()
	now := time.Now().UTC()
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Email:               email,
			EmailDailyReminder:  true,
			EmailWeeklyReminder: true,
			CreatedAt:           now,
		}
	}
	if name != "" {
		usr.Name = name
	}
	if isStaff {
		usr.IsStaff = true
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if usr.ID == 0 {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
