package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/studentbuddy/backend/core"
	"github.com/studentbuddy/backend/core/user"
)

// createSuperAdmin creates a super admin account, or promotes the
// existing account and resets its password.
func (cli *commandLine) createSuperAdmin(email, name, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Email:     email,
			FullName:  name,
			Role:      user.RoleSuperAdmin,
			IsActive:  true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	usr.Role = user.RoleSuperAdmin
	usr.IsActive = true
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = now
	_, err = cli.usrRepo.UpdateUser(ctx, usr)
	return err
}
