package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"crisp-academy/backend/internal/model"
)

// createAdmin creates an administrator or promotes the user owning email.
func (cli *commandLine) createAdmin(ctx context.Context, email, name, staffID, department, pwd string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	usr, err := cli.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	if usr != nil {
		usr.Role = model.RoleAdmin
		usr.PasswordHash = string(hash)
		usr.MustChangePassword = false
		if err := cli.users.Update(ctx, usr); err != nil {
			return err
		}
		cli.logger.Info("user promoted to admin", zap.String("email", email))
		fmt.Fprintf(cli.out, "%s is now an administrator\n", email)
		return nil
	}

	dept, err := cli.ensureDepartment(ctx, department)
	if err != nil {
		return err
	}
	usr = &model.User{
		Name:         strings.TrimSpace(name),
		StaffID:      strings.TrimSpace(staffID),
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleAdmin,
		DepartmentID: dept.DepartmentID,
	}
	if err := cli.users.Create(ctx, usr); err != nil {
		return err
	}
	cli.logger.Info("admin created", zap.String("email", email), zap.String("user_id", usr.UserID))
	fmt.Fprintf(cli.out, "administrator %s created\n", email)
	return nil
}

func (cli *commandLine) ensureDepartment(ctx context.Context, name string) (*model.Department, error) {
	name = strings.TrimSpace(name)
	dept, err := cli.departments.GetByName(ctx, name)
	if err == nil {
		return dept, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	dept = &model.Department{Name: name, IsActive: true}
	if err := cli.departments.Create(ctx, dept); err != nil {
		return nil, err
	}
	return dept, nil
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	usr, err := cli.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("no user with email %s", email)
		}
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	usr.PasswordHash = string(hash)
	usr.MustChangePassword = false
	if err := cli.users.Update(ctx, usr); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %s updated\n", usr.Email)
	return nil
}

func (cli *commandLine) seedTrivia(ctx context.Context, month string) error {
	t, err := cli.trivia.Seed(ctx, month, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "seeded %q with %d questions (%s)\n", t.Title, t.QuestionCount, t.ID)
	return nil
}
