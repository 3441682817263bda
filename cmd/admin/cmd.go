package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/term"

	"crisp-academy/backend/internal/model"
	"crisp-academy/backend/internal/service"
	"crisp-academy/backend/pkg/database"
)

const minPasswordLength = 8

var (
	readPasswordFunc = term.ReadPassword // mockable
	migrateUpFunc    = database.RunMigrations
	migrateDownFunc  = database.RollbackMigrations

	errHelp = errors.New("help provided")
)

type userStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Update(ctx context.Context, user *model.User) error
}

type departmentStore interface {
	Create(ctx context.Context, dept *model.Department) error
	GetByName(ctx context.Context, name string) (*model.Department, error)
}

type commandLine struct {
	sqlDB       *sql.DB
	users       userStore
	departments departmentStore
	trivia      service.TriviaService
	out         io.Writer
	logger      *zap.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate up|down [STEPS]                          - apply or roll back migrations")
	fmt.Fprintln(cli.out, "  createadmin -email EMAIL -name NAME -staffid ID [-department NAME]")
	fmt.Fprintln(cli.out, "                                                   - create or promote an administrator")
	fmt.Fprintln(cli.out, "  resetpassword -email EMAIL                       - set a user's password")
	fmt.Fprintln(cli.out, "  seedtrivia -month YYYY-MM                        - generate the trivia of a month")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createAdminCmd := flag.NewFlagSet("createadmin", flag.ContinueOnError)
	createAdminCmd.SetOutput(cli.out)
	createAdminEmail := createAdminCmd.String("email", "", "Login email. The password will be prompted next.")
	createAdminName := createAdminCmd.String("name", "", "Display name.")
	createAdminStaffID := createAdminCmd.String("staffid", "", "Staff id.")
	createAdminDept := createAdminCmd.String("department", "Administration", "Department, created when missing.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordCmd.SetOutput(cli.out)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	seedTriviaCmd := flag.NewFlagSet("seedtrivia", flag.ContinueOnError)
	seedTriviaCmd.SetOutput(cli.out)
	seedTriviaMonth := seedTriviaCmd.String("month", "", "Month as YYYY-MM.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])

	case "createadmin":
		if err := createAdminCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *createAdminEmail == "" || *createAdminName == "" || *createAdminStaffID == "" {
			createAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.createAdmin(ctx, *createAdminEmail, *createAdminName, *createAdminStaffID, *createAdminDept, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(ctx, *resetPasswordEmail, pwd)

	case "seedtrivia":
		if err := seedTriviaCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *seedTriviaMonth == "" {
			seedTriviaCmd.Usage()
			return errHelp
		}
		return cli.seedTrivia(ctx, *seedTriviaMonth)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(cli.out, "Usage: migrate up|down [STEPS]")
		return errHelp
	}
	switch args[0] {
	case "up":
		return migrateUpFunc(cli.sqlDB, cli.logger)
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("steps must be a positive number (got '%s')", args[1])
			}
			steps = n
		}
		return migrateDownFunc(cli.sqlDB, steps, cli.logger)
	default:
		return fmt.Errorf("%q: no such migrate command", args[0])
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(strings.TrimSpace(string(pwd))) < minPasswordLength {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}
	return string(pwd), nil
}
