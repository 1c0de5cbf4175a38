package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/Abdulhakimkamal/otpas-hu-api/internal/models"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/repository"
	"github.com/Abdulhakimkamal/otpas-hu-api/internal/service"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/config"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/database"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/grading"
	"github.com/Abdulhakimkamal/otpas-hu-api/pkg/logger"
)

type AdminCommand struct {
	CreateUser CreateUserCommand `command:"create-user" description:"Create an account, an ADMIN by default."`
	Grade      GradeCommand      `command:"grade"       description:"Print the grade band for one or more scores."`
}

type CreateUserCommand struct {
	Email      string `long:"email"      required:"true" description:"Login email."`
	Password   string `long:"password"   required:"true" description:"Initial password, at least 8 characters." env:"OTPAS_ADMIN_PASSWORD"`
	FullName   string `long:"full-name"  required:"true" description:"Display name."`
	Role       string `long:"role"       default:"ADMIN" choice:"ADMIN" choice:"DEPARTMENT_HEAD" choice:"INSTRUCTOR" choice:"STUDENT" description:"Account role."`
	Department string `long:"department" description:"Department ID for non-admin accounts."`
}

func (cmd *CreateUserCommand) Execute(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database, logr)
	if err != nil {
		return err
	}
	defer db.Close()

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	departments := repository.NewDepartmentRepository(db)
	svc := service.NewUserService(users, sessions, departments, nil, logr)

	req := models.CreateUserRequest{
		Email:    strings.TrimSpace(cmd.Email),
		Password: cmd.Password,
		FullName: strings.TrimSpace(cmd.FullName),
		Role:     models.UserRole(cmd.Role),
	}
	if cmd.Department != "" {
		req.DepartmentID = &cmd.Department
	}

	user, err := svc.Create(ctx, req, service.RequestMeta{UserAgent: "otpas-admin"})
	if err != nil {
		return err
	}
	logr.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	fmt.Printf("created %s %s (%s)\n", user.Role, user.Email, user.ID)
	return nil
}

type GradeCommand struct {
	Args struct {
		Scores []string `positional-arg-name:"score" required:"1"`
	} `positional-args:"yes"`
}

func (cmd *GradeCommand) Execute(args []string) error {
	return printGrades(os.Stdout, cmd.Args.Scores)
}

func printGrades(out io.Writer, raw []string) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tGRADE\tDESCRIPTION\tCOLOR\tBACKGROUND")
	for _, s := range raw {
		score, ok := grading.ToNumber(s)
		if !ok {
			return fmt.Errorf("not a number: %q", s)
		}
		info := grading.Info(score)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			grading.FormatScore(score),
			info.Grade,
			info.Description,
			info.Color,
			grading.BgColor(string(info.Grade)),
		)
	}
	return w.Flush()
}
