package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/admission-api/internal/models"
	"github.com/noah-isme/admission-api/internal/repository"
	"github.com/noah-isme/admission-api/internal/service"
	"github.com/noah-isme/admission-api/pkg/config"
	"github.com/noah-isme/admission-api/pkg/database"
	"github.com/noah-isme/admission-api/pkg/logger"
)

const usage = `usage: admissionctl <command> [flags]

commands:
  generate-referral-codes -count N
  create-staff -username U -email E -password P [-first-name F] [-last-name L] [-admin]
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch os.Args[1] {
	case "generate-referral-codes":
		err = generateReferralCodes(ctx, cfg, logr, os.Args[2:])
	case "create-staff":
		err = createStaff(ctx, cfg, logr, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		os.Exit(1)
	}
}

func generateReferralCodes(ctx context.Context, cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("generate-referral-codes", flag.ExitOnError)
	count := fs.Int("count", 0, "number of codes to generate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *count <= 0 {
		return fmt.Errorf("-count must be positive")
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewReferralService(repository.NewReferralRepository(db), repository.NewAccountRepository(db), nil, nil, service.NewValidator(), logr)
	codes, err := svc.Generate(ctx, *count, service.Actor{})
	if err != nil {
		return err
	}
	for _, code := range codes {
		fmt.Println(code)
	}
	return nil
}

func createStaff(ctx context.Context, cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("create-staff", flag.ExitOnError)
	username := fs.String("username", "", "login name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "initial password")
	firstName := fs.String("first-name", "", "first name")
	lastName := fs.String("last-name", "", "last name")
	admin := fs.Bool("admin", false, "grant the admin role instead of staff")
	if err := fs.Parse(args); err != nil {
		return err
	}

	role := models.RoleStaff
	if *admin {
		role = models.RoleAdmin
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := service.NewAuthService(repository.NewAccountRepository(db), service.NewValidator(), logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
	})
	account, err := svc.CreateStaff(ctx, models.CreateStaffRequest{
		Username:  *username,
		Email:     *email,
		FirstName: *firstName,
		LastName:  *lastName,
		Password:  *password,
		Role:      role,
	})
	if err != nil {
		return err
	}
	fmt.Printf("created %s account %s (%s)\n", account.Role, account.Username, account.ID)
	return nil
}
