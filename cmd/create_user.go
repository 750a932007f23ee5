package cmd

import (
	"fmt"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/database"
	"visit-tracker/internal/model"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/service"

	"github.com/spf13/cobra"
)

var createUserFlags service.CreateUserRequest

// createUserCmd bootstraps staff accounts, typically the first admin.
var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a staff account",
	RunE:  runCreateUser,
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&createUserFlags.Name, "name", "", "display name")
	f.StringVar(&createUserFlags.Email, "email", "", "login email")
	f.StringVar(&createUserFlags.Phone, "phone", "", "phone number")
	f.StringVar(&createUserFlags.Password, "password", "", "initial password (8-72 characters)")
	f.StringVar(&createUserFlags.Role, "role", model.RoleAdmin, "admin, approver, technician or customer")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := database.NewConnection(cfg.DSN(), false)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	users := service.NewUserService(
		repository.NewUserRepository(db),
		repository.NewAuditRepository(db),
		repository.NewTransactionManager(db),
		tokens,
	)

	if createUserFlags.Name == "" {
		createUserFlags.Name = createUserFlags.Email
	}
	system := auth.Principal{Name: "cli", Role: model.RoleAdmin}
	user, err := users.CreateUser(cmd.Context(), system, createUserFlags)
	if err != nil {
		return err
	}
	log.Info("user created", "id", user.ID, "email", user.Email, "role", user.Role)
	return nil
}
