package cli

import (
	"context"
	"fmt"
	"strings"

	"crm-service/internal/model"
	"crm-service/pkg/database"
	"crm-service/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	userEmail    string
	userName     string
	userPassword string
	userRole     string
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a staff account",
	Long: `Create a staff account that can log in to the API.

Examples:
  crm create-user --email admin@agency.test --name Admin --password s3cret-pass --role admin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.GetLogger()
		db, err := openDB(appConfig, log)
		if err != nil {
			return err
		}
		defer database.Close()

		u, err := createUser(cmd.Context(), db, userEmail, userName, userPassword, userRole)
		if err != nil {
			return err
		}
		log.Info("Staff user created", zap.String("user_id", u.ID), zap.String("role", u.Role))
		fmt.Fprintf(cmd.OutOrStdout(), "created %s user %s (%s)\n", u.Role, u.Email, u.ID)
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&userEmail, "email", "", "Login email")
	createUserCmd.Flags().StringVar(&userName, "name", "", "Display name")
	createUserCmd.Flags().StringVar(&userPassword, "password", "", "Password (min 8 characters)")
	createUserCmd.Flags().StringVar(&userRole, "role", model.RoleStaff, "Role (admin or staff)")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")
}

func createUser(ctx context.Context, db *gorm.DB, email, name, password, role string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q", email)
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}
	if role != model.RoleAdmin && role != model.RoleStaff {
		return nil, fmt.Errorf("unknown role %q", role)
	}
	if name == "" {
		name = email
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &model.User{Name: name, Email: email, PasswordHash: string(hash), Role: role}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return u, nil
}
