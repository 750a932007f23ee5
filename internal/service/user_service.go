package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"visit-tracker/internal/auth"
	"visit-tracker/internal/errs"
	"visit-tracker/internal/model"
	"visit-tracker/internal/repository"
	"visit-tracker/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"max=30"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"required,oneof=admin approver technician customer"`
}

type LoginUserRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	User         UserResponse `json:"user"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

var errBadCredentials = errs.New(errs.KindUnauthorized, "invalid email or password")

// UserService covers sign-in and account creation.
type UserService interface {
	CreateUser(ctx context.Context, actor auth.Principal, req CreateUserRequest) (UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, actor auth.Principal) (UserResponse, error)
}

type userService struct {
	users  repository.UserRepository
	audit  repository.AuditRepository
	tx     repository.TransactionManager
	tokens *auth.TokenManager
	now    func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(users repository.UserRepository, audit repository.AuditRepository, tx repository.TransactionManager, tokens *auth.TokenManager) UserService {
	return &userService{users: users, audit: audit, tx: tx, tokens: tokens, now: time.Now}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) UserResponse {
	return UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Phone:     user.Phone,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
}

func hashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

// ensureEmailFree fails with a conflict when an account already uses email.
func ensureEmailFree(ctx context.Context, users repository.UserRepository, email string) error {
	_, err := users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return errs.Conflict("an account with this email already exists")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil
	default:
		return fmt.Errorf("failed to check email: %w", err)
	}
}

func (s *userService) CreateUser(ctx context.Context, actor auth.Principal, req CreateUserRequest) (UserResponse, error) {
	if err := validation.Struct(req); err != nil {
		return UserResponse{}, err
	}
	email := normalizeEmail(req.Email)

	hashed, err := hashPassword(req.Password)
	if err != nil {
		return UserResponse{}, err
	}
	user := model.User{
		Name:     req.Name,
		Email:    email,
		Phone:    req.Phone,
		Password: hashed,
		Role:     req.Role,
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := ensureEmailFree(txCtx, s.users, email); err != nil {
			return err
		}
		if err := s.users.Create(txCtx, &user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return writeAudit(txCtx, s.audit, actor, model.ActionCreateUser, user.ID.String(), email, map[string]interface{}{
			"role": user.Role,
		})
	})
	if err != nil {
		return UserResponse{}, err
	}
	return mapToResponse(&user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (TokenResponse, error) {
	if err := validation.Struct(req); err != nil {
		return TokenResponse{}, err
	}
	user, err := s.users.GetByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return TokenResponse{}, errBadCredentials
	}
	if err != nil {
		return TokenResponse{}, fmt.Errorf("failed to load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return TokenResponse{}, errBadCredentials
	}
	return s.issue(ctx, user)
}

// Refresh exchanges a refresh token for a new pair. Each refresh token works once.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (TokenResponse, error) {
	if refreshToken == "" {
		return TokenResponse{}, errs.New(errs.KindUnauthorized, "refresh token is required")
	}
	hash := auth.HashRefreshToken(refreshToken)

	var out TokenResponse
	err := s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		stored, err := s.users.FindRefreshToken(txCtx, hash)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.New(errs.KindUnauthorized, "session expired; sign in again")
		}
		if err != nil {
			return fmt.Errorf("failed to load refresh token: %w", err)
		}
		if stored.RevokedAt != nil || !stored.ExpiresAt.After(s.now()) {
			return errs.New(errs.KindUnauthorized, "session expired; sign in again")
		}

		rows, err := s.users.RevokeRefreshToken(txCtx, hash, s.now())
		if err != nil {
			return fmt.Errorf("failed to revoke refresh token: %w", err)
		}
		if rows == 0 {
			return errs.New(errs.KindUnauthorized, "session expired; sign in again")
		}

		out, err = s.issue(txCtx, &stored.User)
		return err
	})
	if err != nil {
		return TokenResponse{}, err
	}
	return out, nil
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.users.RevokeRefreshToken(ctx, auth.HashRefreshToken(refreshToken), s.now()); err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	return nil
}

func (s *userService) Me(ctx context.Context, actor auth.Principal) (UserResponse, error) {
	user, err := s.users.GetByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserResponse{}, errs.New(errs.KindUnauthorized, "account no longer exists")
		}
		return UserResponse{}, fmt.Errorf("failed to load user: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) issue(ctx context.Context, user *model.User) (TokenResponse, error) {
	access, err := s.tokens.IssueAccess(auth.Principal{
		UserID: user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
	})
	if err != nil {
		return TokenResponse{}, err
	}

	refresh, hash, err := auth.NewRefreshToken()
	if err != nil {
		return TokenResponse{}, err
	}
	record := model.RefreshToken{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: s.now().Add(s.tokens.RefreshTTL()),
	}
	if err := s.users.SaveRefreshToken(ctx, &record); err != nil {
		return TokenResponse{}, fmt.Errorf("failed to save refresh token: %w", err)
	}

	return TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         mapToResponse(user),
	}, nil
}
