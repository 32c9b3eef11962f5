package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

var (
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	ErrTOTPRequired       = fmt.Errorf("%w: 2FA code required", models.ErrUnauthorized)
	ErrInvalidTOTP        = fmt.Errorf("%w: invalid 2FA code", models.ErrUnauthorized)
	ErrInvalidSession     = fmt.Errorf("%w: invalid or expired refresh token", models.ErrUnauthorized)
)

type AuthService struct {
	clock
	repo       repository.Repository
	tokens     *utils.TokenIssuer
	secrets    *utils.SecretBox
	refreshTTL time.Duration
}

func NewAuthService(repo repository.Repository, tokens *utils.TokenIssuer, secrets *utils.SecretBox, refreshTTL time.Duration) *AuthService {
	return &AuthService{repo: repo, tokens: tokens, secrets: secrets, refreshTTL: refreshTTL}
}

// Signup creates the account with the default categories and signs it in.
func (s *AuthService) Signup(ctx context.Context, req models.SignupRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "cannot be empty")
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.Now()
	user := &models.User{
		ID:           newID(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Plan:         models.PlanFree,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	categories := make([]models.Category, 0, len(models.DefaultCategories))
	for _, c := range models.DefaultCategories {
		categories = append(categories, models.Category{
			ID:        newID(),
			UserID:    user.ID,
			Name:      c.Name,
			Type:      c.Type,
			Color:     c.Color,
			Icon:      c.Icon,
			CreatedAt: now,
		})
	}

	if err := s.repo.CreateUser(ctx, user, categories); err != nil {
		utils.LogAuthAction("signup", email, false)
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", models.ErrConflict)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	utils.LogAuthAction("signup", email, true)
	return s.issue(ctx, user)
}

// Login checks the password and, when enabled, the TOTP code.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.repo.GetUserByEmail(ctx, strings.TrimSpace(req.Email))
	if errors.Is(err, models.ErrNotFound) {
		utils.LogAuthAction("login", req.Email, false)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		utils.LogAuthAction("login", req.Email, false)
		return nil, ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		if req.TOTPCode == "" {
			return nil, ErrTOTPRequired
		}
		secret, err := s.secrets.Open(user.TOTPSecret)
		if err != nil {
			return nil, fmt.Errorf("open 2FA secret: %w", err)
		}
		if !utils.VerifyTOTP(secret, req.TOTPCode) {
			utils.LogAuthAction("login_2fa", req.Email, false)
			return nil, ErrInvalidTOTP
		}
	}

	utils.LogAuthAction("login", user.Email, true)
	return s.issue(ctx, user)
}

// Refresh rotates the refresh token: the old session is removed and a new pair
// is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*models.AuthResponse, error) {
	session, err := s.repo.GetSession(ctx, refreshToken)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err := s.repo.DeleteSession(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("delete session: %w", err)
	}
	if !session.ExpiresAt.After(s.Now()) {
		return nil, ErrInvalidSession
	}

	user, err := s.repo.GetUserByID(ctx, session.UserID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	utils.LogAuthAction("refresh", user.Email, true)
	return s.issue(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	return s.repo.DeleteSession(ctx, refreshToken)
}

func (s *AuthService) issue(ctx context.Context, user *models.User) (*models.AuthResponse, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	now := s.Now()
	session := &models.Session{
		ID:           newID(),
		UserID:       user.ID,
		RefreshToken: utils.GenerateRefreshToken(),
		ExpiresAt:    now.Add(s.refreshTTL),
		CreatedAt:    now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &models.AuthResponse{User: *user, AccessToken: access, RefreshToken: session.RefreshToken}, nil
}
