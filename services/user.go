package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

var ErrWrongPassword = models.NewValidationError("current_password", "is incorrect")

type UserService struct {
	clock
	repo    repository.Repository
	secrets *utils.SecretBox
	pub     events.Publisher
}

func NewUserService(repo repository.Repository, secrets *utils.SecretBox, pub events.Publisher) *UserService {
	return &UserService{repo: repo, secrets: secrets, pub: pub}
}

func (s *UserService) Get(ctx context.Context, userID string) (*models.User, error) {
	return s.repo.GetUserByID(ctx, userID)
}

func (s *UserService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, models.NewValidationError("name", "cannot be empty")
	}
	user.Name = name
	user.Avatar = strings.TrimSpace(req.Avatar)
	user.UpdatedAt = s.Now()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password and signs out every other session.
func (s *UserService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if !utils.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		utils.LogAuthAction("change_password", user.Email, false)
		return ErrWrongPassword
	}
	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.Now()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if err := s.repo.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	utils.LogAuthAction("change_password", user.Email, true)
	return nil
}

// ============================================================================
// 2FA
// ============================================================================

// SetupTOTP generates a new secret. It only takes effect after VerifyTOTP.
func (s *UserService) SetupTOTP(ctx context.Context, userID string) (*models.TOTPSetupResponse, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.TOTPEnabled {
		return nil, fmt.Errorf("%w: 2FA already enabled", models.ErrConflict)
	}
	secret, url, err := utils.GenerateTOTPSecret(user.Email)
	if err != nil {
		return nil, fmt.Errorf("generate 2FA secret: %w", err)
	}
	sealed, err := s.secrets.Seal(secret)
	if err != nil {
		return nil, fmt.Errorf("seal 2FA secret: %w", err)
	}
	user.TOTPSecret = sealed
	user.UpdatedAt = s.Now()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &models.TOTPSetupResponse{Secret: secret, QRCode: url}, nil
}

func (s *UserService) VerifyTOTP(ctx context.Context, userID, code string) error {
	return s.toggleTOTP(ctx, userID, code, true)
}

func (s *UserService) DisableTOTP(ctx context.Context, userID, code string) error {
	return s.toggleTOTP(ctx, userID, code, false)
}

func (s *UserService) toggleTOTP(ctx context.Context, userID, code string, enable bool) error {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == "" {
		return fmt.Errorf("%w: 2FA setup not started", models.ErrConflict)
	}
	if user.TOTPEnabled == enable {
		return nil
	}
	secret, err := s.secrets.Open(user.TOTPSecret)
	if err != nil {
		return fmt.Errorf("open 2FA secret: %w", err)
	}
	if !utils.VerifyTOTP(secret, code) {
		return models.NewValidationError("code", "invalid 2FA code")
	}
	user.TOTPEnabled = enable
	if !enable {
		user.TOTPSecret = ""
	}
	user.UpdatedAt = s.Now()
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	utils.LogAuthAction("2fa_toggle", user.Email, true)
	return nil
}

// Delete removes the account and everything it owns. The partner's shared rows
// stop being shared.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	partnerID, err := partnerOf(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	utils.LogDataAction("user", "delete", userID, userID)
	if partnerID != "" {
		publish(ctx, s.pub, events.New(events.PartnerUnlinked, userID, userID, partnerID))
	}
	return nil
}

// ============================================================================
// SUBSCRIPTION
// ============================================================================

func (s *UserService) Subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	cards, err := s.repo.CountCards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count cards: %w", err)
	}
	goals, err := s.repo.CountGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count goals: %w", err)
	}
	sub := models.SubscriptionFor(user, s.Now(), models.SubscriptionUsage{Cards: cards, Goals: goals})
	return &sub, nil
}

// UpdateSubscription records a plan change. Premium time is added on top of what
// is left of the current period.
func (s *UserService) UpdateSubscription(ctx context.Context, userID string, req models.UpdateSubscriptionRequest) (*models.Subscription, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	now := s.Now()
	switch req.Plan {
	case models.PlanPremium:
		if req.Months < 1 {
			return nil, models.NewValidationError("months", "must be at least 1 for the premium plan")
		}
		start := now
		if user.Plan == models.PlanPremium && user.PlanExpiresAt != nil && user.PlanExpiresAt.After(now) {
			start = *user.PlanExpiresAt
		}
		expires := start.AddDate(0, req.Months, 0)
		user.Plan = models.PlanPremium
		user.PlanExpiresAt = &expires
	case models.PlanFree:
		user.Plan = models.PlanFree
		user.PlanExpiresAt = nil
	default:
		return nil, models.NewValidationError("plan", "must be free or premium")
	}
	user.UpdatedAt = now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	utils.LogDataAction("subscription", "update", userID, userID)
	return s.Subscription(ctx, userID)
}
