package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/repository"
	"github.com/LovationAdmin/financas-api/utils"
)

// Mailer is the part of EmailService the partner flow needs.
type Mailer interface {
	InvitationLink(token string) string
	SendPartnerInvitation(ctx context.Context, to, inviterName, token string) error
}

// InvitationResult is returned to the inviter. The link is shown so it can be
// shared by hand when email is not configured.
type InvitationResult struct {
	models.Invitation
	Token string `json:"token"`
	Link  string `json:"link"`
}

type PartnerService struct {
	clock
	repo   repository.Repository
	mailer Mailer
	pub    events.Publisher
}

func NewPartnerService(repo repository.Repository, mailer Mailer, pub events.Publisher) *PartnerService {
	return &PartnerService{repo: repo, mailer: mailer, pub: pub}
}

// Get returns the linked partner or ErrNotFound.
func (s *PartnerService) Get(ctx context.Context, userID string) (*models.PublicUser, error) {
	partnerID, err := partnerOf(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	if partnerID == "" {
		return nil, fmt.Errorf("%w: no partner linked", models.ErrNotFound)
	}
	partner, err := s.repo.GetUserByID(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("load partner: %w", err)
	}
	p := partner.Public()
	return &p, nil
}

func (s *PartnerService) ListInvitations(ctx context.Context, userID string) ([]models.Invitation, error) {
	return s.repo.ListInvitations(ctx, userID)
}

func (s *PartnerService) Invite(ctx context.Context, userID string, req models.InvitationRequest) (*InvitationResult, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == strings.ToLower(user.Email) {
		return nil, models.NewValidationError("email", "you cannot invite yourself")
	}
	if user.HasPartner() {
		return nil, fmt.Errorf("%w: a partner is already linked", models.ErrConflict)
	}

	now := s.Now()
	_, err = s.repo.FindPendingInvitation(ctx, userID, email, now)
	if err == nil {
		return nil, fmt.Errorf("%w: an invitation is already pending for this email", models.ErrConflict)
	}
	if !errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("find invitation: %w", err)
	}

	inv := &models.Invitation{
		ID:        newID(),
		InviterID: userID,
		Email:     email,
		Token:     uuid.NewString(),
		Status:    models.InvitationPending,
		ExpiresAt: now.Add(models.InvitationTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateInvitation(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	result := &InvitationResult{Invitation: *inv, Token: inv.Token}
	if s.mailer != nil {
		result.Link = s.mailer.InvitationLink(inv.Token)
		// A failed email does not undo the invitation.
		if err := s.mailer.SendPartnerInvitation(ctx, email, user.Name, inv.Token); err != nil {
			slog.WarnContext(ctx, "invitation email not sent", "to", utils.MaskEmail(email), "error", err)
		}
	}
	utils.LogDataAction("invitation", "create", inv.ID, userID)
	return result, nil
}

// Accept links the invitee (userID) with the inviter.
func (s *PartnerService) Accept(ctx context.Context, userID string, req models.AcceptInvitationRequest) (*models.PublicUser, error) {
	now := s.Now()
	inv, err := s.repo.GetInvitationByToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return nil, err
	}
	if !inv.Usable(now) {
		return nil, fmt.Errorf("%w: invitation expired or already used", models.ErrNotFound)
	}
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(user.Email, inv.Email) {
		return nil, fmt.Errorf("%w: invitation was sent to another email", models.ErrForbidden)
	}
	if inv.InviterID == userID {
		return nil, models.NewValidationError("token", "you cannot accept your own invitation")
	}

	if err := s.repo.LinkPartners(ctx, inv.InviterID, userID, inv.ID, now); err != nil {
		if errors.Is(err, models.ErrConflict) {
			return nil, fmt.Errorf("%w: one of the users already has a partner", models.ErrConflict)
		}
		return nil, fmt.Errorf("link partners: %w", err)
	}
	utils.LogDataAction("partner", "link", inv.InviterID, userID)
	publish(ctx, s.pub, events.New(events.PartnerLinked, inv.ID, userID, inv.InviterID))

	inviter, err := s.repo.GetUserByID(ctx, inv.InviterID)
	if err != nil {
		return nil, fmt.Errorf("load inviter: %w", err)
	}
	p := inviter.Public()
	return &p, nil
}

// Unlink removes the link on both sides. Shared rows keep their splits.
func (s *PartnerService) Unlink(ctx context.Context, userID string) error {
	partnerID, err := partnerOf(ctx, s.repo, userID)
	if err != nil {
		return err
	}
	if partnerID == "" {
		return fmt.Errorf("%w: no partner linked", models.ErrNotFound)
	}
	if err := s.repo.UnlinkPartners(ctx, userID, partnerID, s.Now()); err != nil {
		return fmt.Errorf("unlink partners: %w", err)
	}
	utils.LogDataAction("partner", "unlink", partnerID, userID)
	publish(ctx, s.pub, events.New(events.PartnerUnlinked, partnerID, userID, partnerID))
	return nil
}

// Cancel withdraws a pending invitation sent by userID.
func (s *PartnerService) Cancel(ctx context.Context, userID, invitationID string) error {
	invitations, err := s.repo.ListInvitations(ctx, userID)
	if err != nil {
		return fmt.Errorf("list invitations: %w", err)
	}
	for _, inv := range invitations {
		if inv.ID != invitationID {
			continue
		}
		if inv.Status != models.InvitationPending {
			return fmt.Errorf("%w: invitation is no longer pending", models.ErrConflict)
		}
		if err := s.repo.SetInvitationStatus(ctx, inv.ID, models.InvitationCancelled, s.Now()); err != nil {
			return fmt.Errorf("cancel invitation: %w", err)
		}
		utils.LogDataAction("invitation", "cancel", inv.ID, userID)
		return nil
	}
	return fmt.Errorf("%w: invitation", models.ErrNotFound)
}
