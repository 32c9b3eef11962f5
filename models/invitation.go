package models

import (
	"time"
)

const (
	InvitationPending   = "pending"
	InvitationAccepted  = "accepted"
	InvitationCancelled = "cancelled"
)

// InvitationTTL is how long a partner invitation token stays valid.
const InvitationTTL = 7 * 24 * time.Hour

// Invitation asks another user to become the partner for shared expenses.
type Invitation struct {
	ID        string    `json:"id"`
	InviterID string    `json:"inviter_id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Invitation) Usable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}

type InvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type AcceptInvitationRequest struct {
	Token string `json:"token" binding:"required"`
}
