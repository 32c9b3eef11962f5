package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/services"
)

// PartnerHandler serves the partner link that shared expenses depend on.
type PartnerHandler struct {
	partners *services.PartnerService
}

func NewPartnerHandler(partners *services.PartnerService) *PartnerHandler {
	return &PartnerHandler{partners: partners}
}

func (h *PartnerHandler) GetPartner(c *gin.Context) {
	partner, err := h.partners.Get(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

// InviteUser sends a partner invitation by email.
func (h *PartnerHandler) InviteUser(c *gin.Context) {
	var req models.InvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	result, err := h.partners.Invite(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetInvitations returns the invitations the user sent.
func (h *PartnerHandler) GetInvitations(c *gin.Context) {
	invitations, err := h.partners.ListInvitations(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invitations)
}

// AcceptInvitation links the current user with the inviter.
func (h *PartnerHandler) AcceptInvitation(c *gin.Context) {
	var req models.AcceptInvitationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	partner, err := h.partners.Accept(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partner)
}

// CancelInvitation withdraws a pending invitation.
func (h *PartnerHandler) CancelInvitation(c *gin.Context) {
	if err := h.partners.Cancel(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// RemovePartner unlinks both users.
func (h *PartnerHandler) RemovePartner(c *gin.Context) {
	if err := h.partners.Unlink(c.Request.Context(), middleware.GetUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
