package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/services"
)

type CardHandler struct {
	cards    *services.CardService
	invoices *services.InvoiceService
}

func NewCardHandler(cards *services.CardService, invoices *services.InvoiceService) *CardHandler {
	return &CardHandler{cards: cards, invoices: invoices}
}

// ============================================================================
// CARDS
// ============================================================================

func (h *CardHandler) List(c *gin.Context) {
	cards, err := h.cards.List(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cards)
}

func (h *CardHandler) Get(c *gin.Context) {
	card, err := h.cards.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) Create(c *gin.Context) {
	var req models.CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	card, err := h.cards.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, card)
}

func (h *CardHandler) Update(c *gin.Context) {
	var req models.CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	card, err := h.cards.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

func (h *CardHandler) Delete(c *gin.Context) {
	if err := h.cards.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ============================================================================
// INVOICES (FATURAS)
// ============================================================================

func (h *CardHandler) ListInvoices(c *gin.Context) {
	year := 0
	if raw := c.Query("ano"); raw != "" {
		y, err := strconv.Atoi(raw)
		if err != nil || y < 1900 || y > 9999 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ano must be a year"})
			return
		}
		year = y
	}
	list, err := h.invoices.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), year)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func invoiceMonth(c *gin.Context) (models.Month, bool) {
	m, err := models.ParseMonth(c.Param("mes"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mes must be YYYY-MM"})
		return models.Month{}, false
	}
	return m, true
}

func (h *CardHandler) GetInvoice(c *gin.Context) {
	m, ok := invoiceMonth(c)
	if !ok {
		return
	}
	detail, err := h.invoices.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CardHandler) AddPayment(c *gin.Context) {
	m, ok := invoiceMonth(c)
	if !ok {
		return
	}
	var req models.InvoicePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	detail, err := h.invoices.AddPayment(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), m, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *CardHandler) DeletePayment(c *gin.Context) {
	m, ok := invoiceMonth(c)
	if !ok {
		return
	}
	detail, err := h.invoices.DeletePayment(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), m, c.Param("paymentId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CardHandler) CloseInvoice(c *gin.Context) {
	m, ok := invoiceMonth(c)
	if !ok {
		return
	}
	detail, err := h.invoices.Close(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *CardHandler) ReopenInvoice(c *gin.Context) {
	m, ok := invoiceMonth(c)
	if !ok {
		return
	}
	detail, err := h.invoices.Reopen(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), m)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}
