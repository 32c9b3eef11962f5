package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/services"
)

type TransactionHandler struct {
	transactions *services.TransactionService
	shared       *services.SharedService
}

func NewTransactionHandler(transactions *services.TransactionService, shared *services.SharedService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, shared: shared}
}

// ============================================================================
// LANÇAMENTOS
// ============================================================================

func (h *TransactionHandler) List(c *gin.Context) {
	month, ok := parseMonth(c, "mes")
	if !ok {
		return
	}
	paid, ok := parseBool(c, "pago")
	if !ok {
		return
	}
	byInvoice, ok := parseBool(c, "por_fatura")
	if !ok {
		return
	}
	sharedOnly, ok := parseBool(c, "compartilhado")
	if !ok {
		return
	}
	q := services.TransactionQuery{
		Month:      month,
		ByInvoice:  byInvoice != nil && *byInvoice,
		Type:       c.Query("tipo"),
		CategoryID: c.Query("categoria"),
		CardID:     c.Query("cartao"),
		Paid:       paid,
		Search:     c.Query("busca"),
		SharedOnly: sharedOnly != nil && *sharedOnly,
	}
	list, err := h.transactions.List(c.Request.Context(), middleware.GetUserID(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *TransactionHandler) Get(c *gin.Context) {
	t, err := h.transactions.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// Create answers with every row created: one, or one per installment or
// recurrence.
func (h *TransactionHandler) Create(c *gin.Context) {
	var req models.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rows, err := h.transactions.Create(c.Request.Context(), middleware.GetUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rows)
}

func (h *TransactionHandler) Update(c *gin.Context) {
	var req models.TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	rows, err := h.transactions.Update(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Query("escopo"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	ids, err := h.transactions.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Query("escopo"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": ids})
}

func (h *TransactionHandler) SetPaid(c *gin.Context) {
	var req models.SetPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	t, err := h.transactions.SetPaid(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), *req.Paid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// ============================================================================
// COMPARTILHADO
// ============================================================================

func (h *TransactionHandler) SharedSummary(c *gin.Context) {
	month, ok := parseMonth(c, "mes")
	if !ok {
		return
	}
	summary, err := h.shared.Summary(c.Request.Context(), middleware.GetUserID(c), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *TransactionHandler) PaySplit(c *gin.Context) {
	var req models.PaySplitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}
	}
	t, err := h.shared.PaySplit(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *TransactionHandler) Settle(c *gin.Context) {
	var req models.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	month, err := models.ParseMonth(req.Month)
	if err != nil {
		bindError(c, err)
		return
	}
	result, err := h.shared.Settle(c.Request.Context(), middleware.GetUserID(c), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
