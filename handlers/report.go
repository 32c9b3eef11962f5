package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/models"
	"github.com/LovationAdmin/financas-api/services"
)

type ReportHandler struct {
	reports   *services.ReportService
	exports   *services.ExportService
	dashboard *services.DashboardService
}

func NewReportHandler(reports *services.ReportService, exports *services.ExportService, dashboard *services.DashboardService) *ReportHandler {
	return &ReportHandler{reports: reports, exports: exports, dashboard: dashboard}
}

// reportQuery reads ?inicio=YYYY-MM&fim=YYYY-MM&tipo=.
func reportQuery(c *gin.Context) (models.ReportQuery, bool) {
	var q models.ReportQuery
	start, ok := parseMonth(c, "inicio")
	if !ok {
		return q, false
	}
	end, ok := parseMonth(c, "fim")
	if !ok {
		return q, false
	}
	if start != nil {
		q.Start = *start
	}
	if end != nil {
		q.End = *end
	}
	q.Type = c.Query("tipo")
	if q.Type != "" && q.Type != models.TypeIncome && q.Type != models.TypeExpense {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tipo must be receita or despesa"})
		return q, false
	}
	return q, true
}

func (h *ReportHandler) Summary(c *gin.Context) {
	q, ok := reportQuery(c)
	if !ok {
		return
	}
	report, err := h.reports.Build(c.Request.Context(), middleware.GetUserID(c), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *ReportHandler) Export(c *gin.Context) {
	q, ok := reportQuery(c)
	if !ok {
		return
	}
	out, err := h.exports.Export(c.Request.Context(), middleware.GetUserID(c), c.Query("formato"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.Filename))
	c.Data(http.StatusOK, out.ContentType, out.Body)
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	month, ok := parseMonth(c, "mes")
	if !ok {
		return
	}
	d, err := h.dashboard.Get(c.Request.Context(), middleware.GetUserID(c), month)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
