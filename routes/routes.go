package routes

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/LovationAdmin/financas-api/handlers"
	"github.com/LovationAdmin/financas-api/middleware"
	"github.com/LovationAdmin/financas-api/utils"
)

// Handlers groups every handler the router mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Partner     *handlers.PartnerHandler
	Category    *handlers.CategoryHandler
	Card        *handlers.CardHandler
	Transaction *handlers.TransactionHandler
	Points      *handlers.PointsHandler
	Goal        *handlers.GoalHandler
	Report      *handlers.ReportHandler
	WS          *handlers.WSHandler
}

// Options are the router settings taken from config.
type Options struct {
	FrontendURL        string
	RateLimitPerMinute int
	Logger             *slog.Logger
}

// NewRouter builds the gin engine with CORS, request logging, rate limiting,
// the public routes and the authenticated /api group.
func NewRouter(opts Options, tokens *utils.TokenIssuer, h Handlers) *gin.Engine {
	utils.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	router.Use(middleware.RequestLogger(logger))

	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(opts.FrontendURL),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if opts.RateLimitPerMinute > 0 {
		router.Use(middleware.RateLimiter(opts.RateLimitPerMinute, time.Minute))
	}

	router.GET("/health", handlers.Health)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	api := router.Group("/api")
	SetupAuthRoutes(api, h.Auth)

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.GET("/ws", h.WS.HandleWS)
		SetupUserRoutes(protected, h.User, h.Partner)
		SetupCategoryRoutes(protected, h.Category)
		SetupCardRoutes(protected, h.Card)
		SetupTransactionRoutes(protected, h.Transaction)
		SetupPointsRoutes(protected, h.Points)
		SetupGoalRoutes(protected, h.Goal)
		SetupReportRoutes(protected, h.Report)
	}
	return router
}

// allowedOrigins accepts a comma separated FRONTEND_URL.
func allowedOrigins(frontendURL string) []string {
	var origins []string
	for _, o := range strings.Split(frontendURL, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}
	return origins
}

// SetupAuthRoutes sets up the public authentication routes.
func SetupAuthRoutes(rg *gin.RouterGroup, h *handlers.AuthHandler) {
	rg.POST("/auth/signup", h.Signup)
	rg.POST("/auth/login", h.Login)
	rg.POST("/auth/refresh", h.Refresh)
	rg.POST("/auth/logout", h.Logout)
}

// SetupUserRoutes sets up the profile, 2FA, subscription and partner routes.
func SetupUserRoutes(rg *gin.RouterGroup, h *handlers.UserHandler, p *handlers.PartnerHandler) {
	rg.GET("/usuarios/me", h.GetProfile)
	rg.PUT("/usuarios/me", h.UpdateProfile)
	rg.DELETE("/usuarios/me", h.DeleteAccount)
	rg.POST("/usuarios/me/senha", h.ChangePassword)
	rg.POST("/usuarios/me/2fa/setup", h.Setup2FA)
	rg.POST("/usuarios/me/2fa/verify", h.Verify2FA)
	rg.POST("/usuarios/me/2fa/disable", h.Disable2FA)

	rg.GET("/usuarios/subscription", h.GetSubscription)
	rg.PUT("/usuarios/subscription", h.UpdateSubscription)

	rg.GET("/usuarios/parceiro", p.GetPartner)
	rg.DELETE("/usuarios/parceiro", p.RemovePartner)
	rg.POST("/usuarios/parceiro/convite", p.InviteUser)
	rg.POST("/usuarios/parceiro/aceitar", p.AcceptInvitation)
	rg.GET("/usuarios/parceiro/convites", p.GetInvitations)
	rg.DELETE("/usuarios/parceiro/convites/:id", p.CancelInvitation)
}

func SetupCategoryRoutes(rg *gin.RouterGroup, h *handlers.CategoryHandler) {
	rg.GET("/categorias", h.List)
	rg.POST("/categorias", h.Create)
	rg.PUT("/categorias/:id", h.Update)
	rg.DELETE("/categorias/:id", h.Delete)
}

// SetupCardRoutes sets up the cards and their invoices.
func SetupCardRoutes(rg *gin.RouterGroup, h *handlers.CardHandler) {
	rg.GET("/cartoes", h.List)
	rg.POST("/cartoes", h.Create)
	rg.GET("/cartoes/:id", h.Get)
	rg.PUT("/cartoes/:id", h.Update)
	rg.DELETE("/cartoes/:id", h.Delete)

	rg.GET("/cartoes/:id/faturas", h.ListInvoices)
	rg.GET("/cartoes/:id/faturas/:mes", h.GetInvoice)
	rg.POST("/cartoes/:id/faturas/:mes/pagamentos", h.AddPayment)
	rg.DELETE("/cartoes/:id/faturas/:mes/pagamentos/:paymentId", h.DeletePayment)
	rg.POST("/cartoes/:id/faturas/:mes/fechar", h.CloseInvoice)
	rg.POST("/cartoes/:id/faturas/:mes/reabrir", h.ReopenInvoice)
}

// SetupTransactionRoutes sets up lançamentos and the compartilhado endpoints.
func SetupTransactionRoutes(rg *gin.RouterGroup, h *handlers.TransactionHandler) {
	rg.GET("/lancamentos", h.List)
	rg.POST("/lancamentos", h.Create)

	rg.GET("/lancamentos/compartilhado", h.SharedSummary)
	rg.POST("/lancamentos/compartilhado/acertar", h.Settle)
	rg.POST("/lancamentos/compartilhado/:id/pagar", h.PaySplit)

	rg.GET("/lancamentos/:id", h.Get)
	rg.PUT("/lancamentos/:id", h.Update)
	rg.DELETE("/lancamentos/:id", h.Delete)
	rg.PATCH("/lancamentos/:id/pago", h.SetPaid)
}

func SetupPointsRoutes(rg *gin.RouterGroup, h *handlers.PointsHandler) {
	rg.GET("/pontos", h.List)
	rg.POST("/pontos", h.Create)
	rg.DELETE("/pontos/:id", h.Delete)
}

func SetupGoalRoutes(rg *gin.RouterGroup, h *handlers.GoalHandler) {
	rg.GET("/metas", h.List)
	rg.POST("/metas", h.Create)
	rg.GET("/metas/:id", h.Get)
	rg.PUT("/metas/:id", h.Update)
	rg.DELETE("/metas/:id", h.Delete)
	rg.POST("/metas/:id/aportes", h.AddContribution)
	rg.DELETE("/metas/:id/aportes/:aporteId", h.DeleteContribution)
}

// SetupReportRoutes sets up the reports, the export and the dashboard.
func SetupReportRoutes(rg *gin.RouterGroup, h *handlers.ReportHandler) {
	rg.GET("/relatorios/resumo", h.Summary)
	rg.GET("/relatorios/exportar", h.Export)
	rg.GET("/dashboard", h.Dashboard)
}
