package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/handlers"
	"github.com/LovationAdmin/financas-api/routes"
	"github.com/LovationAdmin/financas-api/services"
	"github.com/LovationAdmin/financas-api/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long:  `Starts the REST API and websocket hub. The maintenance scheduler runs in-process when SCHEDULER_ENABLED is true.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	ws := handlers.NewWSHandler()
	defer ws.Close()

	var pub events.Publisher = ws
	broker, err := openBroker(cfg)
	if err != nil {
		return err
	}
	if broker != nil {
		defer broker.Close()
		pub = events.Multi{ws, broker}
	} else {
		slog.Info("AMQP_URL not set: reminders are not queued")
	}

	tokens := utils.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL)
	secrets := utils.NewSecretBox(cfg.DataEncryptionKey)
	mail := services.NewEmailService(cfg.ResendAPIKey, cfg.FromEmail, cfg.FrontendURL)

	invoices := services.NewInvoiceService(repo, pub)
	goals := services.NewGoalService(repo, pub)
	shared := services.NewSharedService(repo, pub)
	points := services.NewPointsService(repo, pub)
	reports := services.NewReportService(repo)

	router := routes.NewRouter(routes.Options{
		FrontendURL:        cfg.FrontendURL,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             slog.Default(),
	}, tokens, routes.Handlers{
		Auth:        handlers.NewAuthHandler(services.NewAuthService(repo, tokens, secrets, cfg.RefreshTokenTTL)),
		User:        handlers.NewUserHandler(services.NewUserService(repo, secrets, pub)),
		Partner:     handlers.NewPartnerHandler(services.NewPartnerService(repo, mail, pub)),
		Category:    handlers.NewCategoryHandler(services.NewCategoryService(repo, pub)),
		Card:        handlers.NewCardHandler(services.NewCardService(repo, pub), invoices),
		Transaction: handlers.NewTransactionHandler(services.NewTransactionService(repo, pub), shared),
		Points:      handlers.NewPointsHandler(points),
		Goal:        handlers.NewGoalHandler(goals),
		Report: handlers.NewReportHandler(
			reports,
			services.NewExportService(repo, reports),
			services.NewDashboardService(repo, invoices, goals, shared, points),
		),
		WS: ws,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		utils.LogStartup("financas-api", handlers.Version, cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		slog.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.SchedulerEnabled {
		scheduler := services.NewScheduler(repo, invoices, pub, cfg.SchedulerInterval, cfg.ReminderDaysAhead)
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}
	return g.Wait()
}
