package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/LovationAdmin/financas-api/events"
	"github.com/LovationAdmin/financas-api/services"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Maintenance jobs",
}

var schedulerRunOnceCmd = &cobra.Command{
	Use:   "run-once",
	Short: "Close due invoices, queue reminders and clean expired rows once",
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, closeRepo, err := openRepository(cfg)
		if err != nil {
			return err
		}
		defer closeRepo()

		var pub events.Publisher = events.Noop{}
		broker, err := openBroker(cfg)
		if err != nil {
			return err
		}
		if broker != nil {
			defer broker.Close()
			pub = broker
		}

		invoices := services.NewInvoiceService(repo, pub)
		scheduler := services.NewScheduler(repo, invoices, pub, cfg.SchedulerInterval, cfg.ReminderDaysAhead)
		stats, err := scheduler.RunOnce(cmd.Context())
		slog.Info("maintenance done",
			"invoices_closed", stats.InvoicesClosed,
			"reminders", stats.RemindersSent,
			"sessions_deleted", stats.SessionsDeleted,
			"invitations_deleted", stats.InvitationsDeleted,
		)
		return err
	},
}

func init() {
	schedulerCmd.AddCommand(schedulerRunOnceCmd)
	rootCmd.AddCommand(schedulerCmd)
}
