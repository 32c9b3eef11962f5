package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/LovationAdmin/financas-api/config"
	"github.com/LovationAdmin/financas-api/utils"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "financas",
	Short: "Personal and family finance tracker API",
	Long: `financas serves the REST API behind the finance dashboard: lançamentos,
categories, credit card invoices, shared expenses, points, goals and reports.
It also runs the maintenance scheduler and the reminder email worker.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}
		loaded, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		utils.SetupLogging(cfg.LogLevel, cfg.Production())
		return nil
	},
}

func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "financas.yaml", "config file path")
}
