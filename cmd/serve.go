package cmd

import (
	"ai_mentor_backend/internal/app"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		// 服务启动时默认不迁移，需显式开启
		cfg.AutoMigrate, _ = cmd.Flags().GetBool("auto-migrate")

		application, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer application.Close()
		return application.Run()
	},
}

func init() {
	serveCmd.Flags().Bool("auto-migrate", false, "Run database migrations before serving")
	rootCmd.Flags().Bool("auto-migrate", false, "Run database migrations before serving")
}
