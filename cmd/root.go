package cmd

import (
	"fmt"

	"ai_mentor_backend/internal/app"
	"ai_mentor_backend/internal/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ai-mentor",
	Short: "AI mentor school platform backend",
	Long:  "AI mentor backend for multi-school learning: mastery tiers, homework grading and AI-assisted teaching.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "configs", "Directory containing config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(recomputeMasteryCmd)
	rootCmd.AddCommand(reindexCmd)
}

// loadConfig 读取 --config 指定目录下的配置
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(dir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openApp 加载配置并建立连接，调用方负责 Close
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return app.New(cfg)
}
