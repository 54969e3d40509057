package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "数据库迁移完成")
		return nil
	},
}
