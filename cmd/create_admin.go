package cmd

import (
	"fmt"
	"os"

	"ai_mentor_backend/internal/service"

	"github.com/spf13/cobra"
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create a super admin account",
	Long:  "Creates the platform super admin on a freshly migrated database. The password may be passed with --password or the AI_MENTOR_ADMIN_PASSWORD environment variable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := service.BootstrapAdminInput{}
		in.Email, _ = cmd.Flags().GetString("email")
		in.FirstName, _ = cmd.Flags().GetString("first-name")
		in.LastName, _ = cmd.Flags().GetString("last-name")
		in.Password, _ = cmd.Flags().GetString("password")
		if in.Password == "" {
			in.Password = os.Getenv("AI_MENTOR_ADMIN_PASSWORD")
		}

		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		user, err := application.CreateSuperAdmin(cmd.Context(), in)
		if err != nil {
			return fmt.Errorf("create admin: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "超级管理员已创建: id=%d email=%s\n", user.ID, user.Email)
		return nil
	},
}

func init() {
	createAdminCmd.Flags().String("email", "", "Login email of the super admin")
	createAdminCmd.Flags().String("password", "", "Password, at least 8 characters")
	createAdminCmd.Flags().String("first-name", "Admin", "First name")
	createAdminCmd.Flags().String("last-name", "", "Last name")
	_ = createAdminCmd.MarkFlagRequired("email")
}
