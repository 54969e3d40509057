package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var recomputeMasteryCmd = &cobra.Command{
	Use:   "recompute-mastery",
	Short: "Rebuild mastery tiers from graded test attempts",
	Long:  "Recomputes paragraph and chapter mastery for every student with graded attempts, optionally limited to one school. Transitions are recorded in mastery history.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		var schoolID *uint
		if cmd.Flags().Changed("school") {
			id, _ := cmd.Flags().GetUint("school")
			schoolID = &id
		}

		students, changes, err := application.RecomputeMastery(cmd.Context(), schoolID)
		if err != nil {
			return fmt.Errorf("recompute mastery: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d students, %d tier changes\n", students, changes)
		return nil
	},
}

func init() {
	recomputeMasteryCmd.Flags().Uint("school", 0, "Only recompute students of this school")
}
