package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild paragraph embeddings for textbook search",
	Long:  "Embeds paragraphs whose content changed since the last run. Unchanged paragraphs are skipped by content hash.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer application.Close()

		textbookID, _ := cmd.Flags().GetUint("textbook")
		batch, _ := cmd.Flags().GetInt("batch")

		n, err := application.Reindex(cmd.Context(), textbookID, batch)
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %d paragraphs\n", n)
		return nil
	},
}

func init() {
	reindexCmd.Flags().Uint("textbook", 0, "Only reindex this textbook (0 = all)")
	reindexCmd.Flags().Int("batch", 32, "Paragraphs per embedding request")
}
