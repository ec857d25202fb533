package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asistente-voz/vozterm/internal/api"
	"github.com/asistente-voz/vozterm/internal/config"
)

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage the knowledge base (admin only)",
}

func adminClient() *api.Client {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.GetToken() == "" {
		log.Fatalf("Not logged in; run 'vozterm login' first")
	}
	return api.New(cfg.GetBaseURL(), cfg.GetToken(), zap.NewNop())
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List knowledge base entries",
	Run: func(cmd *cobra.Command, args []string) {
		client := adminClient()
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		page, _ := cmd.Flags().GetInt("page")
		limit, _ := cmd.Flags().GetInt("limit")

		items, total, err := client.ListKnowledge(ctx, page, limit)
		if err != nil {
			log.Fatalf("Failed to list knowledge: %v", err)
		}

		fmt.Printf("Knowledge entries (%d total):\n\n", total)
		for _, item := range items {
			fmt.Printf("  [%s] %s\n", item.ID, item.Query)
			fmt.Printf("    %s\n", item.Response)
			if item.Confidence != nil {
				fmt.Printf("    source=%s confidence=%.2f\n", item.Source, *item.Confidence)
			} else {
				fmt.Printf("    source=%s\n", item.Source)
			}
			if updated := item.Updated(); !updated.IsZero() {
				fmt.Printf("    updated %s\n", updated.Local().Format("2006-01-02 15:04"))
			}
			fmt.Println()
		}
	},
}

var adminUpdateCmd = &cobra.Command{
	Use:   "update [knowledge-id]",
	Short: "Re-verify knowledge entries against the web",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := adminClient()
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		if len(args) == 1 {
			if err := client.UpdateSingleKnowledge(ctx, args[0]); err != nil {
				log.Fatalf("Failed to update knowledge entry: %v", err)
			}
			fmt.Println("Knowledge entry updated")
			return
		}

		limit, _ := cmd.Flags().GetInt("limit")
		if err := client.UpdateKnowledge(ctx, limit); err != nil {
			log.Fatalf("Failed to update knowledge: %v", err)
		}
		fmt.Println("Knowledge update started")
	},
}

var adminClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every knowledge base entry",
	Run: func(cmd *cobra.Command, args []string) {
		confirm := promptui.Prompt{
			Label:     "Delete ALL knowledge entries",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			fmt.Println("Aborted")
			return
		}

		client := adminClient()
		ctx, cancel := context.WithTimeout(context.Background(), authTimeout)
		defer cancel()

		if err := client.ClearKnowledge(ctx); err != nil {
			log.Fatalf("Failed to clear knowledge: %v", err)
		}
		fmt.Println("Knowledge base cleared")
	},
}

func init() {
	adminListCmd.Flags().Int("page", 1, "page number")
	adminListCmd.Flags().Int("limit", 20, "entries per page")
	adminUpdateCmd.Flags().Int("limit", 10, "max entries to re-verify")

	adminCmd.AddCommand(adminListCmd)
	adminCmd.AddCommand(adminUpdateCmd)
	adminCmd.AddCommand(adminClearCmd)
	rootCmd.AddCommand(adminCmd)
}
