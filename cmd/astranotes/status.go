package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/cache"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Inspect and change entity statuses on the tracking service",
}

var statusGetCmd = &cobra.Command{
	Use:   "get <entity-type> <entity-id>",
	Short: "Show an entity's current status and the statuses it can move to",
	Long: `Fetch an entity's status from the tracking service.

Results are cached briefly; pass --refresh to bypass the cache.

Example:
  astranotes status get AssetVersion shot_010_v3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		entityType, entityID := args[0], args[1]
		refresh, _ := cmd.Flags().GetBool("refresh")

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		client, err := newRemote(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		statuses := cache.NewStatusCache(client, nil, newLogger(cfg, "[cache] "))

		fetch := statuses.Resolve
		if refresh {
			fetch = statuses.ForceRefresh
		}

		es, err := fetch(cmd.Context(), entityType, entityID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("\n%s %s\n\n", ui.RenderAccent(entityID), entityType)
		fmt.Printf("Current: %s (%s)\n", es.Current.Name, es.Current.ID)
		if len(es.Applicable) > 0 {
			fmt.Println("Applicable:")
			for _, s := range es.Applicable {
				fmt.Printf("   %-20s %s\n", s.Name, ui.RenderMuted(s.ID))
			}
		}
		fmt.Println()
	},
}

var statusSetCmd = &cobra.Command{
	Use:   "set <entity-type> <entity-id> <status-id>",
	Short: "Move an entity to a new status",
	Long: `Update an entity's status on the tracking service.

The status must be one of the entity's applicable statuses; anything
else is rejected before the service is contacted.

Example:
  astranotes status set AssetVersion shot_010_v3 st-approved`,
	Args: cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		entityType, entityID, statusID := args[0], args[1], args[2]

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		client, err := newRemote(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		statuses := cache.NewStatusCache(client, nil, newLogger(cfg, "[cache] "))

		if err := statuses.UpdateStatus(cmd.Context(), entityType, entityID, statusID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s %s moved to %s\n", ui.RenderPass("✓"), entityID, statusID)
	},
}

func init() {
	statusGetCmd.Flags().Bool("refresh", false, "bypass the status cache")

	statusCmd.AddCommand(statusGetCmd)
	statusCmd.AddCommand(statusSetCmd)
	rootCmd.AddCommand(statusCmd)
}
