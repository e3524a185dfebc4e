package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/publish"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var publishCmd = &cobra.Command{
	Use:   "publish [entity-id...]",
	Short: "Publish drafts to the tracking service",
	Long: `Publish drafts for the named entities, or every draft in the playlist
with --all. Entities named with --except are dropped from the selection
before anything is sent.

Sequential publishing reports per-item progress; --batch publishes
concurrently without ordering. Failed items keep their drafts and stay
selected for retry; already-published and empty drafts succeed without a
remote call.

Examples:
  astranotes publish shot_010_v3
  astranotes publish --all --except shot_020_v1
  astranotes publish --all --batch --yes`,
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		batch, _ := cmd.Flags().GetBool("batch")
		yes, _ := cmd.Flags().GetBool("yes")
		except, _ := cmd.Flags().GetStringSlice("except")

		if !all && len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: name entities to publish or pass --all\n")
			os.Exit(1)
		}

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

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		m, err := newManager(cmd.Context(), cfg, st)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer m.Close()

		pipeline, err := publish.New(m, client, newLogger(cfg, "[publish] "))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if all {
			for _, d := range m.All() {
				pipeline.Select(d.EntityID)
			}
		} else {
			pipeline.Select(args...)
		}
		pipeline.Deselect(except...)

		selection := pipeline.Selection()
		if len(selection) == 0 {
			fmt.Printf("No drafts to publish in %s\n", cfg.PlaylistID)
			return
		}

		if len(selection) > 1 && !yes {
			var confirmed bool
			err := huh.NewConfirm().
				Title(fmt.Sprintf("Publish %d drafts from %s?", len(selection), cfg.PlaylistID)).
				Affirmative("Publish").
				Negative("Cancel").
				Value(&confirmed).
				Run()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if !confirmed {
				fmt.Println("Cancelled")
				return
			}
		}

		var result *publish.Result
		if batch {
			result = pipeline.PublishSelected(cmd.Context())
		} else {
			result = pipeline.PublishSequential(cmd.Context(), selection, printProgress)
		}

		fmt.Println()
		if result.FullySuccessful() {
			fmt.Printf("%s %s\n", ui.RenderPass("✓"), result.Summary())
			return
		}

		fmt.Printf("%s %s\n", ui.RenderWarn("⚠"), result.Summary())
		for _, item := range result.Items {
			if item.Outcome == publish.OutcomeFailed {
				fmt.Printf("   %s %s: %v\n", ui.RenderFail("✗"), item.EntityID, item.Err)
			}
		}
		os.Exit(1)
	},
}

func printProgress(index, total int, label, step string) {
	switch step {
	case "published":
		fmt.Printf("[%d/%d] %s %s\n", index, total, ui.RenderPass("✓"), label)
	case "failed":
		fmt.Printf("[%d/%d] %s %s\n", index, total, ui.RenderFail("✗"), label)
	default:
		fmt.Printf("[%d/%d] %s %s...\n", index, total, ui.RenderAccent("→"), label)
	}
}

func init() {
	publishCmd.Flags().Bool("all", false, "publish every draft in the playlist")
	publishCmd.Flags().Bool("batch", false, "publish concurrently without ordering")
	publishCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
	publishCmd.Flags().StringSlice("except", nil, "entity ids to drop from the selection")

	rootCmd.AddCommand(publishCmd)
}
