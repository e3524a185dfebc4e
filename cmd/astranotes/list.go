package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List drafts in the playlist",
	Long: `List every draft in the selected playlist with its lifecycle state.

Example:
  astranotes list --playlist pl-42`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
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

		drafts := m.All()
		if len(drafts) == 0 {
			fmt.Printf("No drafts in playlist %s\n", cfg.PlaylistID)
			return
		}

		fmt.Printf("\nDrafts in %s\n\n", ui.RenderAccent(cfg.PlaylistID))
		for _, d := range drafts {
			status := renderStatus(d.Status)
			line := fmt.Sprintf("%-14s %s", d.EntityID, status)
			if d.HasAttachments() {
				line += fmt.Sprintf("  %s", ui.RenderMuted(fmt.Sprintf("(%d attachments)", len(d.Attachments))))
			}
			fmt.Println(line)
		}
		fmt.Println()
	},
}

func renderStatus(s note.Status) string {
	switch s {
	case note.StatusPublished:
		return ui.RenderPass("published")
	case note.StatusDraft:
		return ui.RenderWarn("draft")
	default:
		return ui.RenderMuted("empty")
	}
}

func init() {
	rootCmd.AddCommand(listCmd)
}
