package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/note"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var saveCmd = &cobra.Command{
	Use:   "save <entity-id>",
	Short: "Save a draft note for an entity",
	Long: `Save draft content for one entity in the playlist.

The draft stays local until published. Repeated saves overwrite the
content; --attach adds files on top of existing attachments.

Examples:
  astranotes save shot_010_v3 -m "tighten the key light"
  astranotes save shot_010_v3 --attach ref.png --attach grade.exr
  astranotes save shot_010_v3 -m "approved" --label lbl-approved`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entityID := args[0]
		message, _ := cmd.Flags().GetString("message")
		labelID, _ := cmd.Flags().GetString("label")
		attachPaths, _ := cmd.Flags().GetStringSlice("attach")

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

		content := message
		var attachments []note.Attachment
		if d, ok := m.Get(entityID); ok {
			attachments = d.Attachments
			if !cmd.Flags().Changed("message") {
				content = d.Content
			}
			if !cmd.Flags().Changed("label") {
				labelID = d.LabelID
			}
		}

		for _, path := range attachPaths {
			if _, err := os.Stat(path); err != nil {
				fmt.Fprintf(os.Stderr, "Error: cannot attach %s: %v\n", path, err)
				os.Exit(1)
			}
			attachments = append(attachments, note.NewFileAttachment(path))
		}

		m.Save(entityID, content, labelID, attachments)
		m.FlushPending()

		d, _ := m.Get(entityID)
		fmt.Printf("%s Saved draft for %s (%s)\n", ui.RenderPass("✓"), entityID, d.Status)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear <entity-id>",
	Short: "Clear an entity's draft",
	Long: `Remove an entity's draft content, label, and attachments.

Clearing is the only way out of the published state; the entity returns
to empty and can accumulate a fresh draft.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entityID := args[0]

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

		if err := m.Clear(cmd.Context(), entityID); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Cleared draft for %s\n", ui.RenderPass("✓"), entityID)
	},
}

func init() {
	saveCmd.Flags().StringP("message", "m", "", "draft note content")
	saveCmd.Flags().String("label", "", "label id to apply")
	saveCmd.Flags().StringSlice("attach", nil, "file to attach (repeatable)")

	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(clearCmd)
}
