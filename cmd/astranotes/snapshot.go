package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/export"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export <file.jsonl>",
	Short: "Export the playlist's drafts to a JSONL snapshot",
	Long: `Write every draft in the playlist to a JSONL file, one record per
line. The file is written atomically.

Example:
  astranotes export --playlist pl-42 backup.jsonl`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cfg.PlaylistID == "" {
			fmt.Fprintf(os.Stderr, "Error: no playlist selected\n")
			os.Exit(1)
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		result, err := export.Export(cmd.Context(), st, cfg.PlaylistID, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Exported %d drafts to %s\n", ui.RenderPass("✓"), result.DraftsWritten, result.Path)
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.jsonl>",
	Short: "Import drafts from a JSONL snapshot",
	Long: `Replay a JSONL snapshot into the local draft database. Bad records
are skipped and reported; the rest import normally.

Examples:
  astranotes import backup.jsonl
  astranotes import backup.jsonl --dry-run
  astranotes import backup.jsonl --backup`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		backup, _ := cmd.Flags().GetBool("backup")

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

		result, err := export.Import(cmd.Context(), st, export.ImportOptions{
			FromJSONL: args[0],
			DryRun:    dryRun,
			Backup:    backup,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		verb := "Imported"
		if dryRun {
			verb = "Would import"
		}
		fmt.Printf("%s %s %d drafts\n", ui.RenderPass("✓"), verb, result.DraftsImported)
		if result.BackupCreated != "" {
			fmt.Printf("   Backup: %s\n", result.BackupCreated)
		}
		for _, e := range result.Errors {
			fmt.Printf("   %s %s\n", ui.RenderWarn("⚠"), e)
		}
		if len(result.Errors) > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "parse and validate without writing")
	importCmd.Flags().Bool("backup", false, "copy the input aside before importing")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
