package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/cache"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var thumbCmd = &cobra.Command{
	Use:   "thumb <component-id>",
	Short: "Fetch a component thumbnail",
	Long: `Resolve the thumbnail for a media component through the read-through
cache and write the image bytes to a file.

Thumbnails are content-addressed and cached without expiry; pass
--refresh to discard the cached copy and refetch.

Examples:
  astranotes thumb comp_0a1b --size 512 --out shot_010.jpg
  astranotes thumb comp_0a1b --refresh`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		componentID := args[0]
		size, _ := cmd.Flags().GetString("size")
		out, _ := cmd.Flags().GetString("out")
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

		thumbs := cache.NewThumbnailCache(client, nil, newLogger(cfg, "[thumb] "))

		resolve := thumbs.Resolve
		if refresh {
			resolve = thumbs.ForceRefresh
		}

		th, err := resolve(cmd.Context(), componentID, size)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		if out == "" {
			out = componentID + ".jpg"
		}
		if err := os.WriteFile(out, th.Data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s Wrote %s (%d bytes)\n", ui.RenderPass("✓"), out, len(th.Data))
	},
}

func init() {
	thumbCmd.Flags().String("size", "256", "thumbnail size variant to request")
	thumbCmd.Flags().String("out", "", "output file (default <component-id>.jpg)")
	thumbCmd.Flags().Bool("refresh", false, "bypass the thumbnail cache")

	rootCmd.AddCommand(thumbCmd)
}
