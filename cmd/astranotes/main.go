// Command astranotes manages local draft notes for review playlists and
// publishes them to the production tracking service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile      string
	playlistFlag string
)

var rootCmd = &cobra.Command{
	Use:   "astranotes",
	Short: "Local-first draft notes for review playlists",
	Long: `AstraNotes keeps review notes as local drafts and publishes them to the
production tracking service on demand.

Drafts live in a local SQLite database and survive restarts. Publishing
is explicit: nothing leaves the machine until you run 'astranotes publish'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: astranotes.yaml in cwd or user config dir)")
	rootCmd.PersistentFlags().StringVar(&playlistFlag, "playlist", "", "playlist to operate on (overrides config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
