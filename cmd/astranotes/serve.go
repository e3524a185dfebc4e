package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matteoveglia/AstraNotes-sub002/internal/dashboard"
	"github.com/matteoveglia/AstraNotes-sub002/internal/drop"
	"github.com/matteoveglia/AstraNotes-sub002/internal/ui"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard and drop-folder watcher (foreground)",
	Long: `Run the live session services in the foreground:

  - a WebSocket dashboard that broadcasts draft saves, status changes,
    and publish progress to connected clients
  - optionally, a drop-folder watcher that attaches files dropped into
    drop_dir to the targeted entity's draft

Example:
  astranotes serve --playlist pl-42 --port 9000 --target shot_010_v3

Connect a WebSocket client to ws://localhost:<port>/ws.
Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")
		target, _ := cmd.Flags().GetString("target")

		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if cmd.Flags().Changed("port") {
			cfg.Dashboard.Port = port
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

		server := dashboard.NewServer(&dashboard.Config{
			Port:   cfg.Dashboard.Port,
			Logger: newLogger(cfg, "[dashboard] "),
		})
		if err := server.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start dashboard: %v\n", err)
			os.Exit(1)
		}
		detach := server.Attach(m)
		defer detach()

		fmt.Printf("%s Dashboard on http://%s\n", ui.RenderAccent("🚀"), server.Addr())
		fmt.Printf("   WebSocket endpoint: ws://%s/ws\n", server.Addr())

		if cfg.DropDir != "" {
			watcher, err := drop.New(m, cfg.DropDir, &drop.Config{
				SettleInterval: drop.DefaultConfig().SettleInterval,
				Logger:         newLogger(cfg, "[drop] "),
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			if target != "" {
				watcher.SetTarget(target)
			}
			if err := watcher.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to start drop watcher: %v\n", err)
				os.Exit(1)
			}
			defer watcher.Stop()

			fmt.Printf("   Drop folder: %s", cfg.DropDir)
			if target != "" {
				fmt.Printf(" → %s", target)
			}
			fmt.Println()
		}

		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		<-ctx.Done()

		fmt.Println("\nShutting down...")
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 8985, "dashboard port")
	serveCmd.Flags().String("target", "", "entity that receives dropped files")

	rootCmd.AddCommand(serveCmd)
}
