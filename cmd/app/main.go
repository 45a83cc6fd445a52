package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"trade_sim/internal/app"
	"trade_sim/internal/infra"

	_ "github.com/joho/godotenv/autoload" // .env before config overrides
	"github.com/spf13/cobra"
)

func main() {
	// Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("❌ Command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "tradesim",
		Short:         "Order book cost simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", infra.DefaultConfigPath, "path to config.yaml")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the feed, engine and HTTP/websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(newSimulateCmd(&configPath))
	return root
}

func serve(ctx context.Context, configPath string) error {
	bootstrap := app.NewBootstrap(configPath)
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return err
	}
	defer bootstrap.Close()

	return bootstrap.Run(ctx)
}
