package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"media-catalog/cmd/catalogctl/cmd"
	"media-catalog/internal/startup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Maintenance tools for the media catalog",
		Version:      startup.Version,
		SilenceUsage:  true,
	}
	rootCmd.PersistentFlags().BoolVar(&cmd.JSONOutput, "json", false, "print results as JSON")

	rootCmd.AddCommand(cmd.SyncCmd())
	rootCmd.AddCommand(cmd.StatsCmd())
	rootCmd.AddCommand(cmd.CheckCmd())
	rootCmd.AddCommand(cmd.VacuumCmd())
	rootCmd.AddCommand(cmd.FoldersCmd())
	rootCmd.AddCommand(cmd.CleanThumbnailsCmd())
	rootCmd.AddCommand(cmd.ThumbnailCmd())
	rootCmd.AddCommand(cmd.TrashCmd())
	rootCmd.AddCommand(cmd.RestoreCmd())
	rootCmd.AddCommand(cmd.DeleteCmd())
	rootCmd.AddCommand(cmd.EmptyTrashCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
