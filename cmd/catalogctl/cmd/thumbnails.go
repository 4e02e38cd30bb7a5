package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"media-catalog/internal/app"
)

func CleanThumbnailsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean-thumbnails",
		Short: "Remove orphaned cache files and requeue broken thumbnails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Thumbnails.CleanThumbnails(ctx)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "orphans removed %d, temp files removed %d, requeued %d in %v\n",
						result.OrphansRemoved, result.TempRemoved, result.Requeued, result.Duration.Round(time.Millisecond))
					for _, e := range result.Errors {
						fmt.Fprintf(w, "  error: %s\n", e)
					}
				})
			})
		},
	}
}

func ThumbnailCmd() *cobra.Command {
	var (
		force bool
		out   string
	)
	cmd := &cobra.Command{
		Use:   "thumbnail PATH",
		Short: "Generate the thumbnail for one cataloged file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				data, err := a.Thumbnails.GetThumbnail(ctx, args[0], force)
				if err != nil {
					return err
				}
				if out == "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d bytes\n", args[0], len(data))
					return nil
				}
				if out == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "regenerate even if cached or previously failed")
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the JPEG to this file (- for stdout)")
	return cmd
}
