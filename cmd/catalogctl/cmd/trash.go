package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"media-catalog/internal/app"
	"media-catalog/internal/trash"
)

// errItemsFailed makes batch commands exit non-zero when any item failed.
var errItemsFailed = errors.New("one or more items failed")

func batchCmd(use, short string, op func(a *app.App) func(context.Context, []string) []trash.ItemResult) *cobra.Command {
	return &cobra.Command{
		Use:   use + " PATH...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				results := op(a)(ctx, args)
				if err := output(cmd.OutOrStdout(), results, func(w io.Writer) {
					printResults(w, results)
				}); err != nil {
					return err
				}
				for _, r := range results {
					if r.Status != trash.StatusOK {
						return errItemsFailed
					}
				}
				return nil
			})
		},
	}
}

func printResults(w io.Writer, results []trash.ItemResult) {
	for _, r := range results {
		switch {
		case r.Status == trash.StatusOK && r.NewPath != "":
			fmt.Fprintf(w, "%-9s %s -> %s\n", r.Status, r.Path, r.NewPath)
		case r.Message != "":
			fmt.Fprintf(w, "%-9s %s: %s\n", r.Status, r.Path, r.Message)
		default:
			fmt.Fprintf(w, "%-9s %s\n", r.Status, r.Path)
		}
	}
}

func TrashCmd() *cobra.Command {
	return batchCmd("trash", "Move files to the trash", func(a *app.App) func(context.Context, []string) []trash.ItemResult {
		return a.Trash.Trash
	})
}

func RestoreCmd() *cobra.Command {
	return batchCmd("restore", "Restore trashed files to their original location", func(a *app.App) func(context.Context, []string) []trash.ItemResult {
		return a.Trash.Restore
	})
}

func DeleteCmd() *cobra.Command {
	return batchCmd("delete", "Permanently delete live files", func(a *app.App) func(context.Context, []string) []trash.ItemResult {
		return a.Trash.PermanentDelete
	})
}

func EmptyTrashCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "empty-trash",
		Short: "Permanently delete everything in the trash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to empty the trash without --yes")
			}
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				result := a.Trash.EmptyTrash(ctx)
				if err := output(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "deleted %d files and %d records\n", result.FilesDeleted, result.RecordsDeleted)
					for _, e := range result.Errors {
						fmt.Fprintf(w, "  error: %s\n", e)
					}
				}); err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return errItemsFailed
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm permanent deletion")
	return cmd
}
