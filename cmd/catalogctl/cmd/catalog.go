package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"media-catalog/internal/app"
	"media-catalog/internal/database"
	"media-catalog/internal/stats"
)

func SyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one synchronization pass",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				result, err := a.Indexer.Synchronize(ctx)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "scanned %d: added %d, updated %d, removed %d, skipped %d, failed %d in %v\n",
						result.Scanned, result.Added, result.Updated, result.Removed, result.Skipped, result.Failed,
						result.Duration.Round(time.Millisecond))
				})
			})
		},
	}
}

// statsReport is the stats command's output.
type statsReport struct {
	Stats              stats.Snapshot   `json:"stats"`
	Thumbnails         map[string]int64 `json:"thumbnails"`
	LastSync           time.Time        `json:"lastSync"`
	LastSyncDuration   string           `json:"lastSyncDuration,omitempty"`
	LastThumbnailClean time.Time        `json:"lastThumbnailClean"`
}

func StatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog counts and housekeeping times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				report, err := buildStatsReport(ctx, a)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), report, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					fmt.Fprintf(tw, "records\t%d\n", report.Stats.Total)
					fmt.Fprintf(tw, "thumbnails generated\t%d\n", report.Stats.Generated)
					for _, s := range thumbnailStatuses {
						fmt.Fprintf(tw, "  %s\t%d\n", s, report.Thumbnails[s.String()])
					}
					fmt.Fprintf(tw, "last sync\t%s\n", formatTime(report.LastSync))
					if report.LastSyncDuration != "" {
						fmt.Fprintf(tw, "last sync duration\t%s\n", report.LastSyncDuration)
					}
					fmt.Fprintf(tw, "last thumbnail clean\t%s\n", formatTime(report.LastThumbnailClean))
					tw.Flush()
				})
			})
		},
	}
}

var thumbnailStatuses = []database.ThumbnailStatus{
	database.ThumbnailPending,
	database.ThumbnailPrioritized,
	database.ThumbnailGenerated,
	database.ThumbnailFailedPermanent,
}

func buildStatsReport(ctx context.Context, a *app.App) (statsReport, error) {
	report := statsReport{Stats: a.Stats.Get(), Thumbnails: map[string]int64{}}

	counts, err := a.DB.ThumbnailStatusCounts(ctx)
	if err != nil {
		return report, err
	}
	for _, s := range thumbnailStatuses {
		report.Thumbnails[s.String()] = counts[s]
	}

	if report.LastSync, err = a.DB.GetTime(ctx, database.MetaLastSyncAt); err != nil {
		return report, err
	}
	if report.LastThumbnailClean, err = a.DB.GetTime(ctx, database.MetaLastThumbnailCleanAt); err != nil {
		return report, err
	}
	if d, err := a.DB.GetMetadata(ctx, database.MetaLastSyncDuration); err == nil {
		report.LastSyncDuration = d
	}
	return report, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.RFC1123)
}

func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the database and directories are usable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.DB.Ping(ctx); err != nil {
					return fmt.Errorf("database unreachable: %w", err)
				}
				total, generated, err := a.DB.CountCatalog(ctx)
				if err != nil {
					return fmt.Errorf("count catalog: %w", err)
				}
				result := map[string]any{
					"database":  a.DB.Path(),
					"mediaDir":  a.Config.MediaDir,
					"thumbDir":  a.Config.ThumbnailDir,
					"records":   total,
					"generated": generated,
					"ok":        true,
				}
				return output(cmd.OutOrStdout(), result, func(w io.Writer) {
					fmt.Fprintf(w, "database   %s OK\n", a.DB.Path())
					fmt.Fprintf(w, "media      %s OK\n", a.Config.MediaDir)
					fmt.Fprintf(w, "thumbnails %s OK\n", a.Config.ThumbnailDir)
					fmt.Fprintf(w, "%d records, %d thumbnails generated\n", total, generated)
				})
			})
		},
	}
}

func VacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the catalog database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				start := time.Now()
				if err := a.DB.Vacuum(ctx); err != nil {
					return fmt.Errorf("vacuum: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "vacuum complete in %v\n", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
}

func FoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List live media counts per folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd, func(ctx context.Context, a *app.App) error {
				aggs, err := a.DB.GetFolderAggregates(ctx)
				if err != nil {
					return err
				}
				return output(cmd.OutOrStdout(), aggs, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
					for _, agg := range aggs {
						folder := agg.FolderPath
						if folder == "" {
							folder = "."
						}
						fmt.Fprintf(tw, "%d\t%s\n", agg.ImageCount, folder)
					}
					tw.Flush()
				})
			})
		},
	}
}
