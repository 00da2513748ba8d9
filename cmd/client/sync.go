package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/OfficeSync/internal/entitysync"
	"github.com/atinyakov/OfficeSync/internal/models"
	"github.com/atinyakov/OfficeSync/internal/state"
	"github.com/spf13/cobra"
)

var (
	syncSince    string
	syncAllPages bool
	watchEvery   time.Duration
)

var syncCmd = &cobra.Command{
	Use:   "sync [users|tasks|all]",
	Short: "Pull remote changes into the local cache",
	Long: `Fetch changed records from the remote store and upsert them into the
local cache. Tasks are scoped to --owner. With --all-pages every page is
fetched by following the continuation token.`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{models.EntityUsers, models.EntityTasks, "all"},
	RunE: func(cmd *cobra.Command, args []string) error {
		target := "all"
		if len(args) == 1 {
			target = args[0]
		}
		since, err := models.ParseTime(syncSince)
		if err != nil {
			return fmt.Errorf("invalid --since: %w", err)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		fetchArgs := state.FetchArgs{Owner: ownerID, Since: since, PageSize: pageSize}
		switch target {
		case models.EntityUsers:
			n, err := syncPages(cmd.Context(), a.state.Users(), fetchArgs)
			return report(cmd, models.EntityUsers, n, err)
		case models.EntityTasks:
			n, err := syncPages(cmd.Context(), a.state.Tasks(), fetchArgs)
			return report(cmd, models.EntityTasks, n, err)
		case "all":
			if !syncAllPages {
				if err := a.state.FetchAll(cmd.Context(), ownerID); err != nil {
					return err
				}
				_ = report(cmd, models.EntityUsers, len(a.state.Users().State().Data), nil)
				if ownerID != "" {
					_ = report(cmd, models.EntityTasks, len(a.state.Tasks().State().Data), nil)
				}
				return nil
			}
			n, err := syncPages(cmd.Context(), a.state.Users(), fetchArgs)
			if err := report(cmd, models.EntityUsers, n, err); err != nil {
				return err
			}
			if ownerID == "" {
				return nil
			}
			n, err = syncPages(cmd.Context(), a.state.Tasks(), fetchArgs)
			return report(cmd, models.EntityTasks, n, err)
		default:
			return fmt.Errorf("unknown sync target %q", target)
		}
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Sync in the background until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		triggers := map[string]entitysync.Trigger{
			models.EntityUsers: func(ctx context.Context) error {
				return ignoreStale(a.state.Users().Fetch(ctx, state.FetchArgs{PageSize: pageSize}))
			},
		}
		if ownerID != "" {
			triggers[models.EntityTasks] = func(ctx context.Context) error {
				return ignoreStale(a.state.Tasks().Fetch(ctx, state.FetchArgs{Owner: ownerID, PageSize: pageSize}))
			}
		}

		s := &entitysync.Scheduler{Interval: watchEvery, Triggers: triggers, Logger: a.log}
		fmt.Fprintf(cmd.OutOrStdout(), "Watching every %s, press Ctrl+C to stop\n", watchEvery)
		s.Run(ctx)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncSince, "since", "", "only records changed after this RFC 3339 time")
	syncCmd.Flags().BoolVar(&syncAllPages, "all-pages", false, "follow continuation tokens until the feed is exhausted")
	watchCmd.Flags().DurationVar(&watchEvery, "interval", entitysync.DefaultInterval, "sync interval")
	rootCmd.AddCommand(syncCmd, watchCmd)
}

// syncPages fetches into slice, following tokens while --all-pages is set,
// and returns the number of records the slice holds.
func syncPages[T entitysync.Record](ctx context.Context, slice *state.Slice[T], args state.FetchArgs) (int, error) {
	for {
		if err := slice.Fetch(ctx, args); err != nil {
			return 0, err
		}
		st := slice.State()
		if !syncAllPages || !st.HasMore || st.LastDoc == "" {
			return len(st.Data), nil
		}
		args.Token = st.LastDoc
	}
}

func report(cmd *cobra.Command, entity string, n int, err error) error {
	if err != nil {
		return fmt.Errorf("sync %s: %w", entity, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced %d %s\n", n, entity)
	return nil
}

func ignoreStale(err error) error {
	if errors.Is(err, state.ErrStale) {
		return nil
	}
	return err
}
