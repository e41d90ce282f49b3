package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fitlog-go/internal/app"
	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/state"
)

func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if a.Gate.IsConfigured() {
					a.CheckLink(ctx)
				}
				if err := a.Coordinator.Refresh(ctx); err != nil {
					return err
				}
				st := a.Coordinator.State()
				return out.Success(st, formatState(st, a.Gate.IsConfigured()))
			})
		},
	}
}

func formatState(st state.SyncState, configured bool) string {
	if !configured {
		return "remote: not configured (local-only)"
	}
	last := "never"
	if st.LastSyncAt != nil {
		last = st.LastSyncAt.Local().Format("2006-01-02 15:04:05")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "status:       %s\n", st.Status)
	fmt.Fprintf(&b, "pending:      %d\n", st.PendingCount)
	fmt.Fprintf(&b, "dead letters: %d\n", st.DeadLetterCount)
	fmt.Fprintf(&b, "migrated:     %t\n", st.IsMigrated)
	fmt.Fprintf(&b, "last sync:    %s", last)
	if st.LastError != "" {
		fmt.Fprintf(&b, "\nlast error:   %s", st.LastError)
	}
	return b.String()
}

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Migrate if needed and push pending changes once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if a.Gate.IsConfigured() {
					a.CheckLink(ctx)
				}
				res, err := a.SyncNow(ctx)
				if err != nil {
					return err
				}
				return out.Success(res, formatDrain(res))
			})
		},
	}
}

func formatDrain(res *cloudsync.DrainResult) string {
	if res.Skipped != "" {
		return "skipped: " + res.Skipped
	}
	s := fmt.Sprintf("synced %d, failed %d, deferred %d", res.Synced, res.Failed, res.Deferred)
	if res.Exhausted > 0 {
		s += fmt.Sprintf(" (%d moved to dead letters)", res.Exhausted)
	}
	return s
}

func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upload the local dataset to a newly configured remote",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				if err := requireLink(ctx, a); err != nil {
					return err
				}
				res, err := a.Coordinator.Migrator().Migrate(ctx)
				if err != nil {
					return err
				}
				if res.AlreadyMigrated {
					return out.Success(res, "already migrated")
				}
				return out.Success(res, fmt.Sprintf("migrated: %v", res.Counts))
			})
		},
	}
}

func NewDeadLettersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dead-letters",
		Short: "List changes that ran out of retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				items, err := a.Coordinator.DeadLetters(ctx)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return out.Success(items, "no dead letters")
				}
				var b strings.Builder
				for i, it := range items {
					if i > 0 {
						b.WriteByte('\n')
					}
					fmt.Fprintf(&b, "#%d %s %s/%s: %s", it.ID, it.Action, it.Table, it.LocalID, it.LastError)
				}
				return out.Success(items, b.String())
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "requeue [id...]",
		Short: "Retry dead letters (all of them when no id is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				ids := make([]int64, 0, len(args))
				for _, arg := range args {
					id, err := parseID(arg, "item id")
					if err != nil {
						return err
					}
					ids = append(ids, id)
				}
				n, err := a.Coordinator.Requeue(ctx, ids...)
				if err != nil {
					return err
				}
				return out.Success(map[string]int64{"requeued": n}, fmt.Sprintf("requeued %d", n))
			})
		},
	})
	return cmd
}
