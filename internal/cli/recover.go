package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"fitlog-go/internal/app"
)

var errNameTaken = errors.New("profile name is taken")

func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Make an account recoverable, or restore one onto this device",
	}

	// remote wraps a recovery step that needs the link up.
	remote := func(cmd *cobra.Command, fn runFunc) error {
		return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
			if err := requireLink(ctx, a); err != nil {
				return err
			}
			return fn(ctx, a, out)
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check <profile-name>",
		Short: "Check whether a profile name is free",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				ok, err := a.Coordinator.Recovery().CheckProfileName(ctx, args[0])
				if err != nil {
					return err
				}
				text := args[0] + " is available"
				if !ok {
					text = args[0] + " is taken"
				}
				return out.Success(map[string]bool{"available": ok}, text)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "register <profile-name> <pin>",
		Short: "Register a profile name and PIN for this account",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				ok, err := a.Coordinator.Recovery().RegisterProfile(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return errNameTaken
				}
				return out.Success(map[string]bool{"ok": true}, "registered "+args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "pin <current-pin> <new-pin>",
		Short: "Change the recovery PIN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				ok, err := a.Coordinator.Recovery().ChangePIN(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("current PIN does not match")
				}
				return out.Success(map[string]bool{"ok": true}, "PIN changed")
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "verify <profile-name> <pin>",
		Short: "Look up an account without restoring it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				snap, err := a.Coordinator.Recovery().Verify(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return out.Success(snap, fmt.Sprintf("%s: %d sessions, %d sets", snap.User.Name, snap.SessionCount, snap.TotalSets))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "restore <profile-name> <pin>",
		Short: "Restore an account onto this device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return remote(cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				rec := a.Coordinator.Recovery()
				snap, err := rec.Verify(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				res, err := rec.Restore(ctx, snap)
				if err != nil {
					return err
				}
				return out.Success(res, fmt.Sprintf("restored %d sessions, %d sets, %d weights", res.Sessions, res.SetLogs, res.WeightHistory))
			})
		},
	})
	return cmd
}
