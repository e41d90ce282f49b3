package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fitlog-go/internal/app"
	"fitlog-go/internal/store"
)

func NewAccountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage the device account",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create the local account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				u, err := a.Accounts.Create(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return out.Success(u, formatUser(u))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the local account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				u, err := a.Accounts.Current(ctx)
				if err != nil {
					return err
				}
				return out.Success(u, formatUser(u))
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename <name>",
		Short: "Change the display name",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, func(ctx context.Context, a *app.App, out *OutputFormatter) error {
				u, err := a.Accounts.Rename(ctx, strings.Join(args, " "))
				if err != nil {
					return err
				}
				return out.Success(u, formatUser(u))
			})
		},
	})
	return cmd
}

func formatUser(u *store.User) string {
	s := fmt.Sprintf("%s (%s)", u.Name, u.ID)
	if u.ProfileName != "" {
		s += ", recoverable as " + u.ProfileName
	}
	return s
}
