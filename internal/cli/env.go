package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"fitlog-go/internal/accounts"
	"fitlog-go/internal/app"
	"fitlog-go/internal/cloudsync"
	"fitlog-go/internal/config"
	"fitlog-go/internal/logbook"
	"fitlog-go/internal/logging"
)

type runFunc func(ctx context.Context, a *app.App, out *OutputFormatter) error

func openApp(opts *RootOptions, cmd *cobra.Command) (*app.App, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "load config", err)
	}
	if opts.Verbose {
		cfg.Log.Level = "debug"
	} else if cfg.Log.Level == "info" {
		cfg.Log.Level = "warn"
	}
	logger := logging.NewWithConfig(cfg.Log)
	if cfg.Log.File == "" {
		logger.Logrus().SetOutput(cmd.ErrOrStderr())
	}
	a, err := app.New(cfg, logger)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "open local store", err)
	}
	return a, nil
}

// withApp opens the local store for one command and maps failures to exit
// codes.
func withApp(opts *RootOptions, cmd *cobra.Command, fn runFunc) error {
	out := newFormatter(opts, cmd)
	a, err := openApp(opts, cmd)
	if err != nil {
		return out.Fail(GetExitCode(err), err)
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := fn(ctx, a, out); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			_ = out.Fail(exitErr.Code, err)
			return err
		}
		return out.Fail(exitCodeFor(err), err)
	}
	return nil
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, logbook.ErrInvalidInput), errors.Is(err, accounts.ErrInvalidName):
		return ExitCommandError
	default:
		return ExitFailure
	}
}

// requireLink probes the remote before an operation that needs it.
func requireLink(ctx context.Context, a *app.App) error {
	if !a.Gate.IsConfigured() {
		return cloudsync.ErrNotConfigured
	}
	if !a.CheckLink(ctx) {
		return cloudsync.ErrOffline
	}
	return nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, s))
	}
	return id, nil
}

func parseFloat(s, what string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, s))
	}
	return v, nil
}

func parseInt(s, what string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q", what, s))
	}
	return v, nil
}
