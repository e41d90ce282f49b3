package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"fitlog-go/internal/httpserver"
)

func NewDaemonCommand(rootOpts *RootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync worker and the local admin API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := newFormatter(rootOpts, cmd)
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return out.Fail(GetExitCode(err), err)
			}
			defer a.Close()
			if listen == "" {
				listen = a.Config.ListenAddr
			}

			gin.SetMode(gin.ReleaseMode)
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			a.Start(ctx)

			srv := &http.Server{
				Addr: listen,
				Handler: httpserver.NewRouter(httpserver.Deps{
					Coordinator: a.Coordinator,
					Gate:        a.Gate,
					Accounts:    a.Accounts,
					Logbook:     a.Logbook,
					Logger:      a.Logger,
					AdminKey:    a.Config.AdminKey,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				a.Logger.Infof("admin API listening on %s", listen)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errc <- err
				}
			}()

			select {
			case <-ctx.Done():
			case err = <-errc:
				stop()
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			a.Wait()
			if err != nil {
				return out.Fail(ExitFailure, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "admin API address (default from config)")
	return cmd
}
