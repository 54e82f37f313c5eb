package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytget/ytqueue/internal/config"
	"github.com/ytget/ytqueue/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP queue server",
		Long:  "Serve exposes the download queue over HTTP with a Server-Sent Events stream of job updates.",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindFlags(a, cmd, map[string]string{
				config.KeyListen:      "listen",
				config.KeyMaxParallel: "parallel",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}

	cmd.Flags().StringP("listen", "l", config.DefaultListen, "listen address")
	cmd.Flags().IntP("parallel", "p", config.DefaultMaxParallel, "maximum parallel downloads (1-10)")
	return cmd
}

// runServe serves until ctx is done, then cancels whatever is still queued
func (a *app) runServe(ctx context.Context) error {
	q, err := a.startQueue(context.Background(), a.settings.GetMaxParallelDownloads())
	if err != nil {
		return err
	}
	defer q.shutdown()

	srv := server.New(q.svc, server.Defaults{
		Quality:        a.settings.GetQuality(),
		DestinationDir: a.settings.GetDownloadDirectory(),
		CookieFile:     a.settings.GetCookieFile(),
	}, a.log)

	err = srv.Run(ctx, a.settings.GetListenAddress())
	if n := q.svc.CancelAll(); n > 0 {
		a.log.WithField("jobs", n).Info("Cancelled unfinished jobs on shutdown")
	}
	return err
}
