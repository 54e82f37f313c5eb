package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ytget/ytqueue/internal/config"
	"github.com/ytget/ytqueue/internal/download"
	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get URL...",
		Short: "Download videos and playlists",
		Long:  "Get queues every URL, expands playlists, downloads with the configured parallelism and waits. Ctrl-C cancels all downloads.",
		Args:  cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("quality") {
				raw, _ := cmd.Flags().GetString("quality")
				if err := a.settings.SetQuality(raw); err != nil {
					return err
				}
			}
			return bindFlags(a, cmd, map[string]string{
				config.KeyDownloadDir: "dir",
				config.KeyCookieFile:  "cookies",
				config.KeyMaxParallel: "parallel",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runGet(ctx, cmd.OutOrStdout(), args)
		},
	}

	flags := cmd.Flags()
	flags.StringP("quality", "q", model.DefaultQuality.String(), "quality: audio, 360p, 480p, 720p, 1080p, max")
	flags.StringP("dir", "d", "", "destination directory (default: ~/Downloads)")
	flags.String("cookies", "", "Netscape cookie file passed to yt-dlp")
	flags.IntP("parallel", "p", config.DefaultMaxParallel, "maximum parallel downloads (1-10)")
	return cmd
}

// runGet submits urls, waits for their jobs and prints a summary. Cancelling
// ctx cancels every job and still waits for them to settle.
func (a *app) runGet(ctx context.Context, out io.Writer, urls []string) error {
	quality := a.settings.GetQuality()
	dir := a.settings.GetDownloadDirectory()
	if err := platform.EnsureWritableDir(dir); err != nil {
		return err
	}

	q, err := a.startQueue(context.Background(), a.settings.GetMaxParallelDownloads())
	if err != nil {
		return err
	}
	defer q.shutdown()

	r := newRenderer(out)
	unsubscribe := q.svc.Subscribe(r)
	defer unsubscribe()

	var ids []string
	rejected := 0
	for _, url := range urls {
		res, err := q.svc.Submit(ctx, download.SubmitRequest{
			URL:            url,
			Quality:        quality,
			DestinationDir: dir,
			CookieFile:     a.settings.GetCookieFile(),
		})
		if res != nil {
			ids = append(ids, res.JobIDs...)
			for _, f := range res.Failed {
				r.entryFailed(url, f)
			}
		}
		if err != nil {
			a.log.WithError(err).WithField("url", url).Error("Submission failed")
			if res == nil {
				rejected++
			}
		}
		if ctx.Err() != nil {
			break
		}
	}

	waited := make(chan error, 1)
	go func() { waited <- q.svc.WaitTerminal(context.Background(), ids...) }()

	select {
	case err = <-waited:
	case <-ctx.Done():
		r.notice("Interrupted, cancelling %d jobs", q.svc.CancelAll())
		err = <-waited
	}
	if err != nil {
		return err
	}

	// flush queued job events so the summary comes last
	unsubscribe()
	jobs := q.svc.ListJobs(download.WithIDs(ids...))
	r.summary(jobs)

	unfinished := rejected
	for _, j := range jobs {
		if j.Status != model.StatusCompleted {
			unfinished++
		}
	}
	if unfinished > 0 {
		return fmt.Errorf("%d of %d downloads did not complete", unfinished, len(jobs)+rejected)
	}
	return nil
}

// bindFlags binds command flags to settings keys so flags override config
func bindFlags(a *app, cmd *cobra.Command, keys map[string]string) error {
	v := a.settings.Viper()
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
