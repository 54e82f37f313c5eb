// Package cli is the ytqueue command line: a one-shot downloader and an HTTP
// server over the same queue.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ytget/ytqueue/internal/config"
	"github.com/ytget/ytqueue/internal/extractor"
	"github.com/ytget/ytqueue/internal/logging"
	"github.com/ytget/ytqueue/internal/platform"
)

// app carries state shared by all commands
type app struct {
	version    string
	configFile string

	settings *config.Settings
	log      *logrus.Logger

	// newExtractor builds the extractor backing the queue
	newExtractor func(a *app) (extractor.Extractor, error)
}

// Execute runs the command line and returns the process exit code
func Execute(version string) int {
	cmd := newRootCmd(&app{version: version, newExtractor: newYTDLPExtractor})
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "ytqueue",
		Short:         "Video and playlist download queue",
		Long:          "ytqueue downloads videos and playlists through yt-dlp with a bounded number of parallel downloads.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./ytqueue.yaml or the user config dir)")
	flags.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn, error")
	flags.String("log-file", "", "write JSON logs to this rotating file")

	root.AddCommand(newGetCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

// setup loads settings and configures logging before any command runs
func (a *app) setup(cmd *cobra.Command) error {
	settings, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	v := settings.Viper()
	persistent := cmd.Root().PersistentFlags()
	if err := v.BindPFlag(config.KeyLogLevel, persistent.Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag(config.KeyLogFile, persistent.Lookup("log-file")); err != nil {
		return err
	}

	logger, err := logging.Setup(logging.Options{
		Level: settings.GetLogLevel(),
		File:  settings.GetLogFile(),
		Out:   cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	a.settings = settings
	a.log = logger
	if used := settings.ConfigFileUsed(); used != "" {
		logger.WithField("file", used).Debug("Config loaded")
	}
	return nil
}

// newYTDLPExtractor wires yt-dlp with the resolution cache
func newYTDLPExtractor(a *app) (extractor.Extractor, error) {
	opts := extractor.Options{
		Binary: a.settings.GetYTDLPPath(),
		Logger: a.log,
	}
	if a.settings.GetUsePlaylistLibrary() {
		opts.Playlists = platform.NewPlaylistParserService()
	}

	ytdlp := extractor.NewYTDLP(opts)
	if err := ytdlp.CheckBinary(); err != nil {
		return nil, err
	}
	if !ytdlp.HasFFmpeg() {
		a.log.Warn("ffmpeg not found, falling back to single-file formats")
	}
	return extractor.NewCached(ytdlp, extractor.DefaultResolutionTTL), nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout(), a.version)
		},
	}
}

func printVersion(w io.Writer, version string) {
	fmt.Fprintf(w, "ytqueue %s\n", version)
}
