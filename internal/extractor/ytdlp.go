package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// Defaults for the yt-dlp adapter
const (
	DefaultBinary             = "yt-dlp"
	DefaultCancelPollInterval = 200 * time.Millisecond
	DefaultProgressInterval   = 250 * time.Millisecond
)

// Options configures YTDLP
type Options struct {
	// Binary is the yt-dlp executable, looked up on PATH when not absolute
	Binary string

	// FFmpeg forces merge support on or off; nil detects ffmpeg on PATH
	FFmpeg *bool

	// Playlists lists playlist URLs through the ytdlp library instead of the CLI.
	// Nil disables it.
	Playlists *platform.PlaylistParserService

	CancelPollInterval time.Duration
	ProgressInterval   time.Duration
	Logger             logrus.FieldLogger
}

// YTDLP is an Extractor backed by the yt-dlp command line tool
type YTDLP struct {
	binary    string
	ffmpeg    bool
	playlists *platform.PlaylistParserService
	poll      time.Duration
	interval  time.Duration
	log       logrus.FieldLogger
}

// NewYTDLP creates a yt-dlp backed extractor
func NewYTDLP(opts Options) *YTDLP {
	y := &YTDLP{
		binary:    opts.Binary,
		playlists: opts.Playlists,
		poll:      opts.CancelPollInterval,
		interval:  opts.ProgressInterval,
		log:       opts.Logger,
	}
	if y.binary == "" {
		y.binary = DefaultBinary
	}
	if y.poll <= 0 {
		y.poll = DefaultCancelPollInterval
	}
	if y.interval <= 0 {
		y.interval = DefaultProgressInterval
	}
	if y.log == nil {
		y.log = logrus.StandardLogger()
	}
	if opts.FFmpeg != nil {
		y.ffmpeg = *opts.FFmpeg
	} else {
		_, err := exec.LookPath("ffmpeg")
		y.ffmpeg = err == nil
	}
	return y
}

// CheckBinary verifies that the yt-dlp executable can be found
func (y *YTDLP) CheckBinary() error {
	if _, err := exec.LookPath(y.binary); err != nil {
		return fmt.Errorf("yt-dlp not found (%s): %w", y.binary, err)
	}
	return nil
}

// HasFFmpeg reports whether merged video+audio formats are requested
func (y *YTDLP) HasFFmpeg() bool {
	return y.ffmpeg
}

func (y *YTDLP) command() *ytdlp.Command {
	return ytdlp.New().
		SetExecutable(y.binary).
		NoWarnings()
}

// Resolve lists a video or playlist without downloading it. Playlists are
// listed through the ytdlp library when it is enabled and no cookie file is
// given, since the library cannot send cookies.
func (y *YTDLP) Resolve(ctx context.Context, url string, opts ResolveOptions) (*model.Resolution, error) {
	if y.playlists != nil && opts.CookieFile == "" && platform.IsPlaylistURL(url) {
		res, err := y.playlists.ParsePlaylist(ctx, url)
		if err == nil {
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, model.Wrap(model.KindCancelled, ctx.Err(), "resolve cancelled")
		}
		y.log.WithError(err).WithField("url", url).Warn("playlist library failed, falling back to yt-dlp")
	}

	dl := y.command().
		FlatPlaylist().
		DumpSingleJSON()
	if opts.CookieFile != "" {
		dl.Cookies(opts.CookieFile)
	}

	y.log.WithField("url", url).Debug("resolving")
	res, err := dl.Run(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, model.Wrap(model.KindCancelled, ctx.Err(), "resolve cancelled")
		}
		return nil, model.Wrap(model.KindExtraction, classifyFailure(stderrLines(res), err), "failed to resolve "+url)
	}
	if res == nil || strings.TrimSpace(res.Stdout) == "" {
		return nil, model.Errorf(model.KindExtraction, "yt-dlp returned empty output for %s", url)
	}

	return parseResolution(url, []byte(res.Stdout))
}

// parseResolution reads the output of yt-dlp --flat-playlist -J
func parseResolution(sourceURL string, data []byte) (*model.Resolution, error) {
	if !gjson.ValidBytes(data) {
		return nil, model.Errorf(model.KindExtraction, "yt-dlp returned invalid JSON for %s", sourceURL)
	}
	root := gjson.ParseBytes(data)
	entries := root.Get("entries")

	if root.Get("_type").String() != "playlist" && !entries.IsArray() {
		streamURL := root.Get("webpage_url").String()
		if streamURL == "" {
			streamURL = sourceURL
		}
		return &model.Resolution{
			Kind:  model.KindVideo,
			Title: root.Get("title").String(),
			URL:   sourceURL,
			Items: []model.ResolvedItem{{
				Title:  root.Get("title").String(),
				Stream: model.StreamDescriptor{ID: root.Get("id").String(), URL: streamURL},
			}},
		}, nil
	}

	res := &model.Resolution{
		Kind:  model.KindPlaylist,
		Title: root.Get("title").String(),
		URL:   sourceURL,
	}
	if res.Title == "" {
		res.Title = platform.DefaultPlaylistTitle
	}
	for i, entry := range entries.Array() {
		index := i + 1
		if !entry.IsObject() {
			res.Failures = append(res.Failures, model.EntryError{Index: index, Message: "playlist entry is unavailable"})
			continue
		}
		streamURL := entryURL(entry)
		if streamURL == "" {
			res.Failures = append(res.Failures, model.EntryError{
				Index:   index,
				Message: "playlist entry has no usable URL",
			})
			continue
		}
		res.Items = append(res.Items, model.ResolvedItem{
			Title:  entry.Get("title").String(),
			Stream: model.StreamDescriptor{ID: entry.Get("id").String(), URL: streamURL},
		})
	}
	return res, nil
}

// entryURL picks the page URL of a flat playlist entry
func entryURL(entry gjson.Result) string {
	if u := entry.Get("webpage_url").String(); u != "" {
		return u
	}
	if u := entry.Get("url").String(); strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://") {
		return u
	}
	if id := entry.Get("id").String(); id != "" {
		return platform.VideoURL(id)
	}
	return ""
}

// Download runs yt-dlp for one item. Intermediate files go to a per-job temp
// directory under the destination, which is reported in Result.Partial.
func (y *YTDLP) Download(ctx context.Context, req Request, progress ProgressFunc, cancel CancelCheck) (Result, error) {
	if cancel != nil && cancel() {
		return Result{}, model.Errorf(model.KindCancelled, "download cancelled")
	}

	tempDir := filepath.Join(req.DestinationDir, tempDirPrefix+req.JobID)
	result := Result{Partial: []string{tempDir}}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	var cancelled atomic.Bool
	requestStop := func() {
		if cancelled.CompareAndSwap(false, true) {
			stop()
		}
	}

	tracker := newProgressTracker()
	dl := y.downloadCommand(req, tempDir)
	dl.ProgressFunc(y.interval, func(update ytdlp.ProgressUpdate) {
		if cancel != nil && cancel() {
			requestStop()
			return
		}
		if progress != nil {
			progress(tracker.update(update))
		}
	})

	// Monitor for stop requests between progress updates
	finished := make(chan struct{})
	go func() {
		ticker := time.NewTicker(y.poll)
		defer ticker.Stop()
		for {
			select {
			case <-finished:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if cancel != nil && cancel() {
					requestStop()
					return
				}
			}
		}
	}()

	log := y.log.WithFields(logrus.Fields{"job": req.JobID, "url": req.Stream.URL})
	log.WithField("format", FormatSelector(req.Quality, y.ffmpeg)).Debug("starting yt-dlp")

	res, err := dl.Run(runCtx, req.Stream.URL)
	close(finished)

	outputPath := outputPathFrom(res)
	if outputPath != "" {
		result.Partial = append(result.Partial, outputPath)
	}
	if cancelled.Load() || ctx.Err() != nil {
		log.Debug("yt-dlp stopped on cancel")
		return result, model.Errorf(model.KindCancelled, "download cancelled")
	}
	if err != nil {
		return result, classifyFailure(stderrLines(res), err)
	}
	if outputPath == "" {
		return result, model.Errorf(model.KindIO, "yt-dlp did not report an output file")
	}

	found, err := platform.FindDownloadedFile(outputPath)
	if err != nil {
		return result, model.Wrap(model.KindIO, err, "locate downloaded file")
	}
	if err := os.RemoveAll(tempDir); err != nil {
		log.WithError(err).Warn("failed to remove temp dir")
	}
	return Result{Path: found}, nil
}

// downloadCommand configures yt-dlp for one transfer
func (y *YTDLP) downloadCommand(req Request, tempDir string) *ytdlp.Command {
	dl := y.command().
		NoPlaylist().
		Format(FormatSelector(req.Quality, y.ffmpeg)).
		Paths("temp:" + tempDir).
		Output(filepath.Join(req.DestinationDir, outputTemplate)).
		Print(filepathPrint).
		NoSimulate().
		Progress().
		Newline()
	if req.CookieFile != "" {
		dl.Cookies(req.CookieFile)
	}
	return dl
}

// outputPathFrom finds the final file in the printed after_move line, or in
// the extracted info when yt-dlp printed JSON
func outputPathFrom(res *ytdlp.Result) string {
	if res == nil {
		return ""
	}
	var path string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if p, ok := parseFilepathLine(line); ok {
			path = p
		}
	}
	if path != "" {
		return path
	}

	info, err := res.GetExtractedInfo()
	if err == nil && len(info) > 0 && info[0].Filename != nil {
		return *info[0].Filename
	}
	return ""
}

func stderrLines(res *ytdlp.Result) []string {
	if res == nil {
		return nil
	}
	return strings.Split(res.Stderr, "\n")
}
