package platform

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ytget/ytdlp/v2"

	"github.com/ytget/ytqueue/internal/model"
)

// Timeout constants
const (
	DefaultPlaylistParseTimeout = 60 * time.Second
)

// URL parameters
const (
	PlaylistURLParam       = "list="
	PlaylistParamSeparator = "&"
)

// URL templates
const (
	YouTubeVideoURLTemplate = "https://www.youtube.com/watch?v=%s"
)

// Playlist title constants
const (
	DefaultPlaylistTitle = "Untitled Playlist"
	PlaylistSuffix       = " Playlist"
	MinPrefixLength      = 10
	MaxTitleLength       = 50
	TitleTruncateSuffix  = "..."
)

// PlaylistEntry is one item returned by a playlist listing
type PlaylistEntry struct {
	VideoID string
	Title   string
}

// PlaylistLister fetches every entry of a playlist by id
type PlaylistLister func(ctx context.Context, playlistID string) ([]PlaylistEntry, error)

// PlaylistParserService expands YouTube playlist URLs into per-video items
type PlaylistParserService struct {
	timeout time.Duration
	list    PlaylistLister
}

// NewPlaylistParserService creates a playlist parser backed by the ytdlp library
func NewPlaylistParserService() *PlaylistParserService {
	return &PlaylistParserService{
		timeout: DefaultPlaylistParseTimeout,
		list:    libraryListItems,
	}
}

// WithLister replaces the listing backend, mainly for tests
func (p *PlaylistParserService) WithLister(list PlaylistLister) *PlaylistParserService {
	p.list = list
	return p
}

// SetTimeout sets the timeout for playlist parsing
func (p *PlaylistParserService) SetTimeout(timeout time.Duration) {
	p.timeout = timeout
}

// ParsePlaylist lists a playlist and returns one resolved item per usable
// entry, in playlist order. Entries without a video id become per-entry
// failures instead of failing the whole call.
func (p *PlaylistParserService) ParsePlaylist(ctx context.Context, url string) (*model.Resolution, error) {
	playlistID, err := ExtractPlaylistID(url)
	if err != nil {
		return nil, model.Errorf(model.KindInvalidInput, "invalid playlist URL %s: %w", url, err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	entries, err := p.list(ctx, playlistID)
	if err != nil {
		return nil, model.Errorf(model.KindExtraction, "failed to get playlist items: %w", err)
	}

	res := &model.Resolution{
		Kind: model.KindPlaylist,
		URL:  url,
	}
	titles := make([]string, 0, len(entries))
	for i, entry := range entries {
		if strings.TrimSpace(entry.VideoID) == "" {
			res.Failures = append(res.Failures, model.EntryError{
				Index:   i + 1,
				Message: "playlist entry has no video id",
			})
			continue
		}
		res.Items = append(res.Items, model.ResolvedItem{
			Title: entry.Title,
			Stream: model.StreamDescriptor{
				ID:  entry.VideoID,
				URL: VideoURL(entry.VideoID),
			},
		})
		titles = append(titles, entry.Title)
	}
	res.Title = extractPlaylistTitle(titles)

	return res, nil
}

// libraryListItems lists a playlist through the ytdlp library
func libraryListItems(ctx context.Context, playlistID string) ([]PlaylistEntry, error) {
	d := ytdlp.New()
	items, err := d.GetPlaylistItemsAll(ctx, playlistID, 0)
	if err != nil {
		return nil, err
	}

	entries := make([]PlaylistEntry, 0, len(items))
	for _, it := range items {
		entries = append(entries, PlaylistEntry{VideoID: it.VideoID, Title: it.Title})
	}
	return entries, nil
}

// IsPlaylistURL checks if the URL carries a YouTube playlist parameter
func IsPlaylistURL(url string) bool {
	return strings.Contains(url, PlaylistURLParam)
}

// ExtractPlaylistID extracts the playlist ID from a YouTube playlist URL.
// Supported forms:
//   - https://www.youtube.com/watch?v=VIDEO_ID&list=PLAYLIST_ID&start_radio=1
//   - https://www.youtube.com/playlist?list=PLAYLIST_ID
func ExtractPlaylistID(url string) (string, error) {
	if !IsPlaylistURL(url) {
		return "", fmt.Errorf("URL does not contain playlist parameter")
	}

	parts := strings.SplitN(url, PlaylistURLParam, 2)
	playlistID := parts[1]
	if idx := strings.Index(playlistID, PlaylistParamSeparator); idx >= 0 {
		playlistID = playlistID[:idx]
	}

	if playlistID == "" {
		return "", fmt.Errorf("empty playlist ID")
	}
	return playlistID, nil
}

// VideoURL builds the watch URL for a YouTube video id
func VideoURL(videoID string) string {
	return fmt.Sprintf(YouTubeVideoURLTemplate, videoID)
}

// extractPlaylistTitle derives a playlist title from its video titles
func extractPlaylistTitle(titles []string) string {
	if len(titles) == 0 {
		return DefaultPlaylistTitle
	}
	if len(titles) > 1 {
		commonPrefix := findCommonPrefix(titles[0], titles[1])
		if len(commonPrefix) > MinPrefixLength {
			return strings.TrimSpace(commonPrefix) + PlaylistSuffix
		}
	}

	firstTitle := titles[0]
	if len(firstTitle) > MaxTitleLength {
		firstTitle = firstTitle[:MaxTitleLength] + TitleTruncateSuffix
	}
	return firstTitle + PlaylistSuffix
}

// findCommonPrefix finds the common prefix between two strings
func findCommonPrefix(s1, s2 string) string {
	minLen := min(len(s1), len(s2))
	for i := 0; i < minLen; i++ {
		if s1[i] != s2[i] {
			return s1[:i]
		}
	}
	return s1[:minLen]
}
