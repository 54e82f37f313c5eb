package extractor

import (
	"fmt"
	"strings"

	"github.com/ytget/ytqueue/internal/model"
)

// Format selectors
const (
	formatAudioOnly    = "bestaudio/best"
	formatBestMerged   = "bestvideo+bestaudio/best"
	formatBestSingle   = "best"
	formatCappedMerged = "bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]/best[height<=%[1]d]"
	formatCappedSingle = "best[height<=%d]/best"
	outputTemplate     = "%(title).200s [%(id)s].%(ext)s"
	tempDirPrefix      = ".ytqueue-"
	filepathMarker     = "ytqueue-file"
	filepathPrint      = "after_move:" + filepathMarker + " %(filepath)s"
)

// FormatSelector maps a quality to a yt-dlp -f expression. Without ffmpeg
// separate video and audio streams cannot be merged, so only single-file
// formats are requested.
func FormatSelector(q model.Quality, ffmpeg bool) string {
	if q == "" {
		q = model.DefaultQuality
	}
	if q.IsAudioOnly() {
		return formatAudioOnly
	}

	h := q.Height()
	switch {
	case h == 0 && ffmpeg:
		return formatBestMerged
	case h == 0:
		return formatBestSingle
	case ffmpeg:
		return fmt.Sprintf(formatCappedMerged, h)
	default:
		return fmt.Sprintf(formatCappedSingle, h)
	}
}

// parseFilepathLine reads a line printed by filepathPrint
func parseFilepathLine(line string) (string, bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(line), filepathMarker+" ")
	if !found {
		return "", false
	}
	rest = strings.TrimSpace(rest)
	return rest, rest != ""
}
