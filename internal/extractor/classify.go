package extractor

import (
	"strings"

	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// stderr fragments per error kind, checked in order
var stderrKinds = []struct {
	kind      model.ErrorKind
	fragments []string
}{
	{model.KindFormatUnavailable, []string{"Requested format is not available", "requested format not available"}},
	{model.KindIO, []string{"No space left on device", "Permission denied", "Read-only file system"}},
	{model.KindNetwork, []string{"HTTP Error", "timed out", "Unable to download", "Connection reset", "Temporary failure in name resolution", "Network is unreachable"}},
}

// classifyFailure turns a failed yt-dlp run into a *model.Error. The message
// is the last ERROR line, or the last non-empty stderr line.
func classifyFailure(stderr []string, runErr error) error {
	joined := strings.Join(stderr, "\n")
	kind := model.KindExtraction
	for _, candidate := range stderrKinds {
		if containsAny(joined, candidate.fragments) {
			kind = candidate.kind
			break
		}
	}

	msg := lastErrorLine(stderr)
	if msg == "" && runErr != nil {
		msg = runErr.Error()
	}
	msg = platform.TruncateText(platform.SanitizeText(msg), platform.MaxMessageLength)
	return &model.Error{Kind: kind, Message: msg, Err: runErr}
}

func containsAny(s string, fragments []string) bool {
	for _, f := range fragments {
		if strings.Contains(s, f) {
			return true
		}
	}
	return false
}

func lastErrorLine(lines []string) string {
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if after, found := strings.CutPrefix(line, "ERROR:"); found {
			return strings.TrimSpace(after)
		}
		if last == "" {
			last = line
		}
	}
	return last
}
