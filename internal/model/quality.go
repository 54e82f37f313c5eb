package model

import (
	"fmt"
	"strings"
)

// Quality is the requested download quality
type Quality string

const (
	QualityAudioOnly Quality = "audio"
	Quality360p      Quality = "360p"
	Quality480p      Quality = "480p"
	Quality720p      Quality = "720p"
	Quality1080p     Quality = "1080p"
	QualityBest      Quality = "best"
)

// DefaultQuality is used when the caller does not pick one
const DefaultQuality = Quality1080p

// qualityHeights maps height-capped qualities to their maximum frame height
var qualityHeights = map[Quality]int{
	Quality360p:  360,
	Quality480p:  480,
	Quality720p:  720,
	Quality1080p: 1080,
}

// Qualities returns every supported quality, lowest first
func Qualities() []Quality {
	return []Quality{QualityAudioOnly, Quality360p, Quality480p, Quality720p, Quality1080p, QualityBest}
}

// ParseQuality converts user input into a Quality. "max" is accepted as an
// alias for best.
func ParseQuality(raw string) (Quality, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	switch normalized {
	case "":
		return DefaultQuality, nil
	case "max":
		return QualityBest, nil
	case "audio_only", "audio-only":
		return QualityAudioOnly, nil
	}
	q := Quality(normalized)
	if !q.IsValid() {
		return "", Errorf(KindInvalidInput, "unknown quality %q (expected audio, 360p, 480p, 720p, 1080p or best)", raw)
	}
	return q, nil
}

// IsValid reports whether q is a supported quality
func (q Quality) IsValid() bool {
	for _, known := range Qualities() {
		if q == known {
			return true
		}
	}
	return false
}

// Height returns the maximum frame height for the quality, or 0 when the
// quality is not height-capped
func (q Quality) Height() int {
	return qualityHeights[q]
}

// IsAudioOnly returns true for the audio-only quality
func (q Quality) IsAudioOnly() bool {
	return q == QualityAudioOnly
}

// String returns the wire name of the quality
func (q Quality) String() string {
	return string(q)
}

// Label returns a short human label
func (q Quality) Label() string {
	switch q {
	case QualityAudioOnly:
		return "audio only"
	case QualityBest:
		return "best available"
	case "":
		return DefaultQuality.String()
	}
	if h := q.Height(); h > 0 {
		return fmt.Sprintf("up to %dp", h)
	}
	return string(q)
}
