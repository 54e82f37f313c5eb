package model

// ResolutionKind tells whether a URL pointed to a single video or a playlist
type ResolutionKind string

const (
	KindVideo    ResolutionKind = "video"
	KindPlaylist ResolutionKind = "playlist"
)

// StreamDescriptor identifies one downloadable item for an extractor
type StreamDescriptor struct {
	ID  string // extractor specific id, e.g. a YouTube video id
	URL string // page URL the extractor downloads from
}

// ResolvedItem is one downloadable entry of a resolution
type ResolvedItem struct {
	Title  string
	Stream StreamDescriptor
}

// EntryError records a playlist entry that could not be resolved
type EntryError struct {
	Index   int // 1-based position in the playlist
	URL     string
	Message string
}

// Resolution is the result of resolving a submitted URL
type Resolution struct {
	Kind     ResolutionKind
	Title    string
	URL      string
	Items    []ResolvedItem
	Failures []EntryError
}

// Total returns the number of entries the source listed, resolved or not
func (r *Resolution) Total() int {
	return len(r.Items) + len(r.Failures)
}

// HasFailures reports whether at least one entry failed to resolve
func (r *Resolution) HasFailures() bool {
	return len(r.Failures) > 0
}

// IsPlaylist reports whether the resolution came from a playlist
func (r *Resolution) IsPlaylist() bool {
	return r.Kind == KindPlaylist
}
