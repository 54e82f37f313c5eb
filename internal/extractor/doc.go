// Package extractor defines the boundary between the download queue and the
// media backend. The queue only sees the Extractor interface; YTDLP drives
// yt-dlp through go-ytdlp and Cached memoizes resolutions.
package extractor
