package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// Suffixes yt-dlp uses for in-flight downloads
const (
	PartSuffix = ".part"
	YTDLSuffix = ".ytdl"
)

// MaxNameDifference is how many characters two file stems may differ by and
// still be treated as the same download (yt-dlp trims long titles)
const MaxNameDifference = 10

// writeProbePattern names the temp file used to check a directory is writable
const writeProbePattern = ".ytqueue-probe-*"

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// EnsureWritableDir creates dirPath if needed and checks that files can be
// created inside it
func EnsureWritableDir(dirPath string) error {
	if strings.TrimSpace(dirPath) == "" {
		return fmt.Errorf("destination directory is empty")
	}
	if err := CreateDirectoryIfNotExists(dirPath); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}

	info, err := os.Stat(dirPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", dirPath, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("destination is not a directory: %s", dirPath)
	}

	probe, err := os.CreateTemp(dirPath, writeProbePattern)
	if err != nil {
		return fmt.Errorf("directory is not writable %s: %w", dirPath, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	if runtime.GOOS == "android" || os.Getenv("ANDROID_DATA") != "" {
		return "/sdcard/Download", nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, "Downloads"), nil
}

// IsPartialFile reports whether name is an in-flight download artifact
func IsPartialFile(name string) bool {
	return strings.HasSuffix(name, PartSuffix) || strings.HasSuffix(name, YTDLSuffix)
}

// partialCandidates expands each path with the sibling files yt-dlp may have
// left behind for it
func partialCandidates(paths []string) []string {
	seen := make(map[string]struct{})
	add := func(p string) {
		if p != "" {
			seen[p] = struct{}{}
		}
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		add(p)
		add(p + PartSuffix)
		add(p + YTDLSuffix)
		if strings.HasSuffix(p, PartSuffix) {
			add(strings.TrimSuffix(p, PartSuffix))
		}
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// RemovePartialFiles deletes the given files or directories together with
// their .part/.ytdl siblings. Missing paths are ignored. It returns how many
// entries were removed.
func RemovePartialFiles(paths []string) (int, error) {
	removed := 0
	var errs []error
	for _, p := range partialCandidates(paths) {
		info, err := os.Lstat(p)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if info.IsDir() {
			err = os.RemoveAll(p)
		} else {
			err = os.Remove(p)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// FindDownloadedFile returns filePath if it exists. Otherwise it looks in the
// same directory for the file the downloader actually produced: the same stem
// with another extension (after merging) or a slightly different stem with
// the same extension (after title trimming).
func FindDownloadedFile(filePath string) (string, error) {
	if filePath == "" {
		return "", fmt.Errorf("file path is empty")
	}
	if strings.HasPrefix(filePath, "http") {
		return "", fmt.Errorf("file path appears to be a URL: %s", filePath)
	}

	if _, err := os.Stat(filePath); err == nil {
		return filePath, nil
	}

	dir := filepath.Dir(filePath)
	originalName := filepath.Base(filePath)
	originalExt := filepath.Ext(originalName)
	baseName := strings.TrimSuffix(originalName, originalExt)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var sameStem, similar []string
	for _, entry := range entries {
		if entry.IsDir() || IsPartialFile(entry.Name()) {
			continue
		}

		entryName := entry.Name()
		entryExt := filepath.Ext(entryName)
		entryBase := strings.TrimSuffix(entryName, entryExt)

		switch {
		case entryBase == baseName:
			sameStem = append(sameStem, filepath.Join(dir, entryName))
		case entryExt == originalExt && isSimilarFileName(entryBase, baseName):
			similar = append(similar, filepath.Join(dir, entryName))
		}
	}

	if len(sameStem) > 0 {
		sort.Strings(sameStem)
		return sameStem[0], nil
	}
	if len(similar) > 0 {
		sort.Strings(similar)
		return similar[0], nil
	}

	return "", fmt.Errorf("file not found: %s", filePath)
}

// isSimilarFileName checks if two file names are similar enough to be considered the same file
func isSimilarFileName(name1, name2 string) bool {
	clean1 := strings.TrimSpace(name1)
	clean2 := strings.TrimSpace(name2)

	if clean1 == clean2 {
		return true
	}

	for _, sep := range []string{"-", "_", " "} {
		if clean2 == sep+clean1 || clean2 == clean1+sep || clean1 == sep+clean2 || clean1 == clean2+sep {
			return true
		}
	}

	// Truncated names
	if strings.Contains(clean1, clean2) || strings.Contains(clean2, clean1) {
		diff := len(clean1) - len(clean2)
		if diff < 0 {
			diff = -diff
		}
		return diff <= MaxNameDifference
	}

	return false
}
