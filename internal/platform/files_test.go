package platform

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCreateDirectoryIfNotExists(t *testing.T) {
	tempDir := t.TempDir()
	testDir := filepath.Join(tempDir, "test_dir")

	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatalf("Test directory already exists: %s", testDir)
	}

	err := CreateDirectoryIfNotExists(testDir)
	if err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if _, err := os.Stat(testDir); os.IsNotExist(err) {
		t.Fatalf("Directory was not created: %s", testDir)
	}

	// Second call should not fail
	err = CreateDirectoryIfNotExists(testDir)
	if err != nil {
		t.Fatalf("Failed to handle existing directory: %v", err)
	}
}

func TestEnsureWritableDir(t *testing.T) {
	tempDir := t.TempDir()
	nested := filepath.Join(tempDir, "a", "b")

	if err := EnsureWritableDir(nested); err != nil {
		t.Fatalf("Expected nested directory to be created, got %v", err)
	}

	entries, err := os.ReadDir(nested)
	if err != nil {
		t.Fatalf("Failed to read directory: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected probe file to be removed, found %d entries", len(entries))
	}
}

func TestEnsureWritableDir_Rejects(t *testing.T) {
	if err := EnsureWritableDir("  "); err == nil {
		t.Error("Expected error for empty directory")
	}

	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := EnsureWritableDir(file); err == nil {
		t.Error("Expected error when destination is a regular file")
	}
}

func TestGetHomeDownloadsDir(t *testing.T) {
	if os.Getenv("ANDROID_DATA") != "" {
		t.Skip("android layout")
	}
	downloadsDir, err := GetHomeDownloadsDir()
	if err != nil {
		t.Fatalf("Failed to get downloads directory: %v", err)
	}

	if filepath.Base(downloadsDir) != "Downloads" {
		t.Errorf("Expected directory to end with 'Downloads', got: %s", downloadsDir)
	}
}

func TestRemovePartialFiles(t *testing.T) {
	tempDir := t.TempDir()
	video := filepath.Join(tempDir, "clip [abc].mp4")
	part := video + PartSuffix
	ytdl := video + YTDLSuffix
	tmpDir := filepath.Join(tempDir, ".ytqueue-task-1")
	keep := filepath.Join(tempDir, "other.mp4")

	for _, p := range []string{part, ytdl, keep} {
		if err := os.WriteFile(p, []byte("data"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(tmpDir, "nested"), 0755); err != nil {
		t.Fatal(err)
	}

	removed, err := RemovePartialFiles([]string{video, tmpDir, ""})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if removed != 3 {
		t.Errorf("Expected 3 removed entries, got %d", removed)
	}

	for _, p := range []string{part, ytdl, tmpDir} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Expected %s to be removed", p)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("Unrelated file should be kept: %v", err)
	}
}

func TestFindDownloadedFile_ExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	found, err := FindDownloadedFile(path)
	if err != nil {
		t.Fatalf("Failed to find existing file: %v", err)
	}
	if found != path {
		t.Errorf("Expected path %s, got %s", path, found)
	}
}

func TestFindDownloadedFile_MergedExtension(t *testing.T) {
	tempDir := t.TempDir()
	merged := filepath.Join(tempDir, "Some Title [id1].mkv")
	if err := os.WriteFile(merged, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(tempDir, "Some Title [id1].webm.part"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	found, err := FindDownloadedFile(filepath.Join(tempDir, "Some Title [id1].webm"))
	if err != nil {
		t.Fatalf("Failed to find merged file: %v", err)
	}
	if found != merged {
		t.Errorf("Expected %s, got %s", merged, found)
	}
}

func TestFindDownloadedFile_SimilarFileName(t *testing.T) {
	tempDir := t.TempDir()
	similarPath := filepath.Join(tempDir, "-test_video.mp4")
	if err := os.WriteFile(similarPath, nil, 0644); err != nil {
		t.Fatal(err)
	}

	found, err := FindDownloadedFile(filepath.Join(tempDir, "test_video.mp4"))
	if err != nil {
		t.Fatalf("Failed to find similar file: %v", err)
	}
	if found != similarPath {
		t.Errorf("Expected path %s, got %s", similarPath, found)
	}
}

func TestFindDownloadedFile_NoSimilarFile(t *testing.T) {
	tempDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tempDir, "a.mp4"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	originalPath := filepath.Join(tempDir, "test_video.mp4")
	_, err := FindDownloadedFile(originalPath)
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}

	expectedError := "file not found: " + originalPath
	if err.Error() != expectedError {
		t.Errorf("Expected error message %s, got %v", expectedError, err)
	}
}

func TestIsSimilarFileName(t *testing.T) {
	tests := []struct {
		name1, name2 string
		expected     bool
	}{
		{"test", "test", true},
		{"test", "-test", true},
		{"test", "test-", true},
		{"test", "_test", true},
		{"test", " test", true},
		{"test", "other", false},
		{"test_video", "test_video_long", true},
		{"test_video_very_long_name", "test_video", false},
	}

	for _, tt := range tests {
		t.Run(tt.name1+"_"+tt.name2, func(t *testing.T) {
			result := isSimilarFileName(tt.name1, tt.name2)
			if result != tt.expected {
				t.Errorf("isSimilarFileName(%q, %q) = %v, expected %v",
					tt.name1, tt.name2, result, tt.expected)
			}
		})
	}
}

func TestIsPartialFile(t *testing.T) {
	if !IsPartialFile("a.mp4.part") || !IsPartialFile("a.mp4.ytdl") {
		t.Error("Expected .part and .ytdl to be partial files")
	}
	if IsPartialFile("a.mp4") {
		t.Error("Expected a.mp4 not to be a partial file")
	}
}
