package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ytget/ytqueue/internal/model"
	"github.com/ytget/ytqueue/internal/platform"
)

// Settings keys
const (
	KeyDownloadDir        = "download_dir"
	KeyCookieFile         = "cookie_file"
	KeyQuality            = "quality"
	KeyMaxParallel        = "max_parallel"
	KeyRetries            = "retries"
	KeyKeepPartial        = "keep_partial"
	KeyYTDLPPath          = "ytdlp_path"
	KeyUsePlaylistLibrary = "use_playlist_library"
	KeyLogFile            = "log_file"
	KeyLogLevel           = "log_level"
	KeyListen             = "listen"
)

// Default values
const (
	DefaultMaxParallel        = 3
	MinMaxParallel            = 1
	MaxMaxParallel            = 10
	DefaultRetries            = 1
	MaxRetries                = 5
	DefaultKeepPartial        = false
	DefaultYTDLPPath          = "yt-dlp"
	DefaultUsePlaylistLibrary = true
	DefaultLogLevel           = "info"
	DefaultListen             = "127.0.0.1:8089"
	FallbackDownloadDir       = "/tmp/downloads"
)

// Config sources
const (
	EnvPrefix      = "YTQUEUE"
	ConfigName     = "ytqueue"
	ConfigDirName  = "ytqueue"
	DotEnvFileName = ".env"
)

// Settings manages application configuration
type Settings struct {
	v *viper.Viper
}

// NewSettings creates a settings manager over v with defaults registered
func NewSettings(v *viper.Viper) *Settings {
	if v == nil {
		v = viper.New()
	}
	v.SetDefault(KeyQuality, model.DefaultQuality.String())
	v.SetDefault(KeyMaxParallel, DefaultMaxParallel)
	v.SetDefault(KeyRetries, DefaultRetries)
	v.SetDefault(KeyKeepPartial, DefaultKeepPartial)
	v.SetDefault(KeyYTDLPPath, DefaultYTDLPPath)
	v.SetDefault(KeyUsePlaylistLibrary, DefaultUsePlaylistLibrary)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyListen, DefaultListen)
	return &Settings{v: v}
}

// Load reads .env, the environment and an optional config file. An explicit
// configFile must exist; otherwise ytqueue.{yaml,toml,json} is looked up in
// the working directory and the user config directory.
func Load(configFile string) (*Settings, error) {
	if err := godotenv.Load(DotEnvFileName); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", DotEnvFileName, err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
		return NewSettings(v), nil
	}

	v.SetConfigName(ConfigName)
	v.AddConfigPath(".")
	if dir, err := os.UserConfigDir(); err == nil {
		v.AddConfigPath(filepath.Join(dir, ConfigDirName))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}
	return NewSettings(v), nil
}

// Viper exposes the underlying store for flag binding
func (s *Settings) Viper() *viper.Viper {
	return s.v
}

// ConfigFileUsed returns the config file that was read, if any
func (s *Settings) ConfigFileUsed() string {
	return s.v.ConfigFileUsed()
}

// GetDownloadDirectory returns the configured download directory
func (s *Settings) GetDownloadDirectory() string {
	dir := s.v.GetString(KeyDownloadDir)
	if dir == "" {
		// Use system default Downloads directory
		defaultDir, err := platform.GetHomeDownloadsDir()
		if err != nil {
			defaultDir = FallbackDownloadDir
		}
		s.SetDownloadDirectory(defaultDir)
		return defaultDir
	}
	return dir
}

// SetDownloadDirectory sets the download directory
func (s *Settings) SetDownloadDirectory(dir string) {
	s.v.Set(KeyDownloadDir, dir)
}

// GetCookieFile returns the cookies.txt path, empty when unset
func (s *Settings) GetCookieFile() string {
	return strings.TrimSpace(s.v.GetString(KeyCookieFile))
}

// SetCookieFile sets the cookies.txt path
func (s *Settings) SetCookieFile(path string) {
	s.v.Set(KeyCookieFile, path)
}

// GetMaxParallelDownloads returns the maximum number of parallel downloads
func (s *Settings) GetMaxParallelDownloads() int {
	return clamp(s.v.GetInt(KeyMaxParallel), MinMaxParallel, MaxMaxParallel)
}

// SetMaxParallelDownloads sets the maximum number of parallel downloads
func (s *Settings) SetMaxParallelDownloads(count int) {
	s.v.Set(KeyMaxParallel, clamp(count, MinMaxParallel, MaxMaxParallel))
}

// GetQuality returns the configured quality, falling back to the default
// when the stored value is not recognised
func (s *Settings) GetQuality() model.Quality {
	q, err := model.ParseQuality(s.v.GetString(KeyQuality))
	if err != nil {
		return model.DefaultQuality
	}
	return q
}

// SetQuality validates and stores a quality
func (s *Settings) SetQuality(raw string) error {
	q, err := model.ParseQuality(raw)
	if err != nil {
		return err
	}
	s.v.Set(KeyQuality, q.String())
	return nil
}

// GetQualityOptions returns available quality options
func (s *Settings) GetQualityOptions() []model.Quality {
	return model.Qualities()
}

// GetRetries returns how many times network failures are retried
func (s *Settings) GetRetries() int {
	return clamp(s.v.GetInt(KeyRetries), 0, MaxRetries)
}

// GetKeepPartial returns whether partial files survive cancellation
func (s *Settings) GetKeepPartial() bool {
	return s.v.GetBool(KeyKeepPartial)
}

// GetYTDLPPath returns the yt-dlp executable
func (s *Settings) GetYTDLPPath() string {
	if p := strings.TrimSpace(s.v.GetString(KeyYTDLPPath)); p != "" {
		return p
	}
	return DefaultYTDLPPath
}

// GetUsePlaylistLibrary returns whether playlists are listed through the ytdlp library
func (s *Settings) GetUsePlaylistLibrary() bool {
	return s.v.GetBool(KeyUsePlaylistLibrary)
}

// GetLogFile returns the log file path, empty for stderr only
func (s *Settings) GetLogFile() string {
	return s.v.GetString(KeyLogFile)
}

// GetLogLevel returns the log level name
func (s *Settings) GetLogLevel() string {
	return s.v.GetString(KeyLogLevel)
}

// GetListenAddress returns the HTTP listen address
func (s *Settings) GetListenAddress() string {
	return s.v.GetString(KeyListen)
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
