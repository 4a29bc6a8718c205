package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Duration is a time.Duration written as a Go duration string ("2s").
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type (
	// Storage selects the backends for projects, assets and the editor's
	// local history mirror.
	Storage struct {
		Type           string `toml:"type"`
		LocalPath      string `toml:"local_path"`
		DataSourceName string `toml:"data_source_name"`
		S3Bucket       string `toml:"s3_bucket"`
		LocalStoreType string `toml:"local_store_type"`
		LocalStorePath string `toml:"local_store_path"` // directory for filesystem, database file for sqlite
	}

	// Editor tunes editing sessions.
	Editor struct {
		DebounceWindow Duration `toml:"debounce_window"`
		HistoryLimit   int      `toml:"history_limit"`
		RemoteTimeout  Duration `toml:"remote_timeout"`
		ThumbnailWidth int      `toml:"thumbnail_width"`
	}

	Config struct {
		ListenAddr     string   `toml:"listen_addr"`
		LogLevel       string   `toml:"log_level"`
		JWTSecret      string   `toml:"jwt_secret"`
		AllowedOrigins []string `toml:"allowed_origins"`
		Storage        Storage  `toml:"storage"`
		Editor         Editor   `toml:"editor"`
	}
)

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		ListenAddr: ":3002",
		LogLevel:   "info",
		Storage: Storage{
			Type:           "memory",
			LocalPath:      "./data",
			DataSourceName: "editor.db",
			LocalStoreType: "memory",
			LocalStorePath: "./data/local",
		},
		Editor: Editor{
			DebounceWindow: Duration(2 * time.Second),
			RemoteTimeout:  Duration(10 * time.Second),
			ThumbnailWidth: 320,
		},
	}
}

// Load reads the TOML file at path on top of the defaults, then applies
// environment overrides. An empty path or a missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LISTEN_ADDR":        &c.ListenAddr,
		"LOG_LEVEL":          &c.LogLevel,
		"JWT_SECRET":         &c.JWTSecret,
		"STORAGE_TYPE":       &c.Storage.Type,
		"LOCAL_STORAGE_PATH": &c.Storage.LocalPath,
		"DATA_SOURCE_NAME":   &c.Storage.DataSourceName,
		"S3_BUCKET_NAME":     &c.Storage.S3Bucket,
		"LOCAL_STORE_TYPE":   &c.Storage.LocalStoreType,
		"LOCAL_STORE_PATH":   &c.Storage.LocalStorePath,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("ALLOWED_ORIGINS"); ok && v != "" {
		c.AllowedOrigins = strings.Split(v, ",")
	}

	durations := map[string]*Duration{
		"DEBOUNCE_WINDOW": &c.Editor.DebounceWindow,
		"REMOTE_TIMEOUT":  &c.Editor.RemoteTimeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
		}
	}

	ints := map[string]*int{
		"HISTORY_LIMIT":   &c.Editor.HistoryLimit,
		"THUMBNAIL_WIDTH": &c.Editor.ThumbnailWidth,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s: %w", key, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate reports settings no backend can start with.
func (c Config) Validate() error {
	switch c.Storage.Type {
	case "memory", "filesystem", "sqlite":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET_NAME must be set for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}
	switch c.Storage.LocalStoreType {
	case "memory", "filesystem", "sqlite":
	default:
		return fmt.Errorf("unknown local store type %q", c.Storage.LocalStoreType)
	}
	if c.Editor.DebounceWindow < 0 || c.Editor.RemoteTimeout < 0 {
		return fmt.Errorf("durations cannot be negative")
	}
	if c.Editor.HistoryLimit < 0 {
		return fmt.Errorf("history limit cannot be negative")
	}
	if c.Editor.ThumbnailWidth <= 0 {
		return fmt.Errorf("thumbnail width must be positive")
	}
	return nil
}
