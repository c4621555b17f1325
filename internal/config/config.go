package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config contains the program configuration
type Config struct {
	Verbose   bool   `yaml:"verbose"`
	OutputDir string `yaml:"output_dir"`

	// UserAgent is sent on page and asset fetches. Some source sites
	// reject Go's default agent outright.
	UserAgent string `yaml:"user_agent"`

	Search   SearchConfig   `yaml:"search"`
	Spotify  SpotifyConfig  `yaml:"spotify"`
	CoverArt CoverArtConfig `yaml:"cover_art"`

	// MetadataProviders lists providers in fallback order.
	MetadataProviders   []string `yaml:"metadata_providers"`
	ConfidenceThreshold float64  `yaml:"confidence_threshold"`
}

// SearchConfig controls how queries are turned into search expressions.
type SearchConfig struct {
	// Suffix is appended to every query to scope results toward
	// downloadable audio pages, e.g. "mp3 download".
	Suffix string `yaml:"suffix"`

	// Site restricts results to one host via a site: operator. Optional.
	Site string `yaml:"site"`

	MaxResults int `yaml:"max_results"`

	// PauseSeconds is the minimum gap between search requests, to
	// tolerate provider throttling.
	PauseSeconds int `yaml:"pause_seconds"`
}

// SpotifyConfig holds Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// CoverArtConfig controls cover-art embedding.
type CoverArtConfig struct {
	// Strict makes a cover-image fetch failure abort the whole tagging
	// operation. The default (lenient) skips cover art and continues.
	Strict bool `yaml:"strict"`

	// MaxSize is the maximum width/height in pixels before the image is
	// downscaled for embedding.
	MaxSize int `yaml:"max_size"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Verbose:   false,
		OutputDir: filepath.Join(homeDir(), "Music"),
		UserAgent: defaultUserAgent,
		Search: SearchConfig{
			Suffix:       "mp3 download",
			MaxResults:   5,
			PauseSeconds: 2,
		},
		CoverArt: CoverArtConfig{
			Strict:  false,
			MaxSize: 1000,
		},
		MetadataProviders:   []string{"spotify", "deezer"},
		ConfidenceThreshold: 0.7,
	}
}

// LoadConfigFile loads configuration from a YAML file.
// If path is empty, searches standard locations. Returns defaults if no file
// found. Spotify credentials can also come from the environment (or a .env
// file): SPOTIFY_CLIENT_ID / SPOTIFY_CLIENT_SECRET override the file values.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		path = FindConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.OutputDir = ExpandHome(cfg.OutputDir)
	loadEnv(&cfg)

	return cfg, nil
}

// loadEnv overlays secrets from the environment, reading a local .env file
// first when one exists.
func loadEnv(cfg *Config) {
	// Missing .env is fine; real environment still applies.
	_ = godotenv.Load()

	if id := os.Getenv("SPOTIFY_CLIENT_ID"); id != "" {
		cfg.Spotify.ClientID = id
	}
	if secret := os.Getenv("SPOTIFY_CLIENT_SECRET"); secret != "" {
		cfg.Spotify.ClientSecret = secret
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// FindConfigFile searches for a config file in standard locations
func FindConfigFile() string {
	home := homeDir()
	locations := []string{
		"./songfetch.yaml",
		"./songfetch.yml",
		filepath.Join(home, ".config", "songfetch", "config.yaml"),
		filepath.Join(home, ".config", "songfetch", "config.yml"),
		filepath.Join(home, ".songfetch.yaml"),
		filepath.Join(home, ".songfetch.yml"),
	}

	for _, path := range locations {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// SaveConfigFile saves the current configuration to a YAML file
func SaveConfigFile(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetDefaultConfigPath returns the default config file path
func GetDefaultConfigPath() string {
	return filepath.Join(homeDir(), ".config", "songfetch", "config.yaml")
}

// GetDefaultLogPath returns the default log directory path
func GetDefaultLogPath() string {
	return filepath.Join(homeDir(), ".local", "share", "songfetch", "logs")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return os.Getenv("HOME")
	}
	return home
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}

	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search max_results must be at least 1, got %d", c.Search.MaxResults)
	}
	if c.Search.MaxResults > 20 {
		return fmt.Errorf("search max_results cannot exceed 20, got %d", c.Search.MaxResults)
	}
	if c.Search.PauseSeconds < 0 {
		return fmt.Errorf("search pause_seconds cannot be negative, got %d", c.Search.PauseSeconds)
	}

	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be between 0.0 and 1.0, got %.2f", c.ConfidenceThreshold)
	}

	if c.CoverArt.MaxSize < 0 {
		return fmt.Errorf("cover_art max_size cannot be negative, got %d", c.CoverArt.MaxSize)
	}

	validProviders := map[string]bool{"spotify": true, "deezer": true}
	for _, p := range c.MetadataProviders {
		if !validProviders[p] {
			return fmt.Errorf("unknown metadata provider %q, valid providers: spotify, deezer", p)
		}
	}

	// Spotify credentials are optional: listing spotify in
	// metadata_providers without them just skips that provider at
	// runtime. A half-configured pair is always a mistake.
	if (c.Spotify.ClientID == "") != (c.Spotify.ClientSecret == "") {
		return fmt.Errorf("spotify client_id and client_secret must be set together")
	}

	return nil
}
