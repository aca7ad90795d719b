package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Match modes for track equality
const (
	MatchExact = "exact" // id, name and adder must all match
	MatchByID  = "id"    // only the track id is compared
)

// Config represents the application configuration loaded from a TOML file and overlaid with the environment.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Watch       WatchConfig       `toml:"watch"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	Twilio  TwilioConfig  `toml:"twilio"`
}

// SpotifyConfig contains Spotify API credentials and the saved OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id" env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string    `toml:"client_secret" env:"SPOTIFY_CLIENT_SECRET"`
	RedirectURI  string    `toml:"redirect_uri" env:"SPOTIFY_REDIRECT_URI"`
	Username     string    `toml:"username" env:"SPOTIFY_USERNAME"` // account whose playlists are scanned
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenExpiry  time.Time `toml:"token_expiry"`
}

// TwilioConfig contains the messaging account used to send alerts.
type TwilioConfig struct {
	AccountSID string `toml:"account_sid" env:"TWILIO_ACCOUNT_SID"`
	AuthToken  string `toml:"auth_token" env:"TWILIO_AUTH_TOKEN"`
	FromNumber string `toml:"from_number" env:"TWILIO_NUMBER"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path" env:"PLWATCH_DB_PATH"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the OAuth callback server and the optional metrics listener.
type ServerConfig struct {
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	MetricsAddr string `toml:"metrics_addr" env:"PLWATCH_METRICS_ADDR"`
}

// WatchConfig controls which playlists are tracked and how often they are polled.
type WatchConfig struct {
	Playlists         []string      `toml:"playlists" env:"PLWATCH_PLAYLISTS"`
	Interval          time.Duration `toml:"interval" env:"PLWATCH_INTERVAL"`
	Concurrency       int           `toml:"concurrency"`
	Match             string        `toml:"match"`
	MessagesPerSecond float64       `toml:"messages_per_second"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// LoadRuntimeConfig resolves the configuration used by commands.
//
// The file at path is used when present, the embedded defaults otherwise.
// Values from a .env file and the process environment override file values.
func LoadRuntimeConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if config, err = LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ApplyEnv loads a .env file from the working directory (if any) and overlays environment variables onto config.
func ApplyEnv(config *Config) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	if err := env.Parse(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig encodes config as TOML and replaces the file at path.
//
// The file is written to a temporary sibling first and renamed into place.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close config: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		return fmt.Errorf("failed to set config permissions: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Validate checks that everything needed to run the watch loop is present.
func (c *Config) Validate() error {
	if err := c.ValidateSpotify(); err != nil {
		return err
	}
	if err := c.ValidateTwilio(); err != nil {
		return err
	}
	return c.ValidateWatch()
}

// ValidateSpotify checks the playlist service credentials and the scanned account.
func (c *Config) ValidateSpotify() error {
	sp := c.Credentials.Spotify
	if sp.ClientID == "" || sp.ClientSecret == "" {
		return fmt.Errorf("%w: spotify client_id and client_secret", ErrMissingCredentials)
	}
	if sp.Username == "" {
		return fmt.Errorf("%w: spotify username (SPOTIFY_USERNAME)", ErrMissingCredentials)
	}
	return nil
}

// ValidateTwilio checks the messaging credentials.
func (c *Config) ValidateTwilio() error {
	tw := c.Credentials.Twilio
	if tw.AccountSID == "" || tw.AuthToken == "" || tw.FromNumber == "" {
		return fmt.Errorf("%w: twilio account_sid, auth_token and from_number", ErrMissingCredentials)
	}
	return nil
}

// ValidateWatch checks the [WatchConfig] section.
func (c *Config) ValidateWatch() error {
	w := c.Watch
	if len(w.Playlists) == 0 {
		return fmt.Errorf("%w: watch.playlists is empty", ErrInvalidConfig)
	}
	if w.Interval <= 0 {
		return fmt.Errorf("%w: watch.interval must be positive", ErrInvalidConfig)
	}
	if w.Concurrency < 1 {
		return fmt.Errorf("%w: watch.concurrency must be at least 1", ErrInvalidConfig)
	}
	if w.Match != MatchExact && w.Match != MatchByID {
		return fmt.Errorf("%w: watch.match must be %q or %q", ErrInvalidConfig, MatchExact, MatchByID)
	}
	return nil
}

// Map returns the credentials in the form accepted by the Spotify service constructor.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the saved OAuth token, or nil when none has been stored.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.TokenExpiry,
	}
}

// Update stores token on the config. A refresh token missing from token keeps the previously saved one.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidArgument)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.TokenExpiry = token.Expiry
	return nil
}
