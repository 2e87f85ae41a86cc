package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/arbor/internal/editfeed"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" json:"app"`
	Server ServerConfig      `yaml:"server" json:"server"`
	Store  StoreConfig       `yaml:"store" json:"store"`
	SQLite SQLiteConfig      `yaml:"sqlite" json:"sqlite"`
	Auth   AuthConfig        `yaml:"auth" json:"auth"`
	Edits  EditsConfig       `yaml:"edits" json:"edits"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Edits.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" json:"log_level"`
	HTTP     HTTPConfig `yaml:"http" json:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" json:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// ServerConfig describes the remote tree-inventory server. An empty BaseURL
// runs the app offline: refresh and the edit feed are disabled.
type ServerConfig struct {
	BaseURL       string        `yaml:"base_url" json:"base_url"`
	Token         string        `yaml:"token" json:"token"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	ImageCacheTTL time.Duration `yaml:"image_cache_ttl" json:"image_cache_ttl"`
	GeoRevID      string        `yaml:"geo_rev_id" json:"geo_rev_id"`
}

// Validate validates the server configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ImageCacheTTL, validation.Min(time.Duration(0))),
	)
}

// Online reports whether a remote server is configured.
func (c *ServerConfig) Online() bool {
	return c.BaseURL != ""
}

// StoreConfig holds the path to the plot data directory.
type StoreConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" json:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration for the UI bridge.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" json:"mode"`
	Token string `yaml:"token" json:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// EditsConfig configures the recent-edit feed of the signed-in user.
// The feed is only loaded when UserID is set.
type EditsConfig struct {
	UserID     int    `yaml:"user_id" json:"user_id"`
	Username   string `yaml:"username" json:"username"`
	PageSize   int    `yaml:"page_size" json:"page_size"`
	MaxEntries int    `yaml:"max_entries" json:"max_entries"`
}

// Validate validates the edit feed configuration.
func (c *EditsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Min(0)),
		validation.Field(&c.Username, validation.When(c.UserID > 0, validation.Required)),
		validation.Field(&c.PageSize, validation.Required, validation.Min(1)),
		validation.Field(&c.MaxEntries, validation.Min(0)),
	)
}

// Enabled reports whether a user is configured for the feed.
func (c *EditsConfig) Enabled() bool {
	return c.UserID > 0
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Server: ServerConfig{
			Timeout:       30 * time.Second,
			ImageCacheTTL: 10 * time.Minute,
		},
		Store: StoreConfig{
			Path: "./data",
		},
		SQLite: SQLiteConfig{
			Path: "./arbor.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Edits: EditsConfig{
			PageSize: editfeed.DefaultPageSize,
		},
	}
}
