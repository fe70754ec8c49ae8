// Package config loads membrs settings from built-in defaults, an optional
// YAML file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/db"
	"github.com/membrs/membrs/internal/resync"
	"gopkg.in/yaml.v3"
)

// DefaultPort is used when neither a port nor a backend URL with a port is set.
const DefaultPort = 8000

// Config is built once at startup and passed to constructors.
type Config struct {
	Server   Server   `yaml:"server"`
	Database Database `yaml:"database"`
	Discord  Discord  `yaml:"discord"`
	Resync   Resync   `yaml:"resync"`
}

// Server configures the HTTP listener.
type Server struct {
	Host           string        `yaml:"host" env:"MEMBRS_HOST"`
	Port           int           `yaml:"port" env:"PORT"`
	BackendURL     string        `yaml:"backend_url" env:"BACKEND_URL"`
	FrontendURL    string        `yaml:"frontend_url" env:"FRONTEND_URL"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"MEMBRS_REQUEST_TIMEOUT"`
	CORSOrigins    []string      `yaml:"cors_origins" env:"MEMBRS_CORS_ORIGINS" envSeparator:","`
}

// Database configures the SQLite store.
type Database struct {
	Path         string `yaml:"path" env:"MEMBRS_DB_PATH"`
	MaxOpenConns int    `yaml:"max_open_conns" env:"MEMBRS_DB_MAX_OPEN_CONNS"`
	LogSQL       bool   `yaml:"log_sql" env:"MEMBRS_LOG_SQL"`
}

// Discord configures the Discord endpoints and the bot.
type Discord struct {
	BotToken     string        `yaml:"bot_token" env:"BOT_TOKEN"`
	APIBaseURL   string        `yaml:"api_base_url" env:"DISCORD_API_BASE_URL"`
	TokenURL     string        `yaml:"token_url" env:"DISCORD_TOKEN_URL"`
	AuthorizeURL string        `yaml:"authorize_url" env:"DISCORD_AUTHORIZE_URL"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" env:"DISCORD_HTTP_TIMEOUT"`
}

// Resync tunes bulk member resyncs.
type Resync struct {
	Concurrency int           `yaml:"concurrency" env:"MEMBRS_RESYNC_CONCURRENCY"`
	MaxAttempts int           `yaml:"max_attempts" env:"MEMBRS_RESYNC_MAX_ATTEMPTS"`
	Backoff     time.Duration `yaml:"backoff" env:"MEMBRS_RESYNC_BACKOFF"`
	PageSize    int           `yaml:"page_size" env:"MEMBRS_RESYNC_PAGE_SIZE"`
	KeepJobs    int           `yaml:"keep_jobs" env:"MEMBRS_RESYNC_KEEP_JOBS"`
}

// Default returns the built-in configuration.
func Default() Config {
	ep := discord.DefaultEndpoints()
	rs := resync.DefaultOptions()
	return Config{
		Server: Server{
			Host:           "0.0.0.0",
			RequestTimeout: 90 * time.Second,
		},
		Database: Database{
			Path:         "membrs.db",
			MaxOpenConns: 5,
		},
		Discord: Discord{
			APIBaseURL:   ep.APIBaseURL,
			TokenURL:     ep.TokenURL,
			AuthorizeURL: ep.AuthorizeURL,
			HTTPTimeout:  30 * time.Second,
		},
		Resync: Resync{
			Concurrency: rs.Concurrency,
			MaxAttempts: rs.MaxAttempts,
			Backoff:     rs.Backoff,
			PageSize:    rs.PageSize,
			KeepJobs:    resync.DefaultKeepFinished,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then applies
// environment variables on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Resync.Concurrency <= 0 {
		errs = append(errs, errors.New("resync.concurrency must be positive"))
	}
	if c.Resync.MaxAttempts <= 0 {
		errs = append(errs, errors.New("resync.max_attempts must be positive"))
	}
	if c.Resync.PageSize <= 0 {
		errs = append(errs, errors.New("resync.page_size must be positive"))
	}
	if c.Resync.KeepJobs <= 0 {
		errs = append(errs, errors.New("resync.keep_jobs must be positive"))
	}
	if c.Resync.Backoff < 0 {
		errs = append(errs, errors.New("resync.backoff must not be negative"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	return errors.Join(errs...)
}

// Addr is the listen address. Without an explicit port, the port of the
// backend URL is used, then DefaultPort.
func (c Config) Addr() string {
	port := c.Server.Port
	if port == 0 {
		port = portFromURL(c.Server.BackendURL)
	}
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(port))
}

// AllowedOrigins returns the CORS origins, defaulting to the frontend URL.
func (c Config) AllowedOrigins() []string {
	if len(c.Server.CORSOrigins) > 0 {
		return c.Server.CORSOrigins
	}
	if c.Server.FrontendURL != "" {
		return []string{c.Server.FrontendURL}
	}
	return nil
}

// Endpoints returns the Discord endpoints.
func (c Config) Endpoints() discord.Endpoints {
	return discord.Endpoints{
		APIBaseURL:   c.Discord.APIBaseURL,
		TokenURL:     c.Discord.TokenURL,
		AuthorizeURL: c.Discord.AuthorizeURL,
	}
}

// DBOptions returns the store options.
func (c Config) DBOptions() db.Options {
	return db.Options{
		MaxOpenConns: c.Database.MaxOpenConns,
		LogSQL:       c.Database.LogSQL,
	}
}

// ResyncOptions returns the orchestrator options.
func (c Config) ResyncOptions() resync.Options {
	return resync.Options{
		Concurrency: c.Resync.Concurrency,
		MaxAttempts: c.Resync.MaxAttempts,
		Backoff:     c.Resync.Backoff,
		PageSize:    c.Resync.PageSize,
	}
}

func portFromURL(raw string) int {
	if raw == "" {
		return 0
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		// Bare "host:port" parses with an empty host.
		u, err = url.Parse("http://" + raw)
		if err != nil {
			return 0
		}
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		return 0
	}
	return p
}
