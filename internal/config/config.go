package config

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config captures Scout's settings.
type Config struct {
	APIBaseURL   string
	EngagementID string
	PollInterval time.Duration
	Scenario     string
	MetricsAddr  string
	LogFile      string
}

const (
	defaultConfigPath   = "~/.config/scout/config.toml"
	defaultLogFile      = "~/.local/state/scout/scout.log"
	defaultAPIBaseURL   = "http://127.0.0.1:8000"
	defaultPollInterval = 5 * time.Second
	minPollInterval     = 500 * time.Millisecond
)

// Environment overrides that compose the API base URL.
const (
	EnvAPIProtocol = "SCOUT_API_PROTOCOL"
	EnvAPIHost     = "SCOUT_API_HOST"
	EnvAPIPort     = "SCOUT_API_PORT"
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		APIBaseURL:   defaultAPIBaseURL,
		PollInterval: defaultPollInterval,
		LogFile:      mustExpand(defaultLogFile),
	}
}

// Load locates and parses the Scout config, falling back to defaults when
// missing. Environment overrides are applied last.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return applyEnv(cfg)
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		APIBaseURL   string `toml:"api_base_url"`
		EngagementID string `toml:"engagement_id"`
		PollSeconds  int    `toml:"poll_seconds"`
		Scenario     string `toml:"scenario"`
		MetricsAddr  string `toml:"metrics_addr"`
		LogFile      string `toml:"log_file"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.APIBaseURL); v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	cfg.EngagementID = strings.TrimSpace(raw.EngagementID)
	if raw.PollSeconds > 0 {
		cfg.PollInterval = ClampPoll(time.Duration(raw.PollSeconds) * time.Second)
	}
	cfg.Scenario = strings.TrimSpace(raw.Scenario)
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if v := strings.TrimSpace(raw.LogFile); v != "" {
		cfg.LogFile = mustExpand(v)
	}

	return applyEnv(cfg)
}

// ClampPoll keeps poll intervals at a sane minimum.
func ClampPoll(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultPollInterval
	}
	if d < minPollInterval {
		return minPollInterval
	}
	return d
}

func applyEnv(cfg Config) (Config, error) {
	protocol := strings.TrimSpace(os.Getenv(EnvAPIProtocol))
	host := strings.TrimSpace(os.Getenv(EnvAPIHost))
	port, portSet := os.LookupEnv(EnvAPIPort)
	if protocol == "" && host == "" && !portSet {
		return cfg, nil
	}

	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil || base.Host == "" {
		base = &url.URL{Scheme: "http", Host: "127.0.0.1:8000"}
	}
	if protocol == "" {
		protocol = base.Scheme
	}
	protocol = strings.TrimSuffix(protocol, ":")
	if host == "" {
		host = base.Hostname()
	}
	if !portSet {
		port = base.Port()
	}
	port = strings.TrimSpace(port)

	hostport := host
	if port != "" {
		hostport = net.JoinHostPort(host, port)
	}
	cfg.APIBaseURL = protocol + "://" + hostport
	if _, err := url.Parse(cfg.APIBaseURL); err != nil {
		return Config{}, fmt.Errorf("api base url from environment: %w", err)
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
