// Package server provides configuration helpers that define runtime
// defaults, validation, and presence/rate-limiting parameters for the
// RoomChat service.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Disconnect-status policies: deferred flips a user's global status only
// when the grace window elapses without a reconnect; immediate flips it as
// soon as the last session drops. The leave notice is always deferred.
const (
	DisconnectStatusDeferred  = "deferred"
	DisconnectStatusImmediate = "immediate"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// ChatConfig holds the presence-engine settings: the room set, history
// bound, reconnect grace window, and input limits.
type ChatConfig struct {
	Rooms             []string
	GlobalRoom        string
	DefaultRoom       string
	HistoryLimit      int
	ReconnectWindow   time.Duration
	MaxMessageLength  int
	MaxUsernameLength int
	DisconnectStatus  string
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig
	Chat           ChatConfig
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Chat: ChatConfig{
			Rooms:             []string{"global", "general", "random", "tech", "gaming"},
			GlobalRoom:        "global",
			DefaultRoom:       "general",
			HistoryLimit:      100,
			ReconnectWindow:   5 * time.Second,
			MaxMessageLength:  500,
			MaxUsernameLength: 50,
			DisconnectStatus:  DisconnectStatusDeferred,
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 4096
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	defaults := defaultConfig()

	if len(cfg.Chat.Rooms) == 0 {
		cfg.Chat.Rooms = defaults.Chat.Rooms
	}
	if strings.TrimSpace(cfg.Chat.GlobalRoom) == "" {
		cfg.Chat.GlobalRoom = defaults.Chat.GlobalRoom
	}
	if strings.TrimSpace(cfg.Chat.DefaultRoom) == "" {
		cfg.Chat.DefaultRoom = defaults.Chat.DefaultRoom
	}
	if cfg.Chat.HistoryLimit <= 0 {
		cfg.Chat.HistoryLimit = defaults.Chat.HistoryLimit
	}
	if cfg.Chat.ReconnectWindow <= 0 {
		cfg.Chat.ReconnectWindow = defaults.Chat.ReconnectWindow
	}
	if cfg.Chat.MaxMessageLength <= 0 {
		cfg.Chat.MaxMessageLength = defaults.Chat.MaxMessageLength
	}
	if cfg.Chat.MaxUsernameLength <= 0 {
		cfg.Chat.MaxUsernameLength = defaults.Chat.MaxUsernameLength
	}
	if cfg.Chat.DisconnectStatus != DisconnectStatusImmediate {
		cfg.Chat.DisconnectStatus = DisconnectStatusDeferred
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		Port:           cfg.Port,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize: cfg.MaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          cfg.RateLimit.Burst,
			RefillInterval: cfg.RateLimit.RefillInterval,
		},
		Chat: ChatConfig{
			Rooms:             append([]string(nil), cfg.Chat.Rooms...),
			GlobalRoom:        cfg.Chat.GlobalRoom,
			DefaultRoom:       cfg.Chat.DefaultRoom,
			HistoryLimit:      cfg.Chat.HistoryLimit,
			ReconnectWindow:   cfg.Chat.ReconnectWindow,
			MaxMessageLength:  cfg.Chat.MaxMessageLength,
			MaxUsernameLength: cfg.Chat.MaxUsernameLength,
			DisconnectStatus:  cfg.Chat.DisconnectStatus,
		},
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	cfg.Chat.Rooms = append([]string(nil), cfg.Chat.Rooms...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseList(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSecondsValue(interval, cfg.RateLimit.RefillInterval)
	}

	if rooms := os.Getenv("CHAT_ROOMS"); rooms != "" {
		cfg.Chat.Rooms = parseList(rooms)
	}

	if room := os.Getenv("CHAT_GLOBAL_ROOM"); room != "" {
		cfg.Chat.GlobalRoom = room
	}

	if room := os.Getenv("CHAT_DEFAULT_ROOM"); room != "" {
		cfg.Chat.DefaultRoom = room
	}

	if limit := os.Getenv("CHAT_HISTORY_LIMIT"); limit != "" {
		cfg.Chat.HistoryLimit = parseIntValue(limit, cfg.Chat.HistoryLimit)
	}

	if window := os.Getenv("CHAT_RECONNECT_WINDOW_MS"); window != "" {
		cfg.Chat.ReconnectWindow = parseMillisValue(window, cfg.Chat.ReconnectWindow)
	}

	if length := os.Getenv("CHAT_MAX_MESSAGE_LENGTH"); length != "" {
		cfg.Chat.MaxMessageLength = parseIntValue(length, cfg.Chat.MaxMessageLength)
	}

	if length := os.Getenv("CHAT_MAX_USERNAME_LENGTH"); length != "" {
		cfg.Chat.MaxUsernameLength = parseIntValue(length, cfg.Chat.MaxUsernameLength)
	}

	if policy := os.Getenv("CHAT_DISCONNECT_STATUS"); policy != "" {
		cfg.Chat.DisconnectStatus = strings.ToLower(strings.TrimSpace(policy))
	}

	return &cfg
}

// fileConfig mirrors the YAML layout of an optional configuration file.
type fileConfig struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
		MaxFrameSize   int64    `yaml:"max_frame_size"`
		RateLimit      struct {
			Burst         int `yaml:"burst"`
			RefillSeconds int `yaml:"refill_seconds"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Presence struct {
		Rooms             []string `yaml:"rooms"`
		GlobalRoom        string   `yaml:"global_room"`
		DefaultRoom       string   `yaml:"default_room"`
		HistoryLimit      int      `yaml:"history_limit"`
		ReconnectWindowMS int      `yaml:"reconnect_window_ms"`
		MaxMessageLength  int      `yaml:"max_message_length"`
		MaxUsernameLength int      `yaml:"max_username_length"`
		DisconnectStatus  string   `yaml:"disconnect_status"`
	} `yaml:"presence"`
}

// LoadConfigFile reads a YAML configuration file and overlays it on the
// defaults. Values absent from the file keep their defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := defaultConfig()

	if file.Server.Port != "" {
		cfg.Port = file.Server.Port
	}
	if len(file.Server.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = file.Server.AllowedOrigins
	}
	if file.Server.MaxFrameSize > 0 {
		cfg.MaxMessageSize = file.Server.MaxFrameSize
	}
	if file.Server.RateLimit.Burst > 0 {
		cfg.RateLimit.Burst = file.Server.RateLimit.Burst
	}
	if file.Server.RateLimit.RefillSeconds > 0 {
		cfg.RateLimit.RefillInterval = time.Duration(file.Server.RateLimit.RefillSeconds) * time.Second
	}

	if len(file.Presence.Rooms) > 0 {
		cfg.Chat.Rooms = file.Presence.Rooms
	}
	if file.Presence.GlobalRoom != "" {
		cfg.Chat.GlobalRoom = file.Presence.GlobalRoom
	}
	if file.Presence.DefaultRoom != "" {
		cfg.Chat.DefaultRoom = file.Presence.DefaultRoom
	}
	if file.Presence.HistoryLimit > 0 {
		cfg.Chat.HistoryLimit = file.Presence.HistoryLimit
	}
	if file.Presence.ReconnectWindowMS > 0 {
		cfg.Chat.ReconnectWindow = time.Duration(file.Presence.ReconnectWindowMS) * time.Millisecond
	}
	if file.Presence.MaxMessageLength > 0 {
		cfg.Chat.MaxMessageLength = file.Presence.MaxMessageLength
	}
	if file.Presence.MaxUsernameLength > 0 {
		cfg.Chat.MaxUsernameLength = file.Presence.MaxUsernameLength
	}
	if file.Presence.DisconnectStatus != "" {
		cfg.Chat.DisconnectStatus = strings.ToLower(strings.TrimSpace(file.Presence.DisconnectStatus))
	}

	return &cfg, nil
}

func parseList(value string) []string {
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSecondsValue(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func parseMillisValue(value string, defaultValue time.Duration) time.Duration {
	if millis, err := strconv.Atoi(value); err == nil && millis > 0 {
		return time.Duration(millis) * time.Millisecond
	}
	return defaultValue
}
