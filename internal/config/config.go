package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Agent     UpstreamConfig  `koanf:"agent"`
	Rag       UpstreamConfig  `koanf:"rag"`
	Redis     RedisConfig     `koanf:"redis"`
	SQLite    SQLiteConfig    `koanf:"sqlite"`
	Auth      AuthConfig      `koanf:"auth"`
	Stream    StreamConfig    `koanf:"stream"`
	RateLimit RateLimitConfig `koanf:"ratelimit"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

// UpstreamConfig identifies one backend service. An empty BaseURL means the
// upstream is not configured and its routes answer 503.
type UpstreamConfig struct {
	BaseURL string `koanf:"base_url"`
	APIKey  string `koanf:"api_key"`
}

type RedisConfig struct {
	Addr string `koanf:"addr"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type AuthConfig struct {
	// APIKeys is the comma-separated credential allow-list. Empty means the
	// credential validator runs in pass-through mode.
	APIKeys string `koanf:"api_keys"`
}

// Keys returns the normalized allow-list: split on commas, trimmed, empties dropped.
func (a AuthConfig) Keys() []string {
	var keys []string
	for _, k := range strings.Split(a.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type StreamConfig struct {
	HeartbeatSeconds int `koanf:"heartbeat_seconds"`
}

func (s StreamConfig) Heartbeat() time.Duration {
	return time.Duration(s.HeartbeatSeconds) * time.Second
}

// RouteLimit is a fixed-window quota for one protected resource.
type RouteLimit struct {
	Limit         int `koanf:"limit"`
	WindowSeconds int `koanf:"window_seconds"`
}

func (r RouteLimit) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

type RateLimitConfig struct {
	AgentChat RouteLimit `koanf:"agent_chat"`
	RagIngest RouteLimit `koanf:"rag_ingest"`
	RagSearch RouteLimit `koanf:"rag_search"`
}

// Load builds the configuration from an optional YAML file (GATEWAY_CONFIG
// path) overlaid with GATEWAY_-prefixed environment variables. Double
// underscores in env names map to key separators, e.g. GATEWAY_AGENT__BASE_URL
// sets agent.base_url.
func Load() (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv("GATEWAY_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("GATEWAY_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "GATEWAY_")), "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	defaults := map[string]any{
		"server.port":                         8080,
		"stream.heartbeat_seconds":            15,
		"ratelimit.agent_chat.limit":          30,
		"ratelimit.agent_chat.window_seconds": 60,
		"ratelimit.rag_ingest.limit":          20,
		"ratelimit.rag_ingest.window_seconds": 60,
		"ratelimit.rag_search.limit":          60,
		"ratelimit.rag_search.window_seconds": 60,
	}
	for key, val := range defaults {
		if !k.Exists(key) {
			k.Set(key, val)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
