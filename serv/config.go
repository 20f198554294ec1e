package serv

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/adtools/gaqlgate/core"
)

// Config holds the gateway configuration, read from a YAML file with
// GG_-prefixed environment variable overrides.
type Config struct {
	// AppName is used in log output and the MCP server identity
	AppName string `mapstructure:"app_name"`

	// LogLevel is one of debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`

	// Tenant is the default account the gateway queries on behalf of
	Tenant string `mapstructure:"tenant"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Cursor    CursorConfig    `mapstructure:"cursor"`
	MCP       MCPConfig       `mapstructure:"mcp"`
	Transport TransportConfig `mapstructure:"transport"`

	vi *viper.Viper
}

// CacheConfig configures the response cache.
type CacheConfig struct {
	// Backend is one of memory, redis, none. The redis backend falls
	// back to memory when the connection cannot be established.
	Backend string `mapstructure:"backend"`

	// RedisURL is the redis:// connection URL for the redis backend
	RedisURL string `mapstructure:"redis_url"`

	// MaxEntries bounds the memory backend
	MaxEntries int `mapstructure:"max_entries"`

	// ResourceTTLs overrides cache TTLs per resource type, in seconds
	ResourceTTLs map[string]int `mapstructure:"resource_ttls"`
}

// CursorConfig configures the pagination cursor store.
type CursorConfig struct {
	// TTLMinutes bounds how long a fetch-more cursor stays resumable
	TTLMinutes int `mapstructure:"ttl_minutes"`

	// MaxEntries bounds the in-memory cursor store
	MaxEntries int `mapstructure:"max_entries"`
}

// MCPConfig configures the MCP tool surface.
type MCPConfig struct {
	Disable bool `mapstructure:"disable"`

	// MaxResults caps rows returned by one execute_query call
	MaxResults int `mapstructure:"max_results"`

	// PageSize is the transport page size for query streams
	PageSize int `mapstructure:"page_size"`
}

// TransportConfig selects and configures the query transport.
type TransportConfig struct {
	// Kind is currently only "file"
	Kind string `mapstructure:"kind"`

	// FixtureDir holds per-resource JSON fixtures for the file transport
	FixtureDir string `mapstructure:"fixture_dir"`
}

// TTLOverrides converts the configured per-resource TTL seconds into
// the duration map the cache manager consumes.
func (c *Config) TTLOverrides() map[core.ResourceType]time.Duration {
	if len(c.Cache.ResourceTTLs) == 0 {
		return nil
	}
	out := make(map[core.ResourceType]time.Duration, len(c.Cache.ResourceTTLs))
	for name, secs := range c.Cache.ResourceTTLs {
		out[core.ResourceType(name)] = time.Duration(secs) * time.Second
	}
	return out
}

// Validate rejects configurations that would otherwise fail at first
// use: unknown cache backends, TTL overrides for resource types that
// do not exist, and negative TTLs.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "", "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}

	if c.Cache.Backend == "redis" && c.Cache.RedisURL == "" {
		return fmt.Errorf("cache backend redis requires redis_url")
	}

	valid := make(map[string]bool)
	for _, rt := range core.ResourceTypes() {
		valid[string(rt)] = true
	}
	for name, secs := range c.Cache.ResourceTTLs {
		if !valid[name] {
			known := make([]string, 0, len(valid))
			for k := range valid {
				known = append(known, k)
			}
			sort.Strings(known)
			return fmt.Errorf("resource_ttls: unknown resource type %q (known: %s)",
				name, strings.Join(known, ", "))
		}
		if secs < 0 {
			return fmt.Errorf("resource_ttls: negative TTL for %q", name)
		}
	}

	return nil
}

// ReadInConfig reads the configuration file and merges in its
// inherited parent, if any.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is ReadInConfig over an afero filesystem, used by
// tests and embedded deployments.
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	// One level of config inheritance: a child names its parent and
	// the child's values win on conflict.
	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if v := vi.GetString("inherits"); v != "" {
			return nil, fmt.Errorf("nested inheritance is not supported: %s inherits %s",
				pcf, v)
		}

		vi.SetConfigFile(cf)
		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	c := &Config{vi: vi}
	if err := vi.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := viper.New()

	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.SetEnvPrefix("GG")
	vi.AutomaticEnv()

	ext := filepath.Ext(configFile)
	vi.SetConfigName(strings.TrimSuffix(configFile, ext))
	vi.AddConfigPath(configPath)

	vi.SetDefault("app_name", "gaqlgate")
	vi.SetDefault("log_level", "info")
	vi.SetDefault("cache.backend", "memory")
	vi.SetDefault("cache.max_entries", defaultMemoryCacheSize)
	vi.SetDefault("cursor.ttl_minutes", 30)
	vi.SetDefault("cursor.max_entries", 10000)
	vi.SetDefault("mcp.max_results", 10000)
	vi.SetDefault("mcp.page_size", defaultPageSize)
	vi.SetDefault("transport.kind", "file")

	return vi
}
