package serv

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adtools/gaqlgate/core"
)

func writeConfigFile(t *testing.T, fs afero.Fs, name, content string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
}

func TestReadInConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFile(t, fs, "/config/dev.yml", `
app_name: gateway-dev
log_level: debug
tenant: "1234567890"
cache:
  backend: memory
  max_entries: 500
  resource_ttls:
    campaign: 120
    account: 600
cursor:
  ttl_minutes: 15
mcp:
  max_results: 2000
transport:
  kind: file
  fixture_dir: ./fixtures
`)

	c, err := ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)

	assert.Equal(t, "gateway-dev", c.AppName)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "1234567890", c.Tenant)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, 500, c.Cache.MaxEntries)
	assert.Equal(t, 15, c.Cursor.TTLMinutes)
	assert.Equal(t, 2000, c.MCP.MaxResults)
	assert.Equal(t, "./fixtures", c.Transport.FixtureDir)
}

func TestReadInConfig_Defaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFile(t, fs, "/config/dev.yml", `tenant: "1"`)

	c, err := ReadInConfigFS("/config/dev.yml", fs)
	require.NoError(t, err)

	assert.Equal(t, "gaqlgate", c.AppName)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "memory", c.Cache.Backend)
	assert.Equal(t, 30, c.Cursor.TTLMinutes)
	assert.Equal(t, 10000, c.MCP.MaxResults)
	assert.Equal(t, "file", c.Transport.Kind)
}

func TestReadInConfig_Inherits(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFile(t, fs, "/config/dev.yml", `
app_name: gateway
log_level: debug
cache:
  backend: memory
`)
	writeConfigFile(t, fs, "/config/prod.yml", `
inherits: dev
log_level: warn
`)

	c, err := ReadInConfigFS("/config/prod.yml", fs)
	require.NoError(t, err)

	// Child overrides, parent fills the rest
	assert.Equal(t, "warn", c.LogLevel)
	assert.Equal(t, "gateway", c.AppName)
	assert.Equal(t, "memory", c.Cache.Backend)
}

func TestReadInConfig_NestedInheritance(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeConfigFile(t, fs, "/config/base.yml", `inherits: root`)
	writeConfigFile(t, fs, "/config/dev.yml", `inherits: base`)

	_, err := ReadInConfigFS("/config/dev.yml", fs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nested inheritance is not supported")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    Config
		wantErr string
	}{
		{
			name: "unknown backend",
			conf:    Config{Cache: CacheConfig{Backend: "memcached"}},
			wantErr: "unknown cache backend: memcached",
		},
		{
			name:    "redis without url",
			conf:    Config{Cache: CacheConfig{Backend: "redis"}},
			wantErr: "requires redis_url",
		},
		{
			name: "unknown resource type",
			conf: Config{Cache: CacheConfig{
				Backend:      "memory",
				ResourceTTLs: map[string]int{"campaigns": 60},
			}},
			wantErr: `unknown resource type "campaigns"`,
		},
		{
			name: "negative ttl",
			conf: Config{Cache: CacheConfig{
				Backend:      "memory",
				ResourceTTLs: map[string]int{"campaign": -1},
			}},
			wantErr: "negative TTL",
		},
		{
			name: "valid",
			conf: Config{Cache: CacheConfig{
				Backend:      "memory",
				ResourceTTLs: map[string]int{"campaign": 60},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfigTTLOverrides(t *testing.T) {
	c := Config{Cache: CacheConfig{
		ResourceTTLs: map[string]int{"campaign": 120, "account": 600},
	}}

	overrides := c.TTLOverrides()
	assert.Equal(t, 2*time.Minute, overrides[core.ResourceCampaign])
	assert.Equal(t, 10*time.Minute, overrides[core.ResourceAccount])

	var empty Config
	assert.Nil(t, empty.TTLOverrides())
}
