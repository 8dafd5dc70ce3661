package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	domainconfig "github.com/LoadingLlama/relation/domain/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("ENVIRONMENT", "")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 30*time.Second, cfg.BreakerTimeout)
	assert.Equal(t, 100, cfg.IPRateLimit)
	assert.Equal(t, 10, cfg.IPRateBurst)
	assert.Equal(t, 200, cfg.UserRateLimit)
	assert.Equal(t, 20, cfg.UserRateBurst)
}

func TestLoadConfig_RateLimitOverrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_IP_BURST", "3")
	t.Setenv("RATE_LIMIT_USER_PER_MINUTE", "50")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, 3, cfg.IPRateBurst)
	assert.Equal(t, 50, cfg.UserRateLimit)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{StoreBackend: StoreMemory, AuthMode: AuthJWT}, false},
		{"unknown store", Config{StoreBackend: "redis", AuthMode: AuthJWT}, true},
		{"dynamodb without table", Config{StoreBackend: StoreDynamoDB, AuthMode: AuthJWT}, true},
		{"supabase without key", Config{StoreBackend: StoreSupabase, SupabaseURL: "https://x.supabase.co", AuthMode: AuthJWT}, true},
		{"production without secret", Config{StoreBackend: StoreMemory, AuthMode: AuthJWT, Environment: "production"}, true},
		{"supabase auth without url", Config{StoreBackend: StoreMemory, AuthMode: AuthSupabase}, true},
		{"bad sample ratio", Config{StoreBackend: StoreMemory, AuthMode: AuthJWT, TraceSampleRatio: 2}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoadDomainConfig_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	writeFile(t, path, "min_identifier_digits: 7\nfading_threshold: 720h\nreveal_period: 50ms\n")

	domain, err := LoadDomainConfig(&Config{Environment: "test", DomainConfigFile: path, RequestKind: "untyped"})

	require.NoError(t, err)
	assert.Equal(t, 7, domain.MinIdentifierDigits)
	assert.Equal(t, 720*time.Hour, domain.FadingThreshold)
	assert.Equal(t, 50*time.Millisecond, domain.RevealPeriod)
	assert.Equal(t, domainconfig.RequestKindUntyped, domain.RequestKind)
	assert.Equal(t, 2, domain.MaxRelationTypeWords, "keys absent from the file keep defaults")
}

func TestLoadDomainConfig_Rejects(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "no_such_key: 1\n"},
		{"invalid policy", "min_strength: 9\nmax_strength: 3\n"},
		{"malformed", "min_identifier_digits: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".yaml")
			writeFile(t, path, tt.content)

			_, err := LoadDomainConfig(&Config{DomainConfigFile: path})
			assert.Error(t, err)
		})
	}
}

func TestConfigWatcher_ReloadsIntoHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domain.yaml")
	writeFile(t, path, "min_identifier_digits: 10\n")
	cfg := &Config{DomainConfigFile: path}

	initial, err := LoadDomainConfig(cfg)
	require.NoError(t, err)
	holder := domainconfig.NewHolder(initial)

	watcher, err := NewConfigWatcher(cfg, holder, zap.NewNop())
	require.NoError(t, err)
	watcher.Start()
	defer watcher.Stop()

	writeFile(t, path, "min_identifier_digits: 8\n")
	require.Eventually(t, func() bool {
		return holder.Get().MinIdentifierDigits == 8
	}, 2*time.Second, 10*time.Millisecond)

	// An invalid file keeps the current policy
	writeFile(t, path, "min_identifier_digits: -1\n")
	time.Sleep(3 * debounceDuration)
	assert.Equal(t, 8, holder.Get().MinIdentifierDigits)
}
