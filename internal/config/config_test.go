package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every bound variable so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range env {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, TypeMySQL, cfg.Relay.Type)
	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "https://api.tavily.com/search", cfg.Search.BaseURL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELAY_TYPE", "Search")
	t.Setenv("PORT", "9100")
	t.Setenv("SEARCH_API_KEY", "k")
	t.Setenv("MYSQL_PORT", "3307")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, TypeSearch, cfg.Relay.Type)
	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "k", cfg.Search.APIKey)
	assert.Equal(t, 3307, cfg.Database.Port)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  host: db.internal\n  user: relay\n  name: portal\n"), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.NoError(t, cfg.Validate())

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SAM_API_KEY=from-dotenv\n"), 0o600))
	t.Setenv("SAM_API_KEY", "")
	require.NoError(t, os.Unsetenv("SAM_API_KEY"))

	require.NoError(t, LoadDotEnv(path))
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.SAM.APIKey)

	assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "absent.env")))
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{Server: ServerConfig{Port: "8000"}}
	}

	cfg := base()
	cfg.Relay.Type = TypeMySQL
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MYSQL_HOST")
	assert.Contains(t, err.Error(), "MYSQL_DATABASE")

	cfg.Database = DatabaseConfig{Host: "h", User: "u", Name: "n"}
	assert.NoError(t, cfg.Validate())

	cfg.Database = DatabaseConfig{DSN: "file:x?mode=memory"}
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Relay.Type = TypeSearch
	assert.EqualError(t, cfg.Validate(), "search relay requires SEARCH_API_KEY")

	cfg = base()
	cfg.Relay.Type = "ftp"
	assert.EqualError(t, cfg.Validate(), `unknown relay type "ftp"`)

	cfg = base()
	cfg.Relay.Type = TypeSearch
	cfg.Search.APIKey = "k"
	cfg.Server.TLSCertFile = "cert.pem"
	assert.Error(t, cfg.Validate())
}
