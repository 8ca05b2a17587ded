package db

import (
	"go-ledger/config"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnString(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "ledger",
		Password: "s3cret",
		Name:     "ledger",
		SSLMode:  "disable",
	}

	t.Run("with password", func(t *testing.T) {
		assert.Equal(t, "host=localhost port=5432 user=ledger dbname=ledger sslmode=disable password=s3cret", connString(cfg, true))
	})

	t.Run("safe for logging", func(t *testing.T) {
		assert.NotContains(t, connString(cfg, false), "s3cret")
	})

	t.Run("empty password omitted", func(t *testing.T) {
		cfg := cfg
		cfg.Password = ""
		assert.NotContains(t, connString(cfg, true), "password=")
	})
}

func TestConnString_Schema(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Name: "ledger", SSLMode: "disable", Schema: "ledger_app"}
	assert.Equal(t, "host=db port=5432 user=u dbname=ledger sslmode=disable search_path=ledger_app", connString(cfg, true))
}

func TestWithSearchPath(t *testing.T) {
	t.Run("url", func(t *testing.T) {
		got, err := WithSearchPath("postgres://u:p@localhost:5432/ledger?sslmode=disable", "ledger_service_test")
		require.NoError(t, err)
		u, err := url.Parse(got)
		require.NoError(t, err)
		assert.Equal(t, "ledger_service_test", u.Query().Get("search_path"))
		assert.Equal(t, "disable", u.Query().Get("sslmode"))
		assert.Equal(t, "/ledger", u.Path)
	})

	t.Run("key value", func(t *testing.T) {
		got, err := WithSearchPath("host=localhost dbname=ledger", "ledger_router_test")
		require.NoError(t, err)
		assert.Equal(t, "host=localhost dbname=ledger search_path=ledger_router_test", got)
	})
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	assert.NoError(t, err)
	assert.NotEmpty(t, entries)
}
