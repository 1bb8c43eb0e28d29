package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvAndFlags(t *testing.T) {
	t.Setenv("JWT_KEY", "secret")
	t.Setenv("ADDR", ":9000")
	t.Setenv("SESSION_TTL", "5m")
	t.Setenv("TIMEZONE", "UTC")

	c, err := Load([]string{"--redis-addr", "localhost:6379"})
	require.NoError(t, err)
	require.Equal(t, ":9000", c.Addr)
	require.Equal(t, "secret", c.JWTKey)
	require.Equal(t, 5*time.Minute, c.SessionTTL)
	require.Equal(t, "localhost:6379", c.RedisAddr)
	require.Empty(t, c.DSN)
	require.Equal(t, time.UTC, c.Location())
	require.Equal(t, []string{"http://localhost:3000"}, c.CORSOrigins)

	c, err = Load([]string{"--addr", ":7000", "--cors-origins", "https://a.example, ,https://b.example"})
	require.NoError(t, err)
	require.Equal(t, ":7000", c.Addr, "flags win over env")
	require.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("JWT_KEY", "")
	t.Setenv("ENV", "staging")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt key")
	require.Contains(t, err.Error(), "staging")
	require.Contains(t, err.Error(), "time zone")
}
