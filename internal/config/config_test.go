package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "tzama.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, CoprocessorCKKS, cfg.Coprocessor)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)

	d, err := again.GrantDuration()
	require.NoError(t, err)
	require.Equal(t, 720*time.Hour, d)
	require.Equal(t, filepath.Join("tzama-data", "server.db"), again.DatabasePath())
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tzama.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
Coprocessor = "mock"
TotalStakedReaders = "caller+admins"
Admins = ["0x00000000000000000000000000000000000000ad"]

[Log]
Level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, CoprocessorMock, cfg.Coprocessor)
	require.Equal(t, "debug", cfg.Log.Level)
	admins, err := cfg.AdminPrincipals()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	// 未出现的字段保持默认值
	require.Equal(t, int64(31337), cfg.ChainID)
}

func TestValidateRejects(t *testing.T) {
	for name, body := range map[string]string{
		"unknown key":           `Bogus = 1`,
		"bad coprocessor":       `Coprocessor = "tfhe"`,
		"bad readers":           `TotalStakedReaders = "everyone"`,
		"admins mode no admins": `TotalStakedReaders = "admins"`,
		"bad admin":             `Admins = ["nope"]`,
		"bad ledger":            `LedgerAddress = "0x12"`,
		"zero chain":            `ChainID = 0`,
		"bad duration":          `MaxGrantDuration = "forever"`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}
