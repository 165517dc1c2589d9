package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libreserve-backend/internal/libraryerr"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
library:
  numberOfSeats: 40
  reserveLibrarianSeat: true
  numberOfLibrarians: 2
  recommendedCheckInTime: 10
  allowLateCheckIn: true
  allowedLateCheckInTimeInMinutes: 15
  bookingTimeAllowedInMinutes: 120
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "memory", cfg.Auth.RevocationStore)
	assert.Equal(t, time.Hour, cfg.Roster.Interval)
	assert.Equal(t, time.Minute, cfg.Sweeper.Interval)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 100, cfg.WorkerPool.QueueSize)

	p, err := cfg.Library.Policy()
	require.NoError(t, err)
	assert.Equal(t, 40, p.Capacity())
	assert.Equal(t, 38, p.StudentCapacity())
	assert.Equal(t, 15, p.AllowedLateCheckInTimeInMinutes)
}

func TestLoad_RejectsInvalidConfigs(t *testing.T) {
	testCases := []struct {
		name       string
		body       string
		wantPolicy bool
	}{
		{
			name:       "no seats",
			body:       "library:\n  numberOfSeats: 0\n",
			wantPolicy: true,
		},
		{
			name: "late allowance below recommended time",
			body: `
library:
  numberOfSeats: 10
  recommendedCheckInTime: 20
  allowLateCheckIn: true
  allowedLateCheckInTimeInMinutes: 5
`,
			wantPolicy: true,
		},
		{
			name:       "unknown driver",
			body:       "database:\n  driver: oracle\nlibrary:\n  numberOfSeats: 10\n",
			wantPolicy: false,
		},
		{
			name: "malformed yaml",
			body: "library: [",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			require.Error(t, err)
			if tc.wantPolicy {
				assert.ErrorIs(t, err, libraryerr.ErrInvalidPolicy)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestServerConfig_Location(t *testing.T) {
	assert.Equal(t, time.Local, ServerConfig{}.Location())
	assert.Equal(t, time.Local, ServerConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", ServerConfig{Timezone: "UTC"}.Location().String())
}
