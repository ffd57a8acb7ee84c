package ops

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/exec"
	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
	"github.com/aelhadee/247trader-V2-sub000/internal/venue"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadResolvesDefaults(t *testing.T) {
	path := writeConfig(t, `{"mode":"paper"}`)

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, exec.ModePaper, loaded.Mode)
	assert.Len(t, loaded.Hash, 16)
	assert.Equal(t, 4, loaded.Retry.MaxAttempts)
	assert.Equal(t, 5, loaded.Breaker.Threshold)
	assert.Len(t, loaded.Limits, len(venue.Endpoints))
	assert.Equal(t, loaded.Risk.CooldownLoss, loaded.Exec.CooldownLoss)
	assert.False(t, loaded.Postgres.Enabled())
}

func TestLoadParsesTierCaps(t *testing.T) {
	path := writeConfig(t, `{
		"mode": "sim",
		"risk": {"tierCapPct": {"core": "55", "speculative": "7"}}
	}`)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, exec.ModeSim, loaded.Mode)
	assert.Equal(t, "55", loaded.Risk.TierCapPct[schema.TierCore].String())
	assert.Equal(t, "7", loaded.Risk.TierCapPct[schema.TierSpeculative].String())
}

func TestLoadRejectsBadConfigs(t *testing.T) {
	_, err := Load(writeConfig(t, `{"mode":"turbo"}`))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, `{"mode":"live"}`))
	assert.Error(t, err, "live mode requires credentials")

	_, err = Load(writeConfig(t, `{"risk":{"tierCapPct":{"mystery":"5"}}}`))
	assert.Error(t, err)
}

func TestHashTracksFileContent(t *testing.T) {
	a, err := Load(writeConfig(t, `{"mode":"paper"}`))
	require.NoError(t, err)
	b, err := Load(writeConfig(t, `{"mode":"paper"}`))
	require.NoError(t, err)
	c, err := Load(writeConfig(t, `{"mode":"sim"}`))
	require.NoError(t, err)

	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, c.Hash)
}
