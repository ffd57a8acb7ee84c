package loop

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aelhadee/247trader-V2-sub000/internal/schema"
)

func TestFileSourceConsumesBatchOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proposals.json")
	body := `[
		{"symbol":"BTC-USD","side":"buy","sizePct":"5","tier":"core","conviction":0.8},
		{"symbol":"ETH-USD","side":"hold","sizePct":"3"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	src := &FileSource{Path: path}
	proposals, err := src.Proposals(context.Background(), schema.PortfolioSnapshot{})
	require.NoError(t, err)
	require.Len(t, proposals, 1, "malformed entries are skipped")
	assert.Equal(t, "BTC-USD", proposals[0].Symbol)
	assert.Equal(t, schema.SideBuy, proposals[0].Side)
	assert.Equal(t, schema.TierCore, proposals[0].Tier)

	_, err = os.Stat(path + ".consumed")
	assert.NoError(t, err, "batch file renamed after consumption")

	again, err := src.Proposals(context.Background(), schema.PortfolioSnapshot{})
	require.NoError(t, err)
	assert.Empty(t, again, "a consumed batch is never replayed")
}
