package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Requires ORACLE_TEST_POSTGRES_DSN pointing at a disposable database.
func TestPostgres_PublishAndRecent(t *testing.T) {
	dsn := os.Getenv("ORACLE_TEST_POSTGRES_DSN")
	if dsn == "" || testing.Short() {
		t.Skip("ORACLE_TEST_POSTGRES_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	p, err := OpenPostgres(ctx, dsn)
	require.NoError(t, err)
	defer p.Close()

	asset := "TEST-" + uuid.NewString()[:8]
	base := time.Now()
	require.NoError(t, p.Publish(ctx, sampleEvent(uuid.NewString(), asset, 1, base)))
	newest := uuid.NewString()
	require.NoError(t, p.Publish(ctx, sampleEvent(newest, asset, 2, base.Add(time.Second))))

	got, err := p.Recent(ctx, asset, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, newest, got[0].ID)
	assert.Equal(t, 3.0, got[0].PerSource["kraken"])
}
