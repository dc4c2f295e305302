package migrations_test

import (
	"context"
	"testing"

	"github.com/koopa0/system-design/item-cache/internal/migrations"
	"github.com/koopa0/system-design/item-cache/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMigrator_UpDown 遷移可重複執行並可回滾
func TestMigrator_UpDown(t *testing.T) {
	env := testutils.SetupPostgres(t)
	ctx := context.Background()

	m, err := migrations.New(env.PostgresDSN, env.Logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// 已是最新版本
	require.NoError(t, m.Up())

	require.NoError(t, m.Down())
	var exists bool
	err = env.PostgresPool.QueryRow(ctx, `SELECT to_regclass('public.items') IS NOT NULL`).Scan(&exists)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, m.Up())
	err = env.PostgresPool.QueryRow(ctx, `SELECT to_regclass('public.items') IS NOT NULL`).Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := migrations.New("not-a-url", nil)
	assert.Error(t, err)
}
