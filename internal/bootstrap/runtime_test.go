package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"promptguy/internal/config"
	"promptguy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitRuntime_SQLite(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		Env:              "test",
		DBDriver:         "sqlite",
		DBSQLitePath:     filepath.Join(t.TempDir(), "runtime.db"),
		AdminExternalIDs: "user_ops1, user_missing",
	}

	rt, err := InitRuntime(ctx, cfg, Options{SkipRedis: true})
	require.NoError(t, err)
	assert.Nil(t, rt.Redis)
	assert.Nil(t, rt.ReadDB, "sqlite has no replica")
	db := rt.DB

	var anon models.User
	require.NoError(t, db.Where("external_id = ?", models.AnonymousExternalID).First(&anon).Error)
	assert.False(t, anon.IsAdmin)

	ops := &models.User{ExternalID: "user_ops1", Username: "operator1"}
	require.NoError(t, db.Create(ops).Error)
	require.NoError(t, rt.Close())

	// Second start is idempotent and promotes the now-provisioned admin.
	rt, err = InitRuntime(ctx, cfg, Options{SkipRedis: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })
	db = rt.DB

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("external_id = ?", models.AnonymousExternalID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, db.First(ops, ops.ID).Error)
	assert.True(t, ops.IsAdmin)
}
