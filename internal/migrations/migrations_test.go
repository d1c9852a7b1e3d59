package migrations

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	assert.Equal(t, "pgx5://app:secret@db:5432/shop?sslmode=disable", DatabaseURL("postgres://app:secret@db:5432/shop?sslmode=disable"))
	assert.Equal(t, "pgx5://db/shop", DatabaseURL("postgresql://db/shop"))
	assert.Equal(t, "pgx5://db/shop", DatabaseURL("pgx5://db/shop"))
}

func TestEmbeddedFilesArePaired(t *testing.T) {
	ups, err := fs.Glob(files, "sql/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(files, "sql/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	assert.Equal(t, len(ups), len(downs))

	schema, err := fs.ReadFile(files, "sql/000001_init.up.sql")
	require.NoError(t, err)
	assert.Contains(t, string(schema), "payments_one_pending_per_order")
	assert.Contains(t, string(schema), "orders_order_number_key")
}
