package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDBRejectsEmptyURL(t *testing.T) {
	_, err := OpenDB(context.Background(), "", PoolConfig{})
	require.Error(t, err)
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"postgres://u:p@localhost:5432/fd?sslmode=disable", "pgx5://u:p@localhost:5432/fd?sslmode=disable", false},
		{"postgresql://u:p@db/fd", "pgx5://u:p@db/fd", false},
		{"pgx5://u:p@db/fd", "pgx5://u:p@db/fd", false},
		{"mysql://u:p@db/fd", "", true},
		{"://bad", "", true},
	}
	for _, tt := range tests {
		got, err := migrateURL(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		if base, ok := strings.CutSuffix(e.Name(), ".up.sql"); ok {
			ups[base] = true
		}
		if base, ok := strings.CutSuffix(e.Name(), ".down.sql"); ok {
			downs[base] = true
		}
	}
	require.NotEmpty(t, ups)
	assert.Equal(t, ups, downs)
}
