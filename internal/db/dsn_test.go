package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithDBName(t *testing.T) {
	tests := []struct {
		name, dsn, db, want string
	}{
		{"replaces path", "postgres://u:p@host:5432/postgres?sslmode=disable", "rail", "postgres://u:p@host:5432/rail?sslmode=disable"},
		{"postgresql scheme", "postgresql://host/old", "/rail", "postgresql://host/rail"},
		{"adds path", "postgres://host:5432", "rail", "postgres://host:5432/rail"},
		{"no scheme", "u@host:5432/x", "rail", "postgres://u@host:5432/rail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithDBName(tt.dsn, tt.db)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithDBNameErrors(t *testing.T) {
	_, err := WithDBName("", "rail")
	assert.Error(t, err)

	_, err = WithDBName("postgres://host/x", " ")
	assert.Error(t, err)

	_, err = WithDBName("mysql://host/x", "rail")
	assert.ErrorContains(t, err, "unsupported DSN scheme")
}
