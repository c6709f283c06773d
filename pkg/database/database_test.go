package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"plain file", "interaction.db", "interaction.db?_txlock=immediate&_busy_timeout=5000"},
		{"uri with query", "file:x?mode=memory&cache=shared", "file:x?mode=memory&cache=shared&_txlock=immediate&_busy_timeout=5000"},
		{"explicit txlock", "a.db?_txlock=deferred", "a.db?_txlock=deferred&_busy_timeout=5000"},
		{"fully explicit", "a.db?_txlock=exclusive&_busy_timeout=100", "a.db?_txlock=exclusive&_busy_timeout=100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sqliteDSN(tt.path))
		})
	}
}
