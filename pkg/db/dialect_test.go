package db

import (
	"testing"

	"github.com/emadn88/elmcorner/internal/config"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestForUpdateSkipsSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	assert.Equal(t, "", ForUpdate(conn))
	assert.Equal(t, "", ForUpdate(nil))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)

	d, err := Dialect(config.Config{DBType: "postgres", DBHost: "localhost"})
	require.NoError(t, err)
	assert.Equal(t, "postgres", d.Name())
}
