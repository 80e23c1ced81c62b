package database_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/adampresley/proofingdesk/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesMigrationsTwice(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "proofing.db")

	db, err := database.Open(dsn)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
}

func TestWithPragmas(t *testing.T) {
	got := database.WithPragmas("file:test.db")
	assert.Equal(t, "file:test.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", got)

	got = database.WithPragmas("file:test.db?_pragma=busy_timeout(100)")
	assert.Equal(t, "file:test.db?_pragma=busy_timeout(100)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", got)
}

func TestTimestampIsUTCFixedWidth(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	ts := time.Date(2026, 1, 2, 9, 4, 5, 999, loc)

	assert.Equal(t, "2026-01-02 12:04:05", database.Timestamp(ts))
}

func TestIsBusy(t *testing.T) {
	assert.False(t, database.IsBusy(nil))
	assert.True(t, database.IsBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, database.IsBusy(errors.New("no such table: sessions")))
}
