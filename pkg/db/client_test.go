package db

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/foodrelief/relief-backend/pkg/config"
	"github.com/foodrelief/relief-backend/pkg/logger"
)

type ledgerRow struct {
	ID   int
	Memo string
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:db-%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&ledgerRow{}))
	return conn
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	conn := openTestDB(t)
	client := Wrap(conn)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Memo: "disbursed"}).Error
	}))
	assert.Equal(t, int64(1), countRows(t, conn))

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Memo: "reverted"}).Error)
		return errors.New("budget mismatch")
	})
	assert.EqualError(t, err, "budget mismatch")
	assert.Equal(t, int64(1), countRows(t, conn))
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	conn := openTestDB(t)
	client := Wrap(conn)

	assert.PanicsWithValue(t, "boom", func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Memo: "lost"}).Error)
			panic("boom")
		})
	})
	assert.Zero(t, countRows(t, conn))
}

func TestPingAndWrap(t *testing.T) {
	conn := openTestDB(t)
	client := Wrap(conn)
	assert.Same(t, conn, client.DB())
	assert.NoError(t, client.Ping(context.Background()))
}

func TestDialectorFor(t *testing.T) {
	_, err := dialectorFor(config.DBConfig{})
	assert.Error(t, err)
	_, err = dialectorFor(config.DBConfig{DSN: "x", Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported database driver")

	d, err := dialectorFor(config.DBConfig{DSN: "file::memory:", Driver: "sqlite"})
	require.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	var out bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "db-test", Output: &out})
	ql := newQueryLogger(logg, 10*time.Millisecond)
	sql := func() (string, int64) { return "SELECT * FROM phases", 3 }
	ctx := context.Background()

	ql.Trace(ctx, time.Now(), sql, nil)
	assert.Empty(t, out.String(), "fast successful statements stay quiet")

	ql.Trace(ctx, time.Now(), sql, gorm.ErrRecordNotFound)
	assert.Empty(t, out.String(), "not found is not a failure")

	ql.Trace(ctx, time.Now().Add(-time.Second), sql, nil)
	assert.Contains(t, out.String(), "db.slow_query")

	out.Reset()
	ql.Trace(ctx, time.Now(), sql, errors.New("deadlock detected"))
	assert.Contains(t, out.String(), "db.query_failed")
	assert.Contains(t, out.String(), "deadlock detected")
}

func TestIsUniqueViolationMatchesSQLiteMessages(t *testing.T) {
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: phases.campaign_id"), ""))
	assert.False(t, IsUniqueViolation(errors.New("some other failure"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}
