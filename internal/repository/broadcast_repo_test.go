package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The registration is one atomic constrained insert: the winner sees one
// affected row, the loser sees zero and gets false without an error.
func TestBroadcastRepository_TryRecordBroadcast(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	repo := NewBroadcastRepository(db)

	insertSQL := `INSERT INTO "broadcast_log" .* ON CONFLICT \("trade_id"\) DO NOTHING`
	mock.ExpectQuery(insertSQL).WillReturnRows(
		sqlmock.NewRows([]string{"sent_at"}).AddRow(time.Now().UTC()))
	mock.ExpectQuery(insertSQL).WillReturnRows(
		sqlmock.NewRows([]string{"sent_at"}))

	won, err := repo.TryRecordBroadcast(context.Background(), "t1")
	require.NoError(t, err)
	assert.True(t, won)

	// 已有登记：插入未生效，静默返回false
	won, err = repo.TryRecordBroadcast(context.Background(), "t1")
	require.NoError(t, err)
	assert.False(t, won)

	require.NoError(t, mock.ExpectationsWereMet())
}
