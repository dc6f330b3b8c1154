package recordingstorage

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

func newStorage(t *testing.T) (*RecordingStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(sqlx.NewDb(db, "postgres")), mock
}

func TestStart(t *testing.T) {
	s, mock := newStorage(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rec := models.Recording{
		RecordingID: "r1",
		SessionID:   "s1",
		FilePath:    "grabaciones/recording_20240501_100000.avi",
		StartTime:   start,
		FrameCount:  1,
	}

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO recordings`)).
		WithArgs("r1", "s1", rec.FilePath, start, int64(1), false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Start(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStopUnknownRecording(t *testing.T) {
	s, mock := newStorage(t)
	stop := time.Now()

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE recordings SET stop_time = $1, frame_count = $2 WHERE recording_id = $3`)).
		WithArgs(stop, int64(40), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.Stop(context.Background(), "missing", stop, 40)
	assert.ErrorIs(t, err, errs.ErrRecordingNotFound)
}

func TestMove(t *testing.T) {
	s, mock := newStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE recordings SET is_moved = true, object_key = $1`)).
		WithArgs("s1/recording.avi", "r1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.Move(context.Background(), "r1", "s1/recording.avi"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordingByPath(t *testing.T) {
	s, mock := newStorage(t)
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	cols := []string{"recording_id", "session_id", "file_path", "start_time", "stop_time", "frame_count", "is_moved", "object_key"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE file_path = $1`)).
		WithArgs("a.avi").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("r1", "s1", "a.avi", start, nil, 3, false, nil))
	mock.ExpectQuery(regexp.QuoteMeta(`WHERE file_path = $1`)).
		WithArgs("b.avi").
		WillReturnRows(sqlmock.NewRows(cols))

	rec, err := s.RecordingByPath(context.Background(), "a.avi")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.RecordingID)
	assert.True(t, rec.StopTime.IsZero())
	assert.Empty(t, rec.ObjectKey)
	assert.Equal(t, int64(3), rec.FrameCount)

	_, err = s.RecordingByPath(context.Background(), "b.avi")
	assert.ErrorIs(t, err, errs.ErrRecordingNotFound)
}
