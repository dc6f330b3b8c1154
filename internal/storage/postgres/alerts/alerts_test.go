package alertstorage

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

func newStorage(t *testing.T) (*AlertStorage, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return New(sqlx.NewDb(db, "postgres")), mock
}

var columns = []string{"id", "message", "missing", "level", "video", "created_at", "resolved"}

func TestSaveAlert(t *testing.T) {
	s, mock := newStorage(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	alert := models.Alert{
		Message:   "Person missing Helmet",
		Missing:   "Helmet",
		Level:     models.LevelHigh,
		Video:     "grabaciones/recording_20240501_100000.avi",
		Timestamp: now,
	}

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO alerts`)).
		WithArgs(alert.Message, alert.Missing, alert.Level, alert.Video, now, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := s.SaveAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveAlertFailure(t *testing.T) {
	s, mock := newStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO alerts`)).
		WillReturnError(assert.AnError)

	_, err := s.SaveAlert(context.Background(), models.Alert{Level: models.LevelHigh})
	assert.ErrorIs(t, err, errs.ErrWriteToDB)
}

func TestUnresolvedSince(t *testing.T) {
	s, mock := newStorage(t)
	since := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE resolved = false AND created_at >= $1`)).
		WithArgs(since).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(2, "Person missing Vest", "Vest", "high", "", since.Add(2*time.Hour), false).
			AddRow(1, "Person missing Helmet", "Helmet", "high", "", since.Add(time.Hour), false))

	alerts, err := s.UnresolvedSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, int64(2), alerts[0].ID)
	assert.Equal(t, models.LevelHigh, alerts[1].Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestLimit(t *testing.T) {
	s, mock := newStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at DESC LIMIT $1`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(3, "Person with complete PPE", "", "positive", "", time.Now(), false))

	alerts, err := s.Latest(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.LevelPositive, alerts[0].Level)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAlertNotFound(t *testing.T) {
	s, mock := newStorage(t)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE id = $1`)).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows(columns))

	_, err := s.Alert(context.Background(), 42)
	assert.ErrorIs(t, err, errs.ErrAlertNotFound)
}

func TestResolve(t *testing.T) {
	s, mock := newStorage(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE alerts SET resolved = true WHERE id = $1`)).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE alerts SET resolved = true WHERE id = $1`)).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Resolve(context.Background(), 5))
	assert.ErrorIs(t, s.Resolve(context.Background(), 6), errs.ErrAlertNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
