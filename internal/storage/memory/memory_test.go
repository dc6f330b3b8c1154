package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

func TestAlertRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStorage()

	ts := time.Date(2024, 3, 9, 14, 30, 5, 123456789, time.UTC)
	in := models.Alert{
		Message:   "Person missing vest, boots",
		Missing:   "vest, boots",
		Level:     models.LevelHigh,
		Video:     "grabaciones/recording_20240309_143005.avi",
		Timestamp: ts,
	}

	id, err := s.SaveAlert(ctx, in)
	require.NoError(t, err)

	out, err := s.Alert(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, id, out.ID)
	assert.Equal(t, in.Message, out.Message)
	assert.Equal(t, in.Missing, out.Missing)
	assert.Equal(t, in.Level, out.Level)
	assert.True(t, ts.Equal(out.Timestamp))
	assert.False(t, out.Resolved)
}

func TestUnresolvedSinceNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStorage()
	now := time.Now()

	old, _ := s.SaveAlert(ctx, models.Alert{Message: "old", Timestamp: now.Add(-48 * time.Hour)})
	first, _ := s.SaveAlert(ctx, models.Alert{Message: "first", Timestamp: now.Add(-2 * time.Hour)})
	second, _ := s.SaveAlert(ctx, models.Alert{Message: "second", Timestamp: now.Add(-time.Hour)})
	resolved, _ := s.SaveAlert(ctx, models.Alert{Message: "resolved", Timestamp: now})
	require.NoError(t, s.Resolve(ctx, resolved))

	got, err := s.UnresolvedSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, second, got[0].ID)
	assert.Equal(t, first, got[1].ID)
	assert.NotEqual(t, old, got[1].ID)
}

func TestLatestLimit(t *testing.T) {
	ctx := context.Background()
	s := NewAlertStorage()
	now := time.Now()

	for i := 0; i < 15; i++ {
		_, err := s.SaveAlert(ctx, models.Alert{Timestamp: now.Add(time.Duration(i) * time.Second)})
		require.NoError(t, err)
	}

	got, err := s.Latest(ctx, 10)
	require.NoError(t, err)

	require.Len(t, got, 10)
	assert.Equal(t, int64(15), got[0].ID)
	assert.Equal(t, int64(6), got[9].ID)
}

func TestAlertNotFound(t *testing.T) {
	s := NewAlertStorage()

	_, err := s.Alert(context.Background(), 7)
	assert.ErrorIs(t, err, errs.ErrAlertNotFound)
	assert.ErrorIs(t, s.Resolve(context.Background(), 7), errs.ErrAlertNotFound)
}

func TestRecordingLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewRecordingStorage()
	start := time.Now()

	rec := models.Recording{RecordingID: "r1", FilePath: "grabaciones/recording_1.avi", StartTime: start}
	require.NoError(t, s.Start(ctx, rec))
	require.NoError(t, s.Stop(ctx, "r1", start.Add(time.Minute), 1200))
	require.NoError(t, s.Move(ctx, "r1", "recording_1.avi"))

	got, err := s.RecordingByPath(ctx, "grabaciones/recording_1.avi")
	require.NoError(t, err)

	assert.True(t, got.IsMoved)
	assert.Equal(t, "recording_1.avi", got.ObjectKey)
	assert.Equal(t, int64(1200), got.FrameCount)

	assert.ErrorIs(t, s.Stop(ctx, "missing", start, 0), errs.ErrRecordingNotFound)
	_, err = s.RecordingByPath(ctx, "nope")
	assert.ErrorIs(t, err, errs.ErrRecordingNotFound)
}
