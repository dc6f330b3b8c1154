package recordingservice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/metrics"
	"github.com/zanzhit/ppe_monitor/internal/storage/memory"
)

type fakeStore struct {
	mu       sync.Mutex
	uploaded map[string]string
	fail     error
}

func (f *fakeStore) Upload(_ context.Context, key, filePath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		return f.fail
	}
	if f.uploaded == nil {
		f.uploaded = make(map[string]string)
	}
	f.uploaded[key] = filePath
	return nil
}

func (f *fakeStore) Presign(_ context.Context, key string) (string, error) {
	return "https://s3.local/recordings/" + key + "?X-Amz-Signature=abc", nil
}

func newService(store VideoService) (*RecordingService, *memory.RecordingStorage, *metrics.Metrics) {
	recs := memory.NewRecordingStorage()
	m := metrics.New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return New(log, recs, recs, store, m, time.Second), recs, m
}

func recording() models.Recording {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	return models.Recording{
		RecordingID: "r1",
		SessionID:   "s1",
		FilePath:    "grabaciones/recording_20240501_100000.avi",
		StartTime:   start,
	}
}

func TestFinalizedUploadsAndMarksMoved(t *testing.T) {
	store := &fakeStore{}
	s, recs, m := newService(store)

	rec := recording()
	s.Started(rec)

	rec.StopTime = rec.StartTime.Add(8 * time.Second)
	rec.FrameCount = 160
	s.Finalized(rec)
	s.Close()

	got, err := recs.RecordingByPath(context.Background(), rec.FilePath)
	require.NoError(t, err)
	assert.True(t, got.IsMoved)
	assert.Equal(t, "s1/recording_20240501_100000.avi", got.ObjectKey)
	assert.Equal(t, int64(160), got.FrameCount)
	assert.True(t, got.StopTime.Equal(rec.StopTime))

	assert.Equal(t, rec.FilePath, store.uploaded["s1/recording_20240501_100000.avi"])
	assert.Equal(t, uint64(1), m.RecordingsFinished.Load())
	assert.Zero(t, m.UploadErrors.Load())
}

func TestUploadFailureKeepsRecordingLocal(t *testing.T) {
	s, recs, m := newService(&fakeStore{fail: assert.AnError})

	rec := recording()
	s.Started(rec)
	s.Finalized(rec)
	s.Close()

	got, err := recs.RecordingByPath(context.Background(), rec.FilePath)
	require.NoError(t, err)
	assert.False(t, got.IsMoved)
	assert.Equal(t, uint64(1), m.UploadErrors.Load())
}

func TestWithoutObjectStore(t *testing.T) {
	s, recs, _ := newService(nil)

	rec := recording()
	s.Started(rec)
	s.Finalized(rec)
	s.Close()

	got, err := recs.RecordingByPath(context.Background(), rec.FilePath)
	require.NoError(t, err)
	assert.False(t, got.IsMoved)

	url, err := s.VideoURL(context.Background(), rec.FilePath)
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestVideoURL(t *testing.T) {
	s, _, _ := newService(&fakeStore{})

	rec := recording()
	s.Started(rec)
	s.Finalized(rec)
	s.Close()

	url, err := s.VideoURL(context.Background(), rec.FilePath)
	require.NoError(t, err)
	assert.Contains(t, url, "s1/recording_20240501_100000.avi")

	url, err = s.VideoURL(context.Background(), "grabaciones/unknown.avi")
	require.NoError(t, err)
	assert.Empty(t, url)
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _, _ := newService(nil)

	s.Close()
	s.Close()
}
