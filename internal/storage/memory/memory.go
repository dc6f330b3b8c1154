// Package memory keeps alerts and recordings in process when no database
// is configured. Contents are lost on restart.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
)

type AlertStorage struct {
	mu     sync.RWMutex
	nextID int64
	alerts []models.Alert
}

func NewAlertStorage() *AlertStorage {
	return &AlertStorage{}
}

func (s *AlertStorage) SaveAlert(_ context.Context, alert models.Alert) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	alert.ID = s.nextID
	s.alerts = append(s.alerts, alert)

	return alert.ID, nil
}

func (s *AlertStorage) UnresolvedSince(_ context.Context, since time.Time) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Alert
	for _, a := range s.alerts {
		if !a.Resolved && !a.Timestamp.Before(since) {
			out = append(out, a)
		}
	}

	sortNewestFirst(out)

	return out, nil
}

func (s *AlertStorage) Latest(_ context.Context, limit int) ([]models.Alert, error) {
	s.mu.RLock()
	out := slices.Clone(s.alerts)
	s.mu.RUnlock()

	sortNewestFirst(out)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (s *AlertStorage) Alert(_ context.Context, id int64) (models.Alert, error) {
	const op = "storage.memory.Alert"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.alerts {
		if a.ID == id {
			return a, nil
		}
	}

	return models.Alert{}, fmt.Errorf("%s: %w", op, errs.ErrAlertNotFound)
}

func (s *AlertStorage) Resolve(_ context.Context, id int64) error {
	const op = "storage.memory.Resolve"

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.alerts {
		if s.alerts[i].ID == id {
			s.alerts[i].Resolved = true
			return nil
		}
	}

	return fmt.Errorf("%s: %w", op, errs.ErrAlertNotFound)
}

func sortNewestFirst(alerts []models.Alert) {
	slices.SortStableFunc(alerts, func(a, b models.Alert) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
}

type RecordingStorage struct {
	mu   sync.RWMutex
	recs map[string]models.Recording
}

func NewRecordingStorage() *RecordingStorage {
	return &RecordingStorage{recs: make(map[string]models.Recording)}
}

func (s *RecordingStorage) Start(_ context.Context, rec models.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recs[rec.RecordingID] = rec

	return nil
}

func (s *RecordingStorage) Stop(_ context.Context, recordingID string, stopTime time.Time, frames int64) error {
	const op = "storage.memory.Stop"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[recordingID]
	if !ok {
		return fmt.Errorf("%s: %w", op, errs.ErrRecordingNotFound)
	}

	rec.StopTime = stopTime
	rec.FrameCount = frames
	s.recs[recordingID] = rec

	return nil
}

func (s *RecordingStorage) Move(_ context.Context, recordingID, objectKey string) error {
	const op = "storage.memory.Move"

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[recordingID]
	if !ok {
		return fmt.Errorf("%s: %w", op, errs.ErrRecordingNotFound)
	}

	rec.IsMoved = true
	rec.ObjectKey = objectKey
	s.recs[recordingID] = rec

	return nil
}

func (s *RecordingStorage) RecordingByPath(_ context.Context, filePath string) (models.Recording, error) {
	const op = "storage.memory.RecordingByPath"

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.recs {
		if rec.FilePath == filePath {
			return rec, nil
		}
	}

	return models.Recording{}, fmt.Errorf("%s: %w", op, errs.ErrRecordingNotFound)
}
