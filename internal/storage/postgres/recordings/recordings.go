package recordingstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zanzhit/ppe_monitor/internal/domain/errs"
	"github.com/zanzhit/ppe_monitor/internal/domain/models"
	"github.com/zanzhit/ppe_monitor/internal/storage/postgres"
)

type RecordingStorage struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *RecordingStorage {
	return &RecordingStorage{
		db: db,
	}
}

func (s *RecordingStorage) Start(ctx context.Context, rec models.Recording) error {
	const op = "storage.postgres.recordings.Start"

	query := fmt.Sprintf(`INSERT INTO %s (recording_id, session_id, file_path, start_time, frame_count, is_moved)
		VALUES ($1, $2, $3, $4, $5, $6)`, postgres.RecordingsTable)

	_, err := s.db.ExecContext(ctx, query, rec.RecordingID, rec.SessionID, rec.FilePath, rec.StartTime, rec.FrameCount, false)
	if err != nil {
		return fmt.Errorf("%s: %w: %w", op, errs.ErrWriteToDB, err)
	}

	return nil
}

func (s *RecordingStorage) Stop(ctx context.Context, recordingID string, stopTime time.Time, frames int64) error {
	const op = "storage.postgres.recordings.Stop"

	query := fmt.Sprintf(`UPDATE %s SET stop_time = $1, frame_count = $2 WHERE recording_id = $3`, postgres.RecordingsTable)

	return s.exec(ctx, op, query, stopTime, frames, recordingID)
}

func (s *RecordingStorage) Move(ctx context.Context, recordingID, objectKey string) error {
	const op = "storage.postgres.recordings.Move"

	query := fmt.Sprintf(`UPDATE %s SET is_moved = true, object_key = $1 WHERE recording_id = $2`, postgres.RecordingsTable)

	return s.exec(ctx, op, query, objectKey, recordingID)
}

func (s *RecordingStorage) RecordingByPath(ctx context.Context, filePath string) (models.Recording, error) {
	const op = "storage.postgres.recordings.RecordingByPath"

	var rec models.Recording
	var stopTime sql.NullTime
	var objectKey sql.NullString

	query := fmt.Sprintf(`
		SELECT recording_id, session_id, file_path, start_time, stop_time, frame_count, is_moved, object_key
		FROM %s
		WHERE file_path = $1`, postgres.RecordingsTable)

	row := s.db.QueryRowContext(ctx, query, filePath)
	if err := row.Scan(&rec.RecordingID, &rec.SessionID, &rec.FilePath, &rec.StartTime, &stopTime, &rec.FrameCount, &rec.IsMoved, &objectKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Recording{}, fmt.Errorf("%s: %w", op, errs.ErrRecordingNotFound)
		}
		return models.Recording{}, fmt.Errorf("%s: %w", op, err)
	}

	if stopTime.Valid {
		rec.StopTime = stopTime.Time
	}
	rec.ObjectKey = objectKey.String

	return rec, nil
}

func (s *RecordingStorage) exec(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, errs.ErrRecordingNotFound)
	}

	return nil
}
