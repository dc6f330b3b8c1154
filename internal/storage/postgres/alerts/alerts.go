package alertstorage

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

const alertColumns = `id, message, missing, level, video, created_at, resolved`

type AlertStorage struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *AlertStorage {
	return &AlertStorage{
		db: db,
	}
}

func (s *AlertStorage) SaveAlert(ctx context.Context, alert models.Alert) (int64, error) {
	const op = "storage.postgres.alerts.SaveAlert"

	query := fmt.Sprintf(`INSERT INTO %s (message, missing, level, video, created_at, resolved)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`, postgres.AlertsTable)

	var id int64
	row := s.db.QueryRowContext(ctx, query, alert.Message, alert.Missing, alert.Level, alert.Video, alert.Timestamp, alert.Resolved)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("%s: %w: %w", op, errs.ErrWriteToDB, err)
	}

	return id, nil
}

func (s *AlertStorage) UnresolvedSince(ctx context.Context, since time.Time) ([]models.Alert, error) {
	const op = "storage.postgres.alerts.UnresolvedSince"

	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE resolved = false AND created_at >= $1
		ORDER BY created_at DESC`, alertColumns, postgres.AlertsTable)

	var alerts []models.Alert
	if err := s.db.SelectContext(ctx, &alerts, query, since); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return alerts, nil
}

func (s *AlertStorage) Latest(ctx context.Context, limit int) ([]models.Alert, error) {
	const op = "storage.postgres.alerts.Latest"

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC`, alertColumns, postgres.AlertsTable)
	args := []any{}

	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	var alerts []models.Alert
	if err := s.db.SelectContext(ctx, &alerts, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return alerts, nil
}

func (s *AlertStorage) Alert(ctx context.Context, id int64) (models.Alert, error) {
	const op = "storage.postgres.alerts.Alert"

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, alertColumns, postgres.AlertsTable)

	var alert models.Alert
	if err := s.db.GetContext(ctx, &alert, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Alert{}, fmt.Errorf("%s: %w", op, errs.ErrAlertNotFound)
		}
		return models.Alert{}, fmt.Errorf("%s: %w", op, err)
	}

	return alert, nil
}

func (s *AlertStorage) Resolve(ctx context.Context, id int64) error {
	const op = "storage.postgres.alerts.Resolve"

	query := fmt.Sprintf(`UPDATE %s SET resolved = true WHERE id = $1`, postgres.AlertsTable)

	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%s: %w", op, errs.ErrAlertNotFound)
	}

	return nil
}
