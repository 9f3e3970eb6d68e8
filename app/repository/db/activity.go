package db

import (
	"context"
	"database/sql"
	"log/slog"

	"flashsale-service/app/domain"
)

type activityRepository struct {
	conn *sql.DB
}

func NewActivityRepository(db *sql.DB) domain.ActivityRepository {
	return &activityRepository{db}
}

func (r *activityRepository) Create(ctx context.Context, activity *domain.Activity) error {
	query := `INSERT INTO activities
	(name, total_stock, available_stock, sell_price, original_price, start_time, end_time, max_per_user, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	RETURNING id, created_at, updated_at`

	err := r.conn.QueryRowContext(ctx, query,
		activity.Name, activity.TotalStock, activity.AvailableStock,
		activity.SellPrice, activity.OriginalPrice,
		activity.StartTime, activity.EndTime,
		activity.MaxPerUser, activity.Status).
		Scan(&activity.ID, &activity.CreatedAt, &activity.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] Create", "queryRowContext", err)
		return err
	}
	return nil
}

func (r *activityRepository) GetByID(ctx context.Context, id int64) (domain.Activity, error) {
	query := `SELECT id, name, total_stock, available_stock, sell_price, original_price,
	start_time, end_time, max_per_user, status, created_at, updated_at
	FROM activities WHERE id = $1`

	var activity domain.Activity
	err := r.conn.QueryRowContext(ctx, query, id).Scan(&activity.ID, &activity.Name,
		&activity.TotalStock, &activity.AvailableStock,
		&activity.SellPrice, &activity.OriginalPrice,
		&activity.StartTime, &activity.EndTime,
		&activity.MaxPerUser, &activity.Status,
		&activity.CreatedAt, &activity.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] GetByID", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return activity, domain.ErrNotFound
		}
		return activity, err
	}

	return activity, nil
}

func (r *activityRepository) List(ctx context.Context) ([]domain.Activity, error) {
	query := `SELECT id, name, total_stock, available_stock, sell_price, original_price,
	start_time, end_time, max_per_user, status, created_at, updated_at
	FROM activities ORDER BY start_time DESC`

	rows, err := r.conn.QueryContext(ctx, query)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] List", "queryContext", err)
		return nil, err
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		var activity domain.Activity
		if err := rows.Scan(&activity.ID, &activity.Name,
			&activity.TotalStock, &activity.AvailableStock,
			&activity.SellPrice, &activity.OriginalPrice,
			&activity.StartTime, &activity.EndTime,
			&activity.MaxPerUser, &activity.Status,
			&activity.CreatedAt, &activity.UpdatedAt); err != nil {
			slog.ErrorContext(ctx, "[activityRepository] List", "scan", err)
			return nil, err
		}
		activities = append(activities, activity)
	}

	if err := rows.Err(); err != nil {
		slog.ErrorContext(ctx, "[activityRepository] List", "rowError", err)
		return nil, err
	}

	return activities, nil
}

func (r *activityRepository) LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (domain.Activity, error) {
	query := `SELECT id, name, total_stock, available_stock, sell_price, original_price,
	start_time, end_time, max_per_user, status, created_at, updated_at
	FROM activities WHERE id = $1 FOR UPDATE`

	var activity domain.Activity
	err := tx.QueryRowContext(ctx, query, id).Scan(&activity.ID, &activity.Name,
		&activity.TotalStock, &activity.AvailableStock,
		&activity.SellPrice, &activity.OriginalPrice,
		&activity.StartTime, &activity.EndTime,
		&activity.MaxPerUser, &activity.Status,
		&activity.CreatedAt, &activity.UpdatedAt)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] LockForUpdate", "queryRowContext", err)
		if err == sql.ErrNoRows {
			return activity, domain.ErrNotFound
		}
		return activity, err
	}

	return activity, nil
}

func (r *activityRepository) UpdateAvailableStock(ctx context.Context, id, availableStock int64, tx *sql.Tx) error {
	query := `UPDATE activities SET available_stock = $1, updated_at = NOW() WHERE id = $2`
	_, err := tx.ExecContext(ctx, query, availableStock, id)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] UpdateAvailableStock", "execContext", err)
		return err
	}

	return nil
}

func (r *activityRepository) UpdateStatus(ctx context.Context, id int64, status domain.ActivityStatus) error {
	query := `UPDATE activities SET status = $1, updated_at = NOW() WHERE id = $2`
	res, err := r.conn.ExecContext(ctx, query, status, id)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] UpdateStatus", "execContext", err)
		return err
	}

	rowsAffected, err := res.RowsAffected()
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] UpdateStatus", "rowsAffected", err)
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (r *activityRepository) WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error {
	tx, err := r.conn.BeginTx(ctx, nil)
	if err != nil {
		slog.ErrorContext(ctx, "[activityRepository] WithTransaction", "beginTx", err)
		return err
	}

	if err := fn(ctx, tx); err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			slog.ErrorContext(ctx, "[activityRepository] WithTransaction", "rollback", rollbackErr)
			return err
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		slog.ErrorContext(ctx, "[activityRepository] WithTransaction", "commit", err)
		return err
	}

	return nil
}
