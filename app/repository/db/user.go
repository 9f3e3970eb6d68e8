package db

import (
	"context"
	"database/sql"
	"log/slog"

	"flashsale-service/app/domain"
)

type userRepository struct {
	conn *sql.DB
}

func NewUserRepository(db *sql.DB) domain.UserRepository {
	return &userRepository{db}
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	query := `SELECT id, username, active, created_at FROM users WHERE id = $1`

	var user domain.User
	err := r.conn.QueryRowContext(ctx, query, id).
		Scan(&user.ID, &user.Username, &user.Active, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return user, domain.ErrNotFound
		}
		slog.ErrorContext(ctx, "[userRepository] GetByID", "queryRowContext", err)
		return user, err
	}

	return user, nil
}
