package domain

import (
	"context"
	"database/sql"
	"time"
)

type ActivityStatus string

const (
	ActivityStatusPending   ActivityStatus = "pending"
	ActivityStatusActive    ActivityStatus = "active"
	ActivityStatusEnded     ActivityStatus = "ended"
	ActivityStatusCancelled ActivityStatus = "cancelled"
)

// Activity is the inventory ledger entry for one flash sale.
// AvailableStock is only ever written through the reservation and
// rollback paths, both under a FOR UPDATE lock on the row.
type Activity struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	TotalStock     int64          `json:"total_stock"`
	AvailableStock int64          `json:"available_stock"`
	SellPrice      int64          `json:"sell_price"`     // cents
	OriginalPrice  int64          `json:"original_price"` // cents
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
	MaxPerUser     int64          `json:"max_per_user"`
	Status         ActivityStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// DeriveStatus recomputes the status from time and stock.
// A cancelled activity stays cancelled.
func (a *Activity) DeriveStatus(now time.Time) ActivityStatus {
	if a.Status == ActivityStatusCancelled {
		return ActivityStatusCancelled
	}
	if now.Before(a.StartTime) {
		return ActivityStatusPending
	}
	if !now.After(a.EndTime) {
		if a.AvailableStock > 0 {
			return ActivityStatusActive
		}
		return ActivityStatusEnded
	}
	return ActivityStatusEnded
}

// IsSellable reports whether the activity accepts reservations at now.
// Stock is deliberately not part of this check so that an exhausted
// activity inside its window fails with ErrInsufficientStock instead.
func (a *Activity) IsSellable(now time.Time) bool {
	if a.Status == ActivityStatusCancelled {
		return false
	}
	return !now.Before(a.StartTime) && !now.After(a.EndTime)
}

func (a *Activity) SoldCount() int64 {
	return a.TotalStock - a.AvailableStock
}

type ActivityCreateRequest struct {
	Name          string    `json:"name" validate:"required"`
	TotalStock    int64     `json:"total_stock" validate:"required,min=1"`
	SellPrice     int64     `json:"sell_price" validate:"required,min=1"`
	OriginalPrice int64     `json:"original_price" validate:"required,gtfield=SellPrice"`
	StartTime     time.Time `json:"start_time" validate:"required"`
	EndTime       time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
	MaxPerUser    int64     `json:"max_per_user" validate:"required,min=1"`
}

type ActivityRepository interface {
	Create(ctx context.Context, activity *Activity) error
	GetByID(ctx context.Context, id int64) (Activity, error)
	List(ctx context.Context) ([]Activity, error)
	LockForUpdate(ctx context.Context, id int64, tx *sql.Tx) (Activity, error)
	UpdateAvailableStock(ctx context.Context, id, availableStock int64, tx *sql.Tx) error
	UpdateStatus(ctx context.Context, id int64, status ActivityStatus) error

	WithTransaction(ctx context.Context, fn func(context.Context, *sql.Tx) error) error
}

type ActivityUsecase interface {
	Create(ctx context.Context, req ActivityCreateRequest) (*Activity, error)
	GetByID(ctx context.Context, id int64) (Activity, error)
	List(ctx context.Context) ([]Activity, error)
	Cancel(ctx context.Context, id int64) error
}
