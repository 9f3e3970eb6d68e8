package domain

import (
	"context"
	"time"
)

// ReservationMessage is the intake payload delivered by the upstream
// admission channel. The price it carries is informational only; the
// reservation always uses the activity's own price.
type ReservationMessage struct {
	ExternalOrderID string    `json:"order_id"`
	UserID          int64     `json:"user_id"`
	ActivityID      int64     `json:"activity_id"`
	Quantity        int64     `json:"quantity"`
	Price           int64     `json:"price"`
	CreatedAt       time.Time `json:"created_at"`
}

type OrderEvent struct {
	OrderID     int64       `json:"order_id"`
	UserID      int64       `json:"user_id"`
	ActivityID  int64       `json:"activity_id"`
	Quantity    int64       `json:"quantity"`
	TotalAmount int64       `json:"total_amount"`
	Status      OrderStatus `json:"status"`
	Timestamp   time.Time   `json:"timestamp"`
}

type BrokerPublisher interface {
	PublishOrderCreated(ctx context.Context, event OrderEvent) error
	PublishOrderCancelled(ctx context.Context, event OrderEvent) error
}

// IntakeResult reports the order an intake message resolved to.
// Duplicate marks a redelivery that matched an existing order.
type IntakeResult struct {
	OrderID   int64
	Duplicate bool
}

type IntakeUsecase interface {
	Process(ctx context.Context, msg ReservationMessage) (IntakeResult, error)
}
