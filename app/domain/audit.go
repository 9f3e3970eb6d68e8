package domain

import (
	"context"
	"time"
)

// AuditReport describes one activity whose ledger drifted from the
// stock implied by its order history.
type AuditReport struct {
	ActivityID       int64  `json:"activity_id"`
	ActivityName     string `json:"activity_name"`
	TotalStock       int64  `json:"total_stock"`
	SoldQuantity     int64  `json:"sold_quantity"`
	PendingQuantity  int64  `json:"pending_quantity"`
	TheoreticalStock int64  `json:"theoretical_stock"`
	ActualStock      int64  `json:"actual_stock"`
	Difference       int64  `json:"difference"`
}

type AuditSummary struct {
	TotalChecked      int64         `json:"total_checked"`
	InconsistentCount int64         `json:"inconsistent_count"`
	Inconsistent      []AuditReport `json:"inconsistent_activities"`
	CheckedAt         time.Time     `json:"checked_at"`
}

type AuditFixResult struct {
	ActivityID    int64 `json:"activity_id"`
	PreviousStock int64 `json:"previous_stock"`
	FixedStock    int64 `json:"fixed_stock"`
}

// AuditUsecase separates detection from correction: Check methods never
// mutate, Fix rewrites the ledger only on an explicit call.
type AuditUsecase interface {
	CheckActivity(ctx context.Context, activityID int64) (*AuditReport, error)
	CheckAll(ctx context.Context) (AuditSummary, error)
	Fix(ctx context.Context, activityID int64) (AuditFixResult, error)
}
