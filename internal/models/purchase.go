package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PurchaseStatusPending   = "PENDING"
	PurchaseStatusCompleted = "COMPLETED"
	PurchaseStatusFailed    = "FAILED"
	PurchaseStatusRefunded  = "REFUNDED"
)

type Purchase struct {
	ID          uuid.UUID
	CreatedAt   time.Time
	AccountID   uuid.UUID
	Amount      decimal.Decimal
	Description string
	ProductID   *string
	Status      string
}

type PurchaseStats struct {
	Total       int64
	Completed   int64
	TotalAmount decimal.Decimal
}
