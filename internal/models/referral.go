package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ReferralStatusPending   = "PENDING"
	ReferralStatusConfirmed = "CONFIRMED"
	ReferralStatusCancelled = "CANCELLED"
)

// Referral tracks a single referrer -> referred relation.
// There is at most one referral per referred account, status moves
// PENDING -> CONFIRMED or PENDING -> CANCELLED and never back.
type Referral struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	ReferrerID uuid.UUID
	ReferredID uuid.UUID
	Status     string

	// Zero while PENDING or CANCELLED, set exactly once on confirmation
	CreditsEarned int64

	ConfirmedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason *string
}

// ReferralStats is a read-only projection over the referrals of one referrer
type ReferralStats struct {
	Total         int64
	Pending       int64
	Confirmed     int64
	Cancelled     int64
	CreditsEarned int64
}
