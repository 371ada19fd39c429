package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	// Referral code length limits, enforced by the store as well
	ReferralCodeMinLen = 6
	ReferralCodeMaxLen = 10
)

type Account struct {
	ID             uuid.UUID
	CreatedAt      time.Time
	Email          string
	HashedPassword string
	FirstName      string
	LastName       string

	// Unique uppercase alphanumeric code, assigned lazily on first request
	// nil until assigned, immutable afterwards
	ReferralCode *string

	// Account that referred this one, set at most once
	ReferredBy *uuid.UUID

	// Credit balance, never negative
	Credits int64
}

func (a Account) FullName() string {
	return a.FirstName + " " + a.LastName
}
