package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/models"
)

// Account repository interface
type AccountRepo interface {
	// Create account
	// If account with the email exists already has to return apperrors.ErrAccountAlreadyExists
	CreateAccount(ctx context.Context, account models.Account) (models.Account, error)

	// Get account by id, email or referral code
	// If account not found must return apperrors.ErrAccountNotFound
	GetByID(ctx context.Context, accountID uuid.UUID) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (models.Account, error)

	// Assign referral code to the account if it has none yet
	// Conditional on the store side: an already assigned code is never overwritten,
	// in that case the account is returned unchanged with no error.
	// If the candidate belongs to another account must return apperrors.ErrReferralCodeTaken
	SetReferralCode(ctx context.Context, accountID uuid.UUID, code string) (models.Account, error)

	// Atomically add amount to the account credit balance and return the new balance
	// Amount is expected to be positive, the store keeps the balance non negative anyway
	AddCredits(ctx context.Context, accountID uuid.UUID, amount int64) (newBalance int64, err error)

	// Set referred_by on the account if it is not set yet
	// If it is set already must return apperrors.ErrAlreadyReferred
	SetReferredBy(ctx context.Context, accountID uuid.UUID, referrerID uuid.UUID) error
}

// Referral repository interface
type ReferralRepo interface {
	// Create referral in PENDING state
	// If a referral for the referred account exists already (enforced by the store
	// uniqueness constraint, not check-then-insert) must return apperrors.ErrAlreadyReferred
	CreateReferral(ctx context.Context, referrerID uuid.UUID, referredID uuid.UUID) (models.Referral, error)

	// Get referral by id
	// If not found must return apperrors.ErrReferralNotFound
	GetByID(ctx context.Context, referralID uuid.UUID) (models.Referral, error)

	// Get the PENDING referral where the account is the referred side
	// If there is none must return apperrors.ErrReferralNotFound
	GetPendingByReferredID(ctx context.Context, referredID uuid.UUID) (models.Referral, error)

	// Get the referral where the account is the referred side regardless of status
	// If there is none must return apperrors.ErrReferralNotFound
	GetByReferredID(ctx context.Context, referredID uuid.UUID) (models.Referral, error)

	// Atomically transition PENDING -> CONFIRMED setting confirmed_at and credits_earned
	// in a single conditional update. Exactly one of two concurrent calls may succeed.
	// If the referral is not PENDING must return apperrors.ErrReferralNotPending,
	// if it does not exist apperrors.ErrReferralNotFound
	Confirm(ctx context.Context, referralID uuid.UUID, reward int64) (models.Referral, error)

	// Atomically transition PENDING -> CANCELLED, same contract as Confirm
	Cancel(ctx context.Context, referralID uuid.UUID, reason string) (models.Referral, error)

	// List referrals where the account is the referrer, newest first
	ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit int, offset int) ([]models.Referral, error)

	// Count referrals by status and sum earned credits for the referrer
	Stats(ctx context.Context, referrerID uuid.UUID) (models.ReferralStats, error)
}

// Purchase repository interface
type PurchaseRepo interface {
	CreatePurchase(ctx context.Context, purchase models.Purchase) (models.Purchase, error)

	// If not found must return apperrors.ErrPurchaseNotFound
	GetByID(ctx context.Context, purchaseID uuid.UUID) (models.Purchase, error)

	// Report whether the account has any COMPLETED purchase except the given one
	// Pass uuid.Nil to count them all
	HasCompleted(ctx context.Context, accountID uuid.UUID, exceptID uuid.UUID) (bool, error)

	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]models.Purchase, error)

	Stats(ctx context.Context, accountID uuid.UUID) (models.PurchaseStats, error)
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	Save(ctx context.Context, token models.RefreshToken) error

	// Get token and mark used in one step
	// If the token is used already must return apperrors.ErrRefreshTokenIsUsed
	// and must not overwrite the existing used_at
	GetAndMarkUsed(ctx context.Context, tokenString string) (models.RefreshToken, error)
}

// Storage aggregates all repositories over one connection or transaction
type Storage interface {
	Account() AccountRepo
	Referral() ReferralRepo
	Purchase() PurchaseRepo
	Refresh() RefreshTokenRepo

	// Run fn within a db transaction
	InTx(ctx context.Context, fn func(Storage) error) error
}
