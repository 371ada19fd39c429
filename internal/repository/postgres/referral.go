package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
)

type ReferralRepo struct {
	DB DBTX
}

const referralColumns = `id, created_at, referrer_id, referred_id, status, credits_earned, confirmed_at, cancelled_at, cancel_reason`

const createReferral = `-- name: CreateReferral
INSERT INTO referrals (id, created_at, referrer_id, referred_id, status, credits_earned)
VALUES ($1, $2, $3, $4, 'PENDING', 0)
RETURNING ` + referralColumns

func (r *ReferralRepo) CreateReferral(ctx context.Context, referrerID uuid.UUID, referredID uuid.UUID) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, createReferral, uuid.New(), time.Now(), referrerID, referredID)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return referral, apperrors.ErrAlreadyReferred
		}
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return referral, apperrors.ErrSelfReferral
		}

		return referral, dbError(err)
	}

	return referral, nil
}

const getReferralByID = `-- name: GetReferralByID
SELECT ` + referralColumns + ` FROM referrals
WHERE id = $1
`

func (r *ReferralRepo) GetByID(ctx context.Context, referralID uuid.UUID) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, getReferralByID, referralID)
	return collectReferral(rows)
}

const getPendingByReferredID = `-- name: GetPendingByReferredID
SELECT ` + referralColumns + ` FROM referrals
WHERE referred_id = $1 AND status = 'PENDING'
`

func (r *ReferralRepo) GetPendingByReferredID(ctx context.Context, referredID uuid.UUID) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, getPendingByReferredID, referredID)
	return collectReferral(rows)
}

const getByReferredID = `-- name: GetByReferredID
SELECT ` + referralColumns + ` FROM referrals
WHERE referred_id = $1
`

func (r *ReferralRepo) GetByReferredID(ctx context.Context, referredID uuid.UUID) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, getByReferredID, referredID)
	return collectReferral(rows)
}

// Compare-and-swap on status: the WHERE clause makes the transition indivisible,
// two concurrent confirms get exactly one row updated between them
const confirmReferral = `-- name: ConfirmReferral
UPDATE referrals
SET status = 'CONFIRMED', confirmed_at = $2, credits_earned = $3
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + referralColumns

func (r *ReferralRepo) Confirm(ctx context.Context, referralID uuid.UUID, reward int64) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, confirmReferral, referralID, time.Now(), reward)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	switch {
	case err == nil:
		return referral, nil
	case errors.Is(err, pgx.ErrNoRows):
		return referral, r.notPendingReason(ctx, referralID)
	default:
		return referral, dbError(err)
	}
}

const cancelReferral = `-- name: CancelReferral
UPDATE referrals
SET status = 'CANCELLED', cancelled_at = $2, cancel_reason = $3
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + referralColumns

func (r *ReferralRepo) Cancel(ctx context.Context, referralID uuid.UUID, reason string) (models.Referral, error) {
	rows, _ := r.DB.Query(ctx, cancelReferral, referralID, time.Now(), reason)
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	switch {
	case err == nil:
		return referral, nil
	case errors.Is(err, pgx.ErrNoRows):
		return referral, r.notPendingReason(ctx, referralID)
	default:
		return referral, dbError(err)
	}
}

// Distinguish a missing referral from one that left PENDING already
func (r *ReferralRepo) notPendingReason(ctx context.Context, referralID uuid.UUID) error {
	_, err := r.GetByID(ctx, referralID)
	if err != nil {
		return err
	}
	return apperrors.ErrReferralNotPending
}

const listByReferrer = `-- name: ListReferralsByReferrer
SELECT ` + referralColumns + ` FROM referrals
WHERE referrer_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (r *ReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID, limit int, offset int) ([]models.Referral, error) {
	rows, _ := r.DB.Query(ctx, listByReferrer, referrerID, limit, offset)
	referrals, err := pgx.CollectRows(rows, rowToReferral)
	if err != nil {
		return nil, dbError(err)
	}

	return referrals, nil
}

const referrerStats = `-- name: ReferrerStats
SELECT
	count(*) AS total,
	count(*) FILTER (WHERE status = 'PENDING') AS pending,
	count(*) FILTER (WHERE status = 'CONFIRMED') AS confirmed,
	count(*) FILTER (WHERE status = 'CANCELLED') AS cancelled,
	COALESCE(sum(credits_earned), 0) AS credits_earned
FROM referrals
WHERE referrer_id = $1
`

func (r *ReferralRepo) Stats(ctx context.Context, referrerID uuid.UUID) (models.ReferralStats, error) {
	var s models.ReferralStats
	err := r.DB.QueryRow(ctx, referrerStats, referrerID).
		Scan(&s.Total, &s.Pending, &s.Confirmed, &s.Cancelled, &s.CreditsEarned)
	if err != nil {
		return s, dbError(err)
	}

	return s, nil
}

func collectReferral(rows pgx.Rows) (models.Referral, error) {
	referral, err := pgx.CollectOneRow(rows, rowToReferral)

	switch {
	case err == nil:
		return referral, nil
	case errors.Is(err, pgx.ErrNoRows):
		return referral, apperrors.ErrReferralNotFound
	default:
		return referral, dbError(err)
	}
}

func rowToReferral(row pgx.CollectableRow) (models.Referral, error) {
	var r models.Referral
	err := row.Scan(&r.ID, &r.CreatedAt, &r.ReferrerID, &r.ReferredID, &r.Status, &r.CreditsEarned, &r.ConfirmedAt, &r.CancelledAt, &r.CancelReason)
	return r, err
}
