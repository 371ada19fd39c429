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

type AccountRepo struct {
	DB DBTX
}

const accountColumns = `id, created_at, email, password_hash, first_name, last_name, referral_code, referred_by, credits`

const createAccount = `-- name: CreateAccount
INSERT INTO accounts (id, created_at, email, password_hash, first_name, last_name, referral_code, referred_by, credits)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + accountColumns

func (r *AccountRepo) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	rows, _ := r.DB.Query(ctx, createAccount,
		a.ID, a.CreatedAt, a.Email, a.HashedPassword, a.FirstName, a.LastName, a.ReferralCode, a.ReferredBy, a.Credits,
	)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrAccountAlreadyExists
		}

		return account, dbError(err)
	}

	return account, nil
}

const getAccountByID = `-- name: GetAccountByID
SELECT ` + accountColumns + ` FROM accounts
WHERE id = $1
`

func (r *AccountRepo) GetByID(ctx context.Context, accountID uuid.UUID) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByID, accountID)
	return collectAccount(rows)
}

const getAccountByEmail = `-- name: GetAccountByEmail
SELECT ` + accountColumns + ` FROM accounts
WHERE email = $1
`

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByEmail, email)
	return collectAccount(rows)
}

const getAccountByCode = `-- name: GetAccountByReferralCode
SELECT ` + accountColumns + ` FROM accounts
WHERE referral_code = $1
`

func (r *AccountRepo) GetByReferralCode(ctx context.Context, code string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, getAccountByCode, code)
	return collectAccount(rows)
}

// Assign code only if the account has none yet
// COALESCE keeps an already assigned code untouched, so the operation is idempotent
const setReferralCode = `-- name: SetReferralCode
UPDATE accounts
SET referral_code = COALESCE(referral_code, $2)
WHERE id = $1
RETURNING ` + accountColumns

func (r *AccountRepo) SetReferralCode(ctx context.Context, accountID uuid.UUID, code string) (models.Account, error) {
	rows, _ := r.DB.Query(ctx, setReferralCode, accountID, code)
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return account, apperrors.ErrReferralCodeTaken
		}

		return account, dbError(err)
	}
}

// Single atomic increment, the accounts_credits_non_negative check keeps
// the balance from ever going below zero
const addCredits = `-- name: AddCredits
UPDATE accounts
SET credits = credits + $2
WHERE id = $1
RETURNING credits
`

func (r *AccountRepo) AddCredits(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	rows, _ := r.DB.Query(ctx, addCredits, accountID, amount)
	balance, err := pgx.CollectOneRow(rows, pgx.RowTo[int64])

	switch {
	case err == nil:
		return balance, nil
	case errors.Is(err, pgx.ErrNoRows):
		return 0, apperrors.ErrAccountNotFound
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.CheckViolation {
			return 0, apperrors.ErrInvalidAmount
		}

		return 0, dbError(err)
	}
}

// Conditional on referred_by being empty, so the relation is set at most once
const setReferredBy = `-- name: SetReferredBy
UPDATE accounts
SET referred_by = $2
WHERE id = $1 AND referred_by IS NULL
RETURNING id
`

func (r *AccountRepo) SetReferredBy(ctx context.Context, accountID uuid.UUID, referrerID uuid.UUID) error {
	rows, _ := r.DB.Query(ctx, setReferredBy, accountID, referrerID)
	_, err := pgx.CollectOneRow(rows, pgx.RowTo[uuid.UUID])

	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		// Either the account does not exist or it is referred already
		_, getErr := r.GetByID(ctx, accountID)
		if getErr != nil {
			return getErr
		}
		return apperrors.ErrAlreadyReferred
	default:
		return dbError(err)
	}
}

func collectAccount(rows pgx.Rows) (models.Account, error) {
	account, err := pgx.CollectOneRow(rows, rowToAccount)

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, pgx.ErrNoRows):
		return account, apperrors.ErrAccountNotFound
	default:
		return account, dbError(err)
	}
}

func rowToAccount(row pgx.CollectableRow) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.CreatedAt, &a.Email, &a.HashedPassword, &a.FirstName, &a.LastName, &a.ReferralCode, &a.ReferredBy, &a.Credits)
	return a, err
}
