package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
)

type PurchaseRepo struct {
	DB DBTX
}

const purchaseColumns = `id, created_at, account_id, amount, description, product_id, status`

const createPurchase = `-- name: CreatePurchase
INSERT INTO purchases (id, created_at, account_id, amount, description, product_id, status)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + purchaseColumns

func (r *PurchaseRepo) CreatePurchase(ctx context.Context, p models.Purchase) (models.Purchase, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Status == "" {
		p.Status = models.PurchaseStatusPending
	}

	rows, _ := r.DB.Query(ctx, createPurchase, p.ID, p.CreatedAt, p.AccountID, p.Amount, p.Description, p.ProductID, p.Status)
	purchase, err := pgx.CollectOneRow(rows, rowToPurchase)
	if err != nil {
		return purchase, dbError(err)
	}

	return purchase, nil
}

const getPurchaseByID = `-- name: GetPurchaseByID
SELECT ` + purchaseColumns + ` FROM purchases
WHERE id = $1
`

func (r *PurchaseRepo) GetByID(ctx context.Context, purchaseID uuid.UUID) (models.Purchase, error) {
	rows, _ := r.DB.Query(ctx, getPurchaseByID, purchaseID)
	purchase, err := pgx.CollectOneRow(rows, rowToPurchase)

	switch {
	case err == nil:
		return purchase, nil
	case errors.Is(err, pgx.ErrNoRows):
		return purchase, apperrors.ErrPurchaseNotFound
	default:
		return purchase, dbError(err)
	}
}

const hasCompletedPurchase = `-- name: HasCompletedPurchase
SELECT EXISTS (
	SELECT 1 FROM purchases
	WHERE account_id = $1 AND status = 'COMPLETED' AND id <> $2
)
`

func (r *PurchaseRepo) HasCompleted(ctx context.Context, accountID uuid.UUID, exceptID uuid.UUID) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, hasCompletedPurchase, accountID, exceptID).Scan(&exists)
	if err != nil {
		return false, dbError(err)
	}

	return exists, nil
}

const listPurchasesByAccount = `-- name: ListPurchasesByAccount
SELECT ` + purchaseColumns + ` FROM purchases
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

func (r *PurchaseRepo) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]models.Purchase, error) {
	rows, _ := r.DB.Query(ctx, listPurchasesByAccount, accountID, limit, offset)
	purchases, err := pgx.CollectRows(rows, rowToPurchase)
	if err != nil {
		return nil, dbError(err)
	}

	return purchases, nil
}

const purchaseStats = `-- name: PurchaseStats
SELECT
	count(*) AS total,
	count(*) FILTER (WHERE status = 'COMPLETED') AS completed,
	COALESCE(sum(amount) FILTER (WHERE status = 'COMPLETED'), 0) AS total_amount
FROM purchases
WHERE account_id = $1
`

func (r *PurchaseRepo) Stats(ctx context.Context, accountID uuid.UUID) (models.PurchaseStats, error) {
	var s models.PurchaseStats
	err := r.DB.QueryRow(ctx, purchaseStats, accountID).Scan(&s.Total, &s.Completed, &s.TotalAmount)
	if err != nil {
		return s, dbError(err)
	}

	return s, nil
}

func rowToPurchase(row pgx.CollectableRow) (models.Purchase, error) {
	var p models.Purchase
	err := row.Scan(&p.ID, &p.CreatedAt, &p.AccountID, &p.Amount, &p.Description, &p.ProductID, &p.Status)
	return p, err
}
