package purchase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/logger"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/repository"
)

// Referral state machine, the confirming side of it
type ReferralConfirmer interface {
	Confirm(ctx context.Context, referralID uuid.UUID) (models.Referral, error)
}

// Conversion is the outcome of a first-purchase notification.
// Converted is false when there was nothing to convert, that is not an error.
type Conversion struct {
	Converted     bool
	ReferralID    uuid.UUID
	CreditsEarned int64
}

// Service records purchases and ties the first completed purchase of an
// account to its pending referral
type Service struct {
	purchaseRepo repository.PurchaseRepo
	referralRepo repository.ReferralRepo
	referrals    ReferralConfirmer
	logger       logger.Logger
}

func NewService(purchaseRepo repository.PurchaseRepo, referralRepo repository.ReferralRepo, referrals ReferralConfirmer, l logger.Logger) (*Service, error) {
	if purchaseRepo == nil || referralRepo == nil || referrals == nil {
		return nil, errors.New("repos and referral confirmer must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &Service{
		purchaseRepo: purchaseRepo,
		referralRepo: referralRepo,
		referrals:    referrals,
		logger:       l,
	}, nil
}

// Create records a completed purchase. When it is the account's first one the
// pending referral (if any) is converted. A failed conversion is logged and
// never fails or rolls back the purchase itself.
func (s *Service) Create(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string, productID *string) (models.Purchase, *Conversion, error) {
	var purchase models.Purchase

	hadCompleted, err := s.purchaseRepo.HasCompleted(ctx, accountID, uuid.Nil)
	if err != nil {
		return purchase, nil, err
	}

	purchase, err = s.purchaseRepo.CreatePurchase(ctx, models.Purchase{
		AccountID:   accountID,
		Amount:      amount,
		Description: description,
		ProductID:   productID,
		Status:      models.PurchaseStatusCompleted,
	})
	if err != nil {
		return purchase, nil, err
	}

	if hadCompleted {
		return purchase, nil, nil
	}

	conversion, err := s.NotifyFirstPurchase(ctx, accountID)
	if err != nil {
		// The purchase is already stored and must stay, a retryable conversion
		// failure is picked up by the next notification
		s.logger.Error("referral conversion failed, purchase kept",
			"account_id", accountID,
			"purchase_id", purchase.ID,
			"error", err,
		)
		return purchase, nil, nil
	}

	return purchase, &conversion, nil
}

// NotifyFirstPurchase converts the account's pending referral if one exists.
// No pending referral is a regular outcome, not an error. A referral that
// lost the PENDING state to a concurrent confirmation is logged and skipped.
func (s *Service) NotifyFirstPurchase(ctx context.Context, accountID uuid.UUID) (Conversion, error) {
	referral, err := s.referralRepo.GetPendingByReferredID(ctx, accountID)

	switch {
	case errors.Is(err, apperrors.ErrReferralNotFound):
		return Conversion{Converted: false}, nil
	case err != nil:
		return Conversion{}, err
	}

	confirmed, err := s.referrals.Confirm(ctx, referral.ID)

	switch {
	case err == nil:
		return Conversion{
			Converted:     true,
			ReferralID:    confirmed.ID,
			CreditsEarned: confirmed.CreditsEarned,
		}, nil
	case errors.Is(err, apperrors.ErrReferralNotPending) || errors.Is(err, apperrors.ErrReferralNotFound):
		// Lost the race to another conversion path, nothing to award here
		s.logger.Warn("referral already converted elsewhere, skipping",
			"referral_id", referral.ID,
			"account_id", accountID,
		)
		return Conversion{Converted: false}, nil
	default:
		return Conversion{}, err
	}
}

func (s *Service) GetByID(ctx context.Context, purchaseID uuid.UUID) (models.Purchase, error) {
	return s.purchaseRepo.GetByID(ctx, purchaseID)
}

func (s *Service) List(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]models.Purchase, error) {
	return s.purchaseRepo.ListByAccount(ctx, accountID, limit, offset)
}

func (s *Service) Stats(ctx context.Context, accountID uuid.UUID) (models.PurchaseStats, error) {
	return s.purchaseRepo.Stats(ctx, accountID)
}
