package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/logger"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/repository"
)

const (
	// Credits every side of the referral earns on conversion
	defaultRewardCredits = 2

	// How many candidate codes are tried before giving up on collisions
	defaultCodeAttempts = 10
)

// Account manager owning the credit balances
type CreditManager interface {
	// Atomic increment, amount must be positive
	IncrementCredits(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error)
}

type Config struct {
	// Reward for referrer and referred each, default is used when zero
	RewardCredits int64

	// Code generation retry bound, default is used when zero
	CodeAttempts int
}

// Service owns the referral lifecycle: code issuing, creation in PENDING
// and the exactly-once transitions to CONFIRMED or CANCELLED
type Service struct {
	reward       int64
	codeAttempts int

	storage  repository.Storage
	accounts CreditManager
	logger   logger.Logger
}

func NewService(cfg Config, storage repository.Storage, accounts CreditManager, l logger.Logger) (*Service, error) {
	if storage == nil || accounts == nil {
		return nil, errors.New("storage and account manager must not be nil")
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	if cfg.RewardCredits == 0 {
		cfg.RewardCredits = defaultRewardCredits
	}
	if cfg.RewardCredits < 0 {
		return nil, fmt.Errorf("reward must be positive, got %d", cfg.RewardCredits)
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = defaultCodeAttempts
	}

	return &Service{
		reward:       cfg.RewardCredits,
		codeAttempts: cfg.CodeAttempts,
		storage:      storage,
		accounts:     accounts,
		logger:       l,
	}, nil
}

// Apply creates a PENDING referral for the new account from someone else's code
// and marks the account as referred, both in one transaction.
// The one-referral-per-account rule rests on the store uniqueness constraint,
// not on a lookup, so concurrent applies can't slip through.
func (s *Service) Apply(ctx context.Context, code string, newAccountID uuid.UUID) (models.Referral, error) {
	var referral models.Referral

	referrer, err := s.ResolveCode(ctx, code)
	if err != nil {
		return referral, err
	}

	if referrer.ID == newAccountID {
		return referral, apperrors.ErrSelfReferral
	}

	err = s.storage.InTx(ctx, func(storage repository.Storage) error {
		referral, err = storage.Referral().CreateReferral(ctx, referrer.ID, newAccountID)
		if err != nil {
			return err
		}

		return storage.Account().SetReferredBy(ctx, newAccountID, referrer.ID)
	})
	if err != nil {
		return referral, err
	}

	s.logger.Info("referral created",
		"referral_id", referral.ID,
		"referrer_id", referral.ReferrerID,
		"referred_id", referral.ReferredID,
	)
	return referral, nil
}

// Confirm transitions the referral PENDING -> CONFIRMED and awards the reward
// to both sides. The transition itself is a single conditional update in the
// store: of two concurrent confirms exactly one succeeds, the other gets
// apperrors.ErrReferralNotPending and no credits move twice.
//
// The two credit increments are independent atomic operations. If one fails
// the referral stays CONFIRMED and is never re-processed; the miss is logged
// for a later reconciliation pass.
func (s *Service) Confirm(ctx context.Context, referralID uuid.UUID) (models.Referral, error) {
	referral, err := s.storage.Referral().Confirm(ctx, referralID, s.reward)
	if err != nil {
		return referral, err
	}

	for _, accountID := range []uuid.UUID{referral.ReferrerID, referral.ReferredID} {
		if _, err := s.accounts.IncrementCredits(ctx, accountID, s.reward); err != nil {
			s.logger.Error("credit award failed after confirmation, needs reconciliation",
				"referral_id", referral.ID,
				"account_id", accountID,
				"amount", s.reward,
				"error", err,
			)
		}
	}

	s.logger.Info("referral confirmed",
		"referral_id", referral.ID,
		"credits_earned", referral.CreditsEarned,
	)
	return referral, nil
}

// Cancel transitions the referral PENDING -> CANCELLED. No credits move.
// Not wired to any external event yet, the state machine supports it anyway.
func (s *Service) Cancel(ctx context.Context, referralID uuid.UUID, reason string) (models.Referral, error) {
	referral, err := s.storage.Referral().Cancel(ctx, referralID, reason)
	if err != nil {
		return referral, err
	}

	s.logger.Info("referral cancelled", "referral_id", referral.ID, "reason", reason)
	return referral, nil
}

// ListForReferrer returns referrals made with the account's code, newest first
func (s *Service) ListForReferrer(ctx context.Context, referrerID uuid.UUID, limit int, offset int) ([]models.Referral, error) {
	return s.storage.Referral().ListByReferrer(ctx, referrerID, limit, offset)
}

// Stats returns referral counts and earned credits for the referrer
func (s *Service) Stats(ctx context.Context, referrerID uuid.UUID) (models.ReferralStats, error) {
	return s.storage.Referral().Stats(ctx, referrerID)
}
