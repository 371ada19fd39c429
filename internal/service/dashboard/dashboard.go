package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/repository"
)

const (
	recentLimit = 10

	// Referrals examined by the integrity check, newest first
	integrityScanLimit = 1000
)

// Read-only projections over accounts, referrals and purchases.
// No state changes happen here.
type Service struct {
	storage repository.Storage

	// Public origin used to build shareable referral links
	baseURL string
}

func NewService(storage repository.Storage, baseURL string) *Service {
	return &Service{
		storage: storage,
		baseURL: baseURL,
	}
}

type RecentReferral struct {
	ID            uuid.UUID
	ReferredName  string
	Status        string
	CreditsEarned int64
	CreatedAt     time.Time
}

type Stats struct {
	ReferralCode    *string
	ReferralLink    string
	Referrals       models.ReferralStats
	Credits         int64
	RecentReferrals []RecentReferral
	RecentPurchases []models.Purchase
}

// Stats builds the full dashboard for the account
func (s *Service) Stats(ctx context.Context, accountID uuid.UUID) (Stats, error) {
	var stats Stats

	account, err := s.storage.Account().GetByID(ctx, accountID)
	if err != nil {
		return stats, err
	}

	referralStats, err := s.storage.Referral().Stats(ctx, accountID)
	if err != nil {
		return stats, err
	}

	referrals, err := s.storage.Referral().ListByReferrer(ctx, accountID, recentLimit, 0)
	if err != nil {
		return stats, err
	}

	recent := make([]RecentReferral, 0, len(referrals))
	for _, r := range referrals {
		name := "Unknown"
		if referred, err := s.storage.Account().GetByID(ctx, r.ReferredID); err == nil {
			name = referred.FullName()
		}

		recent = append(recent, RecentReferral{
			ID:            r.ID,
			ReferredName:  name,
			Status:        r.Status,
			CreditsEarned: r.CreditsEarned,
			CreatedAt:     r.CreatedAt,
		})
	}

	purchases, err := s.storage.Purchase().ListByAccount(ctx, accountID, recentLimit, 0)
	if err != nil {
		return stats, err
	}

	stats = Stats{
		ReferralCode:    account.ReferralCode,
		Referrals:       referralStats,
		Credits:         account.Credits,
		RecentReferrals: recent,
		RecentPurchases: purchases,
	}
	if account.ReferralCode != nil {
		stats.ReferralLink = fmt.Sprintf("%s/register?ref=%s", s.baseURL, *account.ReferralCode)
	}

	return stats, nil
}

type Summary struct {
	Credits   int64
	Referrals models.ReferralStats
	Purchases models.PurchaseStats
}

// Summary is the light dashboard variant
func (s *Service) Summary(ctx context.Context, accountID uuid.UUID) (Summary, error) {
	var summary Summary

	account, err := s.storage.Account().GetByID(ctx, accountID)
	if err != nil {
		return summary, err
	}

	referralStats, err := s.storage.Referral().Stats(ctx, accountID)
	if err != nil {
		return summary, err
	}

	purchaseStats, err := s.storage.Purchase().Stats(ctx, accountID)
	if err != nil {
		return summary, err
	}

	return Summary{
		Credits:   account.Credits,
		Referrals: referralStats,
		Purchases: purchaseStats,
	}, nil
}

type IntegrityReport struct {
	Valid           bool
	CurrentCredits  int64
	ExpectedCredits int64
	Issues          []string
	Referrals       models.ReferralStats
	Purchases       models.PurchaseStats
}

// VerifyIntegrity cross-checks the account's balance against its referral
// history: every confirmed referral must have a completed purchase behind it,
// no account may appear as referred twice and the credits must add up.
// Read-only, reports findings and never repairs anything
func (s *Service) VerifyIntegrity(ctx context.Context, accountID uuid.UUID) (IntegrityReport, error) {
	var report IntegrityReport

	account, err := s.storage.Account().GetByID(ctx, accountID)
	if err != nil {
		return report, err
	}

	referralStats, err := s.storage.Referral().Stats(ctx, accountID)
	if err != nil {
		return report, err
	}

	purchaseStats, err := s.storage.Purchase().Stats(ctx, accountID)
	if err != nil {
		return report, err
	}

	referrals, err := s.storage.Referral().ListByReferrer(ctx, accountID, integrityScanLimit, 0)
	if err != nil {
		return report, err
	}

	issues := make([]string, 0)
	var expected int64
	referred := make(map[uuid.UUID]bool, len(referrals))
	for _, r := range referrals {
		if referred[r.ReferredID] {
			issues = append(issues, fmt.Sprintf("account %s appears as referred more than once", r.ReferredID))
		}
		referred[r.ReferredID] = true

		if r.Status != models.ReferralStatusConfirmed {
			continue
		}
		expected += r.CreditsEarned

		completed, err := s.storage.Purchase().HasCompleted(ctx, r.ReferredID, uuid.Nil)
		if err != nil {
			return report, err
		}
		if !completed {
			issues = append(issues, fmt.Sprintf("confirmed referral %s has no completed purchase", r.ID))
		}
	}

	// The signup bonus of the account's own referral counts toward the balance
	own, err := s.storage.Referral().GetByReferredID(ctx, accountID)
	switch {
	case err == nil:
		if own.Status == models.ReferralStatusConfirmed {
			expected += own.CreditsEarned
		}
	case errors.Is(err, apperrors.ErrReferralNotFound):
		// Not referred, nothing to add
	default:
		return report, err
	}

	if account.Credits != expected {
		issues = append(issues, fmt.Sprintf("credits are %d but referral history accounts for %d", account.Credits, expected))
	}

	return IntegrityReport{
		Valid:           len(issues) == 0,
		CurrentCredits:  account.Credits,
		ExpectedCredits: expected,
		Issues:          issues,
		Referrals:       referralStats,
		Purchases:       purchaseStats,
	}, nil
}

type CreditEvent struct {
	ReferralID uuid.UUID
	Amount     int64
	Reason     string
	EarnedAt   time.Time
}

// CreditHistory lists the credit events of the account:
// rewards for referrals it made and the bonus for being referred
func (s *Service) CreditHistory(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]CreditEvent, error) {
	referrals, err := s.storage.Referral().ListByReferrer(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}

	events := make([]CreditEvent, 0, len(referrals)+1)
	for _, r := range referrals {
		if r.Status != models.ReferralStatusConfirmed || r.ConfirmedAt == nil {
			continue
		}

		events = append(events, CreditEvent{
			ReferralID: r.ID,
			Amount:     r.CreditsEarned,
			Reason:     "referral converted",
			EarnedAt:   *r.ConfirmedAt,
		})
	}

	// The account's own referral, where it is the referred side
	own, err := s.storage.Referral().GetByReferredID(ctx, accountID)
	switch {
	case err == nil:
		if own.Status == models.ReferralStatusConfirmed && own.ConfirmedAt != nil {
			events = append(events, CreditEvent{
				ReferralID: own.ID,
				Amount:     own.CreditsEarned,
				Reason:     "referred signup converted",
				EarnedAt:   *own.ConfirmedAt,
			})
		}
	case errors.Is(err, apperrors.ErrReferralNotFound):
		// Not referred, nothing to add
	default:
		return nil, err
	}

	return events, nil
}
