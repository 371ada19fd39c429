package account

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/repository"
	"github.com/nkiryanov/refermart/internal/service/auth"
)

// Service owns accounts and their credit balances.
// Balances only ever change through IncrementCredits.
type Service struct {
	hasher      auth.PasswordHasher
	accountRepo repository.AccountRepo
}

func NewService(hasher auth.PasswordHasher, accountRepo repository.AccountRepo) *Service {
	if hasher == nil {
		hasher = auth.BcryptHasher{}
	}

	return &Service{
		hasher:      hasher,
		accountRepo: accountRepo,
	}
}

func (s *Service) Register(ctx context.Context, email string, password string, firstName string, lastName string) (models.Account, error) {
	var account models.Account

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return account, fmt.Errorf("can't use this as password, Err: %w", err)
	}

	account, err = s.accountRepo.CreateAccount(ctx, models.Account{
		Email:          strings.ToLower(strings.TrimSpace(email)),
		HashedPassword: hash,
		FirstName:      firstName,
		LastName:       lastName,
	})
	if err != nil {
		return account, err
	}

	return account, nil
}

func (s *Service) GetByID(ctx context.Context, accountID uuid.UUID) (models.Account, error) {
	return s.accountRepo.GetByID(ctx, accountID)
}

// IncrementCredits atomically adds a positive amount of credits
// and returns the new balance
func (s *Service) IncrementCredits(ctx context.Context, accountID uuid.UUID, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, apperrors.ErrInvalidAmount
	}

	return s.accountRepo.AddCredits(ctx, accountID, amount)
}

func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return 0, err
	}

	return account.Credits, nil
}
