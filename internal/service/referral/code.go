package referral

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	// Generated codes are always codeLen long, within the 6..10 store constraint
	codeLen = 8

	// At most that many letters are borrowed from the name hint
	codePrefixMaxLen = 4
)

// GenerateCode assigns a referral code to the account or returns the existing one.
// Idempotent: a code is assigned exactly once and never changes afterwards.
// A name hint, when given, becomes a human friendly prefix of the code.
func (s *Service) GenerateCode(ctx context.Context, accountID uuid.UUID, nameHint string) (string, error) {
	account, err := s.storage.Account().GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if account.ReferralCode != nil {
		return *account.ReferralCode, nil
	}

	for attempt := 0; attempt < s.codeAttempts; attempt++ {
		candidate, err := synthesizeCode(nameHint)
		if err != nil {
			return "", err
		}

		account, err := s.storage.Account().SetReferralCode(ctx, accountID, candidate)
		switch {
		case err == nil:
			// The store kept an existing code if one got assigned concurrently
			return *account.ReferralCode, nil
		case errors.Is(err, apperrors.ErrReferralCodeTaken):
			continue
		default:
			return "", err
		}
	}

	return "", apperrors.ErrCodeGenerationExhausted
}

// ResolveCode returns the account owning the code
func (s *Service) ResolveCode(ctx context.Context, code string) (models.Account, error) {
	account, err := s.storage.Account().GetByReferralCode(ctx, strings.ToUpper(code))

	switch {
	case err == nil:
		return account, nil
	case errors.Is(err, apperrors.ErrAccountNotFound):
		return account, apperrors.ErrInvalidCode
	default:
		return account, err
	}
}

// synthesizeCode builds a candidate: uppercase letters taken from the
// name hint followed by random characters up to codeLen
func synthesizeCode(nameHint string) (string, error) {
	var b strings.Builder

	for _, r := range strings.ToUpper(nameHint) {
		if b.Len() >= codePrefixMaxLen {
			break
		}
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	random := make([]byte, codeLen-b.Len())
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("error while generating referral code. Err: %w", err)
	}
	for _, rb := range random {
		b.WriteByte(codeCharset[int(rb)%len(codeCharset)])
	}

	return b.String(), nil
}
