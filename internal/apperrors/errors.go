package apperrors

import (
	"errors"
)

var (
	ErrAccountAlreadyExists = errors.New("account already exists")
	ErrAccountNotFound      = errors.New("account not found")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrRefreshTokenIsUsed   = errors.New("refresh token is used")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")

	ErrInvalidCode             = errors.New("referral code is invalid")
	ErrSelfReferral            = errors.New("account can't refer itself")
	ErrAlreadyReferred         = errors.New("account is already referred")
	ErrReferralNotFound        = errors.New("referral not found")
	ErrReferralNotPending      = errors.New("referral is not pending")
	ErrReferralCodeTaken       = errors.New("referral code already taken")
	ErrCodeGenerationExhausted = errors.New("referral code generation attempts exhausted")

	ErrInvalidAmount = errors.New("credit amount must be positive")

	ErrPurchaseNotFound = errors.New("purchase not found")

	// Transient store failure, the caller may retry
	ErrStoreUnavailable = errors.New("store unavailable")
)
