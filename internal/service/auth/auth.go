package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/repository"
	"github.com/nkiryanov/refermart/internal/service/auth/tokenmanager"
)

const (
	defaultAccessHeaderName  = "Authorization"
	defaultAccessAuthScheme  = "Bearer"
	defaultRefreshCookieName = "refresh-token"
)

type Config struct {
	// Hasher to use during registration or login
	// BcryptHasher is used if not set
	Hasher PasswordHasher

	// Header and scheme the access token travels in, cookie the refresh token lives in
	// Defaults are used if not set
	AccessHeaderName  string
	AccessAuthScheme  string
	RefreshCookieName string
}

// AuthService authenticates accounts and issues token pairs.
// Refresh tokens are one-time and store backed: marking one used is the
// denylist, no in-process revocation state exists.
type AuthService struct {
	token  *tokenmanager.TokenManager
	hasher PasswordHasher

	accessHeaderName  string
	accessAuthScheme  string
	refreshCookieName string

	// Repository to access long term data
	accountRepo repository.AccountRepo
}

func NewService(cfg Config, token *tokenmanager.TokenManager, accountRepo repository.AccountRepo) (*AuthService, error) {
	if cfg.Hasher == nil {
		cfg.Hasher = BcryptHasher{}
	}
	if cfg.AccessHeaderName == "" {
		cfg.AccessHeaderName = defaultAccessHeaderName
	}
	if cfg.AccessAuthScheme == "" {
		cfg.AccessAuthScheme = defaultAccessAuthScheme
	}
	if cfg.RefreshCookieName == "" {
		cfg.RefreshCookieName = defaultRefreshCookieName
	}

	return &AuthService{
		token:             token,
		hasher:            cfg.Hasher,
		accessHeaderName:  cfg.AccessHeaderName,
		accessAuthScheme:  cfg.AccessAuthScheme,
		refreshCookieName: cfg.RefreshCookieName,
		accountRepo:       accountRepo,
	}, nil
}

// Login with email and password, get fresh token pair
func (s *AuthService) Login(ctx context.Context, email string, password string) (models.TokenPair, error) {
	account, err := s.accountRepo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		// Compare against a throwaway hash anyway to keep timing flat
		_ = s.hasher.Compare("$2a$10$0000000000000000000000000000000000000000000000000000.", password)
		return models.TokenPair{}, apperrors.ErrAccountNotFound
	}

	err = s.hasher.Compare(account.HashedPassword, password)
	if err != nil {
		return models.TokenPair{}, apperrors.ErrAccountNotFound
	}

	pair, err := s.token.GeneratePair(ctx, account)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return pair, nil
}

// GeneratePair issues tokens for an account authenticated elsewhere (registration)
func (s *AuthService) GeneratePair(ctx context.Context, account models.Account) (models.TokenPair, error) {
	return s.token.GeneratePair(ctx, account)
}

// Refresh tokens with a valid one-time refresh token
func (s *AuthService) Refresh(ctx context.Context, refresh string) (models.TokenPair, error) {
	token, err := s.token.UseRefreshToken(ctx, refresh)
	if err != nil {
		return models.TokenPair{}, err
	}

	account, err := s.accountRepo.GetByID(ctx, token.AccountID)
	if err != nil {
		return models.TokenPair{}, err
	}

	pair, err := s.token.GeneratePair(ctx, account)
	if err != nil {
		return models.TokenPair{}, fmt.Errorf("token could not be generated, sorry. %w", err)
	}

	return pair, nil
}

// Auth resolves the account from request credentials
func (s *AuthService) Auth(ctx context.Context, r *http.Request) (models.Account, error) {
	var account models.Account

	header := r.Header.Get(s.accessHeaderName)
	scheme, access, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, s.accessAuthScheme) {
		return account, errors.New("no access token in request")
	}

	accountID, err := s.token.ParseAccess(ctx, strings.TrimSpace(access))
	if err != nil {
		return account, err
	}

	return s.accountRepo.GetByID(ctx, accountID)
}

// SetTokens writes the pair to response: access in the auth header,
// refresh in an http-only cookie
func (s *AuthService) SetTokens(w http.ResponseWriter, pair models.TokenPair) {
	w.Header().Set(s.accessHeaderName, s.accessAuthScheme+" "+pair.Access.Value)

	http.SetCookie(w, &http.Cookie{
		Name:     s.refreshCookieName,
		Value:    pair.Refresh.Value,
		Path:     "/",
		Expires:  pair.Refresh.ExpiresAt,
		MaxAge:   int(time.Until(pair.Refresh.ExpiresAt).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

// ReadRefresh extracts the refresh token from the request cookie
func (s *AuthService) ReadRefresh(r *http.Request) (string, error) {
	cookie, err := r.Cookie(s.refreshCookieName)
	if err != nil {
		return "", apperrors.ErrRefreshTokenNotFound
	}

	return cookie.Value, nil
}
