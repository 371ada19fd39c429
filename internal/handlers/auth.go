package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/handlers/render"
	"github.com/nkiryanov/refermart/internal/handlers/userctx"
	"github.com/nkiryanov/refermart/internal/logger"
)

func handleRegister(auth authService, accounts accountService, referrals referralService, l logger.Logger) http.Handler {
	type request struct {
		Email        string `json:"email" validate:"required,email"`
		Password     string `json:"password" validate:"required,min=8"`
		FirstName    string `json:"first_name" validate:"required,max=50"`
		LastName     string `json:"last_name" validate:"required,max=50"`
		ReferralCode string `json:"referral_code" validate:"omitempty,referralcode"`
	}

	type response struct {
		ID              uuid.UUID `json:"id"`
		Email           string    `json:"email"`
		FirstName       string    `json:"first_name"`
		LastName        string    `json:"last_name"`
		ReferralApplied bool      `json:"referral_applied"`
		ReferralWarning string    `json:"referral_warning,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		account, err := accounts.Register(r.Context(), data.Email, data.Password, data.FirstName, data.LastName)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAccountAlreadyExists):
				render.ServiceError(w, "Account already exists", http.StatusConflict)
			default:
				l.Error("Failed to register account", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		res := response{
			ID:        account.ID,
			Email:     account.Email,
			FirstName: account.FirstName,
			LastName:  account.LastName,
		}

		// A bad referral code must never block registration itself,
		// failures surface as a warning next to the created account
		if data.ReferralCode != "" {
			_, err := referrals.Apply(r.Context(), data.ReferralCode, account.ID)
			switch {
			case err == nil:
				res.ReferralApplied = true
			case errors.Is(err, apperrors.ErrInvalidCode):
				res.ReferralWarning = "Referral code is invalid"
			case errors.Is(err, apperrors.ErrSelfReferral):
				res.ReferralWarning = "You can't refer yourself"
			case errors.Is(err, apperrors.ErrAlreadyReferred):
				res.ReferralWarning = "Account is already referred"
			default:
				l.Warn("Failed to apply referral code at registration",
					"account_id", account.ID, "error", err)
				res.ReferralWarning = "Referral code could not be applied"
			}
		}

		pair, err := auth.GeneratePair(r.Context(), account)
		if err != nil {
			l.Error("Failed to issue tokens for new account", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		auth.SetTokens(w, pair)
		render.JSONWithStatus(w, res, http.StatusCreated)
	})
}

func handleLogin(auth authService, l logger.Logger) http.Handler {
	type request struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		pair, err := auth.Login(r.Context(), data.Email, data.Password)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrAccountNotFound):
				render.ServiceError(w, "Invalid email or password", http.StatusUnauthorized)
			default:
				l.Error("Failed to login", "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		auth.SetTokens(w, pair)
		render.JSON(w, response{Message: "Logged in successfully"})
	})
}

func handleTokenRefresh(auth authService, l logger.Logger) http.Handler {
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		refresh, err := auth.ReadRefresh(r)
		if err != nil {
			render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			return
		}

		pair, err := auth.Refresh(r.Context(), refresh)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrRefreshTokenExpired):
				render.ServiceError(w, "Refresh token expired", http.StatusUnauthorized)
			case errors.Is(err, apperrors.ErrRefreshTokenIsUsed):
				render.ServiceError(w, "Refresh token is already used", http.StatusUnauthorized)
			default:
				l.Warn("Failed to refresh tokens", "error", err)
				render.ServiceError(w, "Refresh token not found", http.StatusUnauthorized)
			}
			return
		}

		auth.SetTokens(w, pair)
		render.JSON(w, response{Message: "Tokens refreshed successfully"})
	})
}

func handleMe() http.Handler {
	type response struct {
		ID           uuid.UUID  `json:"id"`
		Email        string     `json:"email"`
		FirstName    string     `json:"first_name"`
		LastName     string     `json:"last_name"`
		ReferralCode *string    `json:"referral_code,omitempty"`
		ReferredBy   *uuid.UUID `json:"referred_by,omitempty"`
		Credits      int64      `json:"credits"`
		CreatedAt    time.Time  `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			ID:           account.ID,
			Email:        account.Email,
			FirstName:    account.FirstName,
			LastName:     account.LastName,
			ReferralCode: account.ReferralCode,
			ReferredBy:   account.ReferredBy,
			Credits:      account.Credits,
			CreatedAt:    account.CreatedAt,
		})
	})
}

func handleBalance(accounts accountService, l logger.Logger) http.Handler {
	type response struct {
		Credits int64 `json:"credits"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		balance, err := accounts.GetBalance(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to get balance", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{Credits: balance})
	})
}
