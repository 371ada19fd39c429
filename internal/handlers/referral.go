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
	"github.com/nkiryanov/refermart/internal/models"
)

type referralResponse struct {
	ID            uuid.UUID  `json:"id"`
	ReferrerID    uuid.UUID  `json:"referrer_id"`
	ReferredID    uuid.UUID  `json:"referred_id"`
	Status        string     `json:"status"`
	CreditsEarned int64      `json:"credits_earned"`
	CreatedAt     time.Time  `json:"created_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt   *time.Time `json:"cancelled_at,omitempty"`
}

func toReferralResponse(r models.Referral) referralResponse {
	return referralResponse{
		ID:            r.ID,
		ReferrerID:    r.ReferrerID,
		ReferredID:    r.ReferredID,
		Status:        r.Status,
		CreditsEarned: r.CreditsEarned,
		CreatedAt:     r.CreatedAt,
		ConfirmedAt:   r.ConfirmedAt,
		CancelledAt:   r.CancelledAt,
	}
}

func handleGenerateCode(referrals referralService, l logger.Logger) http.Handler {
	type response struct {
		ReferralCode string `json:"referral_code"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		code, err := referrals.GenerateCode(r.Context(), account.ID, account.FirstName)
		if err != nil {
			switch {
			case errors.Is(err, apperrors.ErrCodeGenerationExhausted):
				render.ServiceError(w, "Could not generate a unique code, try again", http.StatusServiceUnavailable)
			default:
				l.Error("Failed to generate referral code", "account_id", account.ID, "error", err)
				render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		render.JSON(w, response{ReferralCode: code})
	})
}

func handleResolveCode(referrals referralService) http.Handler {
	type response struct {
		Valid        bool   `json:"valid"`
		ReferrerName string `json:"referrer_name,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner, err := referrals.ResolveCode(r.Context(), r.PathValue("code"))
		if err != nil {
			// Resolution failures all look the same to not leak code existence details
			render.JSON(w, response{Valid: false})
			return
		}

		render.JSON(w, response{Valid: true, ReferrerName: owner.FullName()})
	})
}

func handleApplyCode(referrals referralService, l logger.Logger) http.Handler {
	type request struct {
		ReferralCode string `json:"referral_code" validate:"required,referralcode"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		referral, err := referrals.Apply(r.Context(), data.ReferralCode, account.ID)

		switch {
		case err == nil:
			render.JSONWithStatus(w, toReferralResponse(referral), http.StatusCreated)
		case errors.Is(err, apperrors.ErrInvalidCode):
			render.ServiceError(w, "Referral code is invalid", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrSelfReferral):
			render.ServiceError(w, "You can't refer yourself", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrAlreadyReferred):
			render.ServiceError(w, "Account is already referred", http.StatusConflict)
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			render.ServiceError(w, "Temporary unavailable, retry later", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to apply referral code", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

// Manual conversion of a pending referral. The same conditional update backs
// the purchase-triggered path, so racing the two still awards exactly once.
func handleConvertReferral(referrals referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		referralID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid referral id", http.StatusBadRequest)
			return
		}

		referral, err := referrals.Confirm(r.Context(), referralID)

		switch {
		case err == nil:
			render.JSON(w, toReferralResponse(referral))
		case errors.Is(err, apperrors.ErrReferralNotFound):
			render.ServiceError(w, "Referral not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrReferralNotPending):
			render.ServiceError(w, "Referral is not pending", http.StatusConflict)
		case errors.Is(err, apperrors.ErrStoreUnavailable):
			render.ServiceError(w, "Temporary unavailable, retry later", http.StatusServiceUnavailable)
		default:
			l.Error("Failed to convert referral", "referral_id", referralID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListReferrals(referrals referralService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		limit, offset := pagination(r)
		listed, err := referrals.ListForReferrer(r.Context(), account.ID, limit, offset)
		if err != nil {
			l.Error("Failed to list referrals", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := make([]referralResponse, 0, len(listed))
		for _, referral := range listed {
			res = append(res, toReferralResponse(referral))
		}

		render.JSON(w, res)
	})
}

func handleReferralStats(referrals referralService, l logger.Logger) http.Handler {
	type response struct {
		Total         int64 `json:"total"`
		Pending       int64 `json:"pending"`
		Confirmed     int64 `json:"confirmed"`
		Cancelled     int64 `json:"cancelled"`
		CreditsEarned int64 `json:"credits_earned"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		stats, err := referrals.Stats(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to get referral stats", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Total:         stats.Total,
			Pending:       stats.Pending,
			Confirmed:     stats.Confirmed,
			Cancelled:     stats.Cancelled,
			CreditsEarned: stats.CreditsEarned,
		})
	})
}
