package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/handlers/render"
	"github.com/nkiryanov/refermart/internal/handlers/userctx"
	"github.com/nkiryanov/refermart/internal/logger"
	"github.com/nkiryanov/refermart/internal/models"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// pagination reads limit/offset query params with sane bounds
func pagination(r *http.Request) (limit int, offset int) {
	limit = defaultPageLimit

	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}

	return limit, offset
}

type purchaseResponse struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	ProductID   *string         `json:"product_id,omitempty"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toPurchaseResponse(p models.Purchase) purchaseResponse {
	return purchaseResponse{
		ID:          p.ID,
		Amount:      p.Amount,
		Description: p.Description,
		ProductID:   p.ProductID,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
	}
}

func handleCreatePurchase(purchases purchaseService, l logger.Logger) http.Handler {
	type request struct {
		Amount      decimal.Decimal `json:"amount" validate:"required"`
		Description string          `json:"description" validate:"required,max=500"`
		ProductID   *string         `json:"product_id"`
	}

	type referralReward struct {
		CreditsEarned int64  `json:"credits_earned"`
		Message       string `json:"message"`
	}

	type response struct {
		Purchase       purchaseResponse `json:"purchase"`
		ReferralReward *referralReward  `json:"referral_reward,omitempty"`
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

		if !data.Amount.IsPositive() {
			render.ServiceError(w, "Amount must be greater than zero", http.StatusUnprocessableEntity)
			return
		}

		created, conversion, err := purchases.Create(r.Context(), account.ID, data.Amount, data.Description, data.ProductID)
		if err != nil {
			l.Error("Failed to create purchase", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := response{Purchase: toPurchaseResponse(created)}
		if conversion != nil && conversion.Converted {
			res.ReferralReward = &referralReward{
				CreditsEarned: conversion.CreditsEarned,
				Message:       "Congratulations! You and your referrer each earned credits!",
			}
		}

		render.JSONWithStatus(w, res, http.StatusCreated)
	})
}

func handleGetPurchase(purchases purchaseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		purchaseID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			render.ServiceError(w, "Invalid purchase id", http.StatusBadRequest)
			return
		}

		found, err := purchases.GetByID(r.Context(), purchaseID)

		switch {
		case err == nil && found.AccountID != account.ID:
			// Others purchases stay invisible
			render.ServiceError(w, "Purchase not found", http.StatusNotFound)
		case err == nil:
			render.JSON(w, toPurchaseResponse(found))
		case errors.Is(err, apperrors.ErrPurchaseNotFound):
			render.ServiceError(w, "Purchase not found", http.StatusNotFound)
		default:
			l.Error("Failed to get purchase", "purchase_id", purchaseID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleListPurchases(purchases purchaseService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		limit, offset := pagination(r)
		listed, err := purchases.List(r.Context(), account.ID, limit, offset)
		if err != nil {
			l.Error("Failed to list purchases", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := make([]purchaseResponse, 0, len(listed))
		for _, p := range listed {
			res = append(res, toPurchaseResponse(p))
		}

		render.JSON(w, res)
	})
}

func handlePurchaseStats(purchases purchaseService, l logger.Logger) http.Handler {
	type response struct {
		Total       int64           `json:"total"`
		Completed   int64           `json:"completed"`
		TotalAmount decimal.Decimal `json:"total_amount"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		stats, err := purchases.Stats(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to get purchase stats", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Total:       stats.Total,
			Completed:   stats.Completed,
			TotalAmount: stats.TotalAmount,
		})
	})
}
