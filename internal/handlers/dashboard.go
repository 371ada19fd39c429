package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/refermart/internal/handlers/render"
	"github.com/nkiryanov/refermart/internal/handlers/userctx"
	"github.com/nkiryanov/refermart/internal/logger"
)

func handleDashboardStats(dashboards dashboardService, l logger.Logger) http.Handler {
	type recentReferral struct {
		ID            uuid.UUID `json:"id"`
		ReferredName  string    `json:"referred_name"`
		Status        string    `json:"status"`
		CreditsEarned int64     `json:"credits_earned"`
		CreatedAt     time.Time `json:"created_at"`
	}

	type response struct {
		ReferralCode    *string            `json:"referral_code"`
		ReferralLink    string             `json:"referral_link,omitempty"`
		Credits         int64              `json:"credits"`
		TotalReferred   int64              `json:"total_referred"`
		Converted       int64              `json:"converted"`
		CreditsEarned   int64              `json:"credits_earned"`
		RecentReferrals []recentReferral   `json:"recent_referrals"`
		RecentPurchases []purchaseResponse `json:"recent_purchases"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		stats, err := dashboards.Stats(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to get dashboard stats", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := response{
			ReferralCode:    stats.ReferralCode,
			ReferralLink:    stats.ReferralLink,
			Credits:         stats.Credits,
			TotalReferred:   stats.Referrals.Total,
			Converted:       stats.Referrals.Confirmed,
			CreditsEarned:   stats.Referrals.CreditsEarned,
			RecentReferrals: make([]recentReferral, 0, len(stats.RecentReferrals)),
			RecentPurchases: make([]purchaseResponse, 0, len(stats.RecentPurchases)),
		}
		for _, rr := range stats.RecentReferrals {
			res.RecentReferrals = append(res.RecentReferrals, recentReferral{
				ID:            rr.ID,
				ReferredName:  rr.ReferredName,
				Status:        rr.Status,
				CreditsEarned: rr.CreditsEarned,
				CreatedAt:     rr.CreatedAt,
			})
		}
		for _, p := range stats.RecentPurchases {
			res.RecentPurchases = append(res.RecentPurchases, toPurchaseResponse(p))
		}

		render.JSON(w, res)
	})
}

func handleDashboardSummary(dashboards dashboardService, l logger.Logger) http.Handler {
	type response struct {
		Credits            int64 `json:"credits"`
		TotalReferred      int64 `json:"total_referred"`
		PendingReferrals   int64 `json:"pending_referrals"`
		ConfirmedReferrals int64 `json:"confirmed_referrals"`
		CreditsEarned      int64 `json:"credits_earned"`
		TotalPurchases     int64 `json:"total_purchases"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		summary, err := dashboards.Summary(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to get dashboard summary", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Credits:            summary.Credits,
			TotalReferred:      summary.Referrals.Total,
			PendingReferrals:   summary.Referrals.Pending,
			ConfirmedReferrals: summary.Referrals.Confirmed,
			CreditsEarned:      summary.Referrals.CreditsEarned,
			TotalPurchases:     summary.Purchases.Total,
		})
	})
}

func handleVerifyIntegrity(dashboards dashboardService, l logger.Logger) http.Handler {
	type response struct {
		Valid              bool     `json:"valid"`
		CurrentCredits     int64    `json:"current_credits"`
		ExpectedCredits    int64    `json:"expected_credits"`
		Issues             []string `json:"issues"`
		TotalReferrals     int64    `json:"total_referrals"`
		ConfirmedReferrals int64    `json:"confirmed_referrals"`
		TotalPurchases     int64    `json:"total_purchases"`
		CompletedPurchases int64    `json:"completed_purchases"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		report, err := dashboards.VerifyIntegrity(r.Context(), account.ID)
		if err != nil {
			l.Error("Failed to verify integrity", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, response{
			Valid:              report.Valid,
			CurrentCredits:     report.CurrentCredits,
			ExpectedCredits:    report.ExpectedCredits,
			Issues:             report.Issues,
			TotalReferrals:     report.Referrals.Total,
			ConfirmedReferrals: report.Referrals.Confirmed,
			TotalPurchases:     report.Purchases.Total,
			CompletedPurchases: report.Purchases.Completed,
		})
	})
}

func handleCreditHistory(dashboards dashboardService, l logger.Logger) http.Handler {
	type creditEvent struct {
		ReferralID uuid.UUID `json:"referral_id"`
		Amount     int64     `json:"amount"`
		Reason     string    `json:"reason"`
		EarnedAt   time.Time `json:"earned_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		account, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		limit, offset := pagination(r)
		events, err := dashboards.CreditHistory(r.Context(), account.ID, limit, offset)
		if err != nil {
			l.Error("Failed to get credit history", "account_id", account.ID, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		res := make([]creditEvent, 0, len(events))
		for _, e := range events {
			res = append(res, creditEvent{
				ReferralID: e.ReferralID,
				Amount:     e.Amount,
				Reason:     e.Reason,
				EarnedAt:   e.EarnedAt,
			})
		}

		render.JSON(w, res)
	})
}
