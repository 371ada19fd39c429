package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nkiryanov/refermart/internal/handlers/middleware"
	"github.com/nkiryanov/refermart/internal/logger"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/service/dashboard"
	"github.com/nkiryanov/refermart/internal/service/purchase"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	accountService accountService,
	referralService referralService,
	purchaseService purchaseService,
	dashboardService dashboardService,
	logger logger.Logger,
) http.Handler {
	authMiddleware := middleware.AuthMiddleware(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	apiuser := http.NewServeMux()
	apiuser.Handle("POST /register", handleRegister(authService, accountService, referralService, logger))
	apiuser.Handle("POST /login", handleLogin(authService, logger))
	apiuser.Handle("POST /refresh", handleTokenRefresh(authService, logger))
	apiuser.Handle("GET /me", withAuth(handleMe()))
	apiuser.Handle("GET /balance", withAuth(handleBalance(accountService, logger)))

	apireferrals := http.NewServeMux()
	apireferrals.Handle("POST /code", withAuth(handleGenerateCode(referralService, logger)))
	apireferrals.Handle("GET /code/{code}", handleResolveCode(referralService))
	apireferrals.Handle("POST /apply", withAuth(handleApplyCode(referralService, logger)))
	apireferrals.Handle("POST /{id}/convert", withAuth(handleConvertReferral(referralService, logger)))
	apireferrals.Handle("GET /{$}", withAuth(handleListReferrals(referralService, logger)))
	apireferrals.Handle("GET /stats", withAuth(handleReferralStats(referralService, logger)))

	apipurchases := http.NewServeMux()
	apipurchases.Handle("POST /{$}", withAuth(handleCreatePurchase(purchaseService, logger)))
	apipurchases.Handle("GET /{$}", withAuth(handleListPurchases(purchaseService, logger)))
	apipurchases.Handle("GET /stats", withAuth(handlePurchaseStats(purchaseService, logger)))
	apipurchases.Handle("GET /{id}", withAuth(handleGetPurchase(purchaseService, logger)))

	apidashboard := http.NewServeMux()
	apidashboard.Handle("GET /stats", withAuth(handleDashboardStats(dashboardService, logger)))
	apidashboard.Handle("GET /summary", withAuth(handleDashboardSummary(dashboardService, logger)))
	apidashboard.Handle("GET /credits", withAuth(handleCreditHistory(dashboardService, logger)))
	apidashboard.Handle("GET /verify-integrity", withAuth(handleVerifyIntegrity(dashboardService, logger)))

	root := http.NewServeMux()
	root.Handle("/api/user/", http.StripPrefix("/api/user", apiuser))
	root.Handle("/api/referrals/", http.StripPrefix("/api/referrals", apireferrals))
	root.Handle("/api/purchases/", http.StripPrefix("/api/purchases", apipurchases))
	root.Handle("/api/dashboard/", http.StripPrefix("/api/dashboard", apidashboard))

	handler := chain(root,
		middleware.LoggerMiddleware(logger),
	)

	return handler
}

type authService interface {
	// Login with email and password
	// Has to return apperrors.ErrAccountNotFound if account not found or password mismatch
	Login(ctx context.Context, email string, password string) (models.TokenPair, error)

	// Refresh tokens using one-time refresh token
	// If token expired: has to return apperrors.ErrRefreshTokenExpired
	// If token not found or used: apperrors.ErrRefreshTokenNotFound / ErrRefreshTokenIsUsed
	Refresh(ctx context.Context, refresh string) (models.TokenPair, error)

	// Issue tokens for a just registered account
	GeneratePair(ctx context.Context, account models.Account) (models.TokenPair, error)

	// Set auth tokens (access, refresh) to response
	SetTokens(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request
	ReadRefresh(r *http.Request) (string, error)

	// Get request and return account if it authenticated or error
	Auth(ctx context.Context, r *http.Request) (models.Account, error)
}

type accountService interface {
	// Has to return apperrors.ErrAccountAlreadyExists if the email is taken
	Register(ctx context.Context, email string, password string, firstName string, lastName string) (models.Account, error)
	GetBalance(ctx context.Context, accountID uuid.UUID) (int64, error)
}

type referralService interface {
	GenerateCode(ctx context.Context, accountID uuid.UUID, nameHint string) (string, error)
	ResolveCode(ctx context.Context, code string) (models.Account, error)
	Apply(ctx context.Context, code string, newAccountID uuid.UUID) (models.Referral, error)
	Confirm(ctx context.Context, referralID uuid.UUID) (models.Referral, error)
	ListForReferrer(ctx context.Context, referrerID uuid.UUID, limit int, offset int) ([]models.Referral, error)
	Stats(ctx context.Context, referrerID uuid.UUID) (models.ReferralStats, error)
}

type purchaseService interface {
	Create(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description string, productID *string) (models.Purchase, *purchase.Conversion, error)
	GetByID(ctx context.Context, purchaseID uuid.UUID) (models.Purchase, error)
	List(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]models.Purchase, error)
	Stats(ctx context.Context, accountID uuid.UUID) (models.PurchaseStats, error)
}

type dashboardService interface {
	Stats(ctx context.Context, accountID uuid.UUID) (dashboard.Stats, error)
	Summary(ctx context.Context, accountID uuid.UUID) (dashboard.Summary, error)
	CreditHistory(ctx context.Context, accountID uuid.UUID, limit int, offset int) ([]dashboard.CreditEvent, error)
	VerifyIntegrity(ctx context.Context, accountID uuid.UUID) (dashboard.IntegrityReport, error)
}
