package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/refermart/internal/handlers/render"
	"github.com/nkiryanov/refermart/internal/handlers/userctx"
	"github.com/nkiryanov/refermart/internal/models"
)

type authService interface {
	Auth(ctx context.Context, r *http.Request) (models.Account, error)
}

func AuthMiddleware(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := as.Auth(r.Context(), r)
			if err != nil {
				render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := userctx.New(r.Context(), account)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
