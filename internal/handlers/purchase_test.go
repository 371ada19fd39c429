package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/refermart/internal/testutil"
)

type purchaseCreated struct {
	Purchase struct {
		ID     uuid.UUID `json:"id"`
		Amount string    `json:"amount"`
		Status string    `json:"status"`
	} `json:"purchase"`
	ReferralReward *struct {
		CreditsEarned int64  `json:"credits_earned"`
		Message       string `json:"message"`
	} `json:"referral_reward"`
}

// Create purchase through the http api and return the parsed response
func createPurchase(t *testing.T, url string, authHeader string, amount string) purchaseCreated {
	t.Helper()

	resp := doAuth(t, "POST", url+"/api/purchases/", authHeader, `{"amount": `+amount+`, "description": "Test order"}`)
	body := readBody(t, resp)
	require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

	var res purchaseCreated
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	return res
}

func Test_PurchaseHandlers(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create ok", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")

			res := createPurchase(t, url, authHeader, "49.99")

			require.NotEqual(t, uuid.Nil, res.Purchase.ID)
			require.Equal(t, "49.99", res.Purchase.Amount)
			require.Equal(t, "COMPLETED", res.Purchase.Status)
			require.Nil(t, res.ReferralReward, "no reward without a referral")
		})
	})

	t.Run("first purchase converts referral", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			referrerAuth := registerAndAuth(t, url, "referrer@example.com")
			code := generateCode(t, url, referrerAuth)

			referredAuth := registerAndAuth(t, url, "referred@example.com")
			resp := doAuth(t, "POST", url+"/api/referrals/apply", referredAuth, `{"referral_code": "`+code+`"}`)
			_ = readBody(t, resp)
			require.Equal(t, http.StatusCreated, resp.StatusCode)

			res := createPurchase(t, url, referredAuth, "10")

			require.NotNil(t, res.ReferralReward, "first purchase should trigger the reward")
			require.Equal(t, int64(2), res.ReferralReward.CreditsEarned)
			require.Equal(t, "Congratulations! You and your referrer each earned credits!", res.ReferralReward.Message)

			// Both sides got credits
			for _, auth := range []string{referrerAuth, referredAuth} {
				resp := doAuth(t, "GET", url+"/api/user/balance", auth, "")
				body := readBody(t, resp)
				require.Equal(t, http.StatusOK, resp.StatusCode)
				require.JSONEq(t, `{"credits": 2}`, body)
			}

			// Second purchase does not reward again
			res = createPurchase(t, url, referredAuth, "20")
			require.Nil(t, res.ReferralReward)
		})
	})

	t.Run("non positive amount", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")

			resp := doAuth(t, "POST", url+"/api/purchases/", authHeader, `{"amount": -5, "description": "Bad order"}`)
			body := readBody(t, resp)

			require.Equalf(t, http.StatusUnprocessableEntity, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Amount must be greater than zero"
				}`, body)
		})
	})

	t.Run("get by id", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")
			created := createPurchase(t, url, authHeader, "15")

			resp := doAuth(t, "GET", url+"/api/purchases/"+created.Purchase.ID.String(), authHeader, "")
			body := readBody(t, resp)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, created.Purchase.ID.String())
		})
	})

	t.Run("get others purchase not found", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			ownerAuth := registerAndAuth(t, url, "owner@example.com")
			created := createPurchase(t, url, ownerAuth, "15")

			strangerAuth := registerAndAuth(t, url, "stranger@example.com")

			resp := doAuth(t, "GET", url+"/api/purchases/"+created.Purchase.ID.String(), strangerAuth, "")
			body := readBody(t, resp)

			require.Equalf(t, http.StatusNotFound, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "service_error",
					"message": "Purchase not found"
				}`, body)
		})
	})

	t.Run("get with malformed id", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")

			resp := doAuth(t, "GET", url+"/api/purchases/not-an-uuid", authHeader, "")
			body := readBody(t, resp)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
		})
	})

	t.Run("list with pagination", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")
			for _, amount := range []string{"1", "2", "3"} {
				_ = createPurchase(t, url, authHeader, amount)
			}

			resp := doAuth(t, "GET", url+"/api/purchases/?limit=2&offset=1", authHeader, "")
			body := readBody(t, resp)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)

			var listed []struct {
				ID     uuid.UUID `json:"id"`
				Amount string    `json:"amount"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &listed))
			require.Len(t, listed, 2)
		})
	})

	t.Run("stats", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			authHeader := registerAndAuth(t, url, "buyer@example.com")
			_ = createPurchase(t, url, authHeader, "10")
			_ = createPurchase(t, url, authHeader, "15")

			resp := doAuth(t, "GET", url+"/api/purchases/stats", authHeader, "")
			body := readBody(t, resp)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"total": 2,
					"completed": 2,
					"total_amount": "25"
				}`, body)
		})
	})

	t.Run("unauthorized", func(t *testing.T) {
		withServer(pg.Pool, t, func(url string) {
			resp, err := http.Get(url + "/api/purchases/")
			require.NoError(t, err)
			_ = readBody(t, resp)

			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	})
}
