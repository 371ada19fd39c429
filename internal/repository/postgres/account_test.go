package postgres

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/refermart/internal/apperrors"
	"github.com/nkiryanov/refermart/internal/models"
	"github.com/nkiryanov/refermart/internal/testutil"
)

// Create account with unique email for tests
func mustCreateAccount(t *testing.T, r *AccountRepo, email string) models.Account {
	t.Helper()

	account, err := r.CreateAccount(t.Context(), models.Account{
		Email:          email,
		HashedPassword: "hashedpassword123",
		FirstName:      "Alice",
		LastName:       "Smith",
	})
	require.NoError(t, err, "account has to be created ok")

	return account
}

func Test_AccountRepo(t *testing.T) {
	t.Parallel() // It's ok to run in parallel with other tests, but not with subtests

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("create account ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			account, err := r.CreateAccount(t.Context(), models.Account{
				Email:          "alice@example.com",
				HashedPassword: "hashedpassword123",
				FirstName:      "Alice",
				LastName:       "Smith",
			})

			require.NoError(t, err)
			assert.Equal(t, "alice@example.com", account.Email)
			assert.Equal(t, "hashedpassword123", account.HashedPassword)
			assert.Equal(t, "Alice", account.FirstName)
			assert.Equal(t, "Smith", account.LastName)
			assert.Nil(t, account.ReferralCode, "new account should have no referral code")
			assert.Nil(t, account.ReferredBy, "new account should not be referred")
			assert.Zero(t, account.Credits, "new account should have zero credits")
			assert.WithinDuration(t, time.Now(), account.CreatedAt, time.Second, "CreatedAt should be recent")
		})
	})

	t.Run("create account duplicate email", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			mustCreateAccount(t, &r, "dup@example.com")

			_, err := r.CreateAccount(t.Context(), models.Account{
				Email:          "dup@example.com",
				HashedPassword: "otherhash",
				FirstName:      "Bob",
				LastName:       "Jones",
			})

			require.Error(t, err, "creating account with taken email should fail")
			assert.ErrorIs(t, err, apperrors.ErrAccountAlreadyExists, "should return well known error")
		})
	})

	t.Run("get account by id ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created := mustCreateAccount(t, &r, "findbyid@example.com")

			got, err := r.GetByID(t.Context(), created.ID)

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
			assert.Equal(t, created.Email, got.Email)
			assert.Equal(t, created.HashedPassword, got.HashedPassword)
			assert.Equal(t, created.CreatedAt, got.CreatedAt)
		})
	})

	t.Run("get account by id not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			_, err := r.GetByID(t.Context(), uuid.New())

			assert.ErrorIs(t, err, apperrors.ErrAccountNotFound, "should return well known error")
		})
	})

	t.Run("get account by email ok", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created := mustCreateAccount(t, &r, "findbyemail@example.com")

			got, err := r.GetByEmail(t.Context(), "findbyemail@example.com")

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)
		})
	})

	t.Run("get account by email not found", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}

			_, err := r.GetByEmail(t.Context(), "nosuch@example.com")

			assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("set referral code", func(t *testing.T) {
		t.Run("assign ok", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				created := mustCreateAccount(t, &r, "code@example.com")

				updated, err := r.SetReferralCode(t.Context(), created.ID, "ALICE123")

				require.NoError(t, err)
				require.NotNil(t, updated.ReferralCode)
				assert.Equal(t, "ALICE123", *updated.ReferralCode)
			})
		})

		t.Run("assign is idempotent", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				created := mustCreateAccount(t, &r, "code2@example.com")

				_, err := r.SetReferralCode(t.Context(), created.ID, "FIRST234")
				require.NoError(t, err)

				// Second assignment must keep the first code
				updated, err := r.SetReferralCode(t.Context(), created.ID, "SECOND99")

				require.NoError(t, err)
				require.NotNil(t, updated.ReferralCode)
				assert.Equal(t, "FIRST234", *updated.ReferralCode, "assigned code should stay untouched")
			})
		})

		t.Run("code taken by other account", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				first := mustCreateAccount(t, &r, "owner@example.com")
				second := mustCreateAccount(t, &r, "taker@example.com")

				_, err := r.SetReferralCode(t.Context(), first.ID, "TAKEN777")
				require.NoError(t, err)

				_, err = r.SetReferralCode(t.Context(), second.ID, "TAKEN777")

				assert.ErrorIs(t, err, apperrors.ErrReferralCodeTaken, "should return well known error")
			})
		})

		t.Run("account not found", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}

				_, err := r.SetReferralCode(t.Context(), uuid.New(), "NOONE123")

				assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})

		t.Run("malformed code rejected by db", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				created := mustCreateAccount(t, &r, "badcode@example.com")

				_, err := r.SetReferralCode(t.Context(), created.ID, "bad")

				assert.Error(t, err, "too short lowercase code should violate the format check")
			})
		})
	})

	t.Run("get account by referral code", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			r := AccountRepo{DB: tx}
			created := mustCreateAccount(t, &r, "bycode@example.com")
			_, err := r.SetReferralCode(t.Context(), created.ID, "LOOKUP55")
			require.NoError(t, err)

			got, err := r.GetByReferralCode(t.Context(), "LOOKUP55")

			require.NoError(t, err)
			assert.Equal(t, created.ID, got.ID)

			_, err = r.GetByReferralCode(t.Context(), "MISSING1")
			assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
		})
	})

	t.Run("add credits", func(t *testing.T) {
		t.Run("increment ok", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				created := mustCreateAccount(t, &r, "credits@example.com")

				balance, err := r.AddCredits(t.Context(), created.ID, 2)
				require.NoError(t, err)
				assert.Equal(t, int64(2), balance)

				balance, err = r.AddCredits(t.Context(), created.ID, 3)
				require.NoError(t, err)
				assert.Equal(t, int64(5), balance, "increments should accumulate")
			})
		})

		t.Run("negative balance rejected", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				created := mustCreateAccount(t, &r, "negative@example.com")

				_, err := r.AddCredits(t.Context(), created.ID, -1)

				assert.ErrorIs(t, err, apperrors.ErrInvalidAmount, "balance must never go below zero")
			})
		})

		t.Run("account not found", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}

				_, err := r.AddCredits(t.Context(), uuid.New(), 2)

				assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})

	t.Run("set referred by", func(t *testing.T) {
		t.Run("set ok", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				referrer := mustCreateAccount(t, &r, "referrer@example.com")
				referred := mustCreateAccount(t, &r, "referred@example.com")

				err := r.SetReferredBy(t.Context(), referred.ID, referrer.ID)

				require.NoError(t, err)
				got, err := r.GetByID(t.Context(), referred.ID)
				require.NoError(t, err)
				require.NotNil(t, got.ReferredBy)
				assert.Equal(t, referrer.ID, *got.ReferredBy)
			})
		})

		t.Run("set at most once", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				first := mustCreateAccount(t, &r, "first@example.com")
				second := mustCreateAccount(t, &r, "second@example.com")
				referred := mustCreateAccount(t, &r, "wanted@example.com")

				err := r.SetReferredBy(t.Context(), referred.ID, first.ID)
				require.NoError(t, err)

				err = r.SetReferredBy(t.Context(), referred.ID, second.ID)

				assert.ErrorIs(t, err, apperrors.ErrAlreadyReferred, "referred_by must be written only once")
			})
		})

		t.Run("account not found", func(t *testing.T) {
			testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
				r := AccountRepo{DB: tx}
				referrer := mustCreateAccount(t, &r, "lonely@example.com")

				err := r.SetReferredBy(t.Context(), uuid.New(), referrer.ID)

				assert.ErrorIs(t, err, apperrors.ErrAccountNotFound)
			})
		})
	})
}

// Concurrent increments must not lose updates.
// Runs against the pool directly (not inside a rollback tx) to get real contention
func Test_AccountRepo_ConcurrentCredits(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	r := AccountRepo{DB: pg.Pool}
	account := mustCreateAccount(t, &r, "concurrent@example.com")

	const workers = 10
	errCh := make(chan error, workers)
	for i := 0; i < workers; i++ {
		go func() {
			_, err := r.AddCredits(t.Context(), account.ID, 2)
			errCh <- err
		}()
	}
	for i := 0; i < workers; i++ {
		require.NoError(t, <-errCh, fmt.Sprintf("increment %d failed", i))
	}

	got, err := r.GetByID(t.Context(), account.ID)
	require.NoError(t, err)
	require.Equal(t, int64(workers*2), got.Credits, "every increment must be applied")
}
