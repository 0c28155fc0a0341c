package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUserStore runs the behaviour every UserStore implementation shares.
func testUserStore(t *testing.T, store UserStore) {
	ctx := context.Background()

	t.Run("find missing user", func(t *testing.T) {
		_, err := store.FindUser(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("create is idempotent", func(t *testing.T) {
		first, err := store.CreateUser(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, "user@example.com", first.Email)
		assert.Empty(t, first.Authorizations)

		second, err := store.CreateUser(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, first.Email, second.Email)
	})

	t.Run("email is case sensitive", func(t *testing.T) {
		_, err := store.FindUser(ctx, "USER@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("save authorization overwrites", func(t *testing.T) {
		rec := AuthorizationRecord{
			Provider:       "fitbit",
			OwnerEmail:     "user@example.com",
			AccessToken:    "access-1",
			RefreshToken:   "refresh-1",
			Scope:          "weight sleep",
			TokenType:      "Bearer",
			ExternalUserID: "ABC123",
		}
		require.NoError(t, store.SaveAuthorization(ctx, rec))

		rec.AccessToken = "access-2"
		rec.RefreshToken = "refresh-2"
		require.NoError(t, store.SaveAuthorization(ctx, rec))

		require.NoError(t, store.SaveAuthorization(ctx, AuthorizationRecord{
			Provider:     "drive",
			OwnerEmail:   "user@example.com",
			AccessToken:  "drive-access",
			RefreshToken: "drive-refresh",
			Scope:        "https://www.googleapis.com/auth/drive.file",
			TokenType:    "Bearer",
			ExpiresAt:    time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		}))

		u, err := store.FindUser(ctx, "user@example.com")
		require.NoError(t, err)
		require.Len(t, u.Authorizations, 2)

		fitbit, ok := u.Authorization("fitbit")
		require.True(t, ok)
		assert.Equal(t, "access-2", fitbit.AccessToken)
		assert.Equal(t, "refresh-2", fitbit.RefreshToken)
		assert.Equal(t, "weight sleep", fitbit.Scope)
		assert.Equal(t, "Bearer", fitbit.TokenType)
		assert.Equal(t, "ABC123", fitbit.ExternalUserID)
		assert.Equal(t, "user@example.com", fitbit.OwnerEmail)

		drive, ok := u.Authorization("drive")
		require.True(t, ok)
		assert.Equal(t, "drive-refresh", drive.RefreshToken)
		assert.True(t, drive.ExpiresAt.Equal(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("save authorization for missing user", func(t *testing.T) {
		err := store.SaveAuthorization(ctx, AuthorizationRecord{
			Provider:    "fitbit",
			OwnerEmail:  "ghost@example.com",
			AccessToken: "x",
		})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("delete removes user and authorizations", func(t *testing.T) {
		require.NoError(t, store.DeleteUser(ctx, "user@example.com"))

		_, err := store.FindUser(ctx, "user@example.com")
		assert.ErrorIs(t, err, ErrUserNotFound)

		u, err := store.CreateUser(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Empty(t, u.Authorizations)

		assert.ErrorIs(t, store.DeleteUser(ctx, "nobody@example.com"), ErrUserNotFound)
	})
}

// testLoginTokenLedger checks single-use bookkeeping. advance moves the
// store's clock forward.
func testLoginTokenLedger(t *testing.T, ledger LoginTokenLedger, advance func(time.Duration)) {
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first, err := ledger.ConsumeLoginToken(ctx, "token-1", base.Add(10*time.Minute))
	require.NoError(t, err)
	assert.True(t, first)

	again, err := ledger.ConsumeLoginToken(ctx, "token-1", base.Add(10*time.Minute))
	require.NoError(t, err)
	assert.False(t, again)

	other, err := ledger.ConsumeLoginToken(ctx, "token-2", base.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, other)

	advance(11 * time.Minute)
	removed, err := ledger.CleanupExpiredLoginTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	stillUsed, err := ledger.ConsumeLoginToken(ctx, "token-2", base.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, stillUsed)
}
