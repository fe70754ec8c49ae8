package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	gdb, err := InitDB("file:"+uuid.NewString()+"?mode=memory&cache=shared", Options{MaxOpenConns: 1})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewStore(gdb)
}

func strPtr(s string) *string { return &s }

func TestUserRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	tok := discord.OAuthToken{
		AccessToken:  "access-1",
		TokenType:    "Bearer",
		ExpiresAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		RefreshToken: "refresh-1",
	}
	u := models.FromProfile(discord.UserProfile{ID: "4242", Username: strPtr("wumpus")}, tok)
	require.NoError(t, store.UpsertUser(ctx, &u))

	got, err := store.GetUserByDiscordID(ctx, "4242")
	require.NoError(t, err)
	assert.Equal(t, "wumpus", *got.Username)

	gotTok, err := got.Token()
	require.NoError(t, err)
	assert.Equal(t, tok.AccessToken, gotTok.AccessToken)
	assert.Equal(t, tok.TokenType, gotTok.TokenType)
	assert.Equal(t, tok.RefreshToken, gotTok.RefreshToken)
	assert.True(t, tok.ExpiresAt.Equal(gotTok.ExpiresAt), "expires_at %s != %s", gotTok.ExpiresAt, tok.ExpiresAt)
}

func TestUpsertUser_CoalescesNulls(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := models.FromProfile(discord.UserProfile{
		ID:       "1",
		Username: strPtr("old-name"),
		Email:    strPtr("a@example.com"),
	}, discord.OAuthToken{AccessToken: "a1", TokenType: "Bearer", ExpiresAt: time.Now().Add(time.Hour), RefreshToken: "r1"})
	require.NoError(t, store.UpsertUser(ctx, &first))
	require.NoError(t, store.MarkNeedsReauth(ctx, "1"))

	second := models.FromProfile(discord.UserProfile{
		ID:       "1",
		Username: strPtr("new-name"),
	}, discord.OAuthToken{AccessToken: "a2", TokenType: "Bearer", ExpiresAt: time.Now().Add(2 * time.Hour)})
	require.NoError(t, store.UpsertUser(ctx, &second))

	got, err := store.GetUserByDiscordID(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "new-name", *got.Username)
	require.NotNil(t, got.Email)
	assert.Equal(t, "a@example.com", *got.Email, "null email must not overwrite")
	assert.Equal(t, "a2", got.AccessToken)
	require.NotNil(t, got.RefreshToken)
	assert.Equal(t, "r1", *got.RefreshToken, "null refresh token must not overwrite")
	assert.False(t, got.NeedsReauth)

	n, err := store.CountUsers(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestListUsersAfter_VisitsEachUserOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		u := models.User{DiscordID: id, AccessToken: "x"}
		require.NoError(t, store.UpsertUser(ctx, &u))
	}

	var seen []string
	var after uint
	for {
		page, err := store.ListUsersAfter(ctx, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, u := range page {
			seen = append(seen, u.DiscordID)
		}
		after = page[len(page)-1].ID
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, seen)
}

func TestSaveToken(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	u := models.FromProfile(discord.UserProfile{ID: "7"}, discord.OAuthToken{AccessToken: "old", TokenType: "Bearer", ExpiresAt: time.Now(), RefreshToken: "r-old"})
	require.NoError(t, store.UpsertUser(ctx, &u))

	expires := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveToken(ctx, "7", discord.OAuthToken{AccessToken: "new", TokenType: "Bearer", ExpiresAt: expires, RefreshToken: "r-new"}))

	got, err := store.GetUserByDiscordID(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "new", got.AccessToken)
	assert.Equal(t, "r-new", *got.RefreshToken)
	assert.True(t, expires.Equal(*got.ExpiresAt))

	err = store.SaveToken(ctx, "missing", discord.OAuthToken{AccessToken: "x"})
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = store.GetUserByDiscordID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserToken_MissingFields(t *testing.T) {
	now := time.Now()
	_, err := models.User{AccessToken: "a", ExpiresAt: &now}.Token()
	assert.ErrorIs(t, err, discord.ErrNoRefreshToken)

	_, err = models.User{RefreshToken: strPtr("r"), AccessToken: "a"}.Token()
	assert.ErrorIs(t, err, models.ErrIncompleteToken)
}

func TestApplicationData_SoftUpsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.ClientCredentials(ctx)
	var cfgErr *discord.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "client_id", cfgErr.Field)

	require.NoError(t, store.SoftUpsertApplicationData(ctx, models.ApplicationData{
		ClientID:     strPtr("cid"),
		ClientSecret: strPtr("secret"),
		BotToken:     strPtr("bot"),
	}))
	require.NoError(t, store.SoftUpsertApplicationData(ctx, models.ApplicationData{
		RedirectURI: strPtr("https://api.example.com/oauth"),
		ClientID:    strPtr("cid-2"),
	}))

	creds, err := store.ClientCredentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, discord.ClientCredentials{
		ClientID:     "cid-2",
		ClientSecret: "secret",
		RedirectURI:  "https://api.example.com/oauth",
	}, creds)

	bot, err := store.BotToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bot", bot)

	_, err = store.GuildID(ctx)
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "guild_id", cfgErr.Field)
}

func TestSuperUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.VerifySuperUser(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.False(t, ok, "no superuser before EnsureSuperUser")

	require.NoError(t, store.EnsureSuperUser(ctx))
	ok, err = store.VerifySuperUser(ctx, "admin", "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.UpdateSuperUser(ctx, "root", "hunter2"))
	require.NoError(t, store.EnsureSuperUser(ctx))

	ok, _ = store.VerifySuperUser(ctx, "admin", "admin")
	assert.False(t, ok)
	ok, _ = store.VerifySuperUser(ctx, "root", "wrong")
	assert.False(t, ok)
	ok, _ = store.VerifySuperUser(ctx, "admin", "hunter2")
	assert.False(t, ok, "right password with the wrong username")
	ok, _ = store.VerifySuperUser(ctx, "roo", "hunter2")
	assert.False(t, ok, "username prefix")
	ok, _ = store.VerifySuperUser(ctx, "root", "hunter2")
	assert.True(t, ok)

	assert.Error(t, store.UpdateSuperUser(ctx, "", "x"))
}

func TestStateSecret_StableAcrossCalls(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.StateSecret(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 32)

	require.NoError(t, store.SoftUpsertApplicationData(ctx, models.ApplicationData{ClientID: strPtr("client-id")}))

	again, err := store.StateSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	rotated := "00"
	require.NoError(t, store.SoftUpsertApplicationData(ctx, models.ApplicationData{StateSecret: &rotated}))
	kept, err := store.StateSecret(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, kept, "the first stored secret wins")
}
