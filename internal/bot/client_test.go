package bot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGuildMember_StatusMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    Outcome
		wantErr bool
	}{
		{name: "created", status: http.StatusCreated, want: AddedToServer},
		{name: "already a member", status: http.StatusNoContent, want: AlreadyOnServer},
		{name: "ok is not a success here", status: http.StatusOK, wantErr: true},
		{name: "forbidden", status: http.StatusForbidden, wantErr: true},
		{name: "rate limited", status: http.StatusTooManyRequests, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			got, err := NewClient(srv.URL, "bot-token", srv.Client()).AddGuildMember(context.Background(), AddGuildMember{
				GuildID:     "guild-1",
				UserID:      "user-1",
				AccessToken: "access",
			})
			if tt.wantErr {
				var reqErr *discord.RequestError
				require.ErrorAs(t, err, &reqErr)
				assert.Equal(t, tt.status, reqErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddGuildMember_RequestShape(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/guilds/guild-1/members/user-1", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "bot-token", srv.Client())

	_, err := client.AddGuildMember(context.Background(), AddGuildMember{GuildID: "guild-1", UserID: "user-1", AccessToken: "access"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"access_token": "access"}, body, "absent optional fields must be omitted")

	nick := "wumpus"
	mute := false
	_, err = client.AddGuildMember(context.Background(), AddGuildMember{
		GuildID:     "guild-1",
		UserID:      "user-1",
		AccessToken: "access",
		Nick:        &nick,
		Roles:       []string{"role-1"},
		Mute:        &mute,
	})
	require.NoError(t, err)
	assert.Equal(t, "wumpus", body["nick"])
	assert.Equal(t, []any{"role-1"}, body["roles"])
	assert.Equal(t, false, body["mute"])
	_, hasDeaf := body["deaf"]
	assert.False(t, hasDeaf)
}

func TestAddGuildMember_TransportFailureDoesNotRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	client := NewClient(srv.URL, "bot-token", srv.Client())
	srv.Close()

	_, err := client.AddGuildMember(context.Background(), AddGuildMember{GuildID: "g", UserID: "u", AccessToken: "a"})
	var reqErr *discord.RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Zero(t, reqErr.Status)
	assert.Contains(t, reqErr.Detail, "failed to send request")
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestGuilds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/@me/guilds", r.URL.Path)
		assert.Equal(t, "Bot bot-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"1","name":"one","features":["COMMUNITY"]},{"id":"2","name":null}]`))
	}))
	defer srv.Close()

	guilds, err := NewClient(srv.URL, "bot-token", srv.Client()).Guilds(context.Background())
	require.NoError(t, err)
	require.Len(t, guilds, 2)
	assert.Equal(t, "one", *guilds[0].Name)
	assert.Nil(t, guilds[1].Name)
}

func TestGuilds_BadTokenAndBadBody(t *testing.T) {
	unauthorized := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer unauthorized.Close()

	_, err := NewClient(unauthorized.URL, "bad", unauthorized.Client()).Guilds(context.Background())
	assert.Equal(t, http.StatusUnauthorized, discord.StatusCode(err))

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"a list"}`))
	}))
	defer garbage.Close()

	_, err = NewClient(garbage.URL, "bot-token", garbage.Client()).Guilds(context.Background())
	var parseErr *discord.ParseError
	assert.ErrorAs(t, err, &parseErr)
}
