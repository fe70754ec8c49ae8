// Package handlers implements the membrs HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/auth/state"
	"github.com/membrs/membrs/internal/auth/token"
	"github.com/membrs/membrs/internal/bot"
	"github.com/membrs/membrs/internal/db"
	"github.com/membrs/membrs/internal/resync"
)

// BotClient is the bot API surface the handlers use.
type BotClient interface {
	AddGuildMember(ctx context.Context, m bot.AddGuildMember) (bot.Outcome, error)
	Guilds(ctx context.Context) ([]bot.Guild, error)
}

// BotFactory builds a bot client for the bot token currently stored in settings.
type BotFactory func(botToken string) BotClient

// Deps is everything the handlers need.
type Deps struct {
	Store     *db.Store
	Exchanger *discord.Exchanger
	Tokens    *token.Manager
	Jobs      *resync.Jobs
	Bot       BotFactory

	// States signs the OAuth state attached to consent URLs and checks it on callback.
	States *state.Signer
	// FrontendURL is used for redirects when the settings row has none.
	FrontendURL string
}

func (d *Deps) botClient(ctx context.Context) (BotClient, error) {
	tok, err := d.Store.BotToken(ctx)
	if err != nil {
		return nil, err
	}
	return d.Bot(tok), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors to HTTP status codes for admin endpoints.
func statusFor(err error) int {
	var cfgErr *discord.ConfigurationError
	var reqErr *discord.RequestError
	var parseErr *discord.ParseError
	switch {
	case errors.As(err, &cfgErr), errors.Is(err, token.ErrClientRejected):
		return http.StatusPreconditionFailed
	case errors.Is(err, db.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, discord.ErrNoRefreshToken):
		return http.StatusConflict
	case errors.As(err, &reqErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
