package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/auth/token"
	"github.com/membrs/membrs/internal/bot"
	"github.com/membrs/membrs/internal/config"
	"github.com/membrs/membrs/internal/db"
	"github.com/membrs/membrs/internal/db/models"
)

// app holds the components shared by every subcommand.
type app struct {
	cfg        config.Config
	store      *db.Store
	httpClient *http.Client
	exchanger  *discord.Exchanger
	tokens     *token.Manager
}

func bootstrap(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	database, err := db.InitDB(cfg.Database.Path, cfg.DBOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	store := db.NewStore(database)

	if err := store.EnsureSuperUser(ctx); err != nil {
		return nil, err
	}
	if err := storeBotAndURLs(ctx, store, cfg); err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Discord.HTTPTimeout}
	exchanger := discord.NewExchanger(cfg.Endpoints(), discord.WithHTTPClient(httpClient))

	return &app{
		cfg:        cfg,
		store:      store,
		httpClient: httpClient,
		exchanger:  exchanger,
		tokens:     token.NewManager(store, exchanger),
	}, nil
}

// storeBotAndURLs copies the bot token and URLs from the config into the
// settings row, leaving stored values alone where the config has none.
func storeBotAndURLs(ctx context.Context, store *db.Store, cfg config.Config) error {
	return store.SoftUpsertApplicationData(ctx, models.ApplicationData{
		BotToken:    nonEmpty(cfg.Discord.BotToken),
		BackendURL:  nonEmpty(cfg.Server.BackendURL),
		FrontendURL: nonEmpty(cfg.Server.FrontendURL),
	})
}

func (a *app) botClient(botToken string) *bot.Client {
	return bot.NewClient(a.cfg.Discord.APIBaseURL, botToken, a.httpClient)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
