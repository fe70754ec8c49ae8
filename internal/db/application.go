package db

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetApplicationData returns the settings row. A missing row yields an empty
// ApplicationData rather than an error.
func (s *Store) GetApplicationData(ctx context.Context) (*models.ApplicationData, error) {
	var app models.ApplicationData
	err := s.db.WithContext(ctx).Where("app_name = ?", models.ApplicationName).First(&app).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ApplicationData{AppName: models.ApplicationName}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get application data: %w", err)
	}
	return &app, nil
}

// SoftUpsertApplicationData merges patch into the settings row. Nil fields
// leave the stored value untouched.
func (s *Store) SoftUpsertApplicationData(ctx context.Context, patch models.ApplicationData) error {
	patch.ID = 0
	patch.AppName = models.ApplicationName

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "app_name"}},
		DoUpdates: clause.Assignments(map[string]any{
			"backend_url":   gorm.Expr("COALESCE(excluded.backend_url, application_data.backend_url)"),
			"frontend_url":  gorm.Expr("COALESCE(excluded.frontend_url, application_data.frontend_url)"),
			"bot_token":     gorm.Expr("COALESCE(excluded.bot_token, application_data.bot_token)"),
			"client_id":     gorm.Expr("COALESCE(excluded.client_id, application_data.client_id)"),
			"client_secret": gorm.Expr("COALESCE(excluded.client_secret, application_data.client_secret)"),
			"redirect_uri":  gorm.Expr("COALESCE(excluded.redirect_uri, application_data.redirect_uri)"),
			"guild_id":      gorm.Expr("COALESCE(excluded.guild_id, application_data.guild_id)"),
			"state_secret":  gorm.Expr("COALESCE(application_data.state_secret, excluded.state_secret)"),
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&patch).Error
	if err != nil {
		return fmt.Errorf("upsert application data: %w", err)
	}
	return nil
}

// ClientCredentials reads the OAuth client credentials from the settings row.
func (s *Store) ClientCredentials(ctx context.Context) (discord.ClientCredentials, error) {
	app, err := s.GetApplicationData(ctx)
	if err != nil {
		return discord.ClientCredentials{}, err
	}
	return app.Credentials()
}

// BotToken reads the bot token from the settings row.
func (s *Store) BotToken(ctx context.Context) (string, error) {
	app, err := s.GetApplicationData(ctx)
	if err != nil {
		return "", err
	}
	return models.Require("bot_token", app.BotToken)
}

// GuildID reads the default target guild from the settings row.
func (s *Store) GuildID(ctx context.Context) (string, error) {
	app, err := s.GetApplicationData(ctx)
	if err != nil {
		return "", err
	}
	return models.Require("guild_id", app.GuildID)
}

// StateSecret returns the key OAuth states are signed with, generating and
// storing it on first use. The first stored secret is never replaced.
func (s *Store) StateSecret(ctx context.Context) ([]byte, error) {
	app, err := s.GetApplicationData(ctx)
	if err != nil {
		return nil, err
	}
	if app.StateSecret == nil || *app.StateSecret == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("generate state secret: %w", err)
		}
		secret := hex.EncodeToString(b)
		if err := s.SoftUpsertApplicationData(ctx, models.ApplicationData{StateSecret: &secret}); err != nil {
			return nil, err
		}
		if app, err = s.GetApplicationData(ctx); err != nil {
			return nil, err
		}
	}
	key, err := hex.DecodeString(*app.StateSecret)
	if err != nil {
		return nil, fmt.Errorf("decode state secret: %w", err)
	}
	return key, nil
}
