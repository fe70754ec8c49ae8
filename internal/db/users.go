package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// ListUsersAfter returns up to limit users with id > afterID in id order.
func (s *Store) ListUsersAfter(ctx context.Context, afterID uint, limit int) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users after %d: %w", afterID, err)
	}
	return users, nil
}

// GetUserByDiscordID loads one user.
func (s *Store) GetUserByDiscordID(ctx context.Context, discordID string) (*models.User, error) {
	var u models.User
	err := s.db.WithContext(ctx).Where("discord_id = ?", discordID).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", discordID, err)
	}
	return &u, nil
}

// UpsertUser inserts u or updates the existing row with the same Discord id.
// Profile columns and the refresh token keep their stored value when the new
// value is null; the access token and type are always replaced. A successful
// upsert clears needs_reauth.
func (s *Store) UpsertUser(ctx context.Context, u *models.User) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"username":      gorm.Expr("COALESCE(excluded.username, users.username)"),
			"avatar":        gorm.Expr("COALESCE(excluded.avatar, users.avatar)"),
			"email":         gorm.Expr("COALESCE(excluded.email, users.email)"),
			"banner":        gorm.Expr("COALESCE(excluded.banner, users.banner)"),
			"access_token":  gorm.Expr("excluded.access_token"),
			"token_type":    gorm.Expr("excluded.token_type"),
			"expires_at":    gorm.Expr("COALESCE(excluded.expires_at, users.expires_at)"),
			"refresh_token": gorm.Expr("COALESCE(excluded.refresh_token, users.refresh_token)"),
			"needs_reauth":  false,
			"updated_at":    gorm.Expr("excluded.updated_at"),
		}),
	}).Create(u).Error
	if err != nil {
		return fmt.Errorf("upsert user %s: %w", u.DiscordID, err)
	}
	return nil
}

// SaveToken writes a refreshed token back to the user's row. It satisfies
// discord.TokenSaver.
func (s *Store) SaveToken(ctx context.Context, discordID string, tok discord.OAuthToken) error {
	updates := map[string]any{
		"access_token": tok.AccessToken,
		"token_type":   tok.TokenType,
		"expires_at":   tok.ExpiresAt,
		"needs_reauth": false,
	}
	if tok.RefreshToken != "" {
		updates["refresh_token"] = tok.RefreshToken
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("discord_id = ?", discordID).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("save token for %s: %w", discordID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MarkNeedsReauth flags a user whose refresh token was rejected for good.
func (s *Store) MarkNeedsReauth(ctx context.Context, discordID string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("discord_id = ?", discordID).Update("needs_reauth", true)
	if res.Error != nil {
		return fmt.Errorf("mark %s needs reauth: %w", discordID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
