package models

import (
	"errors"
	"time"

	"github.com/membrs/membrs/internal/auth/discord"
)

// ErrIncompleteToken is returned when a stored user lacks the fields needed
// to rebuild an OAuth token.
var ErrIncompleteToken = errors.New("stored token is incomplete")

// User is a Discord account that completed the OAuth flow.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	DiscordID    string     `gorm:"uniqueIndex;not null" json:"discord_id"`
	Username     *string    `json:"username"`
	Avatar       *string    `json:"avatar"`
	Email        *string    `json:"email"`
	Banner       *string    `json:"banner"`
	AccessToken  string     `gorm:"not null" json:"-"`
	TokenType    string     `json:"-"`
	ExpiresAt    *time.Time `json:"expires_at"`
	RefreshToken *string    `json:"-"`
	NeedsReauth  bool       `gorm:"not null;default:false" json:"needs_reauth"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Token rebuilds the OAuth token from the stored columns.
func (u User) Token() (discord.OAuthToken, error) {
	if u.RefreshToken == nil || *u.RefreshToken == "" {
		return discord.OAuthToken{}, discord.ErrNoRefreshToken
	}
	if u.AccessToken == "" || u.ExpiresAt == nil {
		return discord.OAuthToken{}, ErrIncompleteToken
	}
	return discord.OAuthToken{
		AccessToken:  u.AccessToken,
		TokenType:    u.TokenType,
		ExpiresAt:    *u.ExpiresAt,
		RefreshToken: *u.RefreshToken,
	}, nil
}

// SetToken copies tok into the token columns.
func (u *User) SetToken(tok discord.OAuthToken) {
	expiresAt := tok.ExpiresAt
	u.AccessToken = tok.AccessToken
	u.TokenType = tok.TokenType
	u.ExpiresAt = &expiresAt
	u.RefreshToken = nil
	if tok.RefreshToken != "" {
		rt := tok.RefreshToken
		u.RefreshToken = &rt
	}
}

// FromProfile builds a user row from a Discord profile and its token.
func FromProfile(p discord.UserProfile, tok discord.OAuthToken) User {
	u := User{
		DiscordID: p.ID,
		Username:  p.Username,
		Avatar:    p.Avatar,
		Email:     p.Email,
		Banner:    p.Banner,
	}
	u.SetToken(tok)
	return u
}
