package models

import (
	"time"

	"github.com/membrs/membrs/internal/auth/discord"
)

// ApplicationName keys the single settings row.
const ApplicationName = "application_data"

// ApplicationData holds the admin-editable settings. Every field is optional
// until an admin fills it in.
type ApplicationData struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	AppName      string    `gorm:"uniqueIndex;not null" json:"-"`
	BackendURL   *string   `json:"backend_url"`
	FrontendURL  *string   `json:"frontend_url"`
	BotToken     *string   `json:"bot_token"`
	ClientID     *string   `json:"client_id"`
	ClientSecret *string   `json:"client_secret"`
	RedirectURI  *string   `json:"redirect_uri"`
	GuildID      *string   `json:"guild_id"`
	StateSecret  *string   `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Credentials returns the OAuth client credentials, or a
// ConfigurationError naming the first unset field.
func (a ApplicationData) Credentials() (discord.ClientCredentials, error) {
	creds := discord.ClientCredentials{
		ClientID:     deref(a.ClientID),
		ClientSecret: deref(a.ClientSecret),
		RedirectURI:  deref(a.RedirectURI),
	}
	if err := creds.Validate(); err != nil {
		return discord.ClientCredentials{}, err
	}
	return creds, nil
}

// Require returns the value of a setting, or a ConfigurationError if it is unset.
func Require(field string, v *string) (string, error) {
	if v == nil || *v == "" {
		return "", &discord.ConfigurationError{Field: field}
	}
	return *v, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
