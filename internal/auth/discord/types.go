package discord

import "time"

// OAuthToken is a user's OAuth2 grant. ExpiresAt is absolute and is computed
// when the token response is parsed; it is never recalculated afterwards.
type OAuthToken struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	RefreshToken string    `json:"refresh_token,omitempty"`
}

// Expired reports whether the token is no longer usable at now.
func (t OAuthToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// ClientCredentials identifies the Discord application performing the OAuth flow.
type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// Validate returns a ConfigurationError naming the first missing field.
func (c ClientCredentials) Validate() error {
	switch {
	case c.ClientID == "":
		return &ConfigurationError{Field: "client_id"}
	case c.ClientSecret == "":
		return &ConfigurationError{Field: "client_secret"}
	case c.RedirectURI == "":
		return &ConfigurationError{Field: "redirect_uri"}
	}
	return nil
}

// UserProfile is the subset of /users/@me we care about.
type UserProfile struct {
	ID            string  `json:"id"`
	Username      *string `json:"username"`
	Discriminator *string `json:"discriminator"`
	Avatar        *string `json:"avatar"`
	Verified      *bool   `json:"verified"`
	Email         *string `json:"email"`
	Banner        *string `json:"banner"`
}

// DisplayName returns the username, or "Unknown" when Discord did not send one.
func (p UserProfile) DisplayName() string {
	if p.Username == nil || *p.Username == "" {
		return "Unknown"
	}
	return *p.Username
}

// AvatarURL returns the CDN URL of the avatar, or Discord's default avatar.
func (p UserProfile) AvatarURL() string {
	if p.Avatar == nil || *p.Avatar == "" {
		return "https://discord.com/assets/1cbd08c76f8af6dddce02c5138971129.png"
	}
	return "https://cdn.discordapp.com/avatars/" + p.ID + "/" + *p.Avatar
}

// Guild is an entry of /users/@me/guilds.
type Guild struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        *string  `json:"icon"`
	Owner       bool     `json:"owner"`
	Permissions string   `json:"permissions,omitempty"`
	Features    []string `json:"features,omitempty"`
}
