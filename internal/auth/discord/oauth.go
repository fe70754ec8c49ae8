package discord

import (
	"golang.org/x/oauth2"
)

// Public Discord endpoints. All of them can be overridden through Endpoints,
// which is how tests point the client at an httptest server.
const (
	DefaultAPIBaseURL   = "https://discord.com/api/v10"
	DefaultTokenURL     = "https://discord.com/api/oauth2/token"
	DefaultAuthorizeURL = "https://discord.com/oauth2/authorize"
)

// Scopes requested during the consent flow. guilds.join is what lets the bot
// add the user to a guild later on.
var Scopes = []string{
	"email",
	"identify",
	"guilds",
	"guilds.join",
}

// Endpoints groups the Discord URLs the OAuth client talks to.
type Endpoints struct {
	APIBaseURL   string
	TokenURL     string
	AuthorizeURL string
}

// DefaultEndpoints returns the production Discord endpoints.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		APIBaseURL:   DefaultAPIBaseURL,
		TokenURL:     DefaultTokenURL,
		AuthorizeURL: DefaultAuthorizeURL,
	}
}

// oauthConfig returns the oauth2 config for the given credentials. Code
// exchange authenticates with HTTP Basic auth, refresh sends the client
// credentials as form fields.
func (e *Exchanger) oauthConfig(creds ClientCredentials, style oauth2.AuthStyle) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		RedirectURL:  creds.RedirectURI,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   e.endpoints.AuthorizeURL,
			TokenURL:  e.endpoints.TokenURL,
			AuthStyle: style,
		},
	}
}

// AuthorizeURL builds the consent URL users are sent to. state is echoed back
// on the callback and must be verified there.
func (e *Exchanger) AuthorizeURL(creds ClientCredentials, state string) string {
	return e.oauthConfig(creds, oauth2.AuthStyleInHeader).AuthCodeURL(state)
}
