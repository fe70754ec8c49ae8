package handlers

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/auth/state"
	"github.com/membrs/membrs/internal/bot"
	"github.com/membrs/membrs/internal/db/models"
	"github.com/membrs/membrs/internal/logging"
	"github.com/membrs/membrs/internal/util"
)

const (
	// StateCookie holds the nonce binding a /oauth/url state to the browser.
	StateCookie = "membrs_oauth_state"
	// StateTTL bounds how long a /oauth/url state stays valid.
	StateTTL = 10 * time.Minute
)

// OAuthURLHandler redirects to Discord's consent page for the configured
// application with a short-lived state bound to a cookie.
func OAuthURLHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		app, err := d.Store.GetApplicationData(ctx)
		if err != nil {
			logging.Printf(ctx, "❌ Failed to load settings: %v", err)
			d.fail(w, r, nil, "unknown_error")
			return
		}
		creds, err := app.Credentials()
		if err != nil {
			logging.Printf(ctx, "❌ OAuth URL unavailable: %v", err)
			d.fail(w, r, app, errorCode(err))
			return
		}

		nonce := uuid.NewString()
		st, err := d.States.Issue(creds.ClientID, nonce, StateTTL)
		if err != nil {
			logging.Printf(ctx, "❌ Failed to sign OAuth state: %v", err)
			d.fail(w, r, app, "unknown_error")
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     StateCookie,
			Value:    nonce,
			Path:     "/oauth",
			MaxAge:   int(StateTTL / time.Second),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, d.Exchanger.AuthorizeURL(creds, st), http.StatusTemporaryRedirect)
	}
}

// OAuthCallbackHandler completes the OAuth flow: it exchanges the code,
// stores the user and adds them to the configured guild, then redirects to
// the frontend's /complete page. It never retries.
func OAuthCallbackHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		app, err := d.Store.GetApplicationData(ctx)
		if err != nil {
			logging.Printf(ctx, "❌ Failed to load settings: %v", err)
			d.fail(w, r, nil, "unknown_error")
			return
		}

		if e := q.Get("error"); e != "" {
			logging.Printf(ctx, "⚠️ Discord returned error on callback: %s", e)
			d.fail(w, r, app, e)
			return
		}

		creds, err := app.Credentials()
		if err != nil {
			logging.Printf(ctx, "❌ OAuth callback: %v", err)
			d.fail(w, r, app, errorCode(err))
			return
		}
		if err := d.checkState(w, r, creds.ClientID); err != nil {
			logging.Printf(ctx, "⚠️ OAuth callback with invalid state: %v", err)
			d.fail(w, r, app, "invalid_state")
			return
		}
		botToken, err := models.Require("bot_token", app.BotToken)
		if err != nil {
			logging.Printf(ctx, "❌ Bot is not set up correctly. Please visit the admin dashboard.")
			d.fail(w, r, app, "bot_setup_not_completed")
			return
		}
		code := q.Get("code")
		if code == "" {
			logging.Printf(ctx, "❌ Authorization code not found in query parameters")
			d.fail(w, r, app, "authorization_code_not_found")
			return
		}

		tok, err := d.Exchanger.ExchangeCode(ctx, creds, code)
		if err != nil {
			logging.Printf(ctx, "❌ Code exchange failed: %v", err)
			d.fail(w, r, app, errorCode(err))
			return
		}

		profile, err := discord.NewSession(d.Exchanger, creds, tok).Profile(ctx)
		if err != nil {
			logging.Printf(ctx, "❌ Failed to fetch profile: %v", err)
			d.fail(w, r, app, errorCode(err))
			return
		}
		logging.Printf(ctx, "👤 Authorized %s (%s), token %s", profile.DisplayName(), profile.ID, util.MaskToken(tok.AccessToken))

		user := models.FromProfile(profile, tok)
		if err := d.Store.UpsertUser(ctx, &user); err != nil {
			logging.Printf(ctx, "⚠️ Failed to store user %s: %v", profile.ID, err)
		}

		guildID, err := models.Require("guild_id", app.GuildID)
		if err != nil {
			logging.Printf(ctx, "❌ Guild ID not found")
			d.fail(w, r, app, "missing_guild_id")
			return
		}

		outcome, err := d.Bot(botToken).AddGuildMember(ctx, bot.AddGuildMember{
			GuildID:     guildID,
			UserID:      profile.ID,
			AccessToken: tok.AccessToken,
		})
		if err != nil {
			logging.Printf(ctx, "❌ Failed to add guild member %s: %v", profile.ID, err)
			d.fail(w, r, app, "add_guild_member_failed")
			return
		}
		logging.Printf(ctx, "✅ %s: %s", profile.DisplayName(), outcome)

		http.Redirect(w, r, d.completeURL(app, "status=complete&username="+url.QueryEscape(profile.DisplayName())), http.StatusTemporaryRedirect)
	}
}

// checkState verifies the callback's state. States issued with a nonce
// also need the matching cookie, which is cleared either way.
func (d *Deps) checkState(w http.ResponseWriter, r *http.Request, clientID string) error {
	nonce, err := d.States.Verify(r.URL.Query().Get("state"), clientID)
	if err != nil {
		return err
	}
	if nonce == "" {
		return nil
	}

	http.SetCookie(w, &http.Cookie{Name: StateCookie, Value: "", Path: "/oauth", MaxAge: -1, HttpOnly: true})
	c, err := r.Cookie(StateCookie)
	if err != nil {
		return fmt.Errorf("%w: missing state cookie", state.ErrInvalid)
	}
	if subtle.ConstantTimeCompare([]byte(c.Value), []byte(nonce)) != 1 {
		return fmt.Errorf("%w: state cookie mismatch", state.ErrInvalid)
	}
	return nil
}

func (d *Deps) fail(w http.ResponseWriter, r *http.Request, app *models.ApplicationData, code string) {
	http.Redirect(w, r, d.completeURL(app, "status=failed&error="+url.QueryEscape(code)), http.StatusTemporaryRedirect)
}

func (d *Deps) completeURL(app *models.ApplicationData, query string) string {
	base := d.FrontendURL
	if app != nil && app.FrontendURL != nil && *app.FrontendURL != "" {
		base = *app.FrontendURL
	}
	return strings.TrimSuffix(base, "/") + "/complete?" + query
}

// errorCode turns an error into the short code shown on the /complete page.
func errorCode(err error) string {
	var cfgErr *discord.ConfigurationError
	var reqErr *discord.RequestError
	var parseErr *discord.ParseError
	switch {
	case errors.As(err, &cfgErr):
		return cfgErr.Field + "_not_found"
	case errors.Is(err, discord.ErrNoRefreshToken):
		return "no_refresh_token"
	case errors.As(err, &reqErr):
		return "request_error"
	case errors.As(err, &parseErr):
		return "parse_error"
	}
	return "unknown_error"
}
