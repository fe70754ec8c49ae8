package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/membrs/membrs/internal/db/models"
	"github.com/membrs/membrs/internal/logging"
)

const (
	defaultUsersLimit = 50
	maxUsersLimit     = 500
)

// AuthenticateHandler answers "Success" once the superuser middleware let the request through.
func AuthenticateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Success"))
	}
}

type updateSuperUserRequest struct {
	NewUsername string `json:"new_username"`
	NewPassword string `json:"new_password"`
}

// UpdateSuperUserHandler replaces the superuser's credentials.
func UpdateSuperUserHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateSuperUserRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if req.NewUsername == "" || req.NewPassword == "" {
			http.Error(w, "new_username and new_password are required", http.StatusBadRequest)
			return
		}
		if err := d.Store.UpdateSuperUser(r.Context(), req.NewUsername, req.NewPassword); err != nil {
			logging.Printf(r.Context(), "❌ Update superuser failed: %v", err)
			http.Error(w, "failed to update username/password", http.StatusInternalServerError)
			return
		}
		logging.Printf(r.Context(), "🔑 Superuser credentials updated")
		w.Write([]byte("Success"))
	}
}

type configResponse struct {
	*models.ApplicationData
	OAuthURL string `json:"oauth_url"`
}

// GetConfigHandler returns the application settings.
func GetConfigHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		app, err := d.Store.GetApplicationData(r.Context())
		if err != nil {
			logging.Printf(r.Context(), "❌ Failed to get settings: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get data")
			return
		}

		resp := configResponse{ApplicationData: app}
		if creds, err := app.Credentials(); err == nil {
			if st, err := d.States.Issue(creds.ClientID, "", 0); err != nil {
				logging.Printf(r.Context(), "⚠️ Failed to sign OAuth state: %v", err)
			} else {
				resp.OAuthURL = d.Exchanger.AuthorizeURL(creds, st)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type setConfigRequest struct {
	BackendURL   *string `json:"backend_url"`
	FrontendURL  *string `json:"frontend_url"`
	BotToken     *string `json:"bot_token"`
	ClientID     *string `json:"client_id"`
	ClientSecret *string `json:"client_secret"`
	RedirectURI  *string `json:"redirect_uri"`
	GuildID      *string `json:"guild_id"`
}

// SetConfigHandler merges the posted settings into the stored ones. Omitted
// or null fields keep their value.
func SetConfigHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req setConfigRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		err := d.Store.SoftUpsertApplicationData(r.Context(), models.ApplicationData{
			BackendURL:   req.BackendURL,
			FrontendURL:  req.FrontendURL,
			BotToken:     req.BotToken,
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			RedirectURI:  req.RedirectURI,
			GuildID:      req.GuildID,
		})
		if err != nil {
			logging.Printf(r.Context(), "❌ Failed to update settings: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to update config")
			return
		}
		logging.Printf(r.Context(), "⚙️ Settings updated")
		writeJSON(w, http.StatusOK, "Updated Config")
	}
}

// ListUsersHandler pages through stored users with ?limit= and ?after= (a user id).
func ListUsersHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := defaultUsersLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			limit = min(n, maxUsersLimit)
		}
		var after uint64
		if v := r.URL.Query().Get("after"); v != "" {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid after")
				return
			}
			after = n
		}

		users, err := d.Store.ListUsersAfter(r.Context(), uint(after), limit)
		if err != nil {
			logging.Printf(r.Context(), "❌ Failed to list users: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to get data")
			return
		}
		if users == nil {
			users = []models.User{}
		}
		writeJSON(w, http.StatusOK, users)
	}
}

// RefreshUserHandler forces a token refresh for one user.
func RefreshUserHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		discordID := chi.URLParam(r, "discordID")

		creds, err := d.Store.ClientCredentials(r.Context())
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}

		tok, err := d.Tokens.RefreshUser(r.Context(), creds, discordID)
		if err != nil {
			logging.Printf(r.Context(), "❌ Refresh for %s failed: %v", discordID, err)
			writeError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"discord_id": discordID,
			"expires_at": tok.ExpiresAt,
		})
	}
}

// BotGuildsHandler lists the guilds the bot is on.
func BotGuildsHandler(d *Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := d.botClient(r.Context())
		if err != nil {
			logging.Printf(r.Context(), "❌ Bot is not set up correctly: %v", err)
			writeError(w, statusFor(err), "Bot is not set up correctly")
			return
		}
		guilds, err := client.Guilds(r.Context())
		if err != nil {
			logging.Printf(r.Context(), "❌ Failed to get guilds: %v", err)
			writeError(w, statusFor(err), "Failed to get guilds")
			return
		}
		writeJSON(w, http.StatusOK, guilds)
	}
}
