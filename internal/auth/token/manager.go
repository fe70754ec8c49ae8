// Package token ties stored users to live OAuth sessions: it rebuilds a
// user's token, refreshes it on demand, writes refreshed tokens back and
// flags users whose grant Discord has revoked.
package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/db/models"
)

// ErrClientRejected is returned when Discord refuses the application's own
// client credentials during a refresh. No user is flagged for it.
var ErrClientRejected = errors.New("discord rejected the client credentials")

// Store is the subset of the user store the manager needs.
type Store interface {
	discord.TokenSaver
	GetUserByDiscordID(ctx context.Context, discordID string) (*models.User, error)
	MarkNeedsReauth(ctx context.Context, discordID string) error
}

// Source hands out a valid access token, refreshing it if needed.
type Source interface {
	ValidToken(ctx context.Context) (discord.OAuthToken, error)
}

// Manager builds persisted sessions for stored users.
type Manager struct {
	store     Store
	exchanger *discord.Exchanger
}

// NewManager creates a new token manager.
func NewManager(store Store, exchanger *discord.Exchanger) *Manager {
	return &Manager{
		store:     store,
		exchanger: exchanger,
	}
}

// Exchanger returns the exchanger sessions are built on.
func (m *Manager) Exchanger() *discord.Exchanger {
	return m.exchanger
}

// SessionFor rebuilds user's token and wraps it in a session that writes
// every refresh back to the store. It fails with discord.ErrNoRefreshToken
// or models.ErrIncompleteToken when the stored row cannot yield a token.
func (m *Manager) SessionFor(ctx context.Context, creds discord.ClientCredentials, user models.User) (Source, error) {
	sess, err := m.session(creds, user)
	if err != nil {
		return nil, err
	}
	return &userSession{Session: sess, manager: m, discordID: user.DiscordID}, nil
}

// RefreshUser forces a refresh of one user's token regardless of expiry.
func (m *Manager) RefreshUser(ctx context.Context, creds discord.ClientCredentials, discordID string) (discord.OAuthToken, error) {
	user, err := m.store.GetUserByDiscordID(ctx, discordID)
	if err != nil {
		return discord.OAuthToken{}, err
	}

	sess, err := m.session(creds, *user)
	if errors.Is(err, discord.ErrNoRefreshToken) {
		m.markNeedsReauth(ctx, discordID, err)
		return discord.OAuthToken{}, err
	}
	if err != nil {
		return discord.OAuthToken{}, err
	}

	tok, err := sess.ForceRefresh(ctx)
	if err != nil {
		return discord.OAuthToken{}, fmt.Errorf("refresh %s: %w", discordID, m.handleRefreshError(ctx, discordID, err))
	}
	return tok, nil
}

func (m *Manager) session(creds discord.ClientCredentials, user models.User) (*discord.Session, error) {
	tok, err := user.Token()
	if err != nil {
		return nil, err
	}
	return discord.NewSession(m.exchanger, creds, tok).PersistTo(user.DiscordID, m.store), nil
}

// handleRefreshError flags the user when their own grant was revoked and
// wraps client credential rejections in ErrClientRejected.
func (m *Manager) handleRefreshError(ctx context.Context, discordID string, err error) error {
	switch {
	case isClientRejection(err):
		log.Printf("❌ Discord rejected the client credentials while refreshing %s: %v", discordID, err)
		return fmt.Errorf("%w: %w", ErrClientRejected, err)
	case isRevokedGrant(err):
		m.markNeedsReauth(ctx, discordID, err)
	default:
		log.Printf("⏳ Transient refresh failure for %s: %v", discordID, err)
	}
	return err
}

func (m *Manager) markNeedsReauth(ctx context.Context, discordID string, cause error) {
	log.Printf("❌ Refresh token rejected for %s: %v", discordID, cause)
	if err := m.store.MarkNeedsReauth(ctx, discordID); err != nil {
		log.Printf("⚠️ Failed to flag %s for re-authorization: %v", discordID, err)
		return
	}
	log.Printf("🔒 User %s marked as needing re-authorization", discordID)
}

// userSession flags the user for re-authorization when a lazy refresh is
// rejected for good.
type userSession struct {
	*discord.Session
	manager   *Manager
	discordID string
}

func (s *userSession) ValidToken(ctx context.Context) (discord.OAuthToken, error) {
	tok, err := s.Session.ValidToken(ctx)
	if err != nil && !errors.Is(err, discord.ErrNoRefreshToken) {
		return tok, s.manager.handleRefreshError(ctx, s.discordID, err)
	}
	return tok, err
}

// isClientRejection reports whether Discord refused the application itself.
// A 401 from the token endpoint means the client authentication failed.
func isClientRejection(err error) bool {
	if discord.StatusCode(err) == http.StatusUnauthorized {
		return true
	}
	return containsAny(err, "invalid_client", "unauthorized_client")
}

// isRevokedGrant reports whether the user's refresh token itself was
// rejected, as opposed to a transport, server or client failure.
func isRevokedGrant(err error) bool {
	return containsAny(err, "invalid_grant")
}

func containsAny(err error, markers ...string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
