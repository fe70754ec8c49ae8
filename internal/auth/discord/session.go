package discord

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/membrs/membrs/internal/util"
)

// TokenSaver persists a refreshed token for a Discord user.
type TokenSaver interface {
	SaveToken(ctx context.Context, discordID string, token OAuthToken) error
}

// Session holds one user's current token and refreshes it lazily, right
// before any call that needs it. There is no background refresh.
type Session struct {
	exchanger *Exchanger
	creds     ClientCredentials

	mu        sync.Mutex
	token     OAuthToken
	discordID string
	saver     TokenSaver
}

// NewSession wraps token for authenticated calls.
func NewSession(exchanger *Exchanger, creds ClientCredentials, token OAuthToken) *Session {
	return &Session{
		exchanger: exchanger,
		creds:     creds,
		token:     token,
	}
}

// PersistTo makes every successful refresh write the new token back for
// discordID before the token is handed to the caller.
func (s *Session) PersistTo(discordID string, saver TokenSaver) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discordID = discordID
	s.saver = saver
	return s
}

// Token returns the current token without refreshing it.
func (s *Session) Token() OAuthToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// ValidToken returns the current token, refreshing it first if it has expired.
func (s *Session) ValidToken(ctx context.Context) (OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.token.Expired(s.exchanger.Now()) {
		return s.token, nil
	}
	if s.token.RefreshToken == "" {
		return OAuthToken{}, ErrNoRefreshToken
	}
	return s.refreshLocked(ctx)
}

// ForceRefresh refreshes the token regardless of its expiry.
func (s *Session) ForceRefresh(ctx context.Context) (OAuthToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.RefreshToken == "" {
		return OAuthToken{}, ErrNoRefreshToken
	}
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) (OAuthToken, error) {
	fresh, err := s.exchanger.Refresh(ctx, s.creds, s.token.RefreshToken)
	if err != nil {
		return OAuthToken{}, err
	}
	s.token = fresh

	if s.saver != nil && s.discordID != "" {
		// The old refresh token may already be revoked, so a failed save
		// must not throw the usable token away.
		if err := s.saver.SaveToken(ctx, s.discordID, fresh); err != nil {
			log.Printf("⚠️ Failed to persist refreshed token for %s: %v", s.discordID, err)
		}
	}

	log.Printf("✅ Refreshed token %s (expires: %s)", util.MaskToken(fresh.AccessToken), fresh.ExpiresAt.Format(time.RFC3339))
	return fresh, nil
}

// Profile fetches /users/@me.
func (s *Session) Profile(ctx context.Context) (UserProfile, error) {
	tok, err := s.ValidToken(ctx)
	if err != nil {
		return UserProfile{}, err
	}
	var profile UserProfile
	if err := s.exchanger.getJSON(ctx, "/users/@me", tok.AccessToken, &profile); err != nil {
		return UserProfile{}, err
	}
	return profile, nil
}

// Guilds fetches /users/@me/guilds.
func (s *Session) Guilds(ctx context.Context) ([]Guild, error) {
	tok, err := s.ValidToken(ctx)
	if err != nil {
		return nil, err
	}
	var guilds []Guild
	if err := s.exchanger.getJSON(ctx, "/users/@me/guilds", tok.AccessToken, &guilds); err != nil {
		return nil, err
	}
	return guilds, nil
}
