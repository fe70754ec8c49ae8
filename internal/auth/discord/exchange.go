package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/membrs/membrs/internal/util"
	"golang.org/x/oauth2"
)

// Exchanger turns authorization codes and refresh tokens into OAuthTokens and
// performs bearer-authenticated calls on behalf of a user.
type Exchanger struct {
	endpoints  Endpoints
	httpClient *http.Client
	now        func() time.Time
}

// Option configures an Exchanger.
type Option func(*Exchanger)

// WithHTTPClient sets the HTTP client used for every Discord call.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Exchanger) {
		if c != nil {
			e.httpClient = c
		}
	}
}

// WithClock replaces time.Now, used to derive absolute expiries.
func WithClock(now func() time.Time) Option {
	return func(e *Exchanger) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExchanger creates an Exchanger talking to the given endpoints.
func NewExchanger(endpoints Endpoints, opts ...Option) *Exchanger {
	e := &Exchanger{
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the exchanger's notion of the current time.
func (e *Exchanger) Now() time.Time {
	return e.now()
}

// ExchangeCode trades an authorization code for a token.
func (e *Exchanger) ExchangeCode(ctx context.Context, creds ClientCredentials, code string) (OAuthToken, error) {
	cfg := e.oauthConfig(creds, oauth2.AuthStyleInHeader)
	tok, err := cfg.Exchange(e.clientContext(ctx), code)
	if err != nil {
		return OAuthToken{}, classifyTokenError("token request", err)
	}
	return e.fromOAuth2(tok), nil
}

// Refresh trades a refresh token for a new token. If Discord does not rotate
// the refresh token, the old one is kept.
func (e *Exchanger) Refresh(ctx context.Context, creds ClientCredentials, refreshToken string) (OAuthToken, error) {
	if refreshToken == "" {
		return OAuthToken{}, ErrNoRefreshToken
	}
	cfg := e.oauthConfig(creds, oauth2.AuthStyleInParams)
	tok, err := cfg.TokenSource(e.clientContext(ctx), &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return OAuthToken{}, classifyTokenError("refresh request", err)
	}
	out := e.fromOAuth2(tok)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (e *Exchanger) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, e.httpClient)
}

// fromOAuth2 fixes the absolute expiry at parse time from the wire
// expires_in value, never from the library's own Expiry.
func (e *Exchanger) fromOAuth2(tok *oauth2.Token) OAuthToken {
	return OAuthToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    e.now().Add(expiresIn(tok)),
		RefreshToken: tok.RefreshToken,
	}
}

func expiresIn(tok *oauth2.Token) time.Duration {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return time.Duration(math.Round(v)) * time.Second
	case int64:
		return time.Duration(v) * time.Second
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	if tok.ExpiresIn > 0 {
		return time.Duration(tok.ExpiresIn) * time.Second
	}
	return 0
}

// classifyTokenError maps oauth2 errors onto RequestError / ParseError.
func classifyTokenError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		detail := op + " failed"
		if retrieveErr.ErrorCode != "" {
			detail += ": " + retrieveErr.ErrorCode
		} else if len(retrieveErr.Body) > 0 {
			detail += ": " + util.TruncateLog(string(retrieveErr.Body), 256)
		}
		return &RequestError{Status: status, Detail: detail}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Detail: fmt.Sprintf("failed to send %s: %v", op, err)}
	}

	return &ParseError{Detail: fmt.Sprintf("failed to parse %s response: %v", op, err)}
}
