package discord

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

var testCreds = ClientCredentials{
	ClientID:     "client-id",
	ClientSecret: "client-secret",
	RedirectURI:  "https://membrs.example/oauth",
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestExchanger(srv *httptest.Server, now func() time.Time) *Exchanger {
	return NewExchanger(Endpoints{
		APIBaseURL:   srv.URL + "/api/v10",
		TokenURL:     srv.URL + "/api/oauth2/token",
		AuthorizeURL: srv.URL + "/oauth2/authorize",
	}, WithHTTPClient(srv.Client()), WithClock(now))
}

func writeTokenJSON(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(body))
}

func TestExchangeCode_UsesBasicAuthAndFixesExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-id" || pass != "client-secret" {
			t.Errorf("expected basic auth with client credentials, got %q/%q ok=%v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if got := r.PostForm.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q", got)
		}
		if got := r.PostForm.Get("code"); got != "the-code" {
			t.Errorf("code = %q", got)
		}
		if got := r.PostForm.Get("redirect_uri"); got != testCreds.RedirectURI {
			t.Errorf("redirect_uri = %q", got)
		}
		writeTokenJSON(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":604800,"refresh_token":"refresh-1","scope":"identify"}`)
	}))
	defer srv.Close()

	issuedAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	ex := newTestExchanger(srv, fixedClock(issuedAt))

	tok, err := ex.ExchangeCode(context.Background(), testCreds, "the-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if tok.AccessToken != "access-1" || tok.RefreshToken != "refresh-1" || tok.TokenType != "Bearer" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if want := issuedAt.Add(604800 * time.Second); !tok.ExpiresAt.Equal(want) {
		t.Fatalf("ExpiresAt = %v, want %v", tok.ExpiresAt, want)
	}
}

func TestRefresh_SendsClientCredentialsAsFormFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); ok {
			t.Errorf("refresh must not use basic auth")
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		want := map[string]string{
			"grant_type":    "refresh_token",
			"refresh_token": "refresh-1",
			"client_id":     "client-id",
			"client_secret": "client-secret",
		}
		for k, v := range want {
			if got := r.PostForm.Get(k); got != v {
				t.Errorf("%s = %q, want %q", k, got, v)
			}
		}
		writeTokenJSON(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600,"refresh_token":"refresh-2"}`)
	}))
	defer srv.Close()

	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	tok, err := newTestExchanger(srv, fixedClock(now)).Refresh(context.Background(), testCreds, "refresh-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.AccessToken != "access-2" || tok.RefreshToken != "refresh-2" {
		t.Fatalf("unexpected token: %+v", tok)
	}
	if !tok.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("ExpiresAt = %v, want %v", tok.ExpiresAt, now.Add(time.Hour))
	}
}

func TestRefresh_KeepsRefreshTokenWhenNotRotated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTokenJSON(w, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)
	}))
	defer srv.Close()

	tok, err := newTestExchanger(srv, time.Now).Refresh(context.Background(), testCreds, "refresh-1")
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tok.RefreshToken != "refresh-1" {
		t.Fatalf("RefreshToken = %q, want the previous one", tok.RefreshToken)
	}
}

func TestRefresh_WithoutRefreshToken(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	_, err := newTestExchanger(srv, time.Now).Refresh(context.Background(), testCreds, "")
	if !errors.Is(err, ErrNoRefreshToken) {
		t.Fatalf("expected ErrNoRefreshToken, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("no request should be sent without a refresh token")
	}
}

func TestExchangeCode_InvalidSecretIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer srv.Close()

	_, err := newTestExchanger(srv, time.Now).ExchangeCode(context.Background(), testCreds, "code")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if reqErr.Status != http.StatusUnauthorized {
		t.Fatalf("Status = %d, want 401", reqErr.Status)
	}
	if !strings.Contains(err.Error(), "401") {
		t.Fatalf("error should mention 401: %v", err)
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Fatalf("StatusCode() = %d", StatusCode(err))
	}
}

func TestExchangeCode_MalformedBodyIsParseError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeTokenJSON(w, `{"access_token":`)
	}))
	defer srv.Close()

	_, err := newTestExchanger(srv, time.Now).ExchangeCode(context.Background(), testCreds, "code")
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %T %v", err, err)
	}
}

func TestExchangeCode_TransportFailureIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ex := newTestExchanger(srv, time.Now)
	srv.Close()

	_, err := ex.ExchangeCode(context.Background(), testCreds, "code")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected RequestError, got %T %v", err, err)
	}
	if reqErr.Status != 0 {
		t.Fatalf("transport failures carry no status, got %d", reqErr.Status)
	}
}

func TestAuthorizeURL(t *testing.T) {
	ex := NewExchanger(DefaultEndpoints())
	got := ex.AuthorizeURL(testCreds, "state-123")

	for _, want := range []string{
		DefaultAuthorizeURL + "?",
		"client_id=client-id",
		"response_type=code",
		"redirect_uri=https%3A%2F%2Fmembrs.example%2Foauth",
		"scope=email+identify+guilds+guilds.join",
		"state=state-123",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("AuthorizeURL() = %q, missing %q", got, want)
		}
	}
}

func TestClientCredentialsValidate(t *testing.T) {
	err := ClientCredentials{ClientID: "id", RedirectURI: "uri"}.Validate()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "client_secret" {
		t.Fatalf("expected missing client_secret, got %v", err)
	}
	if err := testCreds.Validate(); err != nil {
		t.Fatalf("complete credentials should validate: %v", err)
	}
}
