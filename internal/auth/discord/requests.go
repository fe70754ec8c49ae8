package discord

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/membrs/membrs/internal/util"
)

// getJSON issues a bearer-authenticated GET against the Discord API and
// decodes the response into out.
func (e *Exchanger) getJSON(ctx context.Context, path, accessToken string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoints.APIBaseURL+path, nil)
	if err != nil {
		return &RequestError{Detail: "failed to build request: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return &RequestError{Detail: "failed to send request: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{Status: resp.StatusCode, Detail: "GET " + path + ": " + util.TruncateLog(string(body), 256)}
	}
	if err != nil {
		return &ParseError{Detail: "failed to read response body: " + err.Error()}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Detail: "failed to parse response: " + err.Error()}
	}
	return nil
}
