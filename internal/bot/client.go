// Package bot talks to Discord with bot credentials: adding OAuth-authorized
// users to a guild and listing the guilds the bot is on.
package bot

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/membrs/membrs/internal/auth/discord"
	"github.com/membrs/membrs/internal/util"
)

// Outcome is the result of a successful add-member call.
type Outcome int

const (
	// AddedToServer means Discord created a new membership (201).
	AddedToServer Outcome = iota + 1
	// AlreadyOnServer means the user was already a member (204).
	AlreadyOnServer
)

func (o Outcome) String() string {
	switch o {
	case AddedToServer:
		return "User successfully added to the server"
	case AlreadyOnServer:
		return "User is already on the server"
	}
	return "unknown"
}

// AddGuildMember describes one membership to create. AccessToken is the
// user's OAuth access token with the guilds.join scope. Optional fields are
// only sent when set.
type AddGuildMember struct {
	GuildID     string
	UserID      string
	AccessToken string
	Nick        *string
	Roles       []string
	Mute        *bool
	Deaf        *bool
}

type addGuildMemberBody struct {
	AccessToken string   `json:"access_token"`
	Nick        *string  `json:"nick,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Mute        *bool    `json:"mute,omitempty"`
	Deaf        *bool    `json:"deaf,omitempty"`
}

// Guild is an entry of the bot's own guild list.
type Guild struct {
	ID          string   `json:"id"`
	Name        *string  `json:"name"`
	Icon        *string  `json:"icon"`
	Owner       *bool    `json:"owner"`
	Permissions *string  `json:"permissions"`
	Features    []string `json:"features"`
}

// Client is a Discord REST client authenticated as a bot.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a bot client. A nil httpClient gets a 30s timeout client.
func NewClient(apiBaseURL, botToken string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    apiBaseURL,
		token:      botToken,
		httpClient: httpClient,
	}
}

// AddGuildMember puts the user into the guild. It does not retry.
func (c *Client) AddGuildMember(ctx context.Context, m AddGuildMember) (Outcome, error) {
	body, err := json.Marshal(addGuildMemberBody{
		AccessToken: m.AccessToken,
		Nick:        m.Nick,
		Roles:       m.Roles,
		Mute:        m.Mute,
		Deaf:        m.Deaf,
	})
	if err != nil {
		return 0, &discord.ParseError{Detail: "failed to encode member body: " + err.Error()}
	}

	path := "/guilds/" + url.PathEscape(m.GuildID) + "/members/" + url.PathEscape(m.UserID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, &discord.RequestError{Detail: "failed to build request: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &discord.RequestError{Detail: "failed to send request: " + err.Error()}
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
		return AddedToServer, nil
	case http.StatusNoContent:
		return AlreadyOnServer, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return 0, &discord.RequestError{
		Status: resp.StatusCode,
		Detail: "failed to add guild member: " + util.TruncateBytes(respBody),
	}
}

// Guilds lists the guilds the bot is a member of.
func (c *Client) Guilds(ctx context.Context) ([]Guild, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/users/@me/guilds", nil)
	if err != nil {
		return nil, &discord.RequestError{Detail: "failed to build request: " + err.Error()}
	}
	req.Header.Set("Authorization", "Bot "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &discord.RequestError{Detail: "failed to send request: " + err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &discord.RequestError{Status: resp.StatusCode, Detail: "get bot guilds: " + util.TruncateBytes(body)}
	}
	if err != nil {
		return nil, &discord.ParseError{Detail: "failed to read response body: " + err.Error()}
	}

	var guilds []Guild
	if err := json.Unmarshal(body, &guilds); err != nil {
		return nil, &discord.ParseError{Detail: "failed to deserialize guilds: " + err.Error()}
	}
	return guilds, nil
}
