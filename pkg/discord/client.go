// Package discord provides the interaction wire types and a small REST
// client for registering guild slash commands.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/groster/groster/internal/resilience"
)

// DefaultBaseURL is the Discord REST API root.
const DefaultBaseURL = "https://discord.com/api/v10"

// Client registers application commands.
type Client interface {
	RegisterGuildCommand(ctx context.Context, cmd ApplicationCommand) (*ApplicationCommand, error)
}

// Option configures the Discord client.
type Option func(*httpClient)

// WithBaseURL overrides the API root (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	appID    string
	guildID  string
	botToken string
	baseURL  string
	http     *http.Client
	retry    resilience.RetryConfig
}

// NewClient creates a Discord client for one application and guild.
func NewClient(appID, guildID, botToken string, opts ...Option) (Client, error) {
	if appID == "" || guildID == "" || botToken == "" {
		return nil, eris.New("discord: app id, guild id and bot token are required")
	}
	c := &httpClient{
		appID:    appID,
		guildID:  guildID,
		botToken: botToken,
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: 30 * time.Second},
		retry:    resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("discord", "register")
	}
	return c, nil
}

// RegisterGuildCommand creates or updates a guild command. Discord matches
// an existing command by name, so registering twice is safe.
func (c *httpClient) RegisterGuildCommand(ctx context.Context, cmd ApplicationCommand) (*ApplicationCommand, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, eris.Wrap(err, "discord: marshal command")
	}
	reqURL := c.baseURL + "/applications/" + c.appID + "/guilds/" + c.guildID + "/commands"

	raw, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.post(ctx, reqURL, body)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "discord: register command %s", cmd.Name)
	}

	var out ApplicationCommand
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "discord: decode command")
	}
	return &out, nil
}

func (c *httpClient) post(ctx context.Context, reqURL string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "discord: create request")
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "discord: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "discord: read response body"), resp.StatusCode)
	}
	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return respBody, nil
	}

	statusErr := eris.Errorf("discord: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	if te := resilience.FromResponse(resp, statusErr); te != nil {
		return nil, te
	}
	return nil, statusErr
}
