// Package blizzard provides a client for the Battle.net World of Warcraft
// profile and game-data APIs.
package blizzard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/groster/groster/internal/resilience"
)

// Regions are the supported Battle.net API regions.
var Regions = []string{"us", "eu", "kr", "tw", "cn"}

// DefaultRateLimit stays under the documented 100 requests per second.
const DefaultRateLimit = 90.0

const userAgent = "groster/1.0"

// ErrNotFound is returned when the API answers 404, e.g. for characters
// that were deleted, renamed or have never logged in.
var ErrNotFound = eris.New("blizzard: not found")

// Client defines the Battle.net operations used by the roster service.
// Every payload keeps the raw JSON it was decoded from in its Raw field.
type Client interface {
	GuildRoster(ctx context.Context, realm, guild string) (*GuildRoster, error)
	CharacterProfile(ctx context.Context, realm, name string) (*CharacterProfile, error)
	CharacterAchievements(ctx context.Context, realm, name string) (*Achievements, error)
	CharacterPets(ctx context.Context, realm, name string) (*Collection, error)
	CharacterMounts(ctx context.Context, realm, name string) (*Collection, error)
	PlayableClasses(ctx context.Context) ([]Ref, error)
	PlayableRaces(ctx context.Context) ([]Ref, error)
}

// Option configures the Battle.net client.
type Option func(*httpClient)

// WithBaseURL overrides the API host (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithOAuthURL overrides the OAuth host (for testing).
func WithOAuthURL(u string) Option {
	return func(c *httpClient) {
		c.oauthURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithLocale sets the response locale, e.g. "en_US".
func WithLocale(locale string) Option {
	return func(c *httpClient) {
		c.locale = locale
	}
}

// WithRateLimit sets the initial and maximum requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = newAdaptiveLimiter(rps)
		}
	}
}

// WithRetry sets the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

// WithCircuitBreaker sets the breaker guarding the API host.
func WithCircuitBreaker(cfg resilience.CircuitBreakerConfig) Option {
	return func(c *httpClient) {
		c.breaker = resilience.NewCircuitBreaker(cfg)
	}
}

type httpClient struct {
	clientID     string
	clientSecret string
	region       string
	locale       string
	baseURL      string
	oauthURL     string
	http         *http.Client
	limiter      *adaptiveLimiter
	retry        resilience.RetryConfig
	breaker      *resilience.CircuitBreaker

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

// NewClient creates a Battle.net client for one region.
func NewClient(clientID, clientSecret, region string, opts ...Option) (Client, error) {
	if clientID == "" || clientSecret == "" {
		return nil, eris.New("blizzard: client id and secret are required")
	}
	region = strings.ToLower(region)
	if !slices.Contains(Regions, region) {
		return nil, eris.Errorf("blizzard: unsupported region %q (supported: %s)", region, strings.Join(Regions, ", "))
	}

	c := &httpClient{
		clientID:     clientID,
		clientSecret: clientSecret,
		region:       region,
		locale:       "en_US",
		baseURL:      apiHost(region),
		oauthURL:     oauthHost(region),
		http: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: newAdaptiveLimiter(DefaultRateLimit),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("blizzard", "get")
	}
	return c, nil
}

func apiHost(region string) string {
	if region == "cn" {
		return "https://gateway.battlenet.com.cn"
	}
	return "https://" + region + ".api.blizzard.com"
}

func oauthHost(region string) string {
	if region == "cn" {
		return "https://oauth.battlenet.com.cn"
	}
	return "https://oauth.battle.net"
}

// accessToken returns the cached token, fetching a new one when it is
// missing or within a minute of expiry.
func (c *httpClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauthURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "blizzard: create token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	zap.L().Debug("blizzard: requesting access token", zap.String("region", c.region))
	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "blizzard: token request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "blizzard: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("blizzard: token request status %d: %s", resp.StatusCode, truncate(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "blizzard: decode token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("blizzard: access_token missing from token response")
	}
	if tok.ExpiresIn <= 0 {
		tok.ExpiresIn = 3600
	}

	c.token = tok.AccessToken
	c.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn-60) * time.Second)
	return c.token, nil
}

// get fetches path with namespace and locale parameters. Transient failures
// are retried through the circuit breaker.
func (c *httpClient) get(ctx context.Context, path, namespace string) ([]byte, error) {
	q := url.Values{
		"namespace": {namespace + "-" + c.region},
		"locale":    {c.locale},
	}
	reqURL := c.baseURL + "/" + strings.TrimLeft(path, "/") + "?" + q.Encode()

	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, reqURL)
		})
	})
}

func (c *httpClient) do(ctx context.Context, reqURL string) ([]byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "blizzard: rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "blizzard: create request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", strings.ReplaceAll(c.locale, "_", "-"))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "blizzard: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "blizzard: read response body"), resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		c.limiter.onSuccess()
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		c.limiter.onRateLimit()
	}

	statusErr := eris.Errorf("blizzard: status %d: %s", resp.StatusCode, truncate(body))
	if te := resilience.FromResponse(resp, statusErr); te != nil {
		return nil, te
	}
	return nil, statusErr
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

func decode[T any](raw []byte, v *T, what string) (*T, error) {
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, eris.Wrapf(err, "blizzard: decode %s", what)
	}
	return v, nil
}

func characterPath(realm, name, suffix string) string {
	p := "profile/wow/character/" + url.PathEscape(strings.ToLower(realm)) + "/" + url.PathEscape(strings.ToLower(name))
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func (c *httpClient) GuildRoster(ctx context.Context, realm, guild string) (*GuildRoster, error) {
	raw, err := c.get(ctx, "data/wow/guild/"+url.PathEscape(realm)+"/"+url.PathEscape(guild)+"/roster", "profile")
	if err != nil {
		return nil, eris.Wrapf(err, "blizzard: guild roster %s/%s", realm, guild)
	}
	out, err := decode(raw, &GuildRoster{}, "guild roster")
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func (c *httpClient) CharacterProfile(ctx context.Context, realm, name string) (*CharacterProfile, error) {
	raw, err := c.get(ctx, characterPath(realm, name, ""), "profile")
	if err != nil {
		return nil, eris.Wrapf(err, "blizzard: character profile %s/%s", realm, name)
	}
	out, err := decode(raw, &CharacterProfile{}, "character profile")
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func (c *httpClient) CharacterAchievements(ctx context.Context, realm, name string) (*Achievements, error) {
	raw, err := c.get(ctx, characterPath(realm, name, "achievements"), "profile")
	if err != nil {
		return nil, eris.Wrapf(err, "blizzard: character achievements %s/%s", realm, name)
	}
	out, err := decode(raw, &Achievements{}, "character achievements")
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func (c *httpClient) CharacterPets(ctx context.Context, realm, name string) (*Collection, error) {
	return c.collection(ctx, realm, name, "pets")
}

func (c *httpClient) CharacterMounts(ctx context.Context, realm, name string) (*Collection, error) {
	return c.collection(ctx, realm, name, "mounts")
}

func (c *httpClient) collection(ctx context.Context, realm, name, kind string) (*Collection, error) {
	raw, err := c.get(ctx, characterPath(realm, name, "collections/"+kind), "profile")
	if err != nil {
		return nil, eris.Wrapf(err, "blizzard: character %s %s/%s", kind, realm, name)
	}
	out, err := decode(raw, &Collection{}, "character "+kind)
	if err != nil {
		return nil, err
	}
	out.Raw = raw
	return out, nil
}

func (c *httpClient) PlayableClasses(ctx context.Context) ([]Ref, error) {
	raw, err := c.get(ctx, "data/wow/playable-class/index", "static")
	if err != nil {
		return nil, eris.Wrap(err, "blizzard: playable classes")
	}
	idx, err := decode(raw, &classIndex{}, "playable classes")
	if err != nil {
		return nil, err
	}
	return idx.Classes, nil
}

func (c *httpClient) PlayableRaces(ctx context.Context) ([]Ref, error) {
	raw, err := c.get(ctx, "data/wow/playable-race/index", "static")
	if err != nil {
		return nil, eris.Wrap(err, "blizzard: playable races")
	}
	idx, err := decode(raw, &raceIndex{}, "playable races")
	if err != nil {
		return nil, err
	}
	return idx.Races, nil
}
