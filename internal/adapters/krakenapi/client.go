// Package krakenapi is a minimal Kraken REST client covering the private
// history endpoints (TradesHistory, Ledgers) and the public OHLC price lookup.
// Transient transport failures are retried with exponential backoff.
package krakenapi

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jpillora/backoff"

	"cryptoPnlCalc/internal/domain"
	"cryptoPnlCalc/internal/ports"
)

const (
	defaultBaseURL = "https://api.kraken.com"

	pathTradesHistory = "/0/private/TradesHistory"
	pathLedgers       = "/0/private/Ledgers"
	pathOHLC          = "/0/public/OHLC"

	// PageSize is how many entries the private history endpoints return per page.
	PageSize = 50
)

// Client calls the Kraken REST API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	secret     []byte
	logger     ports.Logger
	maxRetries int
	retryMin   time.Duration
	retryMax   time.Duration
}

// Config holds configuration for the Kraken client.
type Config struct {
	APIKey     string
	APISecret  string // base64-encoded, as issued by Kraken
	Logger     ports.Logger
	BaseURL    string        // overridable for tests
	HTTPClient *http.Client  // optional; a 30s-timeout client is used when nil
	MaxRetries int           // attempts per call, default 3
	RetryMin   time.Duration // initial backoff delay, default 1s
	RetryMax   time.Duration // backoff ceiling, default 15s
}

// New creates a Kraken client. Private endpoints require both API key and
// secret; the public price lookup works without them.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for the Kraken client")
	}
	var secret []byte
	if cfg.APISecret != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.APISecret)
		if err != nil {
			return nil, fmt.Errorf("%w: API secret is not valid base64", ports.ErrConfigurationError)
		}
		secret = decoded
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryMin := cfg.RetryMin
	if retryMin <= 0 {
		retryMin = time.Second
	}
	retryMax := cfg.RetryMax
	if retryMax <= 0 {
		retryMax = 15 * time.Second
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		secret:     secret,
		logger:     cfg.Logger,
		maxRetries: maxRetries,
		retryMin:   retryMin,
		retryMax:   retryMax,
	}, nil
}

// FetchHistory implements ports.LedgerAPI: one page of the trading or staking
// history at the given offset, keyed by ref id.
func (c *Client) FetchHistory(ctx context.Context, ledgerType domain.LedgerType, offset int) (map[string]domain.LedgerEntry, error) {
	switch ledgerType {
	case domain.LedgerTrading:
		return c.TradesHistory(ctx, offset)
	case domain.LedgerStaking:
		return c.Ledgers(ctx, "staking", offset)
	default:
		return nil, fmt.Errorf("%w: unknown ledger type %q", ports.ErrInvalidRequest, ledgerType)
	}
}

// TradesHistory returns one 50-entry page of the account's trade history.
func (c *Client) TradesHistory(ctx context.Context, offset int) (map[string]domain.LedgerEntry, error) {
	raw, err := c.callPrivate(ctx, pathTradesHistory, url.Values{"ofs": {strconv.Itoa(offset)}})
	if err != nil {
		return nil, err
	}
	var result struct {
		Trades map[string]domain.LedgerEntry `json:"trades"`
		Count  int                           `json:"count"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding trades history: %w", err)
	}
	return result.Trades, nil
}

// Ledgers returns one 50-entry page of ledger entries of the given type
// (e.g. "staking").
func (c *Client) Ledgers(ctx context.Context, ledgerType string, offset int) (map[string]domain.LedgerEntry, error) {
	raw, err := c.callPrivate(ctx, pathLedgers, url.Values{
		"type": {ledgerType},
		"ofs":  {strconv.Itoa(offset)},
	})
	if err != nil {
		return nil, err
	}
	var result struct {
		Ledger map[string]domain.LedgerEntry `json:"ledger"`
		Count  int                           `json:"count"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding ledgers: %w", err)
	}
	return result.Ledger, nil
}

// Price returns the daily close price of pair for the first OHLC candle at or
// after the given time.
func (c *Client) Price(ctx context.Context, pair string, at time.Time) (float64, error) {
	query := url.Values{
		"pair":     {pair},
		"interval": {"1440"},
		"since":    {strconv.FormatInt(at.Unix(), 10)},
	}
	raw, err := c.callPublic(ctx, pathOHLC, query)
	if err != nil {
		return 0, err
	}

	var result map[string]json.RawMessage
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("decoding OHLC response: %w", err)
	}
	for key, value := range result {
		if key == "last" {
			continue
		}
		var candles [][]interface{}
		if err := json.Unmarshal(value, &candles); err != nil {
			return 0, fmt.Errorf("decoding OHLC candles for %s: %w", pair, err)
		}
		if len(candles) == 0 || len(candles[0]) < 5 {
			return 0, fmt.Errorf("%w: no OHLC data for %s", ports.ErrNotFound, pair)
		}
		closeStr, ok := candles[0][4].(string)
		if !ok {
			return 0, fmt.Errorf("unexpected OHLC close type for %s", pair)
		}
		price, err := strconv.ParseFloat(closeStr, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing OHLC close for %s: %w", pair, err)
		}
		return price, nil
	}
	return 0, fmt.Errorf("%w: no OHLC data for %s", ports.ErrNotFound, pair)
}

// sign computes the API-Sign header: HMAC-SHA512 of the URI path concatenated
// with SHA256(nonce + urlencoded body), keyed with the decoded API secret.
func (c *Client) sign(path, nonce string, body url.Values) string {
	digest := sha256.Sum256([]byte(nonce + body.Encode()))
	mac := hmac.New(sha512.New, c.secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (c *Client) callPrivate(ctx context.Context, path string, data url.Values) (json.RawMessage, error) {
	if c.apiKey == "" || len(c.secret) == 0 {
		return nil, fmt.Errorf("%w: API key and secret are required for %s", ports.ErrAuthenticationFailed, path)
	}
	nonce := strconv.FormatInt(time.Now().UnixMilli(), 10)
	data.Set("nonce", nonce)

	request := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
			strings.NewReader(data.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("API-Key", c.apiKey)
		req.Header.Set("API-Sign", c.sign(path, nonce, data))
		return req, nil
	}
	return c.do(ctx, path, request)
}

func (c *Client) callPublic(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	request := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet,
			c.baseURL+path+"?"+query.Encode(), nil)
	}
	return c.do(ctx, path, request)
}

// do runs one API call with retries. Transport errors and 5xx responses are
// retried; Kraken application errors are not.
func (c *Client) do(ctx context.Context, path string, request func(ctx context.Context) (*http.Request, error)) (json.RawMessage, error) {
	b := &backoff.Backoff{Min: c.retryMin, Max: c.retryMax, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := request(ctx)
		if err != nil {
			return nil, err
		}

		raw, retryable, err := c.roundTrip(req, path)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
		if attempt == c.maxRetries {
			break
		}

		delay := b.Duration()
		c.logger.Warn(ctx, "Kraken API call failed, retrying", map[string]interface{}{
			"path":    path,
			"attempt": attempt,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ports.ErrExchangeUnavailable, path, lastErr)
}

func (c *Client) roundTrip(req *http.Request, path string) (json.RawMessage, bool, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, true, fmt.Errorf("%s returned HTTP %d", path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("%w: %s returned HTTP %d", ports.ErrInvalidRequest, path, resp.StatusCode)
	}

	var envelope struct {
		Error  []string        `json:"error"`
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, false, fmt.Errorf("decoding %s response: %w", path, err)
	}
	if len(envelope.Error) > 0 {
		return nil, false, c.mapAPIError(path, envelope.Error)
	}
	return envelope.Result, false, nil
}

func (c *Client) mapAPIError(path string, apiErrors []string) error {
	joined := strings.Join(apiErrors, "; ")
	switch {
	case strings.Contains(joined, "EAPI:Rate limit"):
		return fmt.Errorf("%w: %s", ports.ErrRateLimited, joined)
	case strings.Contains(joined, "EAPI:Invalid key"), strings.Contains(joined, "EAPI:Invalid signature"):
		return fmt.Errorf("%w: %s", ports.ErrAuthenticationFailed, joined)
	default:
		return fmt.Errorf("%w: %s: %s", ports.ErrInvalidRequest, path, joined)
	}
}
