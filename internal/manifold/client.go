// Package manifold wraps the Manifold Markets API: reads go through the
// mango client, while the resolution endpoints (which mango does not cover)
// are called directly with the same API key.
package manifold

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonnyspicer/mango"
	"golang.org/x/time/rate"

	"marketkeeper/internal/value"
)

const (
	apiBase   = "https://api.manifold.markets/v0"
	envAPIKey = "MANIFOLD_API_KEY"
)

// APIError reports a failed call against the Manifold API.
type APIError struct {
	Op     string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("manifold: %s: status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("manifold: %s: %s", e.Op, e.Detail)
}

// MarketSource fetches market snapshots. Rules that reference other markets
// depend on this rather than on the concrete client, so tests can stub it.
type MarketSource interface {
	MarketByID(ctx context.Context, id string) (*MarketData, error)
}

// UserSource fetches per-user statistics.
type UserSource interface {
	UserStats(ctx context.Context, username string) (*UserStats, error)
}

// Timeframe selects which bucket of a user statistic to read.
type Timeframe string

const (
	AllTime Timeframe = "allTime"
	Daily   Timeframe = "daily"
	Weekly  Timeframe = "weekly"
	Monthly Timeframe = "monthly"
)

// UserStats holds the cached per-timeframe statistics Manifold reports for a
// user.
type UserStats struct {
	Profit        map[Timeframe]float64
	CreatedVolume map[Timeframe]float64
}

// Client talks to the Manifold API. All calls share a rate limiter so a scan
// over many tracked markets cannot trip the platform's request limits.
type Client struct {
	mc      *mango.Client
	http    *http.Client
	base    string
	apiKey  string
	limiter *rate.Limiter
}

// NewClient builds a client from the environment. Reads work without an API
// key; resolving, cancelling, and commenting require MANIFOLD_API_KEY.
func NewClient(requestsPerSecond float64) *Client {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 5
	}
	return &Client{
		mc:      mango.DefaultClientInstance(),
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    apiBase,
		apiKey:  os.Getenv(envAPIKey),
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 10),
	}
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// MarketByID fetches a full market snapshot.
func (c *Client) MarketByID(ctx context.Context, id string) (*MarketData, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	m, err := c.mc.GetMarketByID(id)
	if err != nil {
		return nil, fmt.Errorf("getting market %s: %w", id, err)
	}
	if m == nil {
		return nil, &APIError{Op: "get market", Detail: "no market with id " + id}
	}
	data := fromFullMarket(*m)
	if err := c.fillNumericParams(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// MarketBySlug fetches a market by its URL slug.
func (c *Client) MarketBySlug(ctx context.Context, slug string) (*MarketData, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	m, err := c.mc.GetMarketBySlug(slug)
	if err != nil {
		return nil, fmt.Errorf("getting market by slug %s: %w", slug, err)
	}
	if m == nil {
		return nil, &APIError{Op: "get market", Detail: "no market with slug " + slug}
	}
	data := fromFullMarket(*m)
	if err := c.fillNumericParams(ctx, data); err != nil {
		return nil, err
	}
	return data, nil
}

// fillNumericParams decodes the range parameters of a PSEUDO_NUMERIC market
// from the raw market JSON. mango's FullMarket does not carry min, max, or
// isLogScale, and the numeric CPMM conversions cannot run without them.
func (c *Client) fillNumericParams(ctx context.Context, m *MarketData) error {
	if m.OutcomeType != value.PseudoNumeric {
		return nil
	}
	var params struct {
		Min        float64 `json:"min"`
		Max        float64 `json:"max"`
		IsLogScale bool    `json:"isLogScale"`
	}
	if err := c.get(ctx, "/market/"+m.ID, &params); err != nil {
		return fmt.Errorf("getting numeric range for market %s: %w", m.ID, err)
	}
	m.Min = params.Min
	m.Max = params.Max
	m.IsLogScale = params.IsLogScale
	return nil
}

// MarketByURL fetches a market from its full URL by extracting the trailing
// slug.
func (c *Client) MarketByURL(ctx context.Context, url string) (*MarketData, error) {
	trimmed := strings.TrimRight(url, "/")
	idx := strings.LastIndexByte(trimmed, '/')
	if idx < 0 || idx == len(trimmed)-1 {
		return nil, &APIError{Op: "get market", Detail: "cannot extract slug from url " + url}
	}
	return c.MarketBySlug(ctx, trimmed[idx+1:])
}

// UserStats fetches the cached statistics for a user by username.
func (c *Client) UserStats(ctx context.Context, username string) (*UserStats, error) {
	var raw struct {
		ProfitCached        map[Timeframe]float64 `json:"profitCached"`
		CreatorVolumeCached map[Timeframe]float64 `json:"creatorVolumeCached"`
	}
	if err := c.get(ctx, "/user/"+username, &raw); err != nil {
		return nil, fmt.Errorf("getting user %s: %w", username, err)
	}
	return &UserStats{Profit: raw.ProfitCached, CreatedVolume: raw.CreatorVolumeCached}, nil
}

// Resolve settles a market to the given coerced resolution. The value must
// already be shaped for the market's outcome type; Cancel callers should use
// Cancel instead.
func (c *Client) Resolve(ctx context.Context, m *MarketData, res value.Resolution) error {
	body := map[string]any{}
	switch {
	case res.IsCancel():
		body["outcome"] = "CANCEL"
	case m.OutcomeType == value.Binary:
		switch {
		case res.Kind() == value.KindBool && res.Truthy(), res.Kind() == value.KindNumber && res.Num() == 100:
			body["outcome"] = "YES"
		case res.Kind() == value.KindBool, res.Kind() == value.KindNumber && res.Num() == 0:
			body["outcome"] = "NO"
		default:
			body["outcome"] = "MKT"
			body["probabilityInt"] = int(res.Num() + 0.5)
		}
	case m.OutcomeType == value.PseudoNumeric:
		body["outcome"] = "MKT"
		body["value"] = res.Num()
		prob, err := value.NumberToProbCPMM1(res.Num(), m.Min, m.Max, m.IsLogScale)
		if err != nil {
			return fmt.Errorf("resolving market %s: %w", m.ID, err)
		}
		body["probabilityInt"] = int(prob*100 + 0.5)
	case m.OutcomeType.MCLike():
		weights := res.Map()
		if weights == nil {
			return &APIError{Op: "resolve", Detail: "multi-outcome market " + m.ID + " needs an answer mapping"}
		}
		var total float64
		for _, w := range weights {
			total += w
		}
		resolutions := make([]map[string]any, 0, len(weights))
		for idx, w := range weights {
			resolutions = append(resolutions, map[string]any{
				"answer": strconv.Itoa(idx),
				"pct":    w / total * 100,
			})
		}
		body["outcome"] = "CHOOSE_MULTIPLE"
		body["resolutions"] = resolutions
	default:
		return &APIError{Op: "resolve", Detail: "unsupported outcome type " + string(m.OutcomeType)}
	}

	if err := c.post(ctx, "/market/"+m.ID+"/resolve", body, nil); err != nil {
		return err
	}
	slog.Info("market resolved", "market", m.ID, "value", res.String())
	return nil
}

// Cancel refunds all positions on a market.
func (c *Client) Cancel(ctx context.Context, m *MarketData) error {
	if err := c.post(ctx, "/market/"+m.ID+"/resolve", map[string]any{"outcome": "CANCEL"}, nil); err != nil {
		return err
	}
	slog.Info("market cancelled", "market", m.ID)
	return nil
}

// PostComment publishes a markdown comment on a market. Used after a resolve
// to disclose the decision tree that fired.
func (c *Client) PostComment(ctx context.Context, marketID, markdown string) error {
	return c.post(ctx, "/comment", map[string]any{
		"contractId": marketID,
		"markdown":   markdown,
	}, nil)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, op string, out any) error {
	if req.Method != http.MethodGet {
		if c.apiKey == "" {
			return &APIError{Op: op, Detail: envAPIKey + " is not set"}
		}
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("manifold: %s: %w", op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("manifold: %s: reading response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Op: op, Status: resp.StatusCode, Detail: strings.TrimSpace(string(data))}
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("manifold: %s: decoding response: %w", op, err)
		}
	}
	return nil
}
