package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/zegh6389/news-instagram-mcp/pkg/config"
	"github.com/zegh6389/news-instagram-mcp/pkg/logging"
	"github.com/zegh6389/news-instagram-mcp/pkg/telemetry"
)

// Result is a successful publish response
type Result struct {
	ExternalRef string
}

// Publisher posts rendered media to the external service. Lookup
// resolves an idempotency key after a timed-out attempt so the gate can
// decide whether the post actually went out before retrying.
type Publisher interface {
	Publish(ctx context.Context, mediaRef, caption, idempotencyKey string) (*Result, error)
	Lookup(ctx context.Context, idempotencyKey string) (*Result, error)
}

// Client talks to the publishing HTTP API
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a publisher client. Requests are paced below the
// ledger ceilings so bursts inside a publish sweep stay gentle on the
// external service.
func NewClient(cfg *config.PublisherConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("publisher_url is required")
	}

	logger := logging.WithComponent("publisher-client")
	logger.Info("Publisher client initialized", zap.String("url", cfg.URL))

	return &Client{
		baseURL: cfg.URL,
		token:   cfg.AccessToken,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		logger:  logger,
	}, nil
}

type publishRequest struct {
	MediaRef       string `json:"media_ref"`
	Caption        string `json:"caption"`
	IdempotencyKey string `json:"idempotency_key"`
}

type publishResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Publish uploads the media and caption
func (c *Client) Publish(ctx context.Context, mediaRef, caption, idempotencyKey string) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "publish.upload")
	defer span.End()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, Transient("rate limiter wait interrupted", err)
	}

	body, err := json.Marshal(publishRequest{
		MediaRef:       mediaRef,
		Caption:        caption,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return nil, Permanent("failed to encode publish payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent("failed to build publish request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Transient("publish request failed", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// Lookup checks whether a publish with the given idempotency key
// already succeeded. Returns nil without error when no post exists.
func (c *Client) Lookup(ctx context.Context, idempotencyKey string) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "publish.lookup")
	defer span.End()

	lookupURL := c.baseURL + "/media?idempotency_key=" + url.QueryEscape(idempotencyKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, Permanent("failed to build lookup request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Transient("lookup request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	return c.parseResponse(resp)
}

func (c *Client) parseResponse(resp *http.Response) (*Result, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, Transient("failed to read publish response", err)
	}

	var parsed publishResponse
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.Unmarshal(data, &parsed); err != nil {
			return nil, Transient("failed to decode publish response", err)
		}
		if parsed.ID == "" {
			return nil, Transient("publish response missing post id", nil)
		}
		return &Result{ExternalRef: parsed.ID}, nil
	}

	_ = json.Unmarshal(data, &parsed)
	message := parsed.Error
	if message == "" {
		message = resp.Status
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, Transient("external rate limit: "+message, nil)
	case resp.StatusCode >= 500:
		return nil, Transient("publish service error: "+message, nil)
	default:
		// Remaining 4xx: rejected content, bad auth, malformed payload
		return nil, Permanent("publish rejected: "+message, nil)
	}
}
