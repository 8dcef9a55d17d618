// Package neural is the OCR engine backed by a neural text recognition
// server reachable over HTTP.
package neural

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/tphakala/iconscan/internal/errors"
	"github.com/tphakala/iconscan/internal/imageutil"
	"github.com/tphakala/iconscan/internal/logger"
	"github.com/tphakala/iconscan/internal/ocr"
)

const (
	maxRetries      = 3
	maxResponseSize = 4 << 20
	retryBaseDelay  = 500 * time.Millisecond
)

// Client sends search regions to the inference server. Responses are cached
// by the SHA-256 of the encoded image, so identical regions across a batch
// are recognized once.
type Client struct {
	config      Config
	httpClient  *http.Client
	cache       *cache.Cache
	rateLimiter *rate.Limiter
	log         logger.Logger

	apiCalls    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	apiErrors   atomic.Int64
}

// New creates a client without contacting the server
func New(config Config) (*Client, error) {
	defaults := DefaultConfig()
	if config.Endpoint == "" {
		config.Endpoint = defaults.Endpoint
	}
	if config.Timeout == 0 {
		config.Timeout = defaults.Timeout
	}
	if config.CacheTTL == 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if len(config.Languages) == 0 {
		config.Languages = defaults.Languages
	}
	if config.Logger == nil {
		config.Logger = logger.Global().Module("ocr").Module("neural")
	}

	u, err := url.Parse(config.Endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid neural OCR endpoint %q", config.Endpoint).
			Component("ocr.neural").
			Category(errors.CategoryConfiguration).
			Build()
	}
	config.Endpoint = strings.TrimRight(config.Endpoint, "/")

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config:      config,
		httpClient:  &http.Client{Timeout: config.Timeout},
		cache:       cache.New(config.CacheTTL, config.CacheTTL*2),
		rateLimiter: rate.NewLimiter(limit, 1),
		log:         config.Logger,
	}, nil
}

// Open creates a client and verifies the server answers its health check
func Open(ctx context.Context, config Config) (*Client, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	if err := c.Probe(ctx); err != nil {
		c.Close()
		return nil, err
	}
	c.log.Info("neural OCR client initialized",
		logger.String("endpoint", c.config.Endpoint),
		logger.Duration("cache_ttl", c.config.CacheTTL),
		logger.Float64("rate_limit", c.config.RateLimit))
	return c, nil
}

// Probe checks GET /health
func (c *Client) Probe(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()
	return c.doRequest(reqCtx, http.MethodGet, c.config.Endpoint+"/health", nil, nil)
}

// Name implements ocr.Engine
func (c *Client) Name() string {
	return ocr.ModeNeural
}

// Recognize implements ocr.Engine
func (c *Client) Recognize(ctx context.Context, img image.Image) ([]ocr.Fragment, error) {
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	cacheKey := hex.EncodeToString(sum[:])

	if cached, found := c.cache.Get(cacheKey); found {
		if fragments, ok := cached.([]ocr.Fragment); ok {
			c.cacheHits.Add(1)
			return fragments, nil
		}
	}
	c.cacheMisses.Add(1)

	body, err := json.Marshal(recognizeRequest{
		Image:     base64.StdEncoding.EncodeToString(data),
		Languages: c.config.Languages,
	})
	if err != nil {
		return nil, errors.New(err).
			Component("ocr.neural").
			Category(errors.CategoryOCR).
			Context("operation", "encode_request").
			Build()
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var resp recognizeResponse
	if err := c.doRequestWithRetry(reqCtx, http.MethodPost, c.config.Endpoint+"/ocr", body, &resp); err != nil {
		return nil, err
	}

	fragments := make([]ocr.Fragment, 0, len(resp.Results))
	for _, r := range resp.Results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		fragments = append(fragments, ocr.Fragment{
			Text:       text,
			Confidence: min(max(r.Confidence, 0), 1),
			Box:        image.Rect(r.Box[0], r.Box[1], r.Box[0]+r.Box[2], r.Box[1]+r.Box[3]),
		})
	}

	c.cache.SetDefault(cacheKey, fragments)
	return fragments, nil
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, body []byte, result any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return errors.New(err).
			Component("ocr.neural").
			Category(errors.CategoryCancellation).
			Build()
	}
	c.apiCalls.Add(1)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		c.apiErrors.Add(1)
		return errors.Newf("failed to create HTTP request: %w", err).
			Component("ocr.neural").
			Category(errors.CategoryNetwork).
			Context("method", method).
			Build()
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.apiErrors.Add(1)
		return errors.Newf("HTTP request failed: %w", err).
			Component("ocr.neural").
			Category(errors.CategoryNetwork).
			Context("method", method).
			Context("url", endpoint).
			Build()
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.apiErrors.Add(1)
		return errors.Newf("failed to read response body: %w", err).
			Component("ocr.neural").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Build()
	}

	c.log.Debug("neural OCR request",
		logger.String("method", method),
		logger.String("url", endpoint),
		logger.Int("status_code", resp.StatusCode),
		logger.Duration("duration", time.Since(start)))

	if resp.StatusCode >= 400 {
		c.apiErrors.Add(1)
		message := http.StatusText(resp.StatusCode)
		var apiErr apiError
		if json.Unmarshal(bodyBytes, &apiErr) == nil {
			if apiErr.Message != "" {
				message = apiErr.Message
			} else if apiErr.Error != "" {
				message = apiErr.Error
			}
		}
		return errors.Newf("neural OCR server error: %s", message).
			Component("ocr.neural").
			Category(errors.CategoryNetwork).
			Context("status_code", resp.StatusCode).
			Context("url", endpoint).
			Build()
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(bodyBytes, result); err != nil {
		c.apiErrors.Add(1)
		return errors.Newf("failed to decode response: %w", err).
			Component("ocr.neural").
			Category(errors.CategoryOCR).
			Context("url", endpoint).
			Build()
	}
	return nil
}

// doRequestWithRetry retries transient failures with linear backoff. Client
// errors other than 429 are returned immediately.
func (c *Client) doRequestWithRetry(ctx context.Context, method, endpoint string, body []byte, result any) error {
	var lastErr error

	for attempt := range maxRetries {
		err := c.doRequest(ctx, method, endpoint, body, result)
		if err == nil {
			return nil
		}
		lastErr = err

		var enhancedErr *errors.EnhancedError
		if errors.As(err, &enhancedErr) {
			if enhancedErr.Category == errors.CategoryOCR ||
				enhancedErr.Category == errors.CategoryCancellation {
				return err
			}
			if statusCode, ok := enhancedErr.Context["status_code"].(int); ok {
				if statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests {
					return err
				}
			}
		}

		if ctx.Err() != nil {
			return lastErr
		}

		if attempt < maxRetries-1 {
			delay := time.Duration(attempt+1) * retryBaseDelay
			c.log.Warn("neural OCR request failed, retrying",
				logger.Int("attempt", attempt+1),
				logger.Int("max_retries", maxRetries),
				logger.Duration("delay", delay),
				logger.Error(err))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return lastErr
			}
		}
	}

	return fmt.Errorf("neural OCR request failed after %d attempts: %w", maxRetries, lastErr)
}

// Stats returns request counters
func (c *Client) Stats() (apiCalls, cacheHits, cacheMisses, apiErrors int64) {
	return c.apiCalls.Load(), c.cacheHits.Load(), c.cacheMisses.Load(), c.apiErrors.Load()
}

// Close logs the request counters, then drops cached responses and idle
// connections.
func (c *Client) Close() error {
	calls, hits, misses, apiErrors := c.Stats()
	c.log.Info("neural OCR client closed",
		logger.Int64("api_calls", calls),
		logger.Int64("cache_hits", hits),
		logger.Int64("cache_misses", misses),
		logger.Int64("api_errors", apiErrors))
	c.cache.Flush()
	c.httpClient.CloseIdleConnections()
	return nil
}
