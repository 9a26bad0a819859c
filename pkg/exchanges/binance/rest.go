package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
)

var (
	// ErrNoResult marks a call that did not produce a usable response. The
	// cause has already been logged.
	ErrNoResult = errors.New("binance: no result")
	// ErrMissingCredentials is returned by signed calls without keys.
	ErrMissingCredentials = errors.New("binance: API key/secret required")
)

func (c *Client) public(ctx context.Context, path string, params url.Values) ([]byte, error) {
	query := ""
	if params != nil {
		query = params.Encode()
	}
	return c.do(ctx, http.MethodGet, path, query, false)
}

// doSigned appends timestamp and signature to the canonical query and
// performs the request with the API key header.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, ErrMissingCredentials
	}
	if params == nil {
		params = url.Values{}
	}
	if c.cfg.RecvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	}
	query := signQuery(params, c.timeSync.Now(), c.cfg.APISecret)
	return c.do(ctx, method, path, query, true)
}

// signQuery returns "<params>&timestamp=<ts>&signature=<hmac>". The
// signature covers everything before it.
func signQuery(params url.Values, timestamp int64, secret string) string {
	q := params.Encode()
	if q != "" {
		q += "&"
	}
	q += "timestamp=" + strconv.FormatInt(timestamp, 10)
	return q + "&signature=" + sign(q, secret)
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Client) do(ctx context.Context, method, path, query string, signed bool) ([]byte, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, c.transportError(method, path, err)
	}

	var (
		req *http.Request
		err error
	)
	endpoint := c.baseURL + path
	switch method {
	case http.MethodGet, http.MethodDelete:
		if query != "" {
			endpoint += "?" + query
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(query))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, c.transportError(method, path, err)
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(method, path, err)
	}
	defer res.Body.Close()

	c.rateLimiter.UpdateFromHeader(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, c.transportError(method, path, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.logger.Error("binance request rejected",
			zap.String("method", method),
			zap.String("endpoint", path),
			zap.Int("status", res.StatusCode),
			zap.ByteString("body", body))
		c.observe(path, "rejected")
		return nil, fmt.Errorf("%w: %s %s status %d: %s", ErrNoResult, method, path, res.StatusCode, body)
	}
	c.observe(path, "ok")
	return body, nil
}

func (c *Client) transportError(method, path string, err error) error {
	c.logger.Error("binance request failed",
		zap.String("method", method),
		zap.String("endpoint", path),
		zap.Error(err))
	c.observe(path, "transport_error")
	return fmt.Errorf("%w: %s %s: %v", ErrNoResult, method, path, err)
}

func (c *Client) decode(path string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		c.logger.Error("binance response malformed", zap.String("endpoint", path), zap.Error(err))
		c.observe(path, "malformed")
		return fmt.Errorf("%w: decode %s: %v", ErrNoResult, path, err)
	}
	return nil
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case string:
		return parseFloat(t)
	case float64:
		return t
	case json.Number:
		f, _ := t.Float64()
		return f
	default:
		return 0
	}
}

func toInt64(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case int64:
		return t
	case json.Number:
		i, _ := t.Int64()
		return i
	default:
		return 0
	}
}
