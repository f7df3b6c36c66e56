package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// retryPolicy holds the attempt budget and backoff bounds shared by runtimes.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// postJSON sends payload to endpoint and decodes a 2xx body into out.
// 429 and 5xx responses and transient network errors are retried with
// jittered exponential backoff; a Retry-After header overrides the delay.
// Final non-2xx responses are passed to classify; connection failures
// surface as *UnreachableError.
func postJSON(ctx context.Context, hc *http.Client, endpoint string, payload []byte, headers map[string]string,
	p retryPolicy, classify func(*APIError, *http.Response) error, out any) (string, error) {
	maxAttempts := max(1, p.maxAttempts)
	backoff := p.baseDelay
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return "", fmt.Errorf("build request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			httpReq.Header.Set(k, v)
		}

		resp, err := hc.Do(httpReq)
		if err != nil {
			if isRetryableNetErr(err) && attempt < maxAttempts {
				delay := capDelay(withJitter(backoff), p.maxDelay)
				logRetry(endpoint, attempt, delay, err)
				if err := sleepCtx(ctx, delay); err != nil {
					return "", err
				}
				backoff *= 2
				continue
			}
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &UnreachableError{Host: httpReq.URL.Host, Err: err}
		}

		requestID := extractRequestID(resp)
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return requestID, fmt.Errorf("decode response: %w", err)
			}
			return requestID, nil
		}

		apiErr := readAPIError(resp)
		resp.Body.Close()
		retryable := resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)
		if !retryable || attempt == maxAttempts {
			return requestID, classify(apiErr, resp)
		}
		lastErr = apiErr
		delay := capDelay(withJitter(backoff), p.maxDelay)
		if secs, err := parseRetryAfterSeconds(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			delay = time.Duration(secs) * time.Second
		}
		logRetry(endpoint, attempt, delay, apiErr)
		if err := sleepCtx(ctx, delay); err != nil {
			return "", err
		}
		backoff *= 2
	}
	return "", lastErr
}

// readAPIError decodes the provider error body; both {"error":{...}},
// {"error":"..."} and flat {"message":...} shapes are accepted.
func readAPIError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
	var raw map[string]any
	_ = json.Unmarshal(body, &raw)
	apiErr := &APIError{StatusCode: resp.StatusCode, Raw: raw, RequestID: extractRequestID(resp)}
	switch v := raw["error"].(type) {
	case map[string]any:
		apiErr.Message, _ = v["message"].(string)
		apiErr.Code, _ = v["code"].(string)
	case string:
		apiErr.Message = v
	default:
		apiErr.Message, _ = raw["message"].(string)
		apiErr.Code, _ = raw["code"].(string)
	}
	return apiErr
}

func logRetry(endpoint string, attempt int, delay time.Duration, err error) {
	zap.L().Debug("retrying llm request",
		zap.String("endpoint", endpoint),
		zap.Int("attempt", attempt),
		zap.Duration("delay", delay),
		zap.Error(err))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func capDelay(d, limit time.Duration) time.Duration {
	if limit > 0 && d > limit {
		return limit
	}
	return d
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF)
}

// parseRetryAfterSeconds interprets a Retry-After value as seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(v); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// extractRequestID pulls a best-effort request ID from common headers.
func extractRequestID(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, k := range []string{"X-Request-Id", "OpenAI-Request-ID", "Openrouter-Request-ID", "X-Amzn-Requestid"} {
		if v := resp.Header.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// withJitter returns d with +/- 20% jitter applied.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	out := time.Duration(float64(d) * (0.8 + rand.Float64()*0.4))
	if out <= 0 {
		return d
	}
	return out
}
