package core

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/saturnines/tap-govdata/pkg/config"
)

// HTTPError wraps HTTP error responses
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
}

// RetryTransport retries idempotent requests with full-jitter exponential backoff.
type RetryTransport struct {
	Base   http.RoundTripper
	Cfg    *config.Retry
	jitter *rand.Rand
}

// NewRetryTransport creates a new retry transport
func NewRetryTransport(base http.RoundTripper, cfg *config.Retry) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{
		Base:   base,
		Cfg:    cfg,
		jitter: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Cfg == nil || t.Cfg.MaxAttempts <= 1 {
		return t.Base.RoundTrip(req)
	}

	switch req.Method {
	case http.MethodGet, http.MethodHead,
		http.MethodPut, http.MethodDelete,
		http.MethodOptions, http.MethodTrace:
		// retryable for idempotency methods
	default:
		return t.Base.RoundTrip(req)
	}

	var lastErr error
	var lastResp *http.Response

	for attempt := 0; attempt < t.Cfg.MaxAttempts; attempt++ {
		req2 := t.cloneRequest(req)

		resp, err := t.Base.RoundTrip(req2)

		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && (netErr.Temporary() || netErr.Timeout()) {
				lastErr = err
			} else {
				// Non retryable network error
				return nil, err
			}
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				return resp, nil
			}

			if !t.contains(t.Cfg.RetryableStatuses, resp.StatusCode) {
				if lastResp != nil {
					lastResp.Body.Close()
				}
				if resp.StatusCode >= 400 {
					resp.Body.Close()
					return nil, &HTTPError{
						StatusCode: resp.StatusCode,
						Status:     resp.Status,
					}
				}
				return resp, nil
			}

			// Store for retry
			if lastResp != nil {
				lastResp.Body.Close()
			}
			lastResp = resp
		}

		if ctxErr := req.Context().Err(); ctxErr != nil {
			if lastResp != nil {
				lastResp.Body.Close()
			}
			return nil, ctxErr
		}

		// Don't wait after the last attempt
		if attempt < t.Cfg.MaxAttempts-1 {
			select {
			case <-req.Context().Done():
				if lastResp != nil {
					lastResp.Body.Close()
				}
				return nil, req.Context().Err()
			case <-time.After(t.backoff(attempt)):
			}
		}
	}

	if lastResp != nil {
		// Return the last response even if it was an error status
		return lastResp, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("retry transport failed after %d attempts: %w", t.Cfg.MaxAttempts, lastErr)
	}
	return nil, fmt.Errorf("retry transport failed after %d attempts: no response received", t.Cfg.MaxAttempts)
}

// cloneRequest makes a deep copy for safe body reuse
func (t *RetryTransport) cloneRequest(r *http.Request) *http.Request {
	r2 := r.Clone(r.Context())
	if r.Body != nil {
		buf, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(buf))
		r2.Body = io.NopCloser(bytes.NewReader(buf))
	}
	return r2
}

// backoff computes full jitter exponential backoff
func (t *RetryTransport) backoff(attempt int) time.Duration {
	base := time.Duration(t.Cfg.InitialBackoff * float64(time.Second))

	maxDelay := time.Duration(float64(base) * math.Pow(t.Cfg.BackoffMultiplier, float64(attempt)))

	// Cap at 30 seconds
	if maxDelay > 30*time.Second {
		maxDelay = 30 * time.Second
	}

	return time.Duration(t.jitter.Float64() * float64(maxDelay))
}

func (t *RetryTransport) contains(slice []int, value int) bool {
	for _, v := range slice {
		if v == value {
			return true
		}
	}
	return false
}
