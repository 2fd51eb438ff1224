// Package caller defines the dispatch contract external tool
// implementations satisfy, plus a retrying base wrapper every caller
// in the registry is composed with.
package caller

import (
	"context"
	"strings"
	"time"

	"github.com/VouchlyAI/Pincer-MCP/internal/gwerrors"
	"github.com/VouchlyAI/Pincer-MCP/internal/injector"
)

// Response is whatever a caller's external API returns, passed back to
// the orchestrator unexamined.
type Response struct {
	Output map[string]any
}

// Caller executes one enriched request against an external API.
type Caller interface {
	Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error)
}

// CallerFunc adapts a plain function to the Caller interface.
type CallerFunc func(ctx context.Context, req *injector.EnrichedRequest) (Response, error)

func (f CallerFunc) Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error) {
	return f(ctx, req)
}

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// BaseCaller wraps an inner Caller with the shared retry policy: at
// most MaxRetries attempts, exponential backoff of RetryDelay*2^attempt
// between them, short-circuited on errors classified as auth failures.
// BaseCaller performs no credential manipulation of its own.
type BaseCaller struct {
	Inner      Caller
	MaxRetries int
	RetryDelay time.Duration
}

// Wrap builds a BaseCaller around inner using the package defaults
// (3 attempts, 1s base delay).
func Wrap(inner Caller) *BaseCaller {
	return &BaseCaller{Inner: inner, MaxRetries: defaultMaxRetries, RetryDelay: defaultRetryDelay}
}

func (b *BaseCaller) Execute(ctx context.Context, req *injector.EnrichedRequest) (Response, error) {
	maxRetries := b.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := b.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		resp, err := b.Inner.Execute(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if isAuthError(err) {
			break
		}
		if attempt < maxRetries {
			delay := retryDelay * time.Duration(int64(1)<<uint(attempt-1))
			if sleepErr := sleepWithContext(ctx, delay); sleepErr != nil {
				return Response{}, sleepErr
			}
			continue
		}
	}
	return Response{}, gwerrors.Wrap(gwerrors.KindRetryExhausted, lastErr, "caller failed after %d attempt(s)", maxRetries)
}

// isAuthError heuristically classifies err's textual form as an
// authentication/authorization failure, which short-circuits retries.
func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"unauthorized", "forbidden", "401", "403"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func sleepWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Registry is a static map from tool name to the Caller that services
// it, built once at orchestrator startup.
type Registry map[string]Caller

func (r Registry) Lookup(tool string) (Caller, error) {
	c, ok := r[tool]
	if !ok {
		return nil, gwerrors.New(gwerrors.KindUnknownTool, "no caller registered for tool %q", tool)
	}
	return c, nil
}
