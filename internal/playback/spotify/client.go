package spotify

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"cavacolor/internal/logging"
)

const (
	defaultRetryMax       = 2
	defaultRetryWaitMin   = 500 * time.Millisecond
	defaultRetryWaitMax   = 4 * time.Second
	defaultRequestTimeout = 10 * time.Second
	userAgent             = "cavacolor"
)

type clientOptions struct {
	httpClient   *http.Client
	retryMax     int
	retryWaitMin time.Duration
	retryWaitMax time.Duration
	timeout      time.Duration
	logger       *slog.Logger
}

func defaultClientOptions() clientOptions {
	return clientOptions{
		retryMax:     defaultRetryMax,
		retryWaitMin: defaultRetryWaitMin,
		retryWaitMax: defaultRetryWaitMax,
		timeout:      defaultRequestTimeout,
	}
}

// newRetryClient builds the HTTP client shared by the observer and the
// authorizer. Failed attempts surface as responses so callers can map status
// codes onto playback errors.
func newRetryClient(opts clientOptions) *retryablehttp.Client {
	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.timeout}
	}
	client := retryablehttp.NewClient()
	client.HTTPClient = httpClient
	client.RetryMax = opts.retryMax
	client.RetryWaitMin = opts.retryWaitMin
	client.RetryWaitMax = opts.retryWaitMax
	client.Backoff = cappedBackoff
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler
	client.Logger = logging.WithLevelOverride(opts.logger, slog.LevelInfo)
	return client
}

// cappedBackoff honors Retry-After between attempts but never waits longer
// than max; longer server waits are left to the sync loop's backoff.
func cappedBackoff(minWait, maxWait time.Duration, attempt int, resp *http.Response) time.Duration {
	wait := retryablehttp.DefaultBackoff(minWait, maxWait, attempt, resp)
	if wait > maxWait {
		return maxWait
	}
	return wait
}
