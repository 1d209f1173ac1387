package artwork

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/boxes-ltd/imaging"
	"github.com/hashicorp/go-retryablehttp"

	"cavacolor/internal/logging"
	"cavacolor/internal/playback"
)

// Fetch errors.
var (
	// ErrUnavailable reports artwork that could not be retrieved.
	ErrUnavailable = errors.New("artwork unavailable")
	// ErrUndecodable reports retrieved bytes that are not a supported image.
	ErrUndecodable = errors.New("artwork undecodable")
)

// Format tags.
const (
	FormatPNG      = "png"
	FormatJPEG     = "jpeg"
	FormatGIF      = "gif"
	FormatWebP     = "webp"
	FormatBMP      = "bmp"
	FormatFallback = "fallback"
)

const (
	defaultRetryMax       = 3
	defaultRetryWaitMin   = 250 * time.Millisecond
	defaultRetryWaitMax   = 4 * time.Second
	defaultRequestTimeout = 10 * time.Second
	defaultMaxBytes       = 20 << 20
	fallbackSize          = 16
	userAgent             = "cavacolor"
)

// Image is retrieved artwork ready for palette extraction.
type Image struct {
	Track    playback.TrackID
	Location playback.ArtworkLocation
	Format   string
	Data     []byte
}

// Fetcher retrieves artwork and keeps the most recent result. It is owned by
// one goroutine at a time; the mutex only guards Cached readers.
type Fetcher struct {
	mu     sync.Mutex
	cached *Image

	client        *retryablehttp.Client
	httpClient    *http.Client
	logger        *slog.Logger
	retryMax      int
	retryWaitMin  time.Duration
	retryWaitMax  time.Duration
	timeout       time.Duration
	maxBytes      int64
	fallbackColor color.Color
	fallback      []byte
}

// Option customizes the fetcher.
type Option func(*Fetcher)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		if client != nil {
			f.httpClient = client
		}
	}
}

// WithRetry overrides the retry count and backoff bounds.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(f *Fetcher) {
		f.retryMax = retryMax
		f.retryWaitMin = waitMin
		f.retryWaitMax = waitMax
	}
}

// WithRequestTimeout sets the deadline for each HTTP attempt.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// WithMaxBytes caps the size of accepted artwork.
func WithMaxBytes(limit int64) Option {
	return func(f *Fetcher) {
		if limit > 0 {
			f.maxBytes = limit
		}
	}
}

// WithFallbackColor sets the color of the image used for tracks without artwork.
func WithFallbackColor(c color.Color) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.fallbackColor = c
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher constructs a fetcher with an empty cache.
func NewFetcher(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		retryMax:      defaultRetryMax,
		retryWaitMin:  defaultRetryWaitMin,
		retryWaitMax:  defaultRetryWaitMax,
		timeout:       defaultRequestTimeout,
		maxBytes:      defaultMaxBytes,
		fallbackColor: color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.NewComponentLogger(f.logger, "artwork")
	if f.httpClient == nil {
		f.httpClient = &http.Client{Timeout: f.timeout}
	}

	f.client = retryablehttp.NewClient()
	f.client.HTTPClient = f.httpClient
	f.client.RetryMax = f.retryMax
	f.client.RetryWaitMin = f.retryWaitMin
	f.client.RetryWaitMax = f.retryWaitMax
	f.client.Logger = logging.WithLevelOverride(f.logger, slog.LevelInfo)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(fallbackSize, fallbackSize, f.fallbackColor), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode fallback artwork: %w", err)
	}
	f.fallback = buf.Bytes()
	return f, nil
}

// Fetch returns artwork for track. A cached entry for the same track is
// returned without I/O. Absent locations yield the fallback image.
func (f *Fetcher) Fetch(ctx context.Context, track playback.TrackID, loc playback.ArtworkLocation) (*Image, error) {
	if cached := f.Cached(); cached != nil && cached.Track == track {
		return cached, nil
	}

	var img *Image
	if loc.Absent() {
		img = f.Fallback(track)
		f.logger.Debug("no artwork for track, using fallback", logging.String(logging.FieldTrackID, string(track)))
	} else {
		var err error
		img, err = f.Load(ctx, loc)
		if err != nil {
			return nil, err
		}
		img.Track = track
	}

	f.mu.Lock()
	f.cached = img
	f.mu.Unlock()
	return img, nil
}

// Cached returns the current cache entry, or nil.
func (f *Fetcher) Cached() *Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cached
}

// Fallback returns the neutral image used when a track has no artwork.
func (f *Fetcher) Fallback(track playback.TrackID) *Image {
	data := make([]byte, len(f.fallback))
	copy(data, f.fallback)
	return &Image{Track: track, Format: FormatFallback, Data: data}
}

// Load retrieves artwork bytes without consulting or updating the cache.
func (f *Fetcher) Load(ctx context.Context, loc playback.ArtworkLocation) (*Image, error) {
	raw := strings.TrimSpace(string(loc))
	data, err := f.retrieve(ctx, raw)
	if err != nil {
		return nil, err
	}
	format, ok := sniffFormat(data)
	if !ok {
		return nil, fmt.Errorf("%w: %s is %s", ErrUndecodable, raw, http.DetectContentType(data))
	}
	return &Image{Location: loc, Format: format, Data: data}, nil
}

func (f *Fetcher) retrieve(ctx context.Context, raw string) ([]byte, error) {
	if !strings.Contains(raw, "://") {
		return f.readFile(raw)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse location %q: %v", ErrUnavailable, raw, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return f.download(ctx, raw)
	case "file":
		return f.readFile(parsed.Path)
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrUnavailable, parsed.Scheme)
	}
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "image/*")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %s returned http %d", ErrUnavailable, rawURL, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrUnavailable, rawURL, resp.ContentLength, f.maxBytes)
	}
	return f.readLimited(resp.Body, rawURL)
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer file.Close()
	return f.readLimited(file, path)
}

func (f *Fetcher) readLimited(r io.Reader, name string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, name, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrUnavailable, name, f.maxBytes)
	}
	return data, nil
}

func sniffFormat(data []byte) (string, bool) {
	switch http.DetectContentType(data) {
	case "image/png":
		return FormatPNG, true
	case "image/jpeg":
		return FormatJPEG, true
	case "image/gif":
		return FormatGIF, true
	case "image/webp":
		return FormatWebP, true
	case "image/bmp":
		return FormatBMP, true
	default:
		return "", false
	}
}
