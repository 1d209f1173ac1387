package spotify

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/mattn/go-isatty"

	"cavacolor/internal/logging"
)

// Scope is the only permission cavacolor requests.
const Scope = "user-read-currently-playing"

const (
	defaultAccountsBaseURL = "https://accounts.spotify.com"
	authorizePath          = "/authorize"
	tokenPath              = "/api/token"
)

// Authorization errors.
var (
	// ErrNotInteractive reports that no terminal is available to complete the flow.
	ErrNotInteractive = errors.New("spotify authorization requires an interactive terminal")
	// ErrStateMismatch reports a redirect whose state does not match the request.
	ErrStateMismatch = errors.New("spotify authorization state mismatch")
	// ErrDenied reports that the user or the accounts service refused authorization.
	ErrDenied = errors.New("spotify authorization denied")
)

var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Token is an access token held in memory for the lifetime of the daemon.
type Token struct {
	AccessToken  string
	TokenType    string
	Scope        string
	RefreshToken string
	ExpiresAt    time.Time
}

// Credentials identify the registered application.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// AuthOption configures the authorizer.
type AuthOption func(*Authorizer)

// WithAccountsBaseURL overrides the accounts service base URL.
func WithAccountsBaseURL(base string) AuthOption {
	return func(a *Authorizer) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			a.accountsURL = base
		}
	}
}

// WithPrompt overrides where the authorize URL is printed and the redirected
// URL is read from.
func WithPrompt(in io.Reader, out io.Writer) AuthOption {
	return func(a *Authorizer) {
		if in != nil {
			a.in = in
		}
		if out != nil {
			a.out = out
		}
	}
}

// WithAuthHTTPClient overrides the underlying HTTP client.
func WithAuthHTTPClient(client *http.Client) AuthOption {
	return func(a *Authorizer) {
		if client != nil {
			a.client.httpClient = client
		}
	}
}

// WithAuthRetry overrides the retry count and backoff bounds.
func WithAuthRetry(retryMax int, waitMin, waitMax time.Duration) AuthOption {
	return func(a *Authorizer) {
		a.client.retryMax = retryMax
		a.client.retryWaitMin = waitMin
		a.client.retryWaitMax = waitMax
	}
}

// WithAuthLogger attaches a logger.
func WithAuthLogger(logger *slog.Logger) AuthOption {
	return func(a *Authorizer) {
		a.client.logger = logger
	}
}

// Authorizer runs the authorization-code flow against the accounts service.
type Authorizer struct {
	creds       Credentials
	accountsURL string
	in          io.Reader
	out         io.Writer
	newState    func() string
	client      clientOptions
	http        *retryablehttp.Client
	logger      *slog.Logger
}

// NewAuthorizer constructs an authorizer for the given application.
func NewAuthorizer(creds Credentials, opts ...AuthOption) (*Authorizer, error) {
	if strings.TrimSpace(creds.ClientID) == "" || strings.TrimSpace(creds.ClientSecret) == "" {
		return nil, errors.New("spotify client id and secret required")
	}
	if strings.TrimSpace(creds.RedirectURI) == "" {
		return nil, errors.New("spotify redirect uri required")
	}
	a := &Authorizer{
		creds:       creds,
		accountsURL: defaultAccountsBaseURL,
		in:          os.Stdin,
		out:         os.Stdout,
		newState:    uuid.NewString,
		client:      defaultClientOptions(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.NewComponentLogger(a.client.logger, "spotify-auth")
	a.client.logger = a.logger
	a.http = newRetryClient(a.client)
	return a, nil
}

// AuthorizeURL returns the URL the user opens to grant access.
func (a *Authorizer) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", a.creds.ClientID)
	q.Set("scope", Scope)
	q.Set("redirect_uri", a.creds.RedirectURI)
	q.Set("state", state)
	return a.accountsURL + authorizePath + "?" + q.Encode()
}

// Authorize prints the authorize URL, reads the redirected URL the user
// pastes back, and exchanges its code for a token.
func (a *Authorizer) Authorize(ctx context.Context) (*Token, error) {
	if !stdinIsTerminal() {
		return nil, ErrNotInteractive
	}
	state := a.newState()
	fmt.Fprintf(a.out, "Open this URL in a browser and grant access:\n\n  %s\n\n", a.AuthorizeURL(state))
	fmt.Fprint(a.out, "Paste the URL you were redirected to: ")

	line, err := a.readLine(ctx)
	if err != nil {
		return nil, err
	}
	code, err := codeFromRedirect(line, state)
	if err != nil {
		return nil, err
	}
	token, err := a.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	a.logger.Info("spotify authorization complete",
		logging.String("scope", token.Scope),
		logging.String("expires_at", token.ExpiresAt.Format(time.RFC3339)),
	)
	return token, nil
}

func (a *Authorizer) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(a.in).ReadString('\n')
		if errors.Is(err, io.EOF) && strings.TrimSpace(line) != "" {
			err = nil
		}
		done <- result{line: strings.TrimSpace(line), err: err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("read redirect url: %w", r.err)
		}
		return r.line, nil
	}
}

// codeFromRedirect validates the pasted redirect and returns its code.
func codeFromRedirect(raw, state string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := parsed.Query()
	if reason := q.Get("error"); reason != "" {
		return "", fmt.Errorf("%w: %s", ErrDenied, reason)
	}
	if q.Get("state") != state {
		return "", ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect url has no code parameter")
	}
	return code, nil
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

// Exchange trades an authorization code for a token.
func (a *Authorizer) Exchange(ctx context.Context, code string) (*Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", a.creds.RedirectURI)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.accountsURL+tokenPath,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.SetBasicAuth(a.creds.ClientID, a.creds.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrDenied, apiErrorMessage(resp))
		}
		return nil, fmt.Errorf("token exchange returned http %d: %s", resp.StatusCode, apiErrorMessage(resp))
	}

	var payload tokenResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxErrorBodyBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, errors.New("token response has no access_token")
	}
	token := &Token{
		AccessToken:  payload.AccessToken,
		TokenType:    payload.TokenType,
		Scope:        payload.Scope,
		RefreshToken: payload.RefreshToken,
	}
	if payload.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(payload.ExpiresIn) * time.Second)
	}
	return token, nil
}

// ProbeAccounts sends a HEAD request to the accounts authorize endpoint
// through the retrying client and returns the final status code.
func ProbeAccounts(ctx context.Context, accountsBaseURL string, timeout time.Duration, logger *slog.Logger) (int, error) {
	opts := defaultClientOptions()
	opts.retryMax = 1
	opts.retryWaitMin = 100 * time.Millisecond
	opts.retryWaitMax = 500 * time.Millisecond
	if timeout > 0 {
		opts.timeout = timeout
	}
	opts.logger = logging.NewComponentLogger(logger, "spotify-auth")

	base := strings.TrimRight(strings.TrimSpace(accountsBaseURL), "/")
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodHead, base+authorizePath, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := newRetryClient(opts).Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
